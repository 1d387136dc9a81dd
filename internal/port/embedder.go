package port

import (
	"context"

	"docrag/internal/domain"
)

// Embedder generates vector embeddings for text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([]domain.Embedding, error)

	// Dimension returns the embedding vector dimension, or 0 if it is only
	// known after the first call.
	Dimension() int

	ModelName() string
}
