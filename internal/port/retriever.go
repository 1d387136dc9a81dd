package port

import (
	"context"

	"docrag/internal/domain"
)

// Retriever defines the interface for searching indexed content.
type Retriever interface {
	// Search returns up to k chunks nearest to the query, closest first.
	Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}
