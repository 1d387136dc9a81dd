package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"docrag/internal/adapter/analyzer"
	"docrag/internal/domain"
)

// HashEmbedder is a deterministic, offline embedder. Word and character
// trigram features are hashed into signed buckets and the result is
// normalised to unit length, so texts sharing vocabulary land close together.
type HashEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	return &HashEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(3),
	}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	embeddings := make([]domain.Embedding, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = e.embed(text)
	}
	return embeddings, nil
}

func (e *HashEmbedder) embed(text string) domain.Embedding {
	acc := make([]float64, e.dimension)
	for _, f := range e.tokenizer.Features(text) {
		h := fnv.New64a()
		h.Write([]byte(f))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		if sum>>63 == 1 {
			acc[idx]--
		} else {
			acc[idx]++
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make(domain.Embedding, e.dimension)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return fmt.Sprintf("local-hash-%d", e.dimension)
}
