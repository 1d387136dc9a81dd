package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// DefaultTopK is used when a caller passes k <= 0.
const DefaultTopK = 4

// RetrieveUseCase answers top-k queries against a corpus loaded once at
// startup. It is read-only after construction and safe for concurrent use.
type RetrieveUseCase struct {
	index    port.VectorIndex
	chunks   []domain.Chunk
	info     domain.CorpusInfo
	embedder port.Embedder
}

// NewRetrieveUseCase builds the in-memory index for corpus. It refuses a
// corpus whose geometry is inconsistent or that was embedded with a
// different model than embedder.
func NewRetrieveUseCase(corpus *domain.Corpus, embedder port.Embedder) (*RetrieveUseCase, error) {
	index, err := store.NewFlatIndex(corpus.Vectors())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorpusCorrupt, err)
	}

	chunks := make([]domain.Chunk, len(corpus.Records))
	for i, r := range corpus.Records {
		if r.Slot != i {
			return nil, fmt.Errorf("%w: record %d has slot %d", domain.ErrCorpusCorrupt, i, r.Slot)
		}
		chunks[i] = r.Chunk
	}

	if index.Len() > 0 {
		if corpus.Info.Model != "" && corpus.Info.Model != embedder.ModelName() {
			return nil, fmt.Errorf("%w: corpus built with %q, embedder is %q",
				domain.ErrModelMismatch, corpus.Info.Model, embedder.ModelName())
		}
		if dim := embedder.Dimension(); dim > 0 && dim != index.Dimension() {
			return nil, fmt.Errorf("%w: corpus has dimension %d, embedder produces %d",
				domain.ErrDimensionMismatch, index.Dimension(), dim)
		}
	}

	return &RetrieveUseCase{
		index:    index,
		chunks:   chunks,
		info:     corpus.Info,
		embedder: embedder,
	}, nil
}

// Search returns the k chunks nearest to query, closest first. There is no
// relevance cutoff: a non-empty corpus always yields min(k, Len()) results.
// An empty corpus yields no results and no error.
func (u *RetrieveUseCase) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if u.index.Len() == 0 {
		return nil, nil
	}

	vectors, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQueryEmbedding, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors", domain.ErrQueryEmbedding, len(vectors))
	}

	neighbors, err := u.index.Search(vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]domain.ScoredChunk, len(neighbors))
	for i, n := range neighbors {
		results[i] = domain.ScoredChunk{
			Slot:     n.Slot,
			Chunk:    u.chunks[n.Slot],
			Distance: n.Distance,
		}
	}
	return results, nil
}

// Len returns the number of chunks in the loaded corpus. Zero means no
// indexed context is available at all.
func (u *RetrieveUseCase) Len() int {
	return u.index.Len()
}

func (u *RetrieveUseCase) Info() domain.CorpusInfo {
	return u.info
}

// Cached returns u behind an LRU query cache holding up to size result
// sets for ttl. A size <= 0 returns u unchanged.
func (u *RetrieveUseCase) Cached(size int, ttl time.Duration) port.Retriever {
	if size <= 0 {
		return u
	}
	return cache.NewCachedRetriever(u, cache.NewQueryCache(size, ttl))
}

// FormatContext renders results as source-tagged blocks separated by blank
// lines, the form handed to a downstream answer generator.
func FormatContext(results []domain.ScoredChunk) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[Source: %s]\n%s", r.Chunk.Source, r.Chunk.Text)
	}
	return strings.Join(blocks, "\n\n")
}
