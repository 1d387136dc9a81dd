package port

import "docrag/internal/domain"

// VectorIndex answers exact nearest-neighbor queries over a fixed vector set.
type VectorIndex interface {
	Search(query domain.Embedding, k int) ([]domain.Neighbor, error)
	Len() int
	Dimension() int
}

// CorpusStore persists a whole corpus. Save replaces any previous corpus
// atomically; Load returns it fully in memory.
type CorpusStore interface {
	Save(corpus domain.Corpus) error
	Load() (*domain.Corpus, error)
}
