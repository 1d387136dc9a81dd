package memstore

import (
	"fmt"
	"sync"

	"docrag/internal/domain"
)

// CorpusStore keeps a corpus in memory. Save replaces the held corpus
// wholesale; both Save and Load copy so callers never share slices.
type CorpusStore struct {
	mu     sync.RWMutex
	corpus *domain.Corpus
	saves  int
}

func NewCorpusStore() *CorpusStore {
	return &CorpusStore{}
}

func (s *CorpusStore) Save(corpus domain.Corpus) error {
	if corpus.Info.Size != len(corpus.Records) {
		return fmt.Errorf("corpus info size %d does not match %d records", corpus.Info.Size, len(corpus.Records))
	}
	for i, r := range corpus.Records {
		if r.Slot != i {
			return fmt.Errorf("record %d has slot %d", i, r.Slot)
		}
	}

	c := clone(corpus)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpus = &c
	s.saves++
	return nil
}

func (s *CorpusStore) Load() (*domain.Corpus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.corpus == nil {
		return nil, domain.ErrCorpusNotFound
	}
	c := clone(*s.corpus)
	return &c, nil
}

// Saves reports how many corpora have been written.
func (s *CorpusStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func clone(c domain.Corpus) domain.Corpus {
	out := domain.Corpus{Info: c.Info, Records: make([]domain.Record, len(c.Records))}
	if c.Info.Sources != nil {
		out.Info.Sources = make(map[string]int, len(c.Info.Sources))
		for k, v := range c.Info.Sources {
			out.Info.Sources[k] = v
		}
	}
	for i, r := range c.Records {
		r.Vector = append(domain.Embedding(nil), r.Vector...)
		out.Records[i] = r
	}
	return out
}
