package store

import (
	"fmt"
	"sort"

	"docrag/internal/domain"
)

// FlatIndex is an exact nearest-neighbor index over a fixed vector set.
// Search is brute force by squared Euclidean distance. The index is
// immutable after construction and safe for concurrent Search calls.
type FlatIndex struct {
	dimension int
	vectors   []domain.Embedding
}

// NewFlatIndex builds an index whose slot i holds vectors[i]. All vectors
// must share the dimension of the first one.
func NewFlatIndex(vectors []domain.Embedding) (*FlatIndex, error) {
	idx := &FlatIndex{vectors: vectors}
	if len(vectors) == 0 {
		return idx, nil
	}

	idx.dimension = len(vectors[0])
	if idx.dimension == 0 {
		return nil, fmt.Errorf("%w: slot 0 has an empty vector", domain.ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != idx.dimension {
			return nil, fmt.Errorf("%w: slot %d has dimension %d, expected %d",
				domain.ErrDimensionMismatch, i, len(v), idx.dimension)
		}
	}
	return idx, nil
}

// Search returns the min(k, Len()) slots closest to query, ordered by
// ascending distance with ties broken by lower slot.
func (idx *FlatIndex) Search(query domain.Embedding, k int) ([]domain.Neighbor, error) {
	if len(idx.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, expected %d",
			domain.ErrDimensionMismatch, len(query), idx.dimension)
	}

	neighbors := make([]domain.Neighbor, len(idx.vectors))
	for slot, v := range idx.vectors {
		neighbors[slot] = domain.Neighbor{Slot: slot, Distance: squaredL2(query, v)}
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Slot < neighbors[j].Slot
	})

	if k > len(neighbors) {
		k = len(neighbors)
	}
	return neighbors[:k], nil
}

func (idx *FlatIndex) Len() int {
	return len(idx.vectors)
}

func (idx *FlatIndex) Dimension() int {
	return idx.dimension
}

func squaredL2(a, b domain.Embedding) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
