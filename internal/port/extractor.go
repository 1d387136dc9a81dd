package port

import (
	"iter"

	"docrag/internal/domain"
)

// Extractor yields the pages of a document lazily, in page order.
type Extractor interface {
	Pages(path string) (iter.Seq[domain.Page], error)
}
