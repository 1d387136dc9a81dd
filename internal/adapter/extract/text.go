package extract

import (
	"iter"
	"os"
	"strings"

	"docrag/internal/domain"
)

// Text reads plain-text documents. Form feeds separate pages.
type Text struct{}

func NewText() *Text {
	return &Text{}
}

func (Text) Pages(path string) (iter.Seq[domain.Page], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := string(data)
	return func(yield func(domain.Page) bool) {
		if content == "" {
			return
		}
		for i, text := range strings.Split(content, "\f") {
			if !yield(domain.Page{Number: i + 1, Text: text}) {
				return
			}
		}
	}, nil
}
