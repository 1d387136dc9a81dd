package extract

import (
	"bytes"
	"fmt"
	"iter"
	"os"

	"github.com/ledongthuc/pdf"

	"docrag/internal/domain"
)

// PDF extracts plain text from PDF documents page by page.
type PDF struct{}

func NewPDF() *PDF {
	return &PDF{}
}

func (PDF) Pages(path string) (iter.Seq[domain.Page], error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	return func(yield func(domain.Page) bool) {
		for i := 1; i <= reader.NumPage(); i++ {
			if !yield(pdfPage(reader, i)) {
				return
			}
		}
	}, nil
}

// pdfPage extracts a single page. Malformed content streams can panic
// inside the parser; that failure stays local to the page.
func pdfPage(reader *pdf.Reader, num int) (page domain.Page) {
	page.Number = num
	defer func() {
		if r := recover(); r != nil {
			page = domain.Page{Number: num, Err: fmt.Errorf("page %d: %v", num, r)}
		}
	}()

	p := reader.Page(num)
	if p.V.IsNull() {
		return page
	}

	fonts := make(map[string]*pdf.Font)
	text, err := p.GetPlainText(fonts)
	if err != nil {
		page.Err = fmt.Errorf("page %d: %w", num, err)
		return page
	}
	page.Text = text
	return page
}
