package extract

import (
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// Registry dispatches to an extractor by file extension.
type Registry struct {
	byExt map[string]port.Extractor
}

// NewRegistry returns a registry for PDF, spreadsheet, plain text and
// markdown files.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]port.Extractor)}
	r.Register(NewPDF(), ".pdf")
	r.Register(NewSpreadsheet(), ".xlsx")
	r.Register(NewText(), ".txt", ".text", ".md", ".markdown")
	return r
}

func (r *Registry) Register(ex port.Extractor, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = ex
	}
}

func (r *Registry) Pages(path string) (iter.Seq[domain.Page], error) {
	ext := strings.ToLower(filepath.Ext(path))
	ex, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported document type %q", ext)
	}
	return ex.Pages(path)
}

// Document concatenates the text of every page of path in order, each page
// followed by a newline. Pages that fail or yield no text are skipped.
func Document(ex port.Extractor, path string, log *slog.Logger) (string, error) {
	pages, err := ex.Pages(path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for page := range pages {
		if page.Err != nil {
			if log != nil {
				log.Warn("skipping page", "path", path, "page", page.Number, "error", page.Err)
			}
			continue
		}
		if page.Text == "" {
			continue
		}
		sb.WriteString(page.Text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
