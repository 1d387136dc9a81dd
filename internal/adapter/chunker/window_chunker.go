package chunker

import (
	"fmt"
	"path/filepath"
	"strings"

	"docrag/internal/domain"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 100
)

// WindowChunker splits text into fixed-length overlapping character windows.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", domain.ErrInvalidChunking, size, overlap)
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Split returns the trimmed, non-empty windows of text in order.
// Windows are measured in characters, not bytes.
func (c *WindowChunker) Split(text string) []string {
	runes := []rune(text)
	step := c.size - c.overlap

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		window := strings.TrimSpace(string(runes[start:end]))
		if window == "" {
			continue
		}
		out = append(out, window)
	}
	return out
}

// Chunk splits text and tags every piece with the base name of source.
func (c *WindowChunker) Chunk(source, text string) []domain.Chunk {
	name := filepath.Base(source)
	pieces := c.Split(text)
	chunks := make([]domain.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, domain.Chunk{Text: p, Source: name})
	}
	return chunks
}

func (c *WindowChunker) Size() int    { return c.size }
func (c *WindowChunker) Overlap() int { return c.overlap }
