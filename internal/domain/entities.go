package domain

import "time"

// Chunk is a bounded span of document text and the document it came from.
type Chunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Embedding is a dense vector representation of a piece of text.
type Embedding []float32

// Record binds one chunk to its embedding under an explicit slot.
type Record struct {
	Slot   int
	Chunk  Chunk
	Vector Embedding
}

// Page is one page of extracted document text. A page that failed to
// extract carries Err and no text.
type Page struct {
	Number int
	Text   string
	Err    error
}

// Neighbor is an index hit: a slot and its distance to the query.
type Neighbor struct {
	Slot     int
	Distance float64 // squared Euclidean
}

// ScoredChunk is a query result entry, a chunk with its slot and distance.
type ScoredChunk struct {
	Slot     int     `json:"slot"`
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}

// CorpusInfo describes one ingestion run.
type CorpusInfo struct {
	ID           string         `json:"id"`
	Model        string         `json:"model"`
	Dimension    int            `json:"dimension"`
	Size         int            `json:"size"`
	ChunkSize    int            `json:"chunk_size"`
	ChunkOverlap int            `json:"chunk_overlap"`
	Sources      map[string]int `json:"sources,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Corpus is the full record set produced by one ingestion run.
type Corpus struct {
	Info    CorpusInfo
	Records []Record
}

// Vectors returns the corpus vectors in slot order.
func (c *Corpus) Vectors() []Embedding {
	vectors := make([]Embedding, len(c.Records))
	for i, r := range c.Records {
		vectors[i] = r.Vector
	}
	return vectors
}
