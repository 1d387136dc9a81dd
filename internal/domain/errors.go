package domain

import "errors"

var (
	// ErrInvalidChunking is returned for a window geometry that cannot advance.
	ErrInvalidChunking = errors.New("chunk overlap must be smaller than chunk size")

	ErrNoChunks          = errors.New("no text extracted from any document")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	ErrCorpusNotFound = errors.New("corpus not found")
	ErrCorpusCorrupt  = errors.New("corpus is corrupt")

	// ErrQueryEmbedding marks a retrieval that failed before search ran.
	ErrQueryEmbedding = errors.New("failed to embed query")
)

// ErrModelMismatch is returned when a corpus is opened with an embedder
// other than the one that built it; their vectors are not comparable.
var ErrModelMismatch = errors.New("embedding model does not match corpus")
