package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/port"
)

// ProgressFunc is called after each embedding batch.
type ProgressFunc func(embedded, total int)

// IngestOptions tunes an IngestUseCase.
type IngestOptions struct {
	BatchSize int
	Logger    *slog.Logger
	Now       func() time.Time
}

// IngestUseCase builds a corpus from a list of documents and persists it.
type IngestUseCase struct {
	resolver  *fs.Resolver
	extractor port.Extractor
	chunker   *chunker.WindowChunker
	embedder  port.Embedder
	store     port.CorpusStore
	batchSize int
	log       *slog.Logger
	now       func() time.Time
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	resolver *fs.Resolver,
	extractor port.Extractor,
	chunker *chunker.WindowChunker,
	embedder port.Embedder,
	store port.CorpusStore,
	opts IngestOptions,
) *IngestUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &IngestUseCase{
		resolver:  resolver,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		batchSize: opts.BatchSize,
		log:       logger.OrDiscard(opts.Logger),
		now:       opts.Now,
	}
}

// SkippedDocument records a document that contributed no chunks.
type SkippedDocument struct {
	Path   string
	Reason string
}

// IngestResult contains the results of an ingestion run.
type IngestResult struct {
	CorpusID  string
	Model     string
	Dimension int
	Documents int
	Chunks    int
	PerSource map[string]int
	Skipped   []SkippedDocument
}

// Ingest extracts, chunks and embeds every document named by sources and
// replaces the stored corpus with the result. Missing or unreadable
// documents are skipped; a run that yields no chunks at all fails with
// domain.ErrNoChunks and leaves the previous corpus in place.
func (u *IngestUseCase) Ingest(ctx context.Context, sources []string, progress ProgressFunc) (*IngestResult, error) {
	paths, err := u.resolver.Resolve(sources)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve documents: %w", err)
	}

	result := &IngestResult{PerSource: make(map[string]int)}
	var chunks []domain.Chunk
	owners := make(map[string]string)

	for _, path := range paths {
		docChunks, reason := u.ingestDocument(path)
		if reason != "" {
			u.log.Warn("skipping document", "path", path, "reason", reason)
			result.Skipped = append(result.Skipped, SkippedDocument{Path: path, Reason: reason})
			continue
		}

		u.log.Info("processed document", "path", path, "chunks", len(docChunks))
		name := filepath.Base(path)
		if owner, ok := owners[name]; ok && owner != path {
			u.log.Warn("documents share a source name; their chunks are indistinguishable by source",
				"source", name, "path", path, "other", owner)
		} else {
			owners[name] = path
		}
		chunks = append(chunks, docChunks...)
		result.PerSource[name] += len(docChunks)
		result.Documents++
	}

	if len(chunks) == 0 {
		return nil, domain.ErrNoChunks
	}
	u.log.Info("chunked documents", "documents", result.Documents, "chunks", len(chunks))

	vectors, err := u.embedAll(ctx, chunks, progress)
	if err != nil {
		return nil, err
	}

	index, err := store.NewFlatIndex(vectors)
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, len(chunks))
	for i := range chunks {
		records[i] = domain.Record{Slot: i, Chunk: chunks[i], Vector: vectors[i]}
	}

	corpus := domain.Corpus{
		Info: domain.CorpusInfo{
			ID:           uuid.NewString(),
			Model:        u.embedder.ModelName(),
			Dimension:    index.Dimension(),
			Size:         len(records),
			ChunkSize:    u.chunker.Size(),
			ChunkOverlap: u.chunker.Overlap(),
			Sources:      result.PerSource,
			CreatedAt:    u.now().UTC(),
		},
		Records: records,
	}
	if err := u.store.Save(corpus); err != nil {
		return nil, fmt.Errorf("failed to persist corpus: %w", err)
	}

	result.CorpusID = corpus.Info.ID
	result.Model = corpus.Info.Model
	result.Dimension = corpus.Info.Dimension
	result.Chunks = len(records)
	return result, nil
}

// ingestDocument returns the chunks of one document, or a non-empty reason
// why the document was skipped.
func (u *IngestUseCase) ingestDocument(path string) ([]domain.Chunk, string) {
	if !fs.Exists(path) {
		return nil, "file not found"
	}

	text, err := extract.Document(u.extractor, path, u.log)
	if err != nil {
		return nil, err.Error()
	}
	if strings.TrimSpace(text) == "" {
		return nil, "no extractable text"
	}

	return u.chunker.Chunk(path, text), ""
}

// embedAll embeds chunk texts in batches, preserving order.
func (u *IngestUseCase) embedAll(ctx context.Context, chunks []domain.Chunk, progress ProgressFunc) ([]domain.Embedding, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors := make([]domain.Embedding, 0, len(texts))
	for i := 0; i < len(texts); i += u.batchSize {
		end := min(i+u.batchSize, len(texts))

		batch, err := u.embedder.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch failed: %w", err)
		}
		if len(batch) != end-i {
			return nil, fmt.Errorf("%w: embedder returned %d vectors for %d chunks",
				domain.ErrDimensionMismatch, len(batch), end-i)
		}
		vectors = append(vectors, batch...)

		if progress != nil {
			progress(len(vectors), len(texts))
		}
	}
	return vectors, nil
}
