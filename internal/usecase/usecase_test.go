package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/memstore"
	"docrag/internal/domain"
)

// letterEmbedder maps a text to the offset of its first letter from 'a',
// giving each chunk a predictable position on a line.
type letterEmbedder struct {
	err   error
	dims  func(i int) int
	calls atomic.Int32
}

func (e *letterEmbedder) Embed(_ context.Context, texts []string) ([]domain.Embedding, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([]domain.Embedding, len(texts))
	for i, t := range texts {
		dim := 1
		if e.dims != nil {
			dim = e.dims(i)
		}
		v := make(domain.Embedding, dim)
		v[0] = float32(t[0] - 'a')
		out[i] = v
	}
	return out, nil
}

func (e *letterEmbedder) Dimension() int    { return 1 }
func (e *letterEmbedder) ModelName() string { return "letters" }

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func mustChunker(t *testing.T, size, overlap int) *chunker.WindowChunker {
	t.Helper()
	chk, err := chunker.NewWindowChunker(size, overlap)
	if err != nil {
		t.Fatal(err)
	}
	return chk
}

func fsResolver() *fs.Resolver    { return fs.NewResolver(nil) }
func registry() *extract.Registry { return extract.NewRegistry() }

func newIngest(t *testing.T, emb *letterEmbedder, st *memstore.CorpusStore, batch int) *IngestUseCase {
	t.Helper()
	return NewIngestUseCase(fsResolver(), registry(), mustChunker(t, 10, 0), emb, st, IngestOptions{BatchSize: batch})
}

func twoDocs(t *testing.T) (string, string) {
	dir := t.TempDir()
	doc1 := writeDoc(t, dir, "doc1.txt", "aaaaaaaaaabbbbbbbbbbcccccccccc")
	doc2 := writeDoc(t, dir, "doc2.txt", "ddddddddddeeeeeeeeee")
	return doc1, doc2
}

func TestIngestTwoDocuments(t *testing.T) {
	doc1, doc2 := twoDocs(t)
	st := memstore.NewCorpusStore()

	var calls int
	result, err := newIngest(t, &letterEmbedder{}, st, 2).Ingest(context.Background(), []string{doc1, doc2}, func(done, total int) {
		calls++
		if total != 5 {
			t.Errorf("expected total 5, got %d", total)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Documents != 2 || result.Chunks != 5 {
		t.Errorf("expected 2 documents and 5 chunks, got %d and %d", result.Documents, result.Chunks)
	}
	if result.PerSource["doc1.txt"] != 3 || result.PerSource["doc2.txt"] != 2 {
		t.Errorf("unexpected per-source counts %v", result.PerSource)
	}
	if calls != 3 {
		t.Errorf("expected 3 progress callbacks, got %d", calls)
	}

	corpus, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(corpus.Records) != 5 || corpus.Info.Size != 5 {
		t.Fatalf("expected 5 records, got %d (info size %d)", len(corpus.Records), corpus.Info.Size)
	}

	wantSources := []string{"doc1.txt", "doc1.txt", "doc1.txt", "doc2.txt", "doc2.txt"}
	wantLetters := "abcde"
	for i, r := range corpus.Records {
		if r.Slot != i {
			t.Errorf("record %d has slot %d", i, r.Slot)
		}
		if r.Chunk.Source != wantSources[i] {
			t.Errorf("record %d: expected source %s, got %s", i, wantSources[i], r.Chunk.Source)
		}
		if r.Chunk.Text[0] != wantLetters[i] || r.Vector[0] != float32(i) {
			t.Errorf("record %d: chunk %q paired with vector %v", i, r.Chunk.Text, r.Vector)
		}
	}
	if corpus.Info.Model != "letters" || corpus.Info.Dimension != 1 || corpus.Info.ID == "" {
		t.Errorf("unexpected corpus info %+v", corpus.Info)
	}
	if corpus.Info.ChunkSize != 10 || corpus.Info.ChunkOverlap != 0 {
		t.Errorf("chunk geometry not recorded: %+v", corpus.Info)
	}
}

func TestIngestSkipsMissingDocument(t *testing.T) {
	doc1, _ := twoDocs(t)
	missing := filepath.Join(filepath.Dir(doc1), "Mutual Funds Database Expanded.pdf")
	st := memstore.NewCorpusStore()

	result, err := newIngest(t, &letterEmbedder{}, st, 0).Ingest(context.Background(), []string{missing, doc1}, nil)
	if err != nil {
		t.Fatalf("missing document should not abort ingestion: %v", err)
	}
	if result.Chunks != 3 {
		t.Errorf("expected 3 chunks, got %d", result.Chunks)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Path != missing {
		t.Errorf("expected missing document reported as skipped, got %+v", result.Skipped)
	}
}

func TestIngestSkipsEmptyAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	empty := writeDoc(t, dir, "blank.txt", "  \n\f \n")
	slides := writeDoc(t, dir, "deck.odp", "binary")
	doc := writeDoc(t, dir, "doc.md", "aaaaaaaaaa")
	st := memstore.NewCorpusStore()

	result, err := newIngest(t, &letterEmbedder{}, st, 0).Ingest(context.Background(), []string{empty, slides, doc}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Documents != 1 || len(result.Skipped) != 2 {
		t.Errorf("expected 1 document and 2 skipped, got %d and %+v", result.Documents, result.Skipped)
	}
}

func TestIngestNoChunksIsFatal(t *testing.T) {
	dir := t.TempDir()
	empty := writeDoc(t, dir, "blank.txt", "   ")
	st := memstore.NewCorpusStore()

	_, err := newIngest(t, &letterEmbedder{}, st, 0).Ingest(context.Background(),
		[]string{empty, filepath.Join(dir, "missing.pdf")}, nil)
	if !errors.Is(err, domain.ErrNoChunks) {
		t.Fatalf("expected ErrNoChunks, got %v", err)
	}
	if st.Saves() != 0 {
		t.Error("nothing should be persisted for an empty run")
	}
}

func TestIngestDimensionMismatchIsFatal(t *testing.T) {
	doc1, doc2 := twoDocs(t)
	st := memstore.NewCorpusStore()
	emb := &letterEmbedder{dims: func(i int) int { return 1 + i }}

	_, err := newIngest(t, emb, st, 10).Ingest(context.Background(), []string{doc1, doc2}, nil)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if st.Saves() != 0 {
		t.Error("nothing should be persisted after a dimension mismatch")
	}
}

func TestIngestEmbeddingFailure(t *testing.T) {
	doc1, _ := twoDocs(t)
	st := memstore.NewCorpusStore()
	boom := errors.New("model unavailable")

	_, err := newIngest(t, &letterEmbedder{err: boom}, st, 0).Ingest(context.Background(), []string{doc1}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected embedding error, got %v", err)
	}
	if st.Saves() != 0 {
		t.Error("nothing should be persisted after an embedding failure")
	}
}

func TestIngestWarnsOnSharedSourceName(t *testing.T) {
	root := t.TempDir()
	for _, sub := range []string{"2023", "2024"} {
		if err := os.Mkdir(filepath.Join(root, sub), 0755); err != nil {
			t.Fatal(err)
		}
	}
	older := writeDoc(t, filepath.Join(root, "2023"), "factsheet.txt", "aaaaaaaaaa")
	newer := writeDoc(t, filepath.Join(root, "2024"), "factsheet.txt", "bbbbbbbbbbcccccccccc")

	var logs bytes.Buffer
	st := memstore.NewCorpusStore()
	uc := NewIngestUseCase(fsResolver(), registry(), mustChunker(t, 10, 0), &letterEmbedder{}, st,
		IngestOptions{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	result, err := uc.Ingest(context.Background(), []string{older, newer}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.PerSource["factsheet.txt"] != 3 {
		t.Errorf("expected 3 chunks under factsheet.txt, got %v", result.PerSource)
	}
	if !strings.Contains(logs.String(), "share a source name") || !strings.Contains(logs.String(), "2024") {
		t.Errorf("expected a shared source name warning, got logs:\n%s", logs.String())
	}
}
