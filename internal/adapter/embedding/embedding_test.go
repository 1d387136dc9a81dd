package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"docrag/config"
	"docrag/internal/domain"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)

	a, err := e.Embed(context.Background(), []string{"systematic investment plan"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(context.Background(), []string{"systematic investment plan"})
	if err != nil {
		t.Fatal(err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("embedding differs at %d: %f vs %f", i, a[0][i], b[0][i])
		}
	}
}

func TestHashEmbedderUnitLength(t *testing.T) {
	e := NewHashEmbedder(128)

	vecs, err := e.Embed(context.Background(), []string{"net asset value", "", "!!!"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 128 {
			t.Errorf("vector %d has dimension %d", i, len(v))
		}
	}

	var norm float64
	for _, x := range vecs[0] {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", norm)
	}
	for _, x := range vecs[1] {
		if x != 0 {
			t.Fatal("expected zero vector for empty text")
		}
	}
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder(256)

	vecs, _ := e.Embed(context.Background(), []string{
		"equity mutual funds invest in stocks",
		"mutual funds investing in equity stocks",
		"the weather in the mountains is cold",
	})

	near := sqDist(vecs[0], vecs[1])
	far := sqDist(vecs[0], vecs[2])
	if near >= far {
		t.Errorf("expected related texts closer: near=%f far=%f", near, far)
	}
}

func TestHashEmbedderEmptyInput(t *testing.T) {
	vecs, err := NewHashEmbedder(8).Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("expected nil, nil; got %v, %v", vecs, err)
	}
}

func sqDist(a, b domain.Embedding) float64 {
	var d float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		d += diff * diff
	}
	return d
}

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func newEmbeddingsServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)

		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// Return vectors in reverse order to exercise index mapping.
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(req.Input[i])), 1},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}))
}

func TestOpenAIEmbedderBatches(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingsServer(t, &calls)
	defer srv.Close()

	t.Setenv("TEST_EMBED_KEY", "sk-test")
	e, err := NewOpenAIEmbedder("TEST_EMBED_KEY", "text-embedding-3-small", srv.URL, 2)
	if err != nil {
		t.Fatal(err)
	}

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vecs))
	}
	for i, v := range vecs {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 batched requests, got %d", got)
	}
	if e.Dimension() != 1536 {
		t.Errorf("expected known dimension 1536, got %d", e.Dimension())
	}
}

func TestOpenAIEmbedderMissingKey(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "")
	if _, err := NewOpenAIEmbedder("TEST_EMBED_KEY", "text-embedding-3-small", "", 0); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestOpenAIEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom","type":"server_error"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nomic-embed-text", srv.URL, 0)
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("expected error from failing server")
	}
}

func TestNewFromConfig(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: "local", Dimension: 32}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimension() != 32 || e.ModelName() != "local-hash-32" {
		t.Errorf("unexpected embedder %s/%d", e.ModelName(), e.Dimension())
	}

	if _, err := New(config.EmbeddingConfig{Provider: "sentencepiece"}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}

	remote, err := New(config.EmbeddingConfig{Provider: "ollama", Model: "nomic-embed-text"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := remote.(*GuardedEmbedder); !ok {
		t.Errorf("expected remote embedder to be guarded, got %T", remote)
	}
	if remote.Dimension() != 768 || remote.ModelName() != "nomic-embed-text" {
		t.Errorf("unexpected embedder %s/%d", remote.ModelName(), remote.Dimension())
	}
}

type flakyEmbedder struct {
	calls int
	err   error
}

func (f *flakyEmbedder) Embed(_ context.Context, texts []string) ([]domain.Embedding, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Embedding, len(texts))
	for i := range texts {
		out[i] = domain.Embedding{1}
	}
	return out, nil
}

func (f *flakyEmbedder) Dimension() int    { return 1 }
func (f *flakyEmbedder) ModelName() string { return "flaky" }

func TestGuardedEmbedderPassesThrough(t *testing.T) {
	next := &flakyEmbedder{}
	g := NewGuardedEmbedder(next, 0, nil)

	vecs, err := g.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 || next.calls != 1 {
		t.Errorf("expected 2 vectors from 1 call, got %d from %d", len(vecs), next.calls)
	}
	if g.ModelName() != "flaky" || g.Dimension() != 1 {
		t.Errorf("guard should report the wrapped model, got %s/%d", g.ModelName(), g.Dimension())
	}
}

func TestGuardedEmbedderOpensCircuit(t *testing.T) {
	boom := errors.New("connection refused")
	next := &flakyEmbedder{err: boom}
	g := NewGuardedEmbedder(next, 0, nil)

	for i := 0; i < 3; i++ {
		if _, err := g.Embed(context.Background(), []string{"q"}); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected wrapped failure, got %v", i, err)
		}
	}

	_, err := g.Embed(context.Background(), []string{"q"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once the circuit is open, got %v", err)
	}
	if next.calls != 3 {
		t.Errorf("open circuit should not reach the endpoint, got %d calls", next.calls)
	}
}

func TestGuardedEmbedderHonoursContext(t *testing.T) {
	g := NewGuardedEmbedder(&flakyEmbedder{}, 1, nil)
	// The first request consumes the only token.
	if _, err := g.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Embed(ctx, []string{"b"}); err == nil {
		t.Error("expected error for cancelled context while rate limited")
	}
}

func TestNewDefaultsRemoteModel(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     string
		dim      int
	}{
		{"ollama", "", "all-minilm", 384},
		{"ollama", "mxbai-embed-large", "mxbai-embed-large", 1024},
		{"openai", "", "text-embedding-3-small", 1536},
	}
	t.Setenv("TEST_EMBED_KEY", "sk-test")
	for _, tt := range tests {
		e, err := New(config.EmbeddingConfig{Provider: tt.provider, Model: tt.model, APIKeyEnv: "TEST_EMBED_KEY"}, nil)
		if err != nil {
			t.Fatalf("%s/%q: %v", tt.provider, tt.model, err)
		}
		if e.ModelName() != tt.want || e.Dimension() != tt.dim {
			t.Errorf("%s/%q: got %s/%d, want %s/%d", tt.provider, tt.model, e.ModelName(), e.Dimension(), tt.want, tt.dim)
		}
	}
}
