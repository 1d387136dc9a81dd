package embedding

import (
	"fmt"
	"log/slog"

	"docrag/config"
	"docrag/internal/port"
)

const (
	defaultLocalDimension = 384
	defaultOpenAIModel    = "text-embedding-3-small"

	// all-minilm is the sentence-transformers all-MiniLM-L6-v2 model.
	defaultOllamaModel = "all-minilm"
)

// New builds the process-wide embedder described by cfg. Remote providers
// are wrapped in a GuardedEmbedder. The local provider hashes word and
// character features and needs no model or network.
func New(cfg config.EmbeddingConfig, log *slog.Logger) (port.Embedder, error) {
	switch cfg.Provider {
	case "local", "":
		dim := cfg.Dimension
		if dim <= 0 {
			dim = defaultLocalDimension
		}
		return NewHashEmbedder(dim), nil
	case "openai":
		emb, err := NewOpenAIEmbedder(cfg.APIKeyEnv, modelOr(cfg.Model, defaultOpenAIModel), cfg.BaseURL, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		return NewGuardedEmbedder(emb, cfg.RequestsPerMinute, log), nil
	case "ollama":
		return NewGuardedEmbedder(NewOllamaEmbedder(modelOr(cfg.Model, defaultOllamaModel), cfg.BaseURL, cfg.BatchSize), cfg.RequestsPerMinute, log), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

func modelOr(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}
