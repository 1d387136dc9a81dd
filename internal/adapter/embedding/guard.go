package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/port"
)

// ErrUnavailable is returned while the circuit to a failing embedding
// endpoint is open.
var ErrUnavailable = errors.New("embedding service unavailable")

// GuardedEmbedder rate limits calls to a remote embedder and stops calling
// it for a while once most recent calls have failed.
type GuardedEmbedder struct {
	next    port.Embedder
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewGuardedEmbedder wraps next. requestsPerMinute <= 0 disables rate
// limiting.
func NewGuardedEmbedder(next port.Embedder, requestsPerMinute int, log *slog.Logger) *GuardedEmbedder {
	log = logger.OrDiscard(log)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embeddings",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), max(1, requestsPerMinute/10))
	}

	return &GuardedEmbedder{next: next, breaker: breaker, limiter: limiter}
}

func (g *GuardedEmbedder) Embed(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Embed(ctx, texts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}
	return result.([]domain.Embedding), nil
}

func (g *GuardedEmbedder) Dimension() int {
	return g.next.Dimension()
}

func (g *GuardedEmbedder) ModelName() string {
	return g.next.ModelName()
}
