package extract

import (
	"context"
	"log/slog"

	"github.com/JuanPabloGaviria/zoom-middleware/internal/pipeline"
)

// Strategy is one way of turning a media artifact into facts. Each strategy
// does its own transcription and interpretation internally and validates its
// own output.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, mediaPath string) ([]Fact, error)
}

// Chain tries strategies in priority order: richest service first, cheapest
// scan last.
type Chain struct {
	strategies []Strategy
}

func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Extract returns the first strategy's non-empty validated result. A strategy
// error moves the chain to the next strategy. If every strategy errors the
// last error is surfaced as an ExtractionError; if at least one ran cleanly
// but none found anything, the result is empty and nil; downstream treats
// "nothing to do" as a normal outcome.
func (c *Chain) Extract(ctx context.Context, mediaPath string) ([]Fact, error) {
	var lastErr error
	ranClean := false
	for _, s := range c.strategies {
		facts, err := s.Extract(ctx, mediaPath)
		if err != nil {
			lastErr = err
			slog.Warn("extract: strategy failed, falling back", "strategy", s.Name(), "error", err)
			continue
		}
		ranClean = true
		if len(facts) > 0 {
			slog.Info("extract: facts found", "strategy", s.Name(), "count", len(facts))
			return facts, nil
		}
		slog.Info("extract: strategy found nothing", "strategy", s.Name())
	}
	if !ranClean && lastErr != nil {
		return nil, &pipeline.ExtractionError{Err: lastErr}
	}
	return nil, nil
}
