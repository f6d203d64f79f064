package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/JuanPabloGaviria/zoom-middleware/internal/pipeline"
)

type stubStrategy struct {
	name  string
	facts []Fact
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Extract(_ context.Context, _ string) ([]Fact, error) {
	s.calls++
	return s.facts, s.err
}

func TestChainReturnsFirstNonEmptyResult(t *testing.T) {
	primary := &stubStrategy{name: "primary", facts: []Fact{{Character: "Rex", Task: "walk cycle"}}}
	fallback := &stubStrategy{name: "fallback", facts: []Fact{{Character: "Luna", Task: "blink"}}}

	facts, err := NewChain(primary, fallback).Extract(context.Background(), "/tmp/rec.m4a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 1 || facts[0].Character != "Rex" {
		t.Fatalf("expected primary result, got %+v", facts)
	}
	if fallback.calls != 0 {
		t.Error("fallback ran even though primary succeeded")
	}
}

func TestChainFallsBackOnError(t *testing.T) {
	primary := &stubStrategy{name: "primary", err: errors.New("service unavailable")}
	fallback := &stubStrategy{name: "fallback", facts: []Fact{{Character: "Luna", Task: "blink"}}}

	facts, err := NewChain(primary, fallback).Extract(context.Background(), "/tmp/rec.m4a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 1 || facts[0].Character != "Luna" {
		t.Fatalf("expected fallback result, got %+v", facts)
	}
}

func TestChainAllErrorsSurfacesLast(t *testing.T) {
	first := &stubStrategy{name: "first", err: errors.New("first down")}
	lastErr := errors.New("second down")
	second := &stubStrategy{name: "second", err: lastErr}

	facts, err := NewChain(first, second).Extract(context.Background(), "/tmp/rec.m4a")
	if facts != nil {
		t.Errorf("expected no facts, got %+v", facts)
	}
	var xerr *pipeline.ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if !errors.Is(err, lastErr) {
		t.Errorf("expected last strategy error wrapped, got %v", err)
	}
}

func TestChainEmptyButCleanIsNotAnError(t *testing.T) {
	erroring := &stubStrategy{name: "erroring", err: errors.New("down")}
	empty := &stubStrategy{name: "empty"}

	facts, err := NewChain(erroring, empty).Extract(context.Background(), "/tmp/rec.m4a")
	if err != nil {
		t.Fatalf("clean empty run must not error, got %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("expected no facts, got %+v", facts)
	}
}

func TestChainNoStrategies(t *testing.T) {
	facts, err := NewChain().Extract(context.Background(), "/tmp/rec.m4a")
	if err != nil || facts != nil {
		t.Errorf("empty chain: expected (nil, nil), got (%+v, %v)", facts, err)
	}
}
