package extract

import (
	"context"
	"testing"
)

func TestPatternStrategyFindsTaskPhrasings(t *testing.T) {
	transcript := "Rex needs a new walk cycle. Please fix the blink timing for Luna. Rex needs a new walk cycle."
	s := NewPatternStrategy(stubTranscriber{text: transcript}, "General")

	facts, err := s.Extract(context.Background(), "/tmp/rec.m4a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 deduplicated facts, got %d: %+v", len(facts), facts)
	}

	byChar := map[string]Fact{}
	for _, f := range facts {
		byChar[f.Character] = f
	}
	if _, ok := byChar["Rex"]; !ok {
		t.Error("missed 'Rex needs ...' phrasing")
	}
	if _, ok := byChar["Luna"]; !ok {
		t.Error("missed 'fix ... for Luna' phrasing")
	}
	for _, f := range facts {
		if f.Confidence != patternConfidence {
			t.Errorf("pattern fact %q claims confidence %v", f.Character, f.Confidence)
		}
		if f.Project != "General" {
			t.Errorf("pattern fact %q missing default project: %q", f.Character, f.Project)
		}
	}
}

func TestPatternStrategyNothingFound(t *testing.T) {
	s := NewPatternStrategy(stubTranscriber{text: "we talked about the weather"}, "General")
	facts, err := s.Extract(context.Background(), "/tmp/rec.m4a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("expected no facts, got %+v", facts)
	}
}
