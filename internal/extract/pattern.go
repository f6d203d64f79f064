package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// patternConfidence is assigned to regex-derived facts. The scan is reliable
// but blunt, so it never claims high confidence.
const patternConfidence = 0.5

// defaultPatterns cover the phrasings that come up in recording reviews:
// "Rex needs a new walk cycle", "fix the blink timing for Luna".
var defaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?P<character>[A-Z][a-zA-Z]+)\s+(?i:needs|requires|is missing|should get)\s+(?P<task>[^.!?\n]+)`),
	regexp.MustCompile(`(?i:fix|update|animate|rig|model|redo)\s+(?P<task>[^.!?\n]+?)\s+for\s+(?P<character>[A-Z][a-zA-Z]+)`),
}

// PatternStrategy is the cheap fallback: transcribe, then scan the transcript
// with fixed patterns. No external interpretation service involved.
type PatternStrategy struct {
	transcriber    Transcriber
	patterns       []*regexp.Regexp
	defaultProject string
}

func NewPatternStrategy(t Transcriber, defaultProject string) *PatternStrategy {
	return &PatternStrategy{
		transcriber:    t,
		patterns:       defaultPatterns,
		defaultProject: defaultProject,
	}
}

func (s *PatternStrategy) Name() string { return "pattern-scan" }

func (s *PatternStrategy) Extract(ctx context.Context, mediaPath string) ([]Fact, error) {
	transcript, err := s.transcriber.Transcribe(ctx, mediaPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	return normalizeFacts(s.scan(transcript), transcript, s.defaultProject), nil
}

func (s *PatternStrategy) scan(transcript string) []Fact {
	var facts []Fact
	seen := make(map[string]bool)
	for _, p := range s.patterns {
		charIdx := p.SubexpIndex("character")
		taskIdx := p.SubexpIndex("task")
		for _, match := range p.FindAllStringSubmatch(transcript, -1) {
			character := strings.TrimSpace(match[charIdx])
			task := strings.TrimSpace(match[taskIdx])
			if character == "" || task == "" {
				continue
			}
			key := strings.ToLower(character + "|" + task)
			if seen[key] {
				continue
			}
			seen[key] = true
			facts = append(facts, Fact{
				Character:  character,
				Task:       task,
				Context:    strings.TrimSpace(match[0]),
				Confidence: patternConfidence,
			})
		}
	}
	return facts
}
