// Package extract derives structured character/task facts from a recorded
// meeting. An ordered chain of strategies is tried until one produces a
// non-empty validated result; finding nothing is a normal outcome, not an
// error.
package extract

import (
	"log/slog"
	"strings"
)

// Fact is one actionable item extracted from a meeting: a task for a
// character, attributed to a project.
type Fact struct {
	Project    string  `json:"project"`
	Character  string  `json:"character"`
	Task       string  `json:"task"`
	Context    string  `json:"context"`
	Confidence float64 `json:"confidence"`
}

// normalizeFacts validates candidate facts against the transcript they were
// derived from and fills defaults. A character name that does not literally
// appear in the source text is treated as a hallucination and dropped.
func normalizeFacts(facts []Fact, transcript, defaultProject string) []Fact {
	lower := strings.ToLower(transcript)
	out := make([]Fact, 0, len(facts))
	for _, f := range facts {
		f.Character = strings.TrimSpace(f.Character)
		f.Task = strings.TrimSpace(f.Task)
		if f.Character == "" || f.Task == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(f.Character)) {
			slog.Warn("extract: character not present in transcript, dropping", "character", f.Character)
			continue
		}
		if f.Project == "" {
			f.Project = defaultProject
		}
		if f.Confidence < 0 {
			f.Confidence = 0
		}
		if f.Confidence > 1 {
			f.Confidence = 1
		}
		out = append(out, f)
	}
	return out
}
