package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Transcriber converts a local media file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (string, error)
}

// Interpreter converts a transcript into raw JSON facts. The strategy, not
// the interpreter, is responsible for validating that JSON.
type Interpreter interface {
	Interpret(ctx context.Context, transcript string) ([]byte, error)
}

// factsSchema constrains interpreter output before any fact is accepted.
// Language models occasionally return prose or half-formed objects; those are
// rejected here rather than propagated downstream.
const factsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["character", "task"],
    "properties": {
      "project": {"type": "string"},
      "character": {"type": "string", "minLength": 1},
      "task": {"type": "string", "minLength": 1},
      "context": {"type": "string"},
      "confidence": {"type": "number", "minimum": 0, "maximum": 1}
    }
  }
}`

var compiledFactsSchema = jsonschema.MustCompileString("facts.json", factsSchema)

// LLMStrategy is the managed transcription-plus-interpretation path: speech
// to text via an external transcription service, then text to facts via a
// language model, with schema and hallucination checks on the way out.
type LLMStrategy struct {
	transcriber    Transcriber
	interpreter    Interpreter
	defaultProject string
}

func NewLLMStrategy(t Transcriber, i Interpreter, defaultProject string) *LLMStrategy {
	return &LLMStrategy{transcriber: t, interpreter: i, defaultProject: defaultProject}
}

func (s *LLMStrategy) Name() string { return "transcribe+interpret" }

func (s *LLMStrategy) Extract(ctx context.Context, mediaPath string) ([]Fact, error) {
	transcript, err := s.transcriber.Transcribe(ctx, mediaPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, nil
	}

	raw, err := s.interpreter.Interpret(ctx, transcript)
	if err != nil {
		return nil, fmt.Errorf("interpret: %w", err)
	}

	facts, err := decodeFacts(raw)
	if err != nil {
		return nil, fmt.Errorf("interpreter output rejected: %w", err)
	}
	return normalizeFacts(facts, transcript, s.defaultProject), nil
}

func decodeFacts(raw []byte) ([]Fact, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if err := compiledFactsSchema.Validate(v); err != nil {
		return nil, err
	}
	var facts []Fact
	if err := json.Unmarshal(raw, &facts); err != nil {
		return nil, err
	}
	return facts, nil
}
