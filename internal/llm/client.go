// Package llm turns a meeting transcript into candidate facts by calling a
// messages-style language model API. It returns the model's raw JSON; schema
// validation happens in the extraction strategy that owns the output.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const prompt = `You are reviewing an animation production meeting transcript.
List every task assigned to a character. Respond with only a JSON array of
objects with fields: project, character, task, context, confidence (0 to 1).
Use an empty array if no tasks were assigned.`

type Client struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

func NewClient(endpoint, apiKey, model string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Interpret sends the transcript to the model and returns the JSON payload of
// its reply.
func (c *Client) Interpret(ctx context.Context, transcript string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, errors.New("llm api key not configured")
	}

	body, _ := json.Marshal(map[string]any{
		"model":      c.model,
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": prompt + "\n\nTranscript:\n" + transcript},
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read llm response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm returned %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode llm response: %w", err)
	}
	for _, block := range out.Content {
		if block.Type == "text" {
			return []byte(stripFences(block.Text)), nil
		}
	}
	return nil, errors.New("llm response has no text content")
}

// stripFences removes a markdown code fence the model sometimes wraps its
// JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
