package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func messagesResponse(text string) map[string]any {
	return map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	}
}

func TestInterpretReturnsTextContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key-1" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing version header")
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "test-model" {
			t.Errorf("model = %v", body["model"])
		}
		json.NewEncoder(w).Encode(messagesResponse(`[{"character":"Rex","task":"walk cycle"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", "test-model")
	raw, err := c.Interpret(context.Background(), "Rex needs a walk cycle")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var facts []map[string]string
	if err := json.Unmarshal(raw, &facts); err != nil {
		t.Fatalf("reply is not JSON: %v", err)
	}
	if len(facts) != 1 || facts[0]["character"] != "Rex" {
		t.Errorf("unexpected reply: %s", raw)
	}
}

func TestInterpretStripsCodeFences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(messagesResponse("```json\n[{\"character\":\"Rex\",\"task\":\"walk\"}]\n```"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", "test-model")
	raw, err := c.Interpret(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var facts []map[string]string
	if err := json.Unmarshal(raw, &facts); err != nil {
		t.Fatalf("fenced reply not unwrapped: %v (%s)", err, raw)
	}
}

func TestInterpretErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", "test-model")
	if _, err := c.Interpret(context.Background(), "transcript"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestInterpretNoTextContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"content": []map[string]string{{"type": "tool_use"}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", "test-model")
	if _, err := c.Interpret(context.Background(), "transcript"); err == nil {
		t.Fatal("expected error for reply without text block")
	}
}

func TestInterpretWithoutKey(t *testing.T) {
	c := NewClient("http://localhost", "", "test-model")
	if _, err := c.Interpret(context.Background(), "transcript"); err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"[1]", "[1]"},
		{"```json\n[1]\n```", "[1]"},
		{"```\n[1]\n```", "[1]"},
		{"  [1]  ", "[1]"},
	}
	for _, tc := range cases {
		if got := stripFences(tc.in); got != tc.want {
			t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
