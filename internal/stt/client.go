// Package stt talks to the hosted speech-to-text service: upload the local
// audio file, submit a transcription job, and poll until it settles.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client

	pollInterval time.Duration
	maxPolls     int
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:     endpoint,
		apiKey:       apiKey,
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: 3 * time.Second,
		maxPolls:     100,
	}
}

// Transcribe uploads the file and waits for the finished transcript.
func (c *Client) Transcribe(ctx context.Context, mediaPath string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("speech api key not configured")
	}

	audioURL, err := c.upload(ctx, mediaPath)
	if err != nil {
		return "", err
	}

	jobID, err := c.submit(ctx, audioURL)
	if err != nil {
		return "", err
	}

	return c.poll(ctx, jobID)
}

func (c *Client) upload(ctx context.Context, mediaPath string) (string, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return "", fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/upload", f)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if out.UploadURL == "" {
		return "", errors.New("upload returned no url")
	}
	return out.UploadURL, nil
}

func (c *Client) submit(ctx context.Context, audioURL string) (string, error) {
	body, _ := json.Marshal(map[string]any{"audio_url": audioURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build transcript request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("submit transcript: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("transcript job has no id")
	}
	return out.ID, nil
}

func (c *Client) poll(ctx context.Context, jobID string) (string, error) {
	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/transcript/"+jobID, nil)
		if err != nil {
			return "", fmt.Errorf("build poll request: %w", err)
		}
		req.Header.Set("Authorization", c.apiKey)

		var out struct {
			Status string `json:"status"`
			Text   string `json:"text"`
			Error  string `json:"error"`
		}
		if err := c.do(req, &out); err != nil {
			return "", fmt.Errorf("poll transcript: %w", err)
		}

		switch out.Status {
		case "completed":
			return out.Text, nil
		case "error":
			return "", fmt.Errorf("transcription failed: %s", out.Error)
		}
	}
	return "", errors.New("transcription did not finish in time")
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("speech service returned %d: %s", resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}
