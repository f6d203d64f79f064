// Package media downloads recording files and prepares them for
// transcription. The processor depends only on the Store interface; tests
// inject a fake.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Store is the media acquisition capability: fetch a remote artifact to a
// local path, convert it for downstream consumption, release it when done.
type Store interface {
	Fetch(ctx context.Context, url, token string) (string, error)
	Convert(ctx context.Context, path string) (string, error)
	Cleanup(paths ...string)
}

// Downloader is the production Store: HTTP download into a scratch directory
// and ffmpeg conversion to mono 16kHz WAV, which every transcription service
// accepts.
type Downloader struct {
	dir    string
	ffmpeg string
	client *http.Client
}

func NewDownloader(dir, ffmpegPath string) *Downloader {
	return &Downloader{
		dir:    dir,
		ffmpeg: ffmpegPath,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (d *Downloader) Fetch(ctx context.Context, url, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned %d", resp.StatusCode)
	}

	f, err := os.CreateTemp(d.dir, "recording-*"+extension(url))
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		// Leave the partial file for Cleanup; the caller releases it either way.
		return f.Name(), fmt.Errorf("write recording: %w", err)
	}
	return f.Name(), nil
}

func (d *Downloader) Convert(ctx context.Context, path string) (string, error) {
	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".wav"
	cmd := exec.CommandContext(ctx, d.ffmpeg, "-y", "-i", path, "-ar", "16000", "-ac", "1", out)
	if raw, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("convert %s: %w: %s", filepath.Base(path), err, raw)
	}
	return out, nil
}

func (d *Downloader) Cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Warn("media: cleanup failed", "path", p, "error", err)
		}
	}
}

func extension(url string) string {
	base := url
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	if ext := filepath.Ext(base); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".m4a"
}
