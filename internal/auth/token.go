// Package auth obtains and caches the Zoom server-to-server OAuth credential
// used for both the websocket handshake and recording downloads.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/JuanPabloGaviria/zoom-middleware/internal/pipeline"
)

// leeway is subtracted from the reported lifetime so a token is refreshed
// before it actually expires, tolerating clock skew and in-flight requests.
const leeway = 60 * time.Second

type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	AccountID    string
	Timeout      time.Duration
}

// tokenSource implements oauth2.TokenSource against Zoom's account
// credentials grant: POST with a basic auth header built from the client
// id/secret, returning {access_token, expires_in}.
type tokenSource struct {
	cfg    Config
	client *http.Client
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	form := url.Values{
		"grant_type": {"account_credentials"},
		"account_id": {s.cfg.AccountID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build token request: %v", pipeline.ErrAuth, err)
	}
	req.SetBasicAuth(s.cfg.ClientID, s.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token endpoint unreachable: %v", pipeline.ErrAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read token response: %v", pipeline.ErrAuth, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: token endpoint returned %d: %s", pipeline.ErrAuth, resp.StatusCode, body)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", pipeline.ErrAuth, err)
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("%w: token endpoint returned no token", pipeline.ErrAuth)
	}

	return &oauth2.Token{
		AccessToken: payload.AccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - leeway),
	}, nil
}

// Provider hands out a cached bearer token, refreshing it before expiry.
// The oauth2.ReuseTokenSource wrapper serializes refreshes, so concurrent
// callers during an in-flight refresh share its result instead of each
// hitting the token endpoint.
type Provider struct {
	source oauth2.TokenSource
}

func NewProvider(cfg Config) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	src := &tokenSource{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
	return &Provider{source: oauth2.ReuseTokenSource(nil, src)}
}

// Token returns a currently valid bearer token.
func (p *Provider) Token() (string, error) {
	tok, err := p.source.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
