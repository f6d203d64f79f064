// Package taskboard is the client for the downstream project-management API
// (Trello-style): find-or-create a card per character, add comments and
// checklist items. The API enforces an undocumented per-second ceiling; a 429
// or a timeout is classified as throttled so the dispatcher retries it.
package taskboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/JuanPabloGaviria/zoom-middleware/internal/pipeline"
)

type Client struct {
	baseURL string
	key     string
	token   string
	listID  string
	client  *http.Client

	// cards caches card ids by character name so repeat facts for the same
	// character skip the lookup round-trip.
	cards *gocache.Cache
}

func NewClient(baseURL, key, token, listID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		token:   token,
		listID:  listID,
		client:  &http.Client{Timeout: 15 * time.Second},
		cards:   gocache.New(30*time.Minute, 10*time.Minute),
	}
}

// FindOrCreateCard returns the id of the card named after the character,
// creating it on the configured list if absent.
func (c *Client) FindOrCreateCard(ctx context.Context, name string) (string, error) {
	if id, ok := c.cards.Get(strings.ToLower(name)); ok {
		return id.(string), nil
	}

	var existing []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.get(ctx, "/lists/"+c.listID+"/cards", &existing); err != nil {
		return "", fmt.Errorf("list cards: %w", err)
	}
	for _, card := range existing {
		if strings.EqualFold(card.Name, name) {
			c.cards.SetDefault(strings.ToLower(name), card.ID)
			return card.ID, nil
		}
	}

	var created struct {
		ID string `json:"id"`
	}
	params := url.Values{"idList": {c.listID}, "name": {name}}
	if err := c.post(ctx, "/cards", params, &created); err != nil {
		return "", fmt.Errorf("create card: %w", err)
	}
	c.cards.SetDefault(strings.ToLower(name), created.ID)
	return created.ID, nil
}

// AddComment posts a comment on the card.
func (c *Client) AddComment(ctx context.Context, cardID, text string) error {
	params := url.Values{"text": {text}}
	if err := c.post(ctx, "/cards/"+cardID+"/actions/comments", params, nil); err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

// AddChecklistItem appends an item to the named checklist on the card,
// creating the checklist first if the card does not have it.
func (c *Client) AddChecklistItem(ctx context.Context, cardID, checklistName, item string) error {
	var checklists []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.get(ctx, "/cards/"+cardID+"/checklists", &checklists); err != nil {
		return fmt.Errorf("list checklists: %w", err)
	}

	checklistID := ""
	for _, cl := range checklists {
		if strings.EqualFold(cl.Name, checklistName) {
			checklistID = cl.ID
			break
		}
	}
	if checklistID == "" {
		var created struct {
			ID string `json:"id"`
		}
		params := url.Values{"idCard": {cardID}, "name": {checklistName}}
		if err := c.post(ctx, "/checklists", params, &created); err != nil {
			return fmt.Errorf("create checklist: %w", err)
		}
		checklistID = created.ID
	}

	params := url.Values{"name": {item}}
	if err := c.post(ctx, "/checklists/"+checklistID+"/checkItems", params, nil); err != nil {
		return fmt.Errorf("add checklist item: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodPost, path, params, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.key)
	params.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", pipeline.ErrThrottled, err)
		}
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s %s", pipeline.ErrThrottled, method, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("board returned %d for %s %s: %s", resp.StatusCode, method, path, body)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// isTimeout reports whether the request failed on a deadline. Timeouts are
// treated as retryable the same way a throttle response is.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
