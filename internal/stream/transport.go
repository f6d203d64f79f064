package stream

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JuanPabloGaviria/zoom-middleware/internal/pipeline"
)

// Conn is the subset of a websocket connection the manager uses.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Transport opens connections. Tests inject a fake; production uses the
// gorilla dialer.
type Transport interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

type wsTransport struct {
	dialer *websocket.Dialer
}

// NewWebSocketTransport returns the production websocket transport.
func NewWebSocketTransport() Transport {
	return &wsTransport{
		dialer: &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
	}
}

func (t *wsTransport) Dial(ctx context.Context, rawURL string, header http.Header) (Conn, error) {
	c, resp, err := t.dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		// The query string carries the access token; keep it out of errors.
		bare := rawURL
		if i := strings.IndexByte(bare, '?'); i >= 0 {
			bare = bare[:i]
		}
		return nil, fmt.Errorf("%w: dial %s: %v", pipeline.ErrConnection, bare, err)
	}
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.c.ReadMessage()
	return data, err
}

func (w *wsConn) WriteJSON(v any) error {
	return w.c.WriteJSON(v)
}

func (w *wsConn) Close() error {
	return w.c.Close()
}
