// Package announce publishes the middleware's own lifecycle and per-recording
// summaries to NATS so operators can watch the pipeline without scraping
// logs. Like the journal it is optional.
package announce

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "zoom.middleware."

type Announcer struct {
	nc *nats.Conn
}

func New(natsURL string) (*Announcer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("announce: NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("announce: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Announcer{nc: nc}, nil
}

// Publish sends a JSON-encoded payload on the middleware's subject space.
// Announcements are best-effort; a publish failure is logged and swallowed.
func (a *Announcer) Publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("announce: marshal failed", "subject", subject, "error", err)
		return
	}
	if err := a.nc.Publish(subjectPrefix+subject, data); err != nil {
		slog.Warn("announce: publish failed", "subject", subject, "error", err)
	}
}

func (a *Announcer) Close() {
	if err := a.nc.Drain(); err != nil {
		slog.Warn("announce: drain failed", "error", err)
	}
}
