// Package zoomevents models the frames delivered over Zoom's websocket event
// stream and the webhook-shaped events they carry.
package zoomevents

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Module values seen on websocket frames. Anything that is not a message
// frame is connection plumbing, not a domain event.
const (
	ModuleMessage    = "message"
	ModuleHeartbeat  = "heartbeat"
	ModuleConnection = "build_connection"
)

// Event types this middleware reacts to.
const (
	TypeRecordingCompleted = "recording.completed"
)

// Envelope is one JSON frame off the websocket.
//
// Zoom multiplexes connection management and event delivery over the same
// socket: handshake acks and heartbeat replies carry a module plus a success
// flag, while domain events arrive as module "message" with the webhook JSON
// serialized into Content.
type Envelope struct {
	Module  string `json:"module"`
	Success *bool  `json:"success,omitempty"`
	Content string `json:"content,omitempty"`
}

// IsEvent reports whether the frame carries a domain event rather than
// connection plumbing.
func (e *Envelope) IsEvent() bool {
	return e.Module == ModuleMessage && e.Content != ""
}

// IsFailure reports whether the frame is a connection-level failure
// notification (success flag present and false).
func (e *Envelope) IsFailure() bool {
	return e.Success != nil && !*e.Success
}

// Event is the webhook payload embedded in a message frame.
type Event struct {
	Event     string    `json:"event"`
	EventTS   int64     `json:"event_ts"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"-"`
}

type Payload struct {
	AccountID string  `json:"account_id"`
	Object    Meeting `json:"object"`
}

type Meeting struct {
	UUID           string          `json:"uuid"`
	ID             int64           `json:"id"`
	Topic          string          `json:"topic"`
	HostEmail      string          `json:"host_email"`
	Duration       int             `json:"duration"`
	RecordingFiles []RecordingFile `json:"recording_files"`
}

type RecordingFile struct {
	ID            string `json:"id"`
	FileType      string `json:"file_type"`
	FileExtension string `json:"file_extension"`
	RecordingType string `json:"recording_type"`
	DownloadURL   string `json:"download_url"`
	Status        string `json:"status"`
}

// ParseEnvelope decodes one websocket frame.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Module == "" {
		return Envelope{}, fmt.Errorf("frame missing module field")
	}
	return env, nil
}

// ParseEvent decodes the webhook JSON carried by a message frame and fills
// in missing fields with sensible defaults. It never drops an event for a
// missing timestamp; the stream is the source of truth for arrival order.
func ParseEvent(content string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(content), &ev); err != nil {
		return Event{}, fmt.Errorf("decode event content: %w", err)
	}
	if ev.Event == "" {
		return Event{}, fmt.Errorf("event missing type field")
	}
	if ev.EventTS > 0 {
		ev.Timestamp = time.UnixMilli(ev.EventTS).UTC()
	} else {
		ev.Timestamp = time.Now().UTC()
	}
	return ev, nil
}

// AudioFile returns the first completed audio recording among the meeting's
// files. Zoom labels standalone audio M4A; the shared-screen MP4 also carries
// an audio track and is accepted as a fallback.
func (m *Meeting) AudioFile() (RecordingFile, bool) {
	var fallback RecordingFile
	var haveFallback bool
	for _, f := range m.RecordingFiles {
		if f.DownloadURL == "" || !strings.EqualFold(f.Status, "completed") {
			continue
		}
		switch strings.ToUpper(f.FileType) {
		case "M4A":
			return f, true
		case "MP4":
			if !haveFallback {
				fallback = f
				haveFallback = true
			}
		}
	}
	return fallback, haveFallback
}
