package zoomevents

import (
	"testing"
	"time"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"module":"message","content":"{\"event\":\"recording.completed\"}"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !env.IsEvent() {
		t.Error("message frame with content not recognized as event")
	}
	if env.IsFailure() {
		t.Error("frame without success flag flagged as failure")
	}
}

func TestParseEnvelopeRejectsMalformed(t *testing.T) {
	if _, err := ParseEnvelope([]byte(`{{`)); err == nil {
		t.Error("accepted invalid JSON")
	}
	if _, err := ParseEnvelope([]byte(`{"content":"x"}`)); err == nil {
		t.Error("accepted frame without module")
	}
}

func TestEnvelopeClassification(t *testing.T) {
	f := false
	tr := true
	cases := []struct {
		name    string
		env     Envelope
		event   bool
		failure bool
	}{
		{"heartbeat reply", Envelope{Module: ModuleHeartbeat, Success: &tr}, false, false},
		{"handshake ack", Envelope{Module: ModuleConnection, Success: &tr}, false, false},
		{"handshake failure", Envelope{Module: ModuleConnection, Success: &f}, false, true},
		{"message without content", Envelope{Module: ModuleMessage}, false, false},
		{"domain event", Envelope{Module: ModuleMessage, Content: `{"event":"x"}`}, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.env.IsEvent(); got != tc.event {
				t.Errorf("IsEvent() = %v, want %v", got, tc.event)
			}
			if got := tc.env.IsFailure(); got != tc.failure {
				t.Errorf("IsFailure() = %v, want %v", got, tc.failure)
			}
		})
	}
}

func TestParseEvent(t *testing.T) {
	content := `{
		"event": "recording.completed",
		"event_ts": 1717243200000,
		"payload": {
			"account_id": "acct-1",
			"object": {
				"uuid": "4444AAAiAAAAAiAiAiiAii==",
				"topic": "Dailies review",
				"recording_files": [
					{"file_type": "M4A", "status": "completed", "download_url": "https://zoom.example.com/a"}
				]
			}
		}
	}`
	ev, err := ParseEvent(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Event != TypeRecordingCompleted {
		t.Errorf("event type %q", ev.Event)
	}
	want := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Errorf("timestamp %v, want %v", ev.Timestamp, want)
	}
	if ev.Payload.Object.Topic != "Dailies review" {
		t.Errorf("topic %q", ev.Payload.Object.Topic)
	}
}

func TestParseEventDefaultsMissingTimestamp(t *testing.T) {
	ev, err := ParseEvent(`{"event":"recording.completed"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Timestamp.IsZero() {
		t.Error("missing event_ts not defaulted")
	}
}

func TestParseEventRejectsMissingType(t *testing.T) {
	if _, err := ParseEvent(`{"payload":{}}`); err == nil {
		t.Error("accepted event without type")
	}
}

func TestAudioFilePrefersM4A(t *testing.T) {
	m := Meeting{RecordingFiles: []RecordingFile{
		{FileType: "MP4", Status: "completed", DownloadURL: "https://x/mp4"},
		{FileType: "M4A", Status: "completed", DownloadURL: "https://x/m4a"},
		{FileType: "CHAT", Status: "completed", DownloadURL: "https://x/chat"},
	}}
	f, ok := m.AudioFile()
	if !ok || f.FileType != "M4A" {
		t.Fatalf("expected M4A preferred, got %+v ok=%v", f, ok)
	}
}

func TestAudioFileFallsBackToMP4(t *testing.T) {
	m := Meeting{RecordingFiles: []RecordingFile{
		{FileType: "CHAT", Status: "completed", DownloadURL: "https://x/chat"},
		{FileType: "MP4", Status: "completed", DownloadURL: "https://x/mp4"},
	}}
	f, ok := m.AudioFile()
	if !ok || f.FileType != "MP4" {
		t.Fatalf("expected MP4 fallback, got %+v ok=%v", f, ok)
	}
}

func TestAudioFileSkipsIncomplete(t *testing.T) {
	m := Meeting{RecordingFiles: []RecordingFile{
		{FileType: "M4A", Status: "processing", DownloadURL: "https://x/m4a"},
		{FileType: "MP4", Status: "completed"},
	}}
	if _, ok := m.AudioFile(); ok {
		t.Error("accepted a recording with no usable audio")
	}
}
