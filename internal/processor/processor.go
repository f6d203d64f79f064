// Package processor drives the fetch → extract → dispatch sequence for each
// completed recording. One event is processed per invocation; distinct events
// run concurrently and share nothing but the dispatcher's queue.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JuanPabloGaviria/zoom-middleware/internal/dispatch"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/extract"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/media"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/pipeline"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/zoomevents"
)

// Board is the downstream project-management surface.
type Board interface {
	FindOrCreateCard(ctx context.Context, name string) (string, error)
	AddComment(ctx context.Context, cardID, text string) error
	AddChecklistItem(ctx context.Context, cardID, checklistName, item string) error
}

// Extractor is the fallback chain.
type Extractor interface {
	Extract(ctx context.Context, mediaPath string) ([]extract.Fact, error)
}

// Queue is the rate-limited dispatcher.
type Queue interface {
	Execute(ctx context.Context, label string, op dispatch.Op) error
}

// Journal tracks already-processed recordings. May be nil.
type Journal interface {
	Seen(ctx context.Context, recordingUUID string) (bool, error)
	MarkProcessed(ctx context.Context, recordingUUID, topic string, facts int) error
}

// Announcer publishes processing summaries. May be nil.
type Announcer interface {
	Publish(subject string, v any)
}

// TokenProvider supplies the bearer token for recording downloads. May be nil
// when downloads are unauthenticated.
type TokenProvider interface {
	Token() (string, error)
}

type Config struct {
	// InterTaskDelay spaces dispatches within one character's facts, and
	// InterGroupDelay spaces character groups. Both are in addition to the
	// dispatcher's own rate window: the board triggers a second, independent
	// automation integration that has its own undocumented burst limit.
	InterTaskDelay  time.Duration
	InterGroupDelay time.Duration
	ChecklistName   string
}

type Processor struct {
	media     media.Store
	chain     Extractor
	queue     Queue
	board     Board
	journal   Journal
	announcer Announcer
	tokens    TokenProvider
	cfg       Config

	sleep func(time.Duration)
}

func New(m media.Store, chain Extractor, queue Queue, board Board, cfg Config) *Processor {
	if cfg.ChecklistName == "" {
		cfg.ChecklistName = "Tasks"
	}
	return &Processor{
		media: m,
		chain: chain,
		queue: queue,
		board: board,
		cfg:   cfg,
		sleep: time.Sleep,
	}
}

// SetJournal enables duplicate-recording detection.
func (p *Processor) SetJournal(j Journal) { p.journal = j }

// SetAnnouncer enables summary publishing.
func (p *Processor) SetAnnouncer(a Announcer) { p.announcer = a }

// SetTokenProvider enables authenticated recording downloads.
func (p *Processor) SetTokenProvider(t TokenProvider) { p.tokens = t }

// TaskOutcome is the per-dispatch result in a Summary.
type TaskOutcome struct {
	Character string `json:"character"`
	Task      string `json:"task"`
	Error     string `json:"error,omitempty"`
}

// Summary aggregates what happened to one recording.
type Summary struct {
	RecordingUUID string        `json:"recording_uuid"`
	Topic         string        `json:"topic"`
	Facts         int           `json:"facts"`
	Dispatched    int           `json:"dispatched"`
	Failed        int           `json:"failed"`
	Duplicate     bool          `json:"duplicate,omitempty"`
	Outcomes      []TaskOutcome `json:"outcomes,omitempty"`
}

// Handle is the stream manager's event callback. Failures end up in the log
// and, when configured, on the announce subject; nothing propagates back into
// the stream.
func (p *Processor) Handle(ev zoomevents.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	summary, err := p.Process(ctx, ev)
	if err != nil {
		slog.Error("processor: event failed", "event", ev.Event, "error", err)
		return
	}
	if summary != nil {
		slog.Info("processor: event done",
			"recording_uuid", summary.RecordingUUID,
			"facts", summary.Facts,
			"dispatched", summary.Dispatched,
			"failed", summary.Failed,
		)
	}
}

// Process handles one recording.completed event end to end. Events of any
// other type are ignored. Media artifacts are released on every path out.
func (p *Processor) Process(ctx context.Context, ev zoomevents.Event) (*Summary, error) {
	if ev.Event != zoomevents.TypeRecordingCompleted {
		slog.Debug("processor: ignoring event", "event", ev.Event)
		return nil, nil
	}

	meeting := ev.Payload.Object
	log := slog.With("recording_uuid", meeting.UUID, "topic", meeting.Topic, "run_id", uuid.New().String())

	file, ok := meeting.AudioFile()
	if !ok {
		return nil, &pipeline.ValidationError{Reason: "no completed audio recording among files"}
	}

	if p.journal != nil {
		seen, err := p.journal.Seen(ctx, meeting.UUID)
		if err != nil {
			log.Warn("processor: journal lookup failed, proceeding", "error", err)
		} else if seen {
			log.Info("processor: recording already processed, skipping")
			return &Summary{RecordingUUID: meeting.UUID, Topic: meeting.Topic, Duplicate: true}, nil
		}
	}

	token := ""
	if p.tokens != nil {
		t, err := p.tokens.Token()
		if err != nil {
			log.Warn("processor: no download token, trying unauthenticated", "error", err)
		} else {
			token = t
		}
	}

	var artifacts []string
	defer func() { p.media.Cleanup(artifacts...) }()

	path, err := p.media.Fetch(ctx, file.DownloadURL, token)
	if path != "" {
		artifacts = append(artifacts, path)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}

	converted, err := p.media.Convert(ctx, path)
	if converted != "" && converted != path {
		artifacts = append(artifacts, converted)
	}
	if err != nil {
		return nil, fmt.Errorf("convert media: %w", err)
	}

	facts, err := p.chain.Extract(ctx, converted)
	if err != nil {
		return nil, err
	}

	summary := &Summary{RecordingUUID: meeting.UUID, Topic: meeting.Topic, Facts: len(facts)}
	if len(facts) == 0 {
		log.Info("processor: no facts in recording")
		p.finish(ctx, meeting, summary)
		return summary, nil
	}

	p.dispatchFacts(ctx, meeting, facts, summary, log)
	p.finish(ctx, meeting, summary)
	return summary, nil
}

// dispatchFacts groups facts by character and submits them in first-seen
// order: each group's facts back to back with an inter-task delay, and an
// additional delay between groups. A single task's failure is recorded and
// the batch continues.
func (p *Processor) dispatchFacts(ctx context.Context, meeting zoomevents.Meeting, facts []extract.Fact, summary *Summary, log *slog.Logger) {
	var order []string
	groups := make(map[string][]extract.Fact)
	for _, f := range facts {
		if _, ok := groups[f.Character]; !ok {
			order = append(order, f.Character)
		}
		groups[f.Character] = append(groups[f.Character], f)
	}

	for gi, character := range order {
		if gi > 0 {
			p.sleep(p.cfg.InterGroupDelay)
		}
		for fi, f := range groups[character] {
			if fi > 0 {
				p.sleep(p.cfg.InterTaskDelay)
			}
			label := f.Character + ": " + f.Task
			fact := f
			err := p.queue.Execute(ctx, label, func(ctx context.Context) error {
				return p.pushFact(ctx, meeting, fact)
			})
			outcome := TaskOutcome{Character: f.Character, Task: f.Task}
			if err != nil {
				outcome.Error = err.Error()
				summary.Failed++
				log.Warn("processor: dispatch failed", "character", f.Character, "task", f.Task, "error", err)
			} else {
				summary.Dispatched++
			}
			summary.Outcomes = append(summary.Outcomes, outcome)
		}
	}
}

// pushFact is one dispatch task: find or create the character's card, then
// attach the task as a comment and a checklist item.
func (p *Processor) pushFact(ctx context.Context, meeting zoomevents.Meeting, f extract.Fact) error {
	cardID, err := p.board.FindOrCreateCard(ctx, f.Character)
	if err != nil {
		return err
	}

	comment := fmt.Sprintf("**%s**: %s\nFrom meeting %q (confidence %.2f)", f.Project, f.Task, meeting.Topic, f.Confidence)
	if f.Context != "" {
		comment += "\n> " + f.Context
	}
	if err := p.board.AddComment(ctx, cardID, comment); err != nil {
		return err
	}
	return p.board.AddChecklistItem(ctx, cardID, p.cfg.ChecklistName, f.Task)
}

func (p *Processor) finish(ctx context.Context, meeting zoomevents.Meeting, summary *Summary) {
	if p.journal != nil {
		if err := p.journal.MarkProcessed(ctx, meeting.UUID, meeting.Topic, summary.Facts); err != nil {
			slog.Warn("processor: journal write failed", "recording_uuid", meeting.UUID, "error", err)
		}
	}
	if p.announcer != nil {
		p.announcer.Publish("recording.processed", summary)
	}
}
