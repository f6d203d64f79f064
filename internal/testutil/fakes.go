// Package testutil holds thread-safe in-memory fakes shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
)

// FakeBoard implements the processor.Board interface and records every call
// in submission order.
type FakeBoard struct {
	mu sync.Mutex

	Calls []string          // e.g. "card:Rex", "comment:abc123", "check:abc123/walk cycle"
	Cards map[string]string // character name -> card id

	// ThrottleFirst makes the first N calls fail with the given error before
	// succeeding; FailWith makes every call fail.
	ThrottleFirst int
	ThrottleErr   error
	FailWith      error

	calls int
}

func NewFakeBoard() *FakeBoard {
	return &FakeBoard{Cards: make(map[string]string)}
}

func (b *FakeBoard) gate() error {
	b.calls++
	if b.FailWith != nil {
		return b.FailWith
	}
	if b.calls <= b.ThrottleFirst {
		return b.ThrottleErr
	}
	return nil
}

func (b *FakeBoard) FindOrCreateCard(_ context.Context, name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.gate(); err != nil {
		return "", err
	}
	b.Calls = append(b.Calls, "card:"+name)
	if id, ok := b.Cards[name]; ok {
		return id, nil
	}
	id := fmt.Sprintf("card-%d", len(b.Cards)+1)
	b.Cards[name] = id
	return id, nil
}

func (b *FakeBoard) AddComment(_ context.Context, cardID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.gate(); err != nil {
		return err
	}
	b.Calls = append(b.Calls, "comment:"+cardID)
	return nil
}

func (b *FakeBoard) AddChecklistItem(_ context.Context, cardID, checklistName, item string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.gate(); err != nil {
		return err
	}
	b.Calls = append(b.Calls, "check:"+cardID+"/"+item)
	return nil
}

func (b *FakeBoard) CallLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.Calls))
	copy(out, b.Calls)
	return out
}

// FakeMedia implements media.Store without touching the filesystem.
type FakeMedia struct {
	mu sync.Mutex

	FetchErr   error
	ConvertErr error

	Fetched   []string
	CleanedUp []string
}

func (m *FakeMedia) Fetch(_ context.Context, url, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return "", m.FetchErr
	}
	path := "/tmp/fake-" + fmt.Sprintf("%d", len(m.Fetched)) + ".m4a"
	m.Fetched = append(m.Fetched, url)
	return path, nil
}

func (m *FakeMedia) Convert(_ context.Context, path string) (string, error) {
	if m.ConvertErr != nil {
		return "", m.ConvertErr
	}
	return path + ".wav", nil
}

func (m *FakeMedia) Cleanup(paths ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CleanedUp = append(m.CleanedUp, paths...)
}

func (m *FakeMedia) CleanupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CleanedUp)
}

// FakeTokens implements the TokenProvider interfaces.
type FakeTokens struct {
	Value string
	Err   error
}

func (t *FakeTokens) Token() (string, error) {
	if t.Err != nil {
		return "", t.Err
	}
	if t.Value == "" {
		return "test-token", nil
	}
	return t.Value, nil
}

// MemJournal is an in-memory processor.Journal.
type MemJournal struct {
	mu        sync.Mutex
	Processed map[string]int
	SeenErr   error
}

func NewMemJournal() *MemJournal {
	return &MemJournal{Processed: make(map[string]int)}
}

func (j *MemJournal) Seen(_ context.Context, recordingUUID string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.SeenErr != nil {
		return false, j.SeenErr
	}
	_, ok := j.Processed[recordingUUID]
	return ok, nil
}

func (j *MemJournal) MarkProcessed(_ context.Context, recordingUUID, _ string, facts int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Processed[recordingUUID] = facts
	return nil
}
