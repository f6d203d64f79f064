// Package dispatch serializes outbound calls to the quota-constrained task
// board API. A single worker drains a FIFO queue, holding each task until the
// sliding rate window has capacity and retrying throttled calls with linear
// backoff. One task exhausting its retries never blocks or cancels the rest.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JuanPabloGaviria/zoom-middleware/internal/pipeline"
)

// Op is one outbound unit of work.
type Op func(ctx context.Context) error

type task struct {
	label  string
	op     Op
	result chan error
}

type Config struct {
	// Window and MaxRequests bound the execution rate: at most MaxRequests
	// task executions begin within any sliding Window.
	Window      time.Duration
	MaxRequests int

	// RetryDelay scales linearly with the attempt number on throttled calls,
	// up to MaxRetries retries.
	RetryDelay time.Duration
	MaxRetries int

	QueueSize int
}

type Dispatcher struct {
	cfg   Config
	queue chan *task
	done  chan struct{}

	// window holds start timestamps of recent executions. It is touched only
	// by the worker goroutine, so no locking is needed.
	window []time.Time

	// Injectable for tests.
	now          func() time.Time
	sleep        func(time.Duration)
	pollInterval time.Duration
}

func New(cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 1
	}
	return &Dispatcher{
		cfg:          cfg,
		queue:        make(chan *task, cfg.QueueSize),
		done:         make(chan struct{}),
		now:          time.Now,
		sleep:        time.Sleep,
		pollInterval: 250 * time.Millisecond,
	}
}

// Start launches the single drain worker. Tasks already queued and tasks
// enqueued while draining are picked up by the same loop, in FIFO order.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)
		for {
			select {
			case <-ctx.Done():
				d.failPending(ctx.Err())
				return
			case t := <-d.queue:
				d.waitForCapacity(ctx)
				t.result <- d.run(ctx, t)
			}
		}
	}()
}

// Submit enqueues an operation and returns a channel that yields its final
// outcome: nil on success, or the terminal error after retries are exhausted.
func (d *Dispatcher) Submit(label string, op Op) <-chan error {
	t := &task{label: label, op: op, result: make(chan error, 1)}
	d.queue <- t
	return t.result
}

// Execute submits an operation and waits for its outcome.
func (d *Dispatcher) Execute(ctx context.Context, label string, op Op) error {
	select {
	case err := <-d.Submit(label, op):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueLen reports how many tasks are waiting (for health checks).
func (d *Dispatcher) QueueLen() int {
	return len(d.queue)
}

// Wait blocks until the worker has stopped after context cancellation.
func (d *Dispatcher) Wait() {
	<-d.done
}

// waitForCapacity blocks until fewer than MaxRequests executions started
// within the trailing window, then records this execution's start. Coarse
// polling is fine here: the window is seconds-scale.
func (d *Dispatcher) waitForCapacity(ctx context.Context) {
	for {
		now := d.now()
		cutoff := now.Add(-d.cfg.Window)
		kept := d.window[:0]
		for _, ts := range d.window {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		d.window = kept

		if len(d.window) < d.cfg.MaxRequests {
			d.window = append(d.window, now)
			return
		}
		if ctx.Err() != nil {
			return
		}
		d.sleep(d.pollInterval)
	}
}

func (d *Dispatcher) run(ctx context.Context, t *task) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = t.op(ctx)
		if err == nil {
			if attempt > 0 {
				slog.Info("dispatch succeeded after retry", "label", t.label, "attempts", attempt+1)
			}
			return nil
		}
		if !errors.Is(err, pipeline.ErrThrottled) || attempt >= d.cfg.MaxRetries {
			slog.Warn("dispatch failed", "label", t.label, "attempts", attempt+1, "error", err)
			return &pipeline.DispatchError{Label: t.label, Err: err}
		}
		delay := d.cfg.RetryDelay * time.Duration(attempt+1)
		slog.Warn("dispatch throttled, backing off", "label", t.label, "attempt", attempt+1, "delay", delay)
		d.sleep(delay)
	}
}

// failPending resolves every queued task with err so no caller blocks
// forever across shutdown.
func (d *Dispatcher) failPending(err error) {
	for {
		select {
		case t := <-d.queue:
			t.result <- &pipeline.DispatchError{Label: t.label, Err: err}
		default:
			return
		}
	}
}
