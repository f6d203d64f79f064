// Package journal records which recordings have already been processed.
// Zoom redelivers events after reconnects, and the downstream board API is
// not idempotent for comments, so the processor checks here before
// dispatching. The journal is optional: without a database the middleware
// runs with redelivery-dedup disabled.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Journal struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Journal, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	j := &Journal{pool: pool}
	if err := j.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) ensureSchema(ctx context.Context) error {
	_, err := j.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS processed_recordings (
			recording_uuid text PRIMARY KEY,
			topic          text NOT NULL DEFAULT '',
			facts          int  NOT NULL DEFAULT 0,
			processed_at   timestamptz NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (j *Journal) Close() {
	j.pool.Close()
}

// Seen reports whether the recording was already processed.
func (j *Journal) Seen(ctx context.Context, recordingUUID string) (bool, error) {
	var exists bool
	err := j.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_recordings WHERE recording_uuid = $1)`,
		recordingUUID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query journal: %w", err)
	}
	return exists, nil
}

// MarkProcessed records a finished recording. Marking the same recording
// twice is harmless.
func (j *Journal) MarkProcessed(ctx context.Context, recordingUUID, topic string, facts int) error {
	_, err := j.pool.Exec(ctx, `
		INSERT INTO processed_recordings (recording_uuid, topic, facts, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (recording_uuid) DO NOTHING
	`, recordingUUID, topic, facts, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}
