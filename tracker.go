package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MigrationTracker records executed scripts in migration_history on the
// target, so re-running a migration skips scripts that already applied
// with an unchanged checksum.
type MigrationTracker struct {
	pool *pgxpool.Pool
}

const migrationHistoryDDL = `
CREATE TABLE IF NOT EXISTS migration_history (
    id                serial PRIMARY KEY,
    script_name       text NOT NULL UNIQUE,
    script_type       text NOT NULL DEFAULT 'hook',
    checksum          text NOT NULL,
    executed_at       timestamptz NOT NULL DEFAULT NOW(),
    execution_time_ms bigint NOT NULL DEFAULT 0,
    success           boolean NOT NULL DEFAULT true,
    error_message     text,
    rollback_script   text
)`

// NewMigrationTracker ensures the history table exists.
func NewMigrationTracker(ctx context.Context, pool *pgxpool.Pool) (*MigrationTracker, error) {
	if err := execSQL(ctx, pool, migrationHistoryDDL); err != nil {
		return nil, fmt.Errorf("create migration_history: %w", err)
	}
	return &MigrationTracker{pool: pool}, nil
}

// scriptChecksum hashes script content so edits to an already-applied
// script are detected.
func scriptChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ScriptRun is one script execution to record.
type ScriptRun struct {
	Name     string
	Type     string // phase the script ran in, e.g. "after_data"
	Checksum string
	Duration time.Duration
	Err      error // nil on success
	Rollback string
}

// IsExecuted reports whether a script ran successfully before, along with
// the checksum it ran with.
func (mt *MigrationTracker) IsExecuted(ctx context.Context, name string) (bool, string, error) {
	var checksum string
	err := mt.pool.QueryRow(ctx,
		"SELECT checksum FROM migration_history WHERE script_name = $1 AND success",
		name).Scan(&checksum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, "", nil
		}
		return false, "", err
	}
	return true, checksum, nil
}

// RecordExecution upserts a script's outcome.
func (mt *MigrationTracker) RecordExecution(ctx context.Context, run ScriptRun) error {
	var errMsg *string
	if run.Err != nil {
		s := run.Err.Error()
		errMsg = &s
	}
	var rollback *string
	if run.Rollback != "" {
		rollback = &run.Rollback
	}
	return execSQL(ctx, mt.pool, `
		INSERT INTO migration_history
		    (script_name, script_type, checksum, executed_at, execution_time_ms, success, error_message, rollback_script)
		VALUES ($1, $2, $3, NOW(), $4, $5, $6, $7)
		ON CONFLICT (script_name) DO UPDATE
		SET script_type = EXCLUDED.script_type,
		    checksum = EXCLUDED.checksum,
		    executed_at = EXCLUDED.executed_at,
		    execution_time_ms = EXCLUDED.execution_time_ms,
		    success = EXCLUDED.success,
		    error_message = EXCLUDED.error_message,
		    rollback_script = EXCLUDED.rollback_script`,
		run.Name, run.Type, run.Checksum, run.Duration.Milliseconds(),
		run.Err == nil, errMsg, rollback)
}

// VerifyChecksum reports whether an already-applied script's content has
// drifted since it ran. Unexecuted scripts never drift.
func (mt *MigrationTracker) VerifyChecksum(ctx context.Context, name string, content []byte) (bool, error) {
	done, recorded, err := mt.IsExecuted(ctx, name)
	if err != nil || !done {
		return false, err
	}
	return recorded != scriptChecksum(content), nil
}

// ShouldRun decides whether a script needs to run: never ran, failed last
// time, or its content changed since the recorded run.
func (mt *MigrationTracker) ShouldRun(ctx context.Context, name string, content []byte) (bool, error) {
	done, recorded, err := mt.IsExecuted(ctx, name)
	if err != nil {
		return false, err
	}
	if !done {
		return true, nil
	}
	return recorded != scriptChecksum(content), nil
}

// PendingScripts filters script names down to those that still need to
// run, preserving order. contents pairs up with names by index.
func (mt *MigrationTracker) PendingScripts(ctx context.Context, names []string, contents [][]byte) ([]string, error) {
	var pending []string
	for i, name := range names {
		run, err := mt.ShouldRun(ctx, name, contents[i])
		if err != nil {
			return nil, err
		}
		if run {
			pending = append(pending, name)
		}
	}
	return pending, nil
}
