package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// runHookScripts reads each SQL file, expands {{schema}} to the first
// target schema, and executes every statement. Scripts already recorded
// in migration_history with an unchanged checksum are skipped.
func runHookScripts(ctx context.Context, pool *pgxpool.Pool, tracker *MigrationTracker, cfg *MigrationConfig, files []string, phase string) error {
	if len(files) == 0 {
		return nil
	}
	log.Printf("  running %s hooks (%d files)...", phase, len(files))

	targetSchema := "public"
	if len(cfg.Schemas) > 0 {
		targetSchema = pgSchemaName(cfg.Schemas[0])
	}

	contents := make([][]byte, len(files))
	for i, f := range files {
		data, err := os.ReadFile(cfg.resolvePath(f))
		if err != nil {
			return fmt.Errorf("hook %s: read %s: %w", phase, f, err)
		}
		contents[i] = data
	}

	pending, err := tracker.PendingScripts(ctx, files, contents)
	if err != nil {
		return fmt.Errorf("hook %s: history lookup: %w", phase, err)
	}
	pendingSet := make(map[string]bool, len(pending))
	for _, name := range pending {
		pendingSet[name] = true
	}

	for i, f := range files {
		data := contents[i]
		if !pendingSet[f] {
			log.Printf("    %s: already applied, skipping", f)
			continue
		}
		drifted, err := tracker.VerifyChecksum(ctx, f, data)
		if err != nil {
			return fmt.Errorf("hook %s: checksum lookup for %s: %w", phase, f, err)
		}
		if drifted {
			log.Printf("    %s: content changed since last run, re-running", f)
		}

		sql := strings.ReplaceAll(string(data), "{{schema}}", targetSchema)
		stmts := splitStatements(sql)

		log.Printf("    %s: %d statements", f, len(stmts))
		start := time.Now()
		var execErr error
		for i, stmt := range stmts {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				execErr = fmt.Errorf("hook %s: %s: statement %d: %w\nSQL: %s", phase, f, i+1, err, stmt)
				break
			}
		}
		record := ScriptRun{
			Name:     f,
			Type:     phase,
			Checksum: scriptChecksum(data),
			Duration: time.Since(start),
			Err:      execErr,
		}
		if err := tracker.RecordExecution(ctx, record); err != nil {
			log.Printf("    %s: recording execution failed: %v", f, err)
		}
		if execErr != nil {
			return execErr
		}
	}
	return nil
}

// splitStatements splits SQL text on semicolons, ignoring empty entries
// and content inside single-quoted strings.
func splitStatements(sql string) []string {
	var stmts []string
	var current strings.Builder
	inQuote := false

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' && !inQuote:
			inQuote = true
			current.WriteByte(c)
		case c == '\'' && inQuote:
			// Handle escaped quotes ('')
			if i+1 < len(sql) && sql[i+1] == '\'' {
				current.WriteByte(c)
				current.WriteByte(c)
				i++
			} else {
				inQuote = false
				current.WriteByte(c)
			}
		case c == ';' && !inQuote:
			s := strings.TrimSpace(current.String())
			if s != "" {
				stmts = append(stmts, s)
			}
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}

	// Trailing statement without semicolon
	if s := strings.TrimSpace(current.String()); s != "" {
		stmts = append(stmts, s)
	}

	return stmts
}
