package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewColumn describes a column added on the target that does not exist at
// the source, typically to back new application features.
type NewColumn struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Nullable    bool    `json:"nullable"`
	Default     *string `json:"default,omitempty"`
	Description string  `json:"description,omitempty"`
}

// TableCustomization holds per-table adjustments applied after DDL and
// data load.
type TableCustomization struct {
	NewColumns    []NewColumn `json:"new_columns,omitempty"`
	SkipMigration bool        `json:"skip_migration,omitempty"`
}

// SchemaCustomizations maps target table keys (schema.translatedName) to
// their customizations.
type SchemaCustomizations map[string]TableCustomization

// loadSchemaCustomizations reads the customization JSON file. An empty
// path yields an empty set.
func loadSchemaCustomizations(path string) (SchemaCustomizations, error) {
	if path == "" {
		return SchemaCustomizations{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read customizations: %w", err)
	}
	var sc SchemaCustomizations
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse customizations %s: %w", path, err)
	}
	for key, tc := range sc {
		for _, col := range tc.NewColumns {
			if col.Name == "" || col.Type == "" {
				return nil, fmt.Errorf("customization for %s: new columns need name and type", key)
			}
		}
	}
	return sc, nil
}

// columnDefinition renders a new column for ALTER TABLE ADD COLUMN.
func (c NewColumn) columnDefinition() string {
	var b strings.Builder
	b.WriteString(pgIdent(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type)
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*c.Default)
	}
	return b.String()
}

// skippedTables returns the keys of tables the customizations exclude from
// migration.
func (sc SchemaCustomizations) skippedTables() map[string]bool {
	skipped := make(map[string]bool)
	for key, tc := range sc {
		if tc.SkipMigration {
			skipped[key] = true
		}
	}
	return skipped
}

// removeSkipped drops tables marked skip_migration from the model before
// any DDL or data work, along with their dependency edges.
func removeSkipped(model *SchemaModel, skipped map[string]bool) {
	if len(skipped) == 0 {
		return
	}
	kept := model.Tables[:0]
	for _, t := range model.Tables {
		if skipped[t.Key()] {
			log.Printf("skipping table %s per customization", t.Key())
			continue
		}
		kept = append(kept, t)
	}
	model.Tables = kept

	for child, parents := range model.Dependencies {
		if skipped[child] {
			delete(model.Dependencies, child)
			continue
		}
		remaining := parents[:0]
		for _, p := range parents {
			if !skipped[p] {
				remaining = append(remaining, p)
			}
		}
		model.Dependencies[child] = remaining
	}
}

// applyCustomizations adds new columns to already-created target tables.
// Keys are processed in sorted order so repeated runs emit the same
// statement sequence. Unknown keys are logged, not fatal: customization
// files routinely outlive individual table sets.
func applyCustomizations(ctx context.Context, pool *pgxpool.Pool, model *SchemaModel, sc SchemaCustomizations) error {
	keys := make([]string, 0, len(sc))
	for k := range sc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		tc := sc[key]
		if len(tc.NewColumns) == 0 {
			continue
		}
		t := model.TableByKey(key)
		if t == nil {
			log.Printf("customization for unknown table %s skipped", key)
			continue
		}
		for _, col := range tc.NewColumns {
			sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s",
				pgTableRef(t), col.columnDefinition())
			if err := execSQL(ctx, pool, sql); err != nil {
				return fmt.Errorf("add column %s to %s: %w", col.Name, key, err)
			}
			if col.Description != "" {
				comment := fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
					pgTableRef(t), pgIdent(col.Name), quoteLiteral(col.Description))
				if err := execSQL(ctx, pool, comment); err != nil {
					return fmt.Errorf("comment on %s.%s: %w", key, col.Name, err)
				}
			}
		}
	}
	return nil
}
