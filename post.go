package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// addKeyConstraints applies primary key and unique constraints after data
// load. Failures are logged and skipped; a table with dirty data still gets
// its remaining constraints.
func addKeyConstraints(ctx context.Context, pool *pgxpool.Pool, model *SchemaModel, order []string) int {
	failures := 0
	for _, key := range order {
		t := model.TableByKey(key)
		for i := range t.Constraints {
			c := &t.Constraints[i]
			if c.Kind != ConstraintPrimaryKey && c.Kind != ConstraintUnique {
				continue
			}
			sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s (%s)",
				pgTableRef(t), pgIdent(c.Name), c.Kind, quotedColumnList(c.Columns))
			if err := execSQL(ctx, pool, sql); err != nil {
				log.Printf("constraint %s on %s failed: %v", c.Name, t.Key(), err)
				failures++
			}
		}
	}
	return failures
}

// addForeignKeys applies foreign keys in a separate pass so every primary
// and unique key already exists, regardless of table ordering.
func addForeignKeys(ctx context.Context, pool *pgxpool.Pool, model *SchemaModel, order []string) int {
	failures := 0
	for _, key := range order {
		t := model.TableByKey(key)
		for i := range t.Constraints {
			c := &t.Constraints[i]
			if c.Kind != ConstraintForeignKey {
				continue
			}
			sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
				pgTableRef(t), pgIdent(c.Name), quotedColumnList(c.Columns),
				pgQualified(c.RefTable), quotedColumnList(c.RefColumns))
			if err := execSQL(ctx, pool, sql); err != nil {
				log.Printf("foreign key %s on %s failed: %v", c.Name, t.Key(), err)
				failures++
			}
		}
	}
	return failures
}

// addSecondaryIndexes recreates non-key indexes. Index names are prefixed
// with the table name to stay unique per target schema, since PostgreSQL
// scopes index names to the schema while MSSQL scopes them to the table.
func addSecondaryIndexes(ctx context.Context, pool *pgxpool.Pool, model *SchemaModel, order []string) int {
	failures := 0
	for _, key := range order {
		t := model.TableByKey(key)
		for i := range t.Indexes {
			idx := &t.Indexes[i]
			if reason := indexUnsupportedReason(idx); reason != "" {
				log.Printf("skipping index %s on %s: %s", idx.Name, t.Key(), reason)
				continue
			}
			unique := ""
			if idx.Unique {
				unique = "UNIQUE "
			}
			name := pgIdent(t.TranslatedName + "_" + idx.Name)
			sql := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
				unique, name, pgTableRef(t), quotedColumnList(idx.Columns))
			if err := execSQL(ctx, pool, sql); err != nil {
				log.Printf("index %s on %s failed: %v", idx.Name, t.Key(), err)
				failures++
			}
		}
	}
	return failures
}

// resyncSequences moves every serial sequence past the loaded data. The
// COALESCE/is_called dance handles empty tables: their sequences stay at 1
// with is_called=false so the first insert still yields 1.
func resyncSequences(ctx context.Context, pool *pgxpool.Pool, model *SchemaModel, order []string) int {
	failures := 0
	for _, key := range order {
		t := model.TableByKey(key)
		for i := range t.Columns {
			col := &t.Columns[i]
			if !col.IsIdentity {
				continue
			}
			colRef := pgIdent(col.TranslatedName)
			sql := fmt.Sprintf(
				"SELECT setval(pg_get_serial_sequence(%s, %s), COALESCE(MAX(%s), 1), MAX(%s) IS NOT NULL) FROM %s",
				quoteLiteral(pgTableRef(t)),
				quoteLiteral(col.TranslatedName), colRef, colRef, pgTableRef(t))
			if err := execSQL(ctx, pool, sql); err != nil {
				log.Printf("sequence resync for %s.%s failed: %v", t.Key(), col.TranslatedName, err)
				failures++
			}
		}
	}
	return failures
}

// quoteLiteral renders a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
