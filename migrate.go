package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	mssql "github.com/microsoft/go-mssqldb"
)

// buildSelectSQL reads every column of a source table in original order,
// using the original (pre-translation) column names.
func buildSelectSQL(t *Table) string {
	cols := make([]string, len(t.Columns))
	for i := range t.Columns {
		cols[i] = mssqlIdent(t.Columns[i].SourceName)
	}
	return fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(cols, ", "), mssqlTableRef(t.SchemaName, t.SourceName))
}

// buildInsertSQL renders a multi-row INSERT with $n placeholders for
// rowCount rows of colCount columns each.
func buildInsertSQL(t *Table, rowCount int) string {
	cols := make([]string, len(t.Columns))
	for i := range t.Columns {
		cols[i] = pgIdent(t.Columns[i].TranslatedName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", pgTableRef(t), strings.Join(cols, ", "))
	n := 1
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range t.Columns {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// sanitizeValue adapts a source value for the target. PostgreSQL text
// columns reject NUL bytes, which MSSQL strings can legally carry.
func sanitizeValue(v any) any {
	switch s := v.(type) {
	case string:
		if strings.ContainsRune(s, 0) {
			return strings.ReplaceAll(s, "\x00", "")
		}
	case []byte:
		// Raw bytes pass through; bytea accepts NUL.
	}
	return v
}

// valueConverter returns a per-column conversion applied between scan and
// insert, or nil when values can pass through as scanned.
//
// uniqueidentifier arrives as the raw 16 bytes in MSSQL's mixed-endian
// layout; binding that to a uuid column would store a GUID whose first
// three fields are byte-swapped relative to the source. mssql's
// UniqueIdentifier does the swap. decimal and money arrive as the []byte
// string form, which is handed to the numeric codec as a string.
func valueConverter(col *Column) func(any) any {
	switch col.DataType {
	case "uniqueidentifier":
		return func(v any) any {
			b, ok := v.([]byte)
			if !ok {
				return v
			}
			var u mssql.UniqueIdentifier
			if err := u.Scan(b); err != nil {
				return v
			}
			return u.String()
		}
	case "decimal", "numeric", "money", "smallmoney":
		return func(v any) any {
			if b, ok := v.([]byte); ok {
				return string(b)
			}
			return v
		}
	}
	return nil
}

// transferTable streams one table's rows in batches inside a single target
// transaction, so a mid-table failure leaves the target table empty rather
// than partially loaded.
func transferTable(ctx context.Context, src *sql.DB, pool *pgxpool.Pool, t *Table, batchSize int) (int64, error) {
	rows, err := src.QueryContext(ctx, buildSelectSQL(t))
	if err != nil {
		return 0, fmt.Errorf("select %s: %w", t.SourceKey(), err)
	}
	defer rows.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx for %s: %w", t.Key(), err)
	}
	defer tx.Rollback(ctx)

	colCount := len(t.Columns)
	converters := make([]func(any) any, colCount)
	for i := range t.Columns {
		converters[i] = valueConverter(&t.Columns[i])
	}

	var total int64
	batch := make([]any, 0, batchSize*colCount)
	batchRows := 0

	flush := func() error {
		if batchRows == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, buildInsertSQL(t, batchRows), batch...); err != nil {
			return fmt.Errorf("insert into %s: %w", t.Key(), err)
		}
		total += int64(batchRows)
		batch = batch[:0]
		batchRows = 0
		return nil
	}

	scan := make([]any, colCount)
	ptrs := make([]any, colCount)
	for i := range scan {
		ptrs[i] = &scan[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return total, fmt.Errorf("scan %s: %w", t.SourceKey(), err)
		}
		for i := range scan {
			v := scan[i]
			if converters[i] != nil && v != nil {
				v = converters[i](v)
			}
			batch = append(batch, sanitizeValue(v))
		}
		batchRows++
		if batchRows >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return total, fmt.Errorf("read %s: %w", t.SourceKey(), err)
	}
	if err := flush(); err != nil {
		return total, err
	}

	if err := tx.Commit(ctx); err != nil {
		return total, fmt.Errorf("commit %s: %w", t.Key(), err)
	}
	return total, nil
}

// transferData copies all tables in dependency order. The context is
// checked between tables so cancellation lands on a table boundary.
func transferData(ctx context.Context, src *sql.DB, pool *pgxpool.Pool, model *SchemaModel, order []string, batchSize int, sink ProgressSink) error {
	for i, key := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := model.TableByKey(key)
		if t == nil {
			return fmt.Errorf("table %s missing from model", key)
		}
		n, err := transferTable(ctx, src, pool, t, batchSize)
		if err != nil {
			return err
		}
		sink.Progress(i+1, len(order), fmt.Sprintf("%s (%d rows)", t.Key(), n))
	}
	return nil
}
