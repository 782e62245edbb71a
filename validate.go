package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Validation issue severities, most severe first.
const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
	SeverityInfo    = "INFO"
)

// ValidationIssue is one finding from the post-migration checks.
type ValidationIssue struct {
	Severity string
	Category string
	Table    string
	Column   string
	Message  string
	Count    int64
}

func (i ValidationIssue) String() string {
	loc := i.Table
	if i.Column != "" {
		loc += "." + i.Column
	}
	s := fmt.Sprintf("[%s] %s: %s - %s", i.Severity, i.Category, loc, i.Message)
	if i.Count > 0 {
		s += fmt.Sprintf(" (%d occurrences)", i.Count)
	}
	return s
}

// RowCountResult is one source/target row count pair for the report.
type RowCountResult struct {
	Table  string
	Source int64
	Target int64
}

// Validator runs post-migration checks against both databases and
// accumulates findings. Checks never abort the run; everything ends up in
// the report.
type Validator struct {
	src  *sql.DB
	pool *pgxpool.Pool

	Issues    []ValidationIssue
	RowCounts []RowCountResult
}

func NewValidator(src *sql.DB, pool *pgxpool.Pool) *Validator {
	return &Validator{src: src, pool: pool}
}

func (v *Validator) add(issue ValidationIssue) {
	v.Issues = append(v.Issues, issue)
}

// checkErr records an unexpected failure of a check itself as a warning,
// so a broken query never masks the rest of the validation.
func (v *Validator) checkErr(category, table string, err error) {
	v.add(ValidationIssue{
		Severity: SeverityWarning,
		Category: category,
		Table:    table,
		Message:  "check failed: " + err.Error(),
	})
}

// rowCountIssue is the pure decision core of CompareRowCounts.
func rowCountIssue(table string, src, tgt int64) *ValidationIssue {
	if src == tgt {
		return nil
	}
	return &ValidationIssue{
		Severity: SeverityError,
		Category: "row_count",
		Table:    table,
		Message:  fmt.Sprintf("source has %d rows, target has %d", src, tgt),
		Count:    abs64(src - tgt),
	}
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// CompareRowCounts counts every migrated table on both sides.
func (v *Validator) CompareRowCounts(ctx context.Context, model *SchemaModel) {
	matched := 0
	for _, t := range model.Tables {
		var srcCount, tgtCount int64
		err := v.src.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+mssqlTableRef(t.SchemaName, t.SourceName)).Scan(&srcCount)
		if err != nil {
			v.checkErr("row_count", t.Key(), err)
			continue
		}
		err = v.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgTableRef(t)).Scan(&tgtCount)
		if err != nil {
			v.checkErr("row_count", t.Key(), err)
			continue
		}
		v.RowCounts = append(v.RowCounts, RowCountResult{Table: t.Key(), Source: srcCount, Target: tgtCount})
		if issue := rowCountIssue(t.Key(), srcCount, tgtCount); issue != nil {
			v.add(*issue)
		} else {
			matched++
		}
	}
	v.add(ValidationIssue{
		Severity: SeverityInfo,
		Category: "row_count",
		Table:    "summary",
		Message:  fmt.Sprintf("%d of %d tables match", matched, len(model.Tables)),
	})
}

// CheckTargetNulls verifies that columns declared NOT NULL at the source
// carry no NULLs on the target. NULLs can appear when the NOT NULL clause
// was dropped after a constraint failure.
func (v *Validator) CheckTargetNulls(ctx context.Context, model *SchemaModel) {
	for _, t := range model.Tables {
		for i := range t.Columns {
			col := &t.Columns[i]
			if col.Nullable {
				continue
			}
			var n int64
			err := v.pool.QueryRow(ctx, fmt.Sprintf(
				"SELECT COUNT(*) FROM %s WHERE %s IS NULL",
				pgTableRef(t), pgIdent(col.TranslatedName))).Scan(&n)
			if err != nil {
				v.checkErr("null_check", t.Key(), err)
				continue
			}
			if n > 0 {
				v.add(ValidationIssue{
					Severity: SeverityError,
					Category: "null_check",
					Table:    t.Key(),
					Column:   col.TranslatedName,
					Message:  "NULL values in a column that is NOT NULL at the source",
					Count:    n,
				})
			}
		}
	}
}

func duplicateKeyIssue(table string, keyCols []string, dupGroups int64) *ValidationIssue {
	if dupGroups == 0 {
		return nil
	}
	return &ValidationIssue{
		Severity: SeverityError,
		Category: "duplicate_key",
		Table:    table,
		Column:   strings.Join(keyCols, ","),
		Message:  "duplicate primary key values on the target",
		Count:    dupGroups,
	}
}

// CheckDuplicateKeys looks for primary key values that occur more than
// once on the target, which happens when the PK constraint failed to apply.
func (v *Validator) CheckDuplicateKeys(ctx context.Context, model *SchemaModel) {
	for _, t := range model.Tables {
		pk := t.PrimaryKey()
		if pk == nil {
			continue
		}
		cols := quotedColumnList(pk.Columns)
		var dupGroups int64
		err := v.pool.QueryRow(ctx, fmt.Sprintf(
			"SELECT COUNT(*) FROM (SELECT %s FROM %s GROUP BY %s HAVING COUNT(*) > 1) d",
			cols, pgTableRef(t), cols)).Scan(&dupGroups)
		if err != nil {
			v.checkErr("duplicate_key", t.Key(), err)
			continue
		}
		if issue := duplicateKeyIssue(t.Key(), pk.Columns, dupGroups); issue != nil {
			v.add(*issue)
		}
	}
}

func orphanIssue(table, fkName string, orphans int64) *ValidationIssue {
	if orphans == 0 {
		return nil
	}
	return &ValidationIssue{
		Severity: SeverityError,
		Category: "orphaned_fk",
		Table:    table,
		Column:   fkName,
		Message:  "foreign key values without a matching parent row",
		Count:    orphans,
	}
}

// CheckOrphanedForeignKeys anti-joins each child table against its parent
// and counts child rows whose reference has no match. Rows with NULL
// foreign keys are legitimate and excluded.
func (v *Validator) CheckOrphanedForeignKeys(ctx context.Context, model *SchemaModel) {
	for _, t := range model.Tables {
		for i := range t.Constraints {
			c := &t.Constraints[i]
			if c.Kind != ConstraintForeignKey || model.TableByKey(c.RefTable) == nil {
				continue
			}
			var joins, notNulls []string
			for j := range c.Columns {
				joins = append(joins, fmt.Sprintf("c.%s = p.%s",
					pgIdent(c.Columns[j]), pgIdent(c.RefColumns[j])))
				notNulls = append(notNulls, fmt.Sprintf("c.%s IS NOT NULL", pgIdent(c.Columns[j])))
			}
			var orphans int64
			err := v.pool.QueryRow(ctx, fmt.Sprintf(
				"SELECT COUNT(*) FROM %s c LEFT JOIN %s p ON %s WHERE %s AND p.%s IS NULL",
				pgTableRef(t), pgQualified(c.RefTable),
				strings.Join(joins, " AND "), strings.Join(notNulls, " AND "),
				pgIdent(c.RefColumns[0]))).Scan(&orphans)
			if err != nil {
				v.checkErr("orphaned_fk", t.Key(), err)
				continue
			}
			if issue := orphanIssue(t.Key(), c.Name, orphans); issue != nil {
				v.add(*issue)
			}
		}
	}
}

// SpotCheck samples random source rows per table and verifies each one
// exists on the target by primary key. Tables without a primary key are
// skipped; row counts already cover them.
func (v *Validator) SpotCheck(ctx context.Context, model *SchemaModel, sampleSize int) {
	if sampleSize <= 0 {
		return
	}
	for _, t := range model.Tables {
		pk := t.PrimaryKey()
		if pk == nil {
			continue
		}

		srcCols := make([]string, len(pk.Columns))
		for i, c := range pk.Columns {
			srcCols[i] = mssqlIdent(t.OriginalColumns[c])
		}
		rows, err := v.src.QueryContext(ctx, fmt.Sprintf(
			"SELECT TOP %d %s FROM %s ORDER BY NEWID()",
			sampleSize, strings.Join(srcCols, ", "),
			mssqlTableRef(t.SchemaName, t.SourceName)))
		if err != nil {
			v.checkErr("spot_check", t.Key(), err)
			continue
		}

		var missing int64
		var where []string
		for i, c := range pk.Columns {
			where = append(where, fmt.Sprintf("%s = $%d", pgIdent(c), i+1))
		}
		existsSQL := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s)",
			pgTableRef(t), strings.Join(where, " AND "))

		scanErr := func() error {
			defer rows.Close()
			vals := make([]any, len(pk.Columns))
			ptrs := make([]any, len(pk.Columns))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			for rows.Next() {
				if err := rows.Scan(ptrs...); err != nil {
					return err
				}
				var exists bool
				if err := v.pool.QueryRow(ctx, existsSQL, vals...).Scan(&exists); err != nil {
					return err
				}
				if !exists {
					missing++
				}
			}
			return rows.Err()
		}()
		if scanErr != nil {
			v.checkErr("spot_check", t.Key(), scanErr)
			continue
		}
		if missing > 0 {
			v.add(ValidationIssue{
				Severity: SeverityWarning,
				Category: "spot_check",
				Table:    t.Key(),
				Message:  "sampled source rows missing on the target",
				Count:    missing,
			})
		}
	}
}

// FetchTargetModel reconstructs table, column, and key-constraint
// metadata from the target catalog, independent of the source model, so
// target-only checks can cover derived tables that never existed on the
// source.
func (v *Validator) FetchTargetModel(ctx context.Context, model *SchemaModel) (*SchemaModel, error) {
	schemas := make(map[string]bool)
	for _, s := range model.Schemas {
		schemas[pgSchemaName(s)] = true
	}
	names := mapKeys(schemas)

	target := &SchemaModel{Schemas: names, Dependencies: map[string][]string{}}

	rows, err := v.pool.Query(ctx, `
		SELECT c.table_schema, c.table_name, c.column_name, c.data_type,
		       c.is_nullable, c.ordinal_position
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON c.table_schema = t.table_schema AND c.table_name = t.table_name
		WHERE t.table_type = 'BASE TABLE' AND c.table_schema = ANY($1)
		ORDER BY c.table_schema, c.table_name, c.ordinal_position`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var current *Table
	for rows.Next() {
		var (
			schema, table, nullable string
			col                     Column
		)
		if err := rows.Scan(&schema, &table, &col.TranslatedName, &col.DataType,
			&nullable, &col.OrdinalPos); err != nil {
			return nil, err
		}
		col.SourceName = col.TranslatedName
		col.Nullable = nullable == "YES"
		if current == nil || current.SchemaName != schema || current.TranslatedName != table {
			current = &Table{SchemaName: schema, SourceName: table, TranslatedName: table}
			target.Tables = append(target.Tables, current)
		}
		current.Columns = append(current.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	crows, err := v.pool.Query(ctx, `
		SELECT tc.table_schema, tc.table_name, tc.constraint_name,
		       tc.constraint_type, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_schema = kcu.constraint_schema
		 AND tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema AND tc.table_name = kcu.table_name
		WHERE tc.table_schema = ANY($1)
		  AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
		ORDER BY tc.table_schema, tc.table_name, tc.constraint_name, kcu.ordinal_position`,
		names)
	if err != nil {
		return nil, err
	}
	defer crows.Close()

	for crows.Next() {
		var schema, table, name, kind, column string
		if err := crows.Scan(&schema, &table, &name, &kind, &column); err != nil {
			return nil, err
		}
		t := target.TableByKey(schema + "." + table)
		if t == nil {
			continue
		}
		if n := len(t.Constraints); n > 0 && t.Constraints[n-1].Name == name {
			t.Constraints[n-1].Columns = append(t.Constraints[n-1].Columns, column)
			continue
		}
		t.Constraints = append(t.Constraints, Constraint{Name: name, Kind: kind, Columns: []string{column}})
	}
	return target, crows.Err()
}

func mapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// derivedTables returns target tables with no counterpart in the source
// model: lookup tables and other normalization products. The tool's own
// migration_history table is excluded.
func derivedTables(target, source *SchemaModel) []*Table {
	known := make(map[string]bool, len(source.Tables))
	for _, t := range source.Tables {
		known[pgSchemaName(t.SchemaName)+"."+t.TranslatedName] = true
	}
	var derived []*Table
	for _, t := range target.Tables {
		if known[t.Key()] || t.TranslatedName == "migration_history" {
			continue
		}
		derived = append(derived, t)
	}
	return derived
}

// auditAllowed reports whether a recurring column name is expected to
// repeat across tables: surrogate keys and audit timestamps.
func auditAllowed(name string) bool {
	lower := strings.ToLower(name)
	switch lower {
	case "id", "createdat", "created_at", "updatedat", "updated_at",
		"createdby", "created_by", "updatedby", "updated_by":
		return true
	}
	return strings.HasSuffix(lower, "id")
}

// AuditRecurringColumns flags column names that repeat across many target
// tables but are not on the allow-list. Such names often point at
// denormalized data worth a manual look.
func (v *Validator) AuditRecurringColumns(target *SchemaModel, threshold int) {
	counts := make(map[string]int)
	for _, t := range target.Tables {
		for i := range t.Columns {
			counts[t.Columns[i].TranslatedName]++
		}
	}
	for name, n := range counts {
		if n < threshold || auditAllowed(name) {
			continue
		}
		v.add(ValidationIssue{
			Severity: SeverityWarning,
			Category: "recurring_column",
			Table:    "target",
			Column:   name,
			Message:  fmt.Sprintf("column name appears in %d tables", n),
			Count:    int64(n),
		})
	}
}

// HasErrors reports whether any finding has ERROR severity.
func (v *Validator) HasErrors() bool {
	for _, i := range v.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
