package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Normalization operation kinds.
const (
	OpExtractLookup  = "extract_lookup"
	OpSplitColumn    = "split_column"
	OpCombineColumns = "combine_columns"
	OpAuditColumns   = "add_audit_columns"
)

// NormalizationOp is one data-normalization step applied to the target
// after transfer: extracting a lookup table from a denormalized column,
// splitting or combining columns, or adding audit columns.
type NormalizationOp struct {
	Op    string `json:"op"`
	Table string `json:"table"` // target reference, schema.Name ("public" when bare)

	// extract_lookup
	Column      string `json:"column,omitempty"`
	LookupTable string `json:"lookup_table,omitempty"`
	IDColumn    string `json:"id_column,omitempty"`    // default ID
	ValueColumn string `json:"value_column,omitempty"` // default Value
	CreateFK    *bool  `json:"create_fk,omitempty"`    // default true

	// split_column
	Targets   []string `json:"targets,omitempty"`
	Delimiter string   `json:"delimiter,omitempty"` // default single space

	// combine_columns
	Columns    []string `json:"columns,omitempty"`
	Target     string   `json:"target,omitempty"`
	Separator  string   `json:"separator,omitempty"` // default single space
	DropSource bool     `json:"drop_source,omitempty"`

	// add_audit_columns
	CreatedBy string `json:"created_by,omitempty"`
	UpdatedBy string `json:"updated_by,omitempty"`
}

// loadNormalizations reads the normalization plan, a JSON array of
// operations executed in order. An empty path yields an empty plan.
func loadNormalizations(path string) ([]NormalizationOp, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read normalizations: %w", err)
	}
	var ops []NormalizationOp
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("parse normalizations %s: %w", path, err)
	}
	for i := range ops {
		if err := ops[i].validate(); err != nil {
			return nil, fmt.Errorf("normalization %d: %w", i+1, err)
		}
	}
	return ops, nil
}

func (op *NormalizationOp) validate() error {
	if op.Table == "" {
		return fmt.Errorf("table is required")
	}
	switch op.Op {
	case OpExtractLookup:
		if op.Column == "" || op.LookupTable == "" {
			return fmt.Errorf("extract_lookup needs column and lookup_table")
		}
	case OpSplitColumn:
		if op.Column == "" || len(op.Targets) == 0 {
			return fmt.Errorf("split_column needs column and targets")
		}
	case OpCombineColumns:
		if len(op.Columns) == 0 || op.Target == "" {
			return fmt.Errorf("combine_columns needs columns and target")
		}
	case OpAuditColumns:
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
	return nil
}

// normTableRef parses a target table reference, defaulting bare names to
// the public schema, and returns the quoted reference plus the bare parts.
func normTableRef(ref string) (quoted, schema, table string) {
	schema, table, ok := strings.Cut(stripIdentQuotes(ref), ".")
	if !ok {
		schema, table = "public", stripIdentQuotes(ref)
	}
	return pgIdent(schema) + "." + pgIdent(table), schema, table
}

func (op *NormalizationOp) idColumn() string {
	if op.IDColumn != "" {
		return op.IDColumn
	}
	return "ID"
}

func (op *NormalizationOp) valueColumn() string {
	if op.ValueColumn != "" {
		return op.ValueColumn
	}
	return "Value"
}

func (op *NormalizationOp) delimiter() string {
	if op.Delimiter != "" {
		return op.Delimiter
	}
	return " "
}

func (op *NormalizationOp) separator() string {
	if op.Separator != "" {
		return op.Separator
	}
	return " "
}

// extractLookupSQL builds the statement sequence that materializes a
// lookup table from a column: create, fill with distinct values, add the
// FK column, backfill it. The FK constraint is returned separately since
// its failure is non-fatal.
func extractLookupSQL(op *NormalizationOp) (stmts []string, fkStmt string) {
	source, schema, table := normTableRef(op.Table)
	lookup := pgIdent(schema) + "." + pgIdent(op.LookupTable)
	id := pgIdent(op.idColumn())
	value := pgIdent(op.valueColumn())
	column := pgIdent(op.Column)
	fkColumn := pgIdent(op.Column + "ID")

	stmts = []string{
		fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (\n    %s serial PRIMARY KEY,\n    %s varchar(255) UNIQUE NOT NULL,\n    %s timestamp DEFAULT NOW()\n)",
			lookup, id, value, pgIdent("CreatedAt")),
		fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ON CONFLICT (%s) DO NOTHING",
			lookup, value, column, source, column, value),
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s integer", source, fkColumn),
		fmt.Sprintf(
			"UPDATE %s AS src SET %s = lkp.%s FROM %s AS lkp WHERE src.%s = lkp.%s",
			source, fkColumn, id, lookup, column, value),
	}
	fkStmt = fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		source, pgIdent("fk_"+table+"_"+op.LookupTable), fkColumn, lookup, id)
	return stmts, fkStmt
}

// splitColumnSQL builds the statements that split a column into target
// columns on a delimiter via split_part.
func splitColumnSQL(op *NormalizationOp) []string {
	ref, _, _ := normTableRef(op.Table)
	var stmts []string
	for _, col := range op.Targets {
		stmts = append(stmts, fmt.Sprintf(
			"ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s varchar(255)", ref, pgIdent(col)))
	}
	sets := make([]string, len(op.Targets))
	for i, col := range op.Targets {
		sets[i] = fmt.Sprintf("%s = split_part(%s, %s, %d)",
			pgIdent(col), pgIdent(op.Column), quoteLiteral(op.delimiter()), i+1)
	}
	stmts = append(stmts, fmt.Sprintf("UPDATE %s SET %s", ref, strings.Join(sets, ", ")))
	return stmts
}

// combineColumnsSQL builds the statements that concatenate columns into a
// target column, optionally dropping the sources.
func combineColumnsSQL(op *NormalizationOp) []string {
	ref, _, _ := normTableRef(op.Table)
	stmts := []string{fmt.Sprintf(
		"ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s text", ref, pgIdent(op.Target))}

	parts := make([]string, len(op.Columns))
	for i, col := range op.Columns {
		parts[i] = fmt.Sprintf("COALESCE(%s, '')", pgIdent(col))
	}
	expr := strings.Join(parts, " || "+quoteLiteral(op.separator())+" || ")
	stmts = append(stmts, fmt.Sprintf("UPDATE %s SET %s = %s", ref, pgIdent(op.Target), expr))

	if op.DropSource {
		for _, col := range op.Columns {
			stmts = append(stmts, fmt.Sprintf(
				"ALTER TABLE %s DROP COLUMN IF EXISTS %s", ref, pgIdent(col)))
		}
	}
	return stmts
}

// auditColumnsSQL builds the statements that add CreatedAt/UpdatedAt
// timestamps plus optional by-user columns.
func auditColumnsSQL(op *NormalizationOp) []string {
	ref, _, _ := normTableRef(op.Table)
	stmts := []string{fmt.Sprintf(
		"ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s timestamp DEFAULT NOW(), ADD COLUMN IF NOT EXISTS %s timestamp DEFAULT NOW()",
		ref, pgIdent("CreatedAt"), pgIdent("UpdatedAt"))}
	if op.CreatedBy != "" {
		stmts = append(stmts, fmt.Sprintf(
			"ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s varchar(100)", ref, pgIdent(op.CreatedBy)))
	}
	if op.UpdatedBy != "" {
		stmts = append(stmts, fmt.Sprintf(
			"ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s varchar(100)", ref, pgIdent(op.UpdatedBy)))
	}
	return stmts
}

// applyNormalizations runs the normalization plan in order. Any statement
// failure aborts the plan except lookup FK constraints, which degrade to a
// logged warning like the post-data constraint passes.
func applyNormalizations(ctx context.Context, pool *pgxpool.Pool, ops []NormalizationOp) error {
	for i := range ops {
		op := &ops[i]
		var stmts []string
		var fkStmt string
		switch op.Op {
		case OpExtractLookup:
			stmts, fkStmt = extractLookupSQL(op)
		case OpSplitColumn:
			stmts = splitColumnSQL(op)
		case OpCombineColumns:
			stmts = combineColumnsSQL(op)
		case OpAuditColumns:
			stmts = auditColumnsSQL(op)
		}
		log.Printf("  %s on %s", op.Op, op.Table)
		for _, stmt := range stmts {
			if err := execSQL(ctx, pool, stmt); err != nil {
				return fmt.Errorf("normalization %s on %s: %w", op.Op, op.Table, err)
			}
		}
		if fkStmt != "" {
			wantFK := op.CreateFK == nil || *op.CreateFK
			if wantFK {
				if err := execSQL(ctx, pool, fkStmt); err != nil {
					log.Printf("lookup foreign key on %s failed: %v", op.Table, err)
				}
			}
		}
	}
	return nil
}
