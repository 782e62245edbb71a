package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadNormalizations(t *testing.T) {
	ops, err := loadNormalizations("")
	if err != nil || len(ops) != 0 {
		t.Fatalf("empty path should yield empty plan, got %v, %v", ops, err)
	}

	path := filepath.Join(t.TempDir(), "norm.json")
	content := `[
		{"op": "extract_lookup", "table": "public.Student", "column": "Status", "lookup_table": "StatusLookup"},
		{"op": "add_audit_columns", "table": "public.Student"}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	ops, err = loadNormalizations(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 || ops[0].Op != OpExtractLookup || ops[1].Op != OpAuditColumns {
		t.Errorf("ops = %v", ops)
	}
}

func TestLoadNormalizationsRejectsIncomplete(t *testing.T) {
	tests := []string{
		`[{"op": "extract_lookup", "table": "public.T"}]`,              // no column/lookup_table
		`[{"op": "split_column", "table": "public.T", "column": "x"}]`, // no targets
		`[{"op": "combine_columns", "table": "public.T"}]`,             // no columns/target
		`[{"op": "bogus", "table": "public.T"}]`,
		`[{"op": "add_audit_columns"}]`, // no table
	}
	for _, content := range tests {
		path := filepath.Join(t.TempDir(), "norm.json")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := loadNormalizations(path); err == nil {
			t.Errorf("accepted invalid plan %s", content)
		}
	}
}

func TestExtractLookupSQL(t *testing.T) {
	op := &NormalizationOp{
		Op: OpExtractLookup, Table: "public.Student",
		Column: "Status", LookupTable: "StatusLookup",
	}
	stmts, fkStmt := extractLookupSQL(op)
	if len(stmts) != 4 {
		t.Fatalf("got %d statements, want 4", len(stmts))
	}
	if !strings.Contains(stmts[0], `CREATE TABLE IF NOT EXISTS public."StatusLookup"`) {
		t.Errorf("create: %s", stmts[0])
	}
	if !strings.Contains(stmts[0], `"ID" serial PRIMARY KEY`) ||
		!strings.Contains(stmts[0], `"Value" varchar(255) UNIQUE NOT NULL`) {
		t.Errorf("default lookup columns missing: %s", stmts[0])
	}
	if !strings.Contains(stmts[1], `SELECT DISTINCT "Status"`) ||
		!strings.Contains(stmts[1], `ON CONFLICT ("Value") DO NOTHING`) {
		t.Errorf("fill: %s", stmts[1])
	}
	if !strings.Contains(stmts[2], `ADD COLUMN IF NOT EXISTS "StatusID" integer`) {
		t.Errorf("fk column: %s", stmts[2])
	}
	if !strings.Contains(stmts[3], `SET "StatusID" = lkp."ID"`) ||
		!strings.Contains(stmts[3], `src."Status" = lkp."Value"`) {
		t.Errorf("backfill: %s", stmts[3])
	}
	if !strings.Contains(fkStmt, `"fk_Student_StatusLookup"`) ||
		!strings.Contains(fkStmt, `REFERENCES public."StatusLookup" ("ID")`) {
		t.Errorf("fk: %s", fkStmt)
	}
}

func TestExtractLookupSQLCustomColumns(t *testing.T) {
	op := &NormalizationOp{
		Op: OpExtractLookup, Table: "Student",
		Column: "Status", LookupTable: "StatusLookup",
		IDColumn: "Code", ValueColumn: "Label",
	}
	stmts, _ := extractLookupSQL(op)
	if !strings.Contains(stmts[0], `"Code" serial PRIMARY KEY`) ||
		!strings.Contains(stmts[0], `"Label" varchar(255)`) {
		t.Errorf("custom columns ignored: %s", stmts[0])
	}
	// Bare table name defaults to public.
	if !strings.Contains(stmts[0], `public."StatusLookup"`) {
		t.Errorf("bare name not defaulted to public: %s", stmts[0])
	}
}

func TestSplitColumnSQL(t *testing.T) {
	op := &NormalizationOp{
		Op: OpSplitColumn, Table: "public.Student",
		Column: "FullName", Targets: []string{"FirstName", "LastName"},
	}
	stmts := splitColumnSQL(op)
	if len(stmts) != 3 {
		t.Fatalf("got %d statements, want 3", len(stmts))
	}
	update := stmts[2]
	if !strings.Contains(update, `"FirstName" = split_part("FullName", ' ', 1)`) ||
		!strings.Contains(update, `"LastName" = split_part("FullName", ' ', 2)`) {
		t.Errorf("update: %s", update)
	}
}

func TestCombineColumnsSQL(t *testing.T) {
	op := &NormalizationOp{
		Op: OpCombineColumns, Table: "public.Student",
		Columns: []string{"FirstName", "LastName"}, Target: "FullName",
		Separator: ", ", DropSource: true,
	}
	stmts := combineColumnsSQL(op)
	if len(stmts) != 4 {
		t.Fatalf("got %d statements, want 4", len(stmts))
	}
	if !strings.Contains(stmts[1], `COALESCE("FirstName", '') || ', ' || COALESCE("LastName", '')`) {
		t.Errorf("concat: %s", stmts[1])
	}
	if !strings.Contains(stmts[2], `DROP COLUMN IF EXISTS "FirstName"`) ||
		!strings.Contains(stmts[3], `DROP COLUMN IF EXISTS "LastName"`) {
		t.Errorf("drop: %v", stmts[2:])
	}
}

func TestAuditColumnsSQL(t *testing.T) {
	op := &NormalizationOp{Op: OpAuditColumns, Table: "public.Student", CreatedBy: "CreatedBy"}
	stmts := auditColumnsSQL(op)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
	if !strings.Contains(stmts[0], `"CreatedAt" timestamp DEFAULT NOW()`) ||
		!strings.Contains(stmts[0], `"UpdatedAt" timestamp DEFAULT NOW()`) {
		t.Errorf("timestamps: %s", stmts[0])
	}
	if !strings.Contains(stmts[1], `"CreatedBy" varchar(100)`) {
		t.Errorf("created by: %s", stmts[1])
	}
}
