package main

import "testing"

func TestRowCountIssue(t *testing.T) {
	if issue := rowCountIssue("dbo.Student", 100, 100); issue != nil {
		t.Errorf("matching counts produced an issue: %v", issue)
	}

	issue := rowCountIssue("dbo.Student", 100, 90)
	if issue == nil {
		t.Fatal("mismatched counts produced no issue")
	}
	if issue.Severity != SeverityError {
		t.Errorf("severity = %s, want %s", issue.Severity, SeverityError)
	}
	if issue.Count != 10 {
		t.Errorf("count = %d, want 10", issue.Count)
	}

	// Target having more rows than the source is just as wrong.
	if issue := rowCountIssue("dbo.Student", 90, 100); issue == nil || issue.Count != 10 {
		t.Errorf("target surplus not flagged: %v", issue)
	}
}

func TestDuplicateKeyIssue(t *testing.T) {
	if issue := duplicateKeyIssue("dbo.Student", []string{"ID"}, 0); issue != nil {
		t.Errorf("zero duplicates produced an issue: %v", issue)
	}
	issue := duplicateKeyIssue("dbo.Student", []string{"ID", "Year"}, 3)
	if issue == nil || issue.Severity != SeverityError || issue.Count != 3 {
		t.Errorf("unexpected issue: %v", issue)
	}
	if issue.Column != "ID,Year" {
		t.Errorf("column = %q, want ID,Year", issue.Column)
	}
}

func TestOrphanIssue(t *testing.T) {
	if issue := orphanIssue("dbo.Enrollment", "FK_Student", 0); issue != nil {
		t.Errorf("zero orphans produced an issue: %v", issue)
	}
	issue := orphanIssue("dbo.Enrollment", "FK_Student", 7)
	if issue == nil || issue.Severity != SeverityError || issue.Count != 7 {
		t.Errorf("unexpected issue: %v", issue)
	}
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{
		Severity: SeverityError,
		Category: "null_check",
		Table:    "public.Student",
		Column:   "Name",
		Message:  "NULL values found",
		Count:    5,
	}
	want := "[ERROR] null_check: public.Student.Name - NULL values found (5 occurrences)"
	if got := issue.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	noCount := ValidationIssue{Severity: SeverityInfo, Category: "row_count", Table: "summary", Message: "3 of 3 tables match"}
	want = "[INFO] row_count: summary - 3 of 3 tables match"
	if got := noCount.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestAuditAllowed(t *testing.T) {
	allowed := []string{"ID", "id", "StudentID", "created_at", "CreatedAt", "UpdatedBy"}
	for _, name := range allowed {
		if !auditAllowed(name) {
			t.Errorf("auditAllowed(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"Status", "Name", "Description"} {
		if auditAllowed(name) {
			t.Errorf("auditAllowed(%q) = true, want false", name)
		}
	}
}

func targetTable(schema, name string, cols ...string) *Table {
	t := &Table{SchemaName: schema, SourceName: name, TranslatedName: name}
	for _, c := range cols {
		t.Columns = append(t.Columns, Column{SourceName: c, TranslatedName: c})
	}
	return t
}

func TestAuditRecurringColumns(t *testing.T) {
	v := &Validator{}
	target := &SchemaModel{Tables: []*Table{
		targetTable("public", "a", "Status", "ID", "Rare"),
		targetTable("public", "b", "Status", "ID"),
		targetTable("public", "c", "Status", "ID"),
	}}
	v.AuditRecurringColumns(target, 3)
	if len(v.Issues) != 1 {
		t.Fatalf("issues = %v, want exactly one", v.Issues)
	}
	got := v.Issues[0]
	if got.Column != "Status" || got.Severity != SeverityWarning || got.Count != 3 {
		t.Errorf("unexpected issue: %v", got)
	}
}

func TestDerivedTables(t *testing.T) {
	source := &SchemaModel{Tables: []*Table{
		{SchemaName: "dbo", SourceName: "Studenten", TranslatedName: "Student"},
	}}
	target := &SchemaModel{Tables: []*Table{
		targetTable("public", "Student", "ID"),
		targetTable("public", "StatusLookup", "ID", "Value"),
		targetTable("public", "migration_history", "script_name"),
	}}

	derived := derivedTables(target, source)
	if len(derived) != 1 || derived[0].TranslatedName != "StatusLookup" {
		names := make([]string, len(derived))
		for i, d := range derived {
			names[i] = d.Key()
		}
		t.Errorf("derived = %v, want only public.StatusLookup", names)
	}
}

func TestHasErrors(t *testing.T) {
	v := &Validator{}
	v.add(ValidationIssue{Severity: SeverityInfo})
	v.add(ValidationIssue{Severity: SeverityWarning})
	if v.HasErrors() {
		t.Error("HasErrors true without errors")
	}
	v.add(ValidationIssue{Severity: SeverityError})
	if !v.HasErrors() {
		t.Error("HasErrors false with an error present")
	}
}
