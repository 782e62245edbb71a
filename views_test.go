package main

import (
	"strings"
	"testing"
)

func TestRewriteViewSQLTopAndNames(t *testing.T) {
	tr := NewTranslator(map[string]string{"Studenten": "Student"})
	nameMap := map[string]string{"dbo.Studenten": `"public"."Student"`}

	in := "CREATE VIEW [dbo].[TopStudenten] AS SELECT TOP 5 * FROM [dbo].[Studenten]"
	got := rewriteViewSQL(in, nameMap, tr)
	want := `SELECT * FROM "public"."Student" LIMIT 5`
	if got != want {
		t.Errorf("rewriteViewSQL =\n%q\nwant\n%q", got, want)
	}
}

func TestRewriteViewSQLFunctions(t *testing.T) {
	tr := NewTranslator(nil)
	tests := []struct{ in, want string }{
		{"SELECT GETDATE()", "SELECT NOW()"},
		{"SELECT getdate()", "SELECT NOW()"},
		{"SELECT ISNULL(a, 0)", "SELECT COALESCE(a, 0)"},
		{"SELECT LEN(name)", "SELECT LENGTH(name)"},
		{"SELECT CHARINDEX('x', name)", "SELECT STRPOS('x', name)"},
	}
	for _, tt := range tests {
		if got := rewriteViewSQL(tt.in, nil, tr); got != tt.want {
			t.Errorf("rewriteViewSQL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRewriteViewSQLBoilerplate(t *testing.T) {
	tr := NewTranslator(nil)
	in := "CREATE VIEW v WITH SCHEMABINDING AS\nSELECT a FROM t WITH (NOLOCK)\nGO\n"
	got := rewriteViewSQL(in, nil, tr)
	for _, banned := range []string{"CREATE VIEW", "SCHEMABINDING", "NOLOCK", "GO"} {
		if strings.Contains(got, banned) {
			t.Errorf("rewrite kept %q: %q", banned, got)
		}
	}
	if !strings.Contains(got, "SELECT a FROM t") {
		t.Errorf("rewrite lost the body: %q", got)
	}
}

func TestRewriteViewSQLBracketColumns(t *testing.T) {
	tr := NewTranslator(map[string]string{"naam": "name"})
	got := rewriteViewSQL("SELECT [naam], [Leeftijd] FROM t", nil, tr)
	if !strings.Contains(got, "name") {
		t.Errorf("bracketed column not translated: %q", got)
	}
	if !strings.Contains(got, `"Leeftijd"`) {
		t.Errorf("untranslated bracketed column not requoted: %q", got)
	}
	if strings.ContainsAny(got, "[]") {
		t.Errorf("brackets survived: %q", got)
	}
}

func TestRewriteViewSQLLongestKeyFirst(t *testing.T) {
	tr := NewTranslator(nil)
	nameMap := map[string]string{
		"dbo.Students":        `"public"."Student"`,
		"dbo.StudentsArchive": `"public"."StudentArchive"`,
	}
	got := rewriteViewSQL("SELECT * FROM dbo.StudentsArchive", nameMap, tr)
	if !strings.Contains(got, `"public"."StudentArchive"`) {
		t.Errorf("longer key clipped by shorter one: %q", got)
	}
}

func TestTableNameMap(t *testing.T) {
	model := &SchemaModel{
		Tables: []*Table{{SchemaName: "dbo", SourceName: "Studenten", TranslatedName: "Student"}},
		Views:  []View{{SchemaName: "dbo", SourceName: "VW_Top", TranslatedName: "VW_Top"}},
	}
	m := tableNameMap(model)
	if m["dbo.Studenten"] != `"public"."Student"` {
		t.Errorf("table mapping = %q", m["dbo.Studenten"])
	}
	if m["dbo.VW_Top"] != `"public"."VW_Top"` {
		t.Errorf("view mapping = %q", m["dbo.VW_Top"])
	}
}
