package main

import (
	"reflect"
	"testing"
)

func TestSchemaParams(t *testing.T) {
	in, args := schemaParams([]string{"dbo", "sales"}, 0)
	if in != "@p1, @p2" {
		t.Errorf("placeholders = %q", in)
	}
	if !reflect.DeepEqual(args, []any{"dbo", "sales"}) {
		t.Errorf("args = %v", args)
	}
}

func TestFilterTables(t *testing.T) {
	tr := NewTranslator(map[string]string{"Studenten": "Student"})
	model := &SchemaModel{
		Tables: []*Table{
			{SchemaName: "dbo", SourceName: "Studenten", TranslatedName: "Student"},
			{SchemaName: "dbo", SourceName: "AuditLog", TranslatedName: "AuditLog"},
		},
		Dependencies: map[string][]string{
			"dbo.Student": {"dbo.AuditLog"},
		},
	}

	filtered, err := filterTables(model, []string{"dbo.Studenten"}, tr)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered.Tables) != 1 || filtered.Tables[0].Key() != "dbo.Student" {
		t.Errorf("tables = %v", filtered.TableKeys())
	}
	// Edge to the excluded table must be gone.
	if len(filtered.Dependencies["dbo.Student"]) != 0 {
		t.Errorf("dependencies = %v", filtered.Dependencies)
	}
}

func TestFilterTablesBadRef(t *testing.T) {
	model := &SchemaModel{}
	if _, err := filterTables(model, []string{"NoSchema"}, NewTranslator(nil)); err == nil {
		t.Fatal("reference without schema accepted")
	}
}

func TestFilterTablesNoMatch(t *testing.T) {
	model := &SchemaModel{Tables: []*Table{{SchemaName: "dbo", SourceName: "T", TranslatedName: "T"}}}
	if _, err := filterTables(model, []string{"dbo.Missing"}, NewTranslator(nil)); err == nil {
		t.Fatal("empty result accepted")
	}
}

func TestAppendUnique(t *testing.T) {
	list := appendUnique(nil, "a")
	list = appendUnique(list, "b")
	list = appendUnique(list, "a")
	if !reflect.DeepEqual(list, []string{"a", "b"}) {
		t.Errorf("list = %v", list)
	}
}
