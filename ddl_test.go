package main

import (
	"strings"
	"testing"
)

func TestMapType(t *testing.T) {
	tests := []struct {
		col   Column
		want  string
		known bool
	}{
		{Column{DataType: "int"}, "integer", true},
		{Column{DataType: "bigint"}, "bigint", true},
		{Column{DataType: "smallint"}, "smallint", true},
		{Column{DataType: "tinyint"}, "smallint", true},
		{Column{DataType: "nvarchar", CharMaxLen: 100}, "varchar(100)", true},
		{Column{DataType: "nvarchar", CharMaxLen: -1}, "text", true},
		{Column{DataType: "varchar", CharMaxLen: -1}, "text", true},
		{Column{DataType: "nchar", CharMaxLen: 10}, "char(10)", true},
		{Column{DataType: "text"}, "text", true},
		{Column{DataType: "ntext"}, "text", true},
		{Column{DataType: "decimal", Precision: 10, Scale: 2}, "numeric(10,2)", true},
		{Column{DataType: "money"}, "numeric(19,4)", true},
		{Column{DataType: "smallmoney"}, "numeric(10,4)", true},
		{Column{DataType: "float"}, "double precision", true},
		{Column{DataType: "real"}, "real", true},
		{Column{DataType: "bit"}, "boolean", true},
		{Column{DataType: "datetime"}, "timestamp", true},
		{Column{DataType: "datetime2"}, "timestamp", true},
		{Column{DataType: "smalldatetime"}, "timestamp", true},
		{Column{DataType: "datetimeoffset"}, "timestamptz", true},
		{Column{DataType: "date"}, "date", true},
		{Column{DataType: "time"}, "time", true},
		{Column{DataType: "uniqueidentifier"}, "uuid", true},
		{Column{DataType: "varbinary"}, "bytea", true},
		{Column{DataType: "image"}, "bytea", true},
		{Column{DataType: "xml"}, "xml", true},
		{Column{DataType: "rowversion"}, "bytea", true},
		{Column{DataType: "geography"}, "text", false},
	}
	for _, tt := range tests {
		got, known := mapType(&tt.col)
		if got != tt.want || known != tt.known {
			t.Errorf("mapType(%s) = %q, %v; want %q, %v",
				tt.col.DataType, got, known, tt.want, tt.known)
		}
	}
}

func TestMapDefault(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"((1))", "1", true},
		{"((0))", "0", true},
		{"((-1))", "-1", true},
		{"((3.14))", "3.14", true},
		{"(getdate())", "NOW()", true},
		{"(GETDATE())", "NOW()", true},
		{"(getutcdate())", "NOW()", true},
		{"(sysdatetime())", "NOW()", true},
		{"(newid())", "gen_random_uuid()", true},
		{"('active')", "'active'", true},
		{"(N'actief')", "'actief'", true},
		{"(NULL)", "NULL", true},
		{"(suser_sname())", "", false},
		{"((a)+(b))", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := mapDefault(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("mapDefault(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTrimBalancedParens(t *testing.T) {
	tests := []struct{ in, want string }{
		{"((1))", "1"},
		{"(getdate())", "getdate()"},
		{"(a)+(b)", "(a)+(b)"},
		{"((a)+(b))", "(a)+(b)"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := trimBalancedParens(tt.in); got != tt.want {
			t.Errorf("trimBalancedParens(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColumnDDLIdentity(t *testing.T) {
	one := "1"
	bitDefault := "((1))"
	tests := []struct {
		col  Column
		want string
	}{
		{Column{TranslatedName: "id", DataType: "int", IsIdentity: true}, "id serial NOT NULL"},
		{Column{TranslatedName: "id", DataType: "bigint", IsIdentity: true}, "id bigserial NOT NULL"},
		// Identity drops any default.
		{Column{TranslatedName: "id", DataType: "int", IsIdentity: true, Default: &one}, "id serial NOT NULL"},
		{Column{TranslatedName: "active", DataType: "bit", Nullable: true, Default: &bitDefault}, "active boolean DEFAULT true"},
	}
	for _, tt := range tests {
		if got := columnDDL(&tt.col); got != tt.want {
			t.Errorf("columnDDL = %q, want %q", got, tt.want)
		}
	}
}

func TestGenerateCreateTable(t *testing.T) {
	tbl := &Table{
		SchemaName:     "dbo",
		SourceName:     "Studenten",
		TranslatedName: "Student",
		Columns: []Column{
			{TranslatedName: "ID", DataType: "int", IsIdentity: true},
			{TranslatedName: "Name", DataType: "nvarchar", CharMaxLen: 100, Nullable: true},
		},
	}
	got := generateCreateTable(tbl)
	want := "CREATE TABLE \"public\".\"Student\" (\n" +
		"    \"ID\" serial NOT NULL,\n" +
		"    \"Name\" varchar(100)\n)"
	if got != want {
		t.Errorf("generateCreateTable =\n%s\nwant\n%s", got, want)
	}
}

func TestPgIdent(t *testing.T) {
	tests := []struct{ in, want string }{
		{"name", "name"},
		{"user", `"user"`},      // reserved word
		{"Name", `"Name"`},      // uppercase needs quoting
		{"order", `"order"`},
		{"col_1", "col_1"},
		{"1col", `"1col"`},      // leading digit
		{`we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		if got := pgIdent(tt.in); got != tt.want {
			t.Errorf("pgIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPgSchemaName(t *testing.T) {
	if got := pgSchemaName("dbo"); got != "public" {
		t.Errorf("pgSchemaName(dbo) = %q, want public", got)
	}
	if got := pgSchemaName("sales"); got != "sales" {
		t.Errorf("pgSchemaName(sales) = %q, want sales", got)
	}
}

func TestMssqlIdent(t *testing.T) {
	if got := mssqlIdent("Stu]dent"); got != "[Stu]]dent]" {
		t.Errorf("mssqlIdent = %q", got)
	}
	if got := mssqlTableRef("dbo", "Students"); got != "[dbo].[Students]" {
		t.Errorf("mssqlTableRef = %q", got)
	}
}

func TestGenerateCreateTableQuotesReserved(t *testing.T) {
	tbl := &Table{
		SchemaName:     "dbo",
		SourceName:     "T",
		TranslatedName: "order",
		Columns:        []Column{{TranslatedName: "user", DataType: "int", Nullable: true}},
	}
	got := generateCreateTable(tbl)
	if !strings.Contains(got, `"order"`) || !strings.Contains(got, `"user"`) {
		t.Errorf("reserved words not quoted:\n%s", got)
	}
}
