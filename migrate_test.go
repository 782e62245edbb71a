package main

import "testing"

func testTable() *Table {
	return &Table{
		SchemaName:     "dbo",
		SourceName:     "Studenten",
		TranslatedName: "Student",
		Columns: []Column{
			{SourceName: "ID", TranslatedName: "ID", DataType: "int"},
			{SourceName: "naam", TranslatedName: "Name", DataType: "nvarchar"},
		},
	}
}

func TestBuildSelectSQL(t *testing.T) {
	got := buildSelectSQL(testTable())
	want := "SELECT [ID], [naam] FROM [dbo].[Studenten]"
	if got != want {
		t.Errorf("buildSelectSQL = %q, want %q", got, want)
	}
}

func TestBuildInsertSQL(t *testing.T) {
	got := buildInsertSQL(testTable(), 2)
	want := `INSERT INTO "public"."Student" ("ID", "Name") VALUES ($1, $2), ($3, $4)`
	if got != want {
		t.Errorf("buildInsertSQL = %q, want %q", got, want)
	}
}

func TestBuildInsertSQLSingleRow(t *testing.T) {
	got := buildInsertSQL(testTable(), 1)
	want := `INSERT INTO "public"."Student" ("ID", "Name") VALUES ($1, $2)`
	if got != want {
		t.Errorf("buildInsertSQL = %q, want %q", got, want)
	}
}

func TestValueConverterUniqueIdentifier(t *testing.T) {
	conv := valueConverter(&Column{DataType: "uniqueidentifier"})
	if conv == nil {
		t.Fatal("no converter for uniqueidentifier")
	}

	// Raw wire bytes for 01234567-89AB-CDEF-0123-456789ABCDEF: the first
	// three fields are little-endian on the wire.
	raw := []byte{
		0x67, 0x45, 0x23, 0x01,
		0xAB, 0x89,
		0xEF, 0xCD,
		0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF,
	}
	got, ok := conv(raw).(string)
	if !ok {
		t.Fatalf("converted value is %T, want string", conv(raw))
	}
	if got != "01234567-89AB-CDEF-0123-456789ABCDEF" {
		t.Errorf("GUID = %s, want 01234567-89AB-CDEF-0123-456789ABCDEF", got)
	}

	// Values that are not raw GUID bytes pass through.
	if v := conv("already-a-string"); v != "already-a-string" {
		t.Errorf("string changed: %v", v)
	}
}

func TestValueConverterDecimal(t *testing.T) {
	for _, dt := range []string{"decimal", "numeric", "money", "smallmoney"} {
		conv := valueConverter(&Column{DataType: dt})
		if conv == nil {
			t.Fatalf("no converter for %s", dt)
		}
		if got := conv([]byte("123.45")); got != "123.45" {
			t.Errorf("%s: converted = %v, want string 123.45", dt, got)
		}
		if got := conv(nil); got != nil {
			t.Errorf("%s: nil changed: %v", dt, got)
		}
	}
}

func TestValueConverterPassThrough(t *testing.T) {
	for _, dt := range []string{"int", "nvarchar", "varbinary", "datetime"} {
		if conv := valueConverter(&Column{DataType: dt}); conv != nil {
			t.Errorf("unexpected converter for %s", dt)
		}
	}
}

func TestSanitizeValue(t *testing.T) {
	if got := sanitizeValue("abc\x00def"); got != "abcdef" {
		t.Errorf("NUL not stripped: %q", got)
	}
	if got := sanitizeValue("clean"); got != "clean" {
		t.Errorf("clean string changed: %q", got)
	}
	if got := sanitizeValue(int64(42)); got != int64(42) {
		t.Errorf("non-string changed: %v", got)
	}
	raw := []byte{0x01, 0x00, 0x02}
	got, ok := sanitizeValue(raw).([]byte)
	if !ok || len(got) != 3 {
		t.Errorf("bytes must pass through untouched: %v", got)
	}
	if got := sanitizeValue(nil); got != nil {
		t.Errorf("nil changed: %v", got)
	}
}
