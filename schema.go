package main

import "strings"

// pgReservedWords are PostgreSQL reserved words that must be quoted as identifiers.
var pgReservedWords = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "authorization": true, "between": true,
	"binary": true, "both": true, "case": true, "cast": true, "check": true,
	"collate": true, "column": true, "constraint": true, "create": true, "cross": true,
	"current_date": true, "current_role": true, "current_time": true,
	"current_timestamp": true, "current_user": true, "default": true, "deferrable": true,
	"desc": true, "distinct": true, "do": true, "else": true, "end": true, "except": true,
	"false": true, "fetch": true, "for": true, "foreign": true, "freeze": true,
	"from": true, "full": true, "grant": true, "group": true, "having": true,
	"ilike": true, "in": true, "initially": true, "inner": true, "intersect": true,
	"into": true, "is": true, "isnull": true, "join": true, "lateral": true,
	"leading": true, "left": true, "like": true, "limit": true, "localtime": true,
	"localtimestamp": true, "natural": true, "not": true, "notnull": true, "null": true,
	"offset": true, "on": true, "only": true, "or": true, "order": true, "outer": true,
	"overlaps": true, "placing": true, "primary": true, "references": true,
	"returning": true, "right": true, "select": true, "session_user": true,
	"similar": true, "some": true, "symmetric": true, "table": true, "then": true,
	"to": true, "trailing": true, "true": true, "union": true, "unique": true,
	"user": true, "using": true, "variadic": true, "verbose": true, "when": true,
	"where": true, "window": true, "with": true,
}

// pgNeedsQuoting reports whether a PG identifier needs quoting beyond
// reserved-word checks (uppercase, hyphens, spaces, leading digits, etc.).
// Translated identifiers usually keep their source casing, so most of them
// end up quoted.
func pgNeedsQuoting(name string) bool {
	for i, r := range name {
		if r >= 'a' && r <= 'z' || r == '_' {
			continue
		}
		if i > 0 && (r >= '0' && r <= '9' || r == '$') {
			continue
		}
		return true
	}
	return false
}

// pgIdent returns a PG-safe identifier, quoting reserved words and names
// that contain characters invalid in unquoted identifiers.
func pgIdent(name string) string {
	if pgReservedWords[name] || pgNeedsQuoting(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

// pgSchemaName maps a source schema to its target schema. MSSQL's default
// "dbo" schema lands in PostgreSQL's default "public" schema; every other
// schema keeps its name.
func pgSchemaName(sourceSchema string) string {
	if sourceSchema == "dbo" {
		return "public"
	}
	return sourceSchema
}

// pgTableRef returns the fully qualified, quoted target reference for a
// table, e.g. "public"."Student".
func pgTableRef(t *Table) string {
	return pgIdent(pgSchemaName(t.SchemaName)) + "." + pgIdent(t.TranslatedName)
}

// pgQualified builds a quoted schema.name reference from a model key.
func pgQualified(key string) string {
	schema, name, ok := strings.Cut(key, ".")
	if !ok {
		return pgIdent(key)
	}
	return pgIdent(pgSchemaName(schema)) + "." + pgIdent(name)
}

// quotedColumnList joins column names with proper quoting.
func quotedColumnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// mssqlIdent quotes a source identifier in bracket form, e.g. [Students].
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableRef returns the bracket-quoted source reference for a table.
func mssqlTableRef(schema, table string) string {
	return mssqlIdent(schema) + "." + mssqlIdent(table)
}
