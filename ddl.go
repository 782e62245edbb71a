package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// mapType converts an MSSQL column type to its PostgreSQL equivalent.
// The bool result reports whether the type was recognized; unknown types
// fall back to text so the migration can proceed.
func mapType(col *Column) (string, bool) {
	switch col.DataType {
	case "int":
		return "integer", true
	case "bigint":
		return "bigint", true
	case "smallint", "tinyint":
		// tinyint is unsigned 0..255 in MSSQL; smallint covers the range.
		return "smallint", true
	case "varchar", "char", "nvarchar", "nchar":
		if col.CharMaxLen == -1 {
			return "text", true
		}
		kind := "varchar"
		if col.DataType == "char" || col.DataType == "nchar" {
			kind = "char"
		}
		return fmt.Sprintf("%s(%d)", kind, col.CharMaxLen), true
	case "text", "ntext":
		return "text", true
	case "decimal", "numeric":
		return fmt.Sprintf("numeric(%d,%d)", col.Precision, col.Scale), true
	case "money":
		return "numeric(19,4)", true
	case "smallmoney":
		return "numeric(10,4)", true
	case "float":
		return "double precision", true
	case "real":
		return "real", true
	case "bit":
		return "boolean", true
	case "datetime", "datetime2", "smalldatetime":
		return "timestamp", true
	case "datetimeoffset":
		return "timestamptz", true
	case "date":
		return "date", true
	case "time":
		return "time", true
	case "uniqueidentifier":
		return "uuid", true
	case "binary", "varbinary", "image":
		return "bytea", true
	case "xml":
		return "xml", true
	case "timestamp", "rowversion":
		// MSSQL row-version stamps, not timestamps. Carried as raw bytes.
		return "bytea", true
	}
	return "text", false
}

// mapDefault translates an MSSQL default expression to PostgreSQL, or
// returns false when the expression has no safe translation. MSSQL wraps
// defaults in one or two layers of parentheses, e.g. ((1)) or (getdate()).
func mapDefault(expr string) (string, bool) {
	inner := trimBalancedParens(strings.TrimSpace(expr))
	if inner == "" {
		return "", false
	}

	switch strings.ToLower(inner) {
	case "getdate()", "getutcdate()", "sysdatetime()", "current_timestamp":
		return "NOW()", true
	case "newid()", "newsequentialid()":
		return "gen_random_uuid()", true
	case "null":
		return "NULL", true
	}

	if isNumericLiteral(inner) {
		return inner, true
	}
	if len(inner) >= 2 && inner[0] == '\'' && inner[len(inner)-1] == '\'' {
		return inner, true
	}
	// N'...' unicode string literal.
	if len(inner) >= 3 && (inner[0] == 'N' || inner[0] == 'n') &&
		inner[1] == '\'' && inner[len(inner)-1] == '\'' {
		return inner[1:], true
	}
	return "", false
}

// trimBalancedParens strips matching outer parenthesis pairs only, so
// (getdate()) becomes getdate() but (a)+(b) stays intact.
func trimBalancedParens(s string) string {
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		depth := 0
		balanced := true
		for i := 0; i < len(s)-1; i++ {
			switch s[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					balanced = false
				}
			}
		}
		if !balanced {
			return s
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func isNumericLiteral(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '-' || s[0] == '+' {
		start = 1
	}
	dot := false
	digits := 0
	for i := start; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
			digits++
		case s[i] == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}

// columnDDL renders one column definition for CREATE TABLE. Identity
// columns become serial/bigserial and drop any default.
func columnDDL(col *Column) string {
	var b strings.Builder
	b.WriteString(pgIdent(col.TranslatedName))
	b.WriteByte(' ')

	if col.IsIdentity {
		if col.DataType == "bigint" {
			b.WriteString("bigserial")
		} else {
			b.WriteString("serial")
		}
	} else {
		pgType, known := mapType(col)
		if !known {
			log.Printf("unmapped type %q for column %s, using text", col.DataType, col.TranslatedName)
		}
		b.WriteString(pgType)
	}

	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}

	if col.Default != nil && !col.IsIdentity {
		if def, ok := mapDefault(*col.Default); ok {
			// bit literals become booleans along with their column.
			if col.DataType == "bit" {
				switch def {
				case "1":
					def = "true"
				case "0":
					def = "false"
				}
			}
			b.WriteString(" DEFAULT ")
			b.WriteString(def)
		} else {
			log.Printf("skipping untranslatable default %q on column %s", *col.Default, col.TranslatedName)
		}
	}
	return b.String()
}

// generateCreateTable renders the CREATE TABLE statement for one table.
// Key constraints and indexes are deferred to the post-data phase.
func generateCreateTable(t *Table) string {
	cols := make([]string, len(t.Columns))
	for i := range t.Columns {
		cols[i] = "    " + columnDDL(&t.Columns[i])
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", pgTableRef(t), strings.Join(cols, ",\n"))
}

// createSchemas ensures every non-default target schema exists. dbo maps
// to public, which always exists.
func createSchemas(ctx context.Context, pool *pgxpool.Pool, model *SchemaModel) error {
	for _, s := range model.Schemas {
		target := pgSchemaName(s)
		if target == "public" {
			continue
		}
		if err := execSQL(ctx, pool, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(target)); err != nil {
			return err
		}
	}
	return nil
}

// createTables drops and recreates every table in dependency order.
// DROP ... CASCADE clears leftovers from earlier runs, including views
// built on top of the tables.
func createTables(ctx context.Context, pool *pgxpool.Pool, model *SchemaModel, order []string, sink ProgressSink) error {
	for i, key := range order {
		t := model.TableByKey(key)
		if t == nil {
			return fmt.Errorf("table %s missing from model", key)
		}
		if err := execSQL(ctx, pool, "DROP TABLE IF EXISTS "+pgTableRef(t)+" CASCADE"); err != nil {
			return err
		}
		if err := execSQL(ctx, pool, generateCreateTable(t)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Key(), err)
		}
		sink.Progress(i+1, len(order), t.Key())
	}
	return nil
}
