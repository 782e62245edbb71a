package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
)

// openSource opens the MSSQL connection used for catalog introspection and
// data streaming. One connection is enough: phases are sequential.
func openSource(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mssql: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// schemaParams builds an @p1..@pN placeholder list plus its argument slice
// for filtering catalog queries by schema name.
func schemaParams(schemas []string, offset int) (string, []any) {
	placeholders := make([]string, len(schemas))
	args := make([]any, len(schemas))
	for i, s := range schemas {
		placeholders[i] = fmt.Sprintf("@p%d", offset+i+1)
		args[i] = s
	}
	return strings.Join(placeholders, ", "), args
}

// readSourceModel queries the MSSQL catalog and builds the SchemaModel in
// one pass per metadata kind. Translation is applied eagerly, so the model
// only ever stores translated table and column identifiers next to the
// reverse pointers needed to query the source later.
func readSourceModel(ctx context.Context, db *sql.DB, schemas []string, tr *Translator) (*SchemaModel, error) {
	if len(schemas) == 0 {
		return nil, fmt.Errorf("no source schemas configured")
	}

	model := &SchemaModel{Dependencies: make(map[string][]string)}

	if err := readSchemas(ctx, db, schemas, model); err != nil {
		return nil, fmt.Errorf("introspect schemas: %w", err)
	}
	if err := readColumns(ctx, db, schemas, tr, model); err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}
	if err := readKeyConstraints(ctx, db, schemas, model); err != nil {
		return nil, fmt.Errorf("introspect key constraints: %w", err)
	}
	if err := readForeignKeys(ctx, db, schemas, model); err != nil {
		return nil, fmt.Errorf("introspect foreign keys: %w", err)
	}
	if err := readIndexes(ctx, db, schemas, model); err != nil {
		return nil, fmt.Errorf("introspect indexes: %w", err)
	}
	if err := readViews(ctx, db, schemas, tr, model); err != nil {
		return nil, fmt.Errorf("introspect views: %w", err)
	}

	return model, nil
}

func readSchemas(ctx context.Context, db *sql.DB, schemas []string, model *SchemaModel) error {
	in, args := schemaParams(schemas, 0)
	rows, err := db.QueryContext(ctx,
		`SELECT schema_name FROM INFORMATION_SCHEMA.SCHEMATA
		 WHERE schema_name IN (`+in+`) ORDER BY schema_name`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		model.Schemas = append(model.Schemas, name)
	}
	return rows.Err()
}

// readColumns reads every table with its columns in one query. The ORDER BY
// includes ORDINAL_POSITION so duplicate-name resolution is reproducible
// across runs.
func readColumns(ctx context.Context, db *sql.DB, schemas []string, tr *Translator, model *SchemaModel) error {
	in, args := schemaParams(schemas, 0)
	rows, err := db.QueryContext(ctx, `
		SELECT t.TABLE_SCHEMA, t.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE,
		       COALESCE(c.CHARACTER_MAXIMUM_LENGTH, 0),
		       COALESCE(c.NUMERIC_PRECISION, 0),
		       COALESCE(c.NUMERIC_SCALE, 0),
		       c.IS_NULLABLE, c.COLUMN_DEFAULT, c.ORDINAL_POSITION,
		       CASE WHEN ic.column_id IS NULL THEN 0 ELSE 1 END
		FROM INFORMATION_SCHEMA.TABLES t
		JOIN INFORMATION_SCHEMA.COLUMNS c
		  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
		LEFT JOIN sys.identity_columns ic
		  ON ic.object_id = OBJECT_ID(t.TABLE_SCHEMA + '.' + t.TABLE_NAME)
		 AND ic.name = c.COLUMN_NAME
		WHERE t.TABLE_TYPE = 'BASE TABLE' AND t.TABLE_SCHEMA IN (`+in+`)
		ORDER BY t.TABLE_SCHEMA, t.TABLE_NAME, c.ORDINAL_POSITION`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	var current *Table
	for rows.Next() {
		var (
			schema, table string
			col           Column
			nullable      string
			dflt          sql.NullString
			isIdentity    int
		)
		if err := rows.Scan(
			&schema, &table, &col.SourceName, &col.DataType,
			&col.CharMaxLen, &col.Precision, &col.Scale,
			&nullable, &dflt, &col.OrdinalPos, &isIdentity,
		); err != nil {
			return err
		}
		col.DataType = strings.ToLower(col.DataType)
		col.Nullable = nullable == "YES"
		col.IsIdentity = isIdentity == 1
		if dflt.Valid {
			col.Default = &dflt.String
		}

		if current == nil || current.SchemaName != schema || current.SourceName != table {
			current = &Table{
				SchemaName:     schema,
				SourceName:     table,
				TranslatedName: tr.Translate(table),
			}
			model.Tables = append(model.Tables, current)
		}
		current.Columns = append(current.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Resolve column names once; every later phase reads the result.
	for _, t := range model.Tables {
		originals := make([]string, len(t.Columns))
		for i := range t.Columns {
			originals[i] = t.Columns[i].SourceName
		}
		final, byFinal := resolveColumnNames(tr, originals)
		for i := range t.Columns {
			t.Columns[i].TranslatedName = final[i]
		}
		t.OriginalColumns = byFinal
	}
	return nil
}

func readKeyConstraints(ctx context.Context, db *sql.DB, schemas []string, model *SchemaModel) error {
	in, args := schemaParams(schemas, 0)
	rows, err := db.QueryContext(ctx, `
		SELECT tc.TABLE_SCHEMA, tc.TABLE_NAME, tc.CONSTRAINT_NAME,
		       tc.CONSTRAINT_TYPE, kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		 AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA AND tc.TABLE_NAME = kcu.TABLE_NAME
		WHERE tc.TABLE_SCHEMA IN (`+in+`)
		  AND tc.CONSTRAINT_TYPE IN ('PRIMARY KEY', 'UNIQUE')
		ORDER BY tc.TABLE_SCHEMA, tc.TABLE_NAME, tc.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`,
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	type ckey struct{ schema, table, name string }
	grouped := make(map[ckey]*Constraint)
	var order []ckey

	for rows.Next() {
		var schema, table, name, kind, column string
		if err := rows.Scan(&schema, &table, &name, &kind, &column); err != nil {
			return err
		}
		k := ckey{schema, table, name}
		c, ok := grouped[k]
		if !ok {
			c = &Constraint{Name: name, Kind: kind}
			grouped[k] = c
			order = append(order, k)
		}
		c.Columns = append(c.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range order {
		t := tableBySource(model, k.schema, k.table)
		if t == nil {
			continue
		}
		c := grouped[k]
		for i, orig := range c.Columns {
			c.Columns[i] = t.FinalColumnName(orig)
		}
		t.Constraints = append(t.Constraints, *c)
	}
	return nil
}

func readForeignKeys(ctx context.Context, db *sql.DB, schemas []string, model *SchemaModel) error {
	in, args := schemaParams(schemas, 0)
	rows, err := db.QueryContext(ctx, `
		SELECT fk.name,
		       OBJECT_SCHEMA_NAME(fk.parent_object_id),
		       OBJECT_NAME(fk.parent_object_id),
		       pc.name,
		       OBJECT_SCHEMA_NAME(fk.referenced_object_id),
		       OBJECT_NAME(fk.referenced_object_id),
		       rc.name
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
		JOIN sys.columns pc ON fkc.parent_object_id = pc.object_id
		 AND fkc.parent_column_id = pc.column_id
		JOIN sys.columns rc ON fkc.referenced_object_id = rc.object_id
		 AND fkc.referenced_column_id = rc.column_id
		WHERE OBJECT_SCHEMA_NAME(fk.parent_object_id) IN (`+in+`)
		ORDER BY OBJECT_SCHEMA_NAME(fk.parent_object_id),
		         OBJECT_NAME(fk.parent_object_id), fk.name, fkc.constraint_column_id`,
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	type fkRow struct {
		name                                  string
		childSchema, childTable, childColumn  string
		parentSchema, parentTable, parentCol  string
	}
	var raw []fkRow
	for rows.Next() {
		var r fkRow
		if err := rows.Scan(&r.name, &r.childSchema, &r.childTable, &r.childColumn,
			&r.parentSchema, &r.parentTable, &r.parentCol); err != nil {
			return err
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	type fkey struct{ childKey, name string }
	grouped := make(map[fkey]*Constraint)
	var order []fkey

	for _, r := range raw {
		child := tableBySource(model, r.childSchema, r.childTable)
		if child == nil {
			continue
		}
		parent := tableBySource(model, r.parentSchema, r.parentTable)

		parentKey := r.parentSchema + "." + r.parentTable
		parentCol := r.parentCol
		if parent != nil {
			parentKey = parent.Key()
			parentCol = parent.FinalColumnName(r.parentCol)
		}

		k := fkey{child.Key(), r.name}
		c, ok := grouped[k]
		if !ok {
			c = &Constraint{Name: r.name, Kind: ConstraintForeignKey, RefTable: parentKey}
			grouped[k] = c
			order = append(order, k)

			// Dependency edges only exist between migrated tables, and
			// never from a table to itself after translation collapse.
			if parent != nil && parent.Key() != child.Key() {
				model.Dependencies[child.Key()] = appendUnique(model.Dependencies[child.Key()], parent.Key())
			}
		}
		c.Columns = append(c.Columns, child.FinalColumnName(r.childColumn))
		c.RefColumns = append(c.RefColumns, parentCol)
	}

	for _, k := range order {
		t := model.TableByKey(k.childKey)
		t.Constraints = append(t.Constraints, *grouped[k])
	}
	return nil
}

func readIndexes(ctx context.Context, db *sql.DB, schemas []string, model *SchemaModel) error {
	in, args := schemaParams(schemas, 0)
	rows, err := db.QueryContext(ctx, `
		SELECT s.name, t.name, i.name, c.name, i.is_unique, i.type_desc, i.has_filter
		FROM sys.indexes i
		JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
		JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id
		JOIN sys.tables t ON i.object_id = t.object_id
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE i.is_primary_key = 0 AND i.is_unique_constraint = 0
		  AND ic.is_included_column = 0
		  AND s.name IN (`+in+`)
		ORDER BY s.name, t.name, i.name, ic.key_ordinal`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	type ikey struct{ schema, table, name string }
	grouped := make(map[ikey]*Index)
	var order []ikey

	for rows.Next() {
		var (
			schema, table, name, column, typeDesc string
			unique, hasFilter                     bool
		)
		if err := rows.Scan(&schema, &table, &name, &column, &unique, &typeDesc, &hasFilter); err != nil {
			return err
		}
		k := ikey{schema, table, name}
		idx, ok := grouped[k]
		if !ok {
			idx = &Index{
				Name:       name,
				SourceName: name,
				Unique:     unique,
				Type:       strings.ToUpper(typeDesc),
				HasFilter:  hasFilter,
			}
			grouped[k] = idx
			order = append(order, k)
		}
		idx.Columns = append(idx.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range order {
		t := tableBySource(model, k.schema, k.table)
		if t == nil {
			continue
		}
		idx := grouped[k]
		for i, orig := range idx.Columns {
			idx.Columns[i] = t.FinalColumnName(orig)
		}
		t.Indexes = append(t.Indexes, *idx)
	}
	return nil
}

func readViews(ctx context.Context, db *sql.DB, schemas []string, tr *Translator, model *SchemaModel) error {
	in, args := schemaParams(schemas, 0)
	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_SCHEMA, TABLE_NAME, VIEW_DEFINITION
		FROM INFORMATION_SCHEMA.VIEWS
		WHERE TABLE_SCHEMA IN (`+in+`)
		ORDER BY TABLE_SCHEMA, TABLE_NAME`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var v View
		if err := rows.Scan(&v.SchemaName, &v.SourceName, &v.Definition); err != nil {
			return err
		}
		v.TranslatedName = tr.Translate(v.SourceName)
		model.Views = append(model.Views, v)
	}
	return rows.Err()
}

func tableBySource(model *SchemaModel, schema, table string) *Table {
	for _, t := range model.Tables {
		if t.SchemaName == schema && t.SourceName == table {
			return t
		}
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

// filterTables restricts the model to the requested schema.TableName
// references (source names; translation is applied to match model keys).
// Dependency edges to excluded tables are dropped; FK constraint metadata
// stays on the kept tables.
func filterTables(model *SchemaModel, refs []string, tr *Translator) (*SchemaModel, error) {
	keep := make(map[string]bool, len(refs))
	for _, ref := range refs {
		schema, table, ok := strings.Cut(ref, ".")
		if !ok {
			return nil, fmt.Errorf("invalid table reference %q: expected schema.table", ref)
		}
		keep[schema+"."+tr.Translate(table)] = true
	}

	filtered := &SchemaModel{
		Schemas:      model.Schemas,
		Views:        model.Views,
		Dependencies: make(map[string][]string),
	}
	for _, t := range model.Tables {
		if keep[t.Key()] {
			filtered.Tables = append(filtered.Tables, t)
		}
	}
	if len(filtered.Tables) == 0 {
		return nil, fmt.Errorf("no tables matched the tables file; check the file and the translation dictionary")
	}
	for child, parents := range model.Dependencies {
		if !keep[child] {
			continue
		}
		for _, p := range parents {
			if keep[p] {
				filtered.Dependencies[child] = append(filtered.Dependencies[child], p)
			}
		}
	}
	return filtered, nil
}
