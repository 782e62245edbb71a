package main

// Column describes a single column from the MSSQL catalog.
// TranslatedName is the final name after dictionary translation and
// duplicate resolution; SourceName is kept for querying the source later.
type Column struct {
	SourceName     string
	TranslatedName string
	DataType       string // lowercase MSSQL type, e.g. "nvarchar", "int"
	CharMaxLen     int64  // -1 means unbounded (nvarchar(max))
	Precision      int64
	Scale          int64
	Nullable       bool
	Default        *string // raw MSSQL default expression, e.g. "((1))"
	IsIdentity     bool
	OrdinalPos     int
}

// Constraint kinds as reported by the source catalog.
const (
	ConstraintPrimaryKey = "PRIMARY KEY"
	ConstraintUnique     = "UNIQUE"
	ConstraintForeignKey = "FOREIGN KEY"
)

// Constraint represents a key constraint. Columns hold final translated
// names. For foreign keys, RefTable is the parent table key
// (schema.translatedName) and RefColumns pair up with Columns by position.
type Constraint struct {
	Name       string
	Kind       string
	Columns    []string
	RefTable   string
	RefColumns []string
}

// Index represents a non-key MSSQL index (may span multiple columns).
type Index struct {
	Name       string
	SourceName string
	Unique     bool
	Columns    []string // final translated names, ordered by key_ordinal
	Type       string   // CLUSTERED, NONCLUSTERED, XML, SPATIAL, ...
	HasFilter  bool     // filtered index (WHERE clause not carried over)
}

// Table holds the full introspected definition of one MSSQL table with
// identifiers already translated.
type Table struct {
	SchemaName     string // source schema, e.g. "dbo"
	SourceName     string
	TranslatedName string
	Columns        []Column
	Constraints    []Constraint
	Indexes        []Index

	// OriginalColumns maps final translated column name back to the
	// original column name. Needed because translation can merge names
	// and later phases must stay invertible.
	OriginalColumns map[string]string
}

// Key returns the model key "schema.translatedName" identifying the table.
func (t *Table) Key() string {
	return t.SchemaName + "." + t.TranslatedName
}

// SourceKey returns the original "schema.name" used to query the source.
func (t *Table) SourceKey() string {
	return t.SchemaName + "." + t.SourceName
}

// FinalColumnName returns the final translated name for an original column,
// or the original itself when the column is unknown.
func (t *Table) FinalColumnName(original string) string {
	for i := range t.Columns {
		if t.Columns[i].SourceName == original {
			return t.Columns[i].TranslatedName
		}
	}
	return original
}

// PrimaryKey returns the table's primary key constraint, if any.
func (t *Table) PrimaryKey() *Constraint {
	for i := range t.Constraints {
		if t.Constraints[i].Kind == ConstraintPrimaryKey {
			return &t.Constraints[i]
		}
	}
	return nil
}

// View holds a source view and its raw T-SQL definition.
type View struct {
	SchemaName     string
	SourceName     string
	TranslatedName string
	Definition     string
}

// Key returns "schema.translatedName" for the view.
func (v *View) Key() string {
	return v.SchemaName + "." + v.TranslatedName
}

// SourceKey returns the original "schema.name" of the view.
func (v *View) SourceKey() string {
	return v.SchemaName + "." + v.SourceName
}

// SchemaModel is the in-memory representation of the source catalog,
// built once per run and read-only afterward.
type SchemaModel struct {
	Schemas []string
	Tables  []*Table // catalog order (schema, table name)
	Views   []View

	// Dependencies maps child table key to the parent table keys it
	// references. Edges outside the migrated set and self-edges are
	// already dropped; the constraints themselves are retained.
	Dependencies map[string][]string
}

// TableByKey looks up a table by its model key.
func (m *SchemaModel) TableByKey(key string) *Table {
	for _, t := range m.Tables {
		if t.Key() == key {
			return t
		}
	}
	return nil
}

// TableKeys returns all table keys in catalog order.
func (m *SchemaModel) TableKeys() []string {
	keys := make([]string, len(m.Tables))
	for i, t := range m.Tables {
		keys[i] = t.Key()
	}
	return keys
}
