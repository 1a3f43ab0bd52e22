// Package introspection models relational table metadata and discovers it from a
// live database or a metadata file. It also derives forward and reverse
// foreign-key relationships for GraphQL schema generation.
package introspection

import (
	"fmt"
)

// Reference is a foreign key edge from a column to another table's column.
type Reference struct {
	Table  string
	Column string
}

// Column represents a table column.
type Column struct {
	Name         string
	DataType     string
	IsNullable   bool
	IsPrimaryKey bool
	// References is set when the column carries a foreign key.
	References *Reference
}

// Table represents a table with columns in declaration order.
type Table struct {
	Name    string
	Columns []Column
}

// Schema is the full set of known tables.
type Schema struct {
	Tables []Table
}

// ForeignKey is a column of a table that carries a Reference.
type ForeignKey struct {
	ColumnName       string
	ReferencedTable  string
	ReferencedColumn string
	IsNullable       bool
}

// ReverseReference is a column in another table whose foreign key points at a given table.
type ReverseReference struct {
	OwningTable string
	Column      Column
}

// ColumnSet is an ordered, name-indexed view over a table's columns.
type ColumnSet struct {
	names  []string
	byName map[string]Column
}

// Names returns column names in declaration order.
func (s ColumnSet) Names() []string {
	return s.names
}

// Lookup returns the column with the given name.
func (s ColumnSet) Lookup(name string) (Column, bool) {
	col, ok := s.byName[name]
	return col, ok
}

// Len returns the number of columns.
func (s ColumnSet) Len() int {
	return len(s.names)
}

// ColumnsOf returns the table's columns keyed by name, preserving declaration order.
// A repeated name keeps its first declaration.
func ColumnsOf(table Table) ColumnSet {
	set := ColumnSet{
		names:  make([]string, 0, len(table.Columns)),
		byName: make(map[string]Column, len(table.Columns)),
	}
	for _, col := range table.Columns {
		if _, seen := set.byName[col.Name]; seen {
			continue
		}
		set.names = append(set.names, col.Name)
		set.byName[col.Name] = col
	}
	return set
}

// ForeignKeysOf returns the subset of columns carrying a Reference, in declaration order.
func ForeignKeysOf(table Table) []ForeignKey {
	var fks []ForeignKey
	for _, col := range table.Columns {
		if col.References == nil {
			continue
		}
		fks = append(fks, ForeignKey{
			ColumnName:       col.Name,
			ReferencedTable:  col.References.Table,
			ReferencedColumn: col.References.Column,
			IsNullable:       col.IsNullable,
		})
	}
	return fks
}

// ReverseReferencesOf scans every column of every known table and returns those whose
// Reference targets tableName. Self-references are included.
//
// The scan is O(tables x columns) with no index; callers enumerating every table of a
// large schema pay that cost once per table.
func ReverseReferencesOf(tableName string, tables []Table) []ReverseReference {
	var refs []ReverseReference
	for _, other := range tables {
		for _, col := range other.Columns {
			if col.References != nil && col.References.Table == tableName {
				refs = append(refs, ReverseReference{
					OwningTable: other.Name,
					Column:      col,
				})
			}
		}
	}
	return refs
}

// PrimaryKeyColumns returns the primary key columns in declaration order.
func PrimaryKeyColumns(table Table) []Column {
	var cols []Column
	for _, col := range table.Columns {
		if col.IsPrimaryKey {
			cols = append(cols, col)
		}
	}
	return cols
}

// Table returns the named table.
func (s *Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Validate checks table and column uniqueness and that every reference targets a known column.
func (s *Schema) Validate() error {
	tables := make(map[string]ColumnSet, len(s.Tables))
	for _, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("table with empty name")
		}
		if _, dup := tables[t.Name]; dup {
			return fmt.Errorf("duplicate table: %s", t.Name)
		}
		set := ColumnsOf(t)
		if set.Len() != len(t.Columns) {
			seen := make(map[string]struct{}, len(t.Columns))
			for _, col := range t.Columns {
				if _, dup := seen[col.Name]; dup {
					return fmt.Errorf("duplicate column in table %s: %s", t.Name, col.Name)
				}
				seen[col.Name] = struct{}{}
			}
		}
		tables[t.Name] = set
	}

	for _, t := range s.Tables {
		for _, col := range t.Columns {
			if col.References == nil {
				continue
			}
			target, ok := tables[col.References.Table]
			if !ok {
				return fmt.Errorf("column %s.%s references unknown table %s", t.Name, col.Name, col.References.Table)
			}
			if _, ok := target.Lookup(col.References.Column); !ok {
				return fmt.Errorf("column %s.%s references unknown column %s.%s",
					t.Name, col.Name, col.References.Table, col.References.Column)
			}
		}
	}
	return nil
}

// RelationshipCount returns the number of forward references across the schema.
// Every forward reference is also one reverse reference on its target table.
func (s *Schema) RelationshipCount() int {
	count := 0
	for _, t := range s.Tables {
		count += len(ForeignKeysOf(t))
	}
	return count
}
