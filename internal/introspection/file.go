package introspection

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileSchema struct {
	Tables []fileTable `yaml:"tables"`
}

type fileTable struct {
	Name    string       `yaml:"name"`
	Columns []fileColumn `yaml:"columns"`
}

type fileColumn struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Nullable   bool           `yaml:"nullable"`
	PrimaryKey bool           `yaml:"primary_key"`
	References *fileReference `yaml:"references"`
}

type fileReference struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// LoadFile reads table metadata from a YAML (or JSON) document of the form:
//
//	tables:
//	  - name: users
//	    columns:
//	      - {name: id, type: serial, primary_key: true}
//	      - {name: city_id, type: integer, nullable: true, references: {table: cities, column: id}}
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	schema, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema file %s: %w", path, err)
	}
	return schema, nil
}

// ParseSchema decodes and validates a metadata document.
func ParseSchema(data []byte) (*Schema, error) {
	var doc fileSchema
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid schema document: %w", err)
	}

	schema := &Schema{Tables: make([]Table, 0, len(doc.Tables))}
	for _, ft := range doc.Tables {
		table := Table{Name: ft.Name, Columns: make([]Column, 0, len(ft.Columns))}
		for _, fc := range ft.Columns {
			if fc.Name == "" {
				return nil, fmt.Errorf("table %s has a column without a name", ft.Name)
			}
			if fc.Type == "" {
				return nil, fmt.Errorf("column %s.%s has no type", ft.Name, fc.Name)
			}
			col := Column{
				Name:         fc.Name,
				DataType:     fc.Type,
				IsNullable:   fc.Nullable,
				IsPrimaryKey: fc.PrimaryKey,
			}
			if fc.References != nil {
				col.References = &Reference{Table: fc.References.Table, Column: fc.References.Column}
			}
			table.Columns = append(table.Columns, col)
		}
		schema.Tables = append(schema.Tables, table)
	}

	resolveImplicitReferences(schema)
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return schema, nil
}
