package introspection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const citiesUsersYAML = `
tables:
  - name: cities
    columns:
      - {name: id, type: serial, primary_key: true}
      - {name: name, type: text}
  - name: users
    columns:
      - {name: id, type: serial, primary_key: true}
      - {name: name, type: text, nullable: true}
      - {name: email, type: text}
      - {name: city_id, type: integer, nullable: true, references: {table: cities}}
`

func TestParseSchema(t *testing.T) {
	schema, err := ParseSchema([]byte(citiesUsersYAML))
	require.NoError(t, err)
	require.Len(t, schema.Tables, 2)

	users, ok := schema.Table("users")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "email", "city_id"}, ColumnsOf(users).Names())

	cityID, ok := ColumnsOf(users).Lookup("city_id")
	require.True(t, ok)
	require.NotNil(t, cityID.References)
	// Omitted referenced column resolves to the parent's primary key.
	assert.Equal(t, Reference{Table: "cities", Column: "id"}, *cityID.References)
	assert.True(t, cityID.IsNullable)
}

func TestParseSchema_JSON(t *testing.T) {
	doc := `{"tables":[{"name":"tags","columns":[{"name":"label","type":"varchar(32)"}]}]}`

	schema, err := ParseSchema([]byte(doc))
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
	assert.Equal(t, "varchar(32)", schema.Tables[0].Columns[0].DataType)
}

func TestParseSchema_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "malformed document",
			doc:     "tables: [",
			wantErr: "invalid schema document",
		},
		{
			name:    "missing type",
			doc:     "tables:\n  - name: a\n    columns:\n      - {name: id}\n",
			wantErr: "column a.id has no type",
		},
		{
			name:    "repeated column",
			doc:     "tables:\n  - name: a\n    columns:\n      - {name: id, type: int}\n      - {name: id, type: text}\n",
			wantErr: "duplicate column in table a: id",
		},
		{
			name:    "dangling reference",
			doc:     "tables:\n  - name: a\n    columns:\n      - {name: b_id, type: int, references: {table: b, column: id}}\n",
			wantErr: "references unknown table b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(citiesUsersYAML), 0o600))

	schema, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, schema.Tables, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read schema file")
}
