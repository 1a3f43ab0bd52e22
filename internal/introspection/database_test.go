package introspection

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-graphql/internal/sqlutil"
)

func TestIntrospectDatabaseContext_MySQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("app").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("cities").AddRow("users"))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("app", "cities").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE"}).
			AddRow("id", "int", "NO").
			AddRow("name", "text", "NO"))
	mock.ExpectQuery("CONSTRAINT_NAME = 'PRIMARY'").
		WithArgs("app", "cities").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("id"))
	mock.ExpectQuery("REFERENCED_TABLE_NAME IS NOT NULL").
		WithArgs("app", "cities").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"}))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("app", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE"}).
			AddRow("id", "int", "NO").
			AddRow("email", "varchar", "NO").
			AddRow("city_id", "int", "YES"))
	mock.ExpectQuery("CONSTRAINT_NAME = 'PRIMARY'").
		WithArgs("app", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("id"))
	mock.ExpectQuery("REFERENCED_TABLE_NAME IS NOT NULL").
		WithArgs("app", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"}).
			AddRow("city_id", "cities", "id"))

	schema, err := IntrospectDatabaseContext(context.Background(), db, sqlutil.DialectMySQL, "app", Options{Concurrency: 1})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, schema.Tables, 2)
	users, ok := schema.Table("users")
	require.True(t, ok)
	assert.Equal(t, []Column{
		{Name: "id", DataType: "int", IsPrimaryKey: true},
		{Name: "email", DataType: "varchar"},
		{Name: "city_id", DataType: "int", IsNullable: true, References: &Reference{Table: "cities", Column: "id"}},
	}, users.Columns)

	refs := ReverseReferencesOf("cities", schema.Tables)
	require.Len(t, refs, 1)
	assert.Equal(t, "users", refs[0].OwningTable)
}

func TestIntrospectDatabaseContext_SQLiteImplicitReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM sqlite_master").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("employees"))
	mock.ExpectQuery(regexp.QuoteMeta(`CASE WHEN "notnull" = 0`)).
		WithArgs("employees").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "nullable"}).
			AddRow("id", "INTEGER", "NO").
			AddRow("manager_id", "INTEGER", "YES"))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE pk > 0")).
		WithArgs("employees").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("id"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM pragma_foreign_key_list(?)")).
		WithArgs("employees").
		WillReturnRows(sqlmock.NewRows([]string{"from", "table", "to"}).AddRow("manager_id", "employees", ""))

	schema, err := IntrospectDatabaseContext(context.Background(), db, sqlutil.DialectSQLite, "", Options{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	manager := schema.Tables[0].Columns[1]
	require.NotNil(t, manager.References)
	assert.Equal(t, Reference{Table: "employees", Column: "id"}, *manager.References)
}

func TestIntrospectDatabaseContext_Errors(t *testing.T) {
	t.Run("tables query fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("FROM information_schema.tables").
			WithArgs("public").
			WillReturnError(errors.New("connection refused"))

		_, err = IntrospectDatabaseContext(context.Background(), db, sqlutil.DialectPostgres, "public", Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get tables")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("columns query fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("FROM information_schema.tables").
			WithArgs("public").
			WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("cities"))
		mock.ExpectQuery("FROM information_schema.columns").
			WithArgs("public", "cities").
			WillReturnError(errors.New("permission denied"))

		_, err = IntrospectDatabaseContext(context.Background(), db, sqlutil.DialectPostgres, "public", Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get columns for cities")
	})

	t.Run("unknown dialect", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		_, err = IntrospectDatabaseContext(context.Background(), db, sqlutil.Dialect("oracle"), "x", Options{})
		require.Error(t, err)
	})
}
