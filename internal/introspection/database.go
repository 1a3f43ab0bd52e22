package introspection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"table-graphql/internal/sqlutil"
)

// Queryer provides query access for schema introspection.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Options tunes database introspection.
type Options struct {
	// Concurrency bounds how many tables are introspected in parallel. Values below 1 mean 1.
	Concurrency int
}

// catalogQueries holds the catalog queries for one dialect. Every query returns
// the columns documented on the field. When scoped is false the schema name is
// not passed as a query argument.
type catalogQueries struct {
	scoped bool
	// tables: table name
	tables string
	// columns: column name, data type, 'YES'/'NO' nullability
	columns string
	// primaryKeys: column name
	primaryKeys string
	// foreignKeys: column name, referenced table, referenced column ('' means the referenced primary key)
	foreignKeys string
}

var mysqlQueries = catalogQueries{
	scoped: true,
	tables: `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`,
	columns: `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`,
	primaryKeys: `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION`,
	foreignKeys: `
		SELECT COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`,
}

var postgresQueries = catalogQueries{
	scoped: true,
	tables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	columns: `
		SELECT column_name, udt_name, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`,
	primaryKeys: `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`,
	foreignKeys: `
		SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position`,
}

var sqliteQueries = catalogQueries{
	scoped: false,
	tables: `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`,
	columns: `
		SELECT name, type, CASE WHEN "notnull" = 0 AND pk = 0 THEN 'YES' ELSE 'NO' END
		FROM pragma_table_info(?)
		ORDER BY cid`,
	primaryKeys: `
		SELECT name
		FROM pragma_table_info(?)
		WHERE pk > 0
		ORDER BY pk`,
	foreignKeys: `
		SELECT "from", "table", COALESCE("to", '')
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq`,
}

func queriesFor(dialect sqlutil.Dialect) (catalogQueries, error) {
	switch dialect {
	case sqlutil.DialectMySQL:
		return mysqlQueries, nil
	case sqlutil.DialectPostgres:
		return postgresQueries, nil
	case sqlutil.DialectSQLite:
		return sqliteQueries, nil
	default:
		return catalogQueries{}, fmt.Errorf("no catalog queries for dialect %q", dialect)
	}
}

func (q catalogQueries) args(schemaName string, extra ...any) []any {
	if !q.scoped {
		return extra
	}
	return append([]any{schemaName}, extra...)
}

// IntrospectDatabaseContext discovers tables, columns and foreign keys from the database catalog.
// schemaName is the database (MySQL) or schema (PostgreSQL) to inspect; SQLite ignores it.
func IntrospectDatabaseContext(ctx context.Context, db Queryer, dialect sqlutil.Dialect, schemaName string, opts Options) (*Schema, error) {
	ctx, span := startSpan(ctx, "introspection.build_schema",
		attribute.String("db.system", string(dialect)),
		attribute.String("db.name", schemaName),
	)
	defer span.End()

	queries, err := queriesFor(dialect)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	names, err := getTables(ctx, db, queries, schemaName)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	tables := make([]Table, len(names))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, name := range names {
		g.Go(func() error {
			table, err := getTable(gctx, db, queries, schemaName, name)
			if err != nil {
				return err
			}
			tables[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	schema := &Schema{Tables: tables}
	resolveImplicitReferences(schema)
	if err := schema.Validate(); err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("invalid schema metadata: %w", err)
	}
	span.SetAttributes(attribute.Int("tables.count", len(tables)))
	return schema, nil
}

func getTable(ctx context.Context, db Queryer, queries catalogQueries, schemaName, tableName string) (Table, error) {
	columns, err := getColumns(ctx, db, queries, schemaName, tableName)
	if err != nil {
		return Table{}, fmt.Errorf("failed to get columns for %s: %w", tableName, err)
	}
	primaryKeys, err := queryStrings(ctx, db, "introspection.get_primary_keys", tableName,
		queries.primaryKeys, queries.args(schemaName, tableName)...)
	if err != nil {
		return Table{}, fmt.Errorf("failed to get primary keys for table %s: %w", tableName, err)
	}
	foreignKeys, err := getForeignKeys(ctx, db, queries, schemaName, tableName)
	if err != nil {
		return Table{}, fmt.Errorf("failed to get foreign keys for table %s: %w", tableName, err)
	}

	for i := range columns {
		for _, pk := range primaryKeys {
			if columns[i].Name == pk {
				columns[i].IsPrimaryKey = true
				break
			}
		}
		// A column may reference at most one other column; the first constraint wins.
		for _, fk := range foreignKeys {
			if columns[i].Name == fk.ColumnName {
				columns[i].References = &Reference{Table: fk.ReferencedTable, Column: fk.ReferencedColumn}
				break
			}
		}
	}

	return Table{Name: tableName, Columns: columns}, nil
}

func getTables(ctx context.Context, db Queryer, queries catalogQueries, schemaName string) ([]string, error) {
	return queryStrings(ctx, db, "introspection.get_tables", "", queries.tables, queries.args(schemaName)...)
}

func getColumns(ctx context.Context, db Queryer, queries catalogQueries, schemaName, tableName string) ([]Column, error) {
	ctx, span := startSpan(ctx, "introspection.get_columns",
		attribute.String("db.table", tableName),
	)
	defer span.End()

	rows, err := db.QueryContext(ctx, queries.columns, queries.args(schemaName, tableName)...)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var columns []Column
	for rows.Next() {
		var col Column
		var isNullable string
		if err := rows.Scan(&col.Name, &col.DataType, &isNullable); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		col.IsNullable = strings.EqualFold(isNullable, "YES")
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return columns, nil
}

func getForeignKeys(ctx context.Context, db Queryer, queries catalogQueries, schemaName, tableName string) ([]ForeignKey, error) {
	ctx, span := startSpan(ctx, "introspection.get_foreign_keys",
		attribute.String("db.table", tableName),
	)
	defer span.End()

	rows, err := db.QueryContext(ctx, queries.foreignKeys, queries.args(schemaName, tableName)...)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var foreignKeys []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.ColumnName, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		foreignKeys = append(foreignKeys, fk)
	}

	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return foreignKeys, nil
}

func queryStrings(ctx context.Context, db Queryer, spanName, tableName, query string, args ...any) ([]string, error) {
	ctx, span := startSpan(ctx, spanName)
	defer span.End()
	if tableName != "" {
		span.SetAttributes(attribute.String("db.table", tableName))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return values, nil
}

// resolveImplicitReferences fills references that name only a table (SQLite's
// "REFERENCES parent" form) with the parent's first primary key column.
func resolveImplicitReferences(schema *Schema) {
	for ti := range schema.Tables {
		for ci := range schema.Tables[ti].Columns {
			ref := schema.Tables[ti].Columns[ci].References
			if ref == nil || ref.Column != "" {
				continue
			}
			target, ok := schema.Table(ref.Table)
			if !ok {
				continue
			}
			if pks := PrimaryKeyColumns(target); len(pks) > 0 {
				ref.Column = pks[0].Name
			}
		}
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("table-graphql/introspection")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
