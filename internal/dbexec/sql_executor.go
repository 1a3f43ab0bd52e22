package dbexec

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"table-graphql/internal/introspection"
	"table-graphql/internal/predicate"
	"table-graphql/internal/sqlutil"
)

// SQLExecutor implements Executor by generating dialect-specific SQL.
type SQLExecutor struct {
	q       QueryExecutor
	dialect sqlutil.Dialect
	builder sq.StatementBuilderType
}

// NewSQLExecutor creates an Executor for the given dialect.
func NewSQLExecutor(q QueryExecutor, dialect sqlutil.Dialect) *SQLExecutor {
	var placeholder sq.PlaceholderFormat = sq.Question
	if dialect == sqlutil.DialectPostgres {
		placeholder = sq.Dollar
	}
	return &SQLExecutor{
		q:       q,
		dialect: dialect,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// Select implements Executor.
func (e *SQLExecutor) Select(ctx context.Context, table introspection.Table, pred predicate.Expr, limit int) ([]Row, error) {
	ctx, span := startSpan(ctx, "dbexec.select", attribute.String("db.table", table.Name))
	defer span.End()

	rows, err := e.selectWhere(ctx, table, table.Columns, pred, limit)
	if err != nil {
		recordSpanError(span, err)
		return nil, wrapError("select", table.Name, err)
	}
	span.SetAttributes(attribute.Int("db.rows", len(rows)))
	return rows, nil
}

// Update implements Executor.
func (e *SQLExecutor) Update(ctx context.Context, table introspection.Table, set map[string]any, pred predicate.Expr) ([]Row, error) {
	ctx, span := startSpan(ctx, "dbexec.update", attribute.String("db.table", table.Name))
	defer span.End()

	if len(set) == 0 {
		err := fmt.Errorf("no columns to update")
		recordSpanError(span, err)
		return nil, wrapError("update", table.Name, err)
	}

	var rows []Row
	var err error
	if e.dialect.SupportsReturning() {
		rows, err = e.updateReturning(ctx, table, set, pred)
	} else {
		rows, err = e.updateThenSelect(ctx, table, set, pred)
	}
	if err != nil {
		recordSpanError(span, err)
		return nil, wrapError("update", table.Name, err)
	}
	span.SetAttributes(attribute.Int("db.rows", len(rows)))
	return rows, nil
}

func (e *SQLExecutor) selectWhere(ctx context.Context, table introspection.Table, columns []introspection.Column, pred predicate.Expr, limit int) ([]Row, error) {
	query := e.builder.Select(e.quoteColumns(columns)...).From(e.dialect.QuoteIdentifier(table.Name))
	if pred != nil {
		cond, err := ToSqlizer(pred, e.dialect.QuoteIdentifier)
		if err != nil {
			return nil, err
		}
		query = query.Where(cond)
	}
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	sqlText, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return e.query(ctx, columns, sqlText, args)
}

func (e *SQLExecutor) updateBuilder(table introspection.Table, set map[string]any, pred predicate.Expr) (sq.UpdateBuilder, error) {
	assignments := make(map[string]any, len(set))
	for col, value := range set {
		assignments[e.dialect.QuoteIdentifier(col)] = value
	}
	update := e.builder.Update(e.dialect.QuoteIdentifier(table.Name)).SetMap(assignments)
	if pred != nil {
		cond, err := ToSqlizer(pred, e.dialect.QuoteIdentifier)
		if err != nil {
			return update, err
		}
		update = update.Where(cond)
	}
	return update, nil
}

func (e *SQLExecutor) updateReturning(ctx context.Context, table introspection.Table, set map[string]any, pred predicate.Expr) ([]Row, error) {
	update, err := e.updateBuilder(table, set, pred)
	if err != nil {
		return nil, err
	}
	update = update.Suffix("RETURNING " + strings.Join(e.quoteColumns(table.Columns), ", "))

	sqlText, args, err := update.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}
	return e.query(ctx, table.Columns, sqlText, args)
}

// updateThenSelect captures the primary keys of matching rows, applies the
// update and re-reads those rows by key. Keys rewritten by set are followed to
// their new values. Tables without a primary key cannot be re-read reliably, so
// the matching rows are captured before the update and returned with set applied.
func (e *SQLExecutor) updateThenSelect(ctx context.Context, table introspection.Table, set map[string]any, pred predicate.Expr) ([]Row, error) {
	pks := introspection.PrimaryKeyColumns(table)
	captureColumns := pks
	if len(pks) == 0 {
		captureColumns = table.Columns
	}

	captured, err := e.selectWhere(ctx, table, captureColumns, pred, 0)
	if err != nil {
		return nil, err
	}

	update, err := e.updateBuilder(table, set, pred)
	if err != nil {
		return nil, err
	}
	sqlText, args, err := update.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}
	if _, err := e.q.ExecContext(ctx, sqlText, args...); err != nil {
		return nil, err
	}

	for _, row := range captured {
		applySet(row, set)
	}
	if len(pks) == 0 || len(captured) == 0 {
		return captured, nil
	}
	return e.selectWhere(ctx, table, table.Columns, keyPredicate(pks, captured), 0)
}

// applySet overlays assigned values onto a row read before the update.
func applySet(row Row, set map[string]any) {
	for col, value := range set {
		if _, ok := row[col]; ok {
			row[col] = value
		}
	}
}

// keyPredicate matches exactly the rows identified by keys.
func keyPredicate(pks []introspection.Column, keys []Row) predicate.Expr {
	if len(pks) == 1 {
		values := make([]any, len(keys))
		for i, key := range keys {
			values[i] = key[pks[0].Name]
		}
		return predicate.In(pks[0].Name, values...)
	}
	matches := make(predicate.Or, 0, len(keys))
	for _, key := range keys {
		match := make(predicate.And, 0, len(pks))
		for _, pk := range pks {
			match = append(match, predicate.Eq(pk.Name, key[pk.Name]))
		}
		matches = append(matches, match)
	}
	return matches
}

func (e *SQLExecutor) query(ctx context.Context, columns []introspection.Column, sqlText string, args []any) ([]Row, error) {
	rows, err := e.q.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()
	return scanRows(rows, columns)
}

func (e *SQLExecutor) quoteColumns(columns []introspection.Column) []string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = e.dialect.QuoteIdentifier(col.Name)
	}
	return quoted
}

func scanRows(rows Rows, columns []introspection.Column) ([]Row, error) {
	results := []Row{}

	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col.Name] = convertValue(values[i])
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

func convertValue(val any) any {
	switch v := val.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return val
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("table-graphql/dbexec")
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
