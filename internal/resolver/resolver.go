// Package resolver builds a GraphQL schema from table metadata. It generates
// output types with forward and reverse join fields, per-table filter inputs, and
// the select and update entry points whose resolvers compile filters into
// predicates for a dbexec.Executor.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"

	"table-graphql/internal/dbexec"
	"table-graphql/internal/introspection"
	"table-graphql/internal/logging"
	"table-graphql/internal/naming"
	"table-graphql/internal/observability"
	"table-graphql/internal/planner"
)

// Resolver owns the generated schema for one set of tables.
type Resolver struct {
	executor    dbexec.Executor
	dbSchema    *introspection.Schema
	registry    *Registry
	tables      map[string]introspection.Table
	columns     map[string]introspection.ColumnSet
	reverseRefs map[string][]introspection.ReverseReference
	scalars     map[string]map[string]*graphql.Scalar

	prepareOnce sync.Once
	prepareErr  error
}

// NewResolver creates a resolver over dbSchema. A nil registry gets a fresh one.
func NewResolver(executor dbexec.Executor, dbSchema *introspection.Schema, registry *Registry) *Resolver {
	if dbSchema == nil {
		dbSchema = &introspection.Schema{}
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Resolver{
		executor: executor,
		dbSchema: dbSchema,
		registry: registry,
	}
}

// prepare validates table metadata and classifies every column once. Unsupported
// column types and unusable names abort schema construction.
func (r *Resolver) prepare() error {
	r.prepareOnce.Do(func() {
		r.prepareErr = r.classify()
	})
	return r.prepareErr
}

func (r *Resolver) classify() error {
	if err := r.dbSchema.Validate(); err != nil {
		return fmt.Errorf("invalid table metadata: %w", err)
	}

	r.tables = make(map[string]introspection.Table, len(r.dbSchema.Tables))
	r.columns = make(map[string]introspection.ColumnSet, len(r.dbSchema.Tables))
	r.reverseRefs = make(map[string][]introspection.ReverseReference, len(r.dbSchema.Tables))
	r.scalars = make(map[string]map[string]*graphql.Scalar, len(r.dbSchema.Tables))

	for _, table := range r.dbSchema.Tables {
		if err := naming.ValidateTableName(table.Name); err != nil {
			return err
		}
		if len(table.Columns) == 0 {
			return fmt.Errorf("table %s has no columns", table.Name)
		}

		scalars := make(map[string]*graphql.Scalar, len(table.Columns))
		for _, col := range table.Columns {
			if err := naming.ValidateColumnName(table.Name, col.Name); err != nil {
				return err
			}
			gqlType, err := ColumnType(col, true)
			if err != nil {
				return fmt.Errorf("table %s column %s: %w", table.Name, col.Name, err)
			}
			scalar, ok := gqlType.(*graphql.Scalar)
			if !ok {
				return fmt.Errorf("table %s column %s: unexpected type %s", table.Name, col.Name, gqlType)
			}
			scalars[col.Name] = scalar
		}

		r.tables[table.Name] = table
		r.columns[table.Name] = introspection.ColumnsOf(table)
		r.scalars[table.Name] = scalars
		r.reverseRefs[table.Name] = introspection.ReverseReferencesOf(table.Name, r.dbSchema.Tables)

		if err := r.checkFieldCollisions(table); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) checkFieldCollisions(table introspection.Table) error {
	seen := make(map[string]bool, len(table.Columns))
	add := func(name string) error {
		if seen[name] {
			return fmt.Errorf("table %s: generated field %s collides with another field", table.Name, name)
		}
		seen[name] = true
		return nil
	}
	for _, col := range table.Columns {
		if err := add(col.Name); err != nil {
			return err
		}
	}
	for _, fk := range introspection.ForeignKeysOf(table) {
		if err := add(naming.ForwardJoinFieldName(fk.ColumnName)); err != nil {
			return err
		}
	}
	for _, ref := range r.reverseRefs[table.Name] {
		if err := add(naming.ReverseJoinFieldName(ref.OwningTable, ref.Column.Name)); err != nil {
			return err
		}
	}
	return nil
}

// BuildGraphQLSchema assembles the Query and Mutation roots.
func (r *Resolver) BuildGraphQLSchema() (graphql.Schema, error) {
	if err := r.prepare(); err != nil {
		return graphql.Schema{}, err
	}

	queryFields := graphql.Fields{}
	mutationFields := graphql.Fields{}
	for _, table := range r.dbSchema.Tables {
		r.addTableQuery(queryFields, table.Name)
		r.addTableMutation(mutationFields, table.Name)
	}

	// If no tables exist, add a placeholder query to satisfy GraphQL requirements
	if len(queryFields) == 0 {
		queryFields["_schema"] = &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return "No tables found", nil
			},
			Description: "Placeholder field when no tables are known",
		}
	}

	schemaConfig := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
	}
	if len(mutationFields) > 0 {
		schemaConfig.Mutation = graphql.NewObject(graphql.ObjectConfig{
			Name:   "Mutation",
			Fields: mutationFields,
		})
	}

	return graphql.NewSchema(schemaConfig)
}

func (r *Resolver) addTableQuery(fields graphql.Fields, tableName string) {
	fields[naming.SelectQueryName(tableName)] = &graphql.Field{
		Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.outputType(tableName)))),
		Description: naming.SelectDescription(tableName),
		Args: graphql.FieldConfigArgument{
			"filter": &graphql.ArgumentConfig{Type: r.filterInput(tableName)},
		},
		Resolve: r.makeSelectResolver(tableName),
	}
}

func (r *Resolver) addTableMutation(fields graphql.Fields, tableName string) {
	fields[naming.UpdateMutationName(tableName)] = &graphql.Field{
		Type:        r.outputType(tableName),
		Description: naming.UpdateDescription(tableName),
		Args: graphql.FieldConfigArgument{
			"set":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(r.setInput(tableName))},
			"where": &graphql.ArgumentConfig{Type: r.filterInput(tableName)},
		},
		Resolve: r.makeUpdateResolver(tableName),
	}
}

func (r *Resolver) makeSelectResolver(tableName string) graphql.FieldResolveFn {
	table := r.tables[tableName]
	columns := r.columns[tableName]
	return func(p graphql.ResolveParams) (interface{}, error) {
		ctx, span := startResolverSpan(p.Context, "graphql.select",
			attribute.String("db.table", tableName),
		)
		var err error
		defer func() { finishResolverSpan(span, err, "") }()

		filter, _ := p.Args["filter"].(map[string]interface{})
		pred, err := planner.CompileInput(filter, columns)
		if err != nil {
			r.recordRejected(ctx, tableName, "select", err)
			return nil, err
		}

		rows, err := r.executor.Select(ctx, table, pred, 0)
		if err != nil {
			logging.FromContext(ctx).Error("select failed",
				slog.String("table", tableName),
				slog.String("error", err.Error()),
			)
			return nil, err
		}

		if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
			metrics.RecordResultsCount(ctx, int64(len(rows)), "select")
		}
		return rows, nil
	}
}

func (r *Resolver) makeUpdateResolver(tableName string) graphql.FieldResolveFn {
	table := r.tables[tableName]
	columns := r.columns[tableName]
	return func(p graphql.ResolveParams) (interface{}, error) {
		ctx, span := startResolverSpan(p.Context, "graphql.update",
			attribute.String("db.table", tableName),
		)
		var err error
		defer func() { finishResolverSpan(span, err, "") }()

		// Both inputs are compiled before the executor is called so a rejected
		// update never reaches the store.
		set, _ := p.Args["set"].(map[string]interface{})
		values, err := planner.CompileSet(set, columns)
		if err != nil {
			r.recordRejected(ctx, tableName, "update", err)
			return nil, err
		}
		where, _ := p.Args["where"].(map[string]interface{})
		pred, err := planner.CompileInput(where, columns)
		if err != nil {
			r.recordRejected(ctx, tableName, "update", err)
			return nil, err
		}

		rows, err := r.executor.Update(ctx, table, values, pred)
		if err != nil {
			logging.FromContext(ctx).Error("update failed",
				slog.String("table", tableName),
				slog.String("error", err.Error()),
			)
			return nil, err
		}

		if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
			metrics.RecordResultsCount(ctx, int64(len(rows)), "update")
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	}
}

func (r *Resolver) recordRejected(ctx context.Context, tableName, operation string, err error) {
	var validationErr *planner.ValidationError
	if !errors.As(err, &validationErr) {
		return
	}
	logging.FromContext(ctx).Debug("rejected input",
		slog.String("table", tableName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordInputRejected(ctx, tableName, operation)
	}
}
