package resolver

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"table-graphql/internal/introspection"
	"table-graphql/internal/naming"
	"table-graphql/internal/observability"
	"table-graphql/internal/predicate"
)

// outputType returns the root output type of a table: columns, forward joins and
// reverse joins. It is registered before its fields are built so that cyclic
// references resolve to the same node.
func (r *Resolver) outputType(tableName string) *graphql.Object {
	typeName := naming.OutputTypeName(tableName)
	return lookupOrStore(&r.registry.mu, r.registry.outputTypes, typeName, func() *graphql.Object {
		return graphql.NewObject(graphql.ObjectConfig{
			Name:        typeName,
			Description: naming.TableDescription(tableName),
			Fields: graphql.FieldsThunk(func() graphql.Fields {
				return r.buildFields(tableName, true)
			}),
		})
	})
}

// joinedType returns the type of a table reached through sourceTable.fk. It carries
// columns and forward joins only, bounding reverse expansion to one hop.
func (r *Resolver) joinedType(sourceTable string, fk introspection.ForeignKey) *graphql.Object {
	typeName := naming.JoinedTypeName(sourceTable, fk.ColumnName)
	return lookupOrStore(&r.registry.mu, r.registry.outputTypes, typeName, func() *graphql.Object {
		return graphql.NewObject(graphql.ObjectConfig{
			Name:        typeName,
			Description: naming.ForwardJoinDescription(fk.ReferencedTable, fk.ColumnName),
			Fields: graphql.FieldsThunk(func() graphql.Fields {
				return r.buildFields(fk.ReferencedTable, false)
			}),
		})
	})
}

// buildFields builds the fields for a table (called lazily by FieldsThunk).
func (r *Resolver) buildFields(tableName string, includeReverse bool) graphql.Fields {
	table := r.tables[tableName]
	fields := graphql.Fields{}

	for _, col := range table.Columns {
		var fieldType graphql.Output = r.scalars[tableName][col.Name]
		if !col.IsNullable {
			fieldType = graphql.NewNonNull(fieldType)
		}
		fields[col.Name] = &graphql.Field{Type: fieldType}
	}

	for _, fk := range introspection.ForeignKeysOf(table) {
		var fieldType graphql.Output = r.joinedType(tableName, fk)
		if !fk.IsNullable {
			fieldType = graphql.NewNonNull(fieldType)
		}
		fields[naming.ForwardJoinFieldName(fk.ColumnName)] = &graphql.Field{
			Type:        fieldType,
			Description: naming.ForwardJoinDescription(fk.ReferencedTable, fk.ColumnName),
			Resolve:     r.makeForwardJoinResolver(fk),
		}
	}

	if !includeReverse {
		return fields
	}

	for _, ref := range r.reverseRefs[tableName] {
		fields[naming.ReverseJoinFieldName(ref.OwningTable, ref.Column.Name)] = &graphql.Field{
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.outputType(ref.OwningTable)))),
			Description: naming.ReverseJoinDescription(ref.OwningTable, ref.Column.Name),
			Resolve:     r.makeReverseJoinResolver(ref),
		}
	}
	return fields
}

// makeForwardJoinResolver fetches the single row referenced by the source row's foreign key.
func (r *Resolver) makeForwardJoinResolver(fk introspection.ForeignKey) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		source, ok := p.Source.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid source type")
		}

		fkValue := source[fk.ColumnName]
		if fkValue == nil {
			return nil, nil
		}

		if metrics := observability.GraphQLMetricsFromContext(p.Context); metrics != nil {
			metrics.RecordJoinFetch(p.Context, "forward")
		}
		referenced := r.tables[fk.ReferencedTable]
		rows, err := r.executor.Select(p.Context, referenced, predicate.Eq(fk.ReferencedColumn, fkValue), 1)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	}
}

// makeReverseJoinResolver fetches the owning table's rows whose foreign key matches
// the referenced column of the source row.
func (r *Resolver) makeReverseJoinResolver(ref introspection.ReverseReference) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		source, ok := p.Source.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid source type")
		}

		value := source[ref.Column.References.Column]
		if value == nil {
			return []interface{}{}, nil
		}

		if metrics := observability.GraphQLMetricsFromContext(p.Context); metrics != nil {
			metrics.RecordJoinFetch(p.Context, "reverse")
		}
		owning := r.tables[ref.OwningTable]
		rows, err := r.executor.Select(p.Context, owning, predicate.Eq(ref.Column.Name, value), 0)
		if err != nil {
			return nil, err
		}
		return rows, nil
	}
}
