package resolver

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"table-graphql/internal/naming"
	"table-graphql/internal/planner"
)

// FilterInput returns the cached filter grammar for a table: one operator field per
// column plus the _raw, _or, _and and _not combinators.
func (r *Resolver) FilterInput(tableName string) (*graphql.InputObject, error) {
	if err := r.prepare(); err != nil {
		return nil, err
	}
	if _, ok := r.tables[tableName]; !ok {
		return nil, fmt.Errorf("unknown table: %s", tableName)
	}
	return r.filterInput(tableName), nil
}

func (r *Resolver) filterInput(tableName string) *graphql.InputObject {
	typeName := naming.FilterTypeName(tableName)
	return lookupOrStore(&r.registry.mu, r.registry.filterInputs, typeName, func() *graphql.InputObject {
		table := r.tables[tableName]
		columnFields := graphql.InputObjectConfigFieldMap{}
		for _, col := range table.Columns {
			columnFields[col.Name] = &graphql.InputObjectFieldConfig{
				Type: r.operatorInput(r.scalars[tableName][col.Name]),
			}
		}

		return graphql.NewInputObject(graphql.InputObjectConfig{
			Name:        typeName,
			Description: fmt.Sprintf("Filter for %s rows. Use either column filters or exactly one combinator.", tableName),
			Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
				// The combinators reference this type, which is registered by the time the thunk runs.
				self, _ := lookup(&r.registry.mu, r.registry.filterInputs, typeName)
				fields := graphql.InputObjectConfigFieldMap{}
				for name, cfg := range columnFields {
					fields[name] = cfg
				}
				fields[planner.KeyRaw] = &graphql.InputObjectFieldConfig{
					Type:        graphql.String,
					Description: "Raw SQL condition passed through verbatim.",
				}
				fields[planner.KeyOr] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(self))}
				fields[planner.KeyAnd] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(self))}
				fields[planner.KeyNot] = &graphql.InputObjectFieldConfig{Type: self}
				return fields
			}),
		})
	})
}

// operatorInput returns the operator shape shared by every column of the given scalar.
// Operands are always nullable so each operator may be omitted.
func (r *Resolver) operatorInput(scalar *graphql.Scalar) *graphql.InputObject {
	typeName := naming.OperatorFilterTypeName(scalar.Name())
	return lookupOrStore(&r.registry.mu, r.registry.operatorInputs, typeName, func() *graphql.InputObject {
		list := graphql.NewList(graphql.NewNonNull(scalar))
		fields := graphql.InputObjectConfigFieldMap{}
		for _, name := range planner.OperatorNames() {
			var fieldType graphql.Input
			switch name {
			case "in", "notIn", "between":
				fieldType = list
			case "like":
				fieldType = graphql.String
			case "isNull", "isNotNull":
				fieldType = graphql.Boolean
			default:
				fieldType = scalar
			}
			fields[name] = &graphql.InputObjectFieldConfig{Type: fieldType}
		}
		return graphql.NewInputObject(graphql.InputObjectConfig{
			Name:   typeName,
			Fields: fields,
		})
	})
}

// setInput returns the update "set" input for a table: a nullable field per column
// and a _set_<col>_null flag per nullable column.
func (r *Resolver) setInput(tableName string) *graphql.InputObject {
	typeName := naming.SetInputTypeName(tableName)
	return lookupOrStore(&r.registry.mu, r.registry.setInputs, typeName, func() *graphql.InputObject {
		table := r.tables[tableName]
		fields := graphql.InputObjectConfigFieldMap{}
		for _, col := range table.Columns {
			fields[col.Name] = &graphql.InputObjectFieldConfig{
				Type:        r.scalars[tableName][col.Name],
				Description: fmt.Sprintf("New value for %q", col.Name),
			}
			if col.IsNullable {
				fields[naming.SetNullFieldName(col.Name)] = &graphql.InputObjectFieldConfig{
					Type:        graphql.Boolean,
					Description: fmt.Sprintf("Set %q to null", col.Name),
				}
			}
		}
		return graphql.NewInputObject(graphql.InputObjectConfig{
			Name:   typeName,
			Fields: fields,
		})
	})
}
