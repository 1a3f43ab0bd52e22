package resolver

import (
	"github.com/graphql-go/graphql"

	"table-graphql/internal/introspection"
	"table-graphql/internal/sqltype"
)

func scalarFor(category sqltype.ScalarCategory) *graphql.Scalar {
	switch category {
	case sqltype.CategoryInt:
		return graphql.Int
	case sqltype.CategoryBoolean:
		return graphql.Boolean
	default:
		return graphql.String
	}
}

// ColumnType maps a column to its GraphQL scalar. The scalar is wrapped in
// NonNull unless the column is nullable or alwaysNullable is set, which filter
// and update inputs use so every field may be omitted.
func ColumnType(col introspection.Column, alwaysNullable bool) (graphql.Type, error) {
	category, err := sqltype.Classify(col.DataType)
	if err != nil {
		return nil, err
	}
	scalar := scalarFor(category)
	if col.IsNullable || alwaysNullable {
		return scalar, nil
	}
	return graphql.NewNonNull(scalar), nil
}
