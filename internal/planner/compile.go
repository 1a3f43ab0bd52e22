package planner

import (
	"table-graphql/internal/introspection"
	"table-graphql/internal/predicate"
)

// operatorRule pairs an operator name with the leaf it produces.
type operatorRule struct {
	name  string
	build func(column string, f FieldFilter) (predicate.Expr, error)
}

func leaf(op predicate.Operator, value func(FieldFilter) any) func(string, FieldFilter) (predicate.Expr, error) {
	return func(column string, f FieldFilter) (predicate.Expr, error) {
		return predicate.Comparison{Column: column, Op: op, Value: value(f)}, nil
	}
}

func nullCheck(whenTrue, whenFalse predicate.Operator, flag func(FieldFilter) bool) func(string, FieldFilter) (predicate.Expr, error) {
	return func(column string, f FieldFilter) (predicate.Expr, error) {
		op := whenFalse
		if flag(f) {
			op = whenTrue
		}
		return predicate.Comparison{Column: column, Op: op}, nil
	}
}

// operatorTable is checked in order and the first populated operator wins;
// any later operators on the same field are ignored.
var operatorTable = []operatorRule{
	{"eq", leaf(predicate.OpEq, func(f FieldFilter) any { return f.Eq })},
	{"ne", leaf(predicate.OpNe, func(f FieldFilter) any { return f.Ne })},
	{"in", leaf(predicate.OpIn, func(f FieldFilter) any { return listOrEmpty(f.In) })},
	{"notIn", leaf(predicate.OpNotIn, func(f FieldFilter) any { return listOrEmpty(f.NotIn) })},
	{"lt", leaf(predicate.OpLt, func(f FieldFilter) any { return f.Lt })},
	{"lte", leaf(predicate.OpLte, func(f FieldFilter) any { return f.Lte })},
	{"gt", leaf(predicate.OpGt, func(f FieldFilter) any { return f.Gt })},
	{"gte", leaf(predicate.OpGte, func(f FieldFilter) any { return f.Gte })},
	{"like", leaf(predicate.OpLike, func(f FieldFilter) any { return f.Like })},
	{"between", func(column string, f FieldFilter) (predicate.Expr, error) {
		if len(f.Between) != 2 {
			return nil, validationErrorf("between filter must have exactly two values")
		}
		return predicate.Comparison{Column: column, Op: predicate.OpBetween, Value: []any{f.Between[0], f.Between[1]}}, nil
	}},
	{"isNull", nullCheck(predicate.OpIsNull, predicate.OpIsNotNull, func(f FieldFilter) bool { return f.IsNull })},
	{"isNotNull", nullCheck(predicate.OpIsNotNull, predicate.OpIsNull, func(f FieldFilter) bool { return f.IsNotNull })},
}

// OperatorNames lists the field operators in priority order.
func OperatorNames() []string {
	names := make([]string, len(operatorTable))
	for i, rule := range operatorTable {
		names[i] = rule.name
	}
	return names
}

func listOrEmpty(values []any) []any {
	if values == nil {
		return []any{}
	}
	return values
}

// CompileInput parses and compiles a decoded GraphQL filter argument.
// A nil or empty input compiles to a nil predicate, meaning no filtering.
func CompileInput(input map[string]any, columns introspection.ColumnSet) (predicate.Expr, error) {
	if len(input) == 0 {
		return nil, nil
	}
	value, err := ParseFilterValue(input)
	if err != nil {
		return nil, err
	}
	return Compile(value, columns)
}

// Compile validates a filter node and translates it into a predicate tree.
// A node with nothing to filter on compiles to nil.
func Compile(value FilterValue, columns introspection.ColumnSet) (predicate.Expr, error) {
	modes := 0
	if value.Raw != nil {
		modes++
	}
	if len(value.Or) > 0 {
		modes++
	}
	if len(value.And) > 0 {
		modes++
	}
	if value.Not != nil {
		modes++
	}
	if len(value.Fields) > 0 {
		modes++
	}
	if modes > 1 {
		return nil, validationErrorf("invalid filter: multiple filter types present, only one is allowed: %s", value.describe())
	}

	switch {
	case value.Raw != nil:
		return predicate.Raw{SQL: *value.Raw}, nil
	case len(value.Or) > 0:
		children, err := compileAll(value.Or, columns)
		if err != nil {
			return nil, err
		}
		return predicate.Or(children), nil
	case len(value.And) > 0:
		children, err := compileAll(value.And, columns)
		if err != nil {
			return nil, err
		}
		return predicate.And(children), nil
	case value.Not != nil:
		child, err := compileNested(*value.Not, columns)
		if err != nil {
			return nil, err
		}
		return predicate.Not{Expr: child}, nil
	default:
		return compileFields(value, columns)
	}
}

func compileAll(values []FilterValue, columns introspection.ColumnSet) ([]predicate.Expr, error) {
	children := make([]predicate.Expr, 0, len(values))
	for _, v := range values {
		child, err := compileNested(v, columns)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// compileNested compiles a child node; an empty child matches everything.
func compileNested(value FilterValue, columns introspection.ColumnSet) (predicate.Expr, error) {
	expr, err := Compile(value, columns)
	if err != nil {
		return nil, err
	}
	if expr == nil {
		return predicate.And{}, nil
	}
	return expr, nil
}

func compileFields(value FilterValue, columns introspection.ColumnSet) (predicate.Expr, error) {
	var leaves []predicate.Expr
	for _, name := range value.columnNames() {
		if _, ok := columns.Lookup(name); !ok {
			return nil, validationErrorf("unknown column: %s", name)
		}
		expr, err := compileField(name, value.Fields[name])
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, expr)
	}

	switch len(leaves) {
	case 0:
		return nil, nil
	case 1:
		return leaves[0], nil
	default:
		return predicate.And(leaves), nil
	}
}

func compileField(column string, filter FieldFilter) (predicate.Expr, error) {
	for _, rule := range operatorTable {
		if filter.Has(rule.name) {
			return rule.build(column, filter)
		}
	}
	return nil, validationErrorf("unknown filter for column: %s", column)
}
