package dbexec

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"table-graphql/internal/predicate"
)

// notExpr negates a nested Sqlizer.
type notExpr struct {
	inner sq.Sqlizer
}

func (n notExpr) ToSql() (string, []any, error) {
	sql, args, err := n.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}

// ToSqlizer translates a predicate tree into a squirrel condition, quoting column
// names with quote.
func ToSqlizer(expr predicate.Expr, quote func(string) string) (sq.Sqlizer, error) {
	switch e := expr.(type) {
	case predicate.Comparison:
		return comparisonSqlizer(e, quote)
	case predicate.And:
		conj := make(sq.And, 0, len(e))
		for _, child := range e {
			s, err := ToSqlizer(child, quote)
			if err != nil {
				return nil, err
			}
			conj = append(conj, s)
		}
		return conj, nil
	case predicate.Or:
		disj := make(sq.Or, 0, len(e))
		for _, child := range e {
			s, err := ToSqlizer(child, quote)
			if err != nil {
				return nil, err
			}
			disj = append(disj, s)
		}
		return disj, nil
	case predicate.Not:
		inner, err := ToSqlizer(e.Expr, quote)
		if err != nil {
			return nil, err
		}
		return notExpr{inner: inner}, nil
	case predicate.Raw:
		// Parenthesized so an OR inside the fragment cannot bind to siblings.
		return sq.Expr("(" + e.SQL + ")"), nil
	default:
		return nil, fmt.Errorf("unsupported predicate node %T", expr)
	}
}

func comparisonSqlizer(c predicate.Comparison, quote func(string) string) (sq.Sqlizer, error) {
	col := quote(c.Column)
	switch c.Op {
	case predicate.OpEq:
		return sq.Eq{col: c.Value}, nil
	case predicate.OpNe:
		return sq.NotEq{col: c.Value}, nil
	case predicate.OpIn:
		return sq.Eq{col: listValue(c.Value)}, nil
	case predicate.OpNotIn:
		return sq.NotEq{col: listValue(c.Value)}, nil
	case predicate.OpLt:
		return sq.Lt{col: c.Value}, nil
	case predicate.OpLte:
		return sq.LtOrEq{col: c.Value}, nil
	case predicate.OpGt:
		return sq.Gt{col: c.Value}, nil
	case predicate.OpGte:
		return sq.GtOrEq{col: c.Value}, nil
	case predicate.OpLike:
		return sq.Like{col: c.Value}, nil
	case predicate.OpBetween:
		bounds := listValue(c.Value)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("between on %s requires two bounds, got %d", c.Column, len(bounds))
		}
		return sq.Expr(col+" BETWEEN ? AND ?", bounds[0], bounds[1]), nil
	case predicate.OpIsNull:
		return sq.Eq{col: nil}, nil
	case predicate.OpIsNotNull:
		return sq.NotEq{col: nil}, nil
	default:
		return nil, fmt.Errorf("unsupported operator %s", c.Op)
	}
}

func listValue(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case nil:
		return []any{}
	default:
		return []any{v}
	}
}
