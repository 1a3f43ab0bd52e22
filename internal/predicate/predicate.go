// Package predicate defines the executable boolean expression tree produced by
// compiling a filter. Executors translate it into their native query language.
package predicate

import (
	"fmt"
	"strings"

	"table-graphql/internal/sqlutil"
)

// Operator is a leaf comparison operator.
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpIn
	OpNotIn
	OpLt
	OpLte
	OpGt
	OpGte
	OpLike
	OpBetween
	OpIsNull
	OpIsNotNull
)

var operatorSQL = map[Operator]string{
	OpEq:        "=",
	OpNe:        "<>",
	OpIn:        "IN",
	OpNotIn:     "NOT IN",
	OpLt:        "<",
	OpLte:       "<=",
	OpGt:        ">",
	OpGte:       ">=",
	OpLike:      "LIKE",
	OpBetween:   "BETWEEN",
	OpIsNull:    "IS NULL",
	OpIsNotNull: "IS NOT NULL",
}

// String returns the SQL spelling of the operator.
func (o Operator) String() string {
	if s, ok := operatorSQL[o]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Expr is a node of a predicate tree.
type Expr interface {
	fmt.Stringer
	isExpr()
}

// Comparison is a leaf comparing a column against an operand.
// Value is a scalar for most operators, a []any for In/NotIn,
// a two-element []any for Between and nil for IsNull/IsNotNull.
type Comparison struct {
	Column string
	Op     Operator
	Value  any
}

// And is true when every child is true. An empty And is true.
type And []Expr

// Or is true when any child is true. An empty Or is false.
type Or []Expr

// Not negates its child.
type Not struct {
	Expr Expr
}

// Raw is an opaque expression passed to the executor verbatim.
type Raw struct {
	SQL string
}

func (Comparison) isExpr() {}
func (And) isExpr()        {}
func (Or) isExpr()         {}
func (Not) isExpr()        {}
func (Raw) isExpr()        {}

// Eq builds an equality leaf.
func Eq(column string, value any) Comparison {
	return Comparison{Column: column, Op: OpEq, Value: value}
}

// In builds a membership leaf.
func In(column string, values ...any) Comparison {
	return Comparison{Column: column, Op: OpIn, Value: values}
}

// String renders the leaf in SQL-like form, e.g. "city_id IS NULL".
func (c Comparison) String() string {
	switch c.Op {
	case OpIsNull, OpIsNotNull:
		return c.Column + " " + c.Op.String()
	case OpIn, OpNotIn:
		values, _ := c.Value.([]any)
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = formatValue(v)
		}
		return fmt.Sprintf("%s %s (%s)", c.Column, c.Op, strings.Join(parts, ", "))
	case OpBetween:
		values, _ := c.Value.([]any)
		if len(values) != 2 {
			return fmt.Sprintf("%s BETWEEN <invalid>", c.Column)
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", c.Column, formatValue(values[0]), formatValue(values[1]))
	default:
		return fmt.Sprintf("%s %s %s", c.Column, c.Op, formatValue(c.Value))
	}
}

func (a And) String() string {
	if len(a) == 0 {
		return "TRUE"
	}
	return join([]Expr(a), " AND ")
}

func (o Or) String() string {
	if len(o) == 0 {
		return "FALSE"
	}
	return join([]Expr(o), " OR ")
}

func (n Not) String() string {
	return "NOT (" + n.Expr.String() + ")"
}

func (r Raw) String() string {
	return "(" + r.SQL + ")"
}

func join(children []Expr, sep string) string {
	parts := make([]string, len(children))
	for i, child := range children {
		parts[i] = child.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return sqlutil.QuoteString(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
