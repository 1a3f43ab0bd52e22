package naming

import (
	"fmt"
	"regexp"
	"strings"
)

var graphqlNamePattern = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// reservedFilterFields are the combinator slots of every filter input; a column
// with one of these names would collide with them.
var reservedFilterFields = map[string]bool{
	"_raw": true,
	"_or":  true,
	"_and": true,
	"_not": true,
}

// ValidateTableName checks that a table name can be embedded in GraphQL names.
func ValidateTableName(name string) error {
	if !graphqlNamePattern.MatchString(name) {
		return fmt.Errorf("table name %q is not a valid GraphQL name", name)
	}
	return nil
}

// ValidateColumnName checks that a column name can be used as a GraphQL field name.
func ValidateColumnName(table, name string) error {
	if !graphqlNamePattern.MatchString(name) {
		return fmt.Errorf("column name %s.%q is not a valid GraphQL name", table, name)
	}
	if strings.HasPrefix(name, "__") {
		return fmt.Errorf("column name %s.%s uses the reserved \"__\" prefix", table, name)
	}
	if reservedFilterFields[name] {
		return fmt.Errorf("column name %s.%s collides with a filter combinator", table, name)
	}
	if _, ok := ParseSetNullFieldName(name); ok {
		return fmt.Errorf("column name %s.%s collides with an update null flag", table, name)
	}
	return nil
}
