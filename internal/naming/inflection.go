package naming

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
)

// humanize turns a snake_case identifier into space separated words.
func humanize(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
}

// TableDescription describes a table's root output type.
func TableDescription(table string) string {
	return fmt.Sprintf("A row of the %s table.", table)
}

// SelectDescription describes a select entry point.
func SelectDescription(table string) string {
	return fmt.Sprintf("Select %s, optionally filtered.", inflection.Plural(humanize(table)))
}

// UpdateDescription describes an update entry point.
func UpdateDescription(table string) string {
	return fmt.Sprintf("Update %s matching the where filter and return the first updated %s.",
		inflection.Plural(humanize(table)), inflection.Singular(humanize(table)))
}

// ForwardJoinDescription describes a forward join field.
func ForwardJoinDescription(referencedTable, fkColumn string) string {
	return fmt.Sprintf("The %s referenced by %s.", inflection.Singular(humanize(referencedTable)), fkColumn)
}

// ReverseJoinDescription describes a reverse join field.
func ReverseJoinDescription(owningTable, fkColumn string) string {
	return fmt.Sprintf("The %s whose %s references this row.", inflection.Plural(humanize(owningTable)), fkColumn)
}
