// Package sqltype classifies SQL storage types into the scalar categories
// exposed by the generated GraphQL API.
package sqltype

import (
	"fmt"
	"strings"
)

// ScalarCategory is the closed set of API scalar categories a column can map to.
type ScalarCategory int

const (
	// CategoryInt represents integer numeric types.
	CategoryInt ScalarCategory = iota
	// CategoryText represents character, date/time and fixed-point types rendered as strings.
	// Timestamp, time and decimal columns land here rather than in CategoryInt, so
	// values keep their fractional seconds, zone and scale as the driver returns them.
	CategoryText
	// CategoryBoolean represents boolean types.
	CategoryBoolean
)

// UnsupportedTypeError reports a storage type with no scalar mapping.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported column type: %s", e.Type)
}

// Classify converts a storage type tag to its scalar category.
// The input is case-insensitive. Size specifiers like (10,2) or (255) and
// trailing modifiers ("unsigned", "with time zone") are stripped before matching,
// so both INFORMATION_SCHEMA DATA_TYPE and COLUMN_TYPE values are accepted.
func Classify(storageType string) (ScalarCategory, error) {
	switch baseType(storageType) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT",
		"SERIAL", "SMALLSERIAL", "BIGSERIAL", "INT2", "INT4", "INT8":
		return CategoryInt, nil
	case "CHAR", "CHARACTER", "VARCHAR", "BPCHAR", "TINYTEXT", "TEXT",
		"MEDIUMTEXT", "LONGTEXT", "ENUM", "UUID", "CITEXT":
		return CategoryText, nil
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ", "TIME", "TIMETZ", "YEAR",
		"DECIMAL", "NUMERIC":
		return CategoryText, nil
	case "BOOL", "BOOLEAN":
		return CategoryBoolean, nil
	default:
		return 0, &UnsupportedTypeError{Type: storageType}
	}
}

func baseType(storageType string) string {
	t := strings.TrimSpace(storageType)
	if idx := strings.Index(t, "("); idx != -1 {
		t = t[:idx]
	}
	if idx := strings.Index(t, " "); idx != -1 {
		t = t[:idx]
	}
	return strings.ToUpper(t)
}

// String returns the GraphQL scalar type name for schema generation.
func (c ScalarCategory) String() string {
	switch c {
	case CategoryInt:
		return "Int"
	case CategoryBoolean:
		return "Boolean"
	default:
		return "String"
	}
}
