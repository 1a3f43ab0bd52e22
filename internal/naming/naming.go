// Package naming derives the deterministic GraphQL names used by the generated schema.
// Two builds over identical table metadata always produce identical names.
package naming

const (
	selectPrefix   = "select_from_"
	updatePrefix   = "update_"
	filterPrefix   = "where_"
	joinedSuffix   = "__joined"
	setNullPrefix  = "_set_"
	setNullSuffix  = "_null"
	setInputSuffix = "_set"
)

// SelectQueryName is the read entry point for a table, also used as the table's root output type name.
func SelectQueryName(table string) string {
	return selectPrefix + table
}

// UpdateMutationName is the write entry point for a table.
func UpdateMutationName(table string) string {
	return updatePrefix + table
}

// OutputTypeName returns the root output type name for a table.
func OutputTypeName(table string) string {
	return SelectQueryName(table)
}

// JoinedTypeName returns the output type name used when a table is reached through the
// forward reference sourceTable.fkColumn.
func JoinedTypeName(sourceTable, fkColumn string) string {
	return sourceTable + "__" + fkColumn + joinedSuffix
}

// ForwardJoinFieldName names the field resolving the row referenced by fkColumn.
func ForwardJoinFieldName(fkColumn string) string {
	return fkColumn + joinedSuffix
}

// ReverseJoinFieldName names the list field resolving owningTable rows whose fkColumn points here.
func ReverseJoinFieldName(owningTable, fkColumn string) string {
	return owningTable + "__" + fkColumn + joinedSuffix
}

// FilterTypeName returns the filter input type name for a table.
func FilterTypeName(table string) string {
	return filterPrefix + table
}

// OperatorFilterTypeName returns the operator input type name shared by columns of one scalar type.
func OperatorFilterTypeName(scalarName string) string {
	return scalarName + "Filter"
}

// SetInputTypeName returns the update "set" input type name for a table.
func SetInputTypeName(table string) string {
	return updatePrefix + table + setInputSuffix
}

// SetNullFieldName returns the flag field that sets column to NULL in an update.
func SetNullFieldName(column string) string {
	return setNullPrefix + column + setNullSuffix
}

// ParseSetNullFieldName reports the column named by a set-null flag field.
func ParseSetNullFieldName(field string) (string, bool) {
	if len(field) <= len(setNullPrefix)+len(setNullSuffix) {
		return "", false
	}
	if field[:len(setNullPrefix)] != setNullPrefix || field[len(field)-len(setNullSuffix):] != setNullSuffix {
		return "", false
	}
	return field[len(setNullPrefix) : len(field)-len(setNullSuffix)], true
}
