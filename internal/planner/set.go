package planner

import (
	"sort"

	"table-graphql/internal/introspection"
	"table-graphql/internal/naming"
)

// CompileSet converts an update "set" argument into column assignments.
// A "_set_<col>_null: true" flag assigns NULL; a false flag is ignored.
func CompileSet(input map[string]any, columns introspection.ColumnSet) (map[string]any, error) {
	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make(map[string]any, len(input))
	for _, key := range keys {
		raw := input[key]
		if _, ok := columns.Lookup(key); ok {
			if raw == nil {
				continue
			}
			if _, dup := values[key]; dup {
				return nil, validationErrorf("conflicting values for column %s in set", key)
			}
			values[key] = raw
			continue
		}

		column, ok := naming.ParseSetNullFieldName(key)
		if !ok {
			return nil, validationErrorf("unknown column in set: %s", key)
		}
		col, ok := columns.Lookup(column)
		if !ok {
			return nil, validationErrorf("unknown column in set: %s", column)
		}
		if !col.IsNullable {
			return nil, validationErrorf("column %s is not nullable", column)
		}
		flag, ok := raw.(bool)
		if !ok {
			if raw == nil {
				continue
			}
			return nil, validationErrorf("%s must be a boolean", key)
		}
		if !flag {
			continue
		}
		if _, dup := values[column]; dup {
			return nil, validationErrorf("conflicting values for column %s in set", column)
		}
		values[column] = nil
	}

	if len(values) == 0 {
		return nil, validationErrorf("update requires at least one column in set")
	}
	return values, nil
}
