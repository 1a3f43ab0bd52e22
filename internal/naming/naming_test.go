package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryPointAndTypeNames(t *testing.T) {
	assert.Equal(t, "select_from_users", SelectQueryName("users"))
	assert.Equal(t, "select_from_users", OutputTypeName("users"))
	assert.Equal(t, "update_users", UpdateMutationName("users"))
	assert.Equal(t, "where_users", FilterTypeName("users"))
	assert.Equal(t, "update_users_set", SetInputTypeName("users"))
	assert.Equal(t, "users__city_id__joined", JoinedTypeName("users", "city_id"))
}

func TestJoinFieldNames(t *testing.T) {
	assert.Equal(t, "city_id__joined", ForwardJoinFieldName("city_id"))
	assert.Equal(t, "users__city_id__joined", ReverseJoinFieldName("users", "city_id"))
}

func TestOperatorFilterTypeName(t *testing.T) {
	assert.Equal(t, "IntFilter", OperatorFilterTypeName("Int"))
	assert.Equal(t, "BooleanFilter", OperatorFilterTypeName("Boolean"))
}

func TestSetNullFieldName(t *testing.T) {
	tests := []struct {
		field  string
		column string
		ok     bool
	}{
		{SetNullFieldName("city_id"), "city_id", true},
		{"_set_x_null", "x", true},
		{"_set__null", "", false},
		{"city_id", "", false},
		{"_set_name", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			column, ok := ParseSetNullFieldName(tt.field)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.column, column)
		})
	}
}

func TestValidateNames(t *testing.T) {
	require.NoError(t, ValidateTableName("users"))
	require.Error(t, ValidateTableName("user-profiles"))
	require.Error(t, ValidateTableName("1users"))

	require.NoError(t, ValidateColumnName("users", "city_id"))
	for _, bad := range []string{"__typename", "_or", "_raw", "_set_name_null", "first name"} {
		t.Run(bad, func(t *testing.T) {
			assert.Error(t, ValidateColumnName("users", bad))
		})
	}
}

func TestDescriptions(t *testing.T) {
	assert.Equal(t, "The city referenced by city_id.", ForwardJoinDescription("cities", "city_id"))
	assert.Equal(t, "The users whose city_id references this row.", ReverseJoinDescription("users", "city_id"))
	assert.Equal(t, "Select order items, optionally filtered.", SelectDescription("order_items"))
	assert.Contains(t, UpdateDescription("users"), "first updated user")
}
