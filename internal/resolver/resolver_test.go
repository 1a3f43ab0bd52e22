package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-graphql/internal/dbexec"
	"table-graphql/internal/introspection"
	"table-graphql/internal/predicate"
	"table-graphql/internal/sqltype"
)

type selectCall struct {
	Table string
	Pred  string
	Limit int
}

type updateCall struct {
	Table string
	Set   map[string]any
	Pred  string
}

// fakeExecutor serves rows from memory. It understands equality and null
// checks, which is all the join resolvers issue.
type fakeExecutor struct {
	mu      sync.Mutex
	rows    map[string][]dbexec.Row
	selects []selectCall
	updates []updateCall
	err     error
}

func predString(pred predicate.Expr) string {
	if pred == nil {
		return ""
	}
	return pred.String()
}

func (f *fakeExecutor) Select(_ context.Context, table introspection.Table, pred predicate.Expr, limit int) ([]dbexec.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selects = append(f.selects, selectCall{Table: table.Name, Pred: predString(pred), Limit: limit})
	if f.err != nil {
		return nil, f.err
	}

	out := []dbexec.Row{}
	for _, row := range f.rows[table.Name] {
		if matches(row, pred) {
			out = append(out, row)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeExecutor) Update(_ context.Context, table introspection.Table, set map[string]any, pred predicate.Expr) ([]dbexec.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{Table: table.Name, Set: set, Pred: predString(pred)})
	if f.err != nil {
		return nil, f.err
	}

	var out []dbexec.Row
	for _, row := range f.rows[table.Name] {
		if !matches(row, pred) {
			continue
		}
		for k, v := range set {
			row[k] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func matches(row dbexec.Row, pred predicate.Expr) bool {
	cmp, ok := pred.(predicate.Comparison)
	if !ok {
		return true
	}
	switch cmp.Op {
	case predicate.OpEq:
		return row[cmp.Column] != nil && fmt.Sprint(row[cmp.Column]) == fmt.Sprint(cmp.Value)
	case predicate.OpIsNull:
		return row[cmp.Column] == nil
	case predicate.OpIsNotNull:
		return row[cmp.Column] != nil
	default:
		return true
	}
}

func citiesUsersSchema() *introspection.Schema {
	return &introspection.Schema{Tables: []introspection.Table{
		{Name: "cities", Columns: []introspection.Column{
			{Name: "id", DataType: "int", IsPrimaryKey: true},
			{Name: "name", DataType: "varchar(64)"},
		}},
		{Name: "users", Columns: []introspection.Column{
			{Name: "id", DataType: "int", IsPrimaryKey: true},
			{Name: "name", DataType: "varchar(64)"},
			{Name: "city_id", DataType: "int", IsNullable: true, References: &introspection.Reference{Table: "cities", Column: "id"}},
		}},
	}}
}

func citiesUsersRows() map[string][]dbexec.Row {
	return map[string][]dbexec.Row{
		"cities": {
			{"id": 1, "name": "Lisbon"},
			{"id": 2, "name": "Porto"},
		},
		"users": {
			{"id": 10, "name": "ana", "city_id": 1},
			{"id": 11, "name": "bo", "city_id": nil},
			{"id": 12, "name": "cy", "city_id": 1},
		},
	}
}

func buildSchema(t *testing.T, exec dbexec.Executor, dbSchema *introspection.Schema) graphql.Schema {
	t.Helper()
	schema, err := NewResolver(exec, dbSchema, nil).BuildGraphQLSchema()
	require.NoError(t, err)
	return schema
}

func run(t *testing.T, schema graphql.Schema, query string) *graphql.Result {
	t.Helper()
	return graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: query,
		Context:       context.Background(),
	})
}

func fieldNames(obj *graphql.Object) []string {
	names := []string{}
	for name := range obj.Fields() {
		names = append(names, name)
	}
	return names
}

func TestBuildGraphQLSchema_CitiesUsersShape(t *testing.T) {
	schema := buildSchema(t, &fakeExecutor{}, citiesUsersSchema())

	query := schema.QueryType()
	require.NotNil(t, query.Fields()["select_from_users"])
	require.NotNil(t, query.Fields()["select_from_cities"])
	require.NotNil(t, schema.MutationType().Fields()["update_users"])
	require.NotNil(t, schema.MutationType().Fields()["update_cities"])

	users, ok := schema.Type("select_from_users").(*graphql.Object)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"id", "name", "city_id", "city_id__joined"}, fieldNames(users))

	// Nullable foreign key yields a nullable forward join.
	joined := users.Fields()["city_id__joined"].Type
	joinedObj, ok := joined.(*graphql.Object)
	require.True(t, ok, "city_id__joined should be nullable, got %s", joined)
	assert.Equal(t, "users__city_id__joined", joinedObj.Name())
	assert.ElementsMatch(t, []string{"id", "name"}, fieldNames(joinedObj))

	_, isNonNull := users.Fields()["id"].Type.(*graphql.NonNull)
	assert.True(t, isNonNull)
	assert.Equal(t, graphql.Int, users.Fields()["city_id"].Type)

	cities, ok := schema.Type("select_from_cities").(*graphql.Object)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"id", "name", "users__city_id__joined"}, fieldNames(cities))
	assert.Equal(t, "[select_from_users!]!", cities.Fields()["users__city_id__joined"].Type.String())
}

func TestBuildGraphQLSchema_RequiredForeignKeyIsNonNull(t *testing.T) {
	dbSchema := citiesUsersSchema()
	dbSchema.Tables[1].Columns[2].IsNullable = false

	schema := buildSchema(t, &fakeExecutor{}, dbSchema)
	users := schema.Type("select_from_users").(*graphql.Object)
	assert.Equal(t, "users__city_id__joined!", users.Fields()["city_id__joined"].Type.String())
}

func TestSelect_IsNullFilterAndJoins(t *testing.T) {
	exec := &fakeExecutor{rows: citiesUsersRows()}
	schema := buildSchema(t, exec, citiesUsersSchema())

	result := run(t, schema, `{
		select_from_users(filter: {city_id: {isNull: true}}) {
			id
			name
			city_id__joined { name }
		}
	}`)
	require.Empty(t, result.Errors)

	require.NotEmpty(t, exec.selects)
	assert.Equal(t, selectCall{Table: "users", Pred: "city_id IS NULL", Limit: 0}, exec.selects[0])

	data := result.Data.(map[string]interface{})
	rows := data["select_from_users"].([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "bo", row["name"])
	assert.Nil(t, row["city_id__joined"])

	// A null foreign key never reaches the executor.
	assert.Len(t, exec.selects, 1)
}

func TestSelect_ForwardAndReverseJoins(t *testing.T) {
	exec := &fakeExecutor{rows: citiesUsersRows()}
	schema := buildSchema(t, exec, citiesUsersSchema())

	result := run(t, schema, `{
		select_from_cities(filter: {id: {eq: 1}}) {
			name
			users__city_id__joined { name city_id__joined { name } }
		}
	}`)
	require.Empty(t, result.Errors)

	data := result.Data.(map[string]interface{})
	cities := data["select_from_cities"].([]interface{})
	require.Len(t, cities, 1)
	lisbon := cities[0].(map[string]interface{})
	assert.Equal(t, "Lisbon", lisbon["name"])

	users := lisbon["users__city_id__joined"].([]interface{})
	require.Len(t, users, 2)
	for _, u := range users {
		joined := u.(map[string]interface{})["city_id__joined"].(map[string]interface{})
		assert.Equal(t, "Lisbon", joined["name"])
	}

	assert.Contains(t, exec.selects, selectCall{Table: "users", Pred: "city_id = 1", Limit: 0})
	assert.Contains(t, exec.selects, selectCall{Table: "cities", Pred: "id = 1", Limit: 1})
}

func TestSelect_ValidationErrorSkipsExecutor(t *testing.T) {
	exec := &fakeExecutor{rows: citiesUsersRows()}
	schema := buildSchema(t, exec, citiesUsersSchema())

	result := run(t, schema, `{
		select_from_users(filter: {_raw: "1=1", name: {eq: "x"}}) { id }
	}`)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "multiple filter types present")
	assert.Empty(t, exec.selects)
}

func TestSelect_ExecutorErrorSurfaces(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("connection reset")}
	schema := buildSchema(t, exec, citiesUsersSchema())

	result := run(t, schema, `{ select_from_cities { id } }`)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "connection reset")
}

func TestUpdate_SetNullFlag(t *testing.T) {
	exec := &fakeExecutor{rows: citiesUsersRows()}
	schema := buildSchema(t, exec, citiesUsersSchema())

	result := run(t, schema, `mutation {
		update_users(set: {_set_city_id_null: true, name: "ana2"}, where: {id: {eq: 10}}) { id name city_id }
	}`)
	require.Empty(t, result.Errors)

	require.Len(t, exec.updates, 1)
	assert.Equal(t, "users", exec.updates[0].Table)
	assert.Equal(t, "id = 10", exec.updates[0].Pred)
	assert.Equal(t, map[string]any{"name": "ana2", "city_id": nil}, exec.updates[0].Set)

	updated := result.Data.(map[string]interface{})["update_users"].(map[string]interface{})
	assert.Equal(t, "ana2", updated["name"])
	assert.Nil(t, updated["city_id"])
}

func TestUpdate_NoMatchReturnsNull(t *testing.T) {
	exec := &fakeExecutor{rows: citiesUsersRows()}
	schema := buildSchema(t, exec, citiesUsersSchema())

	result := run(t, schema, `mutation { update_cities(set: {name: "x"}, where: {id: {eq: 99}}) { id } }`)
	require.Empty(t, result.Errors)
	assert.Nil(t, result.Data.(map[string]interface{})["update_cities"])
}

func TestUpdate_RejectedInputsSkipExecutor(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		message string
	}{
		{
			name:    "conflicting null flag and value",
			query:   `mutation { update_users(set: {city_id: 2, _set_city_id_null: true}) { id } }`,
			message: "conflicting values for column city_id",
		},
		{
			name:    "empty set",
			query:   `mutation { update_users(set: {}) { id } }`,
			message: "at least one column",
		},
		{
			name:    "bad where",
			query:   `mutation { update_users(set: {name: "x"}, where: {_not: {}, _raw: "1"}) { id } }`,
			message: "multiple filter types present",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{rows: citiesUsersRows()}
			schema := buildSchema(t, exec, citiesUsersSchema())

			result := run(t, schema, tt.query)
			require.NotEmpty(t, result.Errors)
			assert.Contains(t, result.Errors[0].Message, tt.message)
			assert.Empty(t, exec.updates)
		})
	}
}

func TestSetInput_NullFlagsOnlyForNullableColumns(t *testing.T) {
	schema := buildSchema(t, &fakeExecutor{}, citiesUsersSchema())

	set, ok := schema.Type("update_users_set").(*graphql.InputObject)
	require.True(t, ok)
	fields := set.Fields()
	assert.Contains(t, fields, "_set_city_id_null")
	assert.NotContains(t, fields, "_set_name_null")
	assert.NotContains(t, fields, "_set_id_null")
	_, nonNull := fields["id"].Type.(*graphql.NonNull)
	assert.False(t, nonNull)
}

func TestFilterInput_Memoized(t *testing.T) {
	r := NewResolver(&fakeExecutor{}, citiesUsersSchema(), nil)

	first, err := r.FilterInput("users")
	require.NoError(t, err)
	second, err := r.FilterInput("users")
	require.NoError(t, err)
	assert.Same(t, first, second)

	schema, err := r.BuildGraphQLSchema()
	require.NoError(t, err)
	assert.Same(t, first, schema.Type("where_users"))

	fields := first.Fields()
	for _, key := range []string{"id", "name", "city_id", "_raw", "_or", "_and", "_not"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "[where_users!]", fields["_or"].Type.String())
	assert.Equal(t, "where_users", fields["_not"].Type.String())

	// Columns of the same scalar share one operator shape.
	assert.Same(t, fields["id"].Type, fields["city_id"].Type)
	intFilter := fields["id"].Type.(*graphql.InputObject).Fields()
	assert.Equal(t, "[Int!]", intFilter["in"].Type.String())
	assert.Equal(t, "[Int!]", intFilter["between"].Type.String())
	assert.Equal(t, "String", intFilter["like"].Type.String())
	assert.Equal(t, "Boolean", intFilter["isNull"].Type.String())
	assert.Equal(t, "Int", intFilter["eq"].Type.String())

	_, err = r.FilterInput("nope")
	require.Error(t, err)
}

func TestBuildGraphQLSchema_CyclesTerminate(t *testing.T) {
	dbSchema := &introspection.Schema{Tables: []introspection.Table{
		{Name: "employees", Columns: []introspection.Column{
			{Name: "id", DataType: "bigint", IsPrimaryKey: true},
			{Name: "manager_id", DataType: "bigint", IsNullable: true, References: &introspection.Reference{Table: "employees", Column: "id"}},
			{Name: "team_id", DataType: "bigint", References: &introspection.Reference{Table: "teams", Column: "id"}},
		}},
		{Name: "teams", Columns: []introspection.Column{
			{Name: "id", DataType: "bigint", IsPrimaryKey: true},
			{Name: "lead_id", DataType: "bigint", IsNullable: true, References: &introspection.Reference{Table: "employees", Column: "id"}},
		}},
	}}

	r := NewResolver(&fakeExecutor{}, dbSchema, nil)
	schema, err := r.BuildGraphQLSchema()
	require.NoError(t, err)

	employees := schema.Type("select_from_employees").(*graphql.Object)
	assert.ElementsMatch(t, []string{
		"id", "manager_id", "team_id",
		"manager_id__joined", "team_id__joined",
		"employees__manager_id__joined", "teams__lead_id__joined",
	}, fieldNames(employees))

	// The self-referencing joined type refers back to itself rather than nesting forever.
	mgr := schema.Type("employees__manager_id__joined").(*graphql.Object)
	assert.Equal(t, "employees__manager_id__joined", mgr.Fields()["manager_id__joined"].Type.String())

	builtOnce := r.registry.Len()
	_, err = r.BuildGraphQLSchema()
	require.NoError(t, err)
	assert.Equal(t, builtOnce, r.registry.Len())
}

func TestBuildGraphQLSchema_UnsupportedColumnType(t *testing.T) {
	dbSchema := &introspection.Schema{Tables: []introspection.Table{
		{Name: "blobs", Columns: []introspection.Column{
			{Name: "id", DataType: "int"},
			{Name: "payload", DataType: "blob"},
		}},
	}}

	_, err := NewResolver(&fakeExecutor{}, dbSchema, nil).BuildGraphQLSchema()
	require.Error(t, err)
	var typeErr *sqltype.UnsupportedTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "blob", typeErr.Type)
}

func TestBuildGraphQLSchema_InvalidMetadata(t *testing.T) {
	tests := []struct {
		name   string
		tables []introspection.Table
	}{
		{"no columns", []introspection.Table{{Name: "empty"}}},
		{"reserved column", []introspection.Table{{Name: "t", Columns: []introspection.Column{{Name: "_raw", DataType: "int"}}}}},
		{"dangling reference", []introspection.Table{{Name: "t", Columns: []introspection.Column{
			{Name: "x", DataType: "int", References: &introspection.Reference{Table: "missing", Column: "id"}},
		}}}},
		{"join field collides with column", []introspection.Table{{Name: "t", Columns: []introspection.Column{
			{Name: "id", DataType: "int"},
			{Name: "p", DataType: "int", References: &introspection.Reference{Table: "t", Column: "id"}},
			{Name: "p__joined", DataType: "int"},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(&fakeExecutor{}, &introspection.Schema{Tables: tt.tables}, nil).BuildGraphQLSchema()
			require.Error(t, err)
		})
	}
}

func TestBuildGraphQLSchema_NoTables(t *testing.T) {
	schema := buildSchema(t, &fakeExecutor{}, &introspection.Schema{})
	assert.Nil(t, schema.MutationType())

	result := run(t, schema, `{ _schema }`)
	require.Empty(t, result.Errors)
	assert.Equal(t, "No tables found", result.Data.(map[string]interface{})["_schema"])
}
