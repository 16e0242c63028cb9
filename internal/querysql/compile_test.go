package querysql

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/iconcache/internal/queryir"
)

func TestCompileSelect_NoFilter(t *testing.T) {
	sql, params, err := CompileSelect("icons", queryir.Select{Columns: []string{"component", "label"}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT component, label FROM icons WHERE 1 = 1 ORDER BY component COLLATE BINARY ASC, user ASC", sql)
	assert.Empty(t, params)
}

func TestCompileSelect_AndFilter(t *testing.T) {
	sel := queryir.Select{
		Columns: []string{"label"},
		Filter: queryir.AllOf(
			queryir.Eq("component", "a/.B"),
			queryir.Eq("user", int64(3)),
		),
	}
	sql, params, err := CompileSelect("icons", sel)
	require.NoError(t, err)
	assert.Equal(t, "SELECT label FROM icons WHERE (component = ?) AND (user = ?) ORDER BY component COLLATE BINARY ASC, user ASC", sql)
	assert.Equal(t, []any{"a/.B", int64(3)}, params)
}

func TestCompileSelect_NoColumns(t *testing.T) {
	_, _, err := CompileSelect("icons", queryir.Select{})
	assert.Error(t, err)
}

func TestCompileWhere_In(t *testing.T) {
	sql, params, err := CompileWhere(queryir.In{Column: "rowid", Values: []any{int64(1), int64(2), int64(3)}})
	require.NoError(t, err)
	assert.Equal(t, "rowid IN (?, ?, ?)", sql)
	assert.Len(t, params, 3)
}

func TestCompileWhere_EmptyInMatchesNothing(t *testing.T) {
	sql, params, err := CompileWhere(queryir.In{Column: "rowid"})
	require.NoError(t, err)
	assert.Equal(t, "1 = 0", sql)
	assert.Nil(t, params)
}

func TestCompileWhere_HasPrefixEscapes(t *testing.T) {
	sql, params, err := CompileWhere(queryir.HasPrefix{Column: "component", Prefix: "my_pkg%/"})
	require.NoError(t, err)
	assert.Equal(t, `component LIKE ? ESCAPE '\'`, sql)
	assert.Equal(t, []any{`my\_pkg\%/%`}, params)
}

func TestCompileWhere_Or(t *testing.T) {
	sql, params, err := CompileWhere(queryir.Or{Predicates: []queryir.Predicate{
		queryir.Eq("component", "a/b"),
		queryir.Eq("component", "c/d"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "(component = ?) OR (component = ?)", sql)
	assert.Equal(t, []any{"a/b", "c/d"}, params)

	sql, _, err = CompileWhere(queryir.Or{})
	require.NoError(t, err)
	assert.Equal(t, "1 = 0", sql)
}

func TestCompileDelete(t *testing.T) {
	sql, params, err := CompileDelete("icons", queryir.Eq("user", int64(0)))
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM icons WHERE user = ?", sql)
	assert.Equal(t, []any{int64(0)}, params)
}

func TestCompiledStatementsExecute(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE icons (component TEXT NOT NULL, user INTEGER NOT NULL, label TEXT,
		PRIMARY KEY (component, user))`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO icons (component, user, label) VALUES
		('b/.X', 0, 'bx'), ('a/.Y', 10, 'ay10'), ('a/.Y', 0, 'ay0'), ('B/.Z', 0, 'upper')`)
	require.NoError(t, err)

	query, params, err := CompileSelect("icons", queryir.Select{
		Columns: []string{"label"},
		Filter: queryir.Or{Predicates: []queryir.Predicate{
			queryir.HasPrefix{Column: "component", Prefix: "a/"},
			queryir.In{Column: "user", Values: []any{int64(0)}},
		}},
	})
	require.NoError(t, err)

	rows, err := db.Query(query, params...)
	require.NoError(t, err)
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		require.NoError(t, rows.Scan(&label))
		labels = append(labels, label)
	}
	require.NoError(t, rows.Err())
	// Binary collation puts upper case before lower case.
	assert.Equal(t, []string{"upper", "ay0", "ay10", "bx"}, labels)

	del, params, err := CompileDelete("icons", queryir.Eq("user", int64(10)))
	require.NoError(t, err)
	res, err := db.Exec(del, params...)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
