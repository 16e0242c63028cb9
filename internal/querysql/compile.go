// Package querysql compiles queryir predicates to parameterized SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/iconcache/internal/queryir"
)

// OrderBy is appended to every SELECT so iteration order is stable across
// runs and SQLite versions.
const OrderBy = "component COLLATE BINARY ASC, user ASC"

// CompileSelect converts a Select over table to SQL.
// Returns (sql, params, error).
//
// Values are never interpolated; only validated column names are.
func CompileSelect(table string, sel queryir.Select) (string, []any, error) {
	if len(sel.Columns) == 0 {
		return "", nil, fmt.Errorf("cannot compile select without columns")
	}

	where, params, err := CompileWhere(sel.Filter)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		strings.Join(sel.Columns, ", "), table, where, OrderBy)
	return sql, params, nil
}

// CompileDelete converts a predicate delete over table to SQL.
func CompileDelete(table string, filter queryir.Predicate) (string, []any, error) {
	where, params, err := CompileWhere(filter)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", table, where), params, nil
}

// CompileWhere compiles a predicate to a WHERE clause fragment.
// A nil predicate compiles to an always-true condition.
func CompileWhere(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return pred.Column + " = ?", []any{pred.Value}, nil
	case queryir.In:
		if len(pred.Values) == 0 {
			return "1 = 0", nil, nil
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(pred.Values)), ", ")
		params := append([]any(nil), pred.Values...)
		return fmt.Sprintf("%s IN (%s)", pred.Column, marks), params, nil
	case queryir.HasPrefix:
		return pred.Column + ` LIKE ? ESCAPE '\'`, []any{escapeLike(pred.Prefix) + "%"}, nil
	case queryir.And:
		return compileJunction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return compileJunction(pred.Predicates, " OR ", "1 = 0")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileJunction(preds []queryir.Predicate, op, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	parts := make([]string, 0, len(preds))
	var params []any
	for _, sub := range preds {
		sql, subParams, err := CompileWhere(sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, subParams...)
	}
	return strings.Join(parts, op), params, nil
}

// escapeLike escapes LIKE wildcards so the prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
