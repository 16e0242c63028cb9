package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/iconcache/internal/queryir"
	"github.com/roach88/iconcache/internal/querysql"
)

// Rows streams query results one row at a time so callers never hold the
// whole table in memory.
//
// Usage:
//
//	rows, err := s.Query(ctx, sel)
//	if err != nil { ... }
//	defer rows.Close()
//	for rows.Next() {
//	    row, err := rows.Row()
//	    if err != nil { ... } // per-row decode failure, keep going
//	}
//	if err := rows.Err(); err != nil { ... }
type Rows struct {
	rows    *sql.Rows
	columns []string
	cur     Row
	curErr  error
}

// Next advances to the next row.
func (r *Rows) Next() bool {
	if !r.rows.Next() {
		return false
	}
	r.cur, r.curErr = scanRow(r.rows, r.columns)
	return true
}

// Row returns the current row. A non-nil error concerns this row only. For
// a corrupt blob the returned Row still carries the columns that decoded
// cleanly; when the row itself failed to scan only RowID is set, and only
// if the projection selected it.
func (r *Rows) Row() (Row, error) {
	return r.cur, r.curErr
}

// Err returns the iteration error, if any.
func (r *Rows) Err() error {
	if err := r.rows.Err(); err != nil {
		return fmt.Errorf("iterate icons: %w", err)
	}
	return nil
}

// Close releases the cursor.
func (r *Rows) Close() error {
	return r.rows.Close()
}

// Query runs a projection over the icons table.
// Results are ordered by component then user.
func (s *Store) Query(ctx context.Context, sel queryir.Select) (*Rows, error) {
	if err := queryir.Validate(sel, knownColumns); err != nil {
		return nil, fmt.Errorf("query icons: %w", err)
	}

	sqlText, params, err := querysql.CompileSelect(Table, sel)
	if err != nil {
		return nil, fmt.Errorf("query icons: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query icons: %w", err)
	}
	return &Rows{rows: rows, columns: sel.Columns}, nil
}

// Get returns the row for (component, user) using the given projection.
// Extra predicates narrow the match (e.g. a systemState check).
// Returns ErrNotFound if no row matches.
func (s *Store) Get(ctx context.Context, key Key, columns []string, extra ...queryir.Predicate) (Row, error) {
	preds := append([]queryir.Predicate{
		queryir.Eq(ColComponent, key.Component),
		queryir.Eq(ColUser, key.User),
	}, extra...)

	rows, err := s.Query(ctx, queryir.Select{Columns: columns, Filter: queryir.AllOf(preds...)})
	if err != nil {
		return Row{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Row{}, err
		}
		return Row{}, ErrNotFound
	}
	return rows.Row()
}

// QueryKeys returns the rows for a set of keys. Missing keys are skipped;
// rows whose blobs fail to decode are skipped too.
func (s *Store) QueryKeys(ctx context.Context, keys []Key, columns []string) ([]Row, error) {
	if len(keys) == 0 {
		return []Row{}, nil
	}

	alts := make([]queryir.Predicate, 0, len(keys))
	for _, k := range keys {
		alts = append(alts, queryir.AllOf(
			queryir.Eq(ColComponent, k.Component),
			queryir.Eq(ColUser, k.User),
		))
	}

	rows, err := s.Query(ctx, queryir.Select{Columns: columns, Filter: queryir.Or{Predicates: alts}})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Row{}
	for rows.Next() {
		row, err := rows.Row()
		if errors.Is(err, ErrCorruptBlob) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Count returns the number of rows matching filter (nil for all).
func (s *Store) Count(ctx context.Context, filter queryir.Predicate) (int, error) {
	if err := queryir.ValidatePredicate(filter, knownColumns); err != nil {
		return 0, fmt.Errorf("count icons: %w", err)
	}
	where, params, err := querysql.CompileWhere(filter)
	if err != nil {
		return 0, fmt.Errorf("count icons: %w", err)
	}

	var n int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+Table+" WHERE "+where, params...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count icons: %w", err)
	}
	return n, nil
}

// scanRow scans the selected columns into a Row and decodes blobs.
func scanRow(rows *sql.Rows, columns []string) (Row, error) {
	var (
		row                       Row
		label, state, keywords    sql.NullString
		iconRaw, monoRaw          []byte
		iconDigest                sql.NullString
		hasIcon, hasMono, hasDgst bool
	)

	dest := make([]any, len(columns))
	for i, c := range columns {
		switch c {
		case ColRowID:
			dest[i] = &row.RowID
		case ColComponent:
			dest[i] = &row.Component
		case ColUser:
			dest[i] = &row.User
		case ColLastUpdated:
			dest[i] = &row.LastUpdated
		case ColVersion:
			dest[i] = &row.Version
		case ColIcon:
			dest[i] = &iconRaw
			hasIcon = true
		case ColMonoIcon:
			dest[i] = &monoRaw
			hasMono = true
		case ColIconDigest:
			dest[i] = &iconDigest
			hasDgst = true
		case ColColor:
			dest[i] = &row.Color
		case ColFlags:
			dest[i] = &row.Flags
		case ColLabel:
			dest[i] = &label
		case ColSystemState:
			dest[i] = &state
		case ColKeywords:
			dest[i] = &keywords
		default:
			return Row{}, fmt.Errorf("scan icon row: unknown column %q", c)
		}
	}

	if err := rows.Scan(dest...); err != nil {
		return Row{RowID: scanRowID(rows, columns)}, fmt.Errorf("scan icon row: %w", err)
	}

	row.Label = label.String
	row.SystemState = state.String
	row.Keywords = keywords.String

	if hasIcon {
		icon, err := unmarshalBlob(iconRaw)
		if err != nil {
			return row, fmt.Errorf("icon of %s: %w", row.Component, err)
		}
		if hasDgst {
			if err := verifyBlob(icon, iconDigest); err != nil {
				return row, fmt.Errorf("icon of %s: %w", row.Component, err)
			}
		}
		row.Icon = icon
	}
	if hasMono {
		mono, err := unmarshalBlob(monoRaw)
		if err != nil {
			return row, fmt.Errorf("mono icon of %s: %w", row.Component, err)
		}
		row.Mono = mono
	}

	return row, nil
}

// scanRowID rescans the current row for its rowid alone, so a row whose
// other columns hold unexpected types can still be deleted. Returns 0 when
// the projection has no rowid.
func scanRowID(rows *sql.Rows, columns []string) int64 {
	var id int64
	dest := make([]any, len(columns))
	found := false
	for i, c := range columns {
		if c == ColRowID {
			dest[i] = &id
			found = true
			continue
		}
		dest[i] = new(any)
	}
	if !found || rows.Scan(dest...) != nil {
		return 0
	}
	return id
}
