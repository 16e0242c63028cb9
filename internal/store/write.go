package store

import (
	"context"
	"fmt"

	"github.com/roach88/iconcache/internal/queryir"
	"github.com/roach88/iconcache/internal/querysql"
)

// InsertOrReplace writes a row, replacing any row with the same
// (component, user). RowID is ignored; SQLite assigns a fresh one.
func (s *Store) InsertOrReplace(ctx context.Context, row Row) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO icons
		(component, user, lastUpdated, version, icon, monoIcon, icon_digest,
		 color, flags, label, systemState, keywords)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.Component,
		row.User,
		row.LastUpdated,
		row.Version,
		marshalBlob(row.Icon),
		marshalBlob(row.Mono),
		blobDigest(row.Icon),
		row.Color,
		row.Flags,
		nullString(row.Label),
		nullString(row.SystemState),
		nullString(row.Keywords),
	)
	if err != nil {
		return fmt.Errorf("insert icon %s: %w", row.Component, err)
	}
	return nil
}

// Delete removes every row matching filter and returns how many were
// removed. A nil filter is rejected; use Clear to empty the table.
func (s *Store) Delete(ctx context.Context, filter queryir.Predicate) (int64, error) {
	if filter == nil {
		return 0, fmt.Errorf("delete icons: nil filter")
	}
	if err := queryir.ValidatePredicate(filter, knownColumns); err != nil {
		return 0, fmt.Errorf("delete icons: %w", err)
	}

	sqlText, params, err := querysql.CompileDelete(Table, filter)
	if err != nil {
		return 0, fmt.Errorf("delete icons: %w", err)
	}

	res, err := s.db.ExecContext(ctx, sqlText, params...)
	if err != nil {
		return 0, fmt.Errorf("delete icons: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete icons: rows affected: %w", err)
	}
	return n, nil
}

// maxDeleteParams keeps a single DELETE under SQLite's bound-variable limit.
const maxDeleteParams = 999

// DeleteRows removes rows by rowid, batching into as few statements as the
// bound-variable limit allows.
func (s *Store) DeleteRows(ctx context.Context, rowIDs []int64) (int64, error) {
	var total int64
	for start := 0; start < len(rowIDs); start += maxDeleteParams {
		end := min(start+maxDeleteParams, len(rowIDs))
		ids := make([]any, 0, end-start)
		for _, id := range rowIDs[start:end] {
			ids = append(ids, id)
		}
		n, err := s.Delete(ctx, queryir.In{Column: ColRowID, Values: ids})
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Clear removes every row, keeping the schema.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+Table); err != nil {
		return fmt.Errorf("clear icons: %w", err)
	}
	return nil
}
