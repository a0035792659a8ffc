package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"lens-tracker/internal/sheets"
)

// GetRows implements sheets.Store. Rows are stored as JSON arrays keyed by
// (sheet, row_idx); row_idx is 1-based like a spreadsheet.
func (d *DB) GetRows(ctx context.Context, sheet string, rng sheets.Range) ([]sheets.Row, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY row_idx LIMIT ? OFFSET ?`,
		sheet, rng.Limit(), rng.Offset(),
	)
	if err != nil {
		return nil, sheets.Wrap("get", sheet, err)
	}
	defer rows.Close()

	out := []sheets.Row{}
	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			return nil, sheets.Wrap("get", sheet, err)
		}
		var row sheets.Row
		if err := json.Unmarshal([]byte(cellsJSON), &row); err != nil {
			return nil, sheets.Wrap("get", sheet, fmt.Errorf("decode row: %w", err))
		}
		out = append(out, rng.Project(row))
	}
	if err := rows.Err(); err != nil {
		return nil, sheets.Wrap("get", sheet, err)
	}
	return out, nil
}

// AppendRows implements sheets.Store. The batch is one transaction.
func (d *DB) AppendRows(ctx context.Context, sheet string, rng sheets.Range, rows []sheets.Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return sheets.Wrap("append", sheet, err)
	}
	defer tx.Rollback()

	if err := appendInTx(ctx, tx, sheet, rng, rows); err != nil {
		return sheets.Wrap("append", sheet, err)
	}
	if err := tx.Commit(); err != nil {
		return sheets.Wrap("append", sheet, err)
	}
	return nil
}

func appendInTx(ctx context.Context, tx *sql.Tx, sheet string, rng sheets.Range, rows []sheets.Row) error {
	var last int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(row_idx), 0) FROM sheet_rows WHERE sheet = ?`, sheet,
	).Scan(&last); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sheet_rows (sheet, row_idx, cells) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for last < int64(rng.Offset()) {
		last++
		if _, err := stmt.ExecContext(ctx, sheet, last, "[]"); err != nil {
			return err
		}
	}
	for i, row := range rows {
		cells, err := json.Marshal(rng.Fit(row))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, sheet, last+int64(i)+1, string(cells)); err != nil {
			return err
		}
	}
	return nil
}

// EnsureSheet seeds header as row 1 when the sheet has no rows yet.
func (d *DB) EnsureSheet(ctx context.Context, sheet string, header sheets.Row) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return sheets.Wrap("append", sheet, err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sheet_rows WHERE sheet = ?`, sheet).Scan(&n); err != nil {
		return sheets.Wrap("append", sheet, err)
	}
	if n > 0 {
		return nil
	}
	if err := appendInTx(ctx, tx, sheet, sheets.All, []sheets.Row{header}); err != nil {
		return sheets.Wrap("append", sheet, err)
	}
	return sheets.Wrap("append", sheet, tx.Commit())
}

// CountRows returns the number of stored rows in sheet, header included.
func (d *DB) CountRows(ctx context.Context, sheet string) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM sheet_rows WHERE sheet = ?`, sheet).Scan(&n)
	return n, err
}
