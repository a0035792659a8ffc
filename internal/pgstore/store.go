// Package pgstore is a PostgreSQL-backed sheets.Store for deployments that
// share one log between several service instances.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lens-tracker/internal/logger"
	"lens-tracker/internal/sheets"
)

const schema = `
CREATE TABLE IF NOT EXISTS sheet_rows (
	sheet   TEXT    NOT NULL,
	row_idx INTEGER NOT NULL,
	cells   TEXT[]  NOT NULL,
	PRIMARY KEY (sheet, row_idx)
)`

// Store keeps every sheet in one sheet_rows table.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	logger.Success("STORE", "Connected to PostgreSQL")
	return &Store{pool: pool}, nil
}

// New wraps an existing pool. The schema must already exist.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// limitArg turns a range limit into a LIMIT parameter; NULL means no limit.
func limitArg(rng sheets.Range) *int {
	lim := rng.Limit()
	if lim < 0 {
		return nil
	}
	return &lim
}

func (s *Store) GetRows(ctx context.Context, sheet string, rng sheets.Range) ([]sheets.Row, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = $1 ORDER BY row_idx LIMIT $2 OFFSET $3`,
		sheet, limitArg(rng), rng.Offset(),
	)
	if err != nil {
		return nil, sheets.Wrap("get", sheet, err)
	}
	cells, err := pgx.CollectRows(rows, pgx.RowTo[[]string])
	if err != nil {
		return nil, sheets.Wrap("get", sheet, err)
	}
	out := make([]sheets.Row, len(cells))
	for i, c := range cells {
		out[i] = rng.Project(sheets.Row(c))
	}
	return out, nil
}

// AppendRows writes the batch in one transaction. A transaction-scoped
// advisory lock on the sheet name serializes concurrent appenders so row
// indexes stay dense.
func (s *Store) AppendRows(ctx context.Context, sheet string, rng sheets.Range, rows []sheets.Row) error {
	if len(rows) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return appendInTx(ctx, tx, sheet, rng, rows)
	})
	return sheets.Wrap("append", sheet, err)
}

func appendInTx(ctx context.Context, tx pgx.Tx, sheet string, rng sheets.Range, rows []sheets.Row) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sheet); err != nil {
		return err
	}
	var last int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(row_idx), 0) FROM sheet_rows WHERE sheet = $1`, sheet,
	).Scan(&last); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for last < rng.Offset() {
		last++
		batch.Queue(`INSERT INTO sheet_rows (sheet, row_idx, cells) VALUES ($1, $2, $3)`,
			sheet, last, []string{})
	}
	for i, row := range rows {
		batch.Queue(`INSERT INTO sheet_rows (sheet, row_idx, cells) VALUES ($1, $2, $3)`,
			sheet, last+i+1, []string(rng.Fit(row)))
	}
	return tx.SendBatch(ctx, batch).Close()
}

// EnsureSheet seeds header as row 1 when the sheet is empty.
func (s *Store) EnsureSheet(ctx context.Context, sheet string, header sheets.Row) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sheet); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM sheet_rows WHERE sheet = $1)`, sheet,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO sheet_rows (sheet, row_idx, cells) VALUES ($1, 1, $2)`,
			sheet, []string(header))
		return err
	})
	return sheets.Wrap("append", sheet, err)
}
