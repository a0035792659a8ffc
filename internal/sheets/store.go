// Package sheets defines the tabular store every log in the system lives in:
// named, append-only sheets of positional string rows.
package sheets

import (
	"context"
	"errors"
	"fmt"
)

// Row is one positional record. Cells are strings as written; empty trailing
// cells may be omitted by the store.
type Row []string

// Cell returns row[i], or "" when the row is shorter.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// Store is the tabular store contract. Implementations must be safe for
// concurrent use; they give no cross-call transactional guarantees.
type Store interface {
	// GetRows returns all rows of sheet inside rng. A missing sheet is empty, not an error.
	GetRows(ctx context.Context, sheet string, rng Range) ([]Row, error)
	// AppendRows appends rows as one all-or-nothing batch. Rows never land
	// above rng's start row: a sheet shorter than that is padded with blank rows.
	AppendRows(ctx context.Context, sheet string, rng Range, rows []Row) error
}

// ErrUnavailable matches every failure coming out of a Store (network, auth, quota, I/O).
var ErrUnavailable = errors.New("sheets: store unavailable")

// StoreError describes a failed store call.
type StoreError struct {
	Op    string // "get" or "append"
	Sheet string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("sheets: %s %q: %v", e.Op, e.Sheet, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUnavailable) hold for any StoreError.
func (e *StoreError) Is(target error) bool { return target == ErrUnavailable }

// Wrap returns nil for a nil err, otherwise a *StoreError.
func Wrap(op, sheet string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Sheet: sheet, Err: err}
}
