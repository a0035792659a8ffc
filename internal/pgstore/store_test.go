package pgstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"lens-tracker/internal/sheets"
)

func TestLimitArg(t *testing.T) {
	if got := limitArg(sheets.MustRange("A2:F")); got != nil {
		t.Errorf("open range limit = %d, want nil", *got)
	}
	got := limitArg(sheets.MustRange("A2:F10"))
	if got == nil || *got != 9 {
		t.Errorf("A2:F10 limit = %v, want 9", got)
	}
}

// openTestStore connects to LENS_TEST_PG_DSN and isolates the test under a
// unique sheet prefix. Skips when no database is configured.
func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dsn := os.Getenv("LENS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LENS_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	prefix := fmt.Sprintf("test-%d-", time.Now().UnixNano())
	t.Cleanup(func() {
		s.pool.Exec(context.Background(), `DELETE FROM sheet_rows WHERE sheet LIKE $1`, prefix+"%")
		s.Close()
	})
	return s, prefix
}

func TestStore_RoundTrip(t *testing.T) {
	s, prefix := openTestStore(t)
	ctx := context.Background()
	sheet := prefix + "Estados"

	if err := s.EnsureSheet(ctx, sheet, sheets.CanonicalHeader); err != nil {
		t.Fatalf("EnsureSheet: %v", err)
	}
	if err := s.EnsureSheet(ctx, sheet, sheets.CanonicalHeader); err != nil {
		t.Fatalf("EnsureSheet again: %v", err)
	}
	rows := []sheets.Row{
		{"1", "2024-01-02T10:00:00Z", "Bodega", "Digitacion", "a", "2024-01-10"},
		{"2", "2024-01-02T11:00:00Z", "Bodega", "Digitacion", "b"},
	}
	if err := s.AppendRows(ctx, sheet, sheets.MustRange("A2:F"), rows); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	got, err := s.GetRows(ctx, sheet, sheets.MustRange("A2:F"))
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetRows len = %d, want 2", len(got))
	}
	if got[0].Cell(5) != "2024-01-10" || got[1].Cell(0) != "2" {
		t.Errorf("rows = %v", got)
	}
}

func TestStore_MissingSheetIsEmpty(t *testing.T) {
	s, prefix := openTestStore(t)
	got, err := s.GetRows(context.Background(), prefix+"nope", sheets.All)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("GetRows = %v, want empty", got)
	}
}

func TestStore_AppendToUnseededSheet(t *testing.T) {
	s, prefix := openTestStore(t)
	ctx := context.Background()
	sheet := prefix + "Bodega"
	rng := sheets.MustRange("A2:E")

	if err := s.AppendRows(ctx, sheet, rng, []sheets.Row{{"1", "2024-01-15T09:00:00Z", "Digitacion", "ana"}}); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	got, err := s.GetRows(ctx, sheet, rng)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(got) != 1 || got[0].Cell(0) != "1" {
		t.Errorf("GetRows(A2:E) = %v, want the appended row", got)
	}
}
