package sheets

import (
	"context"
	"sync"
)

// MemoryStore keeps sheets in process memory. Used by tests and the demo mode.
type MemoryStore struct {
	mu     sync.RWMutex
	sheets map[string][]Row

	// FailGet / FailAppend make the next matching calls fail, for tests.
	FailGet    map[string]error
	FailAppend map[string]error

	appendCalls int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[string][]Row)}
}

// EnsureSheet creates sheet with a header row if it does not exist yet.
func (m *MemoryStore) EnsureSheet(_ context.Context, sheet string, header Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[sheet]; !ok {
		m.sheets[sheet] = []Row{append(Row(nil), header...)}
	}
	return nil
}

func (m *MemoryStore) GetRows(ctx context.Context, sheet string, rng Range) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap("get", sheet, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.FailGet[sheet]; err != nil {
		return nil, Wrap("get", sheet, err)
	}
	return rng.Apply(m.sheets[sheet]), nil
}

func (m *MemoryStore) AppendRows(ctx context.Context, sheet string, rng Range, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return Wrap("append", sheet, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailAppend[sheet]; err != nil {
		return Wrap("append", sheet, err)
	}
	m.appendCalls++
	for len(m.sheets[sheet]) < rng.Offset() {
		m.sheets[sheet] = append(m.sheets[sheet], Row{})
	}
	for _, row := range rows {
		m.sheets[sheet] = append(m.sheets[sheet], rng.Fit(row))
	}
	return nil
}

// Len returns the total number of rows in sheet, header included.
func (m *MemoryStore) Len(sheet string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sheets[sheet])
}

// AppendCalls counts successful AppendRows calls across all sheets.
func (m *MemoryStore) AppendCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.appendCalls
}
