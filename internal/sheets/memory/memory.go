package memory

import (
	"context"
	"fmt"
	"sync"

	ports "fintrack/internal/sheets"
)

// Sheet keeps exported rows in memory. It backs the worker when no
// spreadsheet is configured and in tests.
type Sheet struct {
	mu     sync.Mutex
	header bool
	rows   []ports.Row
}

var _ ports.Exporter = (*Sheet)(nil)

func New() *Sheet {
	return &Sheet{}
}

// AppendRow stores the row and returns a synthetic row reference.
func (s *Sheet) AppendRow(ctx context.Context, r ports.Row) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, r)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Sheet) EnsureHeader(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.header = true
	s.mu.Unlock()
	return nil
}

// Rows returns a copy of the appended rows in order.
func (s *Sheet) Rows() []ports.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Row(nil), s.rows...)
}

func (s *Sheet) HasHeader() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header
}
