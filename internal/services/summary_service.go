package services

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"

	"github.com/google/uuid"
)

// SummaryReader is the read access the aggregator needs.
type SummaryReader interface {
	ListTransactionsInWindow(ctx context.Context, w core.Window) ([]core.Transaction, error)
	CategoryNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// SummaryService builds read-only monthly summaries.
type SummaryService struct {
	store   SummaryReader
	metrics *metrics.Collector
}

func NewSummaryService(store SummaryReader, m *metrics.Collector) *SummaryService {
	return &SummaryService{store: store, metrics: m}
}

// MonthlySummary totals income and expenses for year+month and breaks the
// expenses down by category. Transfers are excluded from every total.
func (s *SummaryService) MonthlySummary(ctx context.Context, year, month int) (core.MonthlySummary, error) {
	start := time.Now()

	window, err := core.MonthWindow(year, month)
	if err != nil {
		return core.MonthlySummary{}, err
	}

	txs, err := s.store.ListTransactionsInWindow(ctx, window)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("load transactions for %04d-%02d: %w", year, month, err)
	}

	totals, err := core.Summarize(window, txs)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("summarize %04d-%02d: %w", year, month, err)
	}

	names, err := s.store.CategoryNames(ctx, totals.CategoryIDs())
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("resolve category names: %w", err)
	}

	summary := core.BuildMonthlySummary(year, month, totals, names)
	s.metrics.ObserveSummary(time.Since(start))

	log.FromContext(ctx).WithComponent(log.ComponentSummary).DebugContext(ctx, "Monthly summary built",
		log.NewFields().
			WithPeriod(year, month).
			With(log.FieldCount, len(txs)).
			WithOperation(log.OpSummary).
			ToSlice()...)

	return summary, nil
}
