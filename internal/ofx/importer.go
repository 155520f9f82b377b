package ofx

import (
	"context"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"

	"github.com/google/uuid"
)

// TransactionCreator is the ledger operation imports go through.
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, in core.NewTransaction) (core.Transaction, error)
}

// ImportOptions select where entries are booked.
type ImportOptions struct {
	AccountID  uuid.UUID
	CategoryID *uuid.UUID
	DryRun     bool
}

// Result counts what happened to each entry.
type Result struct {
	Imported   int
	Duplicates int
	Rejected   int
}

// Importer books parsed entries through the ledger service. It remembers
// FITIDs across calls, so one Importer skips repeats within a single run.
type Importer struct {
	ledger  TransactionCreator
	logger  *log.Logger
	metrics *metrics.Collector
	seen    map[string]struct{}
}

func NewImporter(ledger TransactionCreator, logger *log.Logger, m *metrics.Collector) *Importer {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Importer{
		ledger:  ledger,
		logger:  logger.WithComponent(log.ComponentImport),
		metrics: m,
		seen:    make(map[string]struct{}),
	}
}

// Import books entries in order. Entries the ledger rejects as invalid are
// counted and skipped; any other error stops the import. progress, when
// non-nil, is called once per entry.
func (im *Importer) Import(ctx context.Context, entries []Entry, opts ImportOptions, progress func()) (Result, error) {
	var res Result
	for _, e := range entries {
		if progress != nil {
			progress()
		}

		if e.FITID != "" {
			if _, dup := im.seen[e.FITID]; dup {
				res.Duplicates++
				im.metrics.RowImported("duplicate")
				continue
			}
			im.seen[e.FITID] = struct{}{}
		}

		in := e.NewTransaction(opts.AccountID, opts.CategoryID)
		if opts.DryRun {
			if err := in.Normalize().Validate(); err != nil {
				res.Rejected++
				im.logger.WarnContext(ctx, "Entry would be rejected", "fitid", e.FITID, "error", err)
				continue
			}
			res.Imported++
			continue
		}

		tx, err := im.ledger.CreateTransaction(ctx, in)
		if core.IsValidation(err) {
			res.Rejected++
			im.metrics.RowImported("rejected")
			im.logger.WarnContext(ctx, "Entry rejected", "fitid", e.FITID, "error", err)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("import entry %s: %w", e.FITID, err)
		}

		res.Imported++
		im.metrics.RowImported("imported")
		im.logger.DebugContext(ctx, "Imported entry", "fitid", e.FITID, log.FieldEntityID, tx.ID)
	}
	return res, nil
}

// NewTransaction builds the create request for e.
func (e Entry) NewTransaction(account uuid.UUID, category *uuid.UUID) core.NewTransaction {
	in := core.NewTransaction{
		AccountID:       account,
		CategoryID:      category,
		Amount:          e.Amount,
		TransactionType: e.Type,
		Date:            e.Date,
	}
	if e.Description != "" {
		desc := e.Description
		in.Description = &desc
	}
	return in
}
