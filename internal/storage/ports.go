package storage

import (
	"context"
	"time"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

// TransactionFilter narrows ListTransactions. Nil fields do not filter.
// From and To are both inclusive.
type TransactionFilter struct {
	AccountID  *uuid.UUID
	CategoryID *uuid.UUID
	From       *core.Date
	To         *core.Date
}

// Matches reports whether t passes every set field of f.
func (f TransactionFilter) Matches(t core.Transaction) bool {
	if f.AccountID != nil && t.AccountID != *f.AccountID {
		return false
	}
	if f.CategoryID != nil && (t.CategoryID == nil || *t.CategoryID != *f.CategoryID) {
		return false
	}
	if f.From != nil && t.Date.Before(f.From.Time) {
		return false
	}
	if f.To != nil && t.Date.After(f.To.Time) {
		return false
	}
	return true
}

// Ports implemented by every ledger backend.
type (
	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
		GetAccount(ctx context.Context, id uuid.UUID) (core.Account, error)
		AccountExists(ctx context.Context, id uuid.UUID) (bool, error)
		CreateAccount(ctx context.Context, in core.NewAccount) (core.Account, error)
		// DeleteAccount removes the account and every transaction booked on it.
		DeleteAccount(ctx context.Context, id uuid.UUID) error
	}

	CategoryStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error)
		CategoryExists(ctx context.Context, id uuid.UUID) (bool, error)
		// CategoryNames returns names for the ids that exist. Unknown ids are absent.
		CategoryNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
		CreateCategory(ctx context.Context, in core.NewCategory) (core.Category, error)
		// DeleteCategory removes the category and clears it from its transactions.
		DeleteCategory(ctx context.Context, id uuid.UUID) error
	}

	TransactionStore interface {
		// ListTransactions returns matches ordered by date, then creation
		// time, then insertion order, all descending.
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
		// ListTransactionsInWindow returns transactions dated in [w.Start, w.End).
		ListTransactionsInWindow(ctx context.Context, w core.Window) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error)
		// CreateTransaction verifies both references and writes atomically.
		CreateTransaction(ctx context.Context, in core.NewTransaction) (core.Transaction, error)
	}

	Store interface {
		AccountStore
		CategoryStore
		TransactionStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// Clock supplies creation timestamps.
type Clock func() time.Time

// Options are shared by the store implementations.
type Options struct {
	Clock Clock
}

type Option func(*Options)

// WithClock overrides time.Now for creation timestamps.
func WithClock(c Clock) Option {
	return func(o *Options) {
		if c != nil {
			o.Clock = c
		}
	}
}

func NewOptions(opts ...Option) Options {
	o := Options{Clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Now returns the clock reading in UTC.
func (o Options) Now() time.Time {
	return o.Clock().UTC()
}
