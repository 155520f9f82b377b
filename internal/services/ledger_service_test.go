package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/metrics"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventKind, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func newLedger(t *testing.T, pub EventPublisher) (*LedgerService, storage.Store) {
	t.Helper()
	store := memory.New()
	return NewLedgerService(store, pub, metrics.New()), store
}

func TestLedgerServiceCreatePublishesEvents(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, _ := newLedger(t, pub)

	account, err := svc.CreateAccount(ctx, core.NewAccount{Name: "  Checking ", AccountType: core.AccountBank})
	require.NoError(t, err)
	assert.Equal(t, "Checking", account.Name)

	category, err := svc.CreateCategory(ctx, core.NewCategory{Name: "Food", CategoryType: core.CategoryExpense})
	require.NoError(t, err)

	tx, err := svc.CreateTransaction(ctx, core.NewTransaction{
		AccountID:       account.ID,
		CategoryID:      &category.ID,
		Amount:          core.Money{Cents: 5000},
		TransactionType: core.TransactionExpense,
		Date:            core.NewDate(2024, 3, 5),
	})
	require.NoError(t, err)

	assert.Equal(t, []amqp.EventKind{amqp.AccountCreated, amqp.CategoryCreated, amqp.TransactionCreated}, pub.kinds())
	assert.Equal(t, tx.ID, pub.events[2].ID)
}

func TestLedgerServicePublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, store := newLedger(t, pub)

	account, err := svc.CreateAccount(ctx, core.NewAccount{Name: "Checking", AccountType: core.AccountBank})
	require.NoError(t, err)

	got, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.Len(t, pub.kinds(), 1)
}

func TestLedgerServiceWithoutPublisher(t *testing.T) {
	svc, _ := newLedger(t, nil)
	_, err := svc.CreateCategory(context.Background(), core.NewCategory{Name: "Rent", CategoryType: core.CategoryExpense})
	require.NoError(t, err)
}

func TestLedgerServiceRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, store := newLedger(t, pub)

	_, err := svc.CreateAccount(ctx, core.NewAccount{Name: "", AccountType: core.AccountBank})
	assert.True(t, core.IsValidation(err))

	_, err = svc.CreateCategory(ctx, core.NewCategory{Name: "Food", CategoryType: core.CategoryType(5)})
	assert.True(t, core.IsValidation(err))

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Empty(t, pub.kinds())
}

func TestLedgerServiceRejectsUnresolvedReferences(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, store := newLedger(t, pub)

	account, err := svc.CreateAccount(ctx, core.NewAccount{Name: "Checking", AccountType: core.AccountBank})
	require.NoError(t, err)

	missing := uuid.New()
	tests := []struct {
		name    string
		in      core.NewTransaction
		field   string
		message string
	}{
		{
			name:    "unknown account",
			in:      core.NewTransaction{AccountID: missing, TransactionType: core.TransactionExpense, Date: core.NewDate(2024, 3, 1)},
			field:   "accountId",
			message: "Account " + missing.String() + " does not exist.",
		},
		{
			name:    "unknown category",
			in:      core.NewTransaction{AccountID: account.ID, CategoryID: &missing, TransactionType: core.TransactionExpense, Date: core.NewDate(2024, 3, 1)},
			field:   "categoryId",
			message: "Category " + missing.String() + " does not exist.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTransaction(ctx, tt.in)
			ve, ok := core.AsValidation(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.message, ve.Message)
		})
	}

	txs, err := store.ListTransactions(ctx, storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs, "nothing is persisted for a rejected transaction")
	assert.Equal(t, []amqp.EventKind{amqp.AccountCreated}, pub.kinds())
}

func TestLedgerServiceNilCategoryIsUncategorized(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t, nil)
	account, err := svc.CreateAccount(ctx, core.NewAccount{Name: "Wallet", AccountType: core.AccountCash})
	require.NoError(t, err)

	tx, err := svc.CreateTransaction(ctx, core.NewTransaction{
		AccountID:       account.ID,
		CategoryID:      ptr(uuid.Nil),
		Amount:          core.Money{Cents: 1000},
		TransactionType: core.TransactionExpense,
		Date:            core.NewDate(2024, 3, 20),
		Description:     ptr("   "),
	})
	require.NoError(t, err)
	assert.Nil(t, tx.CategoryID)
	assert.Nil(t, tx.Description)

	got, err := svc.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)

	_, err = svc.GetTransaction(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)
}
