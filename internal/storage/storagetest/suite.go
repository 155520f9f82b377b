// Package storagetest holds the behaviour every storage.Store must share.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory builds an empty store for one subtest.
type Factory func(t *testing.T, opts ...storage.Option) storage.Store

// SteppingClock returns a clock that advances by step on every reading.
func SteppingClock(start time.Time, step time.Duration) storage.Clock {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

// FrozenClock always returns at.
func FrozenClock(at time.Time) storage.Clock {
	return func() time.Time { return at }
}

func Run(t *testing.T, newStore Factory) {
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, newStore) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, newStore) })
	t.Run("CreateTransactionReferences", func(t *testing.T) { testTransactionReferences(t, newStore) })
	t.Run("TransactionOrdering", func(t *testing.T) { testTransactionOrdering(t, newStore) })
	t.Run("SameInstantOrdering", func(t *testing.T) { testSameInstantOrdering(t, newStore) })
	t.Run("TransactionFilters", func(t *testing.T) { testTransactionFilters(t, newStore) })
	t.Run("RangeFilterVersusWindow", func(t *testing.T) { testRangeVersusWindow(t, newStore) })
	t.Run("LastRepresentableMonth", func(t *testing.T) { testLastRepresentableMonth(t, newStore) })
	t.Run("DeleteAccountCascades", func(t *testing.T) { testDeleteAccount(t, newStore) })
	t.Run("DeleteCategoryDetaches", func(t *testing.T) { testDeleteCategory(t, newStore) })
	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(context.Background()))
	})
}

func ptr[T any](v T) *T { return &v }

func mustAccount(t *testing.T, s storage.Store, name string) core.Account {
	t.Helper()
	a, err := s.CreateAccount(context.Background(), core.NewAccount{Name: name, AccountType: core.AccountBank})
	require.NoError(t, err)
	return a
}

func mustCategory(t *testing.T, s storage.Store, name string) core.Category {
	t.Helper()
	c, err := s.CreateCategory(context.Background(), core.NewCategory{Name: name, CategoryType: core.CategoryExpense})
	require.NoError(t, err)
	return c
}

func mustTransaction(t *testing.T, s storage.Store, in core.NewTransaction) core.Transaction {
	t.Helper()
	tx, err := s.CreateTransaction(context.Background(), in)
	require.NoError(t, err)
	return tx
}

func expense(account uuid.UUID, category *uuid.UUID, cents int64, date core.Date) core.NewTransaction {
	return core.NewTransaction{
		AccountID:       account,
		CategoryID:      category,
		Amount:          core.Money{Cents: cents},
		TransactionType: core.TransactionExpense,
		Date:            date,
	}
}

func ids(txs []core.Transaction) []uuid.UUID {
	out := make([]uuid.UUID, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}

func testAccounts(t *testing.T, newStore Factory) {
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	s := newStore(t, storage.WithClock(FrozenClock(created)))

	list, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.NotNil(t, list)
	assert.Empty(t, list)

	wallet, err := s.CreateAccount(ctx, core.NewAccount{
		Name:           "Wallet",
		AccountType:    core.AccountCash,
		InitialBalance: core.Money{Cents: 12050},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, wallet.ID)
	assert.Equal(t, uuid.Version(4), wallet.ID.Version())
	assert.True(t, created.Equal(wallet.CreatedAt))
	assert.False(t, wallet.IsArchived)

	mustAccount(t, s, "Checking")

	got, err := s.GetAccount(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.Name, got.Name)
	assert.Equal(t, core.AccountCash, got.AccountType)
	assert.Equal(t, int64(12050), got.InitialBalance.Cents)
	assert.True(t, wallet.CreatedAt.Equal(got.CreatedAt))

	list, err = s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Checking", list[0].Name)
	assert.Equal(t, "Wallet", list[1].Name)

	_, err = s.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)

	ok, err := s.AccountExists(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.AccountExists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func testCategories(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)

	food, err := s.CreateCategory(ctx, core.NewCategory{Name: "Food", CategoryType: core.CategoryExpense, Color: ptr("#ff0000")})
	require.NoError(t, err)
	salary, err := s.CreateCategory(ctx, core.NewCategory{Name: "Salary", CategoryType: core.CategoryIncome})
	require.NoError(t, err)

	got, err := s.GetCategory(ctx, food.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Color)
	assert.Equal(t, "#ff0000", *got.Color)

	got, err = s.GetCategory(ctx, salary.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Color)
	assert.Equal(t, core.CategoryIncome, got.CategoryType)

	list, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Food", list[0].Name)

	_, err = s.GetCategory(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)

	unknown := uuid.New()
	names, err := s.CategoryNames(ctx, []uuid.UUID{food.ID, unknown, salary.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]string{food.ID: "Food", salary.ID: "Salary"}, names)

	names, err = s.CategoryNames(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func testTransactionReferences(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	account := mustAccount(t, s, "Checking")
	missing := uuid.New()

	_, err := s.CreateTransaction(ctx, expense(missing, nil, 100, core.NewDate(2024, 3, 1)))
	ve, ok := core.AsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, "Account "+missing.String()+" does not exist.", ve.Message)
	assert.ErrorIs(t, err, core.ErrUnresolvedAccount)

	_, err = s.CreateTransaction(ctx, expense(account.ID, &missing, 100, core.NewDate(2024, 3, 1)))
	ve, ok = core.AsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, "Category "+missing.String()+" does not exist.", ve.Message)

	all, err := s.ListTransactions(ctx, storage.TransactionFilter{})
	require.NoError(t, err)
	require.NotNil(t, all)
	assert.Empty(t, all, "rejected transactions must not be persisted")

	tx := mustTransaction(t, s, core.NewTransaction{
		AccountID:       account.ID,
		Amount:          core.Money{Cents: -4550},
		TransactionType: core.TransactionIncome,
		Date:            core.NewDate(2024, 2, 29),
		Description:     ptr("refund"),
	})
	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.AccountID)
	assert.Nil(t, got.CategoryID)
	assert.Equal(t, int64(-4550), got.Amount.Cents)
	assert.Equal(t, core.TransactionIncome, got.TransactionType)
	assert.Equal(t, "2024-02-29", got.Date.String())
	require.NotNil(t, got.Description)
	assert.Equal(t, "refund", *got.Description)

	_, err = s.GetTransaction(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testTransactionOrdering(t *testing.T, newStore Factory) {
	s := newStore(t, storage.WithClock(SteppingClock(time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), time.Second)))
	account := mustAccount(t, s, "Checking")

	t1 := mustTransaction(t, s, expense(account.ID, nil, 100, core.NewDate(2024, 3, 5)))
	t2 := mustTransaction(t, s, expense(account.ID, nil, 200, core.NewDate(2024, 3, 5)))
	t3 := mustTransaction(t, s, expense(account.ID, nil, 300, core.NewDate(2024, 3, 1)))

	got, err := s.ListTransactions(context.Background(), storage.TransactionFilter{AccountID: &account.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{t2.ID, t1.ID, t3.ID}, ids(got))
}

func testSameInstantOrdering(t *testing.T, newStore Factory) {
	s := newStore(t, storage.WithClock(FrozenClock(time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC))))
	account := mustAccount(t, s, "Checking")

	first := mustTransaction(t, s, expense(account.ID, nil, 100, core.NewDate(2024, 3, 5)))
	second := mustTransaction(t, s, expense(account.ID, nil, 200, core.NewDate(2024, 3, 5)))
	third := mustTransaction(t, s, expense(account.ID, nil, 300, core.NewDate(2024, 3, 5)))

	got, err := s.ListTransactions(context.Background(), storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{third.ID, second.ID, first.ID}, ids(got))
}

func testTransactionFilters(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, storage.WithClock(SteppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond)))
	checking := mustAccount(t, s, "Checking")
	savings := mustAccount(t, s, "Savings")
	food := mustCategory(t, s, "Food")

	a := mustTransaction(t, s, expense(checking.ID, &food.ID, 100, core.NewDate(2024, 3, 1)))
	b := mustTransaction(t, s, expense(checking.ID, nil, 200, core.NewDate(2024, 3, 15)))
	c := mustTransaction(t, s, expense(savings.ID, &food.ID, 300, core.NewDate(2024, 3, 31)))
	d := mustTransaction(t, s, expense(savings.ID, nil, 400, core.NewDate(2024, 4, 1)))

	tests := []struct {
		name   string
		filter storage.TransactionFilter
		want   []uuid.UUID
	}{
		{name: "no filter", filter: storage.TransactionFilter{}, want: []uuid.UUID{d.ID, c.ID, b.ID, a.ID}},
		{name: "account", filter: storage.TransactionFilter{AccountID: &checking.ID}, want: []uuid.UUID{b.ID, a.ID}},
		{name: "category", filter: storage.TransactionFilter{CategoryID: &food.ID}, want: []uuid.UUID{c.ID, a.ID}},
		{
			name:   "inclusive from",
			filter: storage.TransactionFilter{From: ptr(core.NewDate(2024, 3, 15))},
			want:   []uuid.UUID{d.ID, c.ID, b.ID},
		},
		{
			name:   "inclusive to",
			filter: storage.TransactionFilter{To: ptr(core.NewDate(2024, 3, 15))},
			want:   []uuid.UUID{b.ID, a.ID},
		},
		{
			name: "combined",
			filter: storage.TransactionFilter{
				AccountID:  &savings.ID,
				CategoryID: &food.ID,
				From:       ptr(core.NewDate(2024, 3, 31)),
				To:         ptr(core.NewDate(2024, 3, 31)),
			},
			want: []uuid.UUID{c.ID},
		},
		{name: "unknown account", filter: storage.TransactionFilter{AccountID: ptr(uuid.New())}, want: []uuid.UUID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, tt.filter)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

// The list filter is inclusive on both ends while the summary window is
// half-open. Both behaviours are kept; this pins the difference.
func testRangeVersusWindow(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	account := mustAccount(t, s, "Checking")

	first := mustTransaction(t, s, expense(account.ID, nil, 100, core.NewDate(2024, 3, 1)))
	next := mustTransaction(t, s, expense(account.ID, nil, 200, core.NewDate(2024, 4, 1)))
	mustTransaction(t, s, expense(account.ID, nil, 300, core.NewDate(2024, 2, 29)))

	w, err := core.MonthWindow(2024, 3)
	require.NoError(t, err)

	inWindow, err := s.ListTransactionsInWindow(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID}, ids(inWindow))

	inRange, err := s.ListTransactions(ctx, storage.TransactionFilter{From: &w.Start, To: &w.End})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{next.ID, first.ID}, ids(inRange))
}

// December of the last four-digit year ends on a five-digit date; the bound
// must still include every day of that month.
func testLastRepresentableMonth(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	account := mustAccount(t, s, "Checking")

	december := mustTransaction(t, s, expense(account.ID, nil, 100, core.NewDate(core.MaxYear, 12, 5)))
	lastDay := mustTransaction(t, s, expense(account.ID, nil, 200, core.NewDate(core.MaxYear, 12, 31)))
	mustTransaction(t, s, expense(account.ID, nil, 300, core.NewDate(core.MaxYear, 11, 30)))

	w, err := core.MonthWindow(core.MaxYear, 12)
	require.NoError(t, err)

	inWindow, err := s.ListTransactionsInWindow(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{lastDay.ID, december.ID}, ids(inWindow))

	inRange, err := s.ListTransactions(ctx, storage.TransactionFilter{From: &w.Start, To: &w.End})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{lastDay.ID, december.ID}, ids(inRange))

	beyond, err := s.ListTransactions(ctx, storage.TransactionFilter{From: &w.End})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func testDeleteAccount(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	doomed := mustAccount(t, s, "Old")
	kept := mustAccount(t, s, "Current")

	gone := mustTransaction(t, s, expense(doomed.ID, nil, 100, core.NewDate(2024, 3, 1)))
	stays := mustTransaction(t, s, expense(kept.ID, nil, 100, core.NewDate(2024, 3, 1)))

	require.NoError(t, s.DeleteAccount(ctx, doomed.ID))
	assert.ErrorIs(t, s.DeleteAccount(ctx, doomed.ID), core.ErrNotFound)

	_, err := s.GetAccount(ctx, doomed.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetTransaction(ctx, gone.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetTransaction(ctx, stays.ID)
	assert.NoError(t, err)
}

func testDeleteCategory(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	account := mustAccount(t, s, "Checking")
	food := mustCategory(t, s, "Food")

	tx := mustTransaction(t, s, expense(account.ID, &food.ID, 100, core.NewDate(2024, 3, 1)))

	require.NoError(t, s.DeleteCategory(ctx, food.ID))
	assert.ErrorIs(t, s.DeleteCategory(ctx, food.ID), core.ErrNotFound)

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)

	names, err := s.CategoryNames(ctx, []uuid.UUID{food.ID})
	require.NoError(t, err)
	assert.Empty(t, names)
}
