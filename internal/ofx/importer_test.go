package ofx

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entries() []Entry {
	return []Entry{
		{FITID: "1", Date: core.NewDate(2024, 3, 5), Amount: core.Money{Cents: 2550}, Type: core.TransactionExpense, Description: "BAKERY"},
		{FITID: "2", Date: core.NewDate(2024, 3, 1), Amount: core.Money{Cents: 300000}, Type: core.TransactionIncome},
		{FITID: "1", Date: core.NewDate(2024, 3, 5), Amount: core.Money{Cents: 2550}, Type: core.TransactionExpense},
	}
}

func TestImporter_Import(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	account, err := store.CreateAccount(ctx, core.NewAccount{Name: "Checking", AccountType: core.AccountBank})
	require.NoError(t, err)

	im := NewImporter(services.NewLedgerService(store, nil, nil), quietLogger(), metrics.New())
	calls := 0
	res, err := im.Import(ctx, entries(), ImportOptions{AccountID: account.ID}, func() { calls++ })
	require.NoError(t, err)

	assert.Equal(t, Result{Imported: 2, Duplicates: 1}, res)
	assert.Equal(t, 3, calls)

	txs, err := store.ListTransactions(ctx, storage.TransactionFilter{AccountID: &account.ID})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "BAKERY", *txs[0].Description)

	res, err = im.Import(ctx, entries()[:1], ImportOptions{AccountID: account.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Duplicates: 1}, res, "FITIDs are remembered for the whole run")
}

func TestImporter_UnknownAccountIsRejected(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	im := NewImporter(services.NewLedgerService(store, nil, nil), quietLogger(), nil)

	res, err := im.Import(ctx, entries(), ImportOptions{AccountID: uuid.New()}, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Rejected: 2, Duplicates: 1}, res)

	txs, err := store.ListTransactions(ctx, storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

type recordingCreator struct {
	calls int
	err   error
}

func (r *recordingCreator) CreateTransaction(context.Context, core.NewTransaction) (core.Transaction, error) {
	r.calls++
	return core.Transaction{}, r.err
}

func TestImporter_DryRun(t *testing.T) {
	creator := &recordingCreator{}
	im := NewImporter(creator, quietLogger(), nil)

	res, err := im.Import(context.Background(), entries(), ImportOptions{AccountID: uuid.New(), DryRun: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Imported: 2, Duplicates: 1}, res)
	assert.Zero(t, creator.calls)

	res, err = NewImporter(creator, quietLogger(), nil).Import(context.Background(), entries(), ImportOptions{DryRun: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rejected, "a missing account fails validation")
}

func TestImporter_StoreFailureStops(t *testing.T) {
	boom := errors.New("disk full")
	creator := &recordingCreator{err: boom}

	res, err := NewImporter(creator, quietLogger(), nil).Import(context.Background(), entries(), ImportOptions{AccountID: uuid.New()}, nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, creator.calls)
	assert.Zero(t, res.Imported)
}

func TestEntry_NewTransaction(t *testing.T) {
	account, category := uuid.New(), uuid.New()
	in := Entry{Amount: core.Money{Cents: 100}, Type: core.TransactionIncome, Date: core.NewDate(2024, 1, 2)}.
		NewTransaction(account, &category)

	assert.Equal(t, account, in.AccountID)
	assert.Equal(t, &category, in.CategoryID)
	assert.Nil(t, in.Description)
}
