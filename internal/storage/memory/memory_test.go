package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, opts ...storage.Option) storage.Store {
		return New(opts...)
	})
}

func TestNewFromFilesSeedsCategories(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFromFiles(dir)
	require.NoError(t, err)
	list, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "missing seed file yields an empty store")

	content := "# seed\nRent\n\nSalary, income\nGroceries\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(content), 0o644))

	s, err = NewFromFiles(dir)
	require.NoError(t, err)
	list, err = s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Groceries", list[0].Name)
	assert.Equal(t, "Rent", list[1].Name)
	assert.Equal(t, "Salary", list[2].Name)
	assert.Equal(t, core.CategoryIncome, list[2].CategoryType)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte("Bad,Refund\n"), 0o644))
	_, err = NewFromFiles(dir)
	assert.Error(t, err)
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	account, err := s.CreateAccount(ctx, core.NewAccount{Name: "Checking", AccountType: core.AccountBank})
	require.NoError(t, err)

	desc := "original"
	tx, err := s.CreateTransaction(ctx, core.NewTransaction{
		AccountID:       account.ID,
		Amount:          core.Money{Cents: 100},
		TransactionType: core.TransactionExpense,
		Date:            core.NewDate(2024, 3, 1),
		Description:     &desc,
	})
	require.NoError(t, err)

	desc = "changed by caller"
	*tx.Description = "changed on result"

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", *got.Description)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New()
	_, err := s.ListAccounts(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Ping(ctx), context.Canceled)
}
