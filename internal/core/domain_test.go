package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Date
		wantErr bool
	}{
		{name: "calendar date", in: "2024-03-05", want: NewDate(2024, 3, 5)},
		{name: "utc timestamp", in: "2024-03-05T00:00:00Z", want: NewDate(2024, 3, 5)},
		{name: "timestamp with millis", in: "2024-03-05T18:30:00.000Z", want: NewDate(2024, 3, 5)},
		{name: "offset crosses midnight", in: "2024-03-05T23:30:00-02:00", want: NewDate(2024, 3, 6)},
		{name: "leap day", in: "2024-02-29", want: NewDate(2024, 2, 29)},
		{name: "not a date", in: "yesterday", wantErr: true},
		{name: "impossible day", in: "2023-02-29", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.Time), "got %s", got)
		})
	}
}

func TestDateJSON(t *testing.T) {
	data, err := json.Marshal(NewDate(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01"`, string(data))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-01T10:00:00Z"`), &d))
	assert.Equal(t, "2024-03-01", d.String())

	assert.Error(t, json.Unmarshal([]byte(`20240301`), &d))
}

func TestDateAddMonths(t *testing.T) {
	assert.Equal(t, "2024-04-01", NewDate(2024, 3, 31).AddMonths(1).String())
	assert.Equal(t, "2025-01-01", NewDate(2024, 12, 15).AddMonths(1).String())
	assert.Equal(t, "2024-02-01", NewDate(2024, 3, 15).AddMonths(-1).String())
}

func TestEnumJSON(t *testing.T) {
	data, err := json.Marshal(NewAccount{Name: "Wallet", AccountType: AccountSavings})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"accountType":3`)

	tests := []struct {
		body string
		want TransactionType
	}{
		{body: `{"transactionType":2}`, want: TransactionTransfer},
		{body: `{"transactionType":"1"}`, want: TransactionIncome},
		{body: `{"transactionType":"expense"}`, want: TransactionExpense},
		{body: `{"transactionType":"Transfer"}`, want: TransactionTransfer},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var in NewTransaction
			require.NoError(t, json.Unmarshal([]byte(tt.body), &in))
			assert.Equal(t, tt.want, in.TransactionType)
		})
	}

	var in NewTransaction
	assert.Error(t, json.Unmarshal([]byte(`{"transactionType":"Refund"}`), &in))

	require.NoError(t, json.Unmarshal([]byte(`{"transactionType":7}`), &in))
	assert.False(t, in.TransactionType.Valid())
	assert.Equal(t, "Unknown(7)", in.TransactionType.String())
}

func TestNewAccountValidate(t *testing.T) {
	tests := []struct {
		name  string
		in    NewAccount
		field string
	}{
		{name: "valid", in: NewAccount{Name: "Checking", AccountType: AccountBank}},
		{name: "empty name", in: NewAccount{Name: "  ", AccountType: AccountBank}, field: "name"},
		{name: "long name", in: NewAccount{Name: strings.Repeat("a", 101), AccountType: AccountBank}, field: "name"},
		{name: "bad type", in: NewAccount{Name: "Checking", AccountType: AccountType(9)}, field: "accountType"},
		{name: "negative type", in: NewAccount{Name: "Checking", AccountType: AccountType(-1)}, field: "accountType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Normalize().Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			ve, ok := AsValidation(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestNewCategoryValidate(t *testing.T) {
	valid := NewCategory{Name: " Food ", CategoryType: CategoryExpense, Color: ptr("  ")}
	n := valid.Normalize()
	require.NoError(t, n.Validate())
	assert.Equal(t, "Food", n.Name)
	assert.Nil(t, n.Color)

	long := NewCategory{Name: "Food", CategoryType: CategoryIncome, Color: ptr(strings.Repeat("f", 21))}
	err := long.Normalize().Validate()
	require.ErrorIs(t, err, ErrColorTooLong)
	assert.True(t, IsValidation(err))

	bad := NewCategory{Name: "Food", CategoryType: CategoryType(2)}
	require.ErrorIs(t, bad.Validate(), ErrInvalidType)
}

func TestNewTransactionValidate(t *testing.T) {
	account := uuid.New()
	base := NewTransaction{
		AccountID:       account,
		Amount:          Money{Cents: -500},
		TransactionType: TransactionExpense,
		Date:            NewDate(2024, 3, 5),
		CategoryID:      ptr(uuid.Nil),
		Description:     ptr(" coffee "),
	}

	n := base.Normalize()
	require.NoError(t, n.Validate())
	assert.Nil(t, n.CategoryID)
	assert.Equal(t, "coffee", *n.Description)

	noAccount := base
	noAccount.AccountID = uuid.Nil
	require.ErrorIs(t, noAccount.Validate(), ErrMissingAccount)

	noDate := base
	noDate.Date = Date{}
	ve, ok := AsValidation(noDate.Validate())
	require.True(t, ok)
	assert.Equal(t, "date", ve.Field)

	farDate := base
	farDate.Date = NewDate(MaxYear+1, 1, 5)
	ve, ok = AsValidation(farDate.Validate())
	require.True(t, ok)
	assert.Equal(t, "date", ve.Field)

	lastDay := base
	lastDay.Date = NewDate(MaxYear, 12, 31)
	require.NoError(t, lastDay.Validate())

	badType := base
	badType.TransactionType = TransactionType(3)
	require.ErrorIs(t, badType.Validate(), ErrInvalidType)
}

func TestMissingReferenceMessages(t *testing.T) {
	id := uuid.MustParse("0b9f0cf5-0f0e-4f9b-9b36-7c1ad1f6a0a1")

	err := MissingAccount(id)
	assert.Equal(t, "Account 0b9f0cf5-0f0e-4f9b-9b36-7c1ad1f6a0a1 does not exist.", err.Error())
	assert.ErrorIs(t, err, ErrUnresolvedAccount)
	assert.Equal(t, "accountId", err.Field)

	cerr := MissingCategory(id)
	assert.Equal(t, "Category 0b9f0cf5-0f0e-4f9b-9b36-7c1ad1f6a0a1 does not exist.", cerr.Error())
	assert.ErrorIs(t, cerr, ErrUnresolvedCategory)
}
