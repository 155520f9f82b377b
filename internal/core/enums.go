package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	AccountCash AccountType = iota
	AccountBank
	AccountCreditCard
	AccountSavings
	AccountInvestment
)

const (
	CategoryExpense CategoryType = iota
	CategoryIncome
)

const (
	TransactionExpense TransactionType = iota
	TransactionIncome
	TransactionTransfer
)

type (
	// AccountType is encoded on the wire as its integer value.
	AccountType int

	// CategoryType is encoded on the wire as its integer value.
	CategoryType int

	// TransactionType is encoded on the wire as its integer value.
	TransactionType int
)

var (
	accountTypeNames     = []string{"Cash", "Bank", "CreditCard", "Savings", "Investment"}
	categoryTypeNames    = []string{"Expense", "Income"}
	transactionTypeNames = []string{"Expense", "Income", "Transfer"}
)

func (t AccountType) Valid() bool { return t >= 0 && int(t) < len(accountTypeNames) }

func (t AccountType) String() string { return enumName(int(t), accountTypeNames) }

func (t AccountType) MarshalJSON() ([]byte, error) { return []byte(strconv.Itoa(int(t))), nil }

func (t *AccountType) UnmarshalJSON(data []byte) error {
	v, err := parseEnum(data, accountTypeNames)
	if err != nil {
		return fmt.Errorf("account type: %w", err)
	}
	*t = AccountType(v)
	return nil
}

func (t CategoryType) Valid() bool { return t >= 0 && int(t) < len(categoryTypeNames) }

func (t CategoryType) String() string { return enumName(int(t), categoryTypeNames) }

func (t CategoryType) MarshalJSON() ([]byte, error) { return []byte(strconv.Itoa(int(t))), nil }

func (t *CategoryType) UnmarshalJSON(data []byte) error {
	v, err := parseEnum(data, categoryTypeNames)
	if err != nil {
		return fmt.Errorf("category type: %w", err)
	}
	*t = CategoryType(v)
	return nil
}

func (t TransactionType) Valid() bool { return t >= 0 && int(t) < len(transactionTypeNames) }

func (t TransactionType) String() string { return enumName(int(t), transactionTypeNames) }

func (t TransactionType) MarshalJSON() ([]byte, error) { return []byte(strconv.Itoa(int(t))), nil }

func (t *TransactionType) UnmarshalJSON(data []byte) error {
	v, err := parseEnum(data, transactionTypeNames)
	if err != nil {
		return fmt.Errorf("transaction type: %w", err)
	}
	*t = TransactionType(v)
	return nil
}

// ParseTransactionType accepts either the integer value or the name.
func ParseTransactionType(s string) (TransactionType, error) {
	v, err := lookupEnum(strings.TrimSpace(s), transactionTypeNames)
	return TransactionType(v), err
}

func enumName(v int, names []string) string {
	if v < 0 || v >= len(names) {
		return "Unknown(" + strconv.Itoa(v) + ")"
	}
	return names[v]
}

// parseEnum decodes a JSON integer or a JSON string holding either the
// integer or the case-insensitive name. Range checks are left to Valid so a
// request with an undefined value fails validation rather than decoding.
func parseEnum(data []byte, names []string) (int, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		return lookupEnum(strings.TrimSpace(s), names)
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func lookupEnum(s string, names []string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	for i, name := range names {
		if strings.EqualFold(name, s) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown value %q", s)
}
