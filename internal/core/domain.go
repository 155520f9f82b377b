package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	DateLayout = "2006-01-02"

	MaxNameLength  = 100
	MaxColorLength = 20
)

type (
	// Date is a calendar day at UTC midnight.
	Date struct {
		time.Time
	}

	Account struct {
		ID             uuid.UUID   `json:"id"`
		Name           string      `json:"name"`
		AccountType    AccountType `json:"accountType"`
		InitialBalance Money       `json:"initialBalance"`
		IsArchived     bool        `json:"isArchived"`
		CreatedAt      time.Time   `json:"createdAt"`
	}

	Category struct {
		ID           uuid.UUID    `json:"id"`
		Name         string       `json:"name"`
		CategoryType CategoryType `json:"categoryType"`
		Color        *string      `json:"color"`
		IsArchived   bool         `json:"isArchived"`
		CreatedAt    time.Time    `json:"createdAt"`
	}

	Transaction struct {
		ID              uuid.UUID       `json:"id"`
		AccountID       uuid.UUID       `json:"accountId"`
		CategoryID      *uuid.UUID      `json:"categoryId"`
		Amount          Money           `json:"amount"`
		TransactionType TransactionType `json:"transactionType"`
		Date            Date            `json:"date"`
		Description     *string         `json:"description"`
		CreatedAt       time.Time       `json:"createdAt"`
	}

	NewAccount struct {
		Name           string      `json:"name"`
		AccountType    AccountType `json:"accountType"`
		InitialBalance Money       `json:"initialBalance"`
	}

	NewCategory struct {
		Name         string       `json:"name"`
		CategoryType CategoryType `json:"categoryType"`
		Color        *string      `json:"color"`
	}

	NewTransaction struct {
		AccountID       uuid.UUID       `json:"accountId"`
		CategoryID      *uuid.UUID      `json:"categoryId"`
		Amount          Money           `json:"amount"`
		TransactionType TransactionType `json:"transactionType"`
		Date            Date            `json:"date"`
		Description     *string         `json:"description"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidYear        = errors.New("invalid year")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyName          = errors.New("name is required")
	ErrNameTooLong        = errors.New("name too long (max 100 characters)")
	ErrColorTooLong       = errors.New("color too long (max 20 characters)")
	ErrInvalidType        = errors.New("invalid type")
	ErrMissingAccount     = errors.New("account is required")
	ErrUnresolvedAccount  = errors.New("account does not exist")
	ErrUnresolvedCategory = errors.New("category does not exist")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	if d.Year() < 1 || d.Year() > MaxYear {
		return fmt.Errorf("date year %d outside 1-%d", d.Year(), MaxYear)
	}
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddMonths moves the date by n calendar months from the first of its month.
func (d Date) AddMonths(n int) Date {
	first := NewDate(d.Year(), int(d.Month()), 1)
	return Date{Time: first.AddDate(0, n, 0)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidDate
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return invalid("name", ErrNameTooLong)
	}
	return nil
}

// Normalize trims surrounding whitespace from free-text fields.
func (a NewAccount) Normalize() NewAccount {
	a.Name = strings.TrimSpace(a.Name)
	return a
}

func (a NewAccount) Validate() error {
	if err := validateName(a.Name); err != nil {
		return err
	}
	if !a.AccountType.Valid() {
		return invalid("accountType", ErrInvalidType)
	}
	return nil
}

func (c NewCategory) Normalize() NewCategory {
	c.Name = strings.TrimSpace(c.Name)
	c.Color = trimOptional(c.Color)
	return c
}

func (c NewCategory) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if !c.CategoryType.Valid() {
		return invalid("categoryType", ErrInvalidType)
	}
	if c.Color != nil && utf8.RuneCountInString(*c.Color) > MaxColorLength {
		return invalid("color", ErrColorTooLong)
	}
	return nil
}

func (t NewTransaction) Normalize() NewTransaction {
	t.Description = trimOptional(t.Description)
	if t.CategoryID != nil && *t.CategoryID == uuid.Nil {
		t.CategoryID = nil
	}
	return t
}

// Validate checks the shape of the request. Reference existence is checked by
// the store, which owns the referenced collections.
func (t NewTransaction) Validate() error {
	if t.AccountID == uuid.Nil {
		return invalid("accountId", ErrMissingAccount)
	}
	if !t.TransactionType.Valid() {
		return invalid("transactionType", ErrInvalidType)
	}
	if err := t.Date.Validate(); err != nil {
		return invalid("date", ErrInvalidDate)
	}
	return nil
}

// MissingAccount is the error for a transaction whose account is unknown.
func MissingAccount(id uuid.UUID) *ValidationError {
	return &ValidationError{
		Field:   "accountId",
		Message: "Account " + id.String() + " does not exist.",
		Err:     ErrUnresolvedAccount,
	}
}

// MissingCategory is the error for a transaction whose category is unknown.
func MissingCategory(id uuid.UUID) *ValidationError {
	return &ValidationError{
		Field:   "categoryId",
		Message: "Category " + id.String() + " does not exist.",
		Err:     ErrUnresolvedCategory,
	}
}

// trimOptional trims s and collapses an empty result to nil.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
