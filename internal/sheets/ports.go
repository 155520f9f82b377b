package sheets

import (
	"context"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

// Header is the first row of an export sheet.
var Header = []any{"Date", "Account", "Category", "Type", "Amount", "Description", "ID"}

// Row is one exported transaction with its references resolved to names.
type Row struct {
	Date          core.Date
	Account       string
	Category      string
	Type          core.TransactionType
	Amount        core.Money
	Description   string
	TransactionID uuid.UUID
}

// NewRow resolves a transaction against its account and category name.
// An empty categoryName is rendered as the uncategorized label.
func NewRow(tx core.Transaction, account core.Account, categoryName string) Row {
	if categoryName == "" {
		categoryName = core.UncategorizedLabel
	}
	r := Row{
		Date:          tx.Date,
		Account:       account.Name,
		Category:      categoryName,
		Type:          tx.TransactionType,
		Amount:        tx.Amount,
		TransactionID: tx.ID,
	}
	if tx.Description != nil {
		r.Description = *tx.Description
	}
	return r
}

// Values renders the row in Header order. Amounts are fixed two-decimal
// strings so the sheet never sees float rounding.
func (r Row) Values() []any {
	return []any{
		r.Date.String(),
		r.Account,
		r.Category,
		r.Type.String(),
		r.Amount.String(),
		r.Description,
		r.TransactionID.String(),
	}
}

// Ports for outbound adapters.
type (
	RowAppender interface {
		// AppendRow adds r after the last row and returns a reference to it.
		AppendRow(ctx context.Context, r Row) (rowRef string, err error)
	}

	HeaderEnsurer interface {
		// EnsureHeader writes Header to the first row when the sheet is empty.
		EnsureHeader(ctx context.Context) error
	}

	Exporter interface {
		RowAppender
		HeaderEnsurer
	}
)
