package core

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// UncategorizedLabel names the expense group whose category is absent or no
// longer resolvable.
const UncategorizedLabel = "Uncategorized"

// Window is the half-open date interval [Start, End).
type Window struct {
	Start Date
	End   Date
}

// MaxYear is the last year a four-digit calendar date can hold.
const MaxYear = 9999

// MonthWindow returns the window covering year+month.
func MonthWindow(year, month int) (Window, error) {
	if year <= 0 || year > MaxYear {
		return Window{}, NewValidationError("year", "Invalid year or month.")
	}
	if month < 1 || month > 12 {
		return Window{}, NewValidationError("month", "Invalid year or month.")
	}
	start := NewDate(year, month, 1)
	return Window{Start: start, End: start.AddMonths(1)}, nil
}

func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start.Time) && d.Before(w.End.Time)
}

// CategoryTotal is the expense sum for one category group. A nil CategoryID
// is the group of transactions without a category.
type CategoryTotal struct {
	CategoryID *uuid.UUID
	Total      Money
}

// Totals is the result of reducing a window of transactions.
type Totals struct {
	Income     Money
	Expenses   Money
	Net        Money
	ByCategory []CategoryTotal
}

// CategoryIDs returns the non-nil category ids present in ByCategory.
func (t Totals) CategoryIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t.ByCategory))
	for _, c := range t.ByCategory {
		if c.CategoryID != nil {
			ids = append(ids, *c.CategoryID)
		}
	}
	return ids
}

// Summarize reduces txs to income, expense and per-category expense totals.
// Transactions outside w and Transfers contribute nothing. ByCategory keeps
// the order in which groups first appear in txs. A total that leaves the
// range of Money fails with ErrAmountOverflow.
func Summarize(w Window, txs []Transaction) (Totals, error) {
	var totals Totals
	for _, tx := range txs {
		if !w.Contains(tx.Date) {
			continue
		}
		var err error
		switch tx.TransactionType {
		case TransactionIncome:
			err = accumulate(&totals.Income, tx.Amount)
		case TransactionExpense:
			err = accumulate(&totals.Expenses, tx.Amount)
		}
		if err != nil {
			return Totals{}, fmt.Errorf("sum %s totals: %w", tx.TransactionType, err)
		}
	}

	net, err := totals.Income.Sub(totals.Expenses)
	if err != nil {
		return Totals{}, fmt.Errorf("net total: %w", err)
	}
	totals.Net = net

	index := make(map[uuid.UUID]int)
	uncategorized := -1
	for _, tx := range txs {
		if tx.TransactionType != TransactionExpense || !w.Contains(tx.Date) {
			continue
		}
		var i int
		if tx.CategoryID == nil {
			if uncategorized < 0 {
				uncategorized = len(totals.ByCategory)
				totals.ByCategory = append(totals.ByCategory, CategoryTotal{})
			}
			i = uncategorized
		} else {
			var ok bool
			if i, ok = index[*tx.CategoryID]; !ok {
				id := *tx.CategoryID
				i = len(totals.ByCategory)
				index[id] = i
				totals.ByCategory = append(totals.ByCategory, CategoryTotal{CategoryID: &id})
			}
		}
		if err := accumulate(&totals.ByCategory[i].Total, tx.Amount); err != nil {
			return Totals{}, fmt.Errorf("sum category totals: %w", err)
		}
	}
	return totals, nil
}

func accumulate(dst *Money, amount Money) error {
	sum, err := dst.Add(amount)
	if err != nil {
		return err
	}
	*dst = sum
	return nil
}

type CategorySummary struct {
	CategoryID    *uuid.UUID `json:"categoryId"`
	CategoryName  string     `json:"categoryName"`
	TotalExpenses Money      `json:"totalExpenses"`

	resolved bool
}

type MonthlySummary struct {
	Year          int               `json:"year"`
	Month         int               `json:"month"`
	TotalIncome   Money             `json:"totalIncome"`
	TotalExpenses Money             `json:"totalExpenses"`
	Net           Money             `json:"net"`
	Categories    []CategorySummary `json:"categories"`
}

// BuildMonthlySummary labels each category group using names and orders the
// groups by total descending, then name, with unresolved groups after named
// ones of equal total, then by id.
func BuildMonthlySummary(year, month int, totals Totals, names map[uuid.UUID]string) MonthlySummary {
	categories := make([]CategorySummary, 0, len(totals.ByCategory))
	for _, c := range totals.ByCategory {
		s := CategorySummary{CategoryID: c.CategoryID, CategoryName: UncategorizedLabel, TotalExpenses: c.Total}
		if c.CategoryID != nil {
			if name, ok := names[*c.CategoryID]; ok {
				s.CategoryName = name
				s.resolved = true
			}
		}
		categories = append(categories, s)
	}

	sort.SliceStable(categories, func(i, j int) bool {
		a, b := categories[i], categories[j]
		if a.TotalExpenses.Cents != b.TotalExpenses.Cents {
			return a.TotalExpenses.Cents > b.TotalExpenses.Cents
		}
		if a.resolved != b.resolved {
			return a.resolved
		}
		if a.CategoryName != b.CategoryName {
			return a.CategoryName < b.CategoryName
		}
		return idKey(a.CategoryID) < idKey(b.CategoryID)
	})

	return MonthlySummary{
		Year:          year,
		Month:         month,
		TotalIncome:   totals.Income,
		TotalExpenses: totals.Expenses,
		Net:           totals.Net,
		Categories:    categories,
	}
}

func idKey(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
