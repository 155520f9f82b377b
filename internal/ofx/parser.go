// Package ofx reads OFX/QFX bank exports into ledger transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"

	"github.com/aclindsa/ofxgo"
)

// Entry is one statement line ready to become a ledger transaction.
// Amount is always non-negative; the direction lives in Type.
type Entry struct {
	FITID       string
	Account     string
	Date        core.Date
	Amount      core.Money
	Type        core.TransactionType
	Description string
}

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger *log.Logger
}

func NewParser(logger *log.Logger) *Parser {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Parser{logger: logger.WithComponent(log.ComponentImport)}
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes common formatting issues in bank exports.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	// SGML files sometimes lose the closing bracket of a bare opening tag.
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse reads every bank and credit card statement in r.
func (p *Parser) Parse(ctx context.Context, r io.Reader) ([]Entry, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("parse OFX file: %w", err)
	}

	var entries []Entry
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		entries = appendEntries(entries, stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmts++
		entries = appendEntries(entries, stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))
	}

	p.logger.InfoContext(ctx, "Parsed OFX file",
		"entries", len(entries),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return entries, nil
}

func appendEntries(dst []Entry, txs []ofxgo.Transaction, account string) []Entry {
	for _, tx := range txs {
		dst = append(dst, convert(tx, account))
	}
	return dst
}

func convert(tx ofxgo.Transaction, account string) Entry {
	// TRNAMT is signed: negative for money leaving the account.
	amount, err := core.ParseMoney(tx.TrnAmt.FloatString(4))
	if err != nil {
		amount = core.Money{}
	}

	return Entry{
		FITID:       strings.TrimSpace(string(tx.FiTID)),
		Account:     account,
		Date:        core.DateOf(tx.DtPosted.Time),
		Amount:      amount.Abs(),
		Type:        classify(tx.TrnType, amount),
		Description: description(tx),
	}
}

// classify maps OFX transaction types onto the ledger's three kinds.
// Explicit DEBIT, CREDIT and XFER win; anything else follows the sign.
func classify(t ofxgo.TrnType, signed core.Money) core.TransactionType {
	switch t {
	case ofxgo.TrnTypeXfer:
		return core.TransactionTransfer
	case ofxgo.TrnTypeDebit:
		return core.TransactionExpense
	case ofxgo.TrnTypeCredit:
		return core.TransactionIncome
	}
	if signed.Cents < 0 {
		return core.TransactionExpense
	}
	return core.TransactionIncome
}

var cardPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// description picks the cleanest merchant text the statement offers.
func description(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && (name == "" || isGeneric(name)) {
		name = strings.TrimSpace(string(tx.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// "MM/DD " left over from card processors.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}

func isGeneric(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
