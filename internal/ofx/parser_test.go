package ofx

import (
	"context"
	"io"
	"strings"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>EUR
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240301120000[0:GMT]
<DTEND>20240331120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240305120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024030501
<NAME>POS PURCHASE 03/05 BAKERY
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240301120000[0:GMT]
<TRNAMT>3000.00
<FITID>2024030101
<NAME>ACME PAYROLL
</STMTTRN>
<STMTTRN>
<TRNTYPE>XFER
<DTPOSTED>20240315120000[0:GMT]
<TRNAMT>-500.00
<FITID>2024031501
<NAME>TRANSFER TO SAVINGS
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240320120000[0:GMT]
<TRNAMT>-120.005
<FITID>2024032001
<NAME>PAYMENT
<MEMO>Landlord
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240331120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>EUR
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2024011001
<NAME>BOOKSHOP
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-45.99
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func quietLogger() *log.Logger {
	lc := log.DefaultConfig()
	lc.Output = io.Discard
	return log.New(lc)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{name: "bank statement", data: sampleBankOFX, want: 4},
		{name: "credit card statement", data: sampleCreditCardOFX, want: 1},
		{name: "leading blank lines", data: "\n\n  " + sampleCreditCardOFX, want: 1},
		{name: "not OFX", data: "not valid OFX", wantErr: true},
		{name: "empty", data: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := NewParser(quietLogger()).Parse(context.Background(), strings.NewReader(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)
		})
	}
}

func TestParse_Classification(t *testing.T) {
	entries, err := NewParser(quietLogger()).Parse(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, entries, 4)

	tests := []struct {
		fitid       string
		date        string
		cents       int64
		kind        core.TransactionType
		description string
	}{
		{fitid: "2024030501", date: "2024-03-05", cents: 2550, kind: core.TransactionExpense, description: "BAKERY"},
		{fitid: "2024030101", date: "2024-03-01", cents: 300000, kind: core.TransactionIncome, description: "ACME PAYROLL"},
		{fitid: "2024031501", date: "2024-03-15", cents: 50000, kind: core.TransactionTransfer, description: "TRANSFER TO SAVINGS"},
		{fitid: "2024032001", date: "2024-03-20", cents: 12001, kind: core.TransactionExpense, description: "Landlord"},
	}

	for i, tt := range tests {
		t.Run(tt.fitid, func(t *testing.T) {
			e := entries[i]
			assert.Equal(t, tt.fitid, e.FITID)
			assert.Equal(t, "1234567890", e.Account)
			assert.Equal(t, tt.date, e.Date.String())
			assert.Equal(t, tt.cents, e.Amount.Cents, "amounts are absolute")
			assert.Equal(t, tt.kind, e.Type)
			assert.Equal(t, tt.description, e.Description)
		})
	}
}

func TestPreprocess(t *testing.T) {
	in := "\n  <SEVERITY>Info</SEVERITY>\n<CODE\n"
	out := preprocess(in)
	assert.True(t, strings.HasPrefix(out, "<SEVERITY>INFO</SEVERITY>"))
	assert.Contains(t, out, "<CODE>")
}
