package statement

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/etnz/statement/date"
	"github.com/etnz/statement/dialect"
	"github.com/etnz/statement/sections"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// source returns the testdata file name as a Source.
func source(t *testing.T, name string) Source {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return Source{Name: name, Reader: bytes.NewReader(data)}
}

func events(l *Ledger, filters ...func(Event) bool) []Event { return collect(l, filters...) }

func TestIngestLedgerStatement(t *testing.T) {
	l, diags, err := Ingest([]Source{source(t, "degiro.csv")}, Options{})
	require.NoError(t, err)

	require.Len(t, diags, 1)
	assert.Equal(t, Unclassified, diags[0].Kind)
	assert.Equal(t, 10, diags[0].Source.Line)

	all := events(l)
	require.Len(t, all, 4)
	assert.Equal(t, EvtMovement, all[0].What())
	assert.Equal(t, EvtTrade, all[1].What())
	assert.Equal(t, EvtMovement, all[2].What())
	assert.Equal(t, EvtConsolidated, all[3].What())
	assert.Equal(t, "ledger-statement", all[0].AccountID())

	trade := all[1].(*Trade)
	assert.Equal(t, "US01609W1027", trade.ISIN)
	assert.Equal(t, "60", trade.Quantity.String())
	assert.True(t, trade.Price.Equal(M(160.97, "USD")))

	fee := all[2].(*CashMovement)
	assert.Equal(t, Fee, fee.Kind)
	assert.Equal(t, "2b1d5e8c-7f", fee.Order)

	c := all[3].(*ConsolidatedDividend)
	assert.Equal(t, date.MustParse("2025-09-29"), c.When())
	assert.Equal(t, "AU0000180499", c.Dividend.ISIN)
	assert.True(t, c.Gross.Equal(M(152.74, "AUD")))
	assert.True(t, c.NetBase.Equal(M(72.64, "EUR")))
	assert.True(t, c.WithholdingTaxBase.Equal(M(12.82, "EUR")))
	assert.Equal(t, "1.7873", c.StatedRate.String())
	assert.False(t, c.LowConfidence)
	assert.Equal(t, SourceRef{File: "degiro.csv", Section: "Account", Line: 5}, c.Origin())
}

func TestIngestEnglishLedgerStatement(t *testing.T) {
	l, diags, err := Ingest([]Source{source(t, "degiro_en.csv")}, Options{})
	require.NoError(t, err)
	assert.Empty(t, diags)

	all := events(l)
	require.Len(t, all, 4)

	deposit := all[0].(*CashMovement)
	assert.Equal(t, Deposit, deposit.Kind)
	assert.True(t, deposit.Amount.Equal(M(1000, "EUR")), "got %s", deposit.Amount)

	trade := all[1].(*Trade)
	assert.Equal(t, "60", trade.Quantity.String())
	assert.True(t, trade.Price.Equal(M(160.97, "USD")), "got %s", trade.Price)

	assert.True(t, all[2].(*CashMovement).Amount.Equal(M(-2, "EUR")))

	c := all[3].(*ConsolidatedDividend)
	assert.True(t, c.Gross.Equal(M(152.74, "AUD")), "got %s", c.Gross)
	assert.True(t, c.NetBase.Equal(M(72.64, "EUR")), "got %s", c.NetBase)
	assert.True(t, c.WithholdingTaxBase.Equal(M(12.82, "EUR")), "got %s", c.WithholdingTaxBase)
	assert.Equal(t, "1.7873", c.StatedRate.String())
	assert.False(t, c.LowConfidence)
}

func TestIngestActivityStatement(t *testing.T) {
	l, diags, err := Ingest([]Source{source(t, "ibkr.csv")}, Options{})
	require.NoError(t, err)
	assert.Empty(t, diags)

	all := events(l)
	require.Len(t, all, 5)
	for _, e := range all {
		assert.Equal(t, "U1234567", e.AccountID())
	}

	deposit := all[0].(*CashMovement)
	assert.Equal(t, Deposit, deposit.Kind)
	assert.True(t, deposit.Amount.Equal(M(5000, "EUR")))

	trade := all[1].(*Trade)
	assert.Equal(t, "AAPL", trade.Symbol)
	assert.Equal(t, "US0378331005", trade.ISIN, "learned from the instrument section")
	assert.True(t, trade.Fees.Equal(M(1, "USD")))

	assert.Equal(t, Interest, all[2].(*CashMovement).Kind)

	c := all[3].(*ConsolidatedDividend)
	assert.Equal(t, "US0378331005", c.Dividend.ISIN)
	assert.Equal(t, "AAPL", c.Dividend.Product)
	assert.True(t, c.WithholdingTax.Equal(M(3.75, "USD")))
	assert.True(t, c.NetBase.Equal(M(19.59, "EUR")))
	assert.True(t, c.WithholdingTaxBase.Equal(M(3.46, "EUR")))
	assert.Equal(t, "1.0847", c.StatedRate.String())
	assert.False(t, c.LowConfidence)

	commission := all[4].(*CashMovement)
	assert.Equal(t, Fee, commission.Kind)
	assert.True(t, commission.Amount.Equal(M(-2, "EUR")))
}

func TestIngestSpanishActivityStatement(t *testing.T) {
	l, diags, err := Ingest([]Source{source(t, "ibkr_es.csv")}, Options{})
	require.NoError(t, err)
	assert.Empty(t, diags)

	all := events(l)
	require.Len(t, all, 2, "a dividend in the base currency stays standalone")
	assert.Equal(t, Dividend, all[0].(*CashMovement).Kind)
	assert.Equal(t, WithholdingTax, all[1].(*CashMovement).Kind)
	assert.Equal(t, "U7654321", all[0].AccountID())
	assert.Equal(t, "NL0010273215", all[0].(*CashMovement).ISIN)
}

func TestIngestStructuralError(t *testing.T) {
	l, _, err := Ingest([]Source{source(t, "malformed.csv"), source(t, "ibkr_es.csv")}, Options{})
	require.Error(t, err)

	var structural *sections.StructuralError
	require.True(t, errors.As(err, &structural), "got %v", err)
	assert.Equal(t, "malformed.csv", structural.File)
	assert.Equal(t, "Dividends", structural.Section)
	assert.Equal(t, 3, structural.Line)

	// the other file is still ingested.
	assert.Equal(t, 2, l.Len())
}

func TestIngestUnrecognized(t *testing.T) {
	src := Source{Name: "notes.csv", Reader: strings.NewReader("a,b,c\n1,2,3\n")}
	_, _, err := Ingest([]Source{src}, Options{})
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestIngestOverlappingExports(t *testing.T) {
	l, diags, err := Ingest([]Source{
		source(t, "degiro.csv"),
		{Name: "degiro-copy.csv", Reader: bytes.NewReader(mustRead(t, "degiro.csv"))},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, 4, diags.Count(Duplicate))
	assert.Equal(t, 2, diags.Count(Unclassified))
	for _, d := range diags.Filter(Duplicate) {
		assert.Equal(t, "degiro-copy.csv", d.Source.File)
	}
}

func TestIngestIdempotent(t *testing.T) {
	encode := func() string {
		l, _, err := Ingest([]Source{source(t, "degiro.csv"), source(t, "ibkr.csv")}, Options{})
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, EncodeLedger(&buf, l))
		return buf.String()
	}
	first := encode()
	for range 5 {
		assert.Equal(t, first, encode())
	}
}

func TestIngestOptions(t *testing.T) {
	tol := DefaultTolerance()
	tol.MaxDays = 0
	l, diags, err := Ingest([]Source{source(t, "degiro.csv")}, Options{Account: "degiro", Tolerance: tol})
	require.NoError(t, err)

	// the conversion happens the day after the dividend.
	assert.Empty(t, events(l, ByType(EvtConsolidated)))
	assert.Equal(t, 1, diags.Count(ReconciliationGap))
	for _, e := range events(l) {
		assert.Equal(t, "degiro", e.AccountID())
	}
}

func TestIngestCustomDialects(t *testing.T) {
	builtin, err := dialect.Builtin()
	require.NoError(t, err)
	ledger, ok := dialect.Lookup(builtin, dialect.LedgerStatement)
	require.True(t, ok)

	_, _, err = Ingest([]Source{source(t, "ibkr.csv")}, Options{Dialects: []*dialect.Dialect{ledger}})
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func mustRead(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}
