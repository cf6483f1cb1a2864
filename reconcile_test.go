package statement

import (
	"testing"

	"github.com/etnz/statement/date"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mv returns a movement of the "test" account read at line.
func mv(line int, kind Kind, on, amount, cur string) *CashMovement {
	m := &CashMovement{
		baseEvent: baseEvent{Account: "test", Date: date.MustParse(on), Source: SourceRef{File: "test.csv", Line: line}},
		Kind:      kind,
		Amount:    M(decimal.RequireFromString(amount), cur),
	}
	m.ID = contentID(line, m.key()...)
	return m
}

func withRate(m *CashMovement, rate string) *CashMovement {
	m.Rate = decimal.RequireFromString(rate)
	return m
}

func withISIN(m *CashMovement, isin string) *CashMovement {
	m.ISIN = isin
	return m
}

func euro(string) string { return "EUR" }

func TestReconcileFullMatch(t *testing.T) {
	dividend := mv(1, Dividend, "2025-09-29", "152.74", "AUD")
	tax := mv(2, WithholdingTax, "2025-09-29", "-22.91", "AUD")
	withdrawal := withRate(mv(3, FxWithdrawal, "2025-09-30", "-129.83", "AUD"), "1.7873")
	deposit := mv(4, FxDeposit, "2025-09-30", "72.64", "EUR")

	r := Reconcile([]*CashMovement{dividend, tax, withdrawal, deposit}, euro, DefaultTolerance())

	require.Len(t, r.Consolidated, 1)
	assert.Empty(t, r.Unmatched)
	assert.Empty(t, r.Diagnostics)

	c := r.Consolidated[0]
	assert.Same(t, dividend, c.Dividend)
	assert.Same(t, tax, c.Tax)
	assert.Same(t, withdrawal, c.FxWithdrawal)
	assert.Same(t, deposit, c.FxDeposit)
	assert.True(t, c.Gross.Equal(M(152.74, "AUD")), "gross %v", c.Gross)
	assert.True(t, c.WithholdingTax.Equal(M(22.91, "AUD")), "tax %v", c.WithholdingTax)
	assert.True(t, c.NetBase.Equal(M(72.64, "EUR")), "net %v", c.NetBase)
	assert.True(t, c.WithholdingTaxBase.Equal(M(12.82, "EUR")), "tax in base %v", c.WithholdingTaxBase)
	assert.Equal(t, "1.7873", c.FxRate.StringFixed(4))
	assert.False(t, c.LowConfidence)
	assert.Equal(t, date.MustParse("2025-09-29"), c.When())
	assert.Equal(t, "test", c.AccountID())
	assert.NotEqual(t, c.EventID(), dividend.EventID())
}

func TestReconcileLowConfidence(t *testing.T) {
	// 129.83 / 72.64 = 1.7873, so a stated 17.873 disagrees with the legs.
	movements := []*CashMovement{
		mv(1, Dividend, "2025-09-29", "152.74", "AUD"),
		mv(2, WithholdingTax, "2025-09-29", "-22.91", "AUD"),
		withRate(mv(3, FxWithdrawal, "2025-09-30", "-129.83", "AUD"), "17.873"),
		mv(4, FxDeposit, "2025-09-30", "72.64", "EUR"),
	}
	r := Reconcile(movements, euro, DefaultTolerance())

	require.Len(t, r.Consolidated, 1)
	c := r.Consolidated[0]
	assert.True(t, c.LowConfidence)
	assert.Equal(t, "17.873", c.StatedRate.String())
	assert.True(t, c.NetBase.Equal(M(72.64, "EUR")))
	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, LowConfidence, r.Diagnostics[0].Kind)
	assert.Equal(t, 1, r.Diagnostics[0].Source.Line)
}

func TestReconcileStatedRateOnDeposit(t *testing.T) {
	movements := []*CashMovement{
		mv(1, Dividend, "2025-09-29", "152.74", "AUD"),
		mv(2, FxWithdrawal, "2025-09-30", "-152.74", "AUD"),
		withRate(mv(3, FxDeposit, "2025-09-30", "85.46", "EUR"), "1.7873"),
	}
	r := Reconcile(movements, euro, DefaultTolerance())
	require.Len(t, r.Consolidated, 1)
	assert.Equal(t, "1.7873", r.Consolidated[0].StatedRate.String())
	assert.False(t, r.Consolidated[0].LowConfidence)
}

func TestReconcileUntaxed(t *testing.T) {
	movements := []*CashMovement{
		mv(1, Dividend, "2025-03-10", "100", "USD"),
		mv(2, FxWithdrawal, "2025-03-11", "-100", "USD"),
		mv(3, FxDeposit, "2025-03-11", "92.10", "EUR"),
	}
	r := Reconcile(movements, euro, DefaultTolerance())

	require.Len(t, r.Consolidated, 1)
	c := r.Consolidated[0]
	assert.Nil(t, c.Tax)
	assert.True(t, c.WithholdingTax.IsZero())
	assert.True(t, c.WithholdingTaxBase.IsZero())
	assert.Equal(t, "EUR", c.WithholdingTaxBase.Currency())
	assert.Len(t, c.Sources(), 3)
	assert.Empty(t, r.Unmatched)
}

func TestReconcileBaseCurrencyDividend(t *testing.T) {
	movements := []*CashMovement{
		mv(1, Dividend, "2025-03-10", "10", "EUR"),
		mv(2, WithholdingTax, "2025-03-10", "-1.28", "EUR"),
	}
	r := Reconcile(movements, euro, DefaultTolerance())
	assert.Empty(t, r.Consolidated)
	assert.Empty(t, r.Diagnostics)
	assert.Equal(t, movements, r.Unmatched)
}

func TestReconcileUnknownBase(t *testing.T) {
	movements := []*CashMovement{mv(1, Dividend, "2025-03-10", "10", "USD")}
	r := Reconcile(movements, func(string) string { return "" }, DefaultTolerance())
	assert.Empty(t, r.Consolidated)
	assert.Empty(t, r.Diagnostics)
	assert.Equal(t, movements, r.Unmatched)
}

func TestReconcileGap(t *testing.T) {
	tests := []struct {
		name      string
		movements []*CashMovement
	}{
		{
			name: "no withdrawal",
			movements: []*CashMovement{
				mv(1, Dividend, "2025-03-10", "100", "USD"),
				mv(2, WithholdingTax, "2025-03-10", "-15", "USD"),
				mv(3, FxDeposit, "2025-03-11", "78", "EUR"),
			},
		},
		{
			name: "withdrawal too far",
			movements: []*CashMovement{
				mv(1, Dividend, "2025-03-10", "100", "USD"),
				mv(2, FxWithdrawal, "2025-03-20", "-100", "USD"),
				mv(3, FxDeposit, "2025-03-20", "92", "EUR"),
			},
		},
		{
			name: "withdrawal of another amount",
			movements: []*CashMovement{
				mv(1, Dividend, "2025-03-10", "100", "USD"),
				mv(2, FxWithdrawal, "2025-03-10", "-99", "USD"),
				mv(3, FxDeposit, "2025-03-10", "92", "EUR"),
			},
		},
		{
			name: "no deposit",
			movements: []*CashMovement{
				mv(1, Dividend, "2025-03-10", "100", "USD"),
				mv(2, FxWithdrawal, "2025-03-10", "-100", "USD"),
			},
		},
		{
			name: "deposit before the withdrawal",
			movements: []*CashMovement{
				mv(1, Dividend, "2025-03-10", "100", "USD"),
				mv(2, FxDeposit, "2025-03-10", "92", "EUR"),
				mv(3, FxWithdrawal, "2025-03-11", "-100", "USD"),
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Reconcile(tc.movements, euro, DefaultTolerance())
			assert.Empty(t, r.Consolidated)
			assert.Equal(t, tc.movements, r.Unmatched)
			require.Len(t, r.Diagnostics, 1)
			assert.Equal(t, ReconciliationGap, r.Diagnostics[0].Kind)
			assert.Same(t, tc.movements[0], r.Diagnostics[0].Event)
		})
	}
}

func TestReconcileAmountTolerance(t *testing.T) {
	movements := []*CashMovement{
		mv(1, Dividend, "2025-03-10", "100", "USD"),
		mv(2, FxWithdrawal, "2025-03-10", "-99.60", "USD"),
		mv(3, FxDeposit, "2025-03-10", "92", "EUR"),
	}
	r := Reconcile(movements, euro, DefaultTolerance())
	assert.Len(t, r.Consolidated, 1)

	tol := DefaultTolerance()
	tol.MaxAmountFraction = decimal.RequireFromString("0.1")
	r = Reconcile(movements, euro, tol)
	assert.Empty(t, r.Consolidated)
}

func TestReconcileOneToOne(t *testing.T) {
	// Two identical dividends compete for a single conversion.
	movements := []*CashMovement{
		mv(1, Dividend, "2025-03-10", "100", "USD"),
		mv(2, Dividend, "2025-03-10", "100", "USD"),
		mv(3, FxWithdrawal, "2025-03-11", "-100", "USD"),
		mv(4, FxDeposit, "2025-03-11", "92", "EUR"),
	}
	r := Reconcile(movements, euro, DefaultTolerance())

	require.Len(t, r.Consolidated, 1)
	assert.Same(t, movements[0], r.Consolidated[0].Dividend)
	assert.Equal(t, []*CashMovement{movements[1]}, r.Unmatched)
	assert.Equal(t, 1, r.Diagnostics.Count(ReconciliationGap))
}

func TestReconcileAmbiguity(t *testing.T) {
	movements := []*CashMovement{
		mv(1, Dividend, "2025-03-10", "100", "USD"),
		mv(2, WithholdingTax, "2025-03-12", "-15", "USD"),
		mv(3, WithholdingTax, "2025-03-10", "-15", "USD"),
		mv(4, FxWithdrawal, "2025-03-11", "-85", "USD"),
		mv(5, FxWithdrawal, "2025-03-11", "-85", "USD"),
		mv(6, FxDeposit, "2025-03-11", "78", "EUR"),
	}
	first := Reconcile(movements, euro, DefaultTolerance())
	require.Len(t, first.Consolidated, 1)
	c := first.Consolidated[0]
	assert.Same(t, movements[2], c.Tax, "closest tax by date")
	assert.Same(t, movements[3], c.FxWithdrawal, "lowest source index")
	require.Len(t, c.Rejected, 2)
	assert.Equal(t, RoleTax, c.Rejected[0].Role)
	assert.Same(t, movements[1], c.Rejected[0].Movement)
	assert.Equal(t, RoleFxWithdrawal, c.Rejected[1].Role)
	assert.Same(t, movements[4], c.Rejected[1].Movement)
	assert.Equal(t, []*CashMovement{movements[1], movements[4]}, first.Unmatched)

	second := Reconcile(movements, euro, DefaultTolerance())
	assert.Equal(t, first, second)
}

func TestReconcileTaxISIN(t *testing.T) {
	movements := []*CashMovement{
		withISIN(mv(1, Dividend, "2025-03-10", "100", "USD"), "US0378331005"),
		withISIN(mv(2, WithholdingTax, "2025-03-10", "-15", "USD"), "US5949181045"),
		withISIN(mv(3, WithholdingTax, "2025-03-11", "-15", "USD"), "US0378331005"),
		mv(4, FxWithdrawal, "2025-03-11", "-85", "USD"),
		mv(5, FxDeposit, "2025-03-11", "78", "EUR"),
	}
	r := Reconcile(movements, euro, DefaultTolerance())
	require.Len(t, r.Consolidated, 1)
	assert.Same(t, movements[2], r.Consolidated[0].Tax)
	assert.Equal(t, []*CashMovement{movements[1]}, r.Unmatched)
}

func TestReconcileDepositRateConsistency(t *testing.T) {
	movements := []*CashMovement{
		mv(1, Dividend, "2025-03-10", "100", "USD"),
		withRate(mv(2, FxWithdrawal, "2025-03-10", "-100", "USD"), "1.10"),
		mv(3, FxDeposit, "2025-03-10", "50", "EUR"),
		mv(4, FxDeposit, "2025-03-11", "90.91", "EUR"),
	}
	r := Reconcile(movements, euro, DefaultTolerance())
	require.Len(t, r.Consolidated, 1)
	c := r.Consolidated[0]
	assert.Same(t, movements[3], c.FxDeposit, "consistent deposit ranks before the closer one")
	assert.False(t, c.LowConfidence)
	require.Len(t, c.Rejected, 1)
	assert.Equal(t, RoleFxDeposit, c.Rejected[0].Role)
}

func TestReconcileAccounts(t *testing.T) {
	other := mv(3, FxWithdrawal, "2025-03-10", "-100", "USD")
	other.Account = "other"
	movements := []*CashMovement{
		mv(1, Dividend, "2025-03-10", "100", "USD"),
		mv(2, FxDeposit, "2025-03-10", "92", "EUR"),
		other,
	}
	r := Reconcile(movements, euro, DefaultTolerance())
	assert.Empty(t, r.Consolidated)
	assert.Len(t, r.Unmatched, 3)
}

// TestReconcileProperties checks that no movement is lost and that the net
// dividend is conserved by every consolidation.
func TestReconcileProperties(t *testing.T) {
	movements := []*CashMovement{
		mv(1, Dividend, "2025-09-29", "152.74", "AUD"),
		mv(2, WithholdingTax, "2025-09-29", "-22.91", "AUD"),
		mv(3, Dividend, "2025-10-01", "40", "USD"),
		mv(4, WithholdingTax, "2025-10-01", "-6", "USD"),
		mv(5, FxWithdrawal, "2025-09-30", "-129.83", "AUD"),
		mv(6, FxDeposit, "2025-09-30", "72.64", "EUR"),
		mv(7, FxWithdrawal, "2025-10-02", "-34", "USD"),
		mv(8, FxDeposit, "2025-10-02", "31.20", "EUR"),
		mv(9, Interest, "2025-10-02", "0.12", "EUR"),
		mv(10, Dividend, "2025-10-03", "7", "USD"),
	}
	tol := DefaultTolerance()
	r := Reconcile(movements, euro, tol)
	require.Len(t, r.Consolidated, 2)

	seen := make(map[*CashMovement]int)
	for _, c := range r.Consolidated {
		for _, m := range c.Sources() {
			seen[m]++
		}
		net := c.Gross.Sub(c.WithholdingTax)
		diff := net.Amount().Sub(c.FxWithdrawal.Amount.Abs().Amount()).Abs()
		assert.True(t, diff.LessThanOrEqual(tol.MaxAmountFraction), "conservation for %v", c.Dividend.Source)
	}
	for _, m := range r.Unmatched {
		seen[m]++
	}
	assert.Len(t, seen, len(movements))
	for _, m := range movements {
		assert.Equal(t, 1, seen[m], "movement at line %d", m.Source.Line)
	}
	assert.Equal(t, 1, r.Diagnostics.Count(ReconciliationGap))
}
