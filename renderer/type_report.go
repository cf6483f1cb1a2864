package renderer

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/etnz/statement"
	"github.com/etnz/statement/date"
	"github.com/shopspring/decimal"
)

// Report is the content of a ledger report, grouped by account.
type Report struct {
	Title       string
	Events      int
	Accounts    []*Account
	Diagnostics []Diagnostic
}

// Account holds the events of one account.
type Account struct {
	ID           string
	BaseCurrency string // known when the account has a consolidated dividend
	Dividends    []Dividend
	Trades       []Trade
	Movements    []Movement
	Totals       []Total
}

// Dividend is a consolidated foreign dividend.
type Dividend struct {
	Date          date.Date
	Product       string
	ISIN          string
	Gross         statement.Money
	Tax           statement.Money
	FxRate        decimal.Decimal
	TaxBase       statement.Money
	NetBase       statement.Money
	LowConfidence bool
}

// Trade is a buy or a sell.
type Trade struct {
	Date     date.Date
	Symbol   string
	ISIN     string
	Quantity statement.Quantity
	Price    statement.Money
	Fees     statement.Money
}

// Movement is a cash movement not part of a consolidation.
type Movement struct {
	Date        date.Date
	Kind        statement.Kind
	Amount      statement.Money
	Description string
}

// Total is the sum of the movements of a kind in a currency.
type Total struct {
	Kind   statement.Kind
	Amount statement.Money
}

// Diagnostic is a condition reported while building the ledger.
type Diagnostic struct {
	Kind     statement.DiagnosticKind
	Location string
	Message  string
}

// NewReport creates a Report from a ledger and its diagnostics.
func NewReport(title string, l *statement.Ledger, diags statement.Diagnostics) *Report {
	r := &Report{Title: title, Events: l.Len()}

	for id := range l.Accounts() {
		a := &Account{ID: id}
		totals := make(map[statement.Kind]map[string]statement.Money)
		add := func(kind statement.Kind, m statement.Money) {
			if totals[kind] == nil {
				totals[kind] = make(map[string]statement.Money)
			}
			sum, exists := totals[kind][m.Currency()]
			if !exists {
				sum = statement.M(0, m.Currency())
			}
			totals[kind][m.Currency()] = sum.Add(m)
		}

		for _, e := range l.Events(statement.ByAccount(id)) {
			switch e := e.(type) {
			case *statement.ConsolidatedDividend:
				a.BaseCurrency = e.NetBase.Currency()
				a.Dividends = append(a.Dividends, Dividend{
					Date:          e.When(),
					Product:       e.Dividend.Product,
					ISIN:          e.Dividend.ISIN,
					Gross:         e.Gross,
					Tax:           e.WithholdingTax,
					FxRate:        e.FxRate,
					TaxBase:       e.WithholdingTaxBase,
					NetBase:       e.NetBase,
					LowConfidence: e.LowConfidence,
				})
				add(statement.Dividend, e.NetBase)
				add(statement.WithholdingTax, e.WithholdingTaxBase.Neg())
			case *statement.Trade:
				a.Trades = append(a.Trades, Trade{
					Date:     e.When(),
					Symbol:   e.Symbol,
					ISIN:     e.ISIN,
					Quantity: e.Quantity,
					Price:    e.Price,
					Fees:     e.Fees,
				})
			case *statement.CashMovement:
				a.Movements = append(a.Movements, Movement{
					Date:        e.When(),
					Kind:        e.Kind,
					Amount:      e.Amount,
					Description: e.Description,
				})
				add(e.Kind, e.Amount)
			}
		}

		for kind, byCurrency := range totals {
			for _, m := range byCurrency {
				a.Totals = append(a.Totals, Total{Kind: kind, Amount: m})
			}
		}
		slices.SortFunc(a.Totals, func(x, y Total) int {
			return cmp.Or(cmp.Compare(x.Kind, y.Kind), cmp.Compare(x.Amount.Currency(), y.Amount.Currency()))
		})
		r.Accounts = append(r.Accounts, a)
	}

	for _, d := range diags {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Kind:     d.Kind,
			Location: location(d.Source),
			Message:  d.Message,
		})
	}
	return r
}

func location(s statement.SourceRef) string {
	if s.File == "" {
		return "-"
	}
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}
