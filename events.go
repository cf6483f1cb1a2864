package statement

import (
	"strings"

	"github.com/etnz/statement/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType is a typed string for identifying ledger events.
type EventType string

// Event types.
const (
	EvtMovement     EventType = "movement"
	EvtTrade        EventType = "trade"
	EvtConsolidated EventType = "consolidated-dividend"
)

// Event is the common interface of everything recorded in a Ledger.
type Event interface {
	What() EventType    // What returns the type of the event.
	When() date.Date    // When returns the day the event occurred.
	AccountID() string  // AccountID returns the account the event belongs to.
	Origin() SourceRef  // Origin returns where the event was read.
	EventID() uuid.UUID // EventID returns a content derived identifier.
}

// SourceRef locates the row an event was read from.
type SourceRef struct {
	File    string `json:"file"`
	Section string `json:"section,omitempty"`
	Line    int    `json:"line"`
}

// Kind of a CashMovement.
type Kind string

// Cash movement kinds.
const (
	Dividend       Kind = "dividend"
	WithholdingTax Kind = "withholding-tax"
	FxWithdrawal   Kind = "fx-withdrawal"
	FxDeposit      Kind = "fx-deposit"
	Interest       Kind = "interest"
	Fee            Kind = "fee"
	Deposit        Kind = "deposit"
	Withdrawal     Kind = "withdrawal"
)

type baseEvent struct {
	ID      uuid.UUID
	Account string
	Date    date.Date
	Source  SourceRef
}

func (e baseEvent) When() date.Date    { return e.Date }
func (e baseEvent) AccountID() string  { return e.Account }
func (e baseEvent) Origin() SourceRef  { return e.Source }
func (e baseEvent) EventID() uuid.UUID { return e.ID }

// CashMovement is a single cash line of a statement.
//
// Amount is positive for an inflow and negative for an outflow, never zero.
type CashMovement struct {
	baseEvent
	Kind        Kind
	Amount      Money
	Description string
	ISIN        string          // security the movement relates to, if known
	Product     string          // product name or symbol, if known
	Rate        decimal.Decimal // stated rate, units of Amount currency per unit of the base currency, zero if none
	Order       string          // broker order reference
}

func (m *CashMovement) What() EventType { return EvtMovement }

// Trade is a buy (positive quantity) or a sell (negative quantity).
type Trade struct {
	baseEvent
	ISIN        string
	Symbol      string
	Quantity    Quantity
	Price       Money
	Fees        Money // fees paid, positive
	Description string
}

func (t *Trade) What() EventType { return EvtTrade }

// Role of a movement in a consolidation.
type Role string

const (
	RoleTax          Role = "withholding-tax"
	RoleFxWithdrawal Role = "fx-withdrawal"
	RoleFxDeposit    Role = "fx-deposit"
)

// Rejection is a movement that was a valid candidate for a role in a
// consolidation but ranked after the chosen one.
type Rejection struct {
	Role     Role
	Movement *CashMovement
	Reason   string
}

// ConsolidatedDividend is a foreign currency dividend re-linked to its
// withholding tax and to the currency conversion that brought it into the
// base currency.
type ConsolidatedDividend struct {
	baseEvent
	Gross              Money           // dividend, in its own currency
	WithholdingTax     Money           // tax withheld, positive, in the dividend currency
	WithholdingTaxBase Money           // tax withheld, in the base currency
	NetBase            Money           // amount received in the base currency
	FxRate             decimal.Decimal // units of dividend currency per unit of base currency
	StatedRate         decimal.Decimal // rate written by the broker, zero if none
	LowConfidence      bool            // FxRate disagrees with StatedRate

	Dividend     *CashMovement
	Tax          *CashMovement // nil for an untaxed dividend
	FxWithdrawal *CashMovement
	FxDeposit    *CashMovement

	Rejected []Rejection
}

func (c *ConsolidatedDividend) What() EventType { return EvtConsolidated }

// Sources returns the movements consumed by the consolidation.
func (c *ConsolidatedDividend) Sources() []*CashMovement {
	sources := []*CashMovement{c.Dividend}
	if c.Tax != nil {
		sources = append(sources, c.Tax)
	}
	return append(sources, c.FxWithdrawal, c.FxDeposit)
}

// namespace of all event identifiers.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/etnz/statement"))

// contentID returns the identifier of the n-th occurrence of an event whose
// content is described by parts.
func contentID(n int, parts ...string) uuid.UUID {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p)
		b.WriteByte(0)
	}
	b.WriteString(strings.Repeat("+", n))
	return uuid.NewSHA1(namespace, []byte(b.String()))
}

// key returns the content of a movement that identifies it.
func (m *CashMovement) key() []string {
	return []string{string(EvtMovement), m.Account, m.Date.String(), string(m.Kind), m.Amount.Currency(), m.Amount.Amount().String(), m.Description, m.ISIN, m.Rate.String(), m.Order}
}

func (t *Trade) key() []string {
	return []string{string(EvtTrade), t.Account, t.Date.String(), t.ISIN, t.Symbol, t.Quantity.String(), t.Price.Currency(), t.Price.Amount().String(), t.Fees.Amount().String(), t.Description}
}

// consolidationID derives the identifier of a consolidation from its sources.
func consolidationID(sources []*CashMovement) uuid.UUID {
	parts := []string{string(EvtConsolidated)}
	for _, s := range sources {
		parts = append(parts, s.ID.String())
	}
	return contentID(0, parts...)
}
