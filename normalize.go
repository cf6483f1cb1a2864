package statement

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/etnz/statement/date"
	"github.com/etnz/statement/dialect"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// tradeDescription parses trades written as a description, like
// "Compra 60 ADR on Alibaba Group Holding@160,97 USD (US01609W1027)".
var tradeDescription = regexp.MustCompile(`^(Compra|Venta|Buy|Sell)\s+([\d.,]+)\s+(.+?)@([\d.,]+)\s+([A-Z]{3})`)

// productInText finds the symbol in front of an ISIN, like in "AAPL(US0378331005) Cash Dividend".
var productInText = regexp.MustCompile(`^\s*([^\s(]+)\s*\(`)

var kinds = map[dialect.Event]Kind{
	dialect.Dividend:       Dividend,
	dialect.WithholdingTax: WithholdingTax,
	dialect.FxWithdrawal:   FxWithdrawal,
	dialect.FxDeposit:      FxDeposit,
	dialect.Interest:       Interest,
	dialect.Fee:            Fee,
	dialect.Deposit:        Deposit,
	dialect.Withdrawal:     Withdrawal,
}

// Normalizer turns the RawEvents of one file into ledger events.
//
// A Normalizer first learns the account and instrument information of the
// file, then normalizes its event rows. It is not safe for concurrent use.
type Normalizer struct {
	Account      string // account events are attributed to
	BaseCurrency string // base currency of the account, "" if unknown
	Decimal      rune   // decimal separator of amounts

	dialect     *dialect.Dialect
	instruments map[string]string // symbol to ISIN
	seen        map[string]int    // occurrences of each event content
	log         zerolog.Logger
}

// NewNormalizer returns a Normalizer for events of d.
func NewNormalizer(d *dialect.Dialect, account, base string, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		Account:      account,
		BaseCurrency: base,
		Decimal:      d.DecimalSeparator(),
		dialect:      d,
		instruments:  make(map[string]string),
		seen:         make(map[string]int),
		log:          log,
	}
}

// Learn records the information carried by account and instrument rows.
// It reports whether ev was such a row.
func (n *Normalizer) Learn(ev dialect.RawEvent) bool {
	switch ev.Section.Role {
	case dialect.Account:
		value := strings.TrimSpace(ev.Get("value"))
		switch ev.AccountKey() {
		case "account":
			if value != "" {
				n.Account = value
			}
		case "base_currency":
			if ValidateCurrency(strings.ToUpper(value)) == nil {
				n.BaseCurrency = strings.ToUpper(value)
			}
		}
		return true
	case dialect.Instrument:
		isin := strings.TrimSpace(ev.Get("isin"))
		if ValidateISIN(isin) != nil {
			return true
		}
		for _, symbol := range strings.Split(ev.Get("symbol"), ",") {
			if symbol = strings.TrimSpace(symbol); symbol != "" {
				n.instruments[symbol] = isin
			}
		}
		return true
	}
	return false
}

// Normalize returns the events of ev.
//
// Rows with a blank or zero amount and rows classified as ignored yield no
// event and no diagnostic. Rows that cannot be classified or parsed yield a
// diagnostic instead.
func (n *Normalizer) Normalize(ev dialect.RawEvent) ([]Event, *Diagnostic) {
	ref := SourceRef{File: ev.File, Section: ev.Label, Line: ev.Line}

	var amount decimal.Decimal
	raw, hasAmount := ev.Fields["amount"]
	if hasAmount {
		if strings.TrimSpace(raw) == "" {
			n.log.Debug().Str("file", ref.File).Int("line", ref.Line).Msg("row without amount dropped")
			return nil, nil
		}
		a, err := ParseDecimal(raw, n.Decimal)
		if err != nil {
			return nil, n.diag(Malformed, ref, "amount: %v", err)
		}
		if a.IsZero() {
			n.log.Debug().Str("file", ref.File).Int("line", ref.Line).Msg("zero amount row dropped")
			return nil, nil
		}
		amount = a
	}

	rule, ok := ev.Section.Classify(ev.Fields, amount.Sign())
	if !ok {
		if hasAmount && strings.TrimSpace(ev.Get("description")) == "" {
			return n.movement(ev, ref, Fee, amount)
		}
		return nil, n.diag(Unclassified, ref, "no rule matches %q", ev.Get("description"))
	}

	switch rule.Event {
	case dialect.Ignore:
		n.log.Debug().Str("file", ref.File).Int("line", ref.Line).Str("description", ev.Get("description")).Msg("row ignored")
		return nil, nil
	case dialect.Trade:
		return n.trade(ev, ref, amount)
	case dialect.Forex:
		return n.forex(ev, ref)
	}
	kind, ok := kinds[rule.Event]
	if !ok {
		return nil, n.diag(Unclassified, ref, "unknown event %q", rule.Event)
	}
	return n.movement(ev, ref, kind, amount)
}

func (n *Normalizer) movement(ev dialect.RawEvent, ref SourceRef, kind Kind, amount decimal.Decimal) ([]Event, *Diagnostic) {
	on, cur, d := n.dateAndCurrency(ev, ref)
	if d != nil {
		return nil, d
	}
	m := &CashMovement{
		baseEvent:   baseEvent{Account: n.Account, Date: on, Source: ref},
		Kind:        kind,
		Amount:      M(amount, cur),
		Description: strings.TrimSpace(ev.Get("description")),
		ISIN:        n.isin(ev),
		Product:     strings.TrimSpace(ev.Get("product")),
		Order:       strings.TrimSpace(ev.Get("order")),
	}
	if m.Product == "" {
		if match := productInText.FindStringSubmatch(m.Description); match != nil {
			m.Product = match[1]
		}
	}
	if raw := ev.Get("rate"); strings.TrimSpace(raw) != "" {
		rate, err := ParseDecimal(raw, n.Decimal)
		if err != nil || !rate.IsPositive() {
			n.log.Warn().Str("file", ref.File).Int("line", ref.Line).Str("rate", raw).Msg("stated rate ignored")
		} else {
			m.Rate = rate
		}
	}
	m.ID = n.identify(m.key())
	return []Event{m}, nil
}

// trade handles both trades written in columns and trades written as a
// description.
func (n *Normalizer) trade(ev dialect.RawEvent, ref SourceRef, amount decimal.Decimal) ([]Event, *Diagnostic) {
	on, err := n.dialect.Layouts().Parse(ev.Get("date"))
	if err != nil {
		return nil, n.diag(Malformed, ref, "date: %v", err)
	}
	sep := n.Decimal
	t := &Trade{
		baseEvent:   baseEvent{Account: n.Account, Date: on, Source: ref},
		Description: strings.TrimSpace(ev.Get("description")),
	}

	if _, columns := ev.Fields["quantity"]; columns {
		qty, err := ParseDecimal(ev.Get("quantity"), sep)
		if err != nil {
			return nil, n.diag(Malformed, ref, "quantity: %v", err)
		}
		price, err := ParseDecimal(ev.Get("price"), sep)
		if err != nil {
			return nil, n.diag(Malformed, ref, "price: %v", err)
		}
		cur := strings.ToUpper(strings.TrimSpace(ev.Get("currency")))
		if err := ValidateCurrency(cur); err != nil {
			return nil, n.diag(Malformed, ref, "currency: %v", err)
		}
		t.Symbol = strings.TrimSpace(ev.Get("symbol"))
		t.ISIN = n.instruments[t.Symbol]
		t.Quantity = Q(qty)
		t.Price = M(price, cur)
		t.Fees = M(0, cur)
		if raw := ev.Get("fee"); strings.TrimSpace(raw) != "" {
			fee, err := ParseDecimal(raw, sep)
			if err != nil {
				return nil, n.diag(Malformed, ref, "fee: %v", err)
			}
			t.Fees = M(fee.Abs(), cur)
		}
	} else {
		match := tradeDescription.FindStringSubmatch(t.Description)
		if match == nil {
			return nil, n.diag(Unclassified, ref, "cannot read trade %q", t.Description)
		}
		qty, err := ParseDecimal(match[2], sep)
		if err != nil {
			return nil, n.diag(Malformed, ref, "quantity: %v", err)
		}
		price, err := ParseDecimal(match[4], sep)
		if err != nil {
			return nil, n.diag(Malformed, ref, "price: %v", err)
		}
		if match[1] == "Venta" || match[1] == "Sell" {
			qty = qty.Neg()
		}
		t.Symbol = strings.TrimSpace(ev.Get("product"))
		if t.Symbol == "" {
			t.Symbol = strings.TrimSpace(match[3])
		}
		t.ISIN = n.isin(ev)
		t.Quantity = Q(qty)
		t.Price = M(price, match[5])
		t.Fees = M(0, match[5])
	}
	if t.Quantity.IsZero() {
		return nil, nil
	}
	t.ID = n.identify(t.key())
	return []Event{t}, nil
}

// forex turns a currency conversion written as a trade into its two legs,
// and its commission if any.
func (n *Normalizer) forex(ev dialect.RawEvent, ref SourceRef) ([]Event, *Diagnostic) {
	on, err := n.dialect.Layouts().Parse(ev.Get("date"))
	if err != nil {
		return nil, n.diag(Malformed, ref, "date: %v", err)
	}
	sep := n.Decimal
	symbol := strings.TrimSpace(ev.Get("symbol"))
	from, to, found := strings.Cut(symbol, ".")
	if !found || ValidateCurrency(from) != nil || ValidateCurrency(to) != nil {
		return nil, n.diag(Malformed, ref, "invalid currency pair %q", symbol)
	}
	qty, err := ParseDecimal(ev.Get("quantity"), sep)
	if err != nil {
		return nil, n.diag(Malformed, ref, "quantity: %v", err)
	}
	price, err := ParseDecimal(ev.Get("price"), sep)
	if err != nil || !price.IsPositive() {
		return nil, n.diag(Malformed, ref, "invalid price %q", ev.Get("price"))
	}
	if qty.IsZero() {
		return nil, nil
	}
	proceeds := qty.Mul(price).Neg()
	if raw := ev.Get("proceeds"); strings.TrimSpace(raw) != "" {
		if proceeds, err = ParseDecimal(raw, sep); err != nil {
			return nil, n.diag(Malformed, ref, "proceeds: %v", err)
		}
	}

	// rate in units of the foreign currency per unit of the base currency.
	var rate decimal.Decimal
	switch n.BaseCurrency {
	case from:
		rate = price
	case to:
		rate = decimal.NewFromInt(1).Div(price)
	}

	description := "Forex " + symbol
	var events []Event
	for _, leg := range []Money{M(qty, from), M(proceeds, to)} {
		if leg.IsZero() {
			continue
		}
		kind := FxDeposit
		if leg.IsNegative() {
			kind = FxWithdrawal
		}
		m := &CashMovement{
			baseEvent:   baseEvent{Account: n.Account, Date: on, Source: ref},
			Kind:        kind,
			Amount:      leg,
			Description: description,
			Product:     symbol,
			Rate:        rate,
		}
		m.ID = n.identify(m.key())
		events = append(events, m)
	}

	if raw := ev.Get("fee"); strings.TrimSpace(raw) != "" {
		fee, err := ParseDecimal(raw, sep)
		if err != nil {
			return nil, n.diag(Malformed, ref, "fee: %v", err)
		}
		cur := n.BaseCurrency
		if cur == "" {
			cur = to
		}
		if !fee.IsZero() {
			m := &CashMovement{
				baseEvent:   baseEvent{Account: n.Account, Date: on, Source: ref},
				Kind:        Fee,
				Amount:      M(fee.Abs().Neg(), cur),
				Description: "Commission " + description,
				Product:     symbol,
			}
			m.ID = n.identify(m.key())
			events = append(events, m)
		}
	}
	return events, nil
}

func (n *Normalizer) dateAndCurrency(ev dialect.RawEvent, ref SourceRef) (date.Date, string, *Diagnostic) {
	on, err := n.dialect.Layouts().Parse(ev.Get("date"))
	if err != nil {
		return date.Date{}, "", n.diag(Malformed, ref, "date: %v", err)
	}
	cur := strings.ToUpper(strings.TrimSpace(ev.Get("currency")))
	if err := ValidateCurrency(cur); err != nil {
		return date.Date{}, "", n.diag(Malformed, ref, "currency: %v", err)
	}
	return on, cur, nil
}

// isin returns the ISIN column if valid, or the first ISIN of the description.
func (n *Normalizer) isin(ev dialect.RawEvent) string {
	if isin := strings.TrimSpace(ev.Get("isin")); ValidateISIN(isin) == nil {
		return isin
	}
	return findISIN(ev.Get("description"))
}

// identify returns the identifier of the next occurrence of key in the file.
func (n *Normalizer) identify(key []string) uuid.UUID {
	k := strings.Join(key, "\x00")
	occurrence := n.seen[k]
	n.seen[k]++
	return contentID(occurrence, key...)
}

func (n *Normalizer) diag(kind DiagnosticKind, ref SourceRef, format string, args ...any) *Diagnostic {
	d := &Diagnostic{Kind: kind, Source: ref, Message: fmt.Sprintf(format, args...)}
	n.log.Debug().Str("file", ref.File).Int("line", ref.Line).Str("kind", string(kind)).Msg(d.Message)
	return d
}
