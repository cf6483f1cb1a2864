package statement

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Tolerance bounds the matching of the legs of a foreign dividend.
type Tolerance struct {
	// MaxDays is the largest distance in days between a dividend and its
	// legs, and between the two FX legs.
	MaxDays int
	// MaxAmountFraction is the largest absolute difference, in units of the
	// dividend currency, between the net dividend and the FX withdrawal.
	MaxAmountFraction decimal.Decimal
	// RateFraction is the largest relative difference between the implied
	// and the stated FX rate.
	RateFraction decimal.Decimal
}

// DefaultTolerance returns 5 days, 0.5 units of currency and 1%.
func DefaultTolerance() Tolerance {
	return Tolerance{
		MaxDays:           5,
		MaxAmountFraction: decimal.RequireFromString("0.5"),
		RateFraction:      decimal.RequireFromString("0.01"),
	}
}

// Reconciliation is the result of Reconcile.
type Reconciliation struct {
	Consolidated []*ConsolidatedDividend
	Unmatched    []*CashMovement // movements left alone, in input order
	Diagnostics  Diagnostics     // reconciliation gaps and low confidence consolidations
}

// candidate is a movement ranked for a role.
type candidate struct {
	m          *CashMovement
	index      int             // position in the input
	consistent bool            // satisfies the stated rate, deposits only
	days       int             // date distance
	distance   decimal.Decimal // amount distance
}

func compareCandidates(a, b candidate) int {
	if a.consistent != b.consistent {
		if a.consistent {
			return -1
		}
		return 1
	}
	return cmp.Or(
		cmp.Compare(a.days, b.days),
		a.distance.Cmp(b.distance),
		cmp.Compare(a.index, b.index),
	)
}

// reconciler holds the state of one Reconcile call.
type reconciler struct {
	tol      Tolerance
	base     func(account string) string
	index    map[*CashMovement]int
	consumed map[*CashMovement]bool
	byKind   map[string]map[Kind][]*CashMovement // account, kind
	result   Reconciliation
}

// Reconcile re-links foreign dividends with their withholding tax and the
// currency conversion that brought them into the account base currency.
//
// Each Dividend not in the base currency of its account is matched with the
// closest WithholdingTax of the same currency (untaxed dividends have none),
// then with an FxWithdrawal of its net amount, then with an FxDeposit in the
// base currency on or after the withdrawal. A full match produces a
// ConsolidatedDividend and consumes its movements; a movement is consumed at
// most once. Every movement not consumed is returned in Unmatched, in input
// order. Ties are resolved by the lowest input position.
//
// base returns the base currency of an account, "" if unknown.
func Reconcile(movements []*CashMovement, base func(account string) string, tol Tolerance) *Reconciliation {
	r := &reconciler{
		tol:      tol,
		base:     base,
		index:    make(map[*CashMovement]int, len(movements)),
		consumed: make(map[*CashMovement]bool),
		byKind:   make(map[string]map[Kind][]*CashMovement),
	}
	var accounts []string
	for i, m := range movements {
		r.index[m] = i
		kinds, exists := r.byKind[m.Account]
		if !exists {
			kinds = make(map[Kind][]*CashMovement)
			r.byKind[m.Account] = kinds
			accounts = append(accounts, m.Account)
		}
		kinds[m.Kind] = append(kinds[m.Kind], m)
	}

	for _, account := range accounts {
		for _, d := range r.byKind[account][Dividend] {
			r.consolidate(d)
		}
	}

	for _, m := range movements {
		if !r.consumed[m] {
			r.result.Unmatched = append(r.result.Unmatched, m)
		}
	}
	return &r.result
}

func (r *reconciler) consolidate(d *CashMovement) {
	if r.consumed[d] || !d.Amount.IsPositive() {
		return
	}
	base := r.base(d.Account)
	if base == "" || d.Amount.Currency() == base {
		return
	}
	c := &ConsolidatedDividend{Dividend: d}

	// withholding tax
	tax, rejected := r.pick(RoleTax, r.taxCandidates(d))
	c.Rejected = append(c.Rejected, rejected...)
	net := d.Amount
	if tax != nil {
		c.Tax = tax
		net = net.Sub(tax.Amount.Abs())
	}

	// fx withdrawal of the net amount
	w, rejected := r.pick(RoleFxWithdrawal, r.withdrawalCandidates(d, net))
	c.Rejected = append(c.Rejected, rejected...)
	if w == nil {
		r.gap(d, "no %s withdrawal of %s within %d days", d.Amount.Currency(), net.Amount().StringFixed(net.Fraction()), r.tol.MaxDays)
		return
	}
	c.FxWithdrawal = w

	// fx deposit in the base currency
	stated := w.Rate
	deposits := r.depositCandidates(w, base, stated)
	dep, rejected := r.pick(RoleFxDeposit, deposits)
	c.Rejected = append(c.Rejected, rejected...)
	if dep == nil {
		r.gap(d, "no %s deposit within %d days after the withdrawal at line %d", base, r.tol.MaxDays, w.Source.Line)
		return
	}
	c.FxDeposit = dep
	if stated.IsZero() {
		stated = dep.Rate
	}

	c.baseEvent = baseEvent{Account: d.Account, Date: d.Date, Source: d.Source}
	c.Gross = d.Amount
	c.WithholdingTax = M(0, d.Amount.Currency())
	if tax != nil {
		c.WithholdingTax = tax.Amount.Abs()
	}
	c.NetBase = dep.Amount.Abs()
	c.FxRate = w.Amount.Abs().Amount().DivRound(dep.Amount.Abs().Amount(), 10)
	c.WithholdingTaxBase = M(c.WithholdingTax.Amount().Div(c.FxRate), base).RoundBank()
	c.StatedRate = stated
	c.LowConfidence = !stated.IsZero() && !r.consistent(c.FxRate, stated)
	c.ID = consolidationID(c.Sources())

	for _, m := range c.Sources() {
		r.consumed[m] = true
	}
	r.result.Consolidated = append(r.result.Consolidated, c)
	if c.LowConfidence {
		r.result.Diagnostics = append(r.result.Diagnostics, Diagnostic{
			Kind:    LowConfidence,
			Source:  d.Source,
			Message: fmt.Sprintf("implied rate %s disagrees with stated rate %s", c.FxRate.StringFixed(4), stated.String()),
			Event:   c,
		})
	}
}

// pick returns the best candidate and the rejected others.
func (r *reconciler) pick(role Role, candidates []candidate) (*CashMovement, []Rejection) {
	if len(candidates) == 0 {
		return nil, nil
	}
	slices.SortFunc(candidates, compareCandidates)
	best := candidates[0]
	var rejected []Rejection
	for _, c := range candidates[1:] {
		reason := fmt.Sprintf("ranked after line %d: %d days, distance %s", best.m.Source.Line, c.days, c.distance.String())
		if best.consistent && !c.consistent {
			reason = fmt.Sprintf("ranked after line %d: disagrees with the stated rate", best.m.Source.Line)
		}
		rejected = append(rejected, Rejection{Role: role, Movement: c.m, Reason: reason})
	}
	return best.m, rejected
}

func (r *reconciler) available(account string, kind Kind) []*CashMovement {
	var out []*CashMovement
	for _, m := range r.byKind[account][kind] {
		if !r.consumed[m] {
			out = append(out, m)
		}
	}
	return out
}

func (r *reconciler) taxCandidates(d *CashMovement) []candidate {
	var out []candidate
	for _, t := range r.available(d.Account, WithholdingTax) {
		if t.Amount.Currency() != d.Amount.Currency() {
			continue
		}
		if d.ISIN != "" && t.ISIN != "" && d.ISIN != t.ISIN {
			continue
		}
		days := abs(d.Date.DaysTo(t.Date))
		if days > r.tol.MaxDays {
			continue
		}
		out = append(out, candidate{
			m:        t,
			index:    r.index[t],
			days:     days,
			distance: t.Amount.Abs().Amount().Sub(d.Amount.Amount()).Abs(),
		})
	}
	return out
}

func (r *reconciler) withdrawalCandidates(d *CashMovement, net Money) []candidate {
	var out []candidate
	for _, w := range r.available(d.Account, FxWithdrawal) {
		if w.Amount.Currency() != d.Amount.Currency() {
			continue
		}
		days := abs(d.Date.DaysTo(w.Date))
		if days > r.tol.MaxDays {
			continue
		}
		distance := w.Amount.Abs().Amount().Sub(net.Amount()).Abs()
		if distance.GreaterThan(r.tol.MaxAmountFraction) {
			continue
		}
		out = append(out, candidate{m: w, index: r.index[w], days: days, distance: distance})
	}
	return out
}

func (r *reconciler) depositCandidates(w *CashMovement, base string, stated decimal.Decimal) []candidate {
	var out []candidate
	for _, dep := range r.available(w.Account, FxDeposit) {
		if dep.Amount.Currency() != base || !dep.Amount.IsPositive() {
			continue
		}
		days := w.Date.DaysTo(dep.Date)
		if days < 0 || days > r.tol.MaxDays {
			continue
		}
		c := candidate{m: dep, index: r.index[dep], days: days, consistent: true, distance: decimal.Zero}
		rate := stated
		if rate.IsZero() {
			rate = dep.Rate
		}
		if !rate.IsZero() {
			implied := w.Amount.Abs().Amount().Div(dep.Amount.Amount())
			c.distance = implied.Sub(rate).Abs()
			c.consistent = r.consistent(implied, rate)
		}
		out = append(out, c)
	}
	return out
}

// consistent reports whether implied is within the rate tolerance of stated.
func (r *reconciler) consistent(implied, stated decimal.Decimal) bool {
	return implied.Sub(stated).Abs().LessThanOrEqual(stated.Abs().Mul(r.tol.RateFraction))
}

func (r *reconciler) gap(d *CashMovement, format string, args ...any) {
	r.result.Diagnostics = append(r.result.Diagnostics, Diagnostic{
		Kind:    ReconciliationGap,
		Source:  d.Source,
		Message: fmt.Sprintf("dividend %s: ", d.Amount) + fmt.Sprintf(format, args...),
		Event:   d,
	})
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
