package statement

// encodeTo appends the fields common to all events to w.
func (e baseEvent) encodeTo(w *jsonObject) {
	w.Set("id", e.ID)
	w.Set("date", e.Date)
	w.Set("account", e.Account)
	w.Inline(e.Source)
}

// MarshalJSON implements the json.Marshaler interface for CashMovement.
func (m *CashMovement) MarshalJSON() ([]byte, error) {
	var w jsonObject
	w.Set("type", m.What())
	m.baseEvent.encodeTo(&w)
	w.Set("kind", m.Kind)
	w.Set("amount", m.Amount.Amount())
	w.Set("currency", m.Amount.Currency())
	w.SetNonZero("description", m.Description)
	w.SetNonZero("isin", m.ISIN)
	w.SetNonZero("product", m.Product)
	if !m.Rate.IsZero() {
		w.Set("rate", m.Rate)
	}
	w.SetNonZero("order", m.Order)
	return w.MarshalJSON()
}

// MarshalJSON implements the json.Marshaler interface for Trade.
func (t *Trade) MarshalJSON() ([]byte, error) {
	var w jsonObject
	w.Set("type", t.What())
	t.baseEvent.encodeTo(&w)
	w.SetNonZero("isin", t.ISIN)
	w.SetNonZero("symbol", t.Symbol)
	w.Set("quantity", t.Quantity)
	w.Set("price", t.Price.Amount())
	w.Set("currency", t.Price.Currency())
	if !t.Fees.IsZero() {
		w.Set("fees", t.Fees.Amount())
	}
	w.SetNonZero("description", t.Description)
	return w.MarshalJSON()
}

// legJSON is a movement referenced by a consolidation.
type legJSON struct {
	Role string `json:"role"`
	ID   string `json:"id"`
	Line int    `json:"line"`
}

type rejectedJSON struct {
	legJSON
	Reason string `json:"reason"`
}

// MarshalJSON implements the json.Marshaler interface for ConsolidatedDividend.
func (c *ConsolidatedDividend) MarshalJSON() ([]byte, error) {
	var w jsonObject
	w.Set("type", c.What())
	c.baseEvent.encodeTo(&w)
	w.SetNonZero("isin", c.Dividend.ISIN)
	w.SetNonZero("product", c.Dividend.Product)
	w.Set("gross", c.Gross.Amount())
	w.Set("currency", c.Gross.Currency())
	w.Set("withholdingTax", c.WithholdingTax.Amount())
	w.Set("baseCurrency", c.NetBase.Currency())
	w.Set("withholdingTaxBase", c.WithholdingTaxBase.Amount())
	w.Set("netBase", c.NetBase.Amount())
	w.Set("fxRate", c.FxRate)
	if !c.StatedRate.IsZero() {
		w.Set("statedRate", c.StatedRate)
	}
	w.SetNonZero("lowConfidence", c.LowConfidence)

	legs := []legJSON{{Role: string(Dividend), ID: c.Dividend.ID.String(), Line: c.Dividend.Source.Line}}
	if c.Tax != nil {
		legs = append(legs, legJSON{Role: string(RoleTax), ID: c.Tax.ID.String(), Line: c.Tax.Source.Line})
	}
	legs = append(legs,
		legJSON{Role: string(RoleFxWithdrawal), ID: c.FxWithdrawal.ID.String(), Line: c.FxWithdrawal.Source.Line},
		legJSON{Role: string(RoleFxDeposit), ID: c.FxDeposit.ID.String(), Line: c.FxDeposit.Source.Line},
	)
	w.Set("legs", legs)

	if len(c.Rejected) > 0 {
		rejected := make([]rejectedJSON, len(c.Rejected))
		for i, r := range c.Rejected {
			rejected[i] = rejectedJSON{
				legJSON: legJSON{Role: string(r.Role), ID: r.Movement.ID.String(), Line: r.Movement.Source.Line},
				Reason:  r.Reason,
			}
		}
		w.Set("rejected", rejected)
	}
	return w.MarshalJSON()
}
