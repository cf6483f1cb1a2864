// Package resolver finds the ticker of the securities met in a ledger.
//
// Resolution is slow and rate limited, so an Enricher records every answer
// in a checkpoint store and resumes from it on the next run.
package resolver

import (
	"context"
	"errors"

	"github.com/etnz/statement"
)

// ErrNotFound is returned when no ticker matches a query.
var ErrNotFound = errors.New("not found")

// Query identifies a security to resolve.
type Query struct {
	ISIN     string `json:"isin"`
	Currency string `json:"currency"`
	Venue    string `json:"venue,omitempty"` // hint, may be empty
}

// Key returns the stable identifier of the query.
func (q Query) Key() string { return q.ISIN + "|" + q.Currency + "|" + q.Venue }

// Match is a resolved ticker.
type Match struct {
	Ticker     string  `json:"ticker"`
	Venue      string  `json:"venue,omitempty"`
	Confidence float64 `json:"confidence"` // between 0 and 1
}

// Resolver resolves a security identifier into a ticker.
//
//go:generate mockgen -destination=mocks/mock_resolver.go -source=resolver.go Resolver
type Resolver interface {
	Resolve(ctx context.Context, q Query) (Match, error)
}

// Queries returns the securities of the ledger, in order of appearance.
func Queries(l *statement.Ledger) []Query {
	var queries []Query
	seen := make(map[string]bool)
	add := func(isin, currency string) {
		if isin == "" {
			return
		}
		q := Query{ISIN: isin, Currency: currency}
		if seen[q.Key()] {
			return
		}
		seen[q.Key()] = true
		queries = append(queries, q)
	}
	for _, e := range l.Events() {
		switch e := e.(type) {
		case *statement.Trade:
			add(e.ISIN, e.Price.Currency())
		case *statement.ConsolidatedDividend:
			add(e.Dividend.ISIN, e.Gross.Currency())
		case *statement.CashMovement:
			add(e.ISIN, e.Amount.Currency())
		}
	}
	return queries
}
