package statement

import (
	"fmt"
	"iter"
	"sort"

	"github.com/google/uuid"
)

// Fragment is the contribution of one file to a Ledger.
type Fragment struct {
	File         string
	Index        int    // position of the file among the ingested files
	Dialect      string // identifier of the dialect the file was read with
	Account      string
	BaseCurrency string
	Trades       []*Trade
	Consolidated []*ConsolidatedDividend
	Movements    []*CashMovement // movements not consumed by a consolidation
}

// Len returns the number of events in the fragment.
func (f *Fragment) Len() int { return len(f.Trades) + len(f.Consolidated) + len(f.Movements) }

// Ledger is the chronological sequence of the events of one or more files.
//
// Events on the same day keep the order of their files, then of their rows.
// A Ledger is never modified after construction.
type Ledger struct {
	events []Event
}

// entry is an event with the position it was read at.
type entry struct {
	event Event
	file  int
}

// NewLedger merges fragments into a Ledger.
//
// Identical events contributed by several files are kept once for each
// occurrence within a single file, and every event dropped that way is
// reported as a Duplicate. A consolidation that shares a movement with a
// consolidation of an earlier file is dropped too, and its movements that
// are not claimed elsewhere are kept standalone.
func NewLedger(fragments ...*Fragment) (*Ledger, Diagnostics) {
	fragments = sortedFragments(fragments)
	var (
		entries []entry
		diags   Diagnostics
		emitted = make(map[uuid.UUID]bool)
		claimed = make(map[uuid.UUID]bool) // movements consumed by an emitted consolidation
	)
	duplicate := func(e Event, format string, args ...any) {
		diags = append(diags, Diagnostic{Kind: Duplicate, Source: e.Origin(), Message: fmt.Sprintf(format, args...), Event: e})
	}

	type standalone struct {
		m    *CashMovement
		file int
	}
	var movements []standalone

	// consolidations first, so that they claim their movements.
	for _, f := range fragments {
		for _, c := range f.Consolidated {
			if emitted[c.ID] {
				duplicate(c, "dividend of %s already consolidated", c.Gross)
				continue
			}
			conflict := false
			for _, m := range c.Sources() {
				if claimed[m.ID] {
					conflict = true
					break
				}
			}
			if conflict {
				duplicate(c, "dividend of %s consolidated differently by another file", c.Gross)
				for _, m := range c.Sources() {
					movements = append(movements, standalone{m, f.Index})
				}
				continue
			}
			for _, m := range c.Sources() {
				claimed[m.ID] = true
			}
			emitted[c.ID] = true
			entries = append(entries, entry{c, f.Index})
		}
		for _, m := range f.Movements {
			movements = append(movements, standalone{m, f.Index})
		}
	}

	for _, s := range movements {
		switch {
		case claimed[s.m.ID]:
			duplicate(s.m, "%s %s already part of a consolidation", s.m.Kind, s.m.Amount)
		case emitted[s.m.ID]:
			duplicate(s.m, "%s %s already read", s.m.Kind, s.m.Amount)
		default:
			emitted[s.m.ID] = true
			entries = append(entries, entry{s.m, s.file})
		}
	}

	for _, f := range fragments {
		for _, t := range f.Trades {
			if emitted[t.ID] {
				duplicate(t, "trade of %s %s already read", t.Quantity, t.Symbol)
				continue
			}
			emitted[t.ID] = true
			entries = append(entries, entry{t, f.Index})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if c := a.event.When().Compare(b.event.When()); c != 0 {
			return c < 0
		}
		if a.file != b.file {
			return a.file < b.file
		}
		return a.event.Origin().Line < b.event.Origin().Line
	})

	l := &Ledger{events: make([]Event, len(entries))}
	for i, e := range entries {
		l.events[i] = e.event
	}
	return l, diags
}

// sortedFragments returns fragments ordered by Index, nil ones removed.
func sortedFragments(fragments []*Fragment) []*Fragment {
	sorted := make([]*Fragment, 0, len(fragments))
	for _, f := range fragments {
		if f != nil {
			sorted = append(sorted, f)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	return sorted
}

// Len returns the number of events in the ledger.
func (l *Ledger) Len() int { return len(l.events) }

// Events returns an iterator over the events accepted by any of the filters,
// in chronological order. Without filters every event is accepted.
func (l *Ledger) Events(filters ...func(Event) bool) iter.Seq2[int, Event] {
	return func(yield func(int, Event) bool) {
		for i, e := range l.events {
			if len(filters) > 0 {
				accept := false
				for _, filter := range filters {
					if filter(e) {
						accept = true
						break
					}
				}
				if !accept {
					continue
				}
			}
			if !yield(i, e) {
				return
			}
		}
	}
}

// Accounts returns the accounts of the ledger, in order of first appearance.
func (l *Ledger) Accounts() iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]bool)
		for _, e := range l.events {
			if seen[e.AccountID()] {
				continue
			}
			seen[e.AccountID()] = true
			if !yield(e.AccountID()) {
				return
			}
		}
	}
}

// ByAccount accepts events of account.
func ByAccount(account string) func(Event) bool {
	return func(e Event) bool { return e.AccountID() == account }
}

// ByType accepts events of type t.
func ByType(t EventType) func(Event) bool {
	return func(e Event) bool { return e.What() == t }
}

// ByKind accepts cash movements of kind k.
func ByKind(k Kind) func(Event) bool {
	return func(e Event) bool {
		m, ok := e.(*CashMovement)
		return ok && m.Kind == k
	}
}
