package statement

import "fmt"

// DiagnosticKind classifies the recoverable conditions met while building a
// ledger.
type DiagnosticKind string

const (
	// Unclassified rows could not be mapped to any event and are excluded.
	Unclassified DiagnosticKind = "unclassified"
	// Malformed rows carry a value that cannot be parsed and are excluded.
	Malformed DiagnosticKind = "malformed"
	// ReconciliationGap reports a foreign dividend whose legs were not all
	// found. The legs stay in the ledger, individually.
	ReconciliationGap DiagnosticKind = "reconciliation-gap"
	// LowConfidence reports a consolidation whose implied rate disagrees
	// with the rate written by the broker.
	LowConfidence DiagnosticKind = "low-confidence"
	// Duplicate reports an event already contributed by another file.
	Duplicate DiagnosticKind = "duplicate"
)

// Diagnostic is a recoverable condition attached to a source row.
type Diagnostic struct {
	Kind    DiagnosticKind
	Source  SourceRef
	Message string
	Event   Event // event concerned, if any
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", d.Source.File, d.Source.Line, d.Kind, d.Message)
}

// Diagnostics is a collection of Diagnostic.
type Diagnostics []Diagnostic

// Filter returns the diagnostics of the given kinds.
func (d Diagnostics) Filter(kinds ...DiagnosticKind) Diagnostics {
	var out Diagnostics
	for _, x := range d {
		for _, k := range kinds {
			if x.Kind == k {
				out = append(out, x)
				break
			}
		}
	}
	return out
}

// Count returns the number of diagnostics of kind.
func (d Diagnostics) Count(kind DiagnosticKind) int { return len(d.Filter(kind)) }
