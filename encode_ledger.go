package statement

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// EncodeEvent marshals a single event to JSON and writes it to w, followed by
// a newline, in JSONL format.
func EncodeEvent(w io.Writer, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", e.What(), err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// EncodeLedger writes the events of ledger to w in JSONL format, in
// chronological order. The output only depends on the content of the ledger.
func EncodeLedger(w io.Writer, ledger *Ledger) error {
	for _, e := range ledger.Events() {
		if err := EncodeEvent(w, e); err != nil {
			return err
		}
	}
	return nil
}

// EncodeDiagnostics writes diagnostics to w in JSONL format.
func EncodeDiagnostics(w io.Writer, diags Diagnostics) error {
	for _, d := range diags {
		var o jsonObject
		o.Set("kind", d.Kind)
		o.Inline(d.Source)
		o.Set("message", d.Message)
		if d.Event != nil {
			o.Set("event", d.Event.EventID())
		}
		data, err := o.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to marshal diagnostic: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write diagnostic: %w", err)
		}
	}
	return nil
}
