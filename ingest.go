package statement

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/etnz/statement/dialect"
	"github.com/etnz/statement/sections"
	"github.com/rs/zerolog"
)

// ErrUnrecognized is returned for a file that matches no dialect.
var ErrUnrecognized = errors.New("unrecognized statement")

// headLen is the number of records used to recognize a dialect.
const headLen = 5

// Options configure Ingest.
type Options struct {
	// Account is used for files that do not name their account. Defaults to
	// the dialect identifier.
	Account string
	// BaseCurrency is used for files that do not state their base currency.
	// Defaults to the dialect base currency.
	BaseCurrency string
	Tolerance    Tolerance
	// Dialects recognized. Defaults to dialect.Builtin.
	Dialects []*dialect.Dialect
	// Logger receives debug and warning messages. The zero value discards
	// them.
	Logger zerolog.Logger
}

func (o Options) dialects() ([]*dialect.Dialect, error) {
	if o.Dialects != nil {
		return o.Dialects, nil
	}
	return dialect.Builtin()
}

func (o Options) tolerance() Tolerance {
	if o.Tolerance == (Tolerance{}) {
		return DefaultTolerance()
	}
	return o.Tolerance
}

// Source is a named statement export.
type Source struct {
	Name   string
	Reader io.Reader
}

// Open reads src and recognizes its dialect among dialects.
//
// Files named *.xlsx are read as spreadsheets, others as delimited text.
func Open(src Source, dialects []*dialect.Dialect) (*sections.File, *dialect.Dialect, error) {
	var (
		f   *sections.File
		err error
	)
	if strings.EqualFold(filepath.Ext(src.Name), ".xlsx") {
		f, err = sections.ReadXLSX(src.Reader, sections.Name(src.Name))
	} else {
		f, err = sections.Read(src.Reader, sections.Name(src.Name))
	}
	if err != nil {
		return nil, nil, err
	}
	d, ok := dialect.Recognize(f.Head(headLen), dialects)
	if !ok {
		return f, nil, fmt.Errorf("%s: %w", src.Name, ErrUnrecognized)
	}
	return f, d, nil
}

// ProcessFile reads, normalizes and reconciles one file.
//
// index is the position of the file among the ingested files. A structural
// error aborts the file, every other condition is reported as a diagnostic.
func ProcessFile(index int, src Source, opts Options) (*Fragment, Diagnostics, error) {
	log := opts.Logger.With().Str("file", src.Name).Logger()
	dialects, err := opts.dialects()
	if err != nil {
		return nil, nil, fmt.Errorf("loading dialects: %w", err)
	}
	f, d, err := Open(src, dialects)
	if err != nil {
		return nil, nil, err
	}
	log.Debug().Str("dialect", string(d.ID)).Int("records", f.Len()).Msg("recognized")

	adapter := dialect.NewAdapter(d, src.Name)
	var raws []dialect.RawEvent
	for row := range d.Rows(f) {
		ev, ok, err := adapter.Adapt(row)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			raws = append(raws, ev)
		}
	}

	n := NewNormalizer(d, "", "", log)
	n.Decimal = d.Separator(f.Head(headLen))
	events := raws[:0]
	for _, ev := range raws {
		if !n.Learn(ev) {
			events = append(events, ev)
		}
	}
	if n.Account == "" {
		n.Account = cmp.Or(opts.Account, string(d.ID))
	}
	if n.BaseCurrency == "" {
		n.BaseCurrency = cmp.Or(opts.BaseCurrency, d.BaseCurrency)
	}

	frag := &Fragment{
		File:         src.Name,
		Index:        index,
		Dialect:      string(d.ID),
		Account:      n.Account,
		BaseCurrency: n.BaseCurrency,
	}
	var diags Diagnostics
	var movements []*CashMovement
	for _, ev := range events {
		out, diag := n.Normalize(ev)
		if diag != nil {
			diags = append(diags, *diag)
			continue
		}
		for _, e := range out {
			switch e := e.(type) {
			case *Trade:
				frag.Trades = append(frag.Trades, e)
			case *CashMovement:
				movements = append(movements, e)
			}
		}
	}

	base := func(string) string { return n.BaseCurrency }
	r := Reconcile(movements, base, opts.tolerance())
	frag.Consolidated = r.Consolidated
	frag.Movements = r.Unmatched
	diags = append(diags, r.Diagnostics...)

	log.Debug().
		Str("account", frag.Account).
		Str("base", frag.BaseCurrency).
		Int("trades", len(frag.Trades)).
		Int("movements", len(movements)).
		Int("consolidated", len(frag.Consolidated)).
		Int("diagnostics", len(diags)).
		Msg("processed")
	return frag, diags, nil
}

// Ingest processes sources in parallel and merges them into a Ledger.
//
// Files that fail are left out of the ledger and their errors are joined in
// the returned error. The ledger is never nil.
func Ingest(sources []Source, opts Options) (*Ledger, Diagnostics, error) {
	type result struct {
		frag  *Fragment
		diags Diagnostics
		err   error
	}
	results := make([]result, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			frag, diags, err := ProcessFile(i, src, opts)
			results[i] = result{frag, diags, err}
		}()
	}
	wg.Wait()

	var (
		errs      error
		diags     Diagnostics
		fragments []*Fragment
	)
	for _, r := range results {
		if r.err != nil {
			errs = errors.Join(errs, r.err)
			continue
		}
		diags = append(diags, r.diags...)
		fragments = append(fragments, r.frag)
	}

	ledger, dups := NewLedger(fragments...)
	for _, d := range dups {
		opts.Logger.Warn().Str("file", d.Source.File).Int("line", d.Source.Line).Msg(d.Message)
	}
	return ledger, append(diags, dups...), errs
}
