// Package dialect interprets the rows of a statement export.
//
// A Dialect describes one broker export format: how to recognize it, which
// section labels it uses (in every language the broker writes them), how
// its header names map to canonical field names, and which keyword rules
// classify its rows. Dialects are data: the built-in ones are YAML tables
// embedded in the package, loaded once.
package dialect

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/etnz/statement/date"
	"github.com/etnz/statement/sections"
	"gopkg.in/yaml.v3"
)

// ID identifies a dialect.
type ID string

// Known dialects.
const (
	Unrecognized      ID = ""
	LedgerStatement   ID = "ledger-statement"
	ActivityStatement ID = "activity-statement"
)

// Framing tells how the rows of an export are organized.
type Framing string

const (
	Sectioned Framing = "sectioned" // label and row kind marker on every row
	Flat      Framing = "flat"      // a single header line, then data lines
)

// Event is the kind of event a rule classifies a row into.
type Event string

const (
	Dividend       Event = "dividend"
	WithholdingTax Event = "withholding_tax"
	FxWithdrawal   Event = "fx_withdrawal"
	FxDeposit      Event = "fx_deposit"
	Interest       Event = "interest"
	Fee            Event = "fee"
	Deposit        Event = "deposit"
	Withdrawal     Event = "withdrawal"
	Trade          Event = "trade"
	Forex          Event = "forex"  // a currency conversion written as a trade
	Ignore         Event = "ignore" // rows known to carry no ledger event
)

// Role of a section that does not carry events.
type Role string

const (
	Events     Role = ""           // rows are events
	Account    Role = "account"    // key/value rows about the account
	Instrument Role = "instrument" // one row per instrument
)

// Dialect is a broker export format.
type Dialect struct {
	ID           ID        `yaml:"id"`
	Name         string    `yaml:"name"`
	Framing      Framing   `yaml:"framing"`
	FlatSection  string    `yaml:"flat_section"`
	Decimal      string    `yaml:"decimal"`
	BaseCurrency string    `yaml:"base_currency"`
	Dates        []string  `yaml:"dates"`
	Recognize    Signature `yaml:"recognize"`
	Locales      []Locale  `yaml:"locales"`
	Sections     []Section `yaml:"sections"`

	labels map[string]*Section // folded label to section
}

// Signature lists what identifies an export in its first records.
type Signature struct {
	FirstLabel []string   `yaml:"first_label"` // first field of the first record
	Keywords   []string   `yaml:"keywords"`    // any field of the first records
	Header     [][]string `yaml:"header"`      // all names appear in the first record
}

// Locale overrides the decimal separator of exports whose first record
// carries all the Header names.
type Locale struct {
	Header  []string `yaml:"header"`
	Decimal string   `yaml:"decimal"`
}

// Section is a logical section of a dialect.
type Section struct {
	Name       string              `yaml:"name"`
	Labels     []string            `yaml:"labels"`
	Role       Role                `yaml:"role"`
	Columns    map[string]Column   `yaml:"columns"`
	Keys       map[string][]string `yaml:"keys"`
	Keep       map[string][]string `yaml:"keep"`
	SkipPrefix map[string][]string `yaml:"skip_prefix"`
	Rules      []*Rule             `yaml:"rules"`
}

// Column locates a canonical field in a header, either by one of its
// names, or as the column that follows another canonical field.
type Column struct {
	Names   []string `yaml:"names"`
	Follows string   `yaml:"follows"`
}

// Sign constrains the sign of the amount a rule applies to.
type Sign string

const (
	AnySign  Sign = ""
	Positive Sign = "positive"
	Negative Sign = "negative"
)

// Rule classifies a row into an Event.
//
// A rule matches when the field (description by default) contains one of
// Contains (case and accents ignored), equals one of Values (same
// folding), matches Pattern, and the amount has the given Sign. Empty
// criteria always match.
type Rule struct {
	Event    Event    `yaml:"event"`
	Field    string   `yaml:"field"`
	Contains []string `yaml:"contains"`
	Values   []string `yaml:"values"`
	Pattern  string   `yaml:"pattern"`
	Sign     Sign     `yaml:"sign"`

	re *regexp.Regexp
}

// Layouts returns the date layouts of the dialect.
func (d *Dialect) Layouts() date.Layouts { return date.Layouts(d.Dates) }

// DecimalSeparator returns the decimal separator used by the dialect.
func (d *Dialect) DecimalSeparator() rune { return separator(d.Decimal) }

// Separator returns the decimal separator of an export given its first
// records: the one of the first matching locale, the dialect one otherwise.
func (d *Dialect) Separator(head [][]string) rune {
	if len(head) > 0 {
		for _, l := range d.Locales {
			if hasHeader(head[0], l.Header) {
				return separator(l.Decimal)
			}
		}
	}
	return d.DecimalSeparator()
}

func separator(decimal string) rune {
	if decimal == "," {
		return ','
	}
	return '.'
}

// hasHeader reports whether record contains all names.
func hasHeader(record, names []string) bool {
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		if !containsFold(record, name) {
			return false
		}
	}
	return true
}

// Section returns the section known under label, or nil.
func (d *Dialect) Section(label string) *Section { return d.labels[Fold(label)] }

// Rows returns the rows of f according to the dialect framing.
func (d *Dialect) Rows(f *sections.File) iter.Seq[sections.Row] {
	if d.Framing == Flat {
		return f.Flat(d.FlatSection)
	}
	return f.Sectioned()
}

// Matches reports whether the first records of an export carry the
// dialect signature.
func (d *Dialect) Matches(head [][]string) bool {
	if len(head) == 0 {
		return false
	}
	first := head[0]
	if len(first) > 0 && containsFold(d.Recognize.FirstLabel, first[0]) {
		return true
	}
	for _, rec := range head {
		for _, field := range rec {
			for _, kw := range d.Recognize.Keywords {
				if strings.Contains(Fold(field), Fold(kw)) {
					return true
				}
			}
		}
	}
	for _, names := range d.Recognize.Header {
		if hasHeader(first, names) {
			return true
		}
	}
	return false
}

// Classify returns the first rule of s that matches fields and sign, sign
// being the sign of the parsed amount (-1, 0 or +1).
func (s *Section) Classify(fields map[string]string, sign int) (*Rule, bool) {
	for _, r := range s.Rules {
		if r.match(fields, sign) {
			return r, true
		}
	}
	return nil, false
}

func (r *Rule) match(fields map[string]string, sign int) bool {
	switch r.Sign {
	case Positive:
		if sign <= 0 {
			return false
		}
	case Negative:
		if sign >= 0 {
			return false
		}
	}
	name := r.Field
	if name == "" {
		name = "description"
	}
	value := fields[name]
	if len(r.Contains) > 0 {
		folded := Fold(value)
		if !slices.ContainsFunc(r.Contains, func(c string) bool { return strings.Contains(folded, Fold(c)) }) {
			return false
		}
	}
	if len(r.Values) > 0 && !containsFold(r.Values, value) {
		return false
	}
	if r.re != nil && !r.re.MatchString(value) {
		return false
	}
	return true
}

// Load reads a dialect table.
func Load(r io.Reader) (*Dialect, error) {
	var d Dialect
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding dialect table: %w", err)
	}
	if err := d.init(); err != nil {
		return nil, fmt.Errorf("dialect %q: %w", d.ID, err)
	}
	return &d, nil
}

// init validates the table and builds its lookup indexes.
func (d *Dialect) init() error {
	if d.ID == Unrecognized {
		return fmt.Errorf("missing id")
	}
	switch d.Framing {
	case Sectioned:
	case Flat:
		if d.FlatSection == "" {
			return fmt.Errorf("flat framing without flat_section")
		}
	default:
		return fmt.Errorf("unknown framing %q", d.Framing)
	}
	if len(d.Dates) == 0 {
		return fmt.Errorf("no date layouts")
	}
	if err := validSeparator(d.Decimal); err != nil {
		return err
	}
	for _, l := range d.Locales {
		if len(l.Header) == 0 {
			return fmt.Errorf("locale without header")
		}
		if err := validSeparator(l.Decimal); err != nil {
			return fmt.Errorf("locale %v: %w", l.Header, err)
		}
	}
	d.labels = make(map[string]*Section)
	for i := range d.Sections {
		s := &d.Sections[i]
		for _, label := range s.Labels {
			key := Fold(label)
			if other, exists := d.labels[key]; exists {
				return fmt.Errorf("label %q used by sections %q and %q", label, other.Name, s.Name)
			}
			d.labels[key] = s
		}
		for name, col := range s.Columns {
			if col.Follows != "" {
				if _, ok := s.Columns[col.Follows]; !ok {
					return fmt.Errorf("section %q: column %q follows unknown column %q", s.Name, name, col.Follows)
				}
			}
		}
		for _, r := range s.Rules {
			if r.Pattern == "" {
				continue
			}
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return fmt.Errorf("section %q: %w", s.Name, err)
			}
			r.re = re
		}
	}
	return nil
}

func validSeparator(decimal string) error {
	switch decimal {
	case "", ".", ",":
		return nil
	}
	return fmt.Errorf("invalid decimal separator %q", decimal)
}

//go:embed tables/*.yaml
var tables embed.FS

// Builtin returns the dialects shipped with the package, sorted by ID.
var Builtin = sync.OnceValues(func() ([]*Dialect, error) {
	var dialects []*Dialect
	err := fs.WalkDir(tables, "tables", func(path string, e fs.DirEntry, err error) error {
		if err != nil || e.IsDir() {
			return err
		}
		f, err := tables.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		d, err := Load(f)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		dialects = append(dialects, d)
		return nil
	})
	slices.SortFunc(dialects, func(a, b *Dialect) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return dialects, err
})

// Lookup returns the dialect id among dialects.
func Lookup(dialects []*Dialect, id ID) (*Dialect, bool) {
	i := slices.IndexFunc(dialects, func(d *Dialect) bool { return d.ID == id })
	if i < 0 {
		return nil, false
	}
	return dialects[i], true
}

// Recognize returns the first dialect whose signature matches the first
// records of an export.
func Recognize(head [][]string, dialects []*Dialect) (*Dialect, bool) {
	for _, d := range dialects {
		if d.Matches(head) {
			return d, true
		}
	}
	return nil, false
}
