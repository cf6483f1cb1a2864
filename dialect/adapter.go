package dialect

import (
	"strings"

	"github.com/etnz/statement/sections"
)

// RawEvent is one data row of a known section, with its fields keyed by
// canonical name.
type RawEvent struct {
	Dialect ID
	File    string
	Section *Section // logical section
	Label   string   // section label as written in the file
	Line    int
	Fields  map[string]string
}

// Get returns the value of a canonical field, "" if absent.
func (e RawEvent) Get(name string) string { return e.Fields[name] }

// Adapter turns the rows of one file into RawEvents.
//
// An Adapter caches the header bindings it computes and is not safe for
// concurrent use.
type Adapter struct {
	dialect  *Dialect
	file     string
	bindings map[string]map[string]int // section name + header to field index
}

// NewAdapter returns an Adapter for the rows of file.
func NewAdapter(d *Dialect, file string) *Adapter {
	return &Adapter{dialect: d, file: file, bindings: make(map[string]map[string]int)}
}

// Adapt returns the RawEvent of row.
//
// ok is false when the row is skipped: unknown section, summary row, or
// filtered out by the section keep and skip_prefix lists. A data row of a
// known section with no header is a *sections.StructuralError.
func (a *Adapter) Adapt(row sections.Row) (ev RawEvent, ok bool, err error) {
	s := a.dialect.Section(row.Section)
	if s == nil || row.Kind != sections.Data {
		return RawEvent{}, false, nil
	}
	if row.Header == nil {
		return RawEvent{}, false, &sections.StructuralError{
			File:    a.file,
			Section: row.Section,
			Line:    row.Line,
			Msg:     "data row before any header row",
		}
	}

	binding := a.bind(s, row.Header)
	fields := make(map[string]string, len(binding))
	for name, i := range binding {
		fields[name] = row.Field(i)
	}

	for name, values := range s.Keep {
		if _, bound := binding[name]; bound && !containsFold(values, fields[name]) {
			return RawEvent{}, false, nil
		}
	}
	for name, prefixes := range s.SkipPrefix {
		if hasPrefixFold(prefixes, fields[name]) {
			return RawEvent{}, false, nil
		}
	}

	return RawEvent{
		Dialect: a.dialect.ID,
		File:    a.file,
		Section: s,
		Label:   row.Section,
		Line:    row.Line,
		Fields:  fields,
	}, true, nil
}

// bind maps the canonical columns of s to their index in header.
func (a *Adapter) bind(s *Section, header []string) map[string]int {
	key := s.Name + "\x00" + strings.Join(header, "\x00")
	if b, exists := a.bindings[key]; exists {
		return b
	}
	b := make(map[string]int)
	for name, col := range s.Columns {
		for i, h := range header {
			if h != "" && containsFold(col.Names, h) {
				b[name] = i
				break
			}
		}
	}
	for name, col := range s.Columns {
		if col.Follows == "" {
			continue
		}
		if i, ok := b[col.Follows]; ok && i+1 < len(header) {
			b[name] = i + 1
		}
	}
	a.bindings[key] = b
	return b
}

// AccountKey returns the canonical key of an account information row, or
// "" if the row carries nothing the engine uses.
func (e RawEvent) AccountKey() string {
	label := e.Get("key")
	for key, names := range e.Section.Keys {
		if containsFold(names, label) {
			return key
		}
	}
	return ""
}
