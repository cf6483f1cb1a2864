// Package sections splits statement exports into sections of rows.
//
// A sectioned export is a delimited file where the first field of each row
// is the label of the section the row belongs to and the second field marks
// the row as the section's header or as one of its data rows:
//
//	Dividends,Header,Currency,Date,Description,Amount
//	Dividends,Data,USD,2024-07-18,AAPL(US0378331005) Cash Dividend,12.00
//	Dividends,Total,,,,12.00
//
// The package knows nothing about brokers: section labels only matter by
// string equality and no field is interpreted. Interpreting rows is the job
// of package dialect.
package sections

import (
	"fmt"
	"iter"
	"strings"
)

// Row kind markers written in the second field of a sectioned row.
const (
	HeaderToken = "Header"
	DataToken   = "Data"
)

// Kind of a Row.
type Kind int

const (
	Data    Kind = iota // a data row
	Header              // a header row, never emitted by Sectioned
	Summary             // any other marker, like Total, SubTotal or Notes
)

func (k Kind) String() string {
	switch k {
	case Data:
		return "Data"
	case Header:
		return "Header"
	default:
		return "Summary"
	}
}

// Row is a non-header row of a statement, with the section it was read in.
type Row struct {
	Section string   // section label as written in the file
	Kind    Kind     // Data or Summary
	Marker  string   // row kind marker as written in the file
	Line    int      // 1-based line of the row in the file
	Header  []string // header in force for the section, nil if none was seen
	Fields  []string // row fields, without label and marker, padded to the header length
}

// Field returns the i-th field or "" if the row is shorter.
func (r Row) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// StructuralError reports a row that cannot be interpreted because of the
// file structure itself, like a data row in a section that has no header.
type StructuralError struct {
	File    string
	Section string
	Line    int
	Msg     string
}

func (e *StructuralError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: section %q: %s", e.Line, e.Section, e.Msg)
	}
	return fmt.Sprintf("%s:%d: section %q: %s", e.File, e.Line, e.Section, e.Msg)
}

// File is a statement export entirely loaded in memory.
type File struct {
	Name    string
	records [][]string
	lines   []int
}

// New returns a File made of records, numbered from line 1.
func New(name string, records [][]string) *File {
	lines := make([]int, len(records))
	for i := range lines {
		lines[i] = i + 1
	}
	return &File{Name: name, records: records, lines: lines}
}

// Len returns the number of records in the file.
func (f *File) Len() int { return len(f.records) }

// Head returns up to the n first non blank records.
func (f *File) Head(n int) [][]string {
	head := make([][]string, 0, n)
	for _, rec := range f.records {
		if len(head) == n {
			break
		}
		if blank(rec) {
			continue
		}
		head = append(head, rec)
	}
	return head
}

// Sectioned returns the rows of a sectioned file.
//
// Blank rows are skipped. A non empty label different from the current
// section starts a new section with no header. Header rows replace the
// header of the current section and are not yielded. Every other row is
// yielded with the section and header in force.
//
// The sequence can be iterated any number of times.
func (f *File) Sectioned() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		var section string
		var header []string
		for i, rec := range f.records {
			if blank(rec) {
				continue
			}
			label, marker := field(rec, 0), field(rec, 1)
			if label != "" && label != section {
				section, header = label, nil
			}
			if marker == HeaderToken {
				header = tail(rec, 2)
				continue
			}
			kind := Summary
			if marker == DataToken {
				kind = Data
			}
			row := Row{
				Section: section,
				Kind:    kind,
				Marker:  marker,
				Line:    f.lines[i],
				Header:  header,
				Fields:  pad(tail(rec, 2), len(header)),
			}
			if !yield(row) {
				return
			}
		}
	}
}

// Flat returns the rows of a flat file as a single section called label.
//
// The first non blank record is the header, every following non blank
// record is a Data row.
func (f *File) Flat(label string) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		var header []string
		for i, rec := range f.records {
			if blank(rec) {
				continue
			}
			if header == nil {
				header = tail(rec, 0)
				continue
			}
			row := Row{
				Section: label,
				Kind:    Data,
				Marker:  DataToken,
				Line:    f.lines[i],
				Header:  header,
				Fields:  pad(tail(rec, 0), len(header)),
			}
			if !yield(row) {
				return
			}
		}
	}
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// tail returns a trimmed copy of rec[from:].
func tail(rec []string, from int) []string {
	if from >= len(rec) {
		return []string{}
	}
	out := make([]string, len(rec)-from)
	for i, v := range rec[from:] {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func pad(fields []string, n int) []string {
	for len(fields) < n {
		fields = append(fields, "")
	}
	return fields
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
