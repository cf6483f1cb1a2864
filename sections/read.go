package sections

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Option configures Read.
type Option func(*readConfig)

type readConfig struct {
	name  string
	comma rune
}

// Name sets the name of the file, used in error messages.
func Name(name string) Option { return func(c *readConfig) { c.name = name } }

// Comma forces the field delimiter instead of sniffing it from the first line.
func Comma(r rune) Option { return func(c *readConfig) { c.comma = r } }

// Read loads a delimited export entirely.
//
// Exports saved by spreadsheet software on some locales are Windows-1252
// encoded, they are decoded to UTF-8 when the content is not valid UTF-8.
// The delimiter is sniffed from the first line unless set by Comma.
func Read(r io.Reader, opts ...Option) (*File, error) {
	var cfg readConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", cfg.name, err)
	}
	data = bytes.TrimPrefix(data, bom)
	if !utf8.Valid(data) {
		data, err = io.ReadAll(transform.NewReader(bytes.NewReader(data), charmap.Windows1252.NewDecoder()))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", cfg.name, err)
		}
	}
	if cfg.comma == 0 {
		cfg.comma = sniff(data)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = cfg.comma
	cr.FieldsPerRecord = -1 // sections have different column counts
	cr.LazyQuotes = true

	f := &File{Name: cfg.name}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", cfg.name, err)
		}
		line, _ := cr.FieldPos(0)
		f.records = append(f.records, rec)
		f.lines = append(f.lines, line)
	}
	return f, nil
}

// ReadXLSX loads the first sheet of a spreadsheet export.
func ReadXLSX(r io.Reader, opts ...Option) (*File, error) {
	var cfg readConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.name, err)
	}
	defer xl.Close()

	rows, err := xl.GetRows(xl.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", cfg.name, err)
	}
	f := New(cfg.name, rows)
	return f, nil
}

// sniff returns the most frequent delimiter candidate of the first line.
func sniff(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, count := ',', bytes.Count(line, []byte{','})
	for _, c := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(c))); n > count {
			best, count = c, n
		}
	}
	return best
}
