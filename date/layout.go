package date

import (
	"fmt"
	"strings"
	"time"
)

// Layouts is an ordered list of time layouts tried in sequence.
//
// Statement exports write the same column with or without a time part,
// and sometimes switch layout from one year to the next, so a column is
// parsed with the first layout that accepts the value.
type Layouts []string

// LayoutError is returned when no layout of a Layouts accepts a value.
type LayoutError struct {
	Value   string
	Layouts Layouts
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("invalid date %q: none of the layouts %q matches", e.Value, []string(e.Layouts))
}

// Parse returns the day of the first layout that accepts str.
//
// When no layout accepts the full value and it carries a time part
// (anything after a comma, a 'T' or a space), the date part alone is tried
// again with every layout. On failure the error is a *LayoutError.
func (l Layouts) Parse(str string) (Date, error) {
	str = strings.TrimSpace(str)
	if d, ok := l.parse(str); ok {
		return d, nil
	}
	if i := strings.IndexAny(str, ", T"); i > 0 {
		if d, ok := l.parse(strings.TrimSpace(str[:i])); ok {
			return d, nil
		}
	}
	return Date{}, &LayoutError{Value: str, Layouts: l}
}

func (l Layouts) parse(str string) (Date, bool) {
	for _, layout := range l {
		on, err := time.Parse(layout, str)
		if err == nil {
			return New(on.Date()), true
		}
	}
	return Date{}, false
}
