// Package date provides a calendar day type, parsed from statement exports
// with ordered lists of layouts.
package date

import (
	"fmt"
	"strconv"
	"time"
)

// ISO is the layout of a Date in its textual and JSON forms.
const ISO = "2006-01-02"

// Date is a calendar day. The zero value is the zero day.
type Date struct {
	t time.Time // midnight UTC
}

// New returns the Date of year, month, day, normalized the way time.Date is.
func New(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Parse reads an ISO date, single digit months and days are accepted.
func Parse(str string) (Date, error) {
	on, err := time.Parse("2006-1-2", str)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", str, err)
	}
	return New(on.Date()), nil
}

// MustParse is like Parse but panics on error.
func MustParse(str string) Date {
	d, err := Parse(str)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) IsZero() bool { return d.t.IsZero() }

// Compare returns -1, 0 or +1 when d is before, on or after x.
func (d Date) Compare(x Date) int { return d.t.Compare(x.t) }

// DaysTo returns the signed number of days from d to x.
func (d Date) DaysTo(x Date) int { return int(x.t.Sub(d.t) / (24 * time.Hour)) }

func (d Date) String() string { return d.t.Format(ISO) }

func (d Date) MarshalJSON() ([]byte, error) { return []byte(strconv.Quote(d.String())), nil }
