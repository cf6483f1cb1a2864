package statement

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal parses a number written with sep as decimal separator.
//
// The other separator, '.' or ',', is a thousands separator and is dropped,
// unless both appear: then the rightmost one is the decimal separator
// whatever sep says. Blanks, a leading '+' and a trailing '%' are ignored,
// and "(12.5)" reads as -12.5.
func ParseDecimal(s string, sep rune) (decimal.Decimal, error) {
	str := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'', '%':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if str == "" {
		return decimal.Zero, fmt.Errorf("invalid number %q: empty", s)
	}
	neg := false
	if strings.HasPrefix(str, "(") && strings.HasSuffix(str, ")") {
		neg, str = true, str[1:len(str)-1]
	}
	str = strings.TrimPrefix(str, "+")

	dot, comma := strings.LastIndexByte(str, '.'), strings.LastIndexByte(str, ',')
	if dot >= 0 && comma >= 0 {
		sep = '.'
		if comma > dot {
			sep = ','
		}
	}
	if sep == ',' {
		str = strings.ReplaceAll(str, ".", "")
		str = strings.Replace(str, ",", ".", 1)
	} else {
		str = strings.ReplaceAll(str, ",", "")
	}

	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", s, err)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}
