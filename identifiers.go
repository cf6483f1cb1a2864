package statement

import (
	"fmt"
	"regexp"

	"github.com/Rhymond/go-money"
)

var (
	isinFormat     = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)
	currencyFormat = regexp.MustCompile(`^[A-Z]{3}$`)
	// an ISIN between parenthesis, like in "AAPL(US0378331005) Cash Dividend".
	isinInText = regexp.MustCompile(`\(([A-Z]{2}[A-Z0-9]{9}[0-9])\)`)
)

// ValidateISIN checks the format and the check digit of an ISIN (ISO 6166).
func ValidateISIN(isin string) error {
	if !isinFormat.MatchString(isin) {
		return fmt.Errorf("invalid ISIN %q: want 2 letters, 9 letters or digits, and a check digit", isin)
	}
	// Letters count as two digits (A=10 ... Z=35), then Luhn applies to the
	// digit string, doubling every other digit from the right of the payload.
	var digits []int
	for _, c := range isin[:11] {
		if c >= 'A' {
			v := int(c-'A') + 10
			digits = append(digits, v/10, v%10)
		} else {
			digits = append(digits, int(c-'0'))
		}
	}
	sum := 0
	for i := range digits {
		d := digits[len(digits)-1-i]
		if i%2 == 0 {
			d *= 2
		}
		sum += d/10 + d%10
	}
	if want := byte('0' + (10-sum%10)%10); isin[11] != want {
		return fmt.Errorf("invalid ISIN %q: check digit is %c", isin, want)
	}
	return nil
}

// ValidateCurrency checks that cur is a known ISO 4217 currency code.
func ValidateCurrency(cur string) error {
	if !currencyFormat.MatchString(cur) {
		return fmt.Errorf("invalid currency %q: must be 3 uppercase letters", cur)
	}
	if money.GetCurrency(cur) == nil {
		return fmt.Errorf("unknown currency %q", cur)
	}
	return nil
}

// findISIN returns the first valid ISIN written between parenthesis in text.
func findISIN(text string) string {
	for _, m := range isinInText.FindAllStringSubmatch(text, -1) {
		if ValidateISIN(m[1]) == nil {
			return m[1]
		}
	}
	return ""
}
