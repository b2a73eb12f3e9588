package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// All engine amounts are GBP held as integer pence. This package holds the
// conversions between pence and decimal pounds used at the edges (API
// payloads, log lines, error messages).

const Code = "GBP"

// Format renders pence as a pound string, e.g. 45000 -> "£450.00".
func Format(pence int64) string {
	sign := ""
	if pence < 0 {
		sign = "-"
		pence = -pence
	}
	return fmt.Sprintf("%s£%d.%02d", sign, pence/100, pence%100)
}

// Pounds converts pence to a decimal pound amount.
func Pounds(pence int64) decimal.Decimal {
	return decimal.New(pence, -2)
}

// FromPounds converts a decimal pound amount to pence, rounding
// half-to-even to the penny.
func FromPounds(pounds decimal.Decimal) int64 {
	return pounds.Mul(decimal.New(100, 0)).RoundBank(0).IntPart()
}

// ParsePounds parses a pound string like "450.00" into pence.
func ParsePounds(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromPounds(d), nil
}
