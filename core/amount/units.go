package amount

import (
	"fmt"
	"math/big"
	"strings"
)

// ToBaseUnits converts a human decimal string into token base units. More
// fractional digits than decimals is an error rather than a silent truncation.
func ToBaseUnits(human string, decimals uint8) (*big.Int, error) {
	trimmed := strings.TrimSpace(human)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", human)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	value.Mul(value, new(big.Rat).SetInt(pow10(decimals)))
	if !value.IsInt() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", human, decimals)
	}
	return new(big.Int).Set(value.Num()), nil
}

// FromBaseUnits renders base units as an exact human decimal string with
// trailing zeros trimmed.
func FromBaseUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return FormatRat(new(big.Rat).SetFrac(value, pow10(decimals)), int(decimals))
}

// FormatRat renders r with at most prec fractional digits, trimming zeros.
func FormatRat(r *big.Rat, prec int) string {
	if r == nil {
		return "0"
	}
	out := r.FloatString(prec)
	if strings.Contains(out, ".") {
		out = strings.TrimRight(out, "0")
		out = strings.TrimSuffix(out, ".")
	}
	if out == "-0" {
		return "0"
	}
	return out
}

// ParseInteger parses a non-negative whole number. Fractional input such as
// "1.5" is rejected while "2.0" is accepted.
func ParseInteger(raw string) (*big.Int, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}
	value, ok := new(big.Rat).SetString(trimmed)
	if !ok || !value.IsInt() || value.Sign() < 0 {
		return nil, false
	}
	return new(big.Int).Set(value.Num()), true
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
