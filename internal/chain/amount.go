package chain

import (
	"fmt"
	"math/big"
)

// Magnitude thresholds in display units.
var (
	oneThousand = big.NewInt(1_000)
	oneMillion  = big.NewInt(1_000_000)
	oneBillion  = big.NewInt(1_000_000_000)
)

// FormatAmount converts a smallest-unit amount to a human-readable string.
// The amount is scaled from smallest units to display units with the asset's
// decimal factor, then magnitude suffixes are applied: values at or above 1e9
// display units render as "x.xB", above 1e6 as "x.xM", above 1e3 as "x.xk".
// Below one thousand the value renders with at most displayPlaces fractional
// digits and trailing zeros stripped.
//
// All rounding is floor (truncation toward zero), never round-to-nearest, so
// the display never shows more than the holder actually has.
func FormatAmount(raw *big.Int, decimals, displayPlaces int) string {
	if raw == nil || raw.Sign() == 0 {
		return "0"
	}
	if raw.Sign() < 0 {
		abs := new(big.Int).Abs(raw)
		return "-" + FormatAmount(abs, decimals, displayPlaces)
	}

	whole := wholeDisplayUnits(raw, decimals)
	switch {
	case whole.Cmp(oneBillion) >= 0:
		return magnitude(raw, decimals, 9, "B")
	case whole.Cmp(oneMillion) >= 0:
		return magnitude(raw, decimals, 6, "M")
	case whole.Cmp(oneThousand) >= 0:
		return magnitude(raw, decimals, 3, "k")
	default:
		return formatFixed(raw, decimals, displayPlaces)
	}
}

// wholeDisplayUnits returns the integer part of raw in display units.
func wholeDisplayUnits(raw *big.Int, decimals int) *big.Int {
	if decimals <= 0 {
		return new(big.Int).Set(raw)
	}
	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Quo(raw, div)
}

// magnitude renders raw with a single floored fractional digit and the given
// suffix. exp is the power of ten of the threshold in display units.
func magnitude(raw *big.Int, decimals, exp int, suffix string) string {
	// tenths = floor(raw / 10^(decimals+exp-1)) gives the value in tenths
	// of the suffix unit.
	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals+exp-1)), nil)
	tenths := new(big.Int).Quo(raw, div)

	whole := new(big.Int).Quo(tenths, big.NewInt(10))
	frac := new(big.Int).Mod(tenths, big.NewInt(10))
	return fmt.Sprintf("%s.%s%s", whole.String(), frac.String(), suffix)
}

// formatFixed renders raw with at most places fractional digits, truncating
// (not rounding) extra precision and stripping trailing zeros.
func formatFixed(raw *big.Int, decimals, places int) string {
	if places > decimals {
		places = decimals
	}
	if places < 0 {
		places = 0
	}

	// Truncate to the requested precision.
	scaled := raw
	if drop := decimals - places; drop > 0 {
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(drop)), nil)
		scaled = new(big.Int).Quo(raw, div)
	}

	return formatDecimal(scaled, places)
}

// formatDecimal converts an integer amount to a decimal string with the given
// number of fractional digits, trailing zeros removed.
// For example, 1500000 with 6 places returns "1.5".
func formatDecimal(amount *big.Int, places int) string {
	if amount == nil {
		return "0"
	}

	str := amount.String()
	if places == 0 {
		return str
	}

	// Pad with leading zeros if necessary
	for len(str) <= places {
		str = "0" + str
	}

	// Insert decimal point
	pos := len(str) - places
	result := str[:pos] + "." + str[pos:]

	// Remove unnecessary trailing zeros
	for len(result) > 1 && result[len(result)-1] == '0' && result[len(result)-2] != '.' {
		result = result[:len(result)-1]
	}
	if len(result) > 2 && result[len(result)-2:] == ".0" {
		result = result[:len(result)-2]
	}

	return result
}

// ParseUnits parses a decimal string of smallest units (as returned by
// balance APIs) into a big.Int. Returns false for malformed input.
func ParseUnits(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, false
	}
	return v, true
}
