package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// NanoPerTon is the number of nano units in one whole coin.
const NanoPerTon = 1_000_000_000

// FormatNano renders a nano amount as a decimal coin string with
// trailing zeros trimmed.
func FormatNano(nano int64) string {
	sign := ""
	if nano < 0 {
		sign = "-"
		nano = -nano
	}
	whole := nano / NanoPerTon
	frac := nano % NanoPerTon
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return fmt.Sprintf("%s%d.%s", sign, whole, fracStr)
}

// ParseTON converts a decimal coin string like "1.5" into nano units.
func ParseTON(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	parts := strings.SplitN(s, ".", 2)
	whole, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %v", s, err)
	}

	var frac int64
	if len(parts) == 2 {
		fracStr := parts[1]
		if len(fracStr) > 9 {
			return 0, fmt.Errorf("amount %q has more than 9 decimal places", s)
		}
		fracStr += strings.Repeat("0", 9-len(fracStr))
		frac, err = strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %v", s, err)
		}
	}

	nano := whole*NanoPerTon + frac
	if neg {
		nano = -nano
	}
	return nano, nil
}
