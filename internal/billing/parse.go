package billing

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrEmptyValue is returned for blank input, which is not the same as zero.
	ErrEmptyValue = errors.New("value is empty")
	// ErrNotANumber is returned when input cannot be read as a decimal number.
	ErrNotANumber = errors.New("value is not a number")
)

// ParseAmount reads a decimal number typed by a user. Both "." and "," are
// accepted as the decimal separator.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyValue
	}
	s = strings.ReplaceAll(s, ",", ".")
	digits := strings.ToLower(strings.TrimLeft(s, "+-"))
	if strings.HasPrefix(digits, "0x") {
		return 0, ErrNotANumber
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotANumber
	}
	return v, nil
}

// Round2 rounds x to two decimal places, half to even on the exact binary
// value. This matches how the stored history was produced.
func Round2(x float64) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	if err != nil {
		return x
	}
	return v
}
