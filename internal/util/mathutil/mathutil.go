package mathutil

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
)

var (
	ErrOverflow      = errors.New("value exceeds target type capacity")
	ErrInvalidAmount = errors.New("invalid decimal amount")
)

// LamportsPerSOL is the number of lamports in one SOL
const LamportsPerSOL = 1_000_000_000

func Uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("value %d overflows int64: %w", v, ErrOverflow)
	}
	return int64(v), nil
}

func IntToUint64(v int) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("negative value %d cannot convert to uint64: %w", v, ErrOverflow)
	}
	return uint64(v), nil
}

// AddUint64 adds two amounts, failing instead of wrapping
func AddUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("%d + %d: %w", a, b, ErrOverflow)
	}
	return a + b, nil
}

// FormatUnits renders a base-unit amount with the given number of decimals,
// trimming trailing zeros ("1500000000", 9 -> "1.5").
func FormatUnits(amount uint64, decimals uint8) string {
	s := new(big.Int).SetUint64(amount).String()
	if decimals == 0 {
		return s
	}

	d := int(decimals)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	whole, frac := s[:len(s)-d], strings.TrimRight(s[len(s)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// ParseUnits converts a decimal UI amount into base units
func ParseUnits(value string, decimals uint8) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, value, decimals)
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
			}
		}
	}

	n, ok := new(big.Int).SetString(whole+frac+strings.Repeat("0", int(decimals)-len(frac)), 10)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("%q with %d decimals: %w", value, decimals, ErrOverflow)
	}
	return n.Uint64(), nil
}
