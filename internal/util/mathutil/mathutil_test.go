package mathutil

import (
	"errors"
	"math"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		amount   uint64
		decimals uint8
		want     string
	}{
		{0, 9, "0"},
		{1, 9, "0.000000001"},
		{1_500_000_000, 9, "1.5"},
		{1_000_000_000, 9, "1"},
		{42, 0, "42"},
		{123456, 2, "1234.56"},
		{math.MaxUint64, 9, "18446744073.709551615"},
	}

	for _, tt := range tests {
		if got := FormatUnits(tt.amount, tt.decimals); got != tt.want {
			t.Errorf("FormatUnits(%d, %d) = %q, want %q", tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		decimals uint8
		want     uint64
		wantErr  error
	}{
		{"whole", "2", 9, 2_000_000_000, nil},
		{"fraction", "1.5", 9, 1_500_000_000, nil},
		{"leading dot", ".25", 2, 25, nil},
		{"smallest unit", "0.000000001", 9, 1, nil},
		{"zero decimals", "7", 0, 7, nil},
		{"too precise", "0.0000000001", 9, 0, ErrInvalidAmount},
		{"garbage", "1e9", 9, 0, ErrInvalidAmount},
		{"negative", "-1", 9, 0, ErrInvalidAmount},
		{"empty", "", 9, 0, ErrInvalidAmount},
		{"overflow", "18446744074", 9, 0, ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUnits(tt.value, tt.decimals)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ParseUnits() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUnits() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseUnits() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAddUint64(t *testing.T) {
	if got, err := AddUint64(1, 2); err != nil || got != 3 {
		t.Errorf("AddUint64(1, 2) = %d, %v", got, err)
	}
	if _, err := AddUint64(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("AddUint64() error = %v, want ErrOverflow", err)
	}
}

func TestConversions(t *testing.T) {
	if _, err := Uint64ToInt64(math.MaxUint64); !errors.Is(err, ErrOverflow) {
		t.Errorf("Uint64ToInt64() error = %v, want ErrOverflow", err)
	}
	if v, err := Uint64ToInt64(5); err != nil || v != 5 {
		t.Errorf("Uint64ToInt64(5) = %d, %v", v, err)
	}
	if _, err := IntToUint64(-1); !errors.Is(err, ErrOverflow) {
		t.Errorf("IntToUint64() error = %v, want ErrOverflow", err)
	}
}
