package usecase

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
)

func TestValidateAmount(t *testing.T) {
	minimum := decimal.NewFromInt(10)
	cases := []struct {
		amount string
		valid  bool
	}{
		{"10", true},
		{"10.01", true},
		{"9.99", false},
		{"0", false},
		{"-5", false},
	}

	for _, tc := range cases {
		err := ValidateAmount(decimal.RequireFromString(tc.amount), minimum)
		if tc.valid && err != nil {
			t.Errorf("amount %s: unexpected error %v", tc.amount, err)
		}
		if !tc.valid && !errors.Is(err, domainErrors.ErrValidation) {
			t.Errorf("amount %s: expected validation error, got %v", tc.amount, err)
		}
	}
}

func TestCalculateFee(t *testing.T) {
	cases := []struct {
		amount, percent, want string
	}{
		{"200", "1", "2"},
		{"1500", "1", "15"},
		{"100", "0", "0"},
		{"0.00000001", "50", "0.00000001"},
		{"33.333333333", "3", "1"},
	}
	for _, tc := range cases {
		got := CalculateFee(decimal.RequireFromString(tc.amount), decimal.RequireFromString(tc.percent))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("fee(%s, %s%%) = %s, want %s", tc.amount, tc.percent, got, tc.want)
		}
	}
}

func TestNormalizeAddressChecksums(t *testing.T) {
	valid := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, addr := range valid {
		got, err := NormalizeAddress(addr)
		if err != nil {
			t.Errorf("%s: unexpected error %v", addr, err)
			continue
		}
		if got != addr {
			t.Errorf("expected %s to round-trip, got %s", addr, got)
		}

		lowered, err := NormalizeAddress(strings.ToLower(addr))
		if err != nil || lowered != addr {
			t.Errorf("expected lowercase %s to normalize to %s, got %s (%v)", strings.ToLower(addr), addr, lowered, err)
		}
	}
}

func TestNormalizeAddressRejectsInvalid(t *testing.T) {
	cases := []string{
		"",
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe",
		"0xZZAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	}
	for _, addr := range cases {
		if _, err := NormalizeAddress(addr); !errors.Is(err, domainErrors.ErrValidation) {
			t.Errorf("%q: expected validation error, got %v", addr, err)
		}
	}
}
