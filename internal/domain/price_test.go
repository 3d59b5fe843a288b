package domain

import (
	"errors"
	"math/big"
	"testing"
)

func TestParsePrice(t *testing.T) {
	t.Run("valid integers", func(t *testing.T) {
		for _, s := range []string{"1", "1000", "1000000000000000000", " 42 "} {
			n, err := ParsePrice(s)
			if err != nil {
				t.Errorf("ParsePrice(%q) err = %v", s, err)
				continue
			}
			if n.Sign() <= 0 {
				t.Errorf("ParsePrice(%q) = %s, want positive", s, n)
			}
		}
	})

	t.Run("invalid inputs", func(t *testing.T) {
		for _, s := range []string{"", "0", "-5", "1.5", "abc", "0x10", "1e18", "1 000"} {
			if _, err := ParsePrice(s); !errors.Is(err, ErrInvalidPrice) {
				t.Errorf("ParsePrice(%q) err = %v, want ErrInvalidPrice", s, err)
			}
		}
	})

	t.Run("exceeds uint64", func(t *testing.T) {
		n, err := ParsePrice("340282366920938463463374607431768211456")
		if err != nil {
			t.Fatalf("ParsePrice: %v", err)
		}
		if n.String() != "340282366920938463463374607431768211456" {
			t.Errorf("lost precision: %s", n)
		}
	})
}

func TestFormatUnits(t *testing.T) {
	wei := func(s string) *big.Int {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			t.Fatalf("bad test input %q", s)
		}
		return n
	}

	cases := []struct {
		price    *big.Int
		decimals int
		want     string
	}{
		{wei("1500000000000000000"), 18, "1.5"},
		{wei("1000000000000000000"), 18, "1"},
		{wei("1"), 18, "0.000000000000000001"},
		{wei("1000"), 0, "1000"},
		{wei("1000"), -1, "1000"},
		{wei("123456"), 3, "123.456"},
		{wei("120000"), 3, "120"},
		{wei("102030"), 4, "10.203"},
		{nil, 18, "0"},
	}

	for _, tc := range cases {
		got := FormatUnits(tc.price, tc.decimals)
		if got != tc.want {
			t.Errorf("FormatUnits(%v, %d) = %q, want %q", tc.price, tc.decimals, got, tc.want)
		}
	}
}

func TestAddressHelpers(t *testing.T) {
	t.Run("normalize lowercases and trims", func(t *testing.T) {
		if got := NormalizeAddress(" 0xABCdef00 "); got != "0xabcdef00" {
			t.Errorf("NormalizeAddress = %q", got)
		}
	})

	t.Run("same address ignores case", func(t *testing.T) {
		if !SameAddress("0xABC", "0xabc") {
			t.Error("SameAddress should be case-insensitive")
		}
		if SameAddress("0xabc", "0xabd") {
			t.Error("different addresses must not match")
		}
	})

	t.Run("valid address check", func(t *testing.T) {
		if !ValidAddress("0x52908400098527886E0F7030069857D2E4169EE7") {
			t.Error("checksummed address should be valid")
		}
		if ValidAddress("0x123") || ValidAddress("not-an-address") {
			t.Error("short/garbage strings must be invalid")
		}
	})
}
