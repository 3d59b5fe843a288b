package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParsePrice parses a base-10 integer price string (wei or the smallest unit
// of the payment currency) into a big.Int. Leading and trailing whitespace is
// tolerated. Zero, negative, fractional, and non-decimal inputs are rejected
// with ErrInvalidPrice.
func ParsePrice(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidPrice)
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a base-10 integer", ErrInvalidPrice, s)
	}
	if n.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q must be positive", ErrInvalidPrice, s)
	}
	return n, nil
}

// FormatUnits renders a raw integer price as a decimal string scaled down by
// the given number of decimals, with trailing zeros removed (e.g.
// 1500000000000000000 at 18 decimals becomes "1.5"). A nil price renders as
// "0"; decimals <= 0 returns the raw integer form.
func FormatUnits(price *big.Int, decimals int) string {
	if price == nil {
		return "0"
	}
	if decimals <= 0 {
		return price.String()
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(price, scale, new(big.Int))

	if frac.Sign() == 0 {
		return whole.String()
	}

	fracStr := strings.TrimRight(fmt.Sprintf("%0*s", decimals, frac.String()), "0")
	return whole.String() + "." + fracStr
}

// NormalizeAddress lowercases and trims an address so that comparisons and
// storage are case-insensitive. EIP-55 checksum casing is deliberately
// discarded.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SameAddress reports whether two addresses refer to the same account,
// ignoring case.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}

// ValidAddress reports whether s is a well-formed 20-byte hex address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(strings.TrimSpace(s))
}
