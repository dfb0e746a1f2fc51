package core

import (
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	ratePrecision int32 = 6  // decimal places kept when displaying fee rates
	TokenDecimals int32 = 18 // smallest-unit exponent of the settlement token
)

// ParseAmount parses a base-10 integer amount in the token's smallest unit.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return a, errors.Wrapf(ErrInvalidParameters, "amount %q: %v", s, err)
	}
	if !d.IsInteger() || d.IsNegative() {
		return a, errors.Wrapf(ErrInvalidParameters, "amount %q must be a non-negative integer", s)
	}
	v, overflow := uint256.FromBig(d.BigInt())
	if overflow {
		return a, errors.Wrapf(ErrInvalidParameters, "amount %q overflows 256 bits", s)
	}
	return *v, nil
}

// TokensToUnits converts a human token quantity such as "1.5" into smallest
// units using TokenDecimals.
func TokensToUnits(tokens string) (Amount, error) {
	var a Amount
	d, err := decimal.NewFromString(strings.TrimSpace(tokens))
	if err != nil {
		return a, errors.Wrapf(ErrInvalidParameters, "token quantity %q: %v", tokens, err)
	}
	return ParseAmount(d.Shift(TokenDecimals).String())
}

// FormatUnits renders a smallest-unit amount as a human token quantity.
func FormatUnits(a Amount) string {
	return decimal.NewFromBigInt(a.ToBig(), -TokenDecimals).String()
}

// FormatAmount renders a smallest-unit amount as a base-10 integer string.
func FormatAmount(a Amount) string {
	return a.ToBig().String()
}

// AmountFromUint64 is a convenience constructor for small amounts.
func AmountFromUint64(v uint64) Amount {
	var a Amount
	a.SetUint64(v)
	return a
}
