package pricemodel

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// PeriodSeconds is the length of an anchor period.
const PeriodSeconds = 3600

var (
	// BASE is the fixed-point scale, 1e18 represents 1.0.
	BASE = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	halfBase = new(big.Int).Rsh(BASE, 1)
)

// Fraction returns num/den of BASE, e.g. Fraction(5, 100) is 5%.
func Fraction(num, den int64) *big.Int {
	v := new(big.Int).Mul(BASE, big.NewInt(num))
	return v.Quo(v, big.NewInt(den))
}

// CurrentPeriod returns the 1-indexed hour bucket containing now.
// Pre-epoch times fall into period 0, the "no period" value.
func CurrentPeriod(now time.Time) uint64 {
	unix := now.Unix()
	if unix < 0 {
		return 0
	}
	return uint64(unix)/PeriodSeconds + 1
}

// SwingBounds returns the rounded [min, max] band around anchor for the given swing.
func SwingBounds(anchor, swing *big.Int) (minPrice, maxPrice *big.Int) {
	up := new(big.Int).Add(BASE, swing)
	maxPrice = up.Mul(up, anchor)
	maxPrice.Add(maxPrice, halfBase)
	maxPrice.Quo(maxPrice, BASE)

	down := new(big.Int).Sub(BASE, swing)
	minPrice = down.Mul(down, anchor)
	minPrice.Add(minPrice, halfBase)
	minPrice.Quo(minPrice, BASE)
	return minPrice, maxPrice
}

// Clamp bounds requested to the swing band around anchor. A zero anchor has no band.
func Clamp(requested, anchor, swing *big.Int) *big.Int {
	if anchor.Sign() == 0 {
		return requested
	}
	minPrice, maxPrice := SwingBounds(anchor, swing)
	switch {
	case requested.Cmp(maxPrice) > 0:
		return maxPrice
	case requested.Cmp(minPrice) < 0:
		return minPrice
	default:
		return requested
	}
}

// Deviation returns |requested - price| * BASE / price. price must be nonzero.
func Deviation(requested, price *big.Int) *big.Int {
	d := new(big.Int).Sub(requested, price)
	d.Abs(d)
	d.Mul(d, BASE)
	return d.Quo(d, price)
}

// Decimals is the number of decimal places represented by BASE.
const Decimals = 18

// ToDecimal converts a fixed-point value to a decimal.
func ToDecimal(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(orZero(v), -Decimals)
}

// FromDecimal converts a decimal to a fixed-point value, truncating extra precision.
func FromDecimal(d decimal.Decimal) *big.Int {
	return d.Shift(Decimals).Truncate(0).BigInt()
}

// FitsFixed reports whether d has no more than Decimals fractional digits,
// i.e. converts to fixed point without truncation.
func FitsFixed(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Decimals))
}

// ParseFixed parses a non-negative decimal string such as "0.05" into a
// fixed-point value. Values finer than 1e-18 are rejected.
func ParseFixed(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative value %s", ErrInvalidParameter, s)
	}
	if !FitsFixed(d) {
		return nil, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidParameter, s, Decimals)
	}
	return FromDecimal(d), nil
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

// copyOf returns a private copy of v, zero for nil. Stored and returned
// values are always copies so callers cannot reach ledger state.
func copyOf(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func seconds(d time.Duration) time.Duration {
	return d.Truncate(time.Second)
}
