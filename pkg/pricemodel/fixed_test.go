package pricemodel

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// t0 is 800 seconds into hour period 472223.
var t0 = time.Unix(1_700_000_000, 0)

func fixed(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := ParseFixed(s)
	require.NoError(t, err)
	return v
}

func TestCurrentPeriod(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want uint64
	}{
		{"epoch", time.Unix(0, 0), 1},
		{"end of first hour", time.Unix(3599, 0), 1},
		{"second hour", time.Unix(3600, 0), 2},
		{"fixture time", t0, 472223},
		{"pre-epoch", time.Unix(-1, 0), 0},
		{"far pre-epoch", time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentPeriod(tt.now))
		})
	}
}

func TestSwingBounds(t *testing.T) {
	minPrice, maxPrice := SwingBounds(fixed(t, "1"), fixed(t, "0.05"))
	assert.Equal(t, fixed(t, "0.95"), minPrice)
	assert.Equal(t, fixed(t, "1.05"), maxPrice)

	// 5.5 and 4.5 wei round half up
	minPrice, maxPrice = SwingBounds(big.NewInt(5), fixed(t, "0.1"))
	assert.Equal(t, big.NewInt(5), minPrice)
	assert.Equal(t, big.NewInt(6), maxPrice)
}

func TestClamp(t *testing.T) {
	anchor := fixed(t, "1")
	swing := fixed(t, "0.05")

	tests := []struct {
		name      string
		requested string
		anchor    *big.Int
		want      string
	}{
		{"within band", "1.03", anchor, "1.03"},
		{"above band", "2", anchor, "1.05"},
		{"below band", "0.5", anchor, "0.95"},
		{"zero requested", "0", anchor, "0.95"},
		{"no anchor", "10", new(big.Int), "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clamp(fixed(t, tt.requested), tt.anchor, swing)
			assert.Equal(t, fixed(t, tt.want), got)
		})
	}
}

func TestDeviation(t *testing.T) {
	assert.Equal(t, fixed(t, "0.05"), Deviation(fixed(t, "1.05"), fixed(t, "1")))
	assert.Equal(t, fixed(t, "0.05"), Deviation(fixed(t, "0.95"), fixed(t, "1")))
	assert.Equal(t, 0, new(big.Int).Cmp(Deviation(fixed(t, "1"), fixed(t, "1"))))
}

func TestParseFixed(t *testing.T) {
	v, err := ParseFixed("1.05")
	require.NoError(t, err)
	assert.Equal(t, "1050000000000000000", v.String())

	_, err = ParseFixed("-1")
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = ParseFixed("abc")
	assert.Error(t, err)

	assert.Equal(t, "1.05", ToDecimal(v).String())

	v, err = ParseFixed("0.100000000000000000000")
	require.NoError(t, err, "trailing zeros beyond 18 decimals are exact")
	assert.Equal(t, Fraction(1, 10).String(), v.String())

	_, err = ParseFixed("0.0500000000000000001")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
