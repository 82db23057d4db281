package pricemodel

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/poster-oracle/pkg/access"
)

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	stranger = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func newPoster(t *testing.T, maxSwing string) *PosterModel {
	t.Helper()
	m, err := NewPosterModel(PosterConfig{
		Name:          "poster",
		Owner:         owner,
		MaxSwing:      fixed(t, maxSwing),
		ValidInterval: time.Hour,
	})
	require.NoError(t, err)
	return m
}

func assertPrice(t *testing.T, want string, got *big.Int) {
	t.Helper()
	assert.Equal(t, fixed(t, want).String(), got.String())
}

func TestNewPosterModel(t *testing.T) {
	_, err := NewPosterModel(PosterConfig{Name: "p", MaxSwing: fixed(t, "0.5")})
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = NewPosterModel(PosterConfig{})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	m, err := NewPosterModel(PosterConfig{Name: "p", Owner: owner})
	require.NoError(t, err)
	assert.Equal(t, MaxMaxSwing, m.MaxSwing())
	assert.True(t, m.IsPriceModel())
	assert.Equal(t, owner, m.Owner())
}

func TestPosterModel_FirstPostAlwaysReady(t *testing.T) {
	m := newPoster(t, "0.05")

	for _, price := range []string{"0", "1", "1000000"} {
		assert.True(t, m.ReadyToUpdate(assetA, fixed(t, price), fixed(t, "0.5"), 0, t0))
	}
}

// Anchor 1.0, max swing 5%, live price 1.0.
func TestPosterModel_Scenario(t *testing.T) {
	m := newPoster(t, "0.05")
	postSwing := fixed(t, "0.05")

	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1"), t0))
	assertPrice(t, "1", m.Anchor(assetA).Price)

	now := t0.Add(time.Minute)
	assert.True(t, m.ReadyToUpdate(assetA, fixed(t, "1.05"), postSwing, 0, now))
	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1.05"), now))
	assertPrice(t, "1.05", m.AssetPrice(assetA))

	now = now.Add(time.Minute)
	assert.False(t, m.ReadyToUpdate(assetA, fixed(t, "1.03"), postSwing, 0, now))
	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1.03"), now))
	assertPrice(t, "1.03", m.AssetPrice(assetA))

	// still anchored to the first post of the period
	a := m.Anchor(assetA)
	assert.Equal(t, CurrentPeriod(t0), a.Period)
	assertPrice(t, "1", a.Price)
}

func TestPosterModel_ClampAgainstAnchor(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		want      string
	}{
		{"above max", "2", "1.05"},
		{"below min", "0.5", "0.95"},
		{"zero", "0", "0.95"},
		{"inside", "1.049", "1.049"},
		{"exactly max", "1.05", "1.05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newPoster(t, "0.05")
			require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1"), t0))

			require.NoError(t, m.SetPrice(owner, assetA, fixed(t, tt.requested), t0.Add(time.Second)))
			assertPrice(t, tt.want, m.AssetPrice(assetA))
		})
	}
}

func TestPosterModel_AnchorStableWithinPeriod(t *testing.T) {
	m := newPoster(t, "0.05")
	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1"), t0))
	before := m.Anchor(assetA)

	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1.04"), t0.Add(10*time.Minute)))
	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "0.97"), t0.Add(20*time.Minute)))

	after := m.Anchor(assetA)
	assert.Equal(t, before.Period, after.Period)
	assert.Equal(t, before.Price.String(), after.Price.String())
}

func TestPosterModel_AnchorRollsInNewPeriod(t *testing.T) {
	m := newPoster(t, "0.05")
	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1"), t0))

	// t0 is 800s into its hour
	next := t0.Add(2800 * time.Second)
	require.Equal(t, CurrentPeriod(t0)+1, CurrentPeriod(next))

	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "10"), next))
	assertPrice(t, "1.05", m.AssetPrice(assetA))

	a := m.Anchor(assetA)
	assert.Equal(t, CurrentPeriod(next), a.Period)
	assertPrice(t, "1.05", a.Price)
}

func TestPosterModel_PendingAnchor(t *testing.T) {
	t.Run("same period", func(t *testing.T) {
		m := newPoster(t, "0.05")
		require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1"), t0))
		require.NoError(t, m.SetPendingAnchor(owner, assetA, fixed(t, "1.2")))
		assertPrice(t, "1.2", m.PendingAnchor(assetA))

		require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1.26"), t0.Add(time.Minute)))
		assertPrice(t, "1.26", m.AssetPrice(assetA))

		a := m.Anchor(assetA)
		assert.Equal(t, CurrentPeriod(t0), a.Period)
		assertPrice(t, "1.2", a.Price)
		assert.Zero(t, m.PendingAnchor(assetA).Sign())
	})

	t.Run("new period", func(t *testing.T) {
		m := newPoster(t, "0.05")
		require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1"), t0))
		require.NoError(t, m.SetPendingAnchor(owner, assetA, fixed(t, "2")))

		next := t0.Add(time.Hour)
		require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "2.05"), next))
		assertPrice(t, "2.05", m.AssetPrice(assetA))

		a := m.Anchor(assetA)
		assert.Equal(t, CurrentPeriod(next), a.Period)
		assertPrice(t, "2", a.Price)
		assert.Zero(t, m.PendingAnchor(assetA).Sign())
	})

	t.Run("before first post", func(t *testing.T) {
		m := newPoster(t, "0.05")
		require.NoError(t, m.SetPendingAnchor(owner, assetA, fixed(t, "3")))

		require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "3"), t0))
		assertPrice(t, "3", m.AssetPrice(assetA))
		assertPrice(t, "3", m.Anchor(assetA).Price)
		assert.Zero(t, m.PendingAnchor(assetA).Sign())
	})
}

func TestPosterModel_ZeroFirstPost(t *testing.T) {
	m := newPoster(t, "0.05")

	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "0"), t0))
	price, ok := m.AssetPriceStatus(context.Background(), assetA, t0)
	assert.Zero(t, price.Sign())
	assert.True(t, ok)

	// nothing to clamp against yet
	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1"), t0.Add(time.Second)))
	assertPrice(t, "1", m.AssetPrice(assetA))
	assertPrice(t, "1", m.Anchor(assetA).Price)

	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "0.1"), t0.Add(2*time.Second)))
	assertPrice(t, "0.95", m.AssetPrice(assetA))
}

func TestPosterModel_ReadyToUpdate(t *testing.T) {
	m := newPoster(t, "0.05")
	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1"), t0))
	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1.03"), t0.Add(time.Minute)))
	posted := t0.Add(time.Minute)
	nextPeriod := t0.Add(2800 * time.Second)

	tests := []struct {
		name       string
		requested  string
		postSwing  string
		postBuffer time.Duration
		now        time.Time
		want       bool
	}{
		{"deviation below post swing", "1.04", "0.05", 0, posted, false},
		{"deviation at post swing", "1.0815", "0.05", 0, posted, true},
		{"clamped value differs from live price", "1.2", "0.01", 0, posted.Add(time.Second), true},
		{"unchanged in same period", "1.03", "0", 0, posted, false},
		{"unchanged after period ends", "1.03", "0", 0, nextPeriod, true},
		{"expiry within buffer", "1.03", "0.05", 100 * time.Second, posted.Add(3500 * time.Second), true},
		{"expiry beyond buffer", "1.03", "0.05", 99 * time.Second, posted.Add(3500 * time.Second), false},
		{"expired", "1.03", "0.05", 0, posted.Add(time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.ReadyToUpdate(assetA, fixed(t, tt.requested), fixed(t, tt.postSwing), tt.postBuffer, tt.now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPosterModel_ReadyToUpdateAtClampBound(t *testing.T) {
	m := newPoster(t, "0.05")
	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1"), t0))
	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1.05"), t0.Add(time.Second)))

	// any higher request clamps to the stored 1.05
	assert.False(t, m.ReadyToUpdate(assetA, fixed(t, "1.2"), fixed(t, "0.01"), 0, t0.Add(2*time.Second)))
}

func TestPosterModel_Reader(t *testing.T) {
	m := newPoster(t, "0.05")
	require.NoError(t, m.SetPrice(owner, assetB, fixed(t, "1"), t0))
	require.NoError(t, m.Execute(owner, SetReader{Asset: assetA, Reader: assetB}, t0))
	require.NoError(t, m.Execute(owner, SetAssetValidInterval{Asset: assetA, Interval: 10 * time.Second}, t0))

	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "2"), t0))
	assert.Zero(t, m.Post(assetA).Price.Sign(), "reader-linked asset must not store its own post")

	assert.False(t, m.ReadyToUpdate(assetA, fixed(t, "2"), fixed(t, "0"), time.Hour, t0))
	assertPrice(t, "1", m.AssetPrice(assetA))

	// expiry follows the reader's heartbeat
	price, ok := m.AssetPriceStatus(context.Background(), assetA, t0.Add(time.Minute))
	assertPrice(t, "1", price)
	assert.True(t, ok)
	assert.False(t, m.AssetStatus(assetA, t0.Add(time.Hour)))

	require.NoError(t, m.SetPrice(owner, assetB, fixed(t, "1.02"), t0.Add(time.Minute)))
	assert.Equal(t, m.AssetPrice(assetB).String(), m.AssetPrice(assetA).String())

	require.NoError(t, m.Execute(owner, SetReader{Asset: assetA}, t0))
	assert.Zero(t, m.AssetPrice(assetA).Sign())
}

func TestPosterModel_Status(t *testing.T) {
	m := newPoster(t, "0.05")
	ctx := context.Background()

	_, ok := m.AssetPriceStatus(ctx, assetA, t0)
	assert.False(t, ok, "never posted")

	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1"), t0))
	assert.True(t, m.AssetStatus(assetA, t0.Add(time.Hour-time.Second)))
	assert.False(t, m.AssetStatus(assetA, t0.Add(time.Hour)))
}

func TestPosterModel_Unauthorized(t *testing.T) {
	m := newPoster(t, "0.05")

	err := m.SetPrice(stranger, assetA, fixed(t, "1"), t0)
	require.ErrorIs(t, err, access.ErrUnauthorized)
	assert.Zero(t, m.AssetPrice(assetA).Sign())

	err = m.Execute(stranger, SetMaxSwing{MaxSwing: fixed(t, "0.01")}, t0)
	require.ErrorIs(t, err, access.ErrUnauthorized)
	assertPrice(t, "0.05", m.MaxSwing())

	assert.ErrorIs(t, m.SetPendingAnchor(stranger, assetA, BASE), access.ErrUnauthorized)
}

func TestPosterModel_SetPrices(t *testing.T) {
	m := newPoster(t, "0.05")

	err := m.SetPrices(owner, []common.Address{assetA, assetB}, []*big.Int{BASE}, t0)
	require.ErrorIs(t, err, ErrLengthMismatch)

	err = m.SetPrices(owner, []common.Address{assetA, assetB}, []*big.Int{BASE, nil}, t0)
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.Zero(t, m.AssetPrice(assetA).Sign())

	require.NoError(t, m.SetPrices(owner, []common.Address{assetA, assetB}, []*big.Int{BASE, fixed(t, "2")}, t0))
	assertPrice(t, "1", m.AssetPrice(assetA))
	assertPrice(t, "2", m.AssetPrice(assetB))
}

func TestPosterModel_RejectsNegativePrices(t *testing.T) {
	negative := big.NewInt(-1)

	tests := []struct {
		name string
		run  func(m *PosterModel) error
	}{
		{"set price", func(m *PosterModel) error {
			return m.SetPrice(owner, assetA, negative, t0)
		}},
		{"set prices", func(m *PosterModel) error {
			return m.SetPrices(owner, []common.Address{assetA, assetB}, []*big.Int{BASE, negative}, t0)
		}},
		{"pending anchor", func(m *PosterModel) error {
			return m.SetPendingAnchor(owner, assetA, negative)
		}},
		{"execute set price", func(m *PosterModel) error {
			return m.Execute(owner, SetPrice{Asset: assetA, Price: negative}, t0)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newPoster(t, "0.05")
			require.ErrorIs(t, tt.run(m), ErrInvalidParameter)

			assert.Zero(t, m.AssetPrice(assetA).Sign())
			assert.True(t, m.Post(assetA).Timestamp.IsZero())
			assert.Zero(t, m.PendingAnchor(assetA).Sign())
			assert.Zero(t, m.Anchor(assetA).Price.Sign())
		})
	}

	m := newPoster(t, "0.05")
	require.NoError(t, m.SetPendingAnchor(owner, assetA, nil), "nil clears the pending anchor")
}

func TestPosterModel_StoredValuesArePrivate(t *testing.T) {
	m := newPoster(t, "0.05")

	price := fixed(t, "1")
	require.NoError(t, m.SetPrice(owner, assetA, price, t0))
	price.SetInt64(7)
	assertPrice(t, "1", m.AssetPrice(assetA))
	assertPrice(t, "1", m.Anchor(assetA).Price)

	pending := fixed(t, "2")
	require.NoError(t, m.SetPendingAnchor(owner, assetB, pending))
	pending.SetInt64(7)
	assertPrice(t, "2", m.PendingAnchor(assetB))

	swing := fixed(t, "0.02")
	require.NoError(t, m.Execute(owner, SetAssetMaxSwing{Asset: assetA, MaxSwing: swing}, t0))
	swing.SetInt64(7)
	assertPrice(t, "0.02", m.AssetMaxSwing(assetA))

	tests := []struct {
		name string
		read func() *big.Int
		want string
	}{
		{"asset price", func() *big.Int { return m.AssetPrice(assetA) }, "1"},
		{"price status", func() *big.Int {
			p, _ := m.AssetPriceStatus(context.Background(), assetA, t0)
			return p
		}, "1"},
		{"post", func() *big.Int { return m.Post(assetA).Price }, "1"},
		{"anchor", func() *big.Int { return m.Anchor(assetA).Price }, "1"},
		{"pending anchor", func() *big.Int { return m.PendingAnchor(assetB) }, "2"},
		{"max swing", m.MaxSwing, "0.05"},
		{"asset max swing", func() *big.Int { return m.AssetMaxSwing(assetA) }, "0.02"},
		{"effective max swing", func() *big.Int { return m.EffectiveMaxSwing(assetA) }, "0.02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.read().SetInt64(7)
			assertPrice(t, tt.want, tt.read())
		})
	}
}

func TestPosterModel_Execute(t *testing.T) {
	m := newPoster(t, "0.05")

	require.NoError(t, m.Execute(owner, SetMaxSwing{MaxSwing: fixed(t, "0.02")}, t0))
	assertPrice(t, "0.02", m.MaxSwing())

	require.NoError(t, m.Execute(owner, SetAssetMaxSwing{Asset: assetA, MaxSwing: fixed(t, "0.01")}, t0))
	assertPrice(t, "0.01", m.AssetMaxSwing(assetA))
	assertPrice(t, "0.01", m.EffectiveMaxSwing(assetA))

	err := m.Execute(owner, SetAssetMaxSwingBatch{
		Assets:    []common.Address{assetB, assetC},
		MaxSwings: []*big.Int{fixed(t, "0.03"), fixed(t, "0.3")},
	}, t0)
	require.ErrorIs(t, err, ErrOutOfRange)
	assert.Zero(t, m.AssetMaxSwing(assetB).Sign())

	require.NoError(t, m.Execute(owner, SetDefaultValidInterval{Interval: 2 * time.Hour}, t0))
	assert.Equal(t, 2*time.Hour, m.DefaultValidInterval())

	require.NoError(t, m.Execute(owner, SetAssetValidIntervalBatch{
		Assets:    []common.Address{assetA, assetB},
		Intervals: []time.Duration{time.Minute, 2 * time.Minute},
	}, t0))
	assert.Equal(t, 2*time.Minute, m.AssetValidInterval(assetB))

	require.NoError(t, m.Execute(owner, SetReaderBatch{
		Assets:  []common.Address{assetA, assetB},
		Readers: []common.Address{assetC, assetC},
	}, t0))
	reader, ok := m.Reader(assetB)
	require.True(t, ok)
	assert.Equal(t, assetC, reader)

	require.NoError(t, m.Execute(owner, SetPrice{Asset: assetC, Price: BASE}, t0))
	assertPrice(t, "1", m.AssetPrice(assetA))

	err = m.Execute(owner, SetAssetFeed{Asset: assetA}, t0)
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
}

func TestPosterModel_Rollback(t *testing.T) {
	m := newPoster(t, "0.05")
	require.NoError(t, m.SetPrice(owner, assetA, BASE, t0))

	snap := m.Checkpoint()
	require.NoError(t, m.SetPrice(owner, assetA, fixed(t, "1.01"), t0.Add(time.Second)))
	require.NoError(t, m.Execute(owner, SetMaxSwing{MaxSwing: fixed(t, "0.02")}, t0))
	require.NoError(t, m.SetPendingAnchor(owner, assetB, BASE))

	m.Rollback(snap)
	assertPrice(t, "1", m.AssetPrice(assetA))
	assertPrice(t, "0.05", m.MaxSwing())
	assert.Zero(t, m.PendingAnchor(assetB).Sign())
}
