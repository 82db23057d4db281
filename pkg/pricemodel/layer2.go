package pricemodel

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/logging"
)

// UptimeFeed reports the state of a layer-2 sequencer.
type UptimeFeed interface {
	// SequencerStatus returns whether the sequencer is up and since when it is in that state.
	SequencerStatus(ctx context.Context) (up bool, since time.Time, err error)
}

// Layer2Model wraps a price model and invalidates its prices while the
// sequencer is down or has been up for less than the grace period.
type Layer2Model struct {
	PriceModel

	uptime      UptimeFeed
	gracePeriod time.Duration
	logger      *logging.Logger
}

var (
	_ PriceModel = (*Layer2Model)(nil)
	_ Advisor    = (*Layer2Model)(nil)
)

// NewLayer2Model wraps inner with a sequencer check.
func NewLayer2Model(inner PriceModel, uptime UptimeFeed, gracePeriod time.Duration, logger *logging.Logger) *Layer2Model {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Layer2Model{
		PriceModel:  inner,
		uptime:      uptime,
		gracePeriod: gracePeriod,
		logger:      logger.With("model", inner.Name(), "layer2", true),
	}
}

// SequencerReady reports whether prices may be trusted at now.
func (m *Layer2Model) SequencerReady(ctx context.Context, now time.Time) bool {
	up, since, err := m.uptime.SequencerStatus(ctx)
	if err != nil {
		m.logger.Warn("Failed to read sequencer status", "error", err)
		return false
	}
	if !up {
		return false
	}
	return !now.Before(since.Add(m.gracePeriod))
}

// AssetPriceStatus returns the inner price, with status forced to false
// while the sequencer is not ready.
func (m *Layer2Model) AssetPriceStatus(ctx context.Context, asset common.Address, now time.Time) (*big.Int, bool) {
	price, ok := m.PriceModel.AssetPriceStatus(ctx, asset, now)
	if !ok {
		return price, false
	}
	return price, m.SequencerReady(ctx, now)
}

// ReadyToUpdate delegates to the inner model when it accepts posts.
func (m *Layer2Model) ReadyToUpdate(asset common.Address, requested, postSwing *big.Int, postBuffer time.Duration, now time.Time) bool {
	advisor, ok := m.PriceModel.(Advisor)
	if !ok {
		return false
	}
	return advisor.ReadyToUpdate(asset, requested, postSwing, postBuffer, now)
}
