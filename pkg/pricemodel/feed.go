package pricemodel

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/access"
	"github.com/StrathCole/poster-oracle/pkg/logging"
	"github.com/StrathCole/poster-oracle/pkg/metrics"
)

// FeedConfig configures a FeedModel.
type FeedConfig struct {
	Name          string
	Owner         common.Address
	ValidInterval time.Duration
	Logger        *logging.Logger
}

// FeedModel reads prices from external quote sources bound per asset.
// A quote is valid while its update time is within the asset's heartbeat.
type FeedModel struct {
	access.Ownable

	name   string
	logger *logging.Logger

	mu    sync.RWMutex
	state *feedState
}

type feedState struct {
	feeds     map[common.Address]Quoter
	staleness *StalenessPolicy
}

var _ PriceModel = (*FeedModel)(nil)

// NewFeedModel creates a feed model with no feeds bound.
func NewFeedModel(cfg FeedConfig) (*FeedModel, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: model name is required", ErrInvalidParameter)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNoopLogger()
	}
	return &FeedModel{
		Ownable: access.NewOwnable(cfg.Owner),
		name:    cfg.Name,
		logger:  cfg.Logger.With("model", cfg.Name),
		state: &feedState{
			feeds:     make(map[common.Address]Quoter),
			staleness: NewStalenessPolicy(cfg.ValidInterval),
		},
	}, nil
}

// Name returns the model name.
func (m *FeedModel) Name() string {
	return m.name
}

// IsPriceModel always reports true.
func (m *FeedModel) IsPriceModel() bool {
	return true
}

// Feed returns the quote source bound to asset.
func (m *FeedModel) Feed(asset common.Address) (Quoter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.state.feeds[asset]
	return q, ok
}

// Quote fetches the current quote of asset.
func (m *FeedModel) Quote(ctx context.Context, asset common.Address) (*big.Int, time.Time, error) {
	feed, ok := m.Feed(asset)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrNoFeed, asset.Hex())
	}

	start := time.Now()
	price, updatedAt, err := feed.Quote(ctx, asset)
	metrics.RecordFeedQuote(m.name, err, time.Since(start))
	if err != nil {
		return nil, time.Time{}, err
	}
	return price, updatedAt, nil
}

// AssetPriceStatus returns the quoted price and whether it is fresh at now.
// Quote failures read as (0, false).
func (m *FeedModel) AssetPriceStatus(ctx context.Context, asset common.Address, now time.Time) (*big.Int, bool) {
	price, updatedAt, err := m.Quote(ctx, asset)
	if err != nil {
		m.logger.Warn("Failed to quote asset", "asset", asset.Hex(), "error", err)
		return new(big.Int), false
	}
	if price.Sign() <= 0 {
		return new(big.Int), false
	}

	m.mu.RLock()
	expired := m.state.staleness.IsExpired(asset, updatedAt, now)
	m.mu.RUnlock()
	return price, !expired
}

// Execute applies a configuration command.
func (m *FeedModel) Execute(caller common.Address, cmd Command, _ time.Time) error {
	err := m.execute(caller, cmd)
	metrics.RecordCommand(cmd.Name(), err)
	return err
}

func (m *FeedModel) execute(caller common.Address, cmd Command) error {
	if err := m.RequireOwner(caller); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state

	var err error
	switch c := cmd.(type) {
	case SetAssetFeed:
		if c.Feed == nil {
			delete(s.feeds, c.Asset)
		} else {
			s.feeds[c.Asset] = c.Feed
		}
	case SetDefaultValidInterval:
		err = s.staleness.SetDefault(c.Interval)
	case SetAssetValidInterval:
		err = s.staleness.SetAssetOverride(c.Asset, c.Interval)
	case SetAssetValidIntervalBatch:
		err = s.staleness.SetAssetOverrides(c.Assets, c.Intervals)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd.Name())
	}
	if err != nil {
		return err
	}
	m.logger.Info("Model configuration changed", "command", cmd.Name())
	return nil
}

// Checkpoint captures the current state.
func (m *FeedModel) Checkpoint() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	feeds := make(map[common.Address]Quoter, len(m.state.feeds))
	for k, v := range m.state.feeds {
		feeds[k] = v
	}
	return &feedState{feeds: feeds, staleness: m.state.staleness.clone()}
}

// Rollback restores a state captured by Checkpoint.
func (m *FeedModel) Rollback(snap Snapshot) {
	s, ok := snap.(*feedState)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}
