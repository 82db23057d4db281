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

// PricePost is the last price stored for an asset.
type PricePost struct {
	Price     *big.Int
	Period    uint64
	Timestamp time.Time
}

// PosterConfig configures a PosterModel.
type PosterConfig struct {
	Name          string
	Owner         common.Address
	MaxSwing      *big.Int
	ValidInterval time.Duration
	Logger        *logging.Logger
}

// PosterModel stores prices posted by its owner, bounding every post to a
// swing band around the hourly anchor.
type PosterModel struct {
	access.Ownable

	name   string
	logger *logging.Logger

	mu    sync.RWMutex
	state *ledgerState
}

type ledgerState struct {
	swing     *SwingPolicy
	staleness *StalenessPolicy
	readers   *ReaderIndirection
	anchors   *AnchorStore
	posts     map[common.Address]PricePost
}

var (
	_ PriceModel = (*PosterModel)(nil)
	_ Advisor    = (*PosterModel)(nil)
)

// NewPosterModel creates a poster model.
func NewPosterModel(cfg PosterConfig) (*PosterModel, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: model name is required", ErrInvalidParameter)
	}
	if cfg.MaxSwing == nil {
		cfg.MaxSwing = MaxMaxSwing
	}
	if err := checkSwingRange(cfg.MaxSwing); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNoopLogger()
	}

	return &PosterModel{
		Ownable: access.NewOwnable(cfg.Owner),
		name:    cfg.Name,
		logger:  cfg.Logger.With("model", cfg.Name),
		state: &ledgerState{
			swing:     NewSwingPolicy(cfg.MaxSwing),
			staleness: NewStalenessPolicy(cfg.ValidInterval),
			readers:   NewReaderIndirection(),
			anchors:   NewAnchorStore(),
			posts:     make(map[common.Address]PricePost),
		},
	}, nil
}

// Name returns the model name.
func (m *PosterModel) Name() string {
	return m.name
}

// IsPriceModel always reports true.
func (m *PosterModel) IsPriceModel() bool {
	return true
}

// ReadyToUpdate reports whether posting requested for asset at now is worth
// doing: the price moved by at least postSwing and the stored value would
// change, or the stored value expires within postBuffer.
func (m *PosterModel) ReadyToUpdate(asset common.Address, requested, postSwing *big.Int, postBuffer time.Duration, now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.state
	if _, ok := s.readers.Reader(asset); ok {
		return false
	}

	post := s.post(asset)
	if post.Price.Sign() == 0 {
		return true
	}

	requested = orZero(requested)
	anchorPrice, period := s.anchors.Effective(asset)
	clamped := Clamp(requested, anchorPrice, s.swing.Effective(asset))

	status := Deviation(requested, post.Price).Cmp(orZero(postSwing)) >= 0 &&
		(clamped.Cmp(post.Price) != 0 ||
			(period != CurrentPeriod(now) && post.Price.Cmp(anchorPrice) != 0))

	return status || s.staleness.IsExpired(asset, post.Timestamp, now.Add(seconds(postBuffer)))
}

// SetPrice stores requested for asset, clamped to the anchor band.
func (m *PosterModel) SetPrice(caller, asset common.Address, requested *big.Int, now time.Time) error {
	if err := m.RequireOwner(caller); err != nil {
		return err
	}
	if err := checkPrice(requested); err != nil {
		return fmt.Errorf("%w for %s", err, asset.Hex())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPrice(m.state, asset, requested, now)
	return nil
}

// SetPrices stores several prices. Either all are stored or none.
func (m *PosterModel) SetPrices(caller common.Address, assets []common.Address, prices []*big.Int, now time.Time) error {
	if err := m.RequireOwner(caller); err != nil {
		return err
	}
	if len(assets) != len(prices) {
		return fmt.Errorf("%w: %d assets, %d prices", ErrLengthMismatch, len(assets), len(prices))
	}
	for i, p := range prices {
		if err := checkPrice(p); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, asset := range assets {
		m.setPrice(m.state, asset, prices[i], now)
	}
	return nil
}

func (m *PosterModel) setPrice(s *ledgerState, asset common.Address, requested *big.Int, now time.Time) {
	if reader, ok := s.readers.Reader(asset); ok {
		m.logger.Debug("Ignoring price for asset with reader", "asset", asset.Hex(), "reader", reader.Hex())
		return
	}

	anchorPrice, _ := s.anchors.Effective(asset)
	clamped := copyOf(Clamp(requested, anchorPrice, s.swing.Effective(asset)))
	if c := clamped.Cmp(requested); c != 0 {
		bound := "max"
		if c > 0 {
			bound = "min"
		}
		m.logger.Debug("Clamped posted price",
			"asset", asset.Hex(),
			"requested", ToDecimal(requested).String(),
			"stored", ToDecimal(clamped).String(),
			"anchor", ToDecimal(anchorPrice).String())
		metrics.RecordClamp(m.name, asset.Hex(), bound)
	}

	period := CurrentPeriod(now)
	s.posts[asset] = PricePost{Price: clamped, Period: period, Timestamp: now}
	metrics.RecordPricePost(m.name, asset.Hex(), ToDecimal(clamped).InexactFloat64())

	if reason := s.anchors.Roll(asset, clamped, period); reason != rollNone {
		a := s.anchors.Anchor(asset)
		m.logger.Debug("Anchor updated",
			"asset", asset.Hex(),
			"period", a.Period,
			"price", ToDecimal(a.Price).String(),
			"reason", reason)
		metrics.RecordAnchorRoll(m.name, reason)
	}
}

// SetPendingAnchor schedules price as the anchor of the next post of asset.
func (m *PosterModel) SetPendingAnchor(caller, asset common.Address, price *big.Int) error {
	if err := m.RequireOwner(caller); err != nil {
		return err
	}
	if price != nil && price.Sign() < 0 {
		return fmt.Errorf("%w: negative pending anchor %s for %s", ErrInvalidParameter, price, asset.Hex())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.anchors.SetPending(asset, orZero(price))
	m.logger.Info("Pending anchor set", "asset", asset.Hex(), "price", ToDecimal(price).String())
	return nil
}

// AssetPrice returns the price read for asset, following its reader.
func (m *PosterModel) AssetPrice(asset common.Address) *big.Int {
	price, _ := m.priceStatus(asset, time.Time{})
	return price
}

// AssetStatus reports whether the price read for asset is unexpired at now.
func (m *PosterModel) AssetStatus(asset common.Address, now time.Time) bool {
	_, ok := m.priceStatus(asset, now)
	return ok
}

// AssetPriceStatus returns the price read for asset and its status at now.
func (m *PosterModel) AssetPriceStatus(_ context.Context, asset common.Address, now time.Time) (*big.Int, bool) {
	return m.priceStatus(asset, now)
}

func (m *PosterModel) priceStatus(asset common.Address, now time.Time) (*big.Int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.state
	if reader, ok := s.readers.Reader(asset); ok {
		asset = reader
	}
	post, ok := s.posts[asset]
	if !ok {
		return new(big.Int), false
	}
	return copyOf(post.Price), !s.staleness.IsExpired(asset, post.Timestamp, now)
}

// Post returns the asset's own stored post, ignoring any reader.
func (m *PosterModel) Post(asset common.Address) PricePost {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.post(asset)
}

// Anchor returns the stored anchor of asset.
func (m *PosterModel) Anchor(asset common.Address) Anchor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.anchors.Anchor(asset)
}

// PendingAnchor returns the pending anchor of asset, zero when unset.
func (m *PosterModel) PendingAnchor(asset common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.anchors.Pending(asset)
}

// MaxSwing returns the default max swing.
func (m *PosterModel) MaxSwing() *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.swing.Default()
}

// AssetMaxSwing returns the raw max swing override of asset, zero when unset.
func (m *PosterModel) AssetMaxSwing(asset common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.swing.Override(asset)
}

// EffectiveMaxSwing returns the max swing applied to asset.
func (m *PosterModel) EffectiveMaxSwing(asset common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.swing.Effective(asset)
}

// DefaultValidInterval returns the default heartbeat.
func (m *PosterModel) DefaultValidInterval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.staleness.Default()
}

// AssetValidInterval returns the raw heartbeat override of asset, zero when unset.
func (m *PosterModel) AssetValidInterval(asset common.Address) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.staleness.Override(asset)
}

// Reader returns the reader of asset, if any.
func (m *PosterModel) Reader(asset common.Address) (common.Address, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.readers.Reader(asset)
}

// Execute applies a configuration or posting command.
func (m *PosterModel) Execute(caller common.Address, cmd Command, now time.Time) error {
	err := m.execute(caller, cmd, now)
	metrics.RecordCommand(cmd.Name(), err)
	return err
}

func (m *PosterModel) execute(caller common.Address, cmd Command, now time.Time) error {
	switch c := cmd.(type) {
	case SetPrice:
		return m.SetPrice(caller, c.Asset, c.Price, now)
	case SetPrices:
		return m.SetPrices(caller, c.Assets, c.Prices, now)
	case SetPendingAnchor:
		return m.SetPendingAnchor(caller, c.Asset, c.Price)
	}

	if err := m.RequireOwner(caller); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.configure(m.state, cmd); err != nil {
		return err
	}
	m.logger.Info("Model configuration changed", "command", cmd.Name())
	return nil
}

func (m *PosterModel) configure(s *ledgerState, cmd Command) error {
	switch c := cmd.(type) {
	case SetMaxSwing:
		return s.swing.SetDefault(orZero(c.MaxSwing))
	case SetAssetMaxSwing:
		return s.swing.SetAssetOverride(c.Asset, orZero(c.MaxSwing))
	case SetAssetMaxSwingBatch:
		return s.swing.SetAssetOverrides(c.Assets, zeroNils(c.MaxSwings))
	case SetDefaultValidInterval:
		return s.staleness.SetDefault(c.Interval)
	case SetAssetValidInterval:
		return s.staleness.SetAssetOverride(c.Asset, c.Interval)
	case SetAssetValidIntervalBatch:
		return s.staleness.SetAssetOverrides(c.Assets, c.Intervals)
	case SetReader:
		return s.readers.SetReader(c.Asset, c.Reader)
	case SetReaderBatch:
		return s.readers.SetReaders(c.Assets, c.Readers)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd.Name())
	}
}

// Checkpoint captures the current state.
func (m *PosterModel) Checkpoint() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Rollback restores a state captured by Checkpoint.
func (m *PosterModel) Rollback(snap Snapshot) {
	s, ok := snap.(*ledgerState)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (s *ledgerState) post(asset common.Address) PricePost {
	p := s.posts[asset]
	p.Price = copyOf(p.Price)
	return p
}

func (s *ledgerState) clone() *ledgerState {
	posts := make(map[common.Address]PricePost, len(s.posts))
	for k, v := range s.posts {
		posts[k] = v
	}
	return &ledgerState{
		swing:     s.swing.clone(),
		staleness: s.staleness.clone(),
		readers:   s.readers.clone(),
		anchors:   s.anchors.clone(),
		posts:     posts,
	}
}

// checkPrice rejects missing and negative prices.
func checkPrice(p *big.Int) error {
	switch {
	case p == nil:
		return fmt.Errorf("%w: missing price", ErrInvalidParameter)
	case p.Sign() < 0:
		return fmt.Errorf("%w: negative price %s", ErrInvalidParameter, p)
	}
	return nil
}

func zeroNils(vs []*big.Int) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = orZero(v)
	}
	return out
}
