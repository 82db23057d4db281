package feeds

import (
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/StrathCole/poster-oracle/pkg/logging"
	"github.com/StrathCole/poster-oracle/pkg/metrics"
	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

// BaseFeed provides the bookkeeping shared by feed implementations.
type BaseFeed struct {
	name     string
	feedType FeedType
	// asset -> feed-specific key (aggregator address, price id, ...)
	keys     map[common.Address]string
	quotes   map[common.Address]Quote
	quotesMu sync.RWMutex

	lastUpdate time.Time
	healthy    bool
	healthMu   sync.RWMutex
	logger     *logging.Logger
}

// NewBaseFeed creates a base feed serving the given assets.
func NewBaseFeed(name string, feedType FeedType, keys map[common.Address]string, logger *logging.Logger) *BaseFeed {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &BaseFeed{
		name:     name,
		feedType: feedType,
		keys:     keys,
		quotes:   make(map[common.Address]Quote),
		logger:   logger.With("feed", name),
	}
}

// Name returns the feed name
func (b *BaseFeed) Name() string {
	return b.name
}

// Type returns the feed type
func (b *BaseFeed) Type() FeedType {
	return b.feedType
}

// Logger returns the feed logger
func (b *BaseFeed) Logger() *logging.Logger {
	return b.logger
}

// Assets returns the served assets in address order.
func (b *BaseFeed) Assets() []common.Address {
	assets := make([]common.Address, 0, len(b.keys))
	for a := range b.keys {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Cmp(assets[j]) < 0
	})
	return assets
}

// Key returns the feed-specific key of asset.
func (b *BaseFeed) Key(asset common.Address) (string, error) {
	key, ok := b.keys[asset]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrUnknownAsset, asset.Hex(), b.name)
	}
	return key, nil
}

// IsHealthy returns whether the feed is healthy
func (b *BaseFeed) IsHealthy() bool {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.healthy
}

// SetHealthy sets the health status
func (b *BaseFeed) SetHealthy(healthy bool) {
	b.healthMu.Lock()
	defer b.healthMu.Unlock()
	b.healthy = healthy
}

// LastUpdate returns the last successful quote time
func (b *BaseFeed) LastUpdate() time.Time {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.lastUpdate
}

// LastQuote returns the most recent quote of asset.
func (b *BaseFeed) LastQuote(asset common.Address) (Quote, bool) {
	b.quotesMu.RLock()
	defer b.quotesMu.RUnlock()
	q, ok := b.quotes[asset]
	return q, ok
}

// Record stores the outcome of a quote and converts it to fixed point.
func (b *BaseFeed) Record(q Quote, err error, started time.Time) (*big.Int, time.Time, error) {
	metrics.RecordFeedQuote(b.name, err, time.Since(started))
	if err != nil {
		b.SetHealthy(false)
		return nil, time.Time{}, err
	}

	price, err := ToFixed(q.Price)
	if err != nil {
		b.SetHealthy(false)
		return nil, time.Time{}, fmt.Errorf("%s quote for %s: %w", b.name, q.Asset.Hex(), err)
	}

	q.Feed = b.name
	b.quotesMu.Lock()
	b.quotes[q.Asset] = q
	b.quotesMu.Unlock()

	b.healthMu.Lock()
	b.healthy = true
	b.lastUpdate = time.Now()
	b.healthMu.Unlock()

	return price, q.UpdatedAt, nil
}

// ToFixed converts a positive decimal price to an 18-decimal fixed-point value.
// Prices that truncate to zero are rejected.
func ToFixed(price decimal.Decimal) (*big.Int, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	v := pricemodel.FromDecimal(price)
	if v.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s is below 1e-%d", ErrInvalidPrice, price, pricemodel.Decimals)
	}
	return v, nil
}

// ScaleInteger interprets value as an integer with the given number of decimals.
func ScaleInteger(value *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(value, -decimals)
}
