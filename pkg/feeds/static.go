package feeds

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// StaticFeed quotes fixed prices from configuration. Quotes are always
// reported as updated at the time of the call.
type StaticFeed struct {
	*BaseFeed
	prices map[common.Address]decimal.Decimal
	clock  func() time.Time
}

var _ Feed = (*StaticFeed)(nil)

func init() {
	Register("static.fixed", NewStaticFeed)
}

// NewStaticFeed creates a static feed from assets: { "0xasset": "1.00" }.
func NewStaticFeed(config map[string]interface{}) (Feed, error) {
	assets, err := ParseAssetsFromMap(config)
	if err != nil {
		return nil, err
	}

	prices := make(map[common.Address]decimal.Decimal, len(assets))
	for asset, raw := range assets {
		d, err := decimal.NewFromString(raw)
		if err != nil || !d.IsPositive() {
			return nil, fmt.Errorf("%w: %s = %q", ErrInvalidPrice, asset.Hex(), raw)
		}
		prices[asset] = d
	}

	name := GetStringFromMap(config, "name")
	if name == "" {
		name = "static"
	}

	return &StaticFeed{
		BaseFeed: NewBaseFeed(name, FeedTypeStatic, assets, GetLoggerFromConfig(config)),
		prices:   prices,
		clock:    time.Now,
	}, nil
}

// Initialize marks the feed healthy.
func (f *StaticFeed) Initialize(_ context.Context) error {
	f.SetHealthy(true)
	return nil
}

// Close is a no-op.
func (f *StaticFeed) Close() error {
	return nil
}

// Quote returns the configured price of asset.
func (f *StaticFeed) Quote(_ context.Context, asset common.Address) (*big.Int, time.Time, error) {
	start := time.Now()
	price, ok := f.prices[asset]
	if !ok {
		return f.Record(Quote{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset.Hex()), start)
	}
	return f.Record(Quote{Asset: asset, Price: price, UpdatedAt: f.clock()}, nil, start)
}
