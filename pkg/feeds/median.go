package feeds

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/metrics"
	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

// DefaultMaxDeviation is the relative distance from the median beyond which
// a source quote is rejected.
const DefaultMaxDeviation = "0.10"

// MedianFeed quotes the median of several other feeds, dropping sources that
// deviate too far from the first-pass median.
type MedianFeed struct {
	*BaseFeed
	sources      map[common.Address][]Feed
	maxDeviation *big.Int
	minSources   int
}

var _ Feed = (*MedianFeed)(nil)

type observation struct {
	source string
	price  *big.Int
	at     time.Time
}

func init() {
	Register("aggregate.median", NewMedianFeed)
}

// NewMedianFeed creates a median feed.
// Config: sources: [feed keys], max_deviation (optional), min_sources (optional),
// feeds: the already built feeds, keyed the way sources names them.
func NewMedianFeed(config map[string]interface{}) (Feed, error) {
	built, _ := config["feeds"].(map[string]Feed)

	names, err := getStringSlice(config, "sources")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: 'sources' key", ErrInvalidConfig)
	}

	sources := make(map[common.Address][]Feed)
	keys := make(map[common.Address]string)
	for _, n := range names {
		f, ok := built[n]
		if !ok {
			return nil, fmt.Errorf("%w: source %s", ErrUnknownFeed, n)
		}
		for _, asset := range f.Assets() {
			sources[asset] = append(sources[asset], f)
			if keys[asset] == "" {
				keys[asset] = f.Name()
			} else {
				keys[asset] += "," + f.Name()
			}
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoAssetsConfigured
	}

	dev := GetStringFromMap(config, "max_deviation")
	if dev == "" {
		dev = DefaultMaxDeviation
	}
	maxDeviation, err := pricemodel.ParseFixed(dev)
	if err != nil {
		return nil, fmt.Errorf("%w: max_deviation %q", ErrInvalidConfig, dev)
	}

	minSources := GetIntFromMap(config, "min_sources", 1)
	if minSources < 1 {
		return nil, fmt.Errorf("%w: min_sources must be at least 1", ErrInvalidConfig)
	}

	name := GetStringFromMap(config, "name")
	if name == "" {
		name = "median"
	}

	return &MedianFeed{
		BaseFeed:     NewBaseFeed(name, FeedTypeAggregate, keys, GetLoggerFromConfig(config)),
		sources:      sources,
		maxDeviation: maxDeviation,
		minSources:   minSources,
	}, nil
}

// Initialize marks the feed healthy. Source feeds are initialized by their owner.
func (f *MedianFeed) Initialize(_ context.Context) error {
	f.SetHealthy(true)
	return nil
}

// Close is a no-op; source feeds are closed by their owner.
func (f *MedianFeed) Close() error {
	return nil
}

// Quote asks every source serving asset and returns the filtered median.
// The reported update time is the oldest accepted source update.
func (f *MedianFeed) Quote(ctx context.Context, asset common.Address) (*big.Int, time.Time, error) {
	start := time.Now()
	srcs, ok := f.sources[asset]
	if !ok {
		return f.Record(Quote{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset.Hex()), start)
	}

	obs := make([]observation, 0, len(srcs))
	var errs []error
	for _, src := range srcs {
		price, at, err := src.Quote(ctx, asset)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		obs = append(obs, observation{source: src.Name(), price: price, at: at})
	}

	if len(obs) < f.minSources {
		err := fmt.Errorf("%w: %d of %d for %s", ErrNotEnoughQuotes, len(obs), f.minSources, asset.Hex())
		if len(errs) > 0 {
			err = errors.Join(append([]error{err}, errs...)...)
		}
		return f.Record(Quote{}, err, start)
	}
	for _, err := range errs {
		f.Logger().Warn("Source quote failed", "asset", asset.Hex(), "error", err)
	}

	price, at := f.aggregate(asset, obs)
	return f.Record(Quote{Asset: asset, Price: pricemodel.ToDecimal(price), UpdatedAt: at}, nil, start)
}

func (f *MedianFeed) aggregate(asset common.Address, obs []observation) (*big.Int, time.Time) {
	sort.Slice(obs, func(i, j int) bool {
		return obs[i].price.Cmp(obs[j].price) < 0
	})
	if len(obs) == 1 {
		return obs[0].price, obs[0].at
	}

	initial := median(obs)
	filtered := obs
	// deviation from a zero median is undefined, keep every quote
	if initial.Sign() != 0 {
		filtered = make([]observation, 0, len(obs))
		for _, o := range obs {
			dev := pricemodel.Deviation(o.price, initial)
			if dev.Cmp(f.maxDeviation) > 0 {
				f.Logger().Debug("Rejecting outlier",
					"asset", asset.Hex(),
					"source", o.source,
					"price", pricemodel.ToDecimal(o.price).String(),
					"median", pricemodel.ToDecimal(initial).String(),
					"deviation", pricemodel.ToDecimal(dev).String())
				metrics.RecordOutlierRejection(f.Name(), o.source)
				continue
			}
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		f.Logger().Warn("All quotes rejected as outliers, using initial median",
			"asset", asset.Hex(), "count", len(obs))
		filtered = obs
	}

	oldest := filtered[0].at
	for _, o := range filtered[1:] {
		if o.at.Before(oldest) {
			oldest = o.at
		}
	}
	return median(filtered), oldest
}

// median of a price-sorted, non-empty slice; even counts average the middle pair.
func median(obs []observation) *big.Int {
	n := len(obs)
	if n%2 == 1 {
		return new(big.Int).Set(obs[n/2].price)
	}
	m := new(big.Int).Add(obs[n/2-1].price, obs[n/2].price)
	return m.Rsh(m, 1)
}

func getStringSlice(config map[string]interface{}, key string) ([]string, error) {
	switch v := config[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return nil, fmt.Errorf("%w: %s entries must be strings", ErrInvalidConfig, key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list", ErrInvalidConfig, key)
	}
}
