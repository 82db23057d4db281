package evm

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/feeds"
)

// ChainlinkFeed quotes assets from Chainlink AggregatorV3 contracts.
type ChainlinkFeed struct {
	*feeds.BaseFeed
	rpcContract

	aggregators map[common.Address]common.Address
	decimals    map[common.Address]uint8
	decimalsMu  sync.Mutex
}

var _ feeds.Feed = (*ChainlinkFeed)(nil)

// NewChainlinkFeed creates a Chainlink feed.
// Config: rpc_url, assets: { "0xasset": "0xaggregator" }.
func NewChainlinkFeed(config map[string]interface{}) (feeds.Feed, error) {
	contract, err := newRPCContract(config)
	if err != nil {
		return nil, err
	}

	assets, err := feeds.ParseAssetsFromMap(config)
	if err != nil {
		return nil, err
	}
	aggregators := make(map[common.Address]common.Address, len(assets))
	for asset, hex := range assets {
		addr, err := feeds.ParseAddress(hex)
		if err != nil {
			return nil, err
		}
		aggregators[asset] = addr
	}

	name := feeds.GetStringFromMap(config, "name")
	if name == "" {
		name = "chainlink"
	}

	return &ChainlinkFeed{
		BaseFeed:    feeds.NewBaseFeed(name, feeds.FeedTypeEVM, assets, feeds.GetLoggerFromConfig(config)),
		rpcContract: contract,
		aggregators: aggregators,
		decimals:    make(map[common.Address]uint8),
	}, nil
}

// Initialize connects to the EVM RPC endpoint.
func (f *ChainlinkFeed) Initialize(ctx context.Context) error {
	if err := f.dial(ctx); err != nil {
		return err
	}
	f.SetHealthy(true)
	f.Logger().Info("Chainlink feed initialized", "aggregators", len(f.aggregators))
	return nil
}

// Close closes the RPC connection.
func (f *ChainlinkFeed) Close() error {
	f.close()
	return nil
}

// Quote reads the latest round of the aggregator bound to asset.
func (f *ChainlinkFeed) Quote(ctx context.Context, asset common.Address) (*big.Int, time.Time, error) {
	start := time.Now()
	q, err := f.quote(ctx, asset)
	return f.Record(q, err, start)
}

func (f *ChainlinkFeed) quote(ctx context.Context, asset common.Address) (feeds.Quote, error) {
	aggregator, ok := f.aggregators[asset]
	if !ok {
		_, err := f.Key(asset)
		return feeds.Quote{}, err
	}

	dec, err := f.aggregatorDecimals(ctx, aggregator)
	if err != nil {
		return feeds.Quote{}, err
	}
	round, err := f.latestRoundData(ctx, aggregator)
	if err != nil {
		return feeds.Quote{}, err
	}

	return feeds.Quote{
		Asset:     asset,
		Price:     feeds.ScaleInteger(round.Answer, int32(dec)),
		UpdatedAt: round.UpdatedAt,
	}, nil
}

func (f *ChainlinkFeed) aggregatorDecimals(ctx context.Context, aggregator common.Address) (uint8, error) {
	f.decimalsMu.Lock()
	defer f.decimalsMu.Unlock()

	if d, ok := f.decimals[aggregator]; ok {
		return d, nil
	}
	d, err := f.rpcContract.decimals(ctx, aggregator)
	if err != nil {
		return 0, err
	}
	f.decimals[aggregator] = d
	return d, nil
}
