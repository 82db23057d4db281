package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/StrathCole/poster-oracle/pkg/feeds"
)

// Uniswap V2 Pair ABI (only getReserves function).
const pairABIJSON = `[{
	"constant": true,
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"internalType": "uint112", "name": "reserve0", "type": "uint112"},
		{"internalType": "uint112", "name": "reserve1", "type": "uint112"},
		{"internalType": "uint32", "name": "blockTimestampLast", "type": "uint32"}
	],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

var pairABI = mustParseABI(pairABIJSON)

// PairConfig holds the pool an asset is priced from.
type PairConfig struct {
	Asset       common.Address
	PairAddress common.Address
	Decimals0   int
	Decimals1   int
	// Invert prices token1 in units of token0.
	Invert bool
}

// PairFeed quotes assets from the spot price of Uniswap V2 style pairs.
type PairFeed struct {
	*feeds.BaseFeed
	rpcContract
	pairs map[common.Address]PairConfig
}

var _ feeds.Feed = (*PairFeed)(nil)

// NewPairFeed creates an AMM pair feed.
// Config: rpc_url, pairs: [{asset, pair_address, decimals0, decimals1, invert}].
func NewPairFeed(config map[string]interface{}) (feeds.Feed, error) {
	contract, err := newRPCContract(config)
	if err != nil {
		return nil, err
	}

	pairsRaw, ok := config["pairs"].([]interface{})
	if !ok || len(pairsRaw) == 0 {
		return nil, ErrPairsConfigRequired
	}

	pairs := make(map[common.Address]PairConfig, len(pairsRaw))
	keys := make(map[common.Address]string, len(pairsRaw))
	for i, pairRaw := range pairsRaw {
		pairMap, ok := pairRaw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: pair at index %d is not an object", feeds.ErrInvalidConfig, i)
		}

		asset, err := feeds.ParseAddress(feeds.GetStringFromMap(pairMap, "asset"))
		if err != nil {
			return nil, fmt.Errorf("pair[%d] asset: %w", i, err)
		}
		pairAddr, err := feeds.ParseAddress(feeds.GetStringFromMap(pairMap, "pair_address"))
		if err != nil {
			return nil, fmt.Errorf("pair[%d] pair_address: %w", i, err)
		}

		pairs[asset] = PairConfig{
			Asset:       asset,
			PairAddress: pairAddr,
			Decimals0:   feeds.GetIntFromMap(pairMap, "decimals0", 18),
			Decimals1:   feeds.GetIntFromMap(pairMap, "decimals1", 18),
			Invert:      feeds.GetBoolFromMap(pairMap, "invert"),
		}
		keys[asset] = pairAddr.Hex()
	}

	name := feeds.GetStringFromMap(config, "name")
	if name == "" {
		name = "pair"
	}

	return &PairFeed{
		BaseFeed:    feeds.NewBaseFeed(name, feeds.FeedTypeEVM, keys, feeds.GetLoggerFromConfig(config)),
		rpcContract: contract,
		pairs:       pairs,
	}, nil
}

// Initialize connects to the EVM RPC endpoint.
func (f *PairFeed) Initialize(ctx context.Context) error {
	if err := f.dial(ctx); err != nil {
		return err
	}
	f.SetHealthy(true)
	return nil
}

// Close closes the RPC connection.
func (f *PairFeed) Close() error {
	f.close()
	return nil
}

// Quote reads the reserves of the pair bound to asset.
func (f *PairFeed) Quote(ctx context.Context, asset common.Address) (*big.Int, time.Time, error) {
	start := time.Now()
	q, err := f.quote(ctx, asset)
	return f.Record(q, err, start)
}

func (f *PairFeed) quote(ctx context.Context, asset common.Address) (feeds.Quote, error) {
	pair, ok := f.pairs[asset]
	if !ok {
		_, err := f.Key(asset)
		return feeds.Quote{}, err
	}

	reserves, err := f.getReserves(ctx, pair.PairAddress)
	if err != nil {
		return feeds.Quote{}, err
	}

	price, err := calculatePrice(reserves.Reserve0, reserves.Reserve1, pair.Decimals0, pair.Decimals1)
	if err != nil {
		return feeds.Quote{}, fmt.Errorf("pair %s: %w", pair.PairAddress.Hex(), err)
	}
	if pair.Invert {
		price = decimal.NewFromInt(1).DivRound(price, 36)
	}

	return feeds.Quote{
		Asset:     asset,
		Price:     price,
		UpdatedAt: time.Unix(int64(reserves.BlockTimestampLast), 0),
	}, nil
}

// Reserves holds the pair reserves.
type Reserves struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// getReserves calls the getReserves() function on a Uniswap V2 pair contract.
func (f *PairFeed) getReserves(ctx context.Context, pairAddr common.Address) (*Reserves, error) {
	out, err := f.call(ctx, pairABI, pairAddr, "getReserves")
	if err != nil {
		return nil, err
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("%w: getReserves returned %d values", ErrUnexpectedOutput, len(out))
	}

	reserve0, ok0 := out[0].(*big.Int)
	reserve1, ok1 := out[1].(*big.Int)
	ts, ok2 := out[2].(uint32)
	if !ok0 || !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: getReserves types", ErrUnexpectedOutput)
	}

	return &Reserves{
		Reserve0:           reserve0,
		Reserve1:           reserve1,
		BlockTimestampLast: ts,
	}, nil
}

// calculatePrice calculates the spot price of token0 in token1.
// Price = (reserve1 / 10^decimals1) / (reserve0 / 10^decimals0).
func calculatePrice(reserve0, reserve1 *big.Int, decimals0, decimals1 int) (decimal.Decimal, error) {
	if reserve0.Sign() == 0 || reserve1.Sign() == 0 {
		return decimal.Zero, ErrZeroLiquidity
	}

	if decimals0 < 0 || decimals0 > 255 {
		decimals0 = 0
	}
	if decimals1 < 0 || decimals1 > 255 {
		decimals1 = 0
	}

	// #nosec G115 -- decimals validated above to be 0-255
	amount0 := feeds.ScaleInteger(reserve0, int32(decimals0))
	// #nosec G115 -- decimals validated above to be 0-255
	amount1 := feeds.ScaleInteger(reserve1, int32(decimals1))

	return amount1.DivRound(amount0, 36), nil
}
