package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/poster-oracle/pkg/feeds"
)

const (
	assetHex      = "0x00000000000000000000000000000000000000a1"
	aggregatorHex = "0x00000000000000000000000000000000000000c1"
	pairHex       = "0x00000000000000000000000000000000000000d1"
)

var (
	asset      = common.HexToAddress(assetHex)
	aggregator = common.HexToAddress(aggregatorHex)
	pair       = common.HexToAddress(pairHex)
	updated    = time.Unix(1_700_000_000, 0)
)

type fakeCaller struct {
	responses map[string][]byte
	err       error
	calls     int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[string][]byte)}
}

func (c *fakeCaller) set(t *testing.T, parsed abi.ABI, to common.Address, method string, values ...interface{}) {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	c.responses[to.Hex()+common.Bytes2Hex(parsed.Methods[method].ID)] = out
}

func (c *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	out, ok := c.responses[msg.To.Hex()+common.Bytes2Hex(msg.Data[:4])]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return out, nil
}

func newChainlink(t *testing.T, caller *fakeCaller) *ChainlinkFeed {
	t.Helper()
	f, err := NewChainlinkFeed(map[string]interface{}{
		"rpc_url": "http://localhost:8545",
		"assets":  map[string]interface{}{assetHex: aggregatorHex},
	})
	require.NoError(t, err)
	feed := f.(*ChainlinkFeed)
	feed.caller = caller
	require.NoError(t, feed.Initialize(context.Background()))
	return feed
}

func TestNewChainlinkFeed_Config(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]interface{}
		wantErr error
	}{
		{"missing rpc", map[string]interface{}{}, ErrRPCURLRequired},
		{"missing assets", map[string]interface{}{"rpc_url": "x"}, feeds.ErrInvalidConfig},
		{"bad aggregator", map[string]interface{}{
			"rpc_url": "x",
			"assets":  map[string]interface{}{assetHex: "nope"},
		}, feeds.ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChainlinkFeed(tt.config)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestChainlinkFeed_Quote(t *testing.T) {
	caller := newFakeCaller()
	caller.set(t, aggregatorABI, aggregator, "decimals", uint8(8))
	caller.set(t, aggregatorABI, aggregator, "latestRoundData",
		big.NewInt(7), big.NewInt(123_456_789), big.NewInt(updated.Unix()-10), big.NewInt(updated.Unix()), big.NewInt(7))

	f := newChainlink(t, caller)

	price, at, err := f.Quote(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, "1234567890000000000", price.String())
	assert.Equal(t, updated, at)
	assert.True(t, f.IsHealthy())

	q, ok := f.LastQuote(asset)
	require.True(t, ok)
	assert.Equal(t, "1.23456789", q.Price.String())

	// decimals are cached
	_, _, err = f.Quote(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, 3, caller.calls)
}

func TestChainlinkFeed_QuoteErrors(t *testing.T) {
	t.Run("unknown asset", func(t *testing.T) {
		f := newChainlink(t, newFakeCaller())
		_, _, err := f.Quote(context.Background(), common.HexToAddress("0x01"))
		assert.ErrorIs(t, err, feeds.ErrUnknownAsset)
	})

	t.Run("negative answer", func(t *testing.T) {
		caller := newFakeCaller()
		caller.set(t, aggregatorABI, aggregator, "decimals", uint8(8))
		caller.set(t, aggregatorABI, aggregator, "latestRoundData",
			big.NewInt(1), big.NewInt(-5), big.NewInt(0), big.NewInt(updated.Unix()), big.NewInt(1))
		f := newChainlink(t, caller)

		_, _, err := f.Quote(context.Background(), asset)
		assert.ErrorIs(t, err, feeds.ErrInvalidPrice)
		assert.False(t, f.IsHealthy())
	})

	t.Run("rpc failure", func(t *testing.T) {
		caller := newFakeCaller()
		caller.err = errors.New("connection refused")
		f := newChainlink(t, caller)

		_, _, err := f.Quote(context.Background(), asset)
		assert.Error(t, err)
		assert.False(t, f.IsHealthy())
	})
}

func TestPairFeed_Quote(t *testing.T) {
	newPair := func(t *testing.T, invert bool, caller *fakeCaller) *PairFeed {
		t.Helper()
		f, err := NewPairFeed(map[string]interface{}{
			"rpc_url": "http://localhost:8545",
			"pairs": []interface{}{
				map[string]interface{}{
					"asset":        assetHex,
					"pair_address": pairHex,
					"decimals0":    18,
					"decimals1":    6,
					"invert":       invert,
				},
			},
		})
		require.NoError(t, err)
		feed := f.(*PairFeed)
		feed.caller = caller
		require.NoError(t, feed.Initialize(context.Background()))
		return feed
	}

	// 1000 token0 (18 decimals) against 2500 token1 (6 decimals)
	reserve0, _ := new(big.Int).SetString("1000000000000000000000", 10)
	reserve1 := big.NewInt(2_500_000_000)

	caller := newFakeCaller()
	caller.set(t, pairABI, pair, "getReserves", reserve0, reserve1, uint32(updated.Unix()))

	price, at, err := newPair(t, false, caller).Quote(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, "2500000000000000000", price.String())
	assert.Equal(t, updated, at)

	price, _, err = newPair(t, true, caller).Quote(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, "400000000000000000", price.String())

	empty := newFakeCaller()
	empty.set(t, pairABI, pair, "getReserves", big.NewInt(0), reserve1, uint32(updated.Unix()))
	_, _, err = newPair(t, false, empty).Quote(context.Background(), asset)
	assert.ErrorIs(t, err, ErrZeroLiquidity)
}

func TestNewPairFeed_Config(t *testing.T) {
	_, err := NewPairFeed(map[string]interface{}{"rpc_url": "x"})
	assert.ErrorIs(t, err, ErrPairsConfigRequired)

	_, err = NewPairFeed(map[string]interface{}{
		"rpc_url": "x",
		"pairs":   []interface{}{map[string]interface{}{"asset": assetHex}},
	})
	assert.ErrorIs(t, err, feeds.ErrInvalidAddress)
}

func TestSequencerFeed(t *testing.T) {
	seq := common.HexToAddress("0x00000000000000000000000000000000000000e1")

	tests := []struct {
		name   string
		answer int64
		wantUp bool
	}{
		{"up", 0, true},
		{"down", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := newFakeCaller()
			caller.set(t, aggregatorABI, seq, "latestRoundData",
				big.NewInt(1), big.NewInt(tt.answer), big.NewInt(updated.Unix()), big.NewInt(updated.Unix()+5), big.NewInt(1))

			f, err := NewSequencerFeed(map[string]interface{}{"rpc_url": "x", "address": seq.Hex()})
			require.NoError(t, err)
			f.caller = caller

			up, since, err := f.SequencerStatus(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantUp, up)
			assert.Equal(t, updated, since)
		})
	}

	_, err := NewSequencerFeed(map[string]interface{}{"rpc_url": "x"})
	assert.ErrorIs(t, err, ErrAddressRequired)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, feeds.List(), "evm.chainlink")
	assert.Contains(t, feeds.List(), "evm.pair")
}
