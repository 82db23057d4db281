package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/StrathCole/poster-oracle/pkg/feeds"
)

// AggregatorV3 ABI (decimals and latestRoundData only).
const aggregatorABIJSON = `[{
	"inputs": [],
	"name": "decimals",
	"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"inputs": [],
	"name": "latestRoundData",
	"outputs": [
		{"internalType": "uint80", "name": "roundId", "type": "uint80"},
		{"internalType": "int256", "name": "answer", "type": "int256"},
		{"internalType": "uint256", "name": "startedAt", "type": "uint256"},
		{"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
		{"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
	],
	"stateMutability": "view",
	"type": "function"
}]`

var aggregatorABI = mustParseABI(aggregatorABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse ABI: %v", err))
	}
	return parsed
}

// rpcContract performs read-only calls against an RPC endpoint.
type rpcContract struct {
	rpcURL string
	client *ethclient.Client
	caller ethereum.ContractCaller
}

func newRPCContract(config map[string]interface{}) (rpcContract, error) {
	rpcURL := feeds.GetStringFromMap(config, "rpc_url")
	if rpcURL == "" {
		return rpcContract{}, ErrRPCURLRequired
	}
	return rpcContract{rpcURL: rpcURL}, nil
}

// dial connects to the RPC endpoint unless a caller is already set.
func (c *rpcContract) dial(ctx context.Context) error {
	if c.caller != nil {
		return nil
	}
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC: %w", err)
	}
	c.client = client
	c.caller = client
	return nil
}

func (c *rpcContract) close() {
	if c.client != nil {
		c.client.Close()
	}
}

// call invokes a view method without arguments on the latest block.
func (c *rpcContract) call(ctx context.Context, parsed abi.ABI, to common.Address, method string) ([]interface{}, error) {
	if c.caller == nil {
		return nil, feeds.ErrClientNotInitialized
	}

	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	result, err := c.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s on %s: %w", method, to.Hex(), err)
	}

	out, err := parsed.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return out, nil
}

// roundData is the result of AggregatorV3.latestRoundData.
type roundData struct {
	Answer    *big.Int
	StartedAt time.Time
	UpdatedAt time.Time
}

func (c *rpcContract) latestRoundData(ctx context.Context, aggregator common.Address) (roundData, error) {
	out, err := c.call(ctx, aggregatorABI, aggregator, "latestRoundData")
	if err != nil {
		return roundData{}, err
	}
	if len(out) != 5 {
		return roundData{}, fmt.Errorf("%w: latestRoundData returned %d values", ErrUnexpectedOutput, len(out))
	}

	answer, ok1 := out[1].(*big.Int)
	startedAt, ok2 := out[2].(*big.Int)
	updatedAt, ok3 := out[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return roundData{}, fmt.Errorf("%w: latestRoundData types", ErrUnexpectedOutput)
	}

	return roundData{
		Answer:    answer,
		StartedAt: time.Unix(startedAt.Int64(), 0),
		UpdatedAt: time.Unix(updatedAt.Int64(), 0),
	}, nil
}

func (c *rpcContract) decimals(ctx context.Context, aggregator common.Address) (uint8, error) {
	out, err := c.call(ctx, aggregatorABI, aggregator, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("%w: decimals returned %d values", ErrUnexpectedOutput, len(out))
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: decimals is %T", ErrUnexpectedOutput, out[0])
	}
	return d, nil
}
