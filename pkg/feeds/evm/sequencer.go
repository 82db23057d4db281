package evm

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/feeds"
	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

// SequencerFeed reads a Chainlink layer-2 sequencer uptime feed.
// An answer of 0 means the sequencer is up, 1 means it is down; the round
// start time is when the current state began.
type SequencerFeed struct {
	rpcContract
	address common.Address
}

var _ pricemodel.UptimeFeed = (*SequencerFeed)(nil)

// NewSequencerFeed creates a sequencer uptime feed. Config: rpc_url, address.
func NewSequencerFeed(config map[string]interface{}) (*SequencerFeed, error) {
	contract, err := newRPCContract(config)
	if err != nil {
		return nil, err
	}
	hex := feeds.GetStringFromMap(config, "address")
	if hex == "" {
		return nil, ErrAddressRequired
	}
	addr, err := feeds.ParseAddress(hex)
	if err != nil {
		return nil, err
	}
	return &SequencerFeed{rpcContract: contract, address: addr}, nil
}

// Initialize connects to the EVM RPC endpoint.
func (f *SequencerFeed) Initialize(ctx context.Context) error {
	return f.dial(ctx)
}

// Close closes the RPC connection.
func (f *SequencerFeed) Close() error {
	f.close()
	return nil
}

// SequencerStatus returns whether the sequencer is up and since when.
func (f *SequencerFeed) SequencerStatus(ctx context.Context) (bool, time.Time, error) {
	round, err := f.latestRoundData(ctx, f.address)
	if err != nil {
		return false, time.Time{}, err
	}
	return round.Answer.Sign() == 0, round.StartedAt, nil
}
