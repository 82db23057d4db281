package pricemodel

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PriceModel is implemented by everything the oracle can route an asset to.
type PriceModel interface {
	// IsPriceModel is the capability check performed before routing to a model.
	IsPriceModel() bool
	// Name identifies the model in logs and metrics.
	Name() string
	Owner() common.Address
	// AssetPriceStatus returns the price of asset and whether it is still valid at now.
	AssetPriceStatus(ctx context.Context, asset common.Address, now time.Time) (*big.Int, bool)
	// Execute applies cmd on behalf of caller.
	Execute(caller common.Address, cmd Command, now time.Time) error
	// Checkpoint captures the model state so a failed batch can be undone.
	Checkpoint() Snapshot
	Rollback(s Snapshot)
}

// Advisor is implemented by models that accept posted prices.
type Advisor interface {
	ReadyToUpdate(asset common.Address, requested, postSwing *big.Int, postBuffer time.Duration, now time.Time) bool
}

// Quoter is the single capability consumed from external feeds.
type Quoter interface {
	// Quote returns the latest price as a fixed-point value and the time it was produced.
	Quote(ctx context.Context, asset common.Address) (*big.Int, time.Time, error)
}

// Snapshot is an opaque model state returned by Checkpoint.
type Snapshot interface{}
