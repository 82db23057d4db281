package pricemodel

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Command is a typed configuration or posting call forwarded to a price model.
// The set of commands is closed; models reject the ones they do not handle
// with ErrUnsupportedCommand.
type Command interface {
	// Name identifies the command in logs and metrics.
	Name() string
	command()
}

// SetMaxSwing sets the default max swing.
type SetMaxSwing struct {
	MaxSwing *big.Int
}

// SetAssetMaxSwing sets the max swing of one asset.
type SetAssetMaxSwing struct {
	Asset    common.Address
	MaxSwing *big.Int
}

// SetAssetMaxSwingBatch sets the max swing of several assets at once.
type SetAssetMaxSwingBatch struct {
	Assets    []common.Address
	MaxSwings []*big.Int
}

// SetDefaultValidInterval sets the default heartbeat.
type SetDefaultValidInterval struct {
	Interval time.Duration
}

// SetAssetValidInterval sets the heartbeat of one asset.
type SetAssetValidInterval struct {
	Asset    common.Address
	Interval time.Duration
}

// SetAssetValidIntervalBatch sets the heartbeat of several assets at once.
type SetAssetValidIntervalBatch struct {
	Assets    []common.Address
	Intervals []time.Duration
}

// SetReader redirects reads of Asset to Reader. A zero Reader clears it.
type SetReader struct {
	Asset  common.Address
	Reader common.Address
}

// SetReaderBatch sets several readers at once.
type SetReaderBatch struct {
	Assets  []common.Address
	Readers []common.Address
}

// SetPendingAnchor schedules the anchor used by the next post of Asset.
type SetPendingAnchor struct {
	Asset common.Address
	Price *big.Int
}

// SetPrice posts a price for one asset.
type SetPrice struct {
	Asset common.Address
	Price *big.Int
}

// SetPrices posts prices for several assets at once.
type SetPrices struct {
	Assets []common.Address
	Prices []*big.Int
}

// SetAssetFeed binds an external quote source to an asset.
type SetAssetFeed struct {
	Asset common.Address
	Feed  Quoter
}

func (SetMaxSwing) Name() string                { return "setMaxSwing" }
func (SetAssetMaxSwing) Name() string           { return "setAssetMaxSwing" }
func (SetAssetMaxSwingBatch) Name() string      { return "setAssetMaxSwingBatch" }
func (SetDefaultValidInterval) Name() string    { return "setDefaultValidInterval" }
func (SetAssetValidInterval) Name() string      { return "setAssetValidInterval" }
func (SetAssetValidIntervalBatch) Name() string { return "setAssetValidIntervalBatch" }
func (SetReader) Name() string                  { return "setReader" }
func (SetReaderBatch) Name() string             { return "setReaderBatch" }
func (SetPendingAnchor) Name() string           { return "setPendingAnchor" }
func (SetPrice) Name() string                   { return "setPrice" }
func (SetPrices) Name() string                  { return "setPrices" }
func (SetAssetFeed) Name() string               { return "setAssetFeed" }

func (SetMaxSwing) command()                {}
func (SetAssetMaxSwing) command()           {}
func (SetAssetMaxSwingBatch) command()      {}
func (SetDefaultValidInterval) command()    {}
func (SetAssetValidInterval) command()      {}
func (SetAssetValidIntervalBatch) command() {}
func (SetReader) command()                  {}
func (SetReaderBatch) command()             {}
func (SetPendingAnchor) command()           {}
func (SetPrice) command()                   {}
func (SetPrices) command()                  {}
func (SetAssetFeed) command()               {}
