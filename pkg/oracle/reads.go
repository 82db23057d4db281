package oracle

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/metrics"
	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

// GetUnderlyingPriceAndStatus returns the price of asset and whether it is
// valid at now. Paused oracles and unrouted assets read as (0, false).
func (o *Oracle) GetUnderlyingPriceAndStatus(ctx context.Context, asset common.Address, now time.Time) (*big.Int, bool) {
	if o.Paused() {
		metrics.RecordOracleRead("paused")
		return new(big.Int), false
	}
	m, ok := o.assetModel(asset)
	if !ok {
		metrics.RecordOracleRead("no_model")
		return new(big.Int), false
	}

	price, valid := m.AssetPriceStatus(ctx, asset, now)
	if price == nil {
		price = new(big.Int)
	}
	if valid {
		metrics.RecordOracleRead("ok")
	} else {
		metrics.RecordOracleRead("stale")
	}
	return price, valid
}

// GetUnderlyingPrice returns the price of asset.
func (o *Oracle) GetUnderlyingPrice(ctx context.Context, asset common.Address, now time.Time) *big.Int {
	price, _ := o.GetUnderlyingPriceAndStatus(ctx, asset, now)
	return price
}

// GetAssetPriceStatus reports whether the price of asset is valid at now.
func (o *Oracle) GetAssetPriceStatus(ctx context.Context, asset common.Address, now time.Time) bool {
	_, valid := o.GetUnderlyingPriceAndStatus(ctx, asset, now)
	return valid
}

func (o *Oracle) assetModel(asset common.Address) (pricemodel.PriceModel, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	addr, ok := o.assetModels[asset]
	if !ok {
		return nil, false
	}
	m, ok := o.models[addr]
	return m, ok
}
