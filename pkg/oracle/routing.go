package oracle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

// SetAssetPriceModel routes asset to the model registered at model.
func (o *Oracle) SetAssetPriceModel(caller, asset, model common.Address) error {
	return o.SetAssetPriceModelBatch(caller, []common.Address{asset}, []common.Address{model})
}

// SetAssetPriceModelBatch routes several assets. Either all are routed or none.
func (o *Oracle) SetAssetPriceModelBatch(caller common.Address, assets, models []common.Address) error {
	if err := o.control.RequireOwner(caller); err != nil {
		return err
	}
	if len(assets) != len(models) {
		return fmt.Errorf("%w: %d assets, %d models", pricemodel.ErrLengthMismatch, len(assets), len(models))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for _, addr := range models {
		if err := o.checkModel(addr); err != nil {
			return err
		}
	}
	for i, asset := range assets {
		o.assetModels[asset] = models[i]
		o.logger.Info("Asset price model set", "asset", asset.Hex(), "model", models[i].Hex())
	}
	return nil
}

// DisableAssetPriceModel removes the route of asset. Disabling an unrouted asset succeeds.
func (o *Oracle) DisableAssetPriceModel(caller, asset common.Address) error {
	return o.DisableAssetPriceModelBatch(caller, []common.Address{asset})
}

// DisableAssetPriceModelBatch removes the routes of several assets.
func (o *Oracle) DisableAssetPriceModelBatch(caller common.Address, assets []common.Address) error {
	if err := o.control.RequireOwner(caller); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, asset := range assets {
		delete(o.assetModels, asset)
		o.logger.Info("Asset price model disabled", "asset", asset.Hex())
	}
	return nil
}

// checkModel requires o.mu to be held.
func (o *Oracle) checkModel(addr common.Address) error {
	m, ok := o.models[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNonContract, addr.Hex())
	}
	if !m.IsPriceModel() {
		return fmt.Errorf("%w: %s", ErrInvalidModel, addr.Hex())
	}
	return nil
}
