package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

// SetPrice posts price for asset through its model. Only the poster may call it.
func (o *Oracle) SetPrice(caller, asset common.Address, price *big.Int, now time.Time) error {
	return o.SetPrices(caller, []common.Address{asset}, []*big.Int{price}, now)
}

// SetPrices posts several prices, all or nothing.
func (o *Oracle) SetPrices(caller common.Address, assets []common.Address, prices []*big.Int, now time.Time) error {
	if err := o.control.RequirePoster(caller); err != nil {
		return err
	}
	if len(assets) != len(prices) {
		return fmt.Errorf("%w: %d assets, %d prices", pricemodel.ErrLengthMismatch, len(assets), len(prices))
	}

	cmds := make([]pricemodel.Command, len(assets))
	for i, asset := range assets {
		cmds[i] = pricemodel.SetPrice{Asset: asset, Price: prices[i]}
	}

	o.mu.Lock()
	calls, err := o.assetCalls(assets, cmds)
	if err == nil {
		err = o.run(calls, now)
	}
	o.mu.Unlock()
	if err != nil {
		return err
	}

	for _, c := range calls {
		asset := c.cmd.(pricemodel.SetPrice).Asset
		stored, valid := c.model.AssetPriceStatus(context.Background(), asset, now)
		o.notifySubscribers(PostEvent{
			Asset:     asset,
			Model:     c.addr,
			Price:     stored,
			Valid:     valid,
			Timestamp: now,
		})
	}
	return nil
}

// ReadyToUpdate asks the model of asset whether posting price is worthwhile.
// Assets without a posting model are never ready.
func (o *Oracle) ReadyToUpdate(asset common.Address, price, postSwing *big.Int, postBuffer time.Duration, now time.Time) bool {
	m, ok := o.assetModel(asset)
	if !ok {
		return false
	}
	advisor, ok := m.(pricemodel.Advisor)
	if !ok {
		return false
	}
	return advisor.ReadyToUpdate(asset, price, postSwing, postBuffer, now)
}

// Subscribe registers ch for post events. Events are dropped when ch is full.
func (o *Oracle) Subscribe(ch chan<- PostEvent) {
	o.subscribersMu.Lock()
	defer o.subscribersMu.Unlock()
	o.subscribers = append(o.subscribers, ch)
}

// Unsubscribe removes ch.
func (o *Oracle) Unsubscribe(ch chan<- PostEvent) {
	o.subscribersMu.Lock()
	defer o.subscribersMu.Unlock()

	for i, subscriber := range o.subscribers {
		if subscriber == ch {
			o.subscribers = append(o.subscribers[:i], o.subscribers[i+1:]...)
			break
		}
	}
}

func (o *Oracle) notifySubscribers(event PostEvent) {
	o.subscribersMu.RLock()
	defer o.subscribersMu.RUnlock()

	for _, ch := range o.subscribers {
		select {
		case ch <- event:
		default:
			o.logger.Warn("Subscriber channel full, skipping post event", "asset", event.Asset.Hex())
		}
	}
}
