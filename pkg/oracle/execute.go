package oracle

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

// call is one command bound to the model it targets.
type call struct {
	addr  common.Address
	model pricemodel.PriceModel
	cmd   pricemodel.Command
}

// ExecuteTransaction forwards cmd to the model registered at target.
func (o *Oracle) ExecuteTransaction(caller, target common.Address, cmd pricemodel.Command, now time.Time) error {
	return o.ExecuteTransactions(caller, []common.Address{target}, []pricemodel.Command{cmd}, now)
}

// ExecuteTransactions forwards each command to its target model. If any
// command fails, every model touched by the batch is rolled back.
func (o *Oracle) ExecuteTransactions(caller common.Address, targets []common.Address, cmds []pricemodel.Command, now time.Time) error {
	if err := o.control.RequireOwner(caller); err != nil {
		return err
	}
	if len(targets) != len(cmds) {
		return fmt.Errorf("%w: %d targets, %d commands", pricemodel.ErrLengthMismatch, len(targets), len(cmds))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	calls := make([]call, len(targets))
	for i, target := range targets {
		m, ok := o.models[target]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNonContract, target.Hex())
		}
		calls[i] = call{addr: target, model: m, cmd: cmds[i]}
	}
	return o.run(calls, now)
}

// SetAsset forwards cmd to the model currently routed for asset.
func (o *Oracle) SetAsset(caller, asset common.Address, cmd pricemodel.Command, now time.Time) error {
	return o.SetAssets(caller, []common.Address{asset}, []pricemodel.Command{cmd}, now)
}

// SetAssets forwards each command to the model of the matching asset, all or nothing.
func (o *Oracle) SetAssets(caller common.Address, assets []common.Address, cmds []pricemodel.Command, now time.Time) error {
	if err := o.control.RequireOwner(caller); err != nil {
		return err
	}
	if len(assets) != len(cmds) {
		return fmt.Errorf("%w: %d assets, %d commands", pricemodel.ErrLengthMismatch, len(assets), len(cmds))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	calls, err := o.assetCalls(assets, cmds)
	if err != nil {
		return err
	}
	return o.run(calls, now)
}

// assetCalls requires o.mu to be held.
func (o *Oracle) assetCalls(assets []common.Address, cmds []pricemodel.Command) ([]call, error) {
	calls := make([]call, len(assets))
	for i, asset := range assets {
		addr, ok := o.assetModels[asset]
		if !ok {
			return nil, fmt.Errorf("%w: no price model for %s", ErrNonContract, asset.Hex())
		}
		m, ok := o.models[addr]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNonContract, addr.Hex())
		}
		calls[i] = call{addr: addr, model: m, cmd: cmds[i]}
	}
	return calls, nil
}

// run executes calls in order as the oracle. It requires o.mu to be held.
func (o *Oracle) run(calls []call, now time.Time) error {
	snapshots := make(map[common.Address]pricemodel.Snapshot)
	for _, c := range calls {
		if _, ok := snapshots[c.addr]; !ok {
			snapshots[c.addr] = c.model.Checkpoint()
		}
	}

	for i, c := range calls {
		if err := c.model.Execute(o.address, c.cmd, now); err != nil {
			for addr, snap := range snapshots {
				o.models[addr].Rollback(snap)
			}
			o.logger.Warn("Price model call failed",
				"model", c.addr.Hex(),
				"command", c.cmd.Name(),
				"index", i,
				"error", err)
			return fmt.Errorf("%w: %s on %s: %w", ErrDownstreamRevert, c.cmd.Name(), c.addr.Hex(), err)
		}
	}
	return nil
}
