package pricemodel

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// StalenessPolicy holds the default and per-asset valid interval (heartbeat).
// A zero override means the default applies. There are no bounds.
type StalenessPolicy struct {
	defaultInterval time.Duration
	overrides       map[common.Address]time.Duration
}

// NewStalenessPolicy creates a policy with the given default heartbeat.
func NewStalenessPolicy(defaultInterval time.Duration) *StalenessPolicy {
	return &StalenessPolicy{
		defaultInterval: seconds(defaultInterval),
		overrides:       make(map[common.Address]time.Duration),
	}
}

// Default returns the default heartbeat.
func (p *StalenessPolicy) Default() time.Duration {
	return p.defaultInterval
}

// Override returns the raw per-asset heartbeat, zero when unset.
func (p *StalenessPolicy) Override(asset common.Address) time.Duration {
	return p.overrides[asset]
}

// Effective returns the override if set, otherwise the default.
func (p *StalenessPolicy) Effective(asset common.Address) time.Duration {
	if v := p.overrides[asset]; v != 0 {
		return v
	}
	return p.defaultInterval
}

// SetDefault replaces the default heartbeat.
func (p *StalenessPolicy) SetDefault(interval time.Duration) error {
	interval = seconds(interval)
	if interval == p.defaultInterval {
		return fmt.Errorf("%w: default valid interval unchanged", ErrInvalidParameter)
	}
	p.defaultInterval = interval
	return nil
}

// SetAssetOverride sets the heartbeat of one asset. Zero reverts to the default.
func (p *StalenessPolicy) SetAssetOverride(asset common.Address, interval time.Duration) error {
	interval = seconds(interval)
	if interval == p.Effective(asset) {
		return fmt.Errorf("%w: valid interval of %s unchanged", ErrInvalidParameter, asset.Hex())
	}
	if interval == 0 {
		delete(p.overrides, asset)
		return nil
	}
	p.overrides[asset] = interval
	return nil
}

// SetAssetOverrides applies SetAssetOverride element-wise; nothing changes unless every element succeeds.
func (p *StalenessPolicy) SetAssetOverrides(assets []common.Address, intervals []time.Duration) error {
	if len(assets) != len(intervals) {
		return fmt.Errorf("%w: %d assets, %d valid intervals", ErrLengthMismatch, len(assets), len(intervals))
	}
	staged := p.clone()
	for i, asset := range assets {
		if err := staged.SetAssetOverride(asset, intervals[i]); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	*p = *staged
	return nil
}

// IsExpired reports whether a value posted at postedAt has outlived the asset's heartbeat at now.
func (p *StalenessPolicy) IsExpired(asset common.Address, postedAt, now time.Time) bool {
	return !now.Before(postedAt.Add(p.Effective(asset)))
}

func (p *StalenessPolicy) clone() *StalenessPolicy {
	overrides := make(map[common.Address]time.Duration, len(p.overrides))
	for k, v := range p.overrides {
		overrides[k] = v
	}
	return &StalenessPolicy{defaultInterval: p.defaultInterval, overrides: overrides}
}
