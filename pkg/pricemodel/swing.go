package pricemodel

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// MinMaxSwing is the smallest accepted max swing, 0.1%.
	MinMaxSwing = Fraction(1, 1000)
	// MaxMaxSwing is the largest accepted max swing, 10%.
	MaxMaxSwing = Fraction(1, 10)
)

// SwingPolicy holds the default and per-asset maximum swing.
// An override of zero means the default applies.
type SwingPolicy struct {
	defaultSwing *big.Int
	overrides    map[common.Address]*big.Int
}

// NewSwingPolicy creates a policy with the given default swing. The default
// is trusted here; later changes go through SetDefault.
func NewSwingPolicy(defaultSwing *big.Int) *SwingPolicy {
	return &SwingPolicy{
		defaultSwing: copyOf(defaultSwing),
		overrides:    make(map[common.Address]*big.Int),
	}
}

// Default returns the default max swing.
func (p *SwingPolicy) Default() *big.Int {
	return copyOf(p.defaultSwing)
}

// Override returns the raw per-asset value, zero when unset.
func (p *SwingPolicy) Override(asset common.Address) *big.Int {
	return copyOf(p.overrides[asset])
}

// Effective returns the override if set, otherwise the default.
func (p *SwingPolicy) Effective(asset common.Address) *big.Int {
	if v := p.overrides[asset]; !isZero(v) {
		return copyOf(v)
	}
	return copyOf(p.defaultSwing)
}

// SetDefault replaces the default max swing.
func (p *SwingPolicy) SetDefault(swing *big.Int) error {
	if swing.Cmp(p.defaultSwing) == 0 {
		return fmt.Errorf("%w: max swing unchanged", ErrInvalidParameter)
	}
	if err := checkSwingRange(swing); err != nil {
		return err
	}
	p.defaultSwing = copyOf(swing)
	return nil
}

// SetAssetOverride sets the max swing for one asset.
func (p *SwingPolicy) SetAssetOverride(asset common.Address, swing *big.Int) error {
	if swing.Cmp(p.Effective(asset)) == 0 {
		return fmt.Errorf("%w: max swing of %s unchanged", ErrInvalidParameter, asset.Hex())
	}
	if err := checkSwingRange(swing); err != nil {
		return err
	}
	p.overrides[asset] = copyOf(swing)
	return nil
}

// SetAssetOverrides applies SetAssetOverride element-wise; nothing changes unless every element succeeds.
func (p *SwingPolicy) SetAssetOverrides(assets []common.Address, swings []*big.Int) error {
	if len(assets) != len(swings) {
		return fmt.Errorf("%w: %d assets, %d max swings", ErrLengthMismatch, len(assets), len(swings))
	}
	staged := p.clone()
	for i, asset := range assets {
		if err := staged.SetAssetOverride(asset, swings[i]); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	*p = *staged
	return nil
}

func (p *SwingPolicy) clone() *SwingPolicy {
	overrides := make(map[common.Address]*big.Int, len(p.overrides))
	for k, v := range p.overrides {
		overrides[k] = v
	}
	return &SwingPolicy{defaultSwing: p.defaultSwing, overrides: overrides}
}

func checkSwingRange(swing *big.Int) error {
	if swing.Cmp(MinMaxSwing) < 0 || swing.Cmp(MaxMaxSwing) > 0 {
		return fmt.Errorf("%w: max swing %s not within [0.1%%, 10%%]", ErrOutOfRange, swing)
	}
	return nil
}
