package pricemodel

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Anchor is the reference price of an hour period.
type Anchor struct {
	Period uint64
	Price  *big.Int
}

// Anchor roll reasons reported by AnchorStore.Roll.
const (
	rollNone    = ""
	rollPeriod  = "period"
	rollPending = "pending"
	rollInitial = "initial"
)

// AnchorStore keeps the per-asset anchors and one-shot pending anchors.
type AnchorStore struct {
	anchors map[common.Address]Anchor
	pending map[common.Address]*big.Int
}

// NewAnchorStore creates an empty store.
func NewAnchorStore() *AnchorStore {
	return &AnchorStore{
		anchors: make(map[common.Address]Anchor),
		pending: make(map[common.Address]*big.Int),
	}
}

// Anchor returns the stored anchor. Unknown assets yield period 0 and price 0.
func (s *AnchorStore) Anchor(asset common.Address) Anchor {
	a := s.anchors[asset]
	a.Price = copyOf(a.Price)
	return a
}

// Pending returns the pending anchor, zero when none is set.
func (s *AnchorStore) Pending(asset common.Address) *big.Int {
	return copyOf(s.pending[asset])
}

// SetPending schedules price as the anchor consumed by the next post.
func (s *AnchorStore) SetPending(asset common.Address, price *big.Int) {
	if isZero(price) {
		delete(s.pending, asset)
		return
	}
	s.pending[asset] = copyOf(price)
}

// Effective returns the anchor used for clamping. A pending anchor takes
// precedence and carries no period (0).
func (s *AnchorStore) Effective(asset common.Address) (*big.Int, uint64) {
	if p := s.pending[asset]; !isZero(p) {
		return copyOf(p), 0
	}
	a := s.Anchor(asset)
	return a.Price, a.Period
}

// Roll updates the anchor after price was stored in currentPeriod and
// clears any pending anchor. It returns why the anchor changed, if it did.
func (s *AnchorStore) Roll(asset common.Address, price *big.Int, currentPeriod uint64) string {
	a := s.Anchor(asset)
	pending := s.Pending(asset)
	delete(s.pending, asset)

	switch {
	case a.Period != currentPeriod:
		a.Period = currentPeriod
		if pending.Sign() != 0 {
			a.Price = pending
		} else {
			a.Price = copyOf(price)
		}
		s.anchors[asset] = a
		return rollPeriod
	case pending.Sign() != 0:
		if a.Period == 0 {
			a.Period = currentPeriod
		}
		a.Price = pending
		s.anchors[asset] = a
		return rollPending
	case a.Price.Sign() == 0 && price.Sign() != 0:
		// nothing to clamp against yet in this period
		a.Price = copyOf(price)
		s.anchors[asset] = a
		return rollInitial
	default:
		return rollNone
	}
}

func (s *AnchorStore) clone() *AnchorStore {
	c := NewAnchorStore()
	for k, v := range s.anchors {
		c.anchors[k] = v
	}
	for k, v := range s.pending {
		c.pending[k] = v
	}
	return c
}
