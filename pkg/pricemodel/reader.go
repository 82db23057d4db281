package pricemodel

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ReaderIndirection redirects an asset's reads to another asset.
type ReaderIndirection struct {
	readers map[common.Address]common.Address
}

// NewReaderIndirection creates an empty indirection table.
func NewReaderIndirection() *ReaderIndirection {
	return &ReaderIndirection{readers: make(map[common.Address]common.Address)}
}

// Reader returns the asset whose state is authoritative for asset, if any.
func (r *ReaderIndirection) Reader(asset common.Address) (common.Address, bool) {
	reader, ok := r.readers[asset]
	return reader, ok
}

// SetReader points asset at reader. The zero address clears the indirection.
func (r *ReaderIndirection) SetReader(asset, reader common.Address) error {
	if reader == asset {
		return fmt.Errorf("%w: asset %s cannot read itself", ErrInvalidParameter, asset.Hex())
	}
	if reader == (common.Address{}) {
		delete(r.readers, asset)
		return nil
	}
	r.readers[asset] = reader
	return nil
}

// SetReaders applies SetReader element-wise; nothing changes unless every element succeeds.
func (r *ReaderIndirection) SetReaders(assets, readers []common.Address) error {
	if len(assets) != len(readers) {
		return fmt.Errorf("%w: %d assets, %d readers", ErrLengthMismatch, len(assets), len(readers))
	}
	staged := r.clone()
	for i, asset := range assets {
		if err := staged.SetReader(asset, readers[i]); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	*r = *staged
	return nil
}

func (r *ReaderIndirection) clone() *ReaderIndirection {
	readers := make(map[common.Address]common.Address, len(r.readers))
	for k, v := range r.readers {
		readers[k] = v
	}
	return &ReaderIndirection{readers: readers}
}
