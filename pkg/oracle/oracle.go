// Package oracle provides the facade that routes assets to price models,
// gates reads on the pause flag and forwards owner and poster calls.
package oracle

import (
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/access"
	"github.com/StrathCole/poster-oracle/pkg/logging"
	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

// Config configures an Oracle.
type Config struct {
	// Address is the identity the oracle presents to its price models.
	Address common.Address
	Owner   common.Address
	Poster  common.Address
	Paused  bool
	Logger  *logging.Logger
}

// PostEvent describes a price stored through the oracle.
type PostEvent struct {
	Asset     common.Address
	Model     common.Address
	Price     *big.Int
	Valid     bool
	Timestamp time.Time
}

// Oracle maps assets to price models.
type Oracle struct {
	address common.Address
	control *access.Control
	logger  *logging.Logger

	mu          sync.RWMutex
	paused      bool
	models      map[common.Address]pricemodel.PriceModel
	assetModels map[common.Address]common.Address

	subscribers   []chan<- PostEvent
	subscribersMu sync.RWMutex
}

// New creates an oracle with no models registered.
func New(cfg Config) *Oracle {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNoopLogger()
	}
	return &Oracle{
		address:     cfg.Address,
		control:     access.NewControl(cfg.Owner, cfg.Poster),
		logger:      cfg.Logger.With("component", "oracle"),
		paused:      cfg.Paused,
		models:      make(map[common.Address]pricemodel.PriceModel),
		assetModels: make(map[common.Address]common.Address),
	}
}

// Address returns the identity used when calling models.
func (o *Oracle) Address() common.Address {
	return o.address
}

// Owner returns the current owner.
func (o *Oracle) Owner() common.Address {
	return o.control.CurrentOwner()
}

// Poster returns the current poster.
func (o *Oracle) Poster() common.Address {
	return o.control.CurrentPoster()
}

// Paused reports whether reads are paused.
func (o *Oracle) Paused() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.paused
}

// Register makes model reachable at addr.
func (o *Oracle) Register(addr common.Address, model pricemodel.PriceModel) error {
	if addr == (common.Address{}) || model == nil {
		return fmt.Errorf("%w: %s", ErrNonContract, addr.Hex())
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.models[addr]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, addr.Hex())
	}
	o.models[addr] = model
	o.logger.Info("Registered price model", "address", addr.Hex(), "model", model.Name())
	return nil
}

// Model returns the model registered at addr.
func (o *Oracle) Model(addr common.Address) (pricemodel.PriceModel, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	m, ok := o.models[addr]
	return m, ok
}

// PriceModel returns the address of the model assigned to asset, zero when none.
func (o *Oracle) PriceModel(asset common.Address) common.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.assetModels[asset]
}

// Assets returns every asset with a model assigned, in address order.
func (o *Oracle) Assets() []common.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	assets := make([]common.Address, 0, len(o.assetModels))
	for a := range o.assetModels {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Cmp(assets[j]) < 0
	})
	return assets
}

// SetPaused sets the pause flag. Setting the current value is allowed.
func (o *Oracle) SetPaused(caller common.Address, paused bool) error {
	if err := o.control.RequireOwner(caller); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = paused
	o.logger.Info("Pause flag set", "paused", paused)
	return nil
}

// SetPoster replaces the poster. The zero address disables posting.
func (o *Oracle) SetPoster(caller, poster common.Address) error {
	if err := o.control.RequireOwner(caller); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if poster == o.control.CurrentPoster() {
		return fmt.Errorf("%w: poster unchanged", pricemodel.ErrInvalidParameter)
	}
	o.control.SetPoster(poster)
	o.logger.Info("Poster set", "poster", poster.Hex())
	return nil
}
