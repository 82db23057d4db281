package feeds

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

// FeedType represents the kind of upstream a feed reads from.
type FeedType string

const (
	FeedTypeEVM    FeedType = "evm"
	FeedTypePyth   FeedType = "pyth"
	FeedTypeStatic FeedType = "static"

	FeedTypeAggregate FeedType = "aggregate"
)

// Quote is a price observed from a feed.
type Quote struct {
	Asset     common.Address  `json:"asset"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updated_at"`
	Feed      string          `json:"feed"`
}

// Feed is an external quote source.
type Feed interface {
	pricemodel.Quoter

	// Initialize connects the feed to its upstream.
	Initialize(ctx context.Context) error

	// Close releases the upstream connection.
	Close() error

	// Name returns the unique name of this feed
	Name() string

	// Type returns the type of this feed
	Type() FeedType

	// Assets returns the assets this feed can quote
	Assets() []common.Address

	// IsHealthy reports whether the last quote succeeded
	IsHealthy() bool

	// LastUpdate returns the time of the last successful quote
	LastUpdate() time.Time
}

// FeedFactory is a function that creates a new Feed instance
type FeedFactory func(config map[string]interface{}) (Feed, error)
