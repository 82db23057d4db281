package evm

import (
	"github.com/StrathCole/poster-oracle/pkg/feeds"
)

func init() {
	feeds.Register("evm.chainlink", NewChainlinkFeed)
	feeds.Register("evm.pair", NewPairFeed)
}
