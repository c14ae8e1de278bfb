package oracle

import (
	sdkmath "cosmossdk.io/math"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/helixdex/godexd/internal/core/types"
)

// Cached wraps a PriceOracle with an LRU of the last observation per
// asset. The rpc views read through it so repeated quote requests do
// not re-walk the feed mapping; a newer updatedAt always replaces the
// cached entry. Inner errors pass through untouched, the cache never
// substitutes an old observation for a failed lookup.
type Cached struct {
	inner PriceOracle
	lru   *lru.Cache[types.AssetID, cachedObservation]
}

type cachedObservation struct {
	price     sdkmath.Int
	updatedAt uint64
}

func NewCached(inner PriceOracle, size int) (*Cached, error) {
	if size <= 0 {
		size = 128
	}
	c, err := lru.New[types.AssetID, cachedObservation](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, lru: c}, nil
}

func (c *Cached) GetPrice(asset types.AssetID) (sdkmath.Int, uint64, error) {
	price, updatedAt, err := c.inner.GetPrice(asset)
	if err != nil {
		return sdkmath.ZeroInt(), 0, err
	}
	if prev, ok := c.lru.Get(asset); !ok || updatedAt >= prev.updatedAt {
		c.lru.Add(asset, cachedObservation{price: price, updatedAt: updatedAt})
	}
	return price, updatedAt, nil
}
