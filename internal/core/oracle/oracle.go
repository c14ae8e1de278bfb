// Package oracle provides the price feed capability consumed by the
// lending market. Prices are 1e18 fixed-point; staleness is enforced by
// the consumer, not the feed.
package oracle

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/types"
)

var (
	// ErrNoPriceMapping is returned for assets without a registered feed.
	ErrNoPriceMapping = errors.New("no price mapping for asset")
	// ErrStalePrice is returned when a feed has not updated within the
	// staleness threshold.
	ErrStalePrice = errors.New("stale price")
	// ErrUnauthorized is returned when a non-governance caller tries to
	// administer feeds.
	ErrUnauthorized = errors.New("unauthorized")
)

// DefaultStalenessThreshold is how long a price stays usable, in the
// ledger's time units.
const DefaultStalenessThreshold = 60

// PriceOracle returns the latest observation for an asset. The caller
// decides whether updatedAt is recent enough.
type PriceOracle interface {
	GetPrice(asset types.AssetID) (price sdkmath.Int, updatedAt uint64, err error)
}

// FreshPrice looks up a price and rejects it if it is older than
// threshold time units at the clock's current time.
func FreshPrice(o PriceOracle, asset types.AssetID, clock types.Clock, threshold uint64) (sdkmath.Int, error) {
	price, updatedAt, err := o.GetPrice(asset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if now := clock.Now(); now > updatedAt && now-updatedAt > threshold {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s updated at %d, now %d", ErrStalePrice, asset, updatedAt, now)
	}
	return price, nil
}

type observation struct {
	price     sdkmath.Int
	updatedAt uint64
}

// Manual is a governance-administered feed set. Each asset maps to a
// feed identifier; feeds are posted by governance (or an off-chain
// relayer holding the governance key).
type Manual struct {
	governance types.AccountID
	mapping    map[types.AssetID]string
	feeds      map[string]observation
	clock      types.Clock
}

func NewManual(governance types.AccountID, clock types.Clock) *Manual {
	return &Manual{
		governance: governance,
		mapping:    make(map[types.AssetID]string),
		feeds:      make(map[string]observation),
		clock:      clock,
	}
}

// MapAsset registers the feed identifier an asset's price is read from.
func (m *Manual) MapAsset(caller types.AccountID, asset types.AssetID, feedID string) error {
	if caller != m.governance {
		return fmt.Errorf("%w: only governance may map feeds", ErrUnauthorized)
	}
	if feedID == "" {
		return fmt.Errorf("%w: empty feed id for %s", ErrNoPriceMapping, asset)
	}
	m.mapping[asset] = feedID
	return nil
}

// Post records a new observation on a feed, stamped with the clock's
// current time.
func (m *Manual) Post(caller types.AccountID, feedID string, price sdkmath.Int) error {
	if caller != m.governance {
		return fmt.Errorf("%w: only governance may post prices", ErrUnauthorized)
	}
	if !price.IsPositive() {
		return fmt.Errorf("price must be positive, got %s", price)
	}
	m.feeds[feedID] = observation{price: price, updatedAt: m.clock.Now()}
	return nil
}

func (m *Manual) GetPrice(asset types.AssetID) (sdkmath.Int, uint64, error) {
	feedID, ok := m.mapping[asset]
	if !ok {
		return sdkmath.ZeroInt(), 0, fmt.Errorf("%w: %s", ErrNoPriceMapping, asset)
	}
	obs, ok := m.feeds[feedID]
	if !ok {
		return sdkmath.ZeroInt(), 0, fmt.Errorf("%w: feed %s has no observation", ErrNoPriceMapping, feedID)
	}
	return obs.price, obs.updatedAt, nil
}
