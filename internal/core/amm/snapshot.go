package amm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/types"
)

// Snapshot DTOs. Amounts travel as decimal strings so the encoded form
// is stable across codec backends.

type PoolSnapshot struct {
	ID               uint64                       `codec:"id"`
	AssetA           string                       `codec:"asset_a"`
	AssetB           string                       `codec:"asset_b"`
	ReserveA         string                       `codec:"reserve_a"`
	ReserveB         string                       `codec:"reserve_b"`
	TotalShares      string                       `codec:"total_shares"`
	Shares           map[string]string            `codec:"shares"`
	ProtocolFees     map[string]string            `codec:"protocol_fees"`
	LPFees           map[string]map[string]string `codec:"lp_fees"`
	PriceCumulativeA string                       `codec:"price_cum_a"`
	PriceCumulativeB string                       `codec:"price_cum_b"`
	LastPriceUpdate  uint64                       `codec:"last_price_update"`
	Paused           bool                         `codec:"paused"`
}

type RegistrySnapshot struct {
	Pools []PoolSnapshot `codec:"pools"`
}

// Export captures every pool's state.
func (r *Registry) Export() RegistrySnapshot {
	snap := RegistrySnapshot{Pools: make([]PoolSnapshot, 0, len(r.pools))}
	for _, p := range r.pools {
		snap.Pools = append(snap.Pools, p.export())
	}
	return snap
}

// Restore rebuilds the registry's pools from a snapshot. The registry
// must be freshly constructed and empty.
func (r *Registry) Restore(snap RegistrySnapshot) error {
	if len(r.pools) != 0 {
		return fmt.Errorf("%w: restore into a non-empty registry", ErrInvalidPool)
	}
	for _, ps := range snap.Pools {
		if ps.ID != uint64(len(r.pools)+1) {
			return fmt.Errorf("%w: snapshot pool ids not contiguous at %d", ErrInvalidPool, ps.ID)
		}
		a, b := types.AssetID(ps.AssetA), types.AssetID(ps.AssetB)
		p := newPool(ps.ID, a, b, r.led, r.clock, &r.cfg, r.sink)
		if err := p.restoreSnapshot(ps); err != nil {
			return err
		}
		r.pools = append(r.pools, p)
		r.byPair[pairKey{a: a, b: b}] = p
	}
	return nil
}

func (p *Pool) export() PoolSnapshot {
	shares := make(map[string]string, len(p.shares))
	for acct, v := range p.shares {
		shares[string(acct)] = v.String()
	}
	protocol := make(map[string]string, len(p.protocolFees))
	for asset, v := range p.protocolFees {
		protocol[string(asset)] = v.String()
	}
	lp := make(map[string]map[string]string, len(p.lpFees))
	for acct, byAsset := range p.lpFees {
		inner := make(map[string]string, len(byAsset))
		for asset, v := range byAsset {
			inner[string(asset)] = v.String()
		}
		lp[string(acct)] = inner
	}
	return PoolSnapshot{
		ID:               p.id,
		AssetA:           string(p.assetA),
		AssetB:           string(p.assetB),
		ReserveA:         p.reserveA.String(),
		ReserveB:         p.reserveB.String(),
		TotalShares:      p.totalShares.String(),
		Shares:           shares,
		ProtocolFees:     protocol,
		LPFees:           lp,
		PriceCumulativeA: p.priceCumulativeA.String(),
		PriceCumulativeB: p.priceCumulativeB.String(),
		LastPriceUpdate:  p.lastPriceUpdate,
		Paused:           p.paused,
	}
}

func (p *Pool) restoreSnapshot(ps PoolSnapshot) error {
	var err error
	if p.reserveA, err = parseInt(ps.ReserveA); err != nil {
		return err
	}
	if p.reserveB, err = parseInt(ps.ReserveB); err != nil {
		return err
	}
	if p.totalShares, err = parseInt(ps.TotalShares); err != nil {
		return err
	}
	if p.priceCumulativeA, err = parseInt(ps.PriceCumulativeA); err != nil {
		return err
	}
	if p.priceCumulativeB, err = parseInt(ps.PriceCumulativeB); err != nil {
		return err
	}
	for acct, v := range ps.Shares {
		n, err := parseInt(v)
		if err != nil {
			return err
		}
		p.shares[types.AccountID(acct)] = n
	}
	for asset, v := range ps.ProtocolFees {
		n, err := parseInt(v)
		if err != nil {
			return err
		}
		p.protocolFees[types.AssetID(asset)] = n
	}
	for acct, byAsset := range ps.LPFees {
		inner := make(map[types.AssetID]sdkmath.Int, len(byAsset))
		for asset, v := range byAsset {
			n, err := parseInt(v)
			if err != nil {
				return err
			}
			inner[types.AssetID(asset)] = n
		}
		p.lpFees[types.AccountID(acct)] = inner
	}
	p.lastPriceUpdate = ps.LastPriceUpdate
	p.paused = ps.Paused
	return nil
}

func parseInt(s string) (sdkmath.Int, error) {
	n, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("bad integer %q in snapshot", s)
	}
	return n, nil
}
