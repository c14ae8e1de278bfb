// Package router is the stateless orchestration layer in front of the
// AMM registry and the farm. It resolves pairs to pools, enforces
// deadlines, and forwards min-out bounds; all balance and share state
// lives in the engines it fronts.
package router

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/amm"
	"github.com/helixdex/godexd/internal/core/farm"
	"github.com/helixdex/godexd/internal/core/types"
)

// ErrDeadlineExpired rejects calls whose deadline is already past at
// the clock's current timestamp.
var ErrDeadlineExpired = errors.New("deadline expired")

// Router holds handles on the engines; it owns no state of its own.
type Router struct {
	registry *amm.Registry
	farm     *farm.Farm
	clock    types.Clock
}

func New(registry *amm.Registry, f *farm.Farm, clock types.Clock) *Router {
	return &Router{registry: registry, farm: f, clock: clock}
}

// Registry exposes the underlying pool registry for read-side callers.
func (r *Router) Registry() *amm.Registry { return r.registry }

// Farm exposes the underlying yield farm for read-side callers.
func (r *Router) Farm() *farm.Farm { return r.farm }

// checkDeadline rejects a timestamp strictly in the past. A zero
// deadline means no bound.
func (r *Router) checkDeadline(deadline uint64) error {
	if deadline != 0 && r.clock.Now() > deadline {
		return fmt.Errorf("%w: deadline %d, now %d", ErrDeadlineExpired, deadline, r.clock.Now())
	}
	return nil
}

// CreatePair creates the pool for an unordered asset pair and returns
// its id.
func (r *Router) CreatePair(assetA, assetB types.AssetID) (uint64, error) {
	p, err := r.registry.CreatePool(assetA, assetB)
	if err != nil {
		return 0, err
	}
	return p.ID(), nil
}

// AddLiquidity resolves the pair and deposits into its pool. Amounts
// are given in the caller's order and reoriented to the pool's
// canonical order. Returns the shares minted.
func (r *Router) AddLiquidity(caller types.AccountID, assetA, assetB types.AssetID, amountA, amountB sdkmath.Int, deadline uint64) (sdkmath.Int, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return sdkmath.ZeroInt(), err
	}
	p, err := r.registry.PoolByPair(assetA, assetB)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	canonA, _ := p.Assets()
	if assetA != canonA {
		amountA, amountB = amountB, amountA
	}
	return p.AddLiquidity(caller, amountA, amountB, caller)
}

// RemoveLiquidity burns shares against the pair's pool and returns the
// two amounts paid out, in the pool's canonical order.
func (r *Router) RemoveLiquidity(caller types.AccountID, assetA, assetB types.AssetID, shares sdkmath.Int, deadline uint64) (sdkmath.Int, sdkmath.Int, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	p, err := r.registry.PoolByPair(assetA, assetB)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	return p.RemoveLiquidity(caller, shares)
}

// SwapExactIn swaps a fixed input against the pair's pool, paying the
// output to the caller.
func (r *Router) SwapExactIn(caller types.AccountID, assetIn, assetOut types.AssetID, amountIn, minAmountOut sdkmath.Int, deadline uint64) (sdkmath.Int, error) {
	return r.SwapExactInTo(caller, assetIn, assetOut, amountIn, minAmountOut, caller, deadline)
}

// SwapExactInTo is SwapExactIn with an explicit output recipient.
func (r *Router) SwapExactInTo(caller types.AccountID, assetIn, assetOut types.AssetID, amountIn, minAmountOut sdkmath.Int, recipient types.AccountID, deadline uint64) (sdkmath.Int, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return sdkmath.ZeroInt(), err
	}
	p, err := r.registry.PoolByPair(assetIn, assetOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return p.Swap(caller, amountIn, assetIn, minAmountOut, recipient)
}

// QuoteSwap prices a swap against current reserves without touching
// state.
func (r *Router) QuoteSwap(assetIn, assetOut types.AssetID, amountIn sdkmath.Int) (sdkmath.Int, error) {
	p, err := r.registry.PoolByPair(assetIn, assetOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return p.Quote(amountIn, assetIn)
}

// Stake forwards to the farm.
func (r *Router) Stake(caller types.AccountID, poolID uint64, amount sdkmath.Int, deadline uint64) error {
	if err := r.checkDeadline(deadline); err != nil {
		return err
	}
	return r.farm.Stake(caller, poolID, amount)
}

// Unstake forwards to the farm.
func (r *Router) Unstake(caller types.AccountID, poolID uint64, amount sdkmath.Int, deadline uint64) error {
	if err := r.checkDeadline(deadline); err != nil {
		return err
	}
	return r.farm.Unstake(caller, poolID, amount)
}

// ClaimReward forwards to the farm and returns the payout.
func (r *Router) ClaimReward(caller types.AccountID, poolID uint64, deadline uint64) (sdkmath.Int, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return r.farm.ClaimReward(caller, poolID)
}
