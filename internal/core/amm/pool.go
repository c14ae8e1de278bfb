// Package amm implements the constant-product liquidity pools: share
// minting and burning, fee-split swaps, flash loans and the cumulative
// price accumulators external TWAP readers integrate over.
//
// Execution is single-threaded and atomic per call. Every mutating
// entry point takes a ledger journal revision and a copy of the pool
// state up front; on any failure both are restored, so no caller ever
// observes a partial effect. A per-pool entered flag rejects reentrant
// mutation, which only genuinely arises during the flash-loan callback.
package amm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/events"
	"github.com/helixdex/godexd/internal/core/ledger"
	"github.com/helixdex/godexd/internal/core/numeric"
	"github.com/helixdex/godexd/internal/core/types"
)

// Ledger is what a pool needs from the balance ledger: transfers plus
// the journal used for all-or-nothing rollback.
type Ledger interface {
	ledger.Adapter
	ledger.Journal
}

// Pool is one two-asset constant-product market. Funds physically sit
// under the pool's own ledger account; reserves track only the net
// tradable amounts, with accrued fees making up the difference.
type Pool struct {
	id      uint64
	account types.AccountID
	assetA  types.AssetID // canonical order: assetA < assetB
	assetB  types.AssetID

	reserveA    sdkmath.Int
	reserveB    sdkmath.Int
	totalShares sdkmath.Int
	shares      map[types.AccountID]sdkmath.Int

	protocolFees map[types.AssetID]sdkmath.Int
	lpFees       map[types.AccountID]map[types.AssetID]sdkmath.Int

	// Cumulative price-time integrals, 1e18 fixed point.
	priceCumulativeA sdkmath.Int // price of A in B
	priceCumulativeB sdkmath.Int // price of B in A
	lastPriceUpdate  uint64

	paused  bool
	entered bool

	led   Ledger
	clock types.Clock
	cfg   *Config
	sink  events.Sink
}

func newPool(id uint64, assetA, assetB types.AssetID, led Ledger, clock types.Clock, cfg *Config, sink events.Sink) *Pool {
	return &Pool{
		id:               id,
		account:          types.AccountID(fmt.Sprintf("pool:%d:%s/%s", id, assetA, assetB)),
		assetA:           assetA,
		assetB:           assetB,
		reserveA:         sdkmath.ZeroInt(),
		reserveB:         sdkmath.ZeroInt(),
		totalShares:      sdkmath.ZeroInt(),
		shares:           make(map[types.AccountID]sdkmath.Int),
		protocolFees:     make(map[types.AssetID]sdkmath.Int),
		lpFees:           make(map[types.AccountID]map[types.AssetID]sdkmath.Int),
		priceCumulativeA: sdkmath.ZeroInt(),
		priceCumulativeB: sdkmath.ZeroInt(),
		lastPriceUpdate:  clock.Now(),
		led:              led,
		clock:            clock,
		cfg:              cfg,
		sink:             sink,
	}
}

// ID returns the registry-assigned pool id.
func (p *Pool) ID() uint64 { return p.id }

// Account returns the pool's own ledger account.
func (p *Pool) Account() types.AccountID { return p.account }

// Assets returns the pair in canonical order.
func (p *Pool) Assets() (types.AssetID, types.AssetID) { return p.assetA, p.assetB }

// GetReserves returns the current net reserves.
func (p *Pool) GetReserves() (sdkmath.Int, sdkmath.Int) { return p.reserveA, p.reserveB }

// TotalShares returns the outstanding pool-share supply.
func (p *Pool) TotalShares() sdkmath.Int { return p.totalShares }

// SharesOf returns an account's share balance.
func (p *Pool) SharesOf(account types.AccountID) sdkmath.Int {
	if s, ok := p.shares[account]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}

// ProtocolFeesAccrued returns the unclaimed protocol fee bucket for an
// asset.
func (p *Pool) ProtocolFeesAccrued(asset types.AssetID) sdkmath.Int {
	if f, ok := p.protocolFees[asset]; ok {
		return f
	}
	return sdkmath.ZeroInt()
}

// LPFeesAccrued returns an account's unclaimed LP fee bucket for an
// asset.
func (p *Pool) LPFeesAccrued(account types.AccountID, asset types.AssetID) sdkmath.Int {
	if byAsset, ok := p.lpFees[account]; ok {
		if f, ok := byAsset[asset]; ok {
			return f
		}
	}
	return sdkmath.ZeroInt()
}

// PriceCumulatives returns the accumulators and their last update time.
func (p *Pool) PriceCumulatives() (a, b sdkmath.Int, lastUpdate uint64) {
	return p.priceCumulativeA, p.priceCumulativeB, p.lastPriceUpdate
}

// Paused reports the governance pause flag.
func (p *Pool) Paused() bool { return p.paused }

// AddLiquidity pulls both assets from caller and mints pool shares to
// recipient. The first deposit sets the price; later deposits must
// respect the current ratio so existing holders cannot be diluted.
func (p *Pool) AddLiquidity(caller types.AccountID, amountA, amountB sdkmath.Int, recipient types.AccountID) (sdkmath.Int, error) {
	minted := sdkmath.ZeroInt()
	err := p.mutate(func() error {
		if err := requirePositive(amountA); err != nil {
			return err
		}
		if err := requirePositive(amountB); err != nil {
			return err
		}
		p.advancePriceAccumulators()

		var shareAmount sdkmath.Int
		if p.totalShares.IsZero() {
			product, err := numeric.SafeMul(amountA, amountB)
			if err != nil {
				return err
			}
			root := numeric.SqrtFloor(product)
			if root.LTE(p.cfg.MinimumShareBurn) {
				return fmt.Errorf("%w: sqrt(%s*%s)=%s <= burn %s",
					ErrInsufficientInitialLiquidity, amountA, amountB, root, p.cfg.MinimumShareBurn)
			}
			shareAmount = root.Sub(p.cfg.MinimumShareBurn)
			// The burned minimum is parked on the zero account forever.
			p.creditShares(types.ZeroAccount, p.cfg.MinimumShareBurn)
		} else {
			// Ratio check by cross-multiplication: amountB/amountA must be
			// at least reserveB/reserveA.
			lhs, err := numeric.SafeMul(amountB, p.reserveA)
			if err != nil {
				return err
			}
			rhs, err := numeric.SafeMul(amountA, p.reserveB)
			if err != nil {
				return err
			}
			if lhs.LT(rhs) {
				return fmt.Errorf("%w: deposit ratio below pool ratio", ErrInsufficientLiquidity)
			}
			shareAmount, err = numeric.MulDiv(amountA, p.totalShares, p.reserveA)
			if err != nil {
				return err
			}
			if shareAmount.IsZero() {
				return fmt.Errorf("%w: deposit too small to mint a share", ErrInsufficientLiquidity)
			}
		}

		if err := p.led.TransferFrom(caller, p.account, p.assetA, amountA); err != nil {
			return err
		}
		if err := p.led.TransferFrom(caller, p.account, p.assetB, amountB); err != nil {
			return err
		}
		p.reserveA = p.reserveA.Add(amountA)
		p.reserveB = p.reserveB.Add(amountB)
		p.creditShares(recipient, shareAmount)
		minted = shareAmount

		p.emit(events.KindLiquidityAdded, map[string]string{
			"pool":      fmt.Sprint(p.id),
			"account":   string(recipient),
			"amount_a":  amountA.String(),
			"amount_b":  amountB.String(),
			"shares":    shareAmount.String(),
			"total":     p.totalShares.String(),
			"reserve_a": p.reserveA.String(),
			"reserve_b": p.reserveB.String(),
		})
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return minted, nil
}

// RemoveLiquidity burns caller's shares and pays out both assets pro
// rata. The two payouts are floored independently; rounding loss stays
// in the pool.
func (p *Pool) RemoveLiquidity(caller types.AccountID, shareAmount sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	outA, outB := sdkmath.ZeroInt(), sdkmath.ZeroInt()
	err := p.mutate(func() error {
		if err := requirePositive(shareAmount); err != nil {
			return err
		}
		held := p.SharesOf(caller)
		if held.LT(shareAmount) {
			return fmt.Errorf("%w: have %s, burn %s", ErrInsufficientShares, held, shareAmount)
		}
		p.advancePriceAccumulators()

		var err error
		outA, err = numeric.MulDiv(shareAmount, p.reserveA, p.totalShares)
		if err != nil {
			return err
		}
		outB, err = numeric.MulDiv(shareAmount, p.reserveB, p.totalShares)
		if err != nil {
			return err
		}

		p.shares[caller] = held.Sub(shareAmount)
		p.totalShares = p.totalShares.Sub(shareAmount)
		p.reserveA = p.reserveA.Sub(outA)
		p.reserveB = p.reserveB.Sub(outB)

		if outA.IsPositive() {
			if err := p.led.Transfer(p.account, caller, p.assetA, outA); err != nil {
				return err
			}
		}
		if outB.IsPositive() {
			if err := p.led.Transfer(p.account, caller, p.assetB, outB); err != nil {
				return err
			}
		}

		p.emit(events.KindLiquidityBurned, map[string]string{
			"pool":     fmt.Sprint(p.id),
			"account":  string(caller),
			"shares":   shareAmount.String(),
			"amount_a": outA.String(),
			"amount_b": outB.String(),
		})
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	return outA, outB, nil
}

// ClaimProtocolFees pays every accrued protocol fee bucket to the
// treasury. Only the treasury account may call it.
func (p *Pool) ClaimProtocolFees(caller types.AccountID) error {
	return p.mutate(func() error {
		if caller != p.cfg.Treasury {
			return fmt.Errorf("%w: only treasury claims protocol fees", ErrUnauthorized)
		}
		claimed := false
		for _, asset := range []types.AssetID{p.assetA, p.assetB} {
			amount := p.ProtocolFeesAccrued(asset)
			if !amount.IsPositive() {
				continue
			}
			if err := p.led.Transfer(p.account, caller, asset, amount); err != nil {
				return err
			}
			p.protocolFees[asset] = sdkmath.ZeroInt()
			claimed = true
			p.emit(events.KindFeesClaimed, map[string]string{
				"pool": fmt.Sprint(p.id), "kind": "protocol",
				"asset": string(asset), "amount": amount.String(),
			})
		}
		if !claimed {
			return ErrNoFeesAccrued
		}
		return nil
	})
}

// ClaimLPReward pays the caller's accrued LP fee buckets out.
func (p *Pool) ClaimLPReward(caller types.AccountID) error {
	return p.mutate(func() error {
		byAsset := p.lpFees[caller]
		claimed := false
		for _, asset := range []types.AssetID{p.assetA, p.assetB} {
			amount, ok := byAsset[asset]
			if !ok || !amount.IsPositive() {
				continue
			}
			if err := p.led.Transfer(p.account, caller, asset, amount); err != nil {
				return err
			}
			byAsset[asset] = sdkmath.ZeroInt()
			claimed = true
			p.emit(events.KindFeesClaimed, map[string]string{
				"pool": fmt.Sprint(p.id), "kind": "lp", "account": string(caller),
				"asset": string(asset), "amount": amount.String(),
			})
		}
		if !claimed {
			return ErrNoFeesAccrued
		}
		return nil
	})
}

// SetPaused flips the governance pause flag. Views stay available on a
// paused pool; mutations fail.
func (p *Pool) SetPaused(caller types.AccountID, paused bool) error {
	if p.entered {
		return ErrReentrantCall
	}
	if caller != p.cfg.Governance {
		return fmt.Errorf("%w: only governance may pause", ErrUnauthorized)
	}
	p.paused = paused
	return nil
}

// mutate wraps a mutating entry point: reentrancy guard, pause check,
// and all-or-nothing rollback of both ledger and pool state.
func (p *Pool) mutate(fn func() error) error {
	if p.entered {
		return ErrReentrantCall
	}
	if p.paused {
		return ErrPoolPaused
	}
	p.entered = true
	defer func() { p.entered = false }()

	rev := p.led.Snapshot()
	saved := p.cloneState()
	if err := fn(); err != nil {
		p.led.RevertTo(rev)
		p.restoreState(saved)
		return err
	}
	return nil
}

type poolState struct {
	reserveA, reserveB sdkmath.Int
	totalShares        sdkmath.Int
	shares             map[types.AccountID]sdkmath.Int
	protocolFees       map[types.AssetID]sdkmath.Int
	lpFees             map[types.AccountID]map[types.AssetID]sdkmath.Int
	priceCumulativeA   sdkmath.Int
	priceCumulativeB   sdkmath.Int
	lastPriceUpdate    uint64
}

func (p *Pool) cloneState() poolState {
	shares := make(map[types.AccountID]sdkmath.Int, len(p.shares))
	for k, v := range p.shares {
		shares[k] = v
	}
	protocol := make(map[types.AssetID]sdkmath.Int, len(p.protocolFees))
	for k, v := range p.protocolFees {
		protocol[k] = v
	}
	lp := make(map[types.AccountID]map[types.AssetID]sdkmath.Int, len(p.lpFees))
	for acct, byAsset := range p.lpFees {
		inner := make(map[types.AssetID]sdkmath.Int, len(byAsset))
		for k, v := range byAsset {
			inner[k] = v
		}
		lp[acct] = inner
	}
	return poolState{
		reserveA: p.reserveA, reserveB: p.reserveB,
		totalShares: p.totalShares, shares: shares,
		protocolFees: protocol, lpFees: lp,
		priceCumulativeA: p.priceCumulativeA,
		priceCumulativeB: p.priceCumulativeB,
		lastPriceUpdate:  p.lastPriceUpdate,
	}
}

func (p *Pool) restoreState(s poolState) {
	p.reserveA, p.reserveB = s.reserveA, s.reserveB
	p.totalShares = s.totalShares
	p.shares = s.shares
	p.protocolFees = s.protocolFees
	p.lpFees = s.lpFees
	p.priceCumulativeA = s.priceCumulativeA
	p.priceCumulativeB = s.priceCumulativeB
	p.lastPriceUpdate = s.lastPriceUpdate
}

// advancePriceAccumulators integrates spot price over the time since
// the last mutation. Called before reserves change so the interval is
// priced at the rate that actually held during it.
func (p *Pool) advancePriceAccumulators() {
	now := p.clock.Now()
	elapsed := now - p.lastPriceUpdate
	if elapsed == 0 {
		return
	}
	if p.reserveA.IsPositive() && p.reserveB.IsPositive() {
		dt := sdkmath.NewIntFromUint64(elapsed)
		priceA := p.reserveB.Mul(numeric.Scale).Quo(p.reserveA)
		priceB := p.reserveA.Mul(numeric.Scale).Quo(p.reserveB)
		p.priceCumulativeA = p.priceCumulativeA.Add(priceA.Mul(dt))
		p.priceCumulativeB = p.priceCumulativeB.Add(priceB.Mul(dt))
	}
	p.lastPriceUpdate = now
}

func (p *Pool) creditShares(account types.AccountID, amount sdkmath.Int) {
	p.shares[account] = p.SharesOf(account).Add(amount)
	p.totalShares = p.totalShares.Add(amount)
}

func (p *Pool) creditProtocolFee(asset types.AssetID, amount sdkmath.Int) {
	p.protocolFees[asset] = p.ProtocolFeesAccrued(asset).Add(amount)
}

func (p *Pool) creditLPFee(account types.AccountID, asset types.AssetID, amount sdkmath.Int) {
	byAsset, ok := p.lpFees[account]
	if !ok {
		byAsset = make(map[types.AssetID]sdkmath.Int)
		p.lpFees[account] = byAsset
	}
	if prev, ok := byAsset[asset]; ok {
		byAsset[asset] = prev.Add(amount)
	} else {
		byAsset[asset] = amount
	}
}

func (p *Pool) emit(kind string, fields map[string]string) {
	if p.sink == nil {
		return
	}
	p.sink.Record(events.Event{
		Height: p.clock.Height(),
		At:     p.clock.Now(),
		Kind:   kind,
		Fields: fields,
	})
}

func requirePositive(amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrZeroAmount)
	}
	return nil
}
