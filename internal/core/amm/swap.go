package amm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/events"
	"github.com/helixdex/godexd/internal/core/numeric"
	"github.com/helixdex/godexd/internal/core/types"
)

// SwapRequest is one element of a batch swap.
type SwapRequest struct {
	AmountIn     sdkmath.Int
	AssetIn      types.AssetID
	MinAmountOut sdkmath.Int
}

// AmountOut is the raw constant-product quote with no fee applied:
// floor(amountIn * reserveOut / (reserveIn + amountIn)). Pure function;
// fee handling belongs to the pool that owns the fee configuration.
func AmountOut(amountIn, reserveIn, reserveOut sdkmath.Int) (sdkmath.Int, error) {
	if !amountIn.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return sdkmath.ZeroInt(), ErrInsufficientLiquidity
	}
	den, err := numeric.SafeAdd(reserveIn, amountIn)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return numeric.MulDiv(amountIn, reserveOut, den)
}

// Quote returns the output a swap of amountIn of assetIn would produce
// right now, net of the pool's fee split. Read-only.
func (p *Pool) Quote(amountIn sdkmath.Int, assetIn types.AssetID) (sdkmath.Int, error) {
	reserveIn, reserveOut, _, err := p.orient(assetIn)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	_, _, net, err := p.splitFees(amountIn)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return AmountOut(net, reserveIn, reserveOut)
}

// Swap pulls amountIn of assetIn from caller, credits the fee buckets,
// and pays the constant-product output of the other asset to recipient.
// The fee is deducted from the input before pricing: the net amount
// appears in both numerator and denominator.
func (p *Pool) Swap(caller types.AccountID, amountIn sdkmath.Int, assetIn types.AssetID, minAmountOut sdkmath.Int, recipient types.AccountID) (sdkmath.Int, error) {
	out := sdkmath.ZeroInt()
	err := p.mutate(func() error {
		var err error
		out, err = p.swapLocked(caller, amountIn, assetIn, minAmountOut, recipient)
		return err
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return out, nil
}

// BatchSwap applies each request in order. The batch is atomic as a
// single call: the first failing element aborts and rolls back every
// element before it.
func (p *Pool) BatchSwap(caller types.AccountID, reqs []SwapRequest, recipient types.AccountID) ([]sdkmath.Int, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrZeroAmount)
	}
	outs := make([]sdkmath.Int, 0, len(reqs))
	err := p.mutate(func() error {
		for i, req := range reqs {
			out, err := p.swapLocked(caller, req.AmountIn, req.AssetIn, req.MinAmountOut, recipient)
			if err != nil {
				return fmt.Errorf("batch element %d: %w", i, err)
			}
			outs = append(outs, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outs, nil
}

// swapLocked performs one swap with the guard already held.
func (p *Pool) swapLocked(caller types.AccountID, amountIn sdkmath.Int, assetIn types.AssetID, minAmountOut sdkmath.Int, recipient types.AccountID) (sdkmath.Int, error) {
	if err := requirePositive(amountIn); err != nil {
		return sdkmath.ZeroInt(), err
	}
	reserveIn, reserveOut, assetOut, err := p.orient(assetIn)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: empty reserves", ErrInsufficientLiquidity)
	}
	p.advancePriceAccumulators()

	protocolFee, lpFee, net, err := p.splitFees(amountIn)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !net.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: input consumed by fees", ErrZeroAmount)
	}
	amountOut, err := AmountOut(net, reserveIn, reserveOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !minAmountOut.IsNil() && amountOut.LT(minAmountOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: out %s < min %s", ErrSlippageExceeded, amountOut, minAmountOut)
	}

	// Pull the full gross input; fees stay inside the pool's balance
	// until claimed, reserves only track the net amount.
	if err := p.led.TransferFrom(caller, p.account, assetIn, amountIn); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := p.led.Transfer(p.account, recipient, assetOut, amountOut); err != nil {
		return sdkmath.ZeroInt(), err
	}

	p.creditProtocolFee(assetIn, protocolFee)
	p.creditLPFee(recipient, assetIn, lpFee)
	if assetIn == p.assetA {
		p.reserveA = p.reserveA.Add(net)
		p.reserveB = p.reserveB.Sub(amountOut)
	} else {
		p.reserveB = p.reserveB.Add(net)
		p.reserveA = p.reserveA.Sub(amountOut)
	}

	p.emit(events.KindSwap, map[string]string{
		"pool":       fmt.Sprint(p.id),
		"account":    string(caller),
		"asset_in":   string(assetIn),
		"asset_out":  string(assetOut),
		"amount_in":  amountIn.String(),
		"amount_out": amountOut.String(),
		"fee_proto":  protocolFee.String(),
		"fee_lp":     lpFee.String(),
	})
	return amountOut, nil
}

// splitFees returns (protocolFee, lpFee, net) for a gross input.
func (p *Pool) splitFees(amountIn sdkmath.Int) (sdkmath.Int, sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	protocolFee, err := numeric.BpsOf(amountIn, p.cfg.ProtocolFeeBps)
	if err != nil {
		return zero, zero, zero, err
	}
	lpFee, err := numeric.BpsOf(amountIn, p.cfg.LPFeeBps)
	if err != nil {
		return zero, zero, zero, err
	}
	net := amountIn.Sub(protocolFee).Sub(lpFee)
	return protocolFee, lpFee, net, nil
}

// orient maps assetIn to (reserveIn, reserveOut, assetOut).
func (p *Pool) orient(assetIn types.AssetID) (sdkmath.Int, sdkmath.Int, types.AssetID, error) {
	switch assetIn {
	case p.assetA:
		return p.reserveA, p.reserveB, p.assetB, nil
	case p.assetB:
		return p.reserveB, p.reserveA, p.assetA, nil
	default:
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), "", fmt.Errorf("%w: pool does not trade %s", ErrInsufficientLiquidity, assetIn)
	}
}
