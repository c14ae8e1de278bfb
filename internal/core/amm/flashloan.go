package amm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/events"
	"github.com/helixdex/godexd/internal/core/numeric"
	"github.com/helixdex/godexd/internal/core/types"
)

// FlashBorrower is the callback capability a flash-loan caller hands
// in. The loan principal has already been transferred when OnFlashLoan
// runs; the borrower must return principal plus fee to the pool before
// returning. The pool's reentrancy guard is held for the whole call, so
// the borrower cannot re-enter this pool's mutating entry points.
type FlashBorrower interface {
	OnFlashLoan(borrower types.AccountID, asset types.AssetID, amount, fee sdkmath.Int, data []byte) error
}

// FlashBorrowerFunc adapts a function to FlashBorrower.
type FlashBorrowerFunc func(borrower types.AccountID, asset types.AssetID, amount, fee sdkmath.Int, data []byte) error

func (f FlashBorrowerFunc) OnFlashLoan(borrower types.AccountID, asset types.AssetID, amount, fee sdkmath.Int, data []byte) error {
	return f(borrower, asset, amount, fee, data)
}

// FlashLoan lends amount of asset to caller for the duration of the
// callback. If the callback errors, or the pool's balance afterwards is
// below the pre-loan balance plus fee, the entire call is undone,
// including the initial transfer out. The fee accrues to the protocol
// bucket on success.
func (p *Pool) FlashLoan(caller types.AccountID, asset types.AssetID, amount sdkmath.Int, borrower FlashBorrower, data []byte) error {
	return p.mutate(func() error {
		if err := requirePositive(amount); err != nil {
			return err
		}
		if asset != p.assetA && asset != p.assetB {
			return fmt.Errorf("%w: pool does not hold %s", ErrInvalidPool, asset)
		}
		balanceBefore := p.led.BalanceOf(p.account, asset)
		if balanceBefore.LT(amount) {
			return fmt.Errorf("%w: pool holds %s, loan %s", ErrInsufficientLiquidity, balanceBefore, amount)
		}
		if borrower == nil {
			return fmt.Errorf("%w: nil borrower", ErrCallbackFailed)
		}
		fee, err := numeric.BpsOf(amount, p.cfg.FlashLoanFeeBps)
		if err != nil {
			return err
		}

		if err := p.led.Transfer(p.account, caller, asset, amount); err != nil {
			return err
		}
		if err := borrower.OnFlashLoan(caller, asset, amount, fee, data); err != nil {
			return fmt.Errorf("%w: %v", ErrCallbackFailed, err)
		}

		required := balanceBefore.Add(fee)
		if p.led.BalanceOf(p.account, asset).LT(required) {
			return fmt.Errorf("%w: balance %s < required %s",
				ErrFlashLoanNotRepaid, p.led.BalanceOf(p.account, asset), required)
		}
		p.creditProtocolFee(asset, fee)

		p.emit(events.KindFlashLoan, map[string]string{
			"pool":    fmt.Sprint(p.id),
			"account": string(caller),
			"asset":   string(asset),
			"amount":  amount.String(),
			"fee":     fee.String(),
		})
		return nil
	})
}
