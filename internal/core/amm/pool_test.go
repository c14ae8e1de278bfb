package amm

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/helixdex/godexd/internal/core/ledger"
	"github.com/helixdex/godexd/internal/core/types"
)

const (
	gov      = types.AccountID("gov")
	treasury = types.AccountID("treasury")
	alice    = types.AccountID("alice")
	bob      = types.AccountID("bob")
	carol    = types.AccountID("carol")

	atom = types.AssetID("ATOM")
	usdc = types.AssetID("USDC")
)

type env struct {
	led   *ledger.InMemory
	clock *types.ManualClock
	reg   *Registry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	led := ledger.NewInMemory()
	clock := types.NewManualClock(1, 1_000_000)
	reg, err := NewRegistry(led, clock, DefaultConfig(gov, treasury), nil)
	require.NoError(t, err)
	for _, acct := range []types.AccountID{alice, bob, carol} {
		require.NoError(t, led.Mint(acct, atom, sdkmath.NewInt(10_000_000)))
		require.NoError(t, led.Mint(acct, usdc, sdkmath.NewInt(10_000_000)))
	}
	return &env{led: led, clock: clock, reg: reg}
}

func (e *env) pool(t *testing.T) *Pool {
	t.Helper()
	p, err := e.reg.CreatePool(atom, usdc)
	require.NoError(t, err)
	return p
}

func i(n int64) sdkmath.Int { return sdkmath.NewInt(n) }

func TestCreatePool(t *testing.T) {
	e := newEnv(t)

	t.Run("CanonicalOrder", func(t *testing.T) {
		p, err := e.reg.CreatePool(usdc, atom)
		require.NoError(t, err)
		a, b := p.Assets()
		require.Equal(t, atom, a)
		require.Equal(t, usdc, b)
		require.Equal(t, uint64(1), p.ID())
	})

	t.Run("DuplicatePairRejected", func(t *testing.T) {
		_, err := e.reg.CreatePool(atom, usdc)
		require.ErrorIs(t, err, ErrPairExists)
	})

	t.Run("IdenticalAssetsRejected", func(t *testing.T) {
		_, err := e.reg.CreatePool(atom, atom)
		require.ErrorIs(t, err, ErrIdenticalAssets)
	})

	t.Run("LookupEitherOrder", func(t *testing.T) {
		p1, err := e.reg.PoolByPair(atom, usdc)
		require.NoError(t, err)
		p2, err := e.reg.PoolByPair(usdc, atom)
		require.NoError(t, err)
		require.Same(t, p1, p2)
	})

	t.Run("UnknownIdRejected", func(t *testing.T) {
		_, err := e.reg.Pool(0)
		require.ErrorIs(t, err, ErrInvalidPool)
		_, err = e.reg.Pool(99)
		require.ErrorIs(t, err, ErrInvalidPool)
	})
}

func TestInitialDeposit(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)

	// floor(sqrt(1000*2000)) = 1414, minus the 1000 burn = 414.
	minted, err := p.AddLiquidity(alice, i(1000), i(2000), alice)
	require.NoError(t, err)
	require.Equal(t, int64(414), minted.Int64())

	ra, rb := p.GetReserves()
	require.Equal(t, int64(1000), ra.Int64())
	require.Equal(t, int64(2000), rb.Int64())
	require.Equal(t, int64(1414), p.TotalShares().Int64())
	require.Equal(t, int64(1000), p.SharesOf(types.ZeroAccount).Int64())
	require.Equal(t, int64(414), p.SharesOf(alice).Int64())
}

func TestInitialDepositTooSmall(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)

	// sqrt(100*100) = 100 <= 1000 burn.
	_, err := p.AddLiquidity(alice, i(100), i(100), alice)
	require.ErrorIs(t, err, ErrInsufficientInitialLiquidity)

	// Nothing moved, nothing minted.
	require.True(t, p.TotalShares().IsZero())
	require.Equal(t, int64(10_000_000), e.led.BalanceOf(alice, atom).Int64())
}

func TestAddLiquidityZeroAmounts(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(0), i(2000), alice)
	require.ErrorIs(t, err, ErrZeroAmount)
	_, err = p.AddLiquidity(alice, i(1000), i(0), alice)
	require.ErrorIs(t, err, ErrZeroAmount)
}

func TestProportionalDeposit(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(1000), i(2000), alice)
	require.NoError(t, err)

	t.Run("HalfPoolMintsHalfShares", func(t *testing.T) {
		minted, err := p.AddLiquidity(bob, i(500), i(1000), bob)
		require.NoError(t, err)
		// totalShares was 1414; 500*1414/1000 = 707, exactly half.
		require.Equal(t, int64(707), minted.Int64())
	})

	t.Run("ImbalancedDepositRejected", func(t *testing.T) {
		// amountB below the ratio-implied optimal dilutes existing LPs.
		_, err := p.AddLiquidity(bob, i(500), i(999), bob)
		require.ErrorIs(t, err, ErrInsufficientLiquidity)
	})

	t.Run("ExcessBAccepted", func(t *testing.T) {
		_, err := p.AddLiquidity(bob, i(100), i(500), bob)
		require.NoError(t, err)
	})
}

func TestRemoveLiquidityRoundTrip(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)

	depositA, depositB := i(40_000), i(90_000)
	minted, err := p.AddLiquidity(alice, depositA, depositB, alice)
	require.NoError(t, err)

	outA, outB, err := p.RemoveLiquidity(alice, minted)
	require.NoError(t, err)

	// The sole depositor never gets back more than deposited; the burn
	// plus integer rounding keeps the difference in the pool.
	require.True(t, outA.LTE(depositA), "outA %s > deposit %s", outA, depositA)
	require.True(t, outB.LTE(depositB), "outB %s > deposit %s", outB, depositB)
	require.True(t, p.SharesOf(alice).IsZero())
}

func TestRemoveLiquidityBounds(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	minted, err := p.AddLiquidity(alice, i(1000), i(2000), alice)
	require.NoError(t, err)

	_, _, err = p.RemoveLiquidity(alice, i(0))
	require.ErrorIs(t, err, ErrZeroAmount)
	_, _, err = p.RemoveLiquidity(alice, minted.Add(i(1)))
	require.ErrorIs(t, err, ErrInsufficientShares)
	_, _, err = p.RemoveLiquidity(bob, i(1))
	require.ErrorIs(t, err, ErrInsufficientShares)
}

func TestSwapPricing(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(1000), i(2000), alice)
	require.NoError(t, err)

	// amountIn=100: both fee legs truncate to zero at 5/25 bps, so the
	// full input is priced: floor(100*2000/1100) = 181.
	out, err := p.Swap(bob, i(100), atom, i(0), bob)
	require.NoError(t, err)
	require.Equal(t, int64(181), out.Int64())

	ra, rb := p.GetReserves()
	require.Equal(t, int64(1100), ra.Int64())
	require.Equal(t, int64(1819), rb.Int64())
}

func TestSwapFeeSplit(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(1_000_000), i(2_000_000), alice)
	require.NoError(t, err)

	// in=10000: protocol 5 bps = 5, lp 25 bps = 25, net 9970.
	// out = floor(9970 * 2000000 / 1009970) = 19743.
	out, err := p.Swap(bob, i(10_000), atom, i(0), bob)
	require.NoError(t, err)
	require.Equal(t, int64(19_743), out.Int64())

	require.Equal(t, int64(5), p.ProtocolFeesAccrued(atom).Int64())
	require.Equal(t, int64(25), p.LPFeesAccrued(bob, atom).Int64())

	ra, rb := p.GetReserves()
	require.Equal(t, int64(1_009_970), ra.Int64())
	require.Equal(t, int64(1_980_257), rb.Int64())

	// Gross input sits in the pool balance: reserves plus fee buckets.
	require.Equal(t, int64(1_010_000), e.led.BalanceOf(p.Account(), atom).Int64())
}

func TestConstantProductNonDecreasing(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(1_000_000), i(2_000_000), alice)
	require.NoError(t, err)

	product := func() sdkmath.Int {
		ra, rb := p.GetReserves()
		return ra.Mul(rb)
	}

	prev := product()
	swaps := []struct {
		in    int64
		asset types.AssetID
	}{
		{10_000, atom}, {5_000, usdc}, {123_456, atom}, {777, usdc}, {1, atom},
	}
	for _, s := range swaps {
		_, err := p.Swap(bob, i(s.in), s.asset, i(0), bob)
		require.NoError(t, err)
		cur := product()
		require.True(t, cur.GTE(prev), "product decreased: %s -> %s", prev, cur)
		prev = cur
	}
}

func TestSwapValidation(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)

	t.Run("EmptyReserves", func(t *testing.T) {
		_, err := p.Swap(bob, i(100), atom, i(0), bob)
		require.ErrorIs(t, err, ErrInsufficientLiquidity)
	})

	_, err := p.AddLiquidity(alice, i(1000), i(2000), alice)
	require.NoError(t, err)

	t.Run("UnknownAsset", func(t *testing.T) {
		_, err := p.Swap(bob, i(100), "DOGE", i(0), bob)
		require.ErrorIs(t, err, ErrInsufficientLiquidity)
	})

	t.Run("UnknownAssetQuote", func(t *testing.T) {
		_, err := p.Quote(i(100), "DOGE")
		require.ErrorIs(t, err, ErrInsufficientLiquidity)
	})

	t.Run("ZeroAmount", func(t *testing.T) {
		_, err := p.Swap(bob, i(0), atom, i(0), bob)
		require.ErrorIs(t, err, ErrZeroAmount)
	})

	t.Run("SlippageExceeded", func(t *testing.T) {
		ra, rb := p.GetReserves()
		_, err := p.Swap(bob, i(100), atom, i(10_000), bob)
		require.ErrorIs(t, err, ErrSlippageExceeded)
		// No partial effect.
		ra2, rb2 := p.GetReserves()
		require.Equal(t, ra, ra2)
		require.Equal(t, rb, rb2)
	})
}

func TestBatchSwapAtomic(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(100_000), i(200_000), alice)
	require.NoError(t, err)

	ra, rb := p.GetReserves()
	bobAtom := e.led.BalanceOf(bob, atom)

	// Second element demands an impossible minimum; the first must be
	// rolled back with it.
	_, err = p.BatchSwap(bob, []SwapRequest{
		{AmountIn: i(1000), AssetIn: atom, MinAmountOut: i(0)},
		{AmountIn: i(1000), AssetIn: atom, MinAmountOut: i(1_000_000)},
	}, bob)
	require.ErrorIs(t, err, ErrSlippageExceeded)

	ra2, rb2 := p.GetReserves()
	require.Equal(t, ra, ra2)
	require.Equal(t, rb, rb2)
	require.Equal(t, bobAtom, e.led.BalanceOf(bob, atom))

	// A clean batch applies sequentially: the second leg prices against
	// the reserves the first leg left behind.
	outs, err := p.BatchSwap(bob, []SwapRequest{
		{AmountIn: i(1000), AssetIn: atom, MinAmountOut: i(0)},
		{AmountIn: i(1000), AssetIn: atom, MinAmountOut: i(0)},
	}, bob)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	require.True(t, outs[1].LT(outs[0]), "second leg should price worse")
}

func TestFeeAccrualMonotonic(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(1_000_000), i(2_000_000), alice)
	require.NoError(t, err)

	for _, in := range []int64{2000, 10_000, 399_999} {
		before := p.ProtocolFeesAccrued(atom)
		_, err := p.Swap(bob, i(in), atom, i(0), bob)
		require.NoError(t, err)
		want := in * int64(DefaultProtocolFeeBps) / 10_000
		require.Equal(t, want, p.ProtocolFeesAccrued(atom).Sub(before).Int64(), "amountIn=%d", in)
	}
}

func TestClaimProtocolFees(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(1_000_000), i(2_000_000), alice)
	require.NoError(t, err)
	_, err = p.Swap(bob, i(100_000), atom, i(0), bob)
	require.NoError(t, err)

	t.Run("OnlyTreasury", func(t *testing.T) {
		require.ErrorIs(t, p.ClaimProtocolFees(alice), ErrUnauthorized)
	})

	t.Run("PaysOutAndZeroes", func(t *testing.T) {
		accrued := p.ProtocolFeesAccrued(atom)
		require.True(t, accrued.IsPositive())
		require.NoError(t, p.ClaimProtocolFees(treasury))
		require.Equal(t, accrued, e.led.BalanceOf(treasury, atom))
		require.True(t, p.ProtocolFeesAccrued(atom).IsZero())
	})

	t.Run("SecondClaimFails", func(t *testing.T) {
		require.ErrorIs(t, p.ClaimProtocolFees(treasury), ErrNoFeesAccrued)
	})
}

func TestClaimLPReward(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(1_000_000), i(2_000_000), alice)
	require.NoError(t, err)
	_, err = p.Swap(bob, i(100_000), atom, i(0), carol)
	require.NoError(t, err)

	// The LP fee bucket follows the swap recipient.
	accrued := p.LPFeesAccrued(carol, atom)
	require.Equal(t, int64(250), accrued.Int64())

	require.ErrorIs(t, p.ClaimLPReward(bob), ErrNoFeesAccrued)

	before := e.led.BalanceOf(carol, atom)
	require.NoError(t, p.ClaimLPReward(carol))
	require.Equal(t, accrued, e.led.BalanceOf(carol, atom).Sub(before))
	require.ErrorIs(t, p.ClaimLPReward(carol), ErrNoFeesAccrued)
}

func TestFlashLoan(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(100_000), i(200_000), alice)
	require.NoError(t, err)

	t.Run("RepaidWithFee", func(t *testing.T) {
		// 12500 at 8 bps: fee = 10.
		repay := FlashBorrowerFunc(func(borrower types.AccountID, asset types.AssetID, amount, fee sdkmath.Int, data []byte) error {
			require.Equal(t, int64(10), fee.Int64())
			return e.led.Transfer(borrower, p.Account(), asset, amount.Add(fee))
		})
		before := e.led.BalanceOf(p.Account(), atom)
		require.NoError(t, p.FlashLoan(bob, atom, i(12_500), repay, nil))
		require.Equal(t, before.Add(i(10)), e.led.BalanceOf(p.Account(), atom))
		require.Equal(t, int64(10), p.ProtocolFeesAccrued(atom).Int64())
	})

	t.Run("UnderRepaymentRollsBack", func(t *testing.T) {
		ra, rb := p.GetReserves()
		poolBal := e.led.BalanceOf(p.Account(), atom)
		bobBal := e.led.BalanceOf(bob, atom)
		fees := p.ProtocolFeesAccrued(atom)

		short := FlashBorrowerFunc(func(borrower types.AccountID, asset types.AssetID, amount, fee sdkmath.Int, data []byte) error {
			// Keep one unit of the fee.
			return e.led.Transfer(borrower, p.Account(), asset, amount.Add(fee).Sub(i(1)))
		})
		err := p.FlashLoan(bob, atom, i(12_500), short, nil)
		require.ErrorIs(t, err, ErrFlashLoanNotRepaid)

		// Full rollback, including the initial transfer out.
		ra2, rb2 := p.GetReserves()
		require.Equal(t, ra, ra2)
		require.Equal(t, rb, rb2)
		require.Equal(t, poolBal, e.led.BalanceOf(p.Account(), atom))
		require.Equal(t, bobBal, e.led.BalanceOf(bob, atom))
		require.Equal(t, fees, p.ProtocolFeesAccrued(atom))
	})

	t.Run("CallbackErrorRollsBack", func(t *testing.T) {
		poolBal := e.led.BalanceOf(p.Account(), atom)
		boom := FlashBorrowerFunc(func(types.AccountID, types.AssetID, sdkmath.Int, sdkmath.Int, []byte) error {
			return errors.New("boom")
		})
		err := p.FlashLoan(bob, atom, i(500), boom, nil)
		require.ErrorIs(t, err, ErrCallbackFailed)
		require.Equal(t, poolBal, e.led.BalanceOf(p.Account(), atom))
	})

	t.Run("ExceedsPoolBalance", func(t *testing.T) {
		err := p.FlashLoan(bob, atom, i(10_000_000_000), nil, nil)
		require.ErrorIs(t, err, ErrInsufficientLiquidity)
	})
}

func TestFlashLoanReentrancyBlocked(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(100_000), i(200_000), alice)
	require.NoError(t, err)

	var nested error
	reenter := FlashBorrowerFunc(func(borrower types.AccountID, asset types.AssetID, amount, fee sdkmath.Int, data []byte) error {
		_, nested = p.Swap(borrower, amount, asset, i(0), borrower)
		// Repay properly so only the nested call's fate decides.
		return e.led.Transfer(borrower, p.Account(), asset, amount.Add(fee))
	})
	require.NoError(t, p.FlashLoan(bob, atom, i(1000), reenter, nil))
	require.ErrorIs(t, nested, ErrReentrantCall)
}

func TestPause(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(1000), i(2000), alice)
	require.NoError(t, err)

	require.ErrorIs(t, p.SetPaused(alice, true), ErrUnauthorized)
	require.NoError(t, p.SetPaused(gov, true))

	_, err = p.AddLiquidity(alice, i(1000), i(2000), alice)
	require.ErrorIs(t, err, ErrPoolPaused)
	_, err = p.Swap(bob, i(100), atom, i(0), bob)
	require.ErrorIs(t, err, ErrPoolPaused)

	// Views stay available.
	ra, rb := p.GetReserves()
	require.Equal(t, int64(1000), ra.Int64())
	require.Equal(t, int64(2000), rb.Int64())

	require.NoError(t, p.SetPaused(gov, false))
	_, err = p.Swap(bob, i(100), atom, i(0), bob)
	require.NoError(t, err)
}

func TestPriceAccumulators(t *testing.T) {
	e := newEnv(t)
	p := e.pool(t)
	_, err := p.AddLiquidity(alice, i(1000), i(2000), alice)
	require.NoError(t, err)

	e.clock.AdvanceTime(10)
	_, err = p.Swap(bob, i(100), atom, i(0), bob)
	require.NoError(t, err)

	// Price of A in B held at 2.0 (scaled 1e18) for 10 units.
	cumA, cumB, last := p.PriceCumulatives()
	wantA := sdkmath.NewInt(2).Mul(sdkmath.NewIntWithDecimal(1, 18)).Mul(i(10))
	wantB := sdkmath.NewIntWithDecimal(5, 17).Mul(i(10))
	require.Equal(t, wantA, cumA)
	require.Equal(t, wantB, cumB)
	require.Equal(t, e.clock.Now(), last)

	// Monotonic: another interval only grows them.
	e.clock.AdvanceTime(7)
	_, err = p.Swap(bob, i(100), atom, i(0), bob)
	require.NoError(t, err)
	cumA2, cumB2, _ := p.PriceCumulatives()
	require.True(t, cumA2.GT(cumA))
	require.True(t, cumB2.GT(cumB))
}

func TestAmountOutPure(t *testing.T) {
	out, err := AmountOut(i(100), i(1000), i(2000))
	require.NoError(t, err)
	require.Equal(t, int64(181), out.Int64())

	_, err = AmountOut(i(0), i(1000), i(2000))
	require.ErrorIs(t, err, ErrZeroAmount)
	_, err = AmountOut(i(100), i(0), i(2000))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}
