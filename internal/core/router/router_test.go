package router

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/helixdex/godexd/internal/core/amm"
	"github.com/helixdex/godexd/internal/core/farm"
	"github.com/helixdex/godexd/internal/core/ledger"
	"github.com/helixdex/godexd/internal/core/types"
)

const (
	gov      = types.AccountID("gov")
	treasury = types.AccountID("treasury")
	alice    = types.AccountID("alice")
	bob      = types.AccountID("bob")

	atom = types.AssetID("ATOM")
	usdc = types.AssetID("USDC")
	hlx  = types.AssetID("HLX")
)

type env struct {
	led    *ledger.InMemory
	clock  *types.ManualClock
	router *Router
}

func newEnv(t *testing.T) *env {
	t.Helper()
	led := ledger.NewInMemory()
	clock := types.NewManualClock(100, 1_000_000)
	reg, err := amm.NewRegistry(led, clock, amm.DefaultConfig(gov, treasury), nil)
	require.NoError(t, err)
	f, err := farm.New(led, clock, farm.DefaultConfig(gov, treasury), nil)
	require.NoError(t, err)
	for _, acct := range []types.AccountID{alice, bob} {
		require.NoError(t, led.Mint(acct, atom, sdkmath.NewInt(10_000_000)))
		require.NoError(t, led.Mint(acct, usdc, sdkmath.NewInt(10_000_000)))
	}
	require.NoError(t, led.Mint(f.Account(), hlx, sdkmath.NewInt(1_000_000)))
	return &env{led: led, clock: clock, router: New(reg, f, clock)}
}

func i(n int64) sdkmath.Int { return sdkmath.NewInt(n) }

func TestCreatePair(t *testing.T) {
	e := newEnv(t)

	id, err := e.router.CreatePair(usdc, atom)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	_, err = e.router.CreatePair(atom, usdc)
	require.ErrorIs(t, err, amm.ErrPairExists)
}

func TestAddRemoveLiquidity(t *testing.T) {
	e := newEnv(t)
	_, err := e.router.CreatePair(atom, usdc)
	require.NoError(t, err)

	shares, err := e.router.AddLiquidity(alice, atom, usdc, i(1000), i(2000), 0)
	require.NoError(t, err)
	require.Equal(t, int64(414), shares.Int64())

	outA, outB, err := e.router.RemoveLiquidity(alice, atom, usdc, i(100), 0)
	require.NoError(t, err)
	require.True(t, outA.IsPositive())
	require.True(t, outB.IsPositive())
}

func TestAddLiquidityReorientsPair(t *testing.T) {
	e := newEnv(t)
	_, err := e.router.CreatePair(atom, usdc)
	require.NoError(t, err)

	// Caller names the pair in reverse canonical order; amounts must
	// follow the named assets, not the canonical ones.
	_, err = e.router.AddLiquidity(alice, usdc, atom, i(2000), i(1000), 0)
	require.NoError(t, err)

	p, err := e.router.Registry().PoolByPair(atom, usdc)
	require.NoError(t, err)
	ra, rb := p.GetReserves()
	require.Equal(t, int64(1000), ra.Int64()) // ATOM is canonical A
	require.Equal(t, int64(2000), rb.Int64())
}

func TestSwapExactIn(t *testing.T) {
	e := newEnv(t)
	_, err := e.router.CreatePair(atom, usdc)
	require.NoError(t, err)
	_, err = e.router.AddLiquidity(alice, atom, usdc, i(1000), i(2000), 0)
	require.NoError(t, err)

	quote, err := e.router.QuoteSwap(atom, usdc, i(100))
	require.NoError(t, err)
	require.Equal(t, int64(181), quote.Int64())

	out, err := e.router.SwapExactIn(bob, atom, usdc, i(100), quote, 0)
	require.NoError(t, err)
	require.Equal(t, quote, out)

	_, err = e.router.SwapExactIn(bob, atom, hlx, i(100), i(0), 0)
	require.ErrorIs(t, err, amm.ErrInvalidPool)
}

func TestDeadline(t *testing.T) {
	e := newEnv(t)
	_, err := e.router.CreatePair(atom, usdc)
	require.NoError(t, err)
	_, err = e.router.AddLiquidity(alice, atom, usdc, i(1000), i(2000), 0)
	require.NoError(t, err)

	now := e.clock.Now()

	t.Run("FutureDeadlinePasses", func(t *testing.T) {
		_, err := e.router.SwapExactIn(bob, atom, usdc, i(100), i(0), now+10)
		require.NoError(t, err)
	})

	t.Run("CurrentInstantPasses", func(t *testing.T) {
		_, err := e.router.SwapExactIn(bob, atom, usdc, i(100), i(0), now)
		require.NoError(t, err)
	})

	t.Run("PastDeadlineRejected", func(t *testing.T) {
		e.clock.AdvanceTime(50)
		_, err := e.router.SwapExactIn(bob, atom, usdc, i(100), i(0), now)
		require.ErrorIs(t, err, ErrDeadlineExpired)

		_, err = e.router.AddLiquidity(alice, atom, usdc, i(10), i(20), now)
		require.ErrorIs(t, err, ErrDeadlineExpired)

		_, _, err = e.router.RemoveLiquidity(alice, atom, usdc, i(1), now)
		require.ErrorIs(t, err, ErrDeadlineExpired)
	})
}

func TestFarmPassThrough(t *testing.T) {
	e := newEnv(t)
	f := e.router.Farm()
	id, err := f.AddPool(gov, atom, hlx, i(100))
	require.NoError(t, err)

	require.NoError(t, e.router.Stake(alice, id, i(500), 0))
	e.clock.AdvanceBlocks(10)

	paid, err := e.router.ClaimReward(alice, id, 0)
	require.NoError(t, err)
	require.True(t, paid.IsPositive())

	require.NoError(t, e.router.Unstake(alice, id, i(500), 0))

	e.clock.AdvanceTime(10)
	require.ErrorIs(t, e.router.Stake(alice, id, i(1), e.clock.Now()-1), ErrDeadlineExpired)
}
