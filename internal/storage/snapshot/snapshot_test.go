package snapshot

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

	atom = types.AssetID("ATOM")
	usdc = types.AssetID("USDC")
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	type payload struct {
		Name   string            `codec:"name"`
		Count  uint64            `codec:"count"`
		Fields map[string]string `codec:"fields"`
	}
	in := payload{Name: "checkpoint", Count: 42, Fields: map[string]string{"reserve_a": "1000"}}
	require.NoError(t, store.Save("test/small", in))

	var out payload
	require.NoError(t, store.Load("test/small", &out))
	require.Equal(t, in, out)
}

func TestLoadMissingKey(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	var out State
	require.ErrorIs(t, store.Load(StateKey, &out), ErrNotFound)
}

func TestCompressionRoundTrip(t *testing.T) {
	// Repetitive payload well past the compression threshold.
	big := map[string]string{}
	for i := 0; i < 500; i++ {
		big[string(rune('a'+i%26))+string(rune('a'+i%7))+string(rune('0'+i%10))] = "100000000000000000000"
	}
	plain := pack(mustEncode(t, big))
	require.Equal(t, byte(flagLZ4), plain[0])

	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Save("test/big", big))

	var out map[string]string
	require.NoError(t, store.Load("test/big", &out))
	require.Equal(t, big, out)
}

func mustEncode(t *testing.T, v interface{}) []byte {
	t.Helper()
	var s Store
	buf, err := s.encode(v)
	require.NoError(t, err)
	return buf
}

func TestEngineStateRoundTrip(t *testing.T) {
	led := ledger.NewInMemory()
	clock := types.NewManualClock(100, 1_000_000)
	reg, err := amm.NewRegistry(led, clock, amm.DefaultConfig(gov, treasury), nil)
	require.NoError(t, err)
	f, err := farm.New(led, clock, farm.DefaultConfig(gov, treasury), nil)
	require.NoError(t, err)

	require.NoError(t, led.Mint(alice, atom, sdkmath.NewInt(1_000_000)))
	require.NoError(t, led.Mint(alice, usdc, sdkmath.NewInt(2_000_000)))

	p, err := reg.CreatePool(atom, usdc)
	require.NoError(t, err)
	_, err = p.AddLiquidity(alice, sdkmath.NewInt(1000), sdkmath.NewInt(2000), alice)
	require.NoError(t, err)
	_, err = p.Swap(alice, sdkmath.NewInt(100), atom, sdkmath.ZeroInt(), alice)
	require.NoError(t, err)

	fid, err := f.AddPool(gov, atom, usdc, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.NoError(t, f.Stake(alice, fid, sdkmath.NewInt(500)))
	require.NoError(t, f.LockStake(alice, fid, sdkmath.NewInt(200), 10, 150))

	state := State{
		Height: clock.Height(),
		At:     clock.Now(),
		Ledger: led.Export(),
		AMM:    reg.Export(),
		Farm:   f.Export(),
	}

	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(StateKey, state))
	require.NoError(t, store.Close())

	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()
	var loaded State
	require.NoError(t, store.Load(StateKey, &loaded))

	// Rebuild fresh engines from the loaded state.
	led2 := ledger.NewInMemory()
	require.NoError(t, led2.Restore(loaded.Ledger))
	clock2 := types.NewManualClock(loaded.Height, loaded.At)
	reg2, err := amm.NewRegistry(led2, clock2, amm.DefaultConfig(gov, treasury), nil)
	require.NoError(t, err)
	require.NoError(t, reg2.Restore(loaded.AMM))
	f2, err := farm.New(led2, clock2, farm.DefaultConfig(gov, treasury), nil)
	require.NoError(t, err)
	require.NoError(t, f2.Restore(loaded.Farm))

	p2, err := reg2.Pool(p.ID())
	require.NoError(t, err)
	ra, rb := p.GetReserves()
	ra2, rb2 := p2.GetReserves()
	require.Equal(t, ra, ra2)
	require.Equal(t, rb, rb2)
	require.Equal(t, p.TotalShares(), p2.TotalShares())
	require.Equal(t, p.SharesOf(alice), p2.SharesOf(alice))
	require.Equal(t, p.ProtocolFeesAccrued(atom), p2.ProtocolFeesAccrued(atom))

	stake, err := f2.StakeOf(fid, alice)
	require.NoError(t, err)
	require.Equal(t, int64(300), stake.Int64())
	lock, err := f2.LockOf(fid, alice)
	require.NoError(t, err)
	require.Equal(t, int64(200), lock.Amount.Int64())
	require.Equal(t, uint32(150), lock.BoostMultiplier)

	require.Equal(t, led.BalanceOf(alice, atom), led2.BalanceOf(alice, atom))

	// The restored pool keeps trading identically.
	out1, err := p.Quote(sdkmath.NewInt(50), atom)
	require.NoError(t, err)
	out2, err := p2.Quote(sdkmath.NewInt(50), atom)
	require.NoError(t, err)
	require.Equal(t, out1, out2)
}
