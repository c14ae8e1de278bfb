package di

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/helixdex/godexd/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Events.Driver = "none"
	cfg.Events.DSN = ""
	cfg.Genesis = []config.Allocation{
		{Account: "alice", Asset: "ATOM", Amount: "1000000"},
		{Account: "alice", Asset: "USDC", Amount: "2000000"},
	}
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func TestBuildFromGenesis(t *testing.T) {
	c, err := Build(testConfig(t), "test")
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, sdkmath.NewInt(1_000_000), c.Ledger.BalanceOf("alice", "ATOM"))
	require.NotNil(t, c.RPC)
	require.NotNil(t, c.Stream)
	require.Nil(t, c.Journal)
	require.True(t, c.Farm.IsAuthorizedLender(c.Lending.Account()))
}

func TestBuildRestoresSnapshot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Snapshot.Dir = t.TempDir()

	c, err := Build(cfg, "test")
	require.NoError(t, err)

	id, err := c.Router.CreatePair("ATOM", "USDC")
	require.NoError(t, err)
	_, err = c.Router.AddLiquidity("alice", "ATOM", "USDC", sdkmath.NewInt(1000), sdkmath.NewInt(2000), 0)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c2, err := Build(cfg, "test")
	require.NoError(t, err)
	defer c2.Close()

	pool, err := c2.Registry.Pool(id)
	require.NoError(t, err)
	a, b := pool.GetReserves()
	require.Equal(t, sdkmath.NewInt(1000), a)
	require.Equal(t, sdkmath.NewInt(2000), b)

	// Genesis allocations must not be applied twice on restore.
	require.Equal(t, sdkmath.NewInt(999_000), c2.Ledger.BalanceOf("alice", "ATOM"))
}

func TestBuildWithEventJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Events.Driver = "sqlite"
	cfg.Events.DSN = t.TempDir() + "/events.db"

	c, err := Build(cfg, "test")
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Router.CreatePair("ATOM", "USDC")
	require.NoError(t, err)

	evs, err := c.Journal.Recent(10)
	require.NoError(t, err)
	require.NotEmpty(t, evs)
}
