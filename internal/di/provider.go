package di

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/config"
	"github.com/helixdex/godexd/internal/core/amm"
	"github.com/helixdex/godexd/internal/core/events"
	"github.com/helixdex/godexd/internal/core/farm"
	"github.com/helixdex/godexd/internal/core/ledger"
	"github.com/helixdex/godexd/internal/core/lending"
	"github.com/helixdex/godexd/internal/core/oracle"
	"github.com/helixdex/godexd/internal/core/orderbook"
	"github.com/helixdex/godexd/internal/core/router"
	"github.com/helixdex/godexd/internal/core/types"
	"github.com/helixdex/godexd/internal/logger"
	"github.com/helixdex/godexd/internal/rpc"
	eventstore "github.com/helixdex/godexd/internal/storage/events"
	"github.com/helixdex/godexd/internal/storage/snapshot"
)

const oracleCacheSize = 128

// Build wires a complete daemon from validated configuration. When a
// snapshot store is configured and holds saved state, every engine is
// restored from it and genesis allocations are skipped.
func Build(cfg *config.Config, version string) (*Container, error) {
	c := &Container{
		Config: cfg,
		Log:    logger.ForComponent("di"),
	}

	c.Bus = events.NewBus(cfg.Events.Window)
	if cfg.Events.Driver != "none" {
		journal, err := eventstore.Open(eventstore.Config{
			Driver: cfg.Events.Driver,
			DSN:    cfg.Events.DSN,
		}, logger.ForComponent("events"))
		if err != nil {
			return nil, fmt.Errorf("opening event journal: %w", err)
		}
		c.Journal = journal
		c.Bus.Attach(journal)
	}

	var (
		state    snapshot.State
		restored bool
	)
	if cfg.Snapshot.Dir != "" {
		store, err := snapshot.Open(cfg.Snapshot.Dir)
		if err != nil {
			c.closePartial()
			return nil, fmt.Errorf("opening snapshot store: %w", err)
		}
		c.Snapshots = store
		switch err := store.Load(snapshot.StateKey, &state); {
		case err == nil:
			restored = true
		case errors.Is(err, snapshot.ErrNotFound):
		default:
			c.closePartial()
			return nil, fmt.Errorf("loading saved state: %w", err)
		}
	}

	interval := time.Duration(cfg.Chain.BlockSeconds) * time.Second
	genesis := time.Now()
	if restored {
		// Resume height where the snapshot left off so reward
		// accrual bookkeeping stays monotonic.
		genesis = genesis.Add(-time.Duration(state.Height) * interval)
	}
	c.Clock = types.NewSystemClock(genesis, interval)

	c.Ledger = ledger.NewInMemory()
	if restored {
		if err := c.Ledger.Restore(state.Ledger); err != nil {
			c.closePartial()
			return nil, fmt.Errorf("restoring ledger: %w", err)
		}
	} else {
		for i, alloc := range cfg.Genesis {
			amount, ok := sdkmath.NewIntFromString(alloc.Amount)
			if !ok {
				c.closePartial()
				return nil, fmt.Errorf("genesis[%d]: bad amount %q", i, alloc.Amount)
			}
			if err := c.Ledger.Mint(types.AccountID(alloc.Account), types.AssetID(alloc.Asset), amount); err != nil {
				c.closePartial()
				return nil, fmt.Errorf("genesis[%d]: %w", i, err)
			}
		}
		c.Ledger.Compact()
	}

	gov := types.AccountID(cfg.Chain.Governance)
	treasury := types.AccountID(cfg.Chain.Treasury)

	registry, err := amm.NewRegistry(c.Ledger, c.Clock, amm.Config{
		ProtocolFeeBps:   cfg.Fees.ProtocolBps,
		LPFeeBps:         cfg.Fees.LPBps,
		FlashLoanFeeBps:  cfg.Fees.FlashLoanBps,
		MinimumShareBurn: sdkmath.NewInt(cfg.Fees.MinimumShareBurn),
		Governance:       gov,
		Treasury:         treasury,
	}, c.Bus)
	if err != nil {
		c.closePartial()
		return nil, fmt.Errorf("building pool registry: %w", err)
	}
	c.Registry = registry

	f, err := farm.New(c.Ledger, c.Clock, farm.Config{
		Governance:  gov,
		Treasury:    treasury,
		ClaimFeeBps: cfg.Fees.FarmClaimBps,
	}, c.Bus)
	if err != nil {
		c.closePartial()
		return nil, fmt.Errorf("building farm: %w", err)
	}
	c.Farm = f

	c.Oracle = oracle.NewManual(gov, c.Clock)
	cached, err := oracle.NewCached(c.Oracle, oracleCacheSize)
	if err != nil {
		c.closePartial()
		return nil, fmt.Errorf("building oracle cache: %w", err)
	}

	c.Lending = lending.New(c.Ledger, c.Clock, cached, c.Farm, gov, c.Bus)
	if err := c.Lending.SetStalenessThreshold(gov, cfg.Oracle.StalenessThreshold); err != nil {
		c.closePartial()
		return nil, fmt.Errorf("configuring oracle staleness: %w", err)
	}

	c.Router = router.New(c.Registry, c.Farm, c.Clock)
	c.Book = orderbook.New(c.Ledger, c.Clock, c.Router, gov, c.Bus)

	if restored {
		if err := c.Registry.Restore(state.AMM); err != nil {
			c.closePartial()
			return nil, fmt.Errorf("restoring pools: %w", err)
		}
		if err := c.Farm.Restore(state.Farm); err != nil {
			c.closePartial()
			return nil, fmt.Errorf("restoring farm: %w", err)
		}
		if err := c.Lending.Restore(state.Lending); err != nil {
			c.closePartial()
			return nil, fmt.Errorf("restoring lending: %w", err)
		}
		if err := c.Book.Restore(state.Orders); err != nil {
			c.closePartial()
			return nil, fmt.Errorf("restoring order book: %w", err)
		}
		c.Log.Info().Uint64("height", state.Height).Msg("state restored from snapshot")
	}

	if err := c.Farm.SetAuthorizedLender(gov, c.Lending.Account(), true); err != nil {
		c.closePartial()
		return nil, fmt.Errorf("authorizing lending market: %w", err)
	}

	views := &rpc.Views{
		Registry: c.Registry,
		Farm:     c.Farm,
		Lending:  c.Lending,
		Book:     c.Book,
		Router:   c.Router,
		Clock:    c.Clock,
		Version:  version,
	}
	c.RPC = rpc.NewServer(views, c.Bus, c.Lock(), logger.ForComponent("rpc"))
	c.Stream = rpc.NewEventStream(c.Bus, logger.ForComponent("ws"))

	return c, nil
}

// closePartial releases handles opened before a Build failure without
// attempting a snapshot of half-wired state.
func (c *Container) closePartial() {
	if c.Snapshots != nil {
		_ = c.Snapshots.Close()
		c.Snapshots = nil
	}
	if c.Journal != nil {
		_ = c.Journal.Close()
		c.Journal = nil
	}
}
