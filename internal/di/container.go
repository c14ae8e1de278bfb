// Package di assembles the daemon from configuration: ledger, engines,
// event plumbing, persistence and the RPC surface, wired in dependency
// order.
package di

import (
	"sync"

	"github.com/rs/zerolog"

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
	"github.com/helixdex/godexd/internal/rpc"
	eventstore "github.com/helixdex/godexd/internal/storage/events"
	"github.com/helixdex/godexd/internal/storage/snapshot"
)

// Container holds every long-lived component of a running daemon.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	Clock  types.Clock
	Ledger *ledger.InMemory

	Bus     *events.Bus
	Journal *eventstore.Journal // nil when events.driver is "none"

	Registry *amm.Registry
	Farm     *farm.Farm
	Oracle   *oracle.Manual
	Lending  *lending.Lending
	Router   *router.Router
	Book     *orderbook.Book

	Snapshots *snapshot.Store // nil when snapshot.dir is empty

	RPC    *rpc.Server
	Stream *rpc.EventStream

	// mu serializes state mutation against RPC reads.
	mu sync.Mutex
}

// Lock returns the lock guarding all engine state.
func (c *Container) Lock() sync.Locker { return &c.mu }

// SaveState persists the full engine state. No-op without a snapshot
// store. The caller must not hold the state lock.
func (c *Container) SaveState() error {
	if c.Snapshots == nil {
		return nil
	}
	c.mu.Lock()
	state := snapshot.State{
		Height:  c.Clock.Height(),
		At:      c.Clock.Now(),
		Ledger:  c.Ledger.Export(),
		AMM:     c.Registry.Export(),
		Farm:    c.Farm.Export(),
		Lending: c.Lending.Export(),
		Orders:  c.Book.Export(),
	}
	c.mu.Unlock()

	if err := c.Snapshots.Save(snapshot.StateKey, state); err != nil {
		return err
	}
	c.Log.Info().Uint64("height", state.Height).Msg("state snapshot saved")
	return nil
}

// Close flushes a final snapshot and releases storage handles.
func (c *Container) Close() error {
	var firstErr error
	if err := c.SaveState(); err != nil {
		c.Log.Error().Err(err).Msg("final snapshot failed")
		firstErr = err
	}
	if c.Snapshots != nil {
		if err := c.Snapshots.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.Journal != nil {
		if err := c.Journal.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
