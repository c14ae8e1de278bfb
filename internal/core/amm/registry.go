package amm

import (
	"fmt"

	"github.com/helixdex/godexd/internal/core/events"
	"github.com/helixdex/godexd/internal/core/types"
)

// Registry owns every pool: a flat collection indexed by the stable id
// assigned at creation, plus a pair index for lookup. There is no
// global singleton; whoever needs pools holds the registry handle.
type Registry struct {
	led   Ledger
	clock types.Clock
	cfg   Config
	sink  events.Sink

	pools  []*Pool
	byPair map[pairKey]*Pool
}

type pairKey struct {
	a, b types.AssetID
}

func NewRegistry(led Ledger, clock types.Clock, cfg Config, sink events.Sink) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		led:    led,
		clock:  clock,
		cfg:    cfg,
		sink:   sink,
		byPair: make(map[pairKey]*Pool),
	}, nil
}

// CreatePool registers a pool for the pair, canonical order applied.
// Ids start at 1 and never change.
func (r *Registry) CreatePool(assetA, assetB types.AssetID) (*Pool, error) {
	if assetA == "" || assetB == "" {
		return nil, fmt.Errorf("%w: empty asset id", ErrInvalidPool)
	}
	if assetA == assetB {
		return nil, fmt.Errorf("%w: %s", ErrIdenticalAssets, assetA)
	}
	a, b := types.OrderAssets(assetA, assetB)
	key := pairKey{a: a, b: b}
	if _, exists := r.byPair[key]; exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrPairExists, a, b)
	}
	id := uint64(len(r.pools) + 1)
	p := newPool(id, a, b, r.led, r.clock, &r.cfg, r.sink)
	r.pools = append(r.pools, p)
	r.byPair[key] = p

	if r.sink != nil {
		r.sink.Record(events.Event{
			Height: r.clock.Height(),
			At:     r.clock.Now(),
			Kind:   events.KindPoolCreated,
			Fields: map[string]string{
				"pool": fmt.Sprint(id), "asset_a": string(a), "asset_b": string(b),
			},
		})
	}
	return p, nil
}

// Pool returns the pool with the given id.
func (r *Registry) Pool(id uint64) (*Pool, error) {
	if id == 0 || id > uint64(len(r.pools)) {
		return nil, fmt.Errorf("%w: id %d", ErrInvalidPool, id)
	}
	return r.pools[id-1], nil
}

// PoolByPair returns the pool trading the pair, in either asset order.
func (r *Registry) PoolByPair(assetA, assetB types.AssetID) (*Pool, error) {
	a, b := types.OrderAssets(assetA, assetB)
	if p, ok := r.byPair[pairKey{a: a, b: b}]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: no pool for %s/%s", ErrInvalidPool, a, b)
}

// Pools returns every pool in id order.
func (r *Registry) Pools() []*Pool {
	out := make([]*Pool, len(r.pools))
	copy(out, r.pools)
	return out
}

// Config returns the registry's current fee configuration.
func (r *Registry) Config() Config { return r.cfg }

// SetFees updates the swap fee split. Governance only; the protocol
// side keeps its hard cap.
func (r *Registry) SetFees(caller types.AccountID, protocolBps, lpBps uint32) error {
	if caller != r.cfg.Governance {
		return fmt.Errorf("%w: only governance sets fees", ErrUnauthorized)
	}
	if protocolBps > MaxProtocolFeeBps {
		return fmt.Errorf("protocol fee %d bps exceeds cap %d", protocolBps, MaxProtocolFeeBps)
	}
	r.cfg.ProtocolFeeBps = protocolBps
	r.cfg.LPFeeBps = lpBps
	return nil
}

// SetFlashLoanFee updates the flash-loan fee. Governance only.
func (r *Registry) SetFlashLoanFee(caller types.AccountID, bps uint32) error {
	if caller != r.cfg.Governance {
		return fmt.Errorf("%w: only governance sets fees", ErrUnauthorized)
	}
	r.cfg.FlashLoanFeeBps = bps
	return nil
}
