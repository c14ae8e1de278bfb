// Package events carries the analytics feed the engines emit. Emission
// is fire-and-forget: a sink must never fail the operation that
// produced the event.
package events

import "sync"

// Event kinds emitted by the engines.
const (
	KindPoolCreated     = "pool_created"
	KindLiquidityAdded  = "liquidity_added"
	KindLiquidityBurned = "liquidity_removed"
	KindSwap            = "swap"
	KindFlashLoan       = "flash_loan"
	KindFeesClaimed     = "fees_claimed"
	KindFarmPoolAdded   = "farm_pool_added"
	KindStaked          = "staked"
	KindUnstaked        = "unstaked"
	KindStakeLocked     = "stake_locked"
	KindStakeUnlocked   = "stake_unlocked"
	KindRewardClaimed   = "reward_claimed"
	KindLentOut         = "lent_out"
	KindCollateral      = "collateral"
	KindBorrow          = "borrow"
	KindRepay           = "repay"
	KindOrderPlaced     = "order_placed"
	KindOrderCancelled  = "order_cancelled"
	KindOrderExecuted   = "order_executed"
)

// Event is one analytics record. Fields hold amounts as decimal
// strings so the payload round-trips through any journal backend.
type Event struct {
	Seq    uint64            `json:"seq"`
	Height uint64            `json:"height"`
	At     uint64            `json:"at"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Sink receives events. Implementations must be tolerant of their own
// failures (log and drop, never propagate).
type Sink interface {
	Record(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Record(ev Event) { f(ev) }

// Bus assigns sequence numbers, keeps a bounded replay window, and
// fans events out to subscribers. It is the one Sink the engines are
// wired to; persistence and the websocket stream attach to it.
type Bus struct {
	mu      sync.Mutex
	seq     uint64
	window  []Event
	maxKeep int
	sinks   []Sink
	subs    map[int]chan Event
	nextSub int
}

func NewBus(window int) *Bus {
	if window <= 0 {
		window = 1024
	}
	return &Bus{maxKeep: window, subs: make(map[int]chan Event)}
}

// Attach adds a downstream sink (e.g. the persistent journal).
func (b *Bus) Attach(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Record stamps the event with the next sequence number and delivers
// it. Slow subscribers are skipped rather than blocked on.
func (b *Bus) Record(ev Event) {
	b.mu.Lock()
	b.seq++
	ev.Seq = b.seq
	b.window = append(b.window, ev)
	if len(b.window) > b.maxKeep {
		b.window = b.window[len(b.window)-b.maxKeep:]
	}
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	b.mu.Unlock()

	for _, s := range sinks {
		s.Record(ev)
	}
}

// Subscribe returns a channel of live events and a cancel func.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Recent returns up to n most recent events, oldest first.
func (b *Bus) Recent(n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.window) {
		n = len(b.window)
	}
	out := make([]Event, n)
	copy(out, b.window[len(b.window)-n:])
	return out
}
