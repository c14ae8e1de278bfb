// Package orderbook is the limit-order store. Orders are append-only
// records with a status field; execution is not matching but a
// governance-triggered fill routed through the swap router, so an
// order either fills completely at the pool price or stays open.
package orderbook

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/events"
	"github.com/helixdex/godexd/internal/core/ledger"
	"github.com/helixdex/godexd/internal/core/router"
	"github.com/helixdex/godexd/internal/core/types"
)

var (
	// ErrZeroAmount rejects zero or negative amounts.
	ErrZeroAmount = errors.New("zero amount")
	// ErrInvalidOrder rejects unknown order ids and bad order params.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrOrderNotOpen rejects cancel/execute on filled or cancelled
	// orders.
	ErrOrderNotOpen = errors.New("order not open")
	// ErrNotOrderOwner rejects cancels by anyone but the order's owner.
	ErrNotOrderOwner = errors.New("not order owner")
	// ErrUnauthorized rejects execution by non-governance callers.
	ErrUnauthorized = errors.New("unauthorized")
)

// Status is an order's lifecycle state. Orders are never deleted.
type Status uint8

const (
	StatusOpen Status = iota
	StatusFilled
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Order is one resting limit order. AmountIn is escrowed in the book's
// account while the order is open.
type Order struct {
	ID           uint64
	Owner        types.AccountID
	AssetIn      types.AssetID
	AssetOut     types.AssetID
	AmountIn     sdkmath.Int
	MinAmountOut sdkmath.Int
	Status       Status
	PlacedAt     uint64 // block height
	AmountOut    sdkmath.Int // set when filled
}

// Ledger is what the book needs from the balance ledger.
type Ledger interface {
	ledger.Adapter
	ledger.Journal
}

// Book owns the order collection.
type Book struct {
	account types.AccountID
	led     Ledger
	clock   types.Clock
	router  *router.Router
	gov     types.AccountID
	sink    events.Sink
	orders  []*Order
}

func New(led Ledger, clock types.Clock, r *router.Router, governance types.AccountID, sink events.Sink) *Book {
	return &Book{
		account: "orderbook:main",
		led:     led,
		clock:   clock,
		router:  r,
		gov:     governance,
		sink:    sink,
	}
}

// Account returns the book's escrow account.
func (b *Book) Account() types.AccountID { return b.account }

// Place escrows amountIn and records a new open order. Ids start at 1.
func (b *Book) Place(owner types.AccountID, assetIn, assetOut types.AssetID, amountIn, minAmountOut sdkmath.Int) (uint64, error) {
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return 0, fmt.Errorf("%w: amount in must be positive", ErrZeroAmount)
	}
	if minAmountOut.IsNil() || minAmountOut.IsNegative() {
		return 0, fmt.Errorf("%w: negative min amount out", ErrInvalidOrder)
	}
	if assetIn == "" || assetOut == "" || assetIn == assetOut {
		return 0, fmt.Errorf("%w: bad asset pairing %s/%s", ErrInvalidOrder, assetIn, assetOut)
	}
	rev := b.led.Snapshot()
	if err := b.led.TransferFrom(owner, b.account, assetIn, amountIn); err != nil {
		b.led.RevertTo(rev)
		return 0, err
	}
	ord := &Order{
		ID:           uint64(len(b.orders) + 1),
		Owner:        owner,
		AssetIn:      assetIn,
		AssetOut:     assetOut,
		AmountIn:     amountIn,
		MinAmountOut: minAmountOut,
		Status:       StatusOpen,
		PlacedAt:     b.clock.Height(),
		AmountOut:    sdkmath.ZeroInt(),
	}
	b.orders = append(b.orders, ord)
	b.emit(events.KindOrderPlaced, ord)
	return ord.ID, nil
}

// Get returns a copy of the order.
func (b *Book) Get(id uint64) (Order, error) {
	ord, err := b.order(id)
	if err != nil {
		return Order{}, err
	}
	return *ord, nil
}

// Orders returns copies of all orders in placement order.
func (b *Book) Orders() []Order {
	out := make([]Order, len(b.orders))
	for i, ord := range b.orders {
		out[i] = *ord
	}
	return out
}

// OpenOrders returns copies of the orders still open.
func (b *Book) OpenOrders() []Order {
	var out []Order
	for _, ord := range b.orders {
		if ord.Status == StatusOpen {
			out = append(out, *ord)
		}
	}
	return out
}

// Cancel returns the escrow to the owner and closes the order. Owner
// only; only open orders can be cancelled.
func (b *Book) Cancel(caller types.AccountID, id uint64) error {
	ord, err := b.order(id)
	if err != nil {
		return err
	}
	if ord.Owner != caller {
		return fmt.Errorf("%w: order %d belongs to %s", ErrNotOrderOwner, id, ord.Owner)
	}
	if ord.Status != StatusOpen {
		return fmt.Errorf("%w: order %d is %s", ErrOrderNotOpen, id, ord.Status)
	}
	rev := b.led.Snapshot()
	if err := b.led.Transfer(b.account, ord.Owner, ord.AssetIn, ord.AmountIn); err != nil {
		b.led.RevertTo(rev)
		return err
	}
	ord.Status = StatusCancelled
	b.emit(events.KindOrderCancelled, ord)
	return nil
}

// Execute fills an open order through the router at the current pool
// price, paying the output to the order's owner. Governance only; a
// fill below the order's min amount out fails the swap and leaves the
// order open with its escrow intact.
func (b *Book) Execute(caller types.AccountID, id uint64) (sdkmath.Int, error) {
	if caller != b.gov {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: only governance executes orders", ErrUnauthorized)
	}
	ord, err := b.order(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if ord.Status != StatusOpen {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: order %d is %s", ErrOrderNotOpen, id, ord.Status)
	}
	out, err := b.router.SwapExactInTo(b.account, ord.AssetIn, ord.AssetOut, ord.AmountIn, ord.MinAmountOut, ord.Owner, 0)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	ord.Status = StatusFilled
	ord.AmountOut = out
	b.emit(events.KindOrderExecuted, ord)
	return out, nil
}

func (b *Book) order(id uint64) (*Order, error) {
	if id == 0 || id > uint64(len(b.orders)) {
		return nil, fmt.Errorf("%w: id %d", ErrInvalidOrder, id)
	}
	return b.orders[id-1], nil
}

func (b *Book) emit(kind string, ord *Order) {
	if b.sink == nil {
		return
	}
	b.sink.Record(events.Event{
		Height: b.clock.Height(),
		At:     b.clock.Now(),
		Kind:   kind,
		Fields: map[string]string{
			"order":     fmt.Sprint(ord.ID),
			"owner":     string(ord.Owner),
			"asset_in":  string(ord.AssetIn),
			"asset_out": string(ord.AssetOut),
			"amount_in": ord.AmountIn.String(),
			"status":    ord.Status.String(),
		},
	})
}
