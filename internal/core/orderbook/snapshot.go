package orderbook

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/types"
)

// OrderSnapshot is the codec-stable form of one order.
type OrderSnapshot struct {
	ID           uint64 `codec:"id"`
	Owner        string `codec:"owner"`
	AssetIn      string `codec:"asset_in"`
	AssetOut     string `codec:"asset_out"`
	AmountIn     string `codec:"amount_in"`
	MinAmountOut string `codec:"min_amount_out"`
	Status       uint8  `codec:"status"`
	PlacedAt     uint64 `codec:"placed_at"`
	AmountOut    string `codec:"amount_out"`
}

type BookSnapshot struct {
	Orders []OrderSnapshot `codec:"orders"`
}

// Export captures every order.
func (b *Book) Export() BookSnapshot {
	snap := BookSnapshot{Orders: make([]OrderSnapshot, 0, len(b.orders))}
	for _, ord := range b.orders {
		snap.Orders = append(snap.Orders, OrderSnapshot{
			ID:           ord.ID,
			Owner:        string(ord.Owner),
			AssetIn:      string(ord.AssetIn),
			AssetOut:     string(ord.AssetOut),
			AmountIn:     ord.AmountIn.String(),
			MinAmountOut: ord.MinAmountOut.String(),
			Status:       uint8(ord.Status),
			PlacedAt:     ord.PlacedAt,
			AmountOut:    ord.AmountOut.String(),
		})
	}
	return snap
}

// Restore rebuilds the order collection. The book must be freshly
// constructed and empty.
func (b *Book) Restore(snap BookSnapshot) error {
	if len(b.orders) != 0 {
		return fmt.Errorf("%w: restore into a non-empty book", ErrInvalidOrder)
	}
	for i, os := range snap.Orders {
		if os.ID != uint64(i+1) {
			return fmt.Errorf("%w: snapshot order ids not contiguous at %d", ErrInvalidOrder, os.ID)
		}
		amountIn, ok := sdkmath.NewIntFromString(os.AmountIn)
		if !ok {
			return fmt.Errorf("bad amount in %q in snapshot", os.AmountIn)
		}
		minOut, ok := sdkmath.NewIntFromString(os.MinAmountOut)
		if !ok {
			return fmt.Errorf("bad min amount out %q in snapshot", os.MinAmountOut)
		}
		amountOut, ok := sdkmath.NewIntFromString(os.AmountOut)
		if !ok {
			return fmt.Errorf("bad amount out %q in snapshot", os.AmountOut)
		}
		b.orders = append(b.orders, &Order{
			ID:           os.ID,
			Owner:        types.AccountID(os.Owner),
			AssetIn:      types.AssetID(os.AssetIn),
			AssetOut:     types.AssetID(os.AssetOut),
			AmountIn:     amountIn,
			MinAmountOut: minOut,
			Status:       Status(os.Status),
			PlacedAt:     os.PlacedAt,
			AmountOut:    amountOut,
		})
	}
	return nil
}
