package lending

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/types"
)

// Snapshot DTOs, decimal-string amounts for codec stability.

type PositionSnapshot struct {
	Collateral string `codec:"collateral"`
	Debt       string `codec:"debt"`
}

type MarketSnapshot struct {
	CollateralAsset    string                      `codec:"collateral_asset"`
	BorrowAsset        string                      `codec:"borrow_asset"`
	CollateralRatioPct uint32                      `codec:"collateral_ratio_pct"`
	Positions          map[string]PositionSnapshot `codec:"positions"`
}

type LendingSnapshot struct {
	Markets []MarketSnapshot `codec:"markets"`
}

// Export captures every market and position.
func (l *Lending) Export() LendingSnapshot {
	snap := LendingSnapshot{Markets: make([]MarketSnapshot, 0, len(l.markets))}
	for id, m := range l.markets {
		positions := make(map[string]PositionSnapshot, len(l.position[id]))
		for acct, p := range l.position[id] {
			positions[string(acct)] = PositionSnapshot{
				Collateral: p.collateral.String(),
				Debt:       p.debt.String(),
			}
		}
		snap.Markets = append(snap.Markets, MarketSnapshot{
			CollateralAsset:    string(m.CollateralAsset),
			BorrowAsset:        string(m.BorrowAsset),
			CollateralRatioPct: m.CollateralRatioPct,
			Positions:          positions,
		})
	}
	return snap
}

// Restore rebuilds markets and positions. The market must be freshly
// constructed and empty.
func (l *Lending) Restore(snap LendingSnapshot) error {
	if len(l.markets) != 0 {
		return fmt.Errorf("%w: restore into a non-empty market set", ErrInvalidMarket)
	}
	for id, ms := range snap.Markets {
		l.markets = append(l.markets, Market{
			CollateralAsset:    types.AssetID(ms.CollateralAsset),
			BorrowAsset:        types.AssetID(ms.BorrowAsset),
			CollateralRatioPct: ms.CollateralRatioPct,
		})
		l.position[id] = make(map[types.AccountID]*position, len(ms.Positions))
		for acct, ps := range ms.Positions {
			coll, ok := sdkmath.NewIntFromString(ps.Collateral)
			if !ok {
				return fmt.Errorf("bad collateral %q in snapshot", ps.Collateral)
			}
			debt, ok := sdkmath.NewIntFromString(ps.Debt)
			if !ok {
				return fmt.Errorf("bad debt %q in snapshot", ps.Debt)
			}
			l.position[id][types.AccountID(acct)] = &position{collateral: coll, debt: debt}
		}
	}
	return nil
}
