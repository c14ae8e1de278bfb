package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/types"
)

// Snapshot DTO: account -> asset -> decimal-string balance.
type BalancesSnapshot struct {
	Balances map[string]map[string]string `codec:"balances"`
}

// Export captures every balance.
func (l *InMemory) Export() BalancesSnapshot {
	out := make(map[string]map[string]string, len(l.balances))
	for acct, byAsset := range l.balances {
		inner := make(map[string]string, len(byAsset))
		for asset, v := range byAsset {
			inner[string(asset)] = v.String()
		}
		out[string(acct)] = inner
	}
	return BalancesSnapshot{Balances: out}
}

// Restore loads balances into a fresh ledger and resets the journal
// baseline, so a RevertTo(0) after restore keeps the restored state.
func (l *InMemory) Restore(snap BalancesSnapshot) error {
	if len(l.balances) != 0 {
		return fmt.Errorf("restore into a non-empty ledger")
	}
	for acct, byAsset := range snap.Balances {
		for asset, s := range byAsset {
			v, ok := sdkmath.NewIntFromString(s)
			if !ok {
				return fmt.Errorf("bad balance %q for %s/%s in snapshot", s, acct, asset)
			}
			if v.IsNegative() {
				return fmt.Errorf("negative balance %s for %s/%s in snapshot", s, acct, asset)
			}
			l.set(types.AccountID(acct), types.AssetID(asset), v)
		}
	}
	l.Compact()
	return nil
}
