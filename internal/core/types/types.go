// Package types holds the identifiers and clock abstraction shared by
// every engine in the dex core.
package types

import "strings"

// AccountID identifies a ledger account. Engine-owned accounts use a
// "pool:"/"farm:" prefix so they can never collide with user accounts.
type AccountID string

// AssetID identifies a fungible asset on the ledger.
type AssetID string

// ZeroAccount is the burn address. The minimum-liquidity share burn is
// credited here and can never be withdrawn.
const ZeroAccount AccountID = "0x0"

// OrderAssets returns the pair in canonical order, smaller identifier
// first. The ordering is established once at pool creation and every
// later lookup must use the same rule.
func OrderAssets(a, b AssetID) (AssetID, AssetID) {
	if strings.Compare(string(a), string(b)) <= 0 {
		return a, b
	}
	return b, a
}

// Clock supplies the block height and timestamp the engines checkpoint
// against. Engines never read wall time directly; the daemon decides
// how heights map to real time and tests drive a manual clock.
type Clock interface {
	// Height is the current block height.
	Height() uint64
	// Now is the current timestamp in the ledger's time units.
	Now() uint64
}
