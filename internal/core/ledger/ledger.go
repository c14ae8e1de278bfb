// Package ledger provides the account-balance ledger the dex engines
// settle against. The engines only see the Adapter interface; the
// in-memory implementation adds minting and a journal so that a failed
// operation can be rolled back as a unit.
package ledger

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/types"
)

// ErrTransferFailed covers every ledger-level transfer failure:
// insufficient funds, zero or negative amounts. A transfer either moves
// the full amount or fails with this error, never partially.
var ErrTransferFailed = errors.New("transfer failed")

// Adapter is the capability the engines pull and push funds through.
type Adapter interface {
	// Transfer moves amount of asset from one account to another.
	Transfer(from, to types.AccountID, asset types.AssetID, amount sdkmath.Int) error
	// TransferFrom pulls amount of asset out of owner into recipient.
	// It is the pull-style counterpart of Transfer; the in-process
	// ledger has no separate allowance step.
	TransferFrom(owner, recipient types.AccountID, asset types.AssetID, amount sdkmath.Int) error
	// BalanceOf returns the balance, zero for unknown accounts.
	BalanceOf(account types.AccountID, asset types.AssetID) sdkmath.Int
}

// Revision marks a point in the ledger's mutation journal.
type Revision int

// Journal is the rollback capability. Engines take a Revision at the
// top of a mutating call and revert to it if anything fails.
type Journal interface {
	Snapshot() Revision
	RevertTo(Revision)
}

type journalEntry struct {
	account types.AccountID
	asset   types.AssetID
	prev    sdkmath.Int
}

// InMemory is the single-writer in-process ledger. It implements
// Adapter and Journal. Callers serialize mutating access; reads are
// safe between mutations.
type InMemory struct {
	balances map[types.AccountID]map[types.AssetID]sdkmath.Int
	journal  []journalEntry
}

func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[types.AccountID]map[types.AssetID]sdkmath.Int)}
}

// Mint credits freshly issued units to an account. Used for genesis
// allocations and tests; not part of the Adapter surface.
func (l *InMemory) Mint(account types.AccountID, asset types.AssetID, amount sdkmath.Int) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: mint amount %s must be positive", ErrTransferFailed, amount)
	}
	l.set(account, asset, l.BalanceOf(account, asset).Add(amount))
	return nil
}

func (l *InMemory) Transfer(from, to types.AccountID, asset types.AssetID, amount sdkmath.Int) error {
	return l.move(from, to, asset, amount)
}

func (l *InMemory) TransferFrom(owner, recipient types.AccountID, asset types.AssetID, amount sdkmath.Int) error {
	return l.move(owner, recipient, asset, amount)
}

func (l *InMemory) BalanceOf(account types.AccountID, asset types.AssetID) sdkmath.Int {
	if assets, ok := l.balances[account]; ok {
		if bal, ok := assets[asset]; ok {
			return bal
		}
	}
	return sdkmath.ZeroInt()
}

func (l *InMemory) move(from, to types.AccountID, asset types.AssetID, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrTransferFailed)
	}
	fromBal := l.BalanceOf(from, asset)
	if fromBal.LT(amount) {
		return fmt.Errorf("%w: %s has %s %s, need %s", ErrTransferFailed, from, fromBal, asset, amount)
	}
	l.set(from, asset, fromBal.Sub(amount))
	l.set(to, asset, l.BalanceOf(to, asset).Add(amount))
	return nil
}

// set records the previous value in the journal before overwriting.
func (l *InMemory) set(account types.AccountID, asset types.AssetID, value sdkmath.Int) {
	l.journal = append(l.journal, journalEntry{account: account, asset: asset, prev: l.BalanceOf(account, asset)})
	assets, ok := l.balances[account]
	if !ok {
		assets = make(map[types.AssetID]sdkmath.Int)
		l.balances[account] = assets
	}
	assets[asset] = value
}

// Snapshot returns the current journal position.
func (l *InMemory) Snapshot() Revision {
	return Revision(len(l.journal))
}

// RevertTo undoes every mutation made after the given revision, most
// recent first.
func (l *InMemory) RevertTo(rev Revision) {
	if int(rev) < 0 || int(rev) > len(l.journal) {
		return
	}
	for i := len(l.journal) - 1; i >= int(rev); i-- {
		e := l.journal[i]
		l.balances[e.account][e.asset] = e.prev
	}
	l.journal = l.journal[:rev]
}

// Compact drops the journal history. The daemon does this after a
// completed top-level operation; revisions taken earlier become
// invalid.
func (l *InMemory) Compact() {
	l.journal = l.journal[:0]
}

// Accounts returns every account with at least one balance entry.
// Iteration order is unspecified.
func (l *InMemory) Accounts() []types.AccountID {
	out := make([]types.AccountID, 0, len(l.balances))
	for acct := range l.balances {
		out = append(out, acct)
	}
	return out
}

// Balances returns a copy of the balance map for one account.
func (l *InMemory) Balances(account types.AccountID) map[types.AssetID]sdkmath.Int {
	out := make(map[types.AssetID]sdkmath.Int)
	for asset, bal := range l.balances[account] {
		out[asset] = bal
	}
	return out
}
