// Package lending is the collateralized borrowing market. It keeps
// per-account positions per market, prices both legs through the
// oracle, and sources borrowed funds from the farm's reserve through
// the authorized lend-out gate. The market itself never holds borrowed
// assets; it only holds collateral.
package lending

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/events"
	"github.com/helixdex/godexd/internal/core/farm"
	"github.com/helixdex/godexd/internal/core/ledger"
	"github.com/helixdex/godexd/internal/core/oracle"
	"github.com/helixdex/godexd/internal/core/types"
)

var (
	// ErrZeroAmount rejects zero or negative amounts.
	ErrZeroAmount = errors.New("zero amount")
	// ErrInvalidMarket rejects unknown market assets and bad params.
	ErrInvalidMarket = errors.New("invalid market")
	// ErrUndercollateralized rejects borrows that would break the
	// market's collateral ratio.
	ErrUndercollateralized = errors.New("undercollateralized")
	// ErrInsufficientReserve rejects borrows beyond the farm's staked
	// reserve of the borrowed asset.
	ErrInsufficientReserve = errors.New("insufficient reserve")
	// ErrNoDebt rejects repaying with nothing outstanding.
	ErrNoDebt = errors.New("no outstanding debt")
	// ErrInsufficientCollateral rejects withdrawing collateral that
	// debt still needs.
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	// ErrUnauthorized rejects non-governance market administration.
	ErrUnauthorized = errors.New("unauthorized")
)

// Ledger is what the market needs from the balance ledger.
type Ledger interface {
	ledger.Adapter
	ledger.Journal
}

// Market is one collateral/borrow asset pairing with its required
// over-collateralization, expressed in percent (150 means collateral
// value must cover 150% of debt value).
type Market struct {
	CollateralAsset    types.AssetID
	BorrowAsset        types.AssetID
	CollateralRatioPct uint32
}

type position struct {
	collateral sdkmath.Int
	debt       sdkmath.Int
}

// Position is the read-only view of one account in one market.
type Position struct {
	Collateral sdkmath.Int
	Debt       sdkmath.Int
}

// Lending owns the market collection and all positions.
type Lending struct {
	account  types.AccountID
	led      Ledger
	clock    types.Clock
	oracle   oracle.PriceOracle
	farm     *farm.Farm
	gov      types.AccountID
	sink     events.Sink
	stale    uint64
	markets  []Market
	position map[int]map[types.AccountID]*position
}

func New(led Ledger, clock types.Clock, po oracle.PriceOracle, f *farm.Farm, governance types.AccountID, sink events.Sink) *Lending {
	return &Lending{
		account:  "lending:main",
		led:      led,
		clock:    clock,
		oracle:   po,
		farm:     f,
		gov:      governance,
		sink:     sink,
		stale:    oracle.DefaultStalenessThreshold,
		position: make(map[int]map[types.AccountID]*position),
	}
}

// Account returns the market's collateral-holding ledger account.
func (l *Lending) Account() types.AccountID { return l.account }

// SetStalenessThreshold adjusts the maximum accepted price age.
// Governance only; a zero threshold would reject every price.
func (l *Lending) SetStalenessThreshold(caller types.AccountID, threshold uint64) error {
	if caller != l.gov {
		return ErrUnauthorized
	}
	if threshold == 0 {
		return fmt.Errorf("staleness threshold must be positive")
	}
	l.stale = threshold
	return nil
}

// AddMarket registers a collateral/borrow pairing. Governance only;
// the ratio must be at least 100 percent.
func (l *Lending) AddMarket(caller types.AccountID, m Market) (int, error) {
	if caller != l.gov {
		return 0, fmt.Errorf("%w: only governance adds markets", ErrUnauthorized)
	}
	if m.CollateralAsset == "" || m.BorrowAsset == "" || m.CollateralAsset == m.BorrowAsset {
		return 0, fmt.Errorf("%w: bad asset pairing", ErrInvalidMarket)
	}
	if m.CollateralRatioPct < 100 {
		return 0, fmt.Errorf("%w: collateral ratio %d%% below 100%%", ErrInvalidMarket, m.CollateralRatioPct)
	}
	id := len(l.markets)
	l.markets = append(l.markets, m)
	l.position[id] = make(map[types.AccountID]*position)
	return id, nil
}

// Market returns the market definition.
func (l *Lending) Market(id int) (Market, error) {
	if id < 0 || id >= len(l.markets) {
		return Market{}, fmt.Errorf("%w: id %d", ErrInvalidMarket, id)
	}
	return l.markets[id], nil
}

// MarketCount returns the number of registered markets.
func (l *Lending) MarketCount() int { return len(l.markets) }

// PositionOf returns an account's position in a market.
func (l *Lending) PositionOf(id int, account types.AccountID) (Position, error) {
	if _, err := l.Market(id); err != nil {
		return Position{}, err
	}
	if p, ok := l.position[id][account]; ok {
		return Position{Collateral: p.collateral, Debt: p.debt}, nil
	}
	return Position{Collateral: sdkmath.ZeroInt(), Debt: sdkmath.ZeroInt()}, nil
}

// Deposit moves collateral from the caller into the market.
func (l *Lending) Deposit(caller types.AccountID, id int, amount sdkmath.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	m, err := l.Market(id)
	if err != nil {
		return err
	}
	rev := l.led.Snapshot()
	if err := l.led.TransferFrom(caller, l.account, m.CollateralAsset, amount); err != nil {
		l.led.RevertTo(rev)
		return err
	}
	p := l.pos(id, caller)
	p.collateral = p.collateral.Add(amount)
	l.emit(events.KindCollateral, "deposit", id, caller, amount)
	return nil
}

// WithdrawCollateral returns collateral to the caller, as long as the
// remainder still covers outstanding debt at the market ratio.
func (l *Lending) WithdrawCollateral(caller types.AccountID, id int, amount sdkmath.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	m, err := l.Market(id)
	if err != nil {
		return err
	}
	p := l.pos(id, caller)
	if p.collateral.LT(amount) {
		return fmt.Errorf("%w: have %s, withdraw %s", ErrInsufficientCollateral, p.collateral, amount)
	}
	remaining := p.collateral.Sub(amount)
	if p.debt.IsPositive() {
		ok, err := l.covered(m, remaining, p.debt)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: withdrawal leaves debt uncovered", ErrUndercollateralized)
		}
	}
	rev := l.led.Snapshot()
	if err := l.led.Transfer(l.account, caller, m.CollateralAsset, amount); err != nil {
		l.led.RevertTo(rev)
		return err
	}
	p.collateral = remaining
	l.emit(events.KindCollateral, "withdraw", id, caller, amount)
	return nil
}

// Borrow draws the borrow asset from the farm's reserve against the
// caller's collateral. The new total debt must be covered at the
// market ratio and bounded by the farm's available reserve.
func (l *Lending) Borrow(caller types.AccountID, id int, amount sdkmath.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	m, err := l.Market(id)
	if err != nil {
		return err
	}
	p := l.pos(id, caller)
	newDebt := p.debt.Add(amount)

	ok, err := l.covered(m, p.collateral, newDebt)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: collateral does not cover %s at %d%%", ErrUndercollateralized, newDebt, m.CollateralRatioPct)
	}
	if reserve := l.farm.AvailableReserve(m.BorrowAsset); reserve.LT(amount) {
		return fmt.Errorf("%w: reserve %s, borrow %s", ErrInsufficientReserve, reserve, amount)
	}
	if err := l.farm.LendOut(l.account, m.BorrowAsset, caller, amount); err != nil {
		return err
	}
	p.debt = newDebt
	l.emit(events.KindBorrow, "borrow", id, caller, amount)
	return nil
}

// Repay returns borrowed funds straight to the farm's holdings.
// Overpayment is rejected; partial repayment shrinks the debt.
func (l *Lending) Repay(caller types.AccountID, id int, amount sdkmath.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	m, err := l.Market(id)
	if err != nil {
		return err
	}
	p := l.pos(id, caller)
	if !p.debt.IsPositive() {
		return ErrNoDebt
	}
	if p.debt.LT(amount) {
		return fmt.Errorf("%w: debt %s, repay %s", ErrNoDebt, p.debt, amount)
	}
	rev := l.led.Snapshot()
	if err := l.led.TransferFrom(caller, l.farm.Account(), m.BorrowAsset, amount); err != nil {
		l.led.RevertTo(rev)
		return err
	}
	p.debt = p.debt.Sub(amount)
	l.emit(events.KindRepay, "repay", id, caller, amount)
	return nil
}

// PositionHealth returns collateralValue*100/debtValue in percent for
// an account, pricing both legs through the oracle. A position with no
// debt reports the maximum representable health.
func (l *Lending) PositionHealth(id int, account types.AccountID) (sdkmath.Int, error) {
	m, err := l.Market(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	p := l.pos(id, account)
	if !p.debt.IsPositive() {
		return sdkmath.NewInt(int64(^uint32(0))), nil
	}
	collValue, err := l.value(m.CollateralAsset, p.collateral)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	debtValue, err := l.value(m.BorrowAsset, p.debt)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return collValue.MulRaw(100).Quo(debtValue), nil
}

// covered reports whether collateral covers debt at the market ratio:
// collateralValue * 100 >= debtValue * ratioPct.
func (l *Lending) covered(m Market, collateral, debt sdkmath.Int) (bool, error) {
	collValue, err := l.value(m.CollateralAsset, collateral)
	if err != nil {
		return false, err
	}
	debtValue, err := l.value(m.BorrowAsset, debt)
	if err != nil {
		return false, err
	}
	return collValue.MulRaw(100).GTE(debtValue.MulRaw(int64(m.CollateralRatioPct))), nil
}

// value prices an amount through the oracle with the staleness check.
// Prices are 1e18-scaled; values stay scaled, which cancels in ratio
// comparisons.
func (l *Lending) value(asset types.AssetID, amount sdkmath.Int) (sdkmath.Int, error) {
	price, err := oracle.FreshPrice(l.oracle, asset, l.clock, l.stale)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amount.Mul(price), nil
}

func (l *Lending) pos(id int, account types.AccountID) *position {
	p, ok := l.position[id][account]
	if !ok {
		p = &position{collateral: sdkmath.ZeroInt(), debt: sdkmath.ZeroInt()}
		l.position[id][account] = p
	}
	return p
}

func (l *Lending) emit(kind, op string, id int, account types.AccountID, amount sdkmath.Int) {
	if l.sink == nil {
		return
	}
	l.sink.Record(events.Event{
		Height: l.clock.Height(),
		At:     l.clock.Now(),
		Kind:   kind,
		Fields: map[string]string{
			"op":      op,
			"market":  fmt.Sprint(id),
			"account": string(account),
			"amount":  amount.String(),
		},
	})
}

func requirePositive(amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrZeroAmount)
	}
	return nil
}
