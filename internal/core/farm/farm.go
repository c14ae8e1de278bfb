// Package farm implements the multi-pool yield farm: per-pool
// reward-per-share accumulators advanced lazily on touch, lockable
// stake with a boost multiplier, and the authorized-lender gate the
// lending market borrows through.
//
// The accumulator follows the checkpoint pattern: at the top of every
// state-mutating call the pool's accumulator is advanced to the current
// block and the touched account is settled against it, before any
// balance changes. Newly moved principal therefore never earns or
// loses reward for blocks it was not present.
package farm

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/events"
	"github.com/helixdex/godexd/internal/core/ledger"
	"github.com/helixdex/godexd/internal/core/numeric"
	"github.com/helixdex/godexd/internal/core/types"
)

var (
	// ErrZeroAmount rejects zero or negative amounts.
	ErrZeroAmount = errors.New("zero amount")
	// ErrInvalidPool rejects out-of-range pool ids and bad pool params.
	ErrInvalidPool = errors.New("invalid pool")
	// ErrInsufficientStake rejects withdrawing or locking more than the
	// unlocked staked balance.
	ErrInsufficientStake = errors.New("insufficient stake")
	// ErrNothingLocked rejects unlocking with no lock in place.
	ErrNothingLocked = errors.New("nothing locked")
	// ErrLockNotExpired rejects unlocking before the unlock block.
	ErrLockNotExpired = errors.New("lock not expired")
	// ErrNoReward rejects claims with nothing pending.
	ErrNoReward = errors.New("no reward pending")
	// ErrUnauthorized rejects governance- and lender-gated calls.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrReentrantCall rejects mutating entry while a mutating call is
	// in flight.
	ErrReentrantCall = errors.New("reentrant call")
)

// Ledger is what the farm needs from the balance ledger.
type Ledger interface {
	ledger.Adapter
	ledger.Journal
}

// Config carries the farm's governance accounts and the protocol fee
// taken from reward claims.
type Config struct {
	Governance  types.AccountID
	Treasury    types.AccountID
	ClaimFeeBps uint32
}

// DefaultClaimFeeBps is the protocol's cut of claimed rewards.
const DefaultClaimFeeBps uint32 = 5

func DefaultConfig(governance, treasury types.AccountID) Config {
	return Config{Governance: governance, Treasury: treasury, ClaimFeeBps: DefaultClaimFeeBps}
}

func (c Config) Validate() error {
	if c.Governance == "" || c.Treasury == "" {
		return fmt.Errorf("governance and treasury accounts are required")
	}
	if c.ClaimFeeBps > numeric.BpsDenom {
		return fmt.Errorf("claim fee %d bps exceeds denominator", c.ClaimFeeBps)
	}
	return nil
}

// Lock is the optional locked portion of an account's stake. The
// locked amount earns boostMultiplier/100 times the base rate and
// cannot be withdrawn before unlockBlock.
type Lock struct {
	Amount          sdkmath.Int
	UnlockBlock     uint64
	BoostMultiplier uint32
}

type staker struct {
	stake      sdkmath.Int // unlocked stake
	rewardDebt sdkmath.Int // accumulator value last settled for this account
	pending    sdkmath.Int
	lock       Lock
}

func newStaker() *staker {
	return &staker{
		stake:      sdkmath.ZeroInt(),
		rewardDebt: sdkmath.ZeroInt(),
		pending:    sdkmath.ZeroInt(),
		lock:       Lock{Amount: sdkmath.ZeroInt()},
	}
}

type pool struct {
	stakedAsset  types.AssetID
	rewardAsset  types.AssetID
	ratePerBlock sdkmath.Int

	totalStaked  sdkmath.Int // unlocked plus locked, all accounts
	accPerShare  sdkmath.Int // 1e18-scaled reward per staked unit
	lastAccBlock uint64

	stakers map[types.AccountID]*staker
}

// PoolInfo is the read-only view of one farm pool.
type PoolInfo struct {
	ID           uint64
	StakedAsset  types.AssetID
	RewardAsset  types.AssetID
	RatePerBlock sdkmath.Int
	TotalStaked  sdkmath.Int
	AccPerShare  sdkmath.Int
	LastAccBlock uint64
}

// Farm owns the pool collection. Pool ids are the creation index,
// starting at 0; pools are never removed.
type Farm struct {
	account types.AccountID
	led     Ledger
	clock   types.Clock
	cfg     Config
	sink    events.Sink

	pools   []*pool
	lenders map[types.AccountID]bool
	entered bool
}

func New(led Ledger, clock types.Clock, cfg Config, sink events.Sink) (*Farm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Farm{
		account: "farm:main",
		led:     led,
		clock:   clock,
		cfg:     cfg,
		sink:    sink,
		lenders: make(map[types.AccountID]bool),
	}, nil
}

// Account returns the farm's own ledger account. All staked principal
// and undistributed reward funding sit under it.
func (f *Farm) Account() types.AccountID { return f.account }

// AddPool registers a new reward stream. Governance only; the rate must
// be nonzero and both assets named. Returns the new pool's id.
func (f *Farm) AddPool(caller types.AccountID, stakedAsset, rewardAsset types.AssetID, ratePerBlock sdkmath.Int) (uint64, error) {
	if f.entered {
		return 0, ErrReentrantCall
	}
	if caller != f.cfg.Governance {
		return 0, fmt.Errorf("%w: only governance adds pools", ErrUnauthorized)
	}
	if stakedAsset == "" || rewardAsset == "" {
		return 0, fmt.Errorf("%w: empty asset id", ErrInvalidPool)
	}
	if ratePerBlock.IsNil() || !ratePerBlock.IsPositive() {
		return 0, fmt.Errorf("%w: reward rate must be positive", ErrInvalidPool)
	}
	id := uint64(len(f.pools))
	f.pools = append(f.pools, &pool{
		stakedAsset:  stakedAsset,
		rewardAsset:  rewardAsset,
		ratePerBlock: ratePerBlock,
		totalStaked:  sdkmath.ZeroInt(),
		accPerShare:  sdkmath.ZeroInt(),
		lastAccBlock: f.clock.Height(),
		stakers:      make(map[types.AccountID]*staker),
	})
	f.emit(events.KindFarmPoolAdded, map[string]string{
		"pool":   fmt.Sprint(id),
		"staked": string(stakedAsset),
		"reward": string(rewardAsset),
		"rate":   ratePerBlock.String(),
	})
	return id, nil
}

// PoolCount returns the number of registered pools.
func (f *Farm) PoolCount() int { return len(f.pools) }

// Pool returns the read-only view of a pool.
func (f *Farm) Pool(id uint64) (PoolInfo, error) {
	p, err := f.pool(id)
	if err != nil {
		return PoolInfo{}, err
	}
	return PoolInfo{
		ID:           id,
		StakedAsset:  p.stakedAsset,
		RewardAsset:  p.rewardAsset,
		RatePerBlock: p.ratePerBlock,
		TotalStaked:  p.totalStaked,
		AccPerShare:  p.accPerShare,
		LastAccBlock: p.lastAccBlock,
	}, nil
}

// StakeOf returns an account's unlocked stake in a pool.
func (f *Farm) StakeOf(id uint64, account types.AccountID) (sdkmath.Int, error) {
	p, err := f.pool(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if st, ok := p.stakers[account]; ok {
		return st.stake, nil
	}
	return sdkmath.ZeroInt(), nil
}

// LockOf returns an account's lock record in a pool. A zero-amount
// lock means no lock is active.
func (f *Farm) LockOf(id uint64, account types.AccountID) (Lock, error) {
	p, err := f.pool(id)
	if err != nil {
		return Lock{}, err
	}
	if st, ok := p.stakers[account]; ok {
		return st.lock, nil
	}
	return Lock{Amount: sdkmath.ZeroInt()}, nil
}

// PendingReward returns what a claim would settle right now, without
// mutating anything: the stored pending balance plus the unsettled
// accumulator delta at the current height.
func (f *Farm) PendingReward(id uint64, account types.AccountID) (sdkmath.Int, error) {
	p, err := f.pool(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	st, ok := p.stakers[account]
	if !ok {
		return sdkmath.ZeroInt(), nil
	}
	acc := p.accPerShare
	if elapsed := f.clock.Height() - p.lastAccBlock; elapsed > 0 && p.totalStaked.IsPositive() {
		accrued := p.ratePerBlock.Mul(sdkmath.NewIntFromUint64(elapsed)).Mul(numeric.Scale).Quo(p.totalStaked)
		acc = acc.Add(accrued)
	}
	return st.pending.Add(earned(acc.Sub(st.rewardDebt), st)), nil
}

// AvailableReserve sums totalStaked across every pool staking the
// asset. The lending market uses it to bound borrowable liquidity.
func (f *Farm) AvailableReserve(asset types.AssetID) sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, p := range f.pools {
		if p.stakedAsset == asset {
			total = total.Add(p.totalStaked)
		}
	}
	return total
}

// SetAuthorizedLender adds or removes an account from the lend-out
// allow-list. Governance only.
func (f *Farm) SetAuthorizedLender(caller, lender types.AccountID, authorized bool) error {
	if f.entered {
		return ErrReentrantCall
	}
	if caller != f.cfg.Governance {
		return fmt.Errorf("%w: only governance sets lenders", ErrUnauthorized)
	}
	if authorized {
		f.lenders[lender] = true
	} else {
		delete(f.lenders, lender)
	}
	return nil
}

// IsAuthorizedLender reports allow-list membership.
func (f *Farm) IsAuthorizedLender(account types.AccountID) bool { return f.lenders[account] }

// LendOut transfers asset straight out of the farm's holdings. Only
// allow-listed callers; there is deliberately no stake-side accounting
// here — the farm's raw balance backs both staked principal and
// outstanding loans, and only the caller gate protects the invariant.
func (f *Farm) LendOut(caller types.AccountID, asset types.AssetID, to types.AccountID, amount sdkmath.Int) error {
	return f.mutate(func() error {
		if !f.lenders[caller] {
			return fmt.Errorf("%w: %s is not an authorized lender", ErrUnauthorized, caller)
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		if err := f.led.Transfer(f.account, to, asset, amount); err != nil {
			return err
		}
		f.emit(events.KindLentOut, map[string]string{
			"caller": string(caller), "to": string(to),
			"asset": string(asset), "amount": amount.String(),
		})
		return nil
	})
}

// pool returns the mutable pool or ErrInvalidPool.
func (f *Farm) pool(id uint64) (*pool, error) {
	if id >= uint64(len(f.pools)) {
		return nil, fmt.Errorf("%w: id %d of %d", ErrInvalidPool, id, len(f.pools))
	}
	return f.pools[id], nil
}

// checkpoint advances the pool accumulator to the current height and
// settles the touched account against it. Must run before any balance
// mutation.
func (f *Farm) checkpoint(p *pool, account types.AccountID) *staker {
	height := f.clock.Height()
	if elapsed := height - p.lastAccBlock; elapsed > 0 {
		if p.totalStaked.IsPositive() {
			accrued := p.ratePerBlock.Mul(sdkmath.NewIntFromUint64(elapsed)).Mul(numeric.Scale).Quo(p.totalStaked)
			p.accPerShare = p.accPerShare.Add(accrued)
		}
		p.lastAccBlock = height
	}
	st, ok := p.stakers[account]
	if !ok {
		st = newStaker()
		st.rewardDebt = p.accPerShare
		p.stakers[account] = st
		return st
	}
	delta := p.accPerShare.Sub(st.rewardDebt)
	if delta.IsPositive() {
		st.pending = st.pending.Add(earned(delta, st))
	}
	st.rewardDebt = p.accPerShare
	return st
}

// earned is the reward a positive accumulator delta yields for one
// account: base rate on unlocked stake, boosted rate on the locked
// portion.
func earned(delta sdkmath.Int, st *staker) sdkmath.Int {
	out := delta.Mul(st.stake).Quo(numeric.Scale)
	if st.lock.Amount.IsPositive() {
		boosted := delta.Mul(st.lock.Amount).Quo(numeric.Scale).
			Mul(sdkmath.NewInt(int64(st.lock.BoostMultiplier))).Quo(sdkmath.NewInt(100))
		out = out.Add(boosted)
	}
	return out
}

// mutate wraps a mutating entry point with the reentrancy guard and
// all-or-nothing rollback of ledger and farm state.
func (f *Farm) mutate(fn func() error) error {
	if f.entered {
		return ErrReentrantCall
	}
	f.entered = true
	defer func() { f.entered = false }()

	rev := f.led.Snapshot()
	saved := f.cloneState()
	if err := fn(); err != nil {
		f.led.RevertTo(rev)
		f.restoreState(saved)
		return err
	}
	return nil
}

type farmState struct {
	pools []*pool
}

func (f *Farm) cloneState() farmState {
	pools := make([]*pool, len(f.pools))
	for i, p := range f.pools {
		stakers := make(map[types.AccountID]*staker, len(p.stakers))
		for acct, st := range p.stakers {
			cp := *st
			stakers[acct] = &cp
		}
		cp := *p
		cp.stakers = stakers
		pools[i] = &cp
	}
	return farmState{pools: pools}
}

func (f *Farm) restoreState(s farmState) {
	f.pools = s.pools
}

func (f *Farm) emit(kind string, fields map[string]string) {
	if f.sink == nil {
		return
	}
	f.sink.Record(events.Event{
		Height: f.clock.Height(),
		At:     f.clock.Now(),
		Kind:   kind,
		Fields: fields,
	})
}

func requirePositive(amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrZeroAmount)
	}
	return nil
}
