package farm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/events"
	"github.com/helixdex/godexd/internal/core/numeric"
	"github.com/helixdex/godexd/internal/core/types"
)

// Stake pulls amount of the pool's staked asset from caller into the
// farm and credits the unlocked stake balance.
func (f *Farm) Stake(caller types.AccountID, poolID uint64, amount sdkmath.Int) error {
	return f.mutate(func() error {
		return f.stakeLocked(caller, poolID, amount)
	})
}

// Unstake withdraws unlocked stake back to caller.
func (f *Farm) Unstake(caller types.AccountID, poolID uint64, amount sdkmath.Int) error {
	return f.mutate(func() error {
		return f.unstakeLocked(caller, poolID, amount)
	})
}

// LockStake moves amount from the unlocked stake into the lock record
// for lockBlocks blocks at the given boost multiplier. Re-locking while
// a lock is active accumulates the amount into the same record and
// overwrites the unlock block and multiplier.
func (f *Farm) LockStake(caller types.AccountID, poolID uint64, amount sdkmath.Int, lockBlocks uint64, boostMultiplier uint32) error {
	return f.mutate(func() error {
		return f.lockStakeLocked(caller, poolID, amount, lockBlocks, boostMultiplier)
	})
}

// UnlockStake moves the full expired lock back into the unlocked stake.
// Unlock is explicit, never automatic.
func (f *Farm) UnlockStake(caller types.AccountID, poolID uint64) error {
	return f.mutate(func() error {
		return f.unlockStakeLocked(caller, poolID)
	})
}

// ClaimReward settles and pays out the caller's pending reward, minus
// the protocol claim fee which goes to the treasury.
func (f *Farm) ClaimReward(caller types.AccountID, poolID uint64) (sdkmath.Int, error) {
	paid := sdkmath.ZeroInt()
	err := f.mutate(func() error {
		var err error
		paid, err = f.claimRewardLocked(caller, poolID)
		return err
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return paid, nil
}

// StakeRequest is one element of BatchStake/BatchUnstake.
type StakeRequest struct {
	PoolID uint64
	Amount sdkmath.Int
}

// LockRequest is one element of BatchLockStake.
type LockRequest struct {
	PoolID          uint64
	Amount          sdkmath.Int
	LockBlocks      uint64
	BoostMultiplier uint32
}

// BatchStake applies Stake once per element. The whole call fails
// atomically if any element fails.
func (f *Farm) BatchStake(caller types.AccountID, reqs []StakeRequest) error {
	return f.batch(len(reqs), func(i int) error {
		return f.stakeLocked(caller, reqs[i].PoolID, reqs[i].Amount)
	})
}

// BatchUnstake applies Unstake once per element, atomically.
func (f *Farm) BatchUnstake(caller types.AccountID, reqs []StakeRequest) error {
	return f.batch(len(reqs), func(i int) error {
		return f.unstakeLocked(caller, reqs[i].PoolID, reqs[i].Amount)
	})
}

// BatchLockStake applies LockStake once per element, atomically.
func (f *Farm) BatchLockStake(caller types.AccountID, reqs []LockRequest) error {
	return f.batch(len(reqs), func(i int) error {
		r := reqs[i]
		return f.lockStakeLocked(caller, r.PoolID, r.Amount, r.LockBlocks, r.BoostMultiplier)
	})
}

// BatchClaimReward applies ClaimReward once per pool id, atomically.
func (f *Farm) BatchClaimReward(caller types.AccountID, poolIDs []uint64) error {
	return f.batch(len(poolIDs), func(i int) error {
		_, err := f.claimRewardLocked(caller, poolIDs[i])
		return err
	})
}

func (f *Farm) batch(n int, apply func(i int) error) error {
	if n == 0 {
		return fmt.Errorf("%w: empty batch", ErrZeroAmount)
	}
	return f.mutate(func() error {
		for i := 0; i < n; i++ {
			if err := apply(i); err != nil {
				return fmt.Errorf("batch element %d: %w", i, err)
			}
		}
		return nil
	})
}

func (f *Farm) stakeLocked(caller types.AccountID, poolID uint64, amount sdkmath.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	p, err := f.pool(poolID)
	if err != nil {
		return err
	}
	st := f.checkpoint(p, caller)
	if err := f.led.TransferFrom(caller, f.account, p.stakedAsset, amount); err != nil {
		return err
	}
	st.stake = st.stake.Add(amount)
	p.totalStaked = p.totalStaked.Add(amount)

	f.emit(events.KindStaked, map[string]string{
		"pool": fmt.Sprint(poolID), "account": string(caller), "amount": amount.String(),
	})
	return nil
}

func (f *Farm) unstakeLocked(caller types.AccountID, poolID uint64, amount sdkmath.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	p, err := f.pool(poolID)
	if err != nil {
		return err
	}
	st := f.checkpoint(p, caller)
	if st.stake.LT(amount) {
		return fmt.Errorf("%w: unlocked %s, withdraw %s", ErrInsufficientStake, st.stake, amount)
	}
	st.stake = st.stake.Sub(amount)
	p.totalStaked = p.totalStaked.Sub(amount)
	if err := f.led.Transfer(f.account, caller, p.stakedAsset, amount); err != nil {
		return err
	}

	f.emit(events.KindUnstaked, map[string]string{
		"pool": fmt.Sprint(poolID), "account": string(caller), "amount": amount.String(),
	})
	return nil
}

func (f *Farm) lockStakeLocked(caller types.AccountID, poolID uint64, amount sdkmath.Int, lockBlocks uint64, boostMultiplier uint32) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if lockBlocks == 0 {
		return fmt.Errorf("%w: lock duration must be positive", ErrZeroAmount)
	}
	if boostMultiplier == 0 {
		return fmt.Errorf("%w: boost multiplier must be positive", ErrZeroAmount)
	}
	p, err := f.pool(poolID)
	if err != nil {
		return err
	}
	st := f.checkpoint(p, caller)
	if st.stake.LT(amount) {
		return fmt.Errorf("%w: unlocked %s, lock %s", ErrInsufficientStake, st.stake, amount)
	}
	st.stake = st.stake.Sub(amount)
	// Accumulate into the single lock record; the unlock block and the
	// multiplier are overwritten, not stacked.
	st.lock.Amount = st.lock.Amount.Add(amount)
	st.lock.UnlockBlock = f.clock.Height() + lockBlocks
	st.lock.BoostMultiplier = boostMultiplier

	f.emit(events.KindStakeLocked, map[string]string{
		"pool": fmt.Sprint(poolID), "account": string(caller),
		"amount": amount.String(), "unlock_block": fmt.Sprint(st.lock.UnlockBlock),
		"boost": fmt.Sprint(boostMultiplier),
	})
	return nil
}

func (f *Farm) unlockStakeLocked(caller types.AccountID, poolID uint64) error {
	p, err := f.pool(poolID)
	if err != nil {
		return err
	}
	st := f.checkpoint(p, caller)
	if !st.lock.Amount.IsPositive() {
		return ErrNothingLocked
	}
	if f.clock.Height() < st.lock.UnlockBlock {
		return fmt.Errorf("%w: unlocks at block %d, now %d", ErrLockNotExpired, st.lock.UnlockBlock, f.clock.Height())
	}
	amount := st.lock.Amount
	st.stake = st.stake.Add(amount)
	st.lock = Lock{Amount: sdkmath.ZeroInt()}

	f.emit(events.KindStakeUnlocked, map[string]string{
		"pool": fmt.Sprint(poolID), "account": string(caller), "amount": amount.String(),
	})
	return nil
}

func (f *Farm) claimRewardLocked(caller types.AccountID, poolID uint64) (sdkmath.Int, error) {
	p, err := f.pool(poolID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	st := f.checkpoint(p, caller)
	if !st.pending.IsPositive() {
		return sdkmath.ZeroInt(), ErrNoReward
	}
	fee, err := numeric.BpsOf(st.pending, f.cfg.ClaimFeeBps)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	payout := st.pending.Sub(fee)
	st.pending = sdkmath.ZeroInt()

	if fee.IsPositive() {
		if err := f.led.Transfer(f.account, f.cfg.Treasury, p.rewardAsset, fee); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	if err := f.led.Transfer(f.account, caller, p.rewardAsset, payout); err != nil {
		return sdkmath.ZeroInt(), err
	}

	f.emit(events.KindRewardClaimed, map[string]string{
		"pool": fmt.Sprint(poolID), "account": string(caller),
		"amount": payout.String(), "fee": fee.String(),
	})
	return payout, nil
}
