package farm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/types"
)

// Snapshot DTOs, decimal-string amounts for codec stability.

type StakerSnapshot struct {
	Stake       string `codec:"stake"`
	RewardDebt  string `codec:"reward_debt"`
	Pending     string `codec:"pending"`
	LockAmount  string `codec:"lock_amount"`
	UnlockBlock uint64 `codec:"unlock_block"`
	Boost       uint32 `codec:"boost"`
}

type PoolSnapshot struct {
	StakedAsset  string                    `codec:"staked_asset"`
	RewardAsset  string                    `codec:"reward_asset"`
	RatePerBlock string                    `codec:"rate_per_block"`
	TotalStaked  string                    `codec:"total_staked"`
	AccPerShare  string                    `codec:"acc_per_share"`
	LastAccBlock uint64                    `codec:"last_acc_block"`
	Stakers      map[string]StakerSnapshot `codec:"stakers"`
}

type FarmSnapshot struct {
	Pools   []PoolSnapshot `codec:"pools"`
	Lenders []string       `codec:"lenders"`
}

// Export captures the farm's pools, stakers and lender allow-list.
func (f *Farm) Export() FarmSnapshot {
	snap := FarmSnapshot{Pools: make([]PoolSnapshot, 0, len(f.pools))}
	for _, p := range f.pools {
		stakers := make(map[string]StakerSnapshot, len(p.stakers))
		for acct, st := range p.stakers {
			stakers[string(acct)] = StakerSnapshot{
				Stake:       st.stake.String(),
				RewardDebt:  st.rewardDebt.String(),
				Pending:     st.pending.String(),
				LockAmount:  st.lock.Amount.String(),
				UnlockBlock: st.lock.UnlockBlock,
				Boost:       st.lock.BoostMultiplier,
			}
		}
		snap.Pools = append(snap.Pools, PoolSnapshot{
			StakedAsset:  string(p.stakedAsset),
			RewardAsset:  string(p.rewardAsset),
			RatePerBlock: p.ratePerBlock.String(),
			TotalStaked:  p.totalStaked.String(),
			AccPerShare:  p.accPerShare.String(),
			LastAccBlock: p.lastAccBlock,
			Stakers:      stakers,
		})
	}
	for lender := range f.lenders {
		snap.Lenders = append(snap.Lenders, string(lender))
	}
	return snap
}

// Restore rebuilds the farm from a snapshot. The farm must be freshly
// constructed and empty.
func (f *Farm) Restore(snap FarmSnapshot) error {
	if len(f.pools) != 0 {
		return fmt.Errorf("%w: restore into a non-empty farm", ErrInvalidPool)
	}
	for _, ps := range snap.Pools {
		rate, err := parseInt(ps.RatePerBlock)
		if err != nil {
			return err
		}
		total, err := parseInt(ps.TotalStaked)
		if err != nil {
			return err
		}
		acc, err := parseInt(ps.AccPerShare)
		if err != nil {
			return err
		}
		stakers := make(map[types.AccountID]*staker, len(ps.Stakers))
		for acct, ss := range ps.Stakers {
			st := newStaker()
			if st.stake, err = parseInt(ss.Stake); err != nil {
				return err
			}
			if st.rewardDebt, err = parseInt(ss.RewardDebt); err != nil {
				return err
			}
			if st.pending, err = parseInt(ss.Pending); err != nil {
				return err
			}
			if st.lock.Amount, err = parseInt(ss.LockAmount); err != nil {
				return err
			}
			st.lock.UnlockBlock = ss.UnlockBlock
			st.lock.BoostMultiplier = ss.Boost
			stakers[types.AccountID(acct)] = st
		}
		f.pools = append(f.pools, &pool{
			stakedAsset:  types.AssetID(ps.StakedAsset),
			rewardAsset:  types.AssetID(ps.RewardAsset),
			ratePerBlock: rate,
			totalStaked:  total,
			accPerShare:  acc,
			lastAccBlock: ps.LastAccBlock,
			stakers:      stakers,
		})
	}
	for _, lender := range snap.Lenders {
		f.lenders[types.AccountID(lender)] = true
	}
	return nil
}

func parseInt(s string) (sdkmath.Int, error) {
	n, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("bad integer %q in snapshot", s)
	}
	return n, nil
}
