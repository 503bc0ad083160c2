// Package blockmeta maps block-replica notifications onto rows of the block table.
package blockmeta

import (
	"math"

	"github.com/mehmetymw/blocksink/internal/types"
)

// DbRewardType mirrors the "RewardType" enum of the target schema.
type DbRewardType string

const (
	DbRewardTypeFee     DbRewardType = "Fee"
	DbRewardTypeRent    DbRewardType = "Rent"
	DbRewardTypeStaking DbRewardType = "Staking"
	DbRewardTypeVoting  DbRewardType = "Voting"
)

// DbReward mirrors the "Reward" composite type. Field order matches the
// composite's attribute order.
type DbReward struct {
	Pubkey      string        `json:"pubkey"`
	Lamports    int64         `json:"lamports"`
	PostBalance int64         `json:"post_balance"`
	RewardType  *DbRewardType `json:"reward_type,omitempty"`
	Commission  *int16        `json:"commission,omitempty"`
}

// IsNull implements pgtype.CompositeIndexGetter.
func (r DbReward) IsNull() bool { return false }

// Index implements pgtype.CompositeIndexGetter.
func (r DbReward) Index(i int) any {
	switch i {
	case 0:
		return r.Pubkey
	case 1:
		return r.Lamports
	case 2:
		return r.PostBalance
	case 3:
		if r.RewardType == nil {
			return nil
		}
		return string(*r.RewardType)
	case 4:
		if r.Commission == nil {
			return nil
		}
		return *r.Commission
	default:
		return nil
	}
}

// BlockRow is one row of the block table, minus updated_on which the
// writer stamps at execution time.
type BlockRow struct {
	Slot        int64      `json:"slot"`
	Blockhash   string     `json:"blockhash"`
	Rewards     []DbReward `json:"rewards"`
	BlockTime   *int64     `json:"block_time"`
	BlockHeight *int64     `json:"block_height"`
}

// FromReplica converts a block notification into a BlockRow. It never fails.
//
// Slot and block height are unsigned on the host side and are narrowed to
// int64 by two's-complement reinterpretation: values above math.MaxInt64
// come out negative. Callers that must not persist such values check InRange
// first.
func FromReplica(info *types.ReplicaBlockInfo) BlockRow {
	row := BlockRow{
		Slot:      int64(info.Slot),
		Blockhash: info.Blockhash,
		Rewards:   make([]DbReward, 0, len(info.Rewards)),
	}
	for i := range info.Rewards {
		row.Rewards = append(row.Rewards, RewardFromReplica(&info.Rewards[i]))
	}
	if info.BlockTime != nil {
		t := *info.BlockTime
		row.BlockTime = &t
	}
	if info.BlockHeight != nil {
		h := int64(*info.BlockHeight)
		row.BlockHeight = &h
	}
	return row
}

// RewardFromReplica converts a single reward entry.
func RewardFromReplica(r *types.Reward) DbReward {
	out := DbReward{
		Pubkey:      r.Pubkey,
		Lamports:    r.Lamports,
		PostBalance: int64(r.PostBalance),
	}
	if r.RewardType != nil {
		out.RewardType = rewardTypeFromReplica(*r.RewardType)
	}
	if r.Commission != nil {
		c := int16(*r.Commission)
		out.Commission = &c
	}
	return out
}

func rewardTypeFromReplica(t types.RewardType) *DbRewardType {
	var rt DbRewardType
	switch t {
	case types.RewardTypeFee:
		rt = DbRewardTypeFee
	case types.RewardTypeRent:
		rt = DbRewardTypeRent
	case types.RewardTypeStaking:
		rt = DbRewardTypeStaking
	case types.RewardTypeVoting:
		rt = DbRewardTypeVoting
	default:
		return nil
	}
	return &rt
}

// InRange reports whether every unsigned field of info fits in an int64
// column without wrapping. The offending field name is returned otherwise.
func InRange(info *types.ReplicaBlockInfo) (string, bool) {
	if info.Slot > math.MaxInt64 {
		return "slot", false
	}
	if info.BlockHeight != nil && *info.BlockHeight > math.MaxInt64 {
		return "block_height", false
	}
	for i := range info.Rewards {
		if info.Rewards[i].PostBalance > math.MaxInt64 {
			return "rewards.post_balance", false
		}
	}
	return "", true
}
