package types

import "context"

type RewardType string

const (
	RewardTypeFee     RewardType = "Fee"
	RewardTypeRent    RewardType = "Rent"
	RewardTypeStaking RewardType = "Staking"
	RewardTypeVoting  RewardType = "Voting"
)

// Reward is a single participant's reward as reported by the host for a block.
type Reward struct {
	Pubkey      string      `json:"pubkey"`
	Lamports    int64       `json:"lamports"`
	PostBalance uint64      `json:"post_balance"`
	RewardType  *RewardType `json:"reward_type,omitempty"`
	Commission  *uint8      `json:"commission,omitempty"`
}

// ReplicaBlockInfo is the block-replica notification delivered once per
// finalized block.
type ReplicaBlockInfo struct {
	Slot        uint64   `json:"slot"`
	Blockhash   string   `json:"blockhash"`
	Rewards     []Reward `json:"rewards"`
	BlockTime   *int64   `json:"block_time,omitempty"`
	BlockHeight *uint64  `json:"block_height,omitempty"`
}

type BlockSink interface {
	UpdateBlockMetadata(ctx context.Context, info *ReplicaBlockInfo) error
	Close() error
}
