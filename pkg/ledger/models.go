package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Amounts are stored as base-10 text so that postgres and sqlite both keep
// full precision.

type Staker struct {
	Address          string `gorm:"primaryKey"`
	Slot             uint64
	StakedAmount     string
	PendingReward    string
	LastAccrualPoint uint64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Staker) TableName() string {
	return "stakers"
}

type LedgerState struct {
	ID                  uint64 `gorm:"primaryKey"`
	Owner               string
	StakeAsset          string
	RewardAsset         string
	Version             string
	TotalStakingBalance string
	CurrentCycle        uint64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (LedgerState) TableName() string {
	return "ledger_state"
}

type RewardTier struct {
	TierKey   uint64 `gorm:"primaryKey"`
	Rate      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RewardTier) TableName() string {
	return "reward_tiers"
}

type FeeVault struct {
	ID         uint64 `gorm:"primaryKey"`
	FeeRateBps uint64
	FeeBalance string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (FeeVault) TableName() string {
	return "fee_vault"
}

const singletonId = 1

// StakerRecord is the public view of a staker.
type StakerRecord struct {
	Address          common.Address `json:"address"`
	Slot             uint64         `json:"slot"`
	StakedAmount     *big.Int       `json:"stakedAmount"`
	PendingReward    *big.Int       `json:"pendingReward"`
	LastAccrualPoint uint64         `json:"lastAccrualPoint"`
}

func parseAmount(column string, value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, errors.Errorf("corrupt %s value '%s'", column, value)
	}
	return v, nil
}

func (s *Staker) toRecord() (*StakerRecord, error) {
	staked, err := parseAmount("staked_amount", s.StakedAmount)
	if err != nil {
		return nil, err
	}
	pending, err := parseAmount("pending_reward", s.PendingReward)
	if err != nil {
		return nil, err
	}
	return &StakerRecord{
		Address:          common.HexToAddress(s.Address),
		Slot:             s.Slot,
		StakedAmount:     staked,
		PendingReward:    pending,
		LastAccrualPoint: s.LastAccrualPoint,
	}, nil
}

// ClaimReceipt is the split of a claimed reward.
type ClaimReceipt struct {
	Net *big.Int `json:"net"`
	Fee *big.Int `json:"fee"`
}
