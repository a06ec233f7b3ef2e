package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/internal/tests"
	"github.com/Layr-Labs/tokenfarm/pkg/cycles"
	"github.com/Layr-Labs/tokenfarm/pkg/eventBus"
	"github.com/Layr-Labs/tokenfarm/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/tokenfarm/pkg/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	ownerAddress = common.HexToAddress("0x0000000000000000000000000000000000000001")
	userA        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	userB        = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	userC        = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	stranger     = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

type testFarm struct {
	ledger      *Ledger
	stakeToken  *token.Token
	rewardToken *token.Token
	cycles      *cycles.ManualSource
	eventBus    *eventBus.EventBus
	cfg         *config.Config
}

func bigInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad test integer " + s)
	}
	return v
}

func setup(t *testing.T) *testFarm {
	l, _ := zap.NewDevelopment()
	cfg := tests.GetConfig()

	grm, err := tests.GetMigratedSqliteDatabase(cfg, l)
	require.Nil(t, err)
	t.Cleanup(func() { tests.CloseDatabase(grm) })

	store, err := token.NewMemStore()
	require.Nil(t, err)
	t.Cleanup(func() { _ = store.Close() })

	stakeToken, err := token.Deploy(store, cfg.GetStakeTokenAddress(), "Mock DAI", "mDAI", ownerAddress, l)
	require.Nil(t, err)
	rewardToken, err := token.Deploy(store, cfg.GetRewardTokenAddress(), "Dapp Token", "DAPP", ownerAddress, l)
	require.Nil(t, err)
	require.Nil(t, rewardToken.TransferOwnership(context.Background(), ownerAddress, cfg.GetFarmAddress()))

	source := cycles.NewManualSource(0)
	eb := eventBus.NewEventBus(l)

	ledger, err := NewLedger(grm, stakeToken, rewardToken, source, eb, nil, l, cfg)
	require.Nil(t, err)

	return &testFarm{
		ledger:      ledger,
		stakeToken:  stakeToken,
		rewardToken: rewardToken,
		cycles:      source,
		eventBus:    eb,
		cfg:         cfg,
	}
}

func (f *testFarm) initialize(t *testing.T) {
	err := f.ledger.InitializeBase(context.Background(), BaseParams{
		Owner:       ownerAddress,
		StakeAsset:  f.stakeToken.Address(),
		RewardAsset: f.rewardToken.Address(),
		TierRates: map[uint64]*big.Int{
			TierKey_Short:  bigInt("1000000000"),
			TierKey_Medium: bigInt("1000000000000"),
			TierKey_Long:   bigInt("1000000000000000"),
		},
	})
	require.Nil(t, err)
}

// fund mints amount of the stake asset to user and approves the farm to pull it.
func (f *testFarm) fund(t *testing.T, user common.Address, amount int64) {
	ctx := context.Background()
	require.Nil(t, f.stakeToken.Mint(ctx, ownerAddress, user, big.NewInt(amount)))
	require.Nil(t, f.stakeToken.Approve(ctx, user, f.ledger.FarmAddress(), big.NewInt(amount)))
}

func (f *testFarm) deposit(t *testing.T, user common.Address, amount int64) {
	f.fund(t, user, amount)
	require.Nil(t, f.ledger.Deposit(context.Background(), user, big.NewInt(amount)))
}

func (f *testFarm) userInfo(t *testing.T, user common.Address) *StakerRecord {
	record, err := f.ledger.GetUserInfo(context.Background(), user)
	require.Nil(t, err)
	return record
}

func (f *testFarm) assertTotalMatchesStakes(t *testing.T) {
	ctx := context.Background()
	total, err := f.ledger.TotalStakingBalance(ctx)
	require.Nil(t, err)

	stakers, err := f.ledger.ListStakers(ctx)
	require.Nil(t, err)
	sum := big.NewInt(0)
	for _, s := range stakers {
		sum.Add(sum, f.userInfo(t, s).StakedAmount)
	}
	assert.Equal(t, sum.String(), total.String())
	assert.Nil(t, f.ledger.VerifyInvariants(ctx))
}

func Test_Initialization(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reject every mutation before initialization", func(t *testing.T) {
		f := setup(t)
		f.fund(t, userA, 10)

		assert.ErrorIs(t, f.ledger.Deposit(ctx, userA, big.NewInt(10)), ErrNotInitialized)
		_, err := f.ledger.Withdraw(ctx, userA)
		assert.ErrorIs(t, err, ErrNotInitialized)
		_, err = f.ledger.ClaimRewards(ctx, userA)
		assert.ErrorIs(t, err, ErrNotInitialized)
		_, err = f.ledger.DistributeAll(ctx, ownerAddress, 1)
		assert.ErrorIs(t, err, ErrNotInitialized)
		assert.ErrorIs(t, f.ledger.UpgradeSetFee(ctx, ownerAddress, 100), ErrNotInitialized)

		v, err := f.ledger.Version(ctx)
		assert.Nil(t, err)
		assert.Equal(t, Version_Uninitialized, v)
		total, err := f.ledger.TotalStakingBalance(ctx)
		assert.Nil(t, err)
		assert.Equal(t, "0", total.String())
		assert.Nil(t, f.ledger.VerifyInvariants(ctx))
	})
	t.Run("Should initialize once", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)

		v, err := f.ledger.Version(ctx)
		assert.Nil(t, err)
		assert.Equal(t, "1.0.0", v.String())
		owner, err := f.ledger.Owner(ctx)
		assert.Nil(t, err)
		assert.Equal(t, ownerAddress, owner)

		tiers, err := f.ledger.Tiers(ctx)
		assert.Nil(t, err)
		keys := make([]uint64, 0)
		for pair := tiers.Oldest(); pair != nil; pair = pair.Next() {
			keys = append(keys, pair.Key)
		}
		assert.Equal(t, TierKeys, keys)

		err = f.ledger.InitializeBase(ctx, BaseParams{
			Owner:       stranger,
			StakeAsset:  f.stakeToken.Address(),
			RewardAsset: f.rewardToken.Address(),
			TierRates:   config.DefaultTierRates(),
		})
		assert.ErrorIs(t, err, ErrAlreadyInitialized)
		owner, _ = f.ledger.Owner(ctx)
		assert.Equal(t, ownerAddress, owner)
	})
	t.Run("Should validate initialization parameters", func(t *testing.T) {
		f := setup(t)

		err := f.ledger.InitializeBase(ctx, BaseParams{
			Owner:       ownerAddress,
			StakeAsset:  stranger,
			RewardAsset: f.rewardToken.Address(),
			TierRates:   config.DefaultTierRates(),
		})
		assert.ErrorIs(t, err, ErrAssetMismatch)

		rates := config.DefaultTierRates()
		delete(rates, TierKey_Long)
		err = f.ledger.InitializeBase(ctx, BaseParams{
			Owner:       ownerAddress,
			StakeAsset:  f.stakeToken.Address(),
			RewardAsset: f.rewardToken.Address(),
			TierRates:   rates,
		})
		assert.ErrorIs(t, err, ErrUnknownTier)

		rates = config.DefaultTierRates()
		rates[TierKey_Short] = big.NewInt(-1)
		err = f.ledger.InitializeBase(ctx, BaseParams{
			Owner:       ownerAddress,
			StakeAsset:  f.stakeToken.Address(),
			RewardAsset: f.rewardToken.Address(),
			TierRates:   rates,
		})
		assert.ErrorIs(t, err, ErrInvalidAmount)

		v, _ := f.ledger.Version(ctx)
		assert.Equal(t, Version_Uninitialized, v)
	})
}

func Test_Stakes(t *testing.T) {
	ctx := context.Background()

	t.Run("Should register stakers in deposit order and keep the total", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)

		f.deposit(t, userB, 1500)
		f.deposit(t, userA, 1000)
		f.deposit(t, userB, 500)

		stakers, err := f.ledger.ListStakers(ctx)
		assert.Nil(t, err)
		assert.Equal(t, []common.Address{userB, userA}, stakers)

		assert.Equal(t, "2000", f.userInfo(t, userB).StakedAmount.String())
		assert.Equal(t, "1000", f.userInfo(t, userA).StakedAmount.String())
		total, _ := f.ledger.TotalStakingBalance(ctx)
		assert.Equal(t, "3000", total.String())

		farmBalance, _ := f.stakeToken.BalanceOf(ctx, f.ledger.FarmAddress())
		assert.Equal(t, "3000", farmBalance.String())
		f.assertTotalMatchesStakes(t)
	})
	t.Run("Should reject non-positive deposits", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)

		assert.ErrorIs(t, f.ledger.Deposit(ctx, userA, big.NewInt(0)), ErrInvalidAmount)
		assert.ErrorIs(t, f.ledger.Deposit(ctx, userA, big.NewInt(-5)), ErrInvalidAmount)
		assert.ErrorIs(t, f.ledger.Deposit(ctx, userA, nil), ErrInvalidAmount)

		_, err := f.ledger.GetUserInfo(ctx, userA)
		assert.ErrorIs(t, err, ErrNotAStaker)
	})
	t.Run("Should roll back a deposit the stake asset refuses", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		require.Nil(t, f.stakeToken.Mint(ctx, ownerAddress, userA, big.NewInt(100)))

		err := f.ledger.Deposit(ctx, userA, big.NewInt(100))
		assert.ErrorIs(t, err, ErrTransferFailed)
		assert.ErrorIs(t, err, token.ErrInsufficientAllowance)

		_, err = f.ledger.GetUserInfo(ctx, userA)
		assert.ErrorIs(t, err, ErrNotAStaker)
		count, _ := f.ledger.CountStakers(ctx)
		assert.Equal(t, int64(0), count)
		total, _ := f.ledger.TotalStakingBalance(ctx)
		assert.Equal(t, "0", total.String())
		balance, _ := f.stakeToken.BalanceOf(ctx, userA)
		assert.Equal(t, "100", balance.String())
	})
	t.Run("Should return the exact principal on withdraw", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)
		f.deposit(t, userB, 1500)

		amount, err := f.ledger.Withdraw(ctx, userA)
		assert.Nil(t, err)
		assert.Equal(t, "1000", amount.String())

		assert.Equal(t, "0", f.userInfo(t, userA).StakedAmount.String())
		balance, _ := f.stakeToken.BalanceOf(ctx, userA)
		assert.Equal(t, "1000", balance.String())
		total, _ := f.ledger.TotalStakingBalance(ctx)
		assert.Equal(t, "1500", total.String())

		// the withdrawn staker stays in the roster
		stakers, _ := f.ledger.ListStakers(ctx)
		assert.Equal(t, []common.Address{userA, userB}, stakers)

		_, err = f.ledger.Withdraw(ctx, userA)
		assert.ErrorIs(t, err, ErrNotAnActiveStaker)
		_, err = f.ledger.Withdraw(ctx, userC)
		assert.ErrorIs(t, err, ErrNotAnActiveStaker)
		f.assertTotalMatchesStakes(t)
	})
	t.Run("Should restart accrual when re-depositing after a full withdraw", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)

		f.cycles.Advance(40)
		_, err := f.ledger.Withdraw(ctx, userA)
		require.Nil(t, err)

		f.cycles.Advance(20)
		f.deposit(t, userA, 10)
		assert.Equal(t, uint64(60), f.userInfo(t, userA).LastAccrualPoint)

		f.deposit(t, userA, 10)
		assert.Equal(t, uint64(60), f.userInfo(t, userA).LastAccrualPoint)
	})
	t.Run("Should page through staker records", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1)
		f.deposit(t, userB, 2)
		f.deposit(t, userC, 3)

		page, err := f.ledger.ListStakerRecords(ctx, 0, 2)
		assert.Nil(t, err)
		assert.Len(t, page, 2)
		assert.Equal(t, userA, page[0].Address)
		assert.Equal(t, userB, page[1].Address)

		page, err = f.ledger.ListStakerRecords(ctx, page[1].Slot, 2)
		assert.Nil(t, err)
		assert.Len(t, page, 1)
		assert.Equal(t, userC, page[0].Address)
		assert.Equal(t, "3", page[0].StakedAmount.String())
	})
}

func Test_Tiers(t *testing.T) {
	ctx := context.Background()

	t.Run("Should select tiers with half-open ranges", func(t *testing.T) {
		cases := map[uint64]uint64{
			0:    TierKey_Short,
			10:   TierKey_Short,
			99:   TierKey_Short,
			100:  TierKey_Medium,
			999:  TierKey_Medium,
			1000: TierKey_Long,
			5000: TierKey_Long,
		}
		for cyclesPassed, expected := range cases {
			assert.Equal(t, expected, TierForCycles(cyclesPassed), "cyclesPassed=%d", cyclesPassed)
		}
	})
	t.Run("Should update a known tier and reject unknown ones", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)

		before, err := f.ledger.Tiers(ctx)
		require.Nil(t, err)

		err = f.ledger.UpdateRewardRange(ctx, ownerAddress, 50, big.NewInt(7))
		assert.ErrorIs(t, err, ErrUnknownTier)
		after, _ := f.ledger.Tiers(ctx)
		assert.Equal(t, before.Len(), after.Len())
		for pair := before.Oldest(); pair != nil; pair = pair.Next() {
			rate, ok := after.Get(pair.Key)
			assert.True(t, ok)
			assert.Equal(t, pair.Value.String(), rate.String())
		}

		assert.ErrorIs(t, f.ledger.UpdateRewardRange(ctx, stranger, TierKey_Short, big.NewInt(7)), ErrUnauthorized)
		assert.ErrorIs(t, f.ledger.UpdateRewardRange(ctx, ownerAddress, TierKey_Short, big.NewInt(-7)), ErrInvalidAmount)

		assert.Nil(t, f.ledger.UpdateRewardRange(ctx, ownerAddress, TierKey_Short, big.NewInt(7)))
		after, _ = f.ledger.Tiers(ctx)
		rate, _ := after.Get(TierKey_Short)
		assert.Equal(t, "7", rate.String())
	})
}

func Test_Distribution(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reward a sole staker at the medium tier", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)

		require.Nil(t, f.cycles.Set(100))
		summary, err := f.ledger.DistributeAll(ctx, ownerAddress, 100)
		assert.Nil(t, err)
		assert.Equal(t, uint64(1), summary.StakersRewarded)

		record := f.userInfo(t, userA)
		assert.Equal(t, "100000000000000", record.PendingReward.String())
		assert.Equal(t, uint64(100), record.LastAccrualPoint)
	})
	t.Run("Should reward each staker by its own tier and participation", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)
		require.Nil(t, f.cycles.Set(50))
		f.deposit(t, userB, 1500)
		require.Nil(t, f.cycles.Set(100))

		summary, err := f.ledger.DistributeAll(ctx, ownerAddress, 100)
		assert.Nil(t, err)
		assert.Equal(t, uint64(2), summary.StakersRewarded)

		// A: 1000/2500 x 1e12 x 100, B: 1500/2500 x 1e9 x 50
		assert.Equal(t, "40000000000000", f.userInfo(t, userA).PendingReward.String())
		assert.Equal(t, "30000000000", f.userInfo(t, userB).PendingReward.String())
		assert.Equal(t, "40030000000000", summary.TotalApplied.String())
		assert.True(t, summary.Dust.IsZero())
	})
	t.Run("Should be idempotent at the same cycle", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)
		f.deposit(t, userB, 3)
		require.Nil(t, f.cycles.Set(20))

		_, err := f.ledger.DistributeAll(ctx, ownerAddress, 20)
		require.Nil(t, err)
		pendingA := f.userInfo(t, userA).PendingReward.String()
		pendingB := f.userInfo(t, userB).PendingReward.String()

		summary, err := f.ledger.DistributeAll(ctx, ownerAddress, 20)
		assert.Nil(t, err)
		assert.Equal(t, uint64(0), summary.StakersRewarded)
		assert.Equal(t, "0", summary.TotalApplied.String())
		assert.Equal(t, pendingA, f.userInfo(t, userA).PendingReward.String())
		assert.Equal(t, pendingB, f.userInfo(t, userB).PendingReward.String())
	})
	t.Run("Should keep rounding dust non-negative and below one unit per staker", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1)
		f.deposit(t, userB, 1)
		f.deposit(t, userC, 1)
		require.Nil(t, f.cycles.Set(50))

		summary, err := f.ledger.DistributeAll(ctx, ownerAddress, 50)
		assert.Nil(t, err)

		// each staker earns 1/3 x 1e9 x 50, rounded down
		for _, u := range []common.Address{userA, userB, userC} {
			assert.Equal(t, "16666666666", f.userInfo(t, u).PendingReward.String())
		}
		assert.True(t, summary.Expected.Equal(decimal.RequireFromString("50000000000")))
		assert.True(t, summary.Dust.Equal(decimal.NewFromInt(2)))
		assert.True(t, summary.Dust.GreaterThanOrEqual(decimal.Zero))
		assert.True(t, summary.Dust.LessThan(decimal.NewFromInt(int64(summary.StakersRewarded))))
	})
	t.Run("Should skip withdrawn stakers", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)
		f.deposit(t, userB, 1000)
		_, err := f.ledger.Withdraw(ctx, userB)
		require.Nil(t, err)
		require.Nil(t, f.cycles.Set(10))

		summary, err := f.ledger.DistributeAll(ctx, ownerAddress, 10)
		assert.Nil(t, err)
		assert.Equal(t, uint64(1), summary.StakersRewarded)
		assert.Equal(t, "0", f.userInfo(t, userB).PendingReward.String())
		assert.Equal(t, "10000000000", f.userInfo(t, userA).PendingReward.String())
	})
	t.Run("Should only let the owner sweep", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)

		_, err := f.ledger.DistributeAll(ctx, stranger, 10)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, "0", f.userInfo(t, userA).PendingReward.String())
	})
	t.Run("Should stop when cancelled and resume at the same cycle", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		for _, u := range []common.Address{userA, userB, userC} {
			f.deposit(t, u, 100)
		}
		require.Nil(t, f.cycles.Set(30))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := f.ledger.DistributeAll(cancelled, ownerAddress, 30)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, "0", f.userInfo(t, userA).PendingReward.String())

		// one batch, then the rest of the sweep
		summary, next, done, err := f.ledger.DistributeBatch(ctx, ownerAddress, 30, 0, 2)
		assert.Nil(t, err)
		assert.False(t, done)
		assert.Equal(t, uint64(2), summary.StakersRewarded)
		assert.Equal(t, "0", f.userInfo(t, userC).PendingReward.String())
		assert.Equal(t, f.userInfo(t, userB).Slot, next)

		summary, err = f.ledger.DistributeAll(ctx, ownerAddress, 30)
		assert.Nil(t, err)
		assert.Equal(t, uint64(1), summary.StakersRewarded)

		for _, u := range []common.Address{userA, userB, userC} {
			assert.Equal(t, "10000000000", f.userInfo(t, u).PendingReward.String())
		}
	})
	t.Run("Should sweep across several batches", func(t *testing.T) {
		f := setup(t)
		f.cfg.DistributionConfig.BatchSize = 1
		f.initialize(t)
		f.deposit(t, userA, 100)
		f.deposit(t, userB, 100)
		f.deposit(t, userC, 200)
		require.Nil(t, f.cycles.Set(10))

		summary, err := f.ledger.DistributeAll(ctx, ownerAddress, 10)
		assert.Nil(t, err)
		assert.Equal(t, uint64(3), summary.StakersRewarded)
		assert.Equal(t, "2500000000", f.userInfo(t, userA).PendingReward.String())
		assert.Equal(t, "5000000000", f.userInfo(t, userC).PendingReward.String())
		assert.Equal(t, "10000000000", summary.TotalApplied.String())
	})
}

func Test_Claims(t *testing.T) {
	ctx := context.Background()

	t.Run("Should pay the full pending reward before the upgrade", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)
		require.Nil(t, f.cycles.Set(100))
		_, err := f.ledger.DistributeAll(ctx, ownerAddress, 100)
		require.Nil(t, err)

		receipt, err := f.ledger.ClaimRewards(ctx, userA)
		assert.Nil(t, err)
		assert.Equal(t, "100000000000000", receipt.Net.String())
		assert.Equal(t, "0", receipt.Fee.String())

		assert.Equal(t, "0", f.userInfo(t, userA).PendingReward.String())
		balance, _ := f.rewardToken.BalanceOf(ctx, userA)
		assert.Equal(t, receipt.Net.String(), balance.String())

		_, err = f.ledger.ClaimRewards(ctx, userA)
		assert.ErrorIs(t, err, ErrNoPendingReward)
		_, err = f.ledger.ClaimRewards(ctx, userC)
		assert.ErrorIs(t, err, ErrNotAStaker)
	})
	t.Run("Should let a withdrawn staker claim", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)
		require.Nil(t, f.cycles.Set(10))
		_, err := f.ledger.DistributeAll(ctx, ownerAddress, 10)
		require.Nil(t, err)
		_, err = f.ledger.Withdraw(ctx, userA)
		require.Nil(t, err)

		receipt, err := f.ledger.ClaimRewards(ctx, userA)
		assert.Nil(t, err)
		assert.Equal(t, "10000000000", receipt.Net.String())
	})
	t.Run("Should keep the pending reward when payment fails", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)
		require.Nil(t, f.cycles.Set(10))
		_, err := f.ledger.DistributeAll(ctx, ownerAddress, 10)
		require.Nil(t, err)

		require.Nil(t, f.rewardToken.TransferOwnership(ctx, f.ledger.FarmAddress(), stranger))

		_, err = f.ledger.ClaimRewards(ctx, userA)
		assert.ErrorIs(t, err, ErrTransferFailed)
		assert.ErrorIs(t, err, token.ErrNotTokenOwner)
		assert.Equal(t, "10000000000", f.userInfo(t, userA).PendingReward.String())
	})
	t.Run("Should split fees after the upgrade", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)
		require.Nil(t, f.cycles.Set(10))
		_, err := f.ledger.DistributeAll(ctx, ownerAddress, 10)
		require.Nil(t, err)
		require.Nil(t, f.ledger.UpgradeSetFee(ctx, ownerAddress, 250))

		pending := f.userInfo(t, userA).PendingReward
		receipt, err := f.ledger.ClaimRewards(ctx, userA)
		assert.Nil(t, err)

		expectedFee := new(big.Int).Div(new(big.Int).Mul(pending, big.NewInt(250)), big.NewInt(10000))
		assert.Equal(t, expectedFee.String(), receipt.Fee.String())
		assert.Equal(t, pending.String(), new(big.Int).Add(receipt.Net, receipt.Fee).String())

		balance, _ := f.rewardToken.BalanceOf(ctx, userA)
		assert.Equal(t, receipt.Net.String(), balance.String())
		feeBalance, _ := f.ledger.FeeBalance(ctx)
		assert.Equal(t, receipt.Fee.String(), feeBalance.String())
		assert.Nil(t, f.ledger.VerifyInvariants(ctx))
	})
	t.Run("Should round the fee down", func(t *testing.T) {
		net, fee := SplitFee(big.NewInt(199), 100)
		assert.Equal(t, "1", fee.String())
		assert.Equal(t, "198", net.String())

		net, fee = SplitFee(big.NewInt(99), 100)
		assert.Equal(t, "0", fee.String())
		assert.Equal(t, "99", net.String())

		net, fee = SplitFee(big.NewInt(42), 10000)
		assert.Equal(t, "42", fee.String())
		assert.Equal(t, "0", net.String())
	})
}

func Test_Upgrade(t *testing.T) {
	ctx := context.Background()

	t.Run("Should preserve stakes and rewards across the upgrade", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)
		require.Nil(t, f.cycles.Set(50))
		f.deposit(t, userB, 1500)
		require.Nil(t, f.cycles.Set(100))
		_, err := f.ledger.DistributeAll(ctx, ownerAddress, 100)
		require.Nil(t, err)

		beforeA := f.userInfo(t, userA)
		beforeB := f.userInfo(t, userB)
		stakersBefore, _ := f.ledger.ListStakers(ctx)

		fee, err := f.ledger.Fee(ctx)
		assert.Nil(t, err)
		assert.Equal(t, uint64(0), fee)

		require.Nil(t, f.ledger.UpgradeSetFee(ctx, ownerAddress, 100))

		v, _ := f.ledger.Version(ctx)
		assert.Equal(t, "2.0.0", v.String())
		fee, _ = f.ledger.Fee(ctx)
		assert.Equal(t, uint64(100), fee)

		assert.Equal(t, beforeA, f.userInfo(t, userA))
		assert.Equal(t, beforeB, f.userInfo(t, userB))
		stakersAfter, _ := f.ledger.ListStakers(ctx)
		assert.Equal(t, stakersBefore, stakersAfter)
		total, _ := f.ledger.TotalStakingBalance(ctx)
		assert.Equal(t, "2500", total.String())
		f.assertTotalMatchesStakes(t)
	})
	t.Run("Should upgrade only once and only by the owner", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)

		assert.ErrorIs(t, f.ledger.UpgradeSetFee(ctx, stranger, 100), ErrUnauthorized)
		assert.ErrorIs(t, f.ledger.UpgradeSetFee(ctx, ownerAddress, 0), ErrInvalidFeeRate)
		assert.ErrorIs(t, f.ledger.UpgradeSetFee(ctx, ownerAddress, 10001), ErrInvalidFeeRate)
		v, _ := f.ledger.Version(ctx)
		assert.Equal(t, Version_Base, v)

		require.Nil(t, f.ledger.UpgradeSetFee(ctx, ownerAddress, 100))
		assert.ErrorIs(t, f.ledger.UpgradeSetFee(ctx, ownerAddress, 200), ErrAlreadyInitialized)
		fee, _ := f.ledger.Fee(ctx)
		assert.Equal(t, uint64(100), fee)
	})
}

func Test_FeeVault(t *testing.T) {
	ctx := context.Background()

	t.Run("Should withdraw the accumulated fees to the owner", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		_, err := f.ledger.WithdrawFee(ctx, ownerAddress)
		assert.ErrorIs(t, err, ErrNotUpgraded)

		f.deposit(t, userA, 1000)
		require.Nil(t, f.ledger.UpgradeSetFee(ctx, ownerAddress, 1000))
		_, err = f.ledger.WithdrawFee(ctx, ownerAddress)
		assert.ErrorIs(t, err, ErrZeroFeeBalance)

		require.Nil(t, f.cycles.Set(10))
		_, err = f.ledger.DistributeAll(ctx, ownerAddress, 10)
		require.Nil(t, err)
		receipt, err := f.ledger.ClaimRewards(ctx, userA)
		require.Nil(t, err)
		assert.Equal(t, "1000000000", receipt.Fee.String())

		_, err = f.ledger.WithdrawFee(ctx, stranger)
		assert.ErrorIs(t, err, ErrUnauthorized)

		amount, err := f.ledger.WithdrawFee(ctx, ownerAddress)
		assert.Nil(t, err)
		assert.Equal(t, receipt.Fee.String(), amount.String())
		balance, _ := f.rewardToken.BalanceOf(ctx, ownerAddress)
		assert.Equal(t, amount.String(), balance.String())

		feeBalance, _ := f.ledger.FeeBalance(ctx)
		assert.Equal(t, "0", feeBalance.String())
		_, err = f.ledger.WithdrawFee(ctx, ownerAddress)
		assert.ErrorIs(t, err, ErrZeroFeeBalance)
	})
}

func Test_Events(t *testing.T) {
	ctx := context.Background()

	t.Run("Should publish events after each committed mutation", func(t *testing.T) {
		f := setup(t)
		consumer := eventBusTypes.NewConsumer(ctx, 10)
		f.eventBus.Subscribe(consumer)

		f.initialize(t)
		f.deposit(t, userA, 1000)
		require.Nil(t, f.cycles.Set(10))
		_, err := f.ledger.DistributeAll(ctx, ownerAddress, 10)
		require.Nil(t, err)
		_, err = f.ledger.ClaimRewards(ctx, userA)
		require.Nil(t, err)
		_, err = f.ledger.Withdraw(ctx, userA)
		require.Nil(t, err)

		// rejected operations publish nothing
		_, err = f.ledger.Withdraw(ctx, userA)
		require.NotNil(t, err)

		names := make([]eventBusTypes.EventName, 0)
		for len(consumer.Channel) > 0 {
			evt := <-consumer.Channel
			names = append(names, evt.Name)
			if evt.Name == eventBusTypes.Event_Deposited {
				data := evt.Data.(*eventBusTypes.DepositedData)
				assert.Equal(t, "1000", data.Amount.String())
				assert.Equal(t, uint64(0), data.Cycle)
			}
		}
		assert.Equal(t, []eventBusTypes.EventName{
			eventBusTypes.Event_VersionUpgraded,
			eventBusTypes.Event_Deposited,
			eventBusTypes.Event_RewardsClaimed,
			eventBusTypes.Event_Withdrawn,
		}, names)
	})
}

func Test_Invariants(t *testing.T) {
	ctx := context.Background()

	t.Run("Should hold on an empty ledger", func(t *testing.T) {
		f := setup(t)
		assert.Nil(t, f.ledger.VerifyInvariants(ctx))
		f.initialize(t)
		assert.Nil(t, f.ledger.VerifyInvariants(ctx))
	})
	t.Run("Should report a total that drifted from the stakes", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		f.deposit(t, userA, 1000)

		res := f.ledger.db.Model(&LedgerState{}).Where("id = ?", singletonId).Update("total_staking_balance", "999")
		require.Nil(t, res.Error)

		var violation *InvariantViolation
		require.ErrorAs(t, f.ledger.VerifyInvariants(ctx), &violation)
		assert.Equal(t, "total", violation.Name)
	})
	t.Run("Should report a missing fee vault after the upgrade", func(t *testing.T) {
		f := setup(t)
		f.initialize(t)
		require.Nil(t, f.ledger.UpgradeSetFee(ctx, ownerAddress, 100))
		assert.Nil(t, f.ledger.VerifyInvariants(ctx))

		require.Nil(t, f.ledger.db.Where("id = ?", singletonId).Delete(&FeeVault{}).Error)

		var violation *InvariantViolation
		require.ErrorAs(t, f.ledger.VerifyInvariants(ctx), &violation)
		assert.Equal(t, "feeVault", violation.Name)
	})
}
