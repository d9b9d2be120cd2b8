package repository

import (
	"context"
	"testing"
	"time"

	"github.com/presale_portal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindActiveStage(t *testing.T) {
	repo := NewStageRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	mk := func(id string, start, end time.Time, disabled bool) {
		require.NoError(t, repo.Create(ctx, &model.Stage{
			ID: id, Name: id, TokenPrice: 0.05,
			StartDate: start, EndDate: end, Disabled: disabled,
		}))
	}
	mk("past", now.Add(-48*time.Hour), now.Add(-24*time.Hour), false)
	mk("disabled", now.Add(-time.Hour), now.Add(time.Hour), true)
	mk("late", now.Add(-30*time.Minute), now.Add(2*time.Hour), false)
	mk("early", now.Add(-2*time.Hour), now.Add(time.Hour), false)
	mk("future", now.Add(24*time.Hour), now.Add(48*time.Hour), false)

	// overlapping windows: the earliest-starting enabled stage wins
	stage, err := repo.FindActive(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "early", stage.ID)
}

func TestFindActiveStageNoneMatching(t *testing.T) {
	repo := NewStageRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &model.Stage{
		ID: "ended", Name: "ended", TokenPrice: 0.05,
		StartDate: now.Add(-2 * time.Hour), EndDate: now.Add(-time.Hour),
	}))

	_, err := repo.FindActive(ctx, now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStageBonusesRoundTripThroughJSONColumn(t *testing.T) {
	repo := NewStageRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &model.Stage{
		ID: "s1", Name: "Stage 1", TokenPrice: 0.05,
		StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour),
		Bonuses: model.StageBonuses{
			BasePercentage: 5,
			TieredFiat:     []model.TieredBonus{{Amount: 500, Percentage: 8}},
			Signup:         &model.SignupBonuses{FirstPurchasePercentage: 10},
			Referrals:      &model.ReferralBonus{Earn: 50, Spend: 500},
		},
	}))

	stage, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, stage.Bonuses.BasePercentage)
	require.Len(t, stage.Bonuses.TieredFiat, 1)
	assert.Equal(t, 8.0, stage.Bonuses.TieredFiat[0].Percentage)
	require.NotNil(t, stage.Bonuses.Signup)
	assert.Equal(t, 10.0, stage.Bonuses.Signup.FirstPurchasePercentage)
	require.NotNil(t, stage.Bonuses.Referrals)
	assert.Equal(t, 500.0, stage.Bonuses.Referrals.Spend)
	assert.Nil(t, stage.Bonuses.LimitedTime)
}

func TestAddSoldTokens(t *testing.T) {
	repo := NewStageRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &model.Stage{
		ID: "s1", Name: "Stage 1", TokenPrice: 0.05,
		StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour),
	}))

	require.NoError(t, repo.AddSoldTokens(ctx, "s1", 20000))
	require.NoError(t, repo.AddSoldTokens(ctx, "s1", 1000))

	stage, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 21000.0, stage.SoldTokens)
}
