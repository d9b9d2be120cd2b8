package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/presale_portal/model"
	"github.com/presale_portal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newStageTestEnv(t *testing.T, maxAge time.Duration) (*StageService, *repository.StageRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))

	repo := repository.NewStageRepository(db)
	return NewStageService(repo, maxAge, zap.NewNop()), repo
}

func activeStageFixture(id string) *model.Stage {
	now := time.Now()
	return &model.Stage{
		ID: id, Name: id, TokenPrice: 0.05,
		StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour),
	}
}

func TestActiveStageErrsWhenNoneConfigured(t *testing.T) {
	svc, _ := newStageTestEnv(t, time.Minute)

	_, err := svc.ActiveStage(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveStage)
}

func TestActiveStageCachesWithinFreshnessWindow(t *testing.T) {
	svc, repo := newStageTestEnv(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, activeStageFixture("s1")))

	stage, err := svc.ActiveStage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", stage.ID)

	// a newer stage appears, but the fresh cache still serves s1
	newer := activeStageFixture("s0")
	newer.StartDate = time.Now().Add(-2 * time.Hour)
	require.NoError(t, repo.Create(ctx, newer))

	stage, err = svc.ActiveStage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", stage.ID)

	svc.Invalidate()
	stage, err = svc.ActiveStage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s0", stage.ID)
}

func TestActiveStageNotServedAfterWindowCloses(t *testing.T) {
	svc, repo := newStageTestEnv(t, time.Nanosecond)
	ctx := context.Background()

	stage := activeStageFixture("s1")
	stage.EndDate = time.Now().Add(150 * time.Millisecond)
	require.NoError(t, repo.Create(ctx, stage))

	got, err := svc.ActiveStage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	time.Sleep(200 * time.Millisecond)

	_, err = svc.ActiveStage(ctx)
	assert.ErrorIs(t, err, ErrNoActiveStage)

	// the cache is dropped for good, not served on the next call either
	_, err = svc.ActiveStage(ctx)
	assert.ErrorIs(t, err, ErrNoActiveStage)
}

func TestActiveStageRefreshesOnceStale(t *testing.T) {
	svc, repo := newStageTestEnv(t, time.Nanosecond)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, activeStageFixture("s1")))

	_, err := svc.ActiveStage(ctx)
	require.NoError(t, err)
	first := svc.FetchedAt()

	time.Sleep(time.Millisecond)
	_, err = svc.ActiveStage(ctx)
	require.NoError(t, err)
	assert.True(t, svc.FetchedAt().After(first))
}
