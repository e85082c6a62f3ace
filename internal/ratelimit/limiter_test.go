package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bizvistar/billing-backend/pkg/db/models"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

func setupRateLimitTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(`
CREATE TABLE rate_limit_logs (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  ip TEXT,
  action TEXT NOT NULL,
  created_at DATETIME NOT NULL
);`).Error)
	return db
}

func TestLimiterAllowsUpToLimitWithinWindow(t *testing.T) {
	db := setupRateLimitTestDB(t)
	repo := NewRepository(db)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	limiter, err := NewLimiter(LimiterParams{Store: repo, Now: clock})
	require.NoError(t, err)

	ctx := context.Background()
	user := uuid.New()
	other := uuid.New()

	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(ctx, user), "attempt %d should be allowed", i+1)
		limiter.Record(ctx, user, "203.0.113.7")
	}
	assert.False(t, limiter.Allow(ctx, user), "11th attempt in window must be rejected")
	assert.True(t, limiter.Allow(ctx, other), "limits are per user")

	now = now.Add(61 * time.Minute)
	assert.True(t, limiter.Allow(ctx, user), "attempts outside the window no longer count")
}

func TestLimiterFailsOpen(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	limiter, err := NewLimiter(LimiterParams{Store: failingStore{}, Logger: logg})
	require.NoError(t, err)

	assert.True(t, limiter.Allow(context.Background(), uuid.New()))
	limiter.Record(context.Background(), uuid.New(), "")
	assert.Contains(t, buf.String(), "rate limit check failed")
	assert.Contains(t, buf.String(), "rate limit log insert failed")

	var checkLine string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "rate limit check failed") {
			checkLine = line
		}
	}
	assert.Contains(t, checkLine, `"level":"warn"`)
	assert.Contains(t, checkLine, `"error":"connection refused"`)
}

func TestRepositoryDeleteBefore(t *testing.T) {
	db := setupRateLimitTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	user := uuid.New()
	cutoff := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, &models.RateLimitLog{UserID: user, Action: ActionSubscriptionCreate, CreatedAt: cutoff.Add(-time.Hour)}))
	require.NoError(t, repo.Insert(ctx, &models.RateLimitLog{UserID: user, Action: ActionSubscriptionCreate, CreatedAt: cutoff.Add(time.Hour)}))

	removed, err := repo.DeleteBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	count, err := repo.CountSince(ctx, user, ActionSubscriptionCreate, cutoff.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestNewLimiterRequiresStore(t *testing.T) {
	_, err := NewLimiter(LimiterParams{})
	require.Error(t, err)
}

type failingStore struct{}

func (failingStore) CountSince(context.Context, uuid.UUID, string, time.Time) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingStore) Insert(context.Context, *models.RateLimitLog) error {
	return errors.New("connection refused")
}
