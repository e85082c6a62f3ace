package websites

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bizvistar/billing-backend/pkg/db/models"
)

func setupWebsiteTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(`
CREATE TABLE websites (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  is_published BOOLEAN NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	return db
}

func TestUnpublishByUser(t *testing.T) {
	db := setupWebsiteTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()

	for _, site := range []models.Website{
		{ID: uuid.New(), UserID: owner, Slug: "chai-corner", IsPublished: true},
		{ID: uuid.New(), UserID: owner, Slug: "chai-corner-pune", IsPublished: true},
		{ID: uuid.New(), UserID: owner, Slug: "draft-site", IsPublished: false},
		{ID: uuid.New(), UserID: other, Slug: "other-shop", IsPublished: true},
	} {
		site := site
		require.NoError(t, db.Create(&site).Error)
	}

	changed, err := repo.UnpublishByUser(ctx, owner, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	live, err := repo.CountPublished(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, live)

	live, err = repo.CountPublished(ctx, other)
	require.NoError(t, err)
	assert.EqualValues(t, 1, live, "other users' sites stay published")

	changed, err = repo.WithTx(db).UnpublishByUser(ctx, owner, time.Now())
	require.NoError(t, err)
	assert.Zero(t, changed)
}
