package profiles

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/autolinkhq/autolink-backend/pkg/db"
	"github.com/autolinkhq/autolink-backend/pkg/db/models"
)

func setupProfilesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	profiles := `
CREATE TABLE IF NOT EXISTS profiles (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  display_name TEXT,
  avatar_url TEXT,
  is_pro INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, gdb.Exec(profiles).Error)
	return gdb
}

func TestRepositoryUpsertAndFind(t *testing.T) {
	gdb := setupProfilesTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	id := uuid.New()
	profile := &models.Profile{
		ID:       id,
		Username: "driver_" + id.String()[:8],
	}
	require.NoError(t, repo.Upsert(ctx, profile))

	found, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, profile.Username, found.Username)
	assert.False(t, found.IsPro)
}

func TestRepositoryUpsertUsernameCollision(t *testing.T) {
	gdb := setupProfilesTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	username := "taken_" + uuid.NewString()[:8]
	require.NoError(t, repo.Upsert(ctx, &models.Profile{ID: uuid.New(), Username: username}))

	err := repo.Upsert(ctx, &models.Profile{ID: uuid.New(), Username: username})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestRepositoryUpsertIgnoresDuplicateID(t *testing.T) {
	gdb := setupProfilesTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, repo.Upsert(ctx, &models.Profile{ID: id, Username: "first_writer"}))

	// A second sign-in racing on the same id must not error or overwrite.
	require.NoError(t, repo.Upsert(ctx, &models.Profile{ID: id, Username: "second_writer"}))

	found, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "first_writer", found.Username)
}

func TestRepositoryUpdateAndSetPro(t *testing.T) {
	gdb := setupProfilesTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	id := uuid.New()
	profile := &models.Profile{ID: id, Username: "pro_" + id.String()[:8]}
	require.NoError(t, repo.Upsert(ctx, profile))

	name := "Alex"
	profile.DisplayName = &name
	require.NoError(t, repo.Update(ctx, profile))
	require.NoError(t, repo.SetPro(ctx, id, true))

	found, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, found.DisplayName)
	assert.Equal(t, "Alex", *found.DisplayName)
	assert.True(t, found.IsPro)
}
