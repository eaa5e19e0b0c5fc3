package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"channelbot/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}))
	return db
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	created, err := repo.UpsertFromTelegram(ctx, 100, "alice", "Alice", "")
	require.NoError(t, err)
	require.Equal(t, int64(100), created.TelegramID)
	require.Equal(t, "alice", created.Username)

	updated, err := repo.UpsertFromTelegram(ctx, 100, "alice_new", "Alice", "Smith")
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)

	stored, err := repo.FindByTelegramID(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, "alice_new", stored.Username)
	require.Equal(t, "Smith", stored.LastName)

	var count int64
	require.NoError(t, repo.db.Model(&model.User{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestUpsertLastWriteWins(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	for _, username := range []string{"a", "b", "c"} {
		_, err := repo.UpsertFromTelegram(ctx, 7, username, "Name", "")
		require.NoError(t, err)
	}

	stored, err := repo.FindByTelegramID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "c", stored.Username)
}

func TestListAllNewestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []int64{1, 2, 3} {
		user := model.User{TelegramID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, db.Create(&user).Error)
	}

	users, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	require.Equal(t, int64(3), users[0].TelegramID)
	require.Equal(t, int64(1), users[2].TelegramID)

	ids, err := repo.RecipientIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 2, 1}, ids)
}

func TestFindMissingUser(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	_, err := repo.FindByTelegramID(context.Background(), 404)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
