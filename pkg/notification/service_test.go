package notification

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jordanlanch/leadflow/pkg/cache"
	"github.com/jordanlanch/leadflow/pkg/database"
	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// Unique database name per test to ensure isolation
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func setupTestCache(t *testing.T) (*cache.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &cache.Client{Redis: client}, mr
}

func createTestNotification(t *testing.T, db *gorm.DB, userID string, viewed bool) *models.Notification {
	n := &models.Notification{
		UserID:            userID,
		UserName:          "Sam Seller",
		LeadClientName:    "Acme",
		LeadClientCompany: "Acme Ltd",
		NotificationType:  models.NotificationLeadAssigned,
		Message:           "New lead assigned: Acme from website",
		IsViewed:          viewed,
	}
	require.NoError(t, db.Create(n).Error)
	return n
}

func TestUnreadCount(t *testing.T) {
	ctx := context.Background()

	t.Run("counts only unviewed rows for the user", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewService(db, nil)

		createTestNotification(t, db, "user-1", false)
		createTestNotification(t, db, "user-1", false)
		createTestNotification(t, db, "user-1", true)
		createTestNotification(t, db, "user-2", false)

		count, err := svc.UnreadCount(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("caches the count and serves the cached value", func(t *testing.T) {
		db := setupTestDB(t)
		cacheClient, mr := setupTestCache(t)
		svc := NewService(db, cacheClient)

		createTestNotification(t, db, "user-1", false)

		count, err := svc.UnreadCount(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.True(t, mr.Exists("notifications:unread:user-1"))

		// A new row without invalidation is invisible until the TTL expires
		createTestNotification(t, db, "user-1", false)
		count, err = svc.UnreadCount(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("invalidation forces a fresh read", func(t *testing.T) {
		db := setupTestDB(t)
		cacheClient, _ := setupTestCache(t)
		svc := NewService(db, cacheClient)

		createTestNotification(t, db, "user-1", false)
		_, err := svc.UnreadCount(ctx, "user-1")
		require.NoError(t, err)

		createTestNotification(t, db, "user-1", false)
		svc.InvalidateCount(ctx, "user-1")

		count, err := svc.UnreadCount(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the user's notifications newest first", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewService(db, nil)

		first := createTestNotification(t, db, "user-1", false)
		second := createTestNotification(t, db, "user-1", true)
		createTestNotification(t, db, "user-2", false)

		list, err := svc.List(ctx, "user-1", nil, 0)
		require.NoError(t, err)
		require.Len(t, list, 2)
		ids := []string{list[0].ID, list[1].ID}
		assert.Contains(t, ids, first.ID)
		assert.Contains(t, ids, second.ID)
	})

	t.Run("filters by viewed state", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewService(db, nil)

		unviewed := createTestNotification(t, db, "user-1", false)
		createTestNotification(t, db, "user-1", true)

		viewed := false
		list, err := svc.List(ctx, "user-1", &viewed, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, unviewed.ID, list[0].ID)
	})

	t.Run("caps the limit", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewService(db, nil)

		for i := 0; i < 3; i++ {
			createTestNotification(t, db, "user-1", false)
		}

		list, err := svc.List(ctx, "user-1", nil, 2)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}

func TestMarkViewed(t *testing.T) {
	ctx := context.Background()

	t.Run("marks only the requested rows owned by the user", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewService(db, nil)

		mine := createTestNotification(t, db, "user-1", false)
		other := createTestNotification(t, db, "user-2", false)

		err := svc.MarkViewed(ctx, "user-1", []string{mine.ID, other.ID})
		require.NoError(t, err)

		var got models.Notification
		require.NoError(t, db.First(&got, "id = ?", mine.ID).Error)
		assert.True(t, got.IsViewed)
		require.NotNil(t, got.ViewedAt)

		var untouched models.Notification
		require.NoError(t, db.First(&untouched, "id = ?", other.ID).Error)
		assert.False(t, untouched.IsViewed)
	})

	t.Run("rejects an empty id list", func(t *testing.T) {
		db := setupTestDB(t)
		svc := NewService(db, nil)

		err := svc.MarkViewed(ctx, "user-1", nil)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("invalidates the cached count", func(t *testing.T) {
		db := setupTestDB(t)
		cacheClient, mr := setupTestCache(t)
		svc := NewService(db, cacheClient)

		n := createTestNotification(t, db, "user-1", false)
		_, err := svc.UnreadCount(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, mr.Exists("notifications:unread:user-1"))

		require.NoError(t, svc.MarkViewed(ctx, "user-1", []string{n.ID}))
		assert.False(t, mr.Exists("notifications:unread:user-1"))
	})
}

func TestMarkAllViewed(t *testing.T) {
	ctx := context.Background()

	db := setupTestDB(t)
	svc := NewService(db, nil)

	createTestNotification(t, db, "user-1", false)
	createTestNotification(t, db, "user-1", false)
	other := createTestNotification(t, db, "user-2", false)

	require.NoError(t, svc.MarkAllViewed(ctx, "user-1"))

	var remaining int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ? AND is_viewed = ?", "user-1", false).
		Count(&remaining).Error)
	assert.Zero(t, remaining)

	var got models.Notification
	require.NoError(t, db.First(&got, "id = ?", other.ID).Error)
	assert.False(t, got.IsViewed)
}
