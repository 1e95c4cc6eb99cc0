package notification

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/cache"
	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/models"
)

const (
	countCacheTTL = 30 * time.Second

	defaultListLimit = 50
	maxListLimit     = 100
)

// Service exposes per-user notification reads and viewed-flag updates.
// The unread count is cached in Redis with a short TTL; writes invalidate it.
type Service struct {
	db    *gorm.DB
	cache *cache.Client
}

// NewService creates a new notification service. The cache client is
// optional; without it counts are always read from the database.
func NewService(db *gorm.DB, cacheClient *cache.Client) *Service {
	return &Service{db: db, cache: cacheClient}
}

func countCacheKey(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}

// UnreadCount returns the number of unviewed notifications for a user
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, countCacheKey(userID)); err == nil {
			if n, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return n, nil
			}
		}
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_viewed = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, domain.NewInternalError(err)
	}

	if s.cache != nil {
		// Best effort: a failed cache write only costs the next read a query
		_ = s.cache.Set(ctx, countCacheKey(userID), strconv.FormatInt(count, 10), countCacheTTL)
	}

	return count, nil
}

// List returns a user's notifications, newest first, optionally filtered
// by viewed state. limit <= 0 falls back to the default, and is capped.
func (s *Service) List(ctx context.Context, userID string, isViewed *bool, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if isViewed != nil {
		query = query.Where("is_viewed = ?", *isViewed)
	}

	var notifications []models.Notification
	err := query.Order("created_at DESC").Limit(limit).Find(&notifications).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return notifications, nil
}

// MarkViewed marks the given notification ids as viewed. Only rows owned
// by the requesting user are touched.
func (s *Service) MarkViewed(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return domain.NewValidationError("notificationIds array is required")
	}

	now := time.Now()
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Updates(map[string]interface{}{"is_viewed": true, "viewed_at": now}).Error
	if err != nil {
		return domain.NewInternalError(err)
	}

	s.InvalidateCount(ctx, userID)
	return nil
}

// MarkAllViewed marks every unviewed notification for the user as viewed
func (s *Service) MarkAllViewed(ctx context.Context, userID string) error {
	now := time.Now()
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_viewed = ?", userID, false).
		Updates(map[string]interface{}{"is_viewed": true, "viewed_at": now}).Error
	if err != nil {
		return domain.NewInternalError(err)
	}

	s.InvalidateCount(ctx, userID)
	return nil
}

// InvalidateCount drops the cached unread count for a user. Called by any
// writer that creates notifications or flips viewed flags.
func (s *Service) InvalidateCount(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, countCacheKey(userID))
}
