package postgres

import (
	"context"
	"time"

	notificationDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/notification"
	"github.com/imec-int/monument-plwd-sub001/internal/notification"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) notification.RepositoryAPI {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notificationDatamodel.Notification) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(n).Error
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*notificationDatamodel.Notification, error) {
	var rows []*notificationDatamodel.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]*notificationDatamodel.Notification, error) {
	var rows []*notificationDatamodel.Notification
	err := r.db.WithContext(ctx).
		Where("status = ?", string(notification.StatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&notificationDatamodel.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(notification.StatusSent),
			"sent_at":    at,
			"last_error": "",
			"updated_at": at,
		}).Error
}

// MarkFailed bumps the retry count. The row only leaves the pending state
// when final is set.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, reason string, final bool) error {
	updates := map[string]interface{}{
		"retry_count": gorm.Expr("retry_count + 1"),
		"last_error":  reason,
		"updated_at":  time.Now().UTC(),
	}
	if final {
		updates["status"] = string(notification.StatusFailed)
	}
	return r.db.WithContext(ctx).
		Model(&notificationDatamodel.Notification{}).
		Where("id = ?", id).
		Updates(updates).Error
}
