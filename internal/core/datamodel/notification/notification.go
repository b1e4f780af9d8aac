package notification

import (
	"encoding/json"
	"time"
)

type Notification struct {
	ID         string          `gorm:"column:id;primaryKey"`
	UserID     string          `gorm:"column:user_id;index;not null"`
	PLWDID     string          `gorm:"column:plwd_id"`
	Kind       string          `gorm:"column:kind;not null"`
	Title      string          `gorm:"column:title"`
	Body       string          `gorm:"column:body"`
	Data       json.RawMessage `gorm:"column:data;type:jsonb"`
	Status     string          `gorm:"column:status;index;not null;default:pending"`
	RetryCount int             `gorm:"column:retry_count;not null;default:0"`
	LastError  string          `gorm:"column:last_error"`
	EventID    string          `gorm:"column:event_id;uniqueIndex"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at"`
	SentAt     *time.Time      `gorm:"column:sent_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
