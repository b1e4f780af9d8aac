package plwd

import (
	"encoding/json"
	"time"
)

type PLWD struct {
	ID          string          `gorm:"column:id;primaryKey"`
	CaretakerID string          `gorm:"column:caretaker_id;index;not null"`
	FirstName   string          `gorm:"column:first_name;not null"`
	LastName    string          `gorm:"column:last_name"`
	Email       string          `gorm:"column:email"`
	Phone       string          `gorm:"column:phone"`
	Address     json.RawMessage `gorm:"column:address;type:jsonb"`
	WatchID     string          `gorm:"column:watch_id"`
	Picture     string          `gorm:"column:picture"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

func (PLWD) TableName() string {
	return "plwd"
}
