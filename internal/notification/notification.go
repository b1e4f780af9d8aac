package notification

import (
	"encoding/json"
	"time"

	notificationDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/notification"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

type Notification struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	PLWDID     string          `json:"plwdId,omitempty"`
	Kind       string          `json:"kind"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Data       json.RawMessage `json:"data,omitempty"`
	Status     Status          `json:"status"`
	RetryCount int             `json:"retryCount"`
	LastError  string          `json:"lastError,omitempty"`
	EventID    string          `json:"-"`
	CreatedAt  time.Time       `json:"createdAt"`
	SentAt     *time.Time      `json:"sentAt,omitempty"`
}

type ListResponse struct {
	Notifications []*Notification `json:"notifications"`
}

func FromDataModel(n *notificationDatamodel.Notification) *Notification {
	return &Notification{
		ID:         n.ID,
		UserID:     n.UserID,
		PLWDID:     n.PLWDID,
		Kind:       n.Kind,
		Title:      n.Title,
		Body:       n.Body,
		Data:       n.Data,
		Status:     Status(n.Status),
		RetryCount: n.RetryCount,
		LastError:  n.LastError,
		EventID:    n.EventID,
		CreatedAt:  n.CreatedAt,
		SentAt:     n.SentAt,
	}
}

func ToDataModel(n *Notification) *notificationDatamodel.Notification {
	return &notificationDatamodel.Notification{
		ID:         n.ID,
		UserID:     n.UserID,
		PLWDID:     n.PLWDID,
		Kind:       n.Kind,
		Title:      n.Title,
		Body:       n.Body,
		Data:       n.Data,
		Status:     string(n.Status),
		RetryCount: n.RetryCount,
		LastError:  n.LastError,
		EventID:    n.EventID,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.CreatedAt,
		SentAt:     n.SentAt,
	}
}
