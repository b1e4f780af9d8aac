package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	notificationDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/notification"
	"github.com/imec-int/monument-plwd-sub001/internal/core/events"
)

type RepositoryAPI interface {
	// Create ignores a notification whose event id is already stored.
	Create(ctx context.Context, n *notificationDatamodel.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*notificationDatamodel.Notification, error)
	ListPending(ctx context.Context, limit int) ([]*notificationDatamodel.Notification, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string, final bool) error
}

const defaultListLimit = 50

// Service turns carecircle events into notifications for the affected user.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]*Notification, error) {
	rows, err := s.repo.ListByUser(ctx, userID, defaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make([]*Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

func (s *Service) HandleMemberEvent(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.MemberEvent)
	if !ok {
		s.logger.Error("invalid event type for member event handler", "event_type", event.EventType())
		return fmt.Errorf("expected MemberEvent, got %T", event)
	}

	title, body := describe(e)
	data, err := json.Marshal(map[string]interface{}{
		"membershipId": e.MembershipID,
		"plwdId":       e.PLWDID,
		"affiliation":  e.Affiliation,
		"permissions":  e.Permissions,
		"newUser":      e.NewUser,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}

	now := time.Now().UTC()
	n := &Notification{
		ID:        uuid.NewString(),
		UserID:    e.UserID,
		PLWDID:    e.PLWDID,
		Kind:      e.EventType(),
		Title:     title,
		Body:      body,
		Data:      data,
		Status:    StatusPending,
		EventID:   e.EventID(),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, ToDataModel(n)); err != nil {
		s.logger.Error("failed to store notification", "error", err, "event_id", e.EventID())
		return fmt.Errorf("failed to store notification: %w", err)
	}

	s.logger.Info("notification queued", "notification_id", n.ID, "user_id", n.UserID, "kind", n.Kind)
	return nil
}

func describe(e *events.MemberEvent) (title, body string) {
	name := e.PLWDName
	if name == "" {
		name = "a person you care for"
	}
	switch e.EventType() {
	case events.EventTypeMemberInvited:
		return "You joined a carecircle",
			fmt.Sprintf("You were added to the carecircle of %s as %s.", name, e.Affiliation)
	case events.EventTypeMemberRemoved:
		return "You left a carecircle",
			fmt.Sprintf("You were removed from the carecircle of %s.", name)
	default:
		return "Carecircle access changed",
			fmt.Sprintf("Your access to the carecircle of %s was updated.", name)
	}
}

func (s *Service) RegisterEventHandlers(bus *events.EventBus) {
	types := []string{
		events.EventTypeMemberInvited,
		events.EventTypeMemberUpdated,
		events.EventTypeMemberRemoved,
	}
	for _, t := range types {
		bus.Subscribe(t, s.HandleMemberEvent)
	}
	s.logger.Info("notification event handlers registered", "handlers", types)
}
