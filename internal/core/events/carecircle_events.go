package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeMemberInvited = "carecircle.member_invited"
	EventTypeMemberUpdated = "carecircle.member_updated"
	EventTypeMemberRemoved = "carecircle.member_removed"
)

// MemberEvent describes a change to one carecircle membership.
type MemberEvent struct {
	BaseEvent
	MembershipID string   `json:"membership_id"`
	PLWDID       string   `json:"plwd_id"`
	PLWDName     string   `json:"plwd_name"`
	UserID       string   `json:"user_id"`
	ActorID      string   `json:"actor_id"`
	Affiliation  string   `json:"affiliation"`
	Permissions  []string `json:"permissions"`
	NewUser      bool     `json:"new_user"`
}

// MemberChange carries the fields shared by every membership event.
type MemberChange struct {
	MembershipID string
	PLWDID       string
	PLWDName     string
	UserID       string
	ActorID      string
	Affiliation  string
	Permissions  []string
	NewUser      bool
}

func newMemberEvent(eventType string, c MemberChange) *MemberEvent {
	return &MemberEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"membership_id": c.MembershipID,
				"plwd_id":       c.PLWDID,
				"plwd_name":     c.PLWDName,
				"user_id":       c.UserID,
				"actor_id":      c.ActorID,
				"affiliation":   c.Affiliation,
				"permissions":   c.Permissions,
				"new_user":      c.NewUser,
			},
		},
		MembershipID: c.MembershipID,
		PLWDID:       c.PLWDID,
		PLWDName:     c.PLWDName,
		UserID:       c.UserID,
		ActorID:      c.ActorID,
		Affiliation:  c.Affiliation,
		Permissions:  c.Permissions,
		NewUser:      c.NewUser,
	}
}

func NewMemberInvitedEvent(c MemberChange) *MemberEvent {
	return newMemberEvent(EventTypeMemberInvited, c)
}

func NewMemberUpdatedEvent(c MemberChange) *MemberEvent {
	return newMemberEvent(EventTypeMemberUpdated, c)
}

func NewMemberRemovedEvent(c MemberChange) *MemberEvent {
	return newMemberEvent(EventTypeMemberRemoved, c)
}
