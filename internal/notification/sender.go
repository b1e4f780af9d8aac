package notification

import (
	"context"
	"encoding/json"
)

type JSONPoster interface {
	PostJSON(ctx context.Context, path string, in, out any) error
}

// DiarySender delivers notifications through the diary service, which owns
// push and e-mail delivery.
type DiarySender struct {
	Client JSONPoster
	Path   string
}

func NewDiarySender(client JSONPoster) *DiarySender {
	return &DiarySender{Client: client, Path: "/notifications"}
}

type deliveryPayload struct {
	ID     string          `json:"id"`
	UserID string          `json:"userId"`
	PLWDID string          `json:"plwdId,omitempty"`
	Kind   string          `json:"kind"`
	Title  string          `json:"title"`
	Body   string          `json:"body"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func (s *DiarySender) Send(ctx context.Context, n *Notification) error {
	return s.Client.PostJSON(ctx, s.Path, deliveryPayload{
		ID:     n.ID,
		UserID: n.UserID,
		PLWDID: n.PLWDID,
		Kind:   n.Kind,
		Title:  n.Title,
		Body:   n.Body,
		Data:   n.Data,
	}, nil)
}
