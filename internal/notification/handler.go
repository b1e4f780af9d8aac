package notification

import (
	"context"
	"net/http"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
)

type ServiceAPI interface {
	ListForUser(ctx context.Context, userID string) ([]*Notification, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// ListNotifications handles GET /users/me/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUserNotFound)
		return
	}

	list, err := h.Service.ListForUser(r.Context(), u.ID)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ListResponse{Notifications: list})
}
