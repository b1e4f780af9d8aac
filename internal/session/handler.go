package session

import (
	"net/http"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
)

type PermissionsResponse struct {
	PLWDID       string              `json:"plwdId"`
	UserID       string              `json:"userId"`
	Role         access.Role         `json:"role"`
	Basis        string              `json:"basis"`
	Grants       []string            `json:"grants"`
	Unknown      []string            `json:"unknownGrants,omitempty"`
	Capabilities access.Capabilities `json:"permissions"`
}

type Handler struct {
	*transport.BaseHandler
}

func NewHandler(baseHandler *transport.BaseHandler) *Handler {
	return &Handler{BaseHandler: baseHandler}
}

// GetPermissions handles GET /plwd/{plwdId}/permissions
func (h *Handler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	s, ok := FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUserNotFound)
		return
	}

	grants := s.Grants
	if grants == nil {
		grants = []string{}
	}
	h.WriteJSON(w, http.StatusOK, PermissionsResponse{
		PLWDID:       s.PLWD.ID,
		UserID:       s.User.ID,
		Role:         s.User.Role,
		Basis:        s.Decision.Basis.String(),
		Grants:       grants,
		Unknown:      s.Decision.Grants.Unknown,
		Capabilities: s.Capabilities,
	})
}
