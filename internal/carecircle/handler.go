package carecircle

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/session"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
)

type ServiceAPI interface {
	ListMembers(ctx context.Context, plwdID string) ([]*Member, error)
	Invite(ctx context.Context, sess *session.Session, dto InviteMemberDTO) (*Member, error)
	UpdateMember(ctx context.Context, sess *session.Session, memberID string, dto UpdateMemberDTO) (*Member, error)
	RemoveMember(ctx context.Context, sess *session.Session, memberID string) error
}

// Handler serves /plwd/{plwdId}/carecircle-members. Capability checks are
// done by the guards mounted on the routes.
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

// ListMembers handles GET /plwd/{plwdId}/carecircle-members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUserNotFound)
		return
	}

	members, err := h.Service.ListMembers(r.Context(), sess.PLWD.ID)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MembersResponse{Members: members})
}

// InviteMember handles POST /plwd/{plwdId}/carecircle-members
func (h *Handler) InviteMember(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUserNotFound)
		return
	}

	var dto InviteMemberDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleError(w, err)
		return
	}

	member, err := h.Service.Invite(r.Context(), sess, dto)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, member)
}

// UpdateMember handles PATCH /plwd/{plwdId}/carecircle-members/{memberId}
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUserNotFound)
		return
	}

	var dto UpdateMemberDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleError(w, err)
		return
	}

	member, err := h.Service.UpdateMember(r.Context(), sess, chi.URLParam(r, "memberId"), dto)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, member)
}

// RemoveMember handles DELETE /plwd/{plwdId}/carecircle-members/{memberId}
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUserNotFound)
		return
	}

	if err := h.Service.RemoveMember(r.Context(), sess, chi.URLParam(r, "memberId")); err != nil {
		h.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
