package plwd

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, id string) (*PLWD, error)
	ListForUser(ctx context.Context, actor Actor) ([]*PLWD, error)
	Create(ctx context.Context, actor Actor, dto CreatePLWDDTO) (*PLWD, error)
	Update(ctx context.Context, actor Actor, id string, dto UpdatePLWDDTO) (*PLWD, error)
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

func actorFrom(r *http.Request) (Actor, bool) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		return Actor{}, false
	}
	return Actor{UserID: u.ID, Role: u.Role}, true
}

// ListPLWDs handles GET /plwd
func (h *Handler) ListPLWDs(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		h.WriteAppError(w, internal.ErrUserNotFound)
		return
	}

	plwds, err := h.Service.ListForUser(r.Context(), actor)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, PLWDListResponse{PLWDs: plwds})
}

// CreatePLWD handles POST /plwd
func (h *Handler) CreatePLWD(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		h.WriteAppError(w, internal.ErrUserNotFound)
		return
	}

	var dto CreatePLWDDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleError(w, err)
		return
	}

	p, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, p)
}

// GetPLWD handles GET /plwd/{plwdId}. Carecircle membership is enforced by
// the session middleware mounted on the route.
func (h *Handler) GetPLWD(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetByID(r.Context(), chi.URLParam(r, "plwdId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.WriteAppError(w, internal.ErrPLWDNotFound)
			return
		}
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

// UpdatePLWD handles PATCH /plwd/{plwdId}
func (h *Handler) UpdatePLWD(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		h.WriteAppError(w, internal.ErrUserNotFound)
		return
	}

	var dto UpdatePLWDDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleError(w, err)
		return
	}

	p, err := h.Service.Update(r.Context(), actor, chi.URLParam(r, "plwdId"), dto)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}
