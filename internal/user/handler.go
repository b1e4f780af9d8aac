package user

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/auth"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
	"github.com/imec-int/monument-plwd-sub001/pkg/logger"
)

type ServiceAPI interface {
	GetByAuth0ID(ctx context.Context, subject string) (*User, error)
	GetProfile(ctx context.Context, u *User) (*MeResponse, error)
	Onboard(ctx context.Context, id Identity, dto OnboardDTO) (*User, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// CurrentUser loads the onboarded user for the authenticated principal.
// Callers that have not onboarded yet get 401 USER_NOT_FOUND.
func (h *Handler) CurrentUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			h.WriteAppError(w, internal.ErrMissingToken)
			return
		}

		u, err := h.Service.GetByAuth0ID(r.Context(), principal.Subject)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				h.WriteAppError(w, internal.ErrUserNotFound)
				return
			}
			h.HandleError(w, err)
			return
		}

		ctx := WithUser(r.Context(), u)
		ctx = logger.With(ctx, "user_id", u.ID, "role", u.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	u, ok := FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUserNotFound)
		return
	}

	resp, err := h.Service.GetProfile(r.Context(), u)
	if err != nil {
		logger.From(r.Context()).Error("GetCurrentUser: failed to load profile", "error", err)
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// Onboard handles POST /users/me
func (h *Handler) Onboard(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrMissingToken)
		return
	}

	var dto OnboardDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleError(w, err)
		return
	}
	if dto.Email == "" {
		dto.Email = principal.Email
	}

	u, err := h.Service.Onboard(r.Context(), Identity{
		Subject:       principal.Subject,
		Email:         principal.Email,
		EmailVerified: principal.EmailVerified,
	}, dto)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}
