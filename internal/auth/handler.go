package auth

import (
	"net/http"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
	"github.com/imec-int/monument-plwd-sub001/pkg/logger"
)

// Handler authenticates requests. It owns no routes of its own.
type Handler struct {
	*transport.BaseHandler
	Validator TokenValidator
}

func NewHandler(validator TokenValidator) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Validator:   validator,
	}
}

// AuthMiddleware requires a valid bearer token and stores the caller's
// Principal on the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := h.authenticate(r)
		if err != nil {
			h.HandleError(w, err)
			return
		}
		ctx := WithPrincipal(r.Context(), principal)
		ctx = logger.With(ctx, "subject", principal.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) authenticate(r *http.Request) (Principal, error) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		return Principal{}, internal.ErrMissingToken
	}
	claims, err := h.Validator.ValidateToken(token)
	if err != nil {
		h.Logger.Warn("token validation failed", "error", err, "path", r.URL.Path)
		return Principal{}, err
	}
	return Principal{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Token:         token,
	}, nil
}
