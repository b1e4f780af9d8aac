package session

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	"github.com/imec-int/monument-plwd-sub001/internal/auth"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
	"github.com/imec-int/monument-plwd-sub001/pkg/logger"
)

// Middleware resolves the session for the {plwdId} route parameter.
func (r *Resolver) Middleware(base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			plwdID := chi.URLParam(req, "plwdId")

			var (
				s   *Session
				err error
			)
			if u, ok := user.FromContext(ctx); ok {
				s, err = r.ResolveForUser(ctx, u, plwdID)
			} else if principal, ok := auth.PrincipalFromContext(ctx); ok {
				s, err = r.Resolve(ctx, principal.Subject, plwdID)
			} else {
				err = internal.ErrMissingToken
			}
			if err != nil {
				base.HandleError(w, err)
				return
			}

			ctx = WithSession(ctx, s)
			ctx = logger.With(ctx, "plwd_id", s.PLWD.ID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

// Authorizer turns capabilities into route guards.
type Authorizer struct {
	base   *transport.BaseHandler
	logger *slog.Logger
}

func NewAuthorizer(base *transport.BaseHandler, logger *slog.Logger) *Authorizer {
	return &Authorizer{base: base, logger: logger}
}

// Allowed writes the denial itself and returns false when the session lacks
// any of the capabilities.
func (a *Authorizer) Allowed(w http.ResponseWriter, r *http.Request, caps ...access.Capability) bool {
	s, ok := FromContext(r.Context())
	if !ok {
		a.logger.Warn("authorization check failed: session not found in context", "path", r.URL.Path)
		a.base.WriteAppError(w, internal.ErrUserNotFound)
		return false
	}

	for _, c := range caps {
		if !s.Can(c) {
			a.logger.WarnContext(r.Context(), "access denied: insufficient permissions",
				"user_id", s.User.ID,
				"plwd_id", s.PLWD.ID,
				"required_capability", c.String(),
				"basis", s.Decision.Basis.String(),
				"grants", s.Grants)
			a.base.WriteAppError(w, internal.ErrInsufficientPermissions)
			return false
		}
	}
	return true
}

func (a *Authorizer) Require(caps ...access.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Allowed(w, r, caps...) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authorizer) RequireCarecircleView() func(http.Handler) http.Handler {
	return a.Require(access.AccessCarecircle)
}

func (a *Authorizer) RequireCarecircleManage() func(http.Handler) http.Handler {
	return a.Require(access.ManageCarecircle)
}
