package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
)

// RequireRole lets the request through when the current user holds one of
// the global roles. It needs user.CurrentUser earlier in the chain.
func RequireRole(base *transport.BaseHandler, roles ...access.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := user.FromContext(r.Context())
			if !ok {
				base.WriteAppError(w, internal.ErrUserNotFound)
				return
			}

			if !slices.Contains(roles, u.Role) {
				slog.Warn("access denied: user lacks required role",
					"user_id", u.ID,
					"required_roles", roles,
					"role", u.Role)
				base.WriteAppError(w, internal.ErrInsufficientPermissions)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
