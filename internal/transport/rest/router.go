package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	"github.com/imec-int/monument-plwd-sub001/internal/auth"
	"github.com/imec-int/monument-plwd-sub001/internal/carecircle"
	"github.com/imec-int/monument-plwd-sub001/internal/diary"
	"github.com/imec-int/monument-plwd-sub001/internal/notification"
	"github.com/imec-int/monument-plwd-sub001/internal/plwd"
	"github.com/imec-int/monument-plwd-sub001/internal/session"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
	"github.com/imec-int/monument-plwd-sub001/internal/transport/middleware"
	"github.com/imec-int/monument-plwd-sub001/internal/transport/swagger"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
)

const APIPrefix = "/api/v1"

// Handlers groups everything the router mounts. Nil handlers leave their
// routes out.
type Handlers struct {
	Base          *transport.BaseHandler
	Health        *HealthHandler
	Auth          *auth.Handler
	Users         *user.Handler
	PLWD          *plwd.Handler
	Sessions      *session.Handler
	Carecircle    *carecircle.Handler
	Diary         *diary.Handler
	Notifications *notification.Handler

	Resolver    *session.Resolver
	Authorizer  *session.Authorizer
	RateLimiter *middleware.SubjectRateLimiter
}

type Options struct {
	AllowedOrigins []string
	OpenAPIPath    string
	Logger         *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options) {
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(opts.Logger))
	router.Use(middleware.LoggingMiddleware(opts.Logger))

	openAPIPath := opts.OpenAPIPath
	if openAPIPath == "" {
		openAPIPath = DefaultOpenAPIPath
	}
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, openAPIPath)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route(APIPrefix, func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		if h.Auth == nil || h.Users == nil {
			return
		}

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)
			pr.Use(h.RateLimiter.Middleware)

			// onboarding only needs a valid token
			pr.Post("/users/me", h.Users.Onboard)

			pr.Group(func(ur chi.Router) {
				ur.Use(h.Users.CurrentUser)

				ur.Get("/users/me", h.Users.GetCurrentUser)
				if h.Notifications != nil {
					ur.Get("/users/me/notifications", h.Notifications.ListNotifications)
				}

				if h.PLWD == nil || h.Resolver == nil || h.Authorizer == nil {
					return
				}
				registerPLWDRoutes(ur, h)
			})
		})
	})
}

func registerPLWDRoutes(r chi.Router, h Handlers) {
	r.Get("/plwd", h.PLWD.ListPLWDs)
	r.With(middleware.RequireRole(h.Base, access.RolePrimaryCaretaker, access.RoleAdmin)).
		Post("/plwd", h.PLWD.CreatePLWD)

	r.Route("/plwd/{plwdId}", func(pr chi.Router) {
		pr.Use(h.Resolver.Middleware(h.Base))

		pr.Get("/", h.PLWD.GetPLWD)
		pr.Patch("/", h.PLWD.UpdatePLWD)

		if h.Sessions != nil {
			pr.Get("/permissions", h.Sessions.GetPermissions)
		}

		if h.Carecircle != nil {
			pr.With(h.Authorizer.RequireCarecircleView()).Get("/carecircle-members", h.Carecircle.ListMembers)
			pr.Group(func(mr chi.Router) {
				mr.Use(h.Authorizer.RequireCarecircleManage())
				mr.Post("/carecircle-members", h.Carecircle.InviteMember)
				mr.Patch("/carecircle-members/{memberId}", h.Carecircle.UpdateMember)
				mr.Delete("/carecircle-members/{memberId}", h.Carecircle.RemoveMember)
			})
		}

		// method and capability checks happen per request in the diary handler
		if h.Diary != nil {
			pr.HandleFunc("/calendar-events", h.Diary.CalendarEvents)
			pr.HandleFunc("/calendar-events/{eventId}", h.Diary.CalendarEvent)
			pr.HandleFunc("/locations", h.Diary.Locations)
			pr.HandleFunc("/locations/current", h.Diary.CurrentLocation)
			pr.HandleFunc("/external-contacts", h.Diary.ExternalContacts)
		}
	})
}
