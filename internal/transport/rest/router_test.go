package rest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	"github.com/imec-int/monument-plwd-sub001/internal/auth"
	"github.com/imec-int/monument-plwd-sub001/internal/carecircle"
	"github.com/imec-int/monument-plwd-sub001/internal/diary"
	"github.com/imec-int/monument-plwd-sub001/internal/notification"
	"github.com/imec-int/monument-plwd-sub001/internal/plwd"
	"github.com/imec-int/monument-plwd-sub001/internal/session"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const specPath = "../../../api/openapi.yml"

func skeletonRouter() *chi.Mux {
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := transport.NewBaseHandler(lg)

	router := chi.NewRouter()
	RegisterAllRoutes(router, Handlers{
		Base:          base,
		Health:        NewHealthHandler(nil, nil),
		Auth:          auth.NewHandler(nil),
		Users:         user.NewHandler(nil),
		PLWD:          plwd.NewHandler(base, nil),
		Sessions:      session.NewHandler(base),
		Carecircle:    carecircle.NewHandler(base, nil),
		Diary:         diary.NewHandler(base, nil, nil),
		Notifications: notification.NewHandler(base, nil),
		Resolver:      session.NewResolver(nil, nil, nil, lg),
		Authorizer:    session.NewAuthorizer(base, lg),
	}, Options{Logger: lg, OpenAPIPath: specPath})
	return router
}

func normalizeRoute(route string) string {
	route = strings.TrimPrefix(route, APIPrefix)
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	return route
}

var _ = Describe("OpenAPI document", func() {
	It("is a valid OpenAPI 3 document", func() {
		doc, err := LoadAPISpec(context.Background(), specPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Paths.Len()).To(BeNumerically(">", 10))
	})

	It("fails for a missing file", func() {
		_, err := LoadAPISpec(context.Background(), "does-not-exist.yml")
		Expect(err).To(HaveOccurred())
	})

	It("documents exactly the routes the router serves", func() {
		doc, err := LoadAPISpec(context.Background(), specPath)
		Expect(err).NotTo(HaveOccurred())

		served := map[string]bool{}
		Expect(chi.Walk(skeletonRouter(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			if strings.HasPrefix(route, APIPrefix) {
				served[method+" "+normalizeRoute(route)] = true
			}
			return nil
		})).To(Succeed())

		documented := map[string]bool{}
		for path, item := range doc.Paths.Map() {
			for method := range item.Operations() {
				documented[method+" "+path] = true
			}
		}

		for op := range documented {
			Expect(served).To(HaveKey(op), "documented but not served: %s", op)
		}
		for op := range served {
			method := strings.SplitN(op, " ", 2)[0]
			// proxy routes accept every method and answer 405 themselves
			if method != http.MethodGet && method != http.MethodPost && method != http.MethodPatch && method != http.MethodDelete {
				continue
			}
			if strings.Contains(op, "/calendar-events") || strings.Contains(op, "/locations") || strings.Contains(op, "/external-contacts") {
				continue
			}
			Expect(documented).To(HaveKey(op), "served but not documented: %s", op)
		}
	})
})

var _ = Describe("Router", func() {
	var router *chi.Mux

	BeforeEach(func() {
		router = skeletonRouter()
	})

	It("answers ping without a token", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("X-Trace-ID")).NotTo(BeEmpty())
	})

	It("serves the OpenAPI document", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yml", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("openapi: 3.0.3"))
	})

	It("requires a bearer token on protected routes", func() {
		for _, path := range []string{"/api/v1/users/me", "/api/v1/plwd", "/api/v1/plwd/p-1/calendar-events"} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			Expect(w.Code).To(Equal(http.StatusUnauthorized), path)
			Expect(w.Body.String()).To(ContainSubstring("MISSING_TOKEN"))
		}
	})
})
