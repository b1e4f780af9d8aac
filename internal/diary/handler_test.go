package diary_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi"
	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	"github.com/imec-int/monument-plwd-sub001/internal/auth"
	"github.com/imec-int/monument-plwd-sub001/internal/diary"
	"github.com/imec-int/monument-plwd-sub001/internal/plwd"
	"github.com/imec-int/monument-plwd-sub001/internal/session"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type upstreamCall struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	TraceID       string
	Body          string
}

type fakeDiary struct {
	mu     sync.Mutex
	calls  []upstreamCall
	status int
	body   string
}

func (f *fakeDiary) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, upstreamCall{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		TraceID:       r.Header.Get("X-Trace-ID"),
		Body:          string(raw),
	})
	status, body := f.status, f.body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeDiary) recorded() []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstreamCall(nil), f.calls...)
}

var _ = Describe("Diary proxy", func() {
	var (
		upstream *fakeDiary
		server   *httptest.Server
		router   *chi.Mux
		grants   []string
	)

	BeforeEach(func() {
		upstream = &fakeDiary{status: http.StatusOK, body: `{"items":[]}`}
		server = httptest.NewServer(upstream)
		grants = []string{access.TokenLocationWhenAssigned, access.TokenCalendarRead, access.TokenCarecircleNever}

		lg := slog.New(slog.NewTextHandler(io.Discard, nil))
		base := transport.NewBaseHandler(lg)
		client, err := diary.NewClient(diary.Config{BaseURL: server.URL, ForwardTraceID: true}, lg)
		Expect(err).NotTo(HaveOccurred())
		handler := diary.NewHandler(base, client, session.NewAuthorizer(base, lg))

		fakeSession := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				u := &user.User{ID: "u-member", Role: access.RoleUser}
				p := &plwd.PLWD{ID: chi.URLParam(r, "plwdId"), CaretakerID: "u-owner"}
				sess := &session.Session{User: u, PLWD: p, Member: true, Grants: grants}
				sess.Decision = access.Decide(sess.Subject())
				sess.Capabilities = sess.Decision.Capabilities

				ctx := auth.WithPrincipal(r.Context(), auth.Principal{Subject: "auth0|member", Token: "user-token"})
				ctx = internal.ContextWithTraceID(ctx, "trace-1")
				ctx = session.WithSession(ctx, sess)
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		}
		router = chi.NewRouter()
		router.Route("/plwd/{plwdId}", func(r chi.Router) {
			r.Use(fakeSession)
			r.HandleFunc("/calendar-events", handler.CalendarEvents)
			r.HandleFunc("/calendar-events/{eventId}", handler.CalendarEvent)
			r.HandleFunc("/locations", handler.Locations)
			r.HandleFunc("/locations/current", handler.CurrentLocation)
			r.HandleFunc("/external-contacts", handler.ExternalContacts)
		})
	})

	AfterEach(func() {
		server.Close()
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	errorCode := func(w *httptest.ResponseRecorder) string {
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
		return body.Error.Code
	}

	It("forwards reads with the caller's token, query and trace id", func() {
		w := do(http.MethodGet, "/plwd/p-1/calendar-events?from=2024-01-01", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"items":[]}`))

		calls := upstream.recorded()
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].Path).To(Equal("/plwd/p-1/calendar-events"))
		Expect(calls[0].Query).To(Equal("from=2024-01-01"))
		Expect(calls[0].Authorization).To(Equal("Bearer user-token"))
		Expect(calls[0].TraceID).To(Equal("trace-1"))
	})

	It("denies writes without the manage grant and never calls upstream", func() {
		w := do(http.MethodPost, "/plwd/p-1/calendar-events", `{"title":"Doctor"}`)
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(errorCode(w)).To(Equal(string(internal.ErrCodeInsufficientPermissions)))
		Expect(upstream.recorded()).To(BeEmpty())
	})

	It("forwards writes when calendar is managed", func() {
		grants = []string{access.TokenCalendarManage}
		upstream.status = http.StatusCreated
		upstream.body = `{"id":"e-1"}`

		w := do(http.MethodPost, "/plwd/p-1/calendar-events", `{"title":"Doctor"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(upstream.recorded()[0].Body).To(MatchJSON(`{"title":"Doctor"}`))

		upstream.status = http.StatusNoContent
		upstream.body = ""
		w = do(http.MethodDelete, "/plwd/p-1/calendar-events/e-1", "")
		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(upstream.recorded()[1].Method).To(Equal(http.MethodDelete))
		Expect(upstream.recorded()[1].Path).To(Equal("/plwd/p-1/calendar-events/e-1"))
	})

	DescribeTable("refuses event ids that leave their path segment",
		func(id string) {
			grants = []string{access.TokenCalendarManage}
			w := do(http.MethodDelete, "/plwd/p-1/calendar-events/"+id, "")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(errorCode(w)).To(Equal(string(internal.ErrCodeInvalidPath)))
			Expect(upstream.recorded()).To(BeEmpty())
		},
		Entry("encoded traversal to another plwd", "..%2f..%2fp-2"),
		Entry("upper case encoding", "..%2F..%2Fp-2"),
		Entry("encoded dot dot", "%2e%2e"),
		Entry("single dot", "."),
		Entry("backslash", "..%5cp-2"),
	)

	It("escapes event ids for the upstream path", func() {
		grants = []string{access.TokenCalendarManage}
		upstream.status = http.StatusNoContent
		upstream.body = ""

		w := do(http.MethodDelete, "/plwd/p-1/calendar-events/e%201", "")
		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(upstream.recorded()[0].Path).To(Equal("/plwd/p-1/calendar-events/e 1"))
	})

	It("rejects request bodies over the limit instead of truncating them", func() {
		grants = []string{access.TokenCalendarManage}
		body := `{"notes":"` + strings.Repeat("a", 1<<20) + `"}`

		w := do(http.MethodPost, "/plwd/p-1/calendar-events", body)
		Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))
		Expect(errorCode(w)).To(Equal(string(internal.ErrCodeBodyTooLarge)))
		Expect(upstream.recorded()).To(BeEmpty())
	})

	It("turns an oversized upstream answer into 502", func() {
		grants = []string{access.TokenLocationWhenAssigned}
		upstream.body = `{"items":"` + strings.Repeat("x", 4<<20) + `"}`

		w := do(http.MethodGet, "/plwd/p-1/locations", "")
		Expect(w.Code).To(Equal(http.StatusBadGateway))
		Expect(errorCode(w)).To(Equal(string(internal.ErrCodeUpstreamError)))
	})

	It("rejects a body that is not JSON", func() {
		grants = []string{access.TokenCalendarManage}
		w := do(http.MethodPost, "/plwd/p-1/calendar-events", `title=Doctor`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(upstream.recorded()).To(BeEmpty())
	})

	It("answers unsupported methods with 405 and an Allow header", func() {
		w := do(http.MethodPut, "/plwd/p-1/calendar-events", "")
		Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
		Expect(w.Header().Get("Allow")).To(Equal("GET, POST"))

		w = do(http.MethodPost, "/plwd/p-1/locations/current", "")
		Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
		Expect(w.Header().Get("Allow")).To(Equal("GET"))
		Expect(upstream.recorded()).To(BeEmpty())
	})

	It("gates locations on the location grant", func() {
		Expect(do(http.MethodGet, "/plwd/p-1/locations/current", "").Code).To(Equal(http.StatusOK))

		grants = []string{access.TokenCalendarRead}
		Expect(do(http.MethodGet, "/plwd/p-1/locations", "").Code).To(Equal(http.StatusForbidden))
	})

	It("gates external contacts on carecircle access", func() {
		Expect(do(http.MethodGet, "/plwd/p-1/external-contacts", "").Code).To(Equal(http.StatusForbidden))

		grants = []string{access.TokenCarecircleRead}
		Expect(do(http.MethodGet, "/plwd/p-1/external-contacts", "").Code).To(Equal(http.StatusOK))
	})

	It("passes upstream 4xx statuses through", func() {
		upstream.status = http.StatusNotFound
		upstream.body = `{"message":"no such event"}`

		w := do(http.MethodGet, "/plwd/p-1/calendar-events", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(errorCode(w)).To(Equal(string(internal.ErrCodeUpstreamError)))
	})

	It("turns upstream 5xx into 502", func() {
		upstream.status = http.StatusInternalServerError

		w := do(http.MethodGet, "/plwd/p-1/calendar-events", "")
		Expect(w.Code).To(Equal(http.StatusBadGateway))
	})

	It("turns an unreachable upstream into 502", func() {
		server.Close()

		w := do(http.MethodGet, "/plwd/p-1/calendar-events", "")
		Expect(w.Code).To(Equal(http.StatusBadGateway))
	})
})

var _ = Describe("Client", func() {
	It("rejects an invalid base url", func() {
		_, err := diary.NewClient(diary.Config{BaseURL: "not a url"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		Expect(err).To(HaveOccurred())
	})

	It("posts JSON with the service token", func() {
		var gotAuth string
		var gotBody map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"n-1"}`))
		}))
		defer srv.Close()

		client, err := diary.NewClient(diary.Config{BaseURL: srv.URL, APIToken: "svc"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		Expect(err).NotTo(HaveOccurred())

		var out struct {
			ID string `json:"id"`
		}
		Expect(client.PostJSON(context.Background(), "/notifications", map[string]string{"title": "hi"}, &out)).To(Succeed())
		Expect(out.ID).To(Equal("n-1"))
		Expect(gotAuth).To(Equal("Bearer svc"))
		Expect(gotBody).To(HaveKeyWithValue("title", "hi"))
	})

	It("returns a typed error for non-2xx answers", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`bad`))
		}))
		defer srv.Close()

		client, err := diary.NewClient(diary.Config{BaseURL: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		Expect(err).NotTo(HaveOccurred())

		err = client.PostJSON(context.Background(), "/notifications", map[string]string{}, nil)
		var httpErr *diary.HTTPError
		Expect(err).To(BeAssignableToTypeOf(httpErr))
		Expect(err.(*diary.HTTPError).StatusCode).To(Equal(http.StatusUnprocessableEntity))
		Expect(diary.AsAppError(err).StatusCode).To(Equal(http.StatusUnprocessableEntity))
	})
})
