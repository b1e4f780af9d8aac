package diary

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi"
	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	"github.com/imec-int/monument-plwd-sub001/internal/auth"
	"github.com/imec-int/monument-plwd-sub001/internal/session"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
)

const maxProxyBody = 1 << 20

type Upstream interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Guard writes the denial itself and returns false when the session lacks
// a capability. session.Authorizer implements it.
type Guard interface {
	Allowed(w http.ResponseWriter, r *http.Request, caps ...access.Capability) bool
}

type methodRule struct {
	method     string
	capability access.Capability
}

// Handler proxies the diary routes of a PLWD. Each route checks its method
// and the capability that method needs before anything is sent upstream.
type Handler struct {
	*transport.BaseHandler
	Upstream Upstream
	Guard    Guard
}

func NewHandler(baseHandler *transport.BaseHandler, upstream Upstream, guard Guard) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Upstream:    upstream,
		Guard:       guard,
	}
}

// CalendarEvents handles /plwd/{plwdId}/calendar-events
func (h *Handler) CalendarEvents(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, "calendar-events", []methodRule{
		{http.MethodGet, access.AccessCalendar},
		{http.MethodPost, access.ManageCalendar},
	})
}

// CalendarEvent handles /plwd/{plwdId}/calendar-events/{eventId}
func (h *Handler) CalendarEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathSegment(chi.URLParam(r, "eventId"))
	if !ok {
		h.WriteAppError(w, internal.NewValidationError("Invalid event id", internal.ErrCodeInvalidPath))
		return
	}
	h.proxy(w, r, "calendar-events/"+eventID, []methodRule{
		{http.MethodPatch, access.ManageCalendar},
		{http.MethodDelete, access.ManageCalendar},
	})
}

// Locations handles /plwd/{plwdId}/locations
func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, "locations", []methodRule{
		{http.MethodGet, access.AccessLocation},
	})
}

// CurrentLocation handles /plwd/{plwdId}/locations/current
func (h *Handler) CurrentLocation(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, "locations/current", []methodRule{
		{http.MethodGet, access.AccessLocation},
	})
}

// ExternalContacts handles /plwd/{plwdId}/external-contacts
func (h *Handler) ExternalContacts(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, "external-contacts", []methodRule{
		{http.MethodGet, access.AccessCarecircle},
	})
}

func (h *Handler) proxy(w http.ResponseWriter, r *http.Request, subpath string, rules []methodRule) {
	rule, ok := matchMethod(r.Method, rules)
	if !ok {
		w.Header().Set("Allow", allowHeader(rules))
		h.WriteAppError(w, internal.NewMethodNotAllowedError(r.Method))
		return
	}

	if !h.Guard.Allowed(w, r, rule.capability) {
		return
	}

	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUserNotFound)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())

	var body []byte
	if r.Method == http.MethodPost || r.Method == http.MethodPatch {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody+1))
		if err != nil {
			h.HandleError(w, internal.NewValidationError("Failed to read request body", internal.ErrCodeInvalidBody))
			return
		}
		if len(raw) > maxProxyBody {
			h.WriteAppError(w, internal.NewPayloadTooLargeError("Request body is too large"))
			return
		}
		if len(raw) > 0 && !json.Valid(raw) {
			h.HandleError(w, internal.NewValidationError("Request body is not valid JSON", internal.ErrCodeInvalidBody))
			return
		}
		body = raw
	}

	resp, err := h.Upstream.Do(r.Context(), Request{
		Method: r.Method,
		Path:   "/plwd/" + sess.PLWD.ID + "/" + subpath,
		Query:  r.URL.Query(),
		Token:  principal.Token,
		Body:   body,
	})
	if err != nil {
		h.WriteAppError(w, AsAppError(err))
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	if resp.StatusCode == http.StatusNoContent || len(resp.Body) == 0 {
		w.WriteHeader(resp.StatusCode)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		h.Logger.Error("failed to write proxied response", "error", err)
	}
}

// pathSegment unescapes a route parameter and escapes it again for the
// upstream path. Values that could leave their segment are refused.
func pathSegment(raw string) (string, bool) {
	v, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	if v == "" || v == "." || v == ".." || strings.ContainsAny(v, "/\\") {
		return "", false
	}
	return url.PathEscape(v), true
}

func matchMethod(method string, rules []methodRule) (methodRule, bool) {
	for _, rule := range rules {
		if rule.method == method {
			return rule, true
		}
	}
	return methodRule{}, false
}

func allowHeader(rules []methodRule) string {
	methods := make([]string, 0, len(rules))
	for _, rule := range rules {
		methods = append(methods, rule.method)
	}
	return strings.Join(methods, ", ")
}
