package rest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	"github.com/golang-jwt/jwt/v5"
	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/auth"
	"github.com/imec-int/monument-plwd-sub001/internal/carecircle"
	carecirclePostgres "github.com/imec-int/monument-plwd-sub001/internal/carecircle/postgres"
	ccDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/carecircle"
	plwdDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/plwd"
	userDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/user"
	"github.com/imec-int/monument-plwd-sub001/internal/diary"
	"github.com/imec-int/monument-plwd-sub001/internal/plwd"
	plwdPostgres "github.com/imec-int/monument-plwd-sub001/internal/plwd/postgres"
	"github.com/imec-int/monument-plwd-sub001/internal/session"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
	userPostgres "github.com/imec-int/monument-plwd-sub001/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// subjectValidator accepts "<subject>|<email>" as a token.
type subjectValidator struct{}

func (subjectValidator) ValidateToken(token string) (*auth.Claims, error) {
	i := strings.LastIndex(token, "|")
	if i <= 0 {
		return nil, internal.ErrInvalidToken
	}
	return &auth.Claims{Email: token[i+1:], EmailVerified: true, RegisteredClaims: jwt.RegisteredClaims{Subject: token[:i]}}, nil
}

var _ = Describe("Carecircle flow", func() {
	var (
		db       *gorm.DB
		router   *chi.Mux
		upstream *httptest.Server
		hits     int
	)

	BeforeEach(func() {
		var err error
		lg := slog.New(slog.NewTextHandler(io.Discard, nil))

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&userDatamodel.User{}, &plwdDatamodel.PLWD{}, &ccDatamodel.Membership{})).To(Succeed())

		hits = 0
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
		}))

		base := transport.NewBaseHandler(lg)
		users := user.NewService(userPostgres.NewUserRepository(db), lg)
		circle := carecircle.NewService(carecirclePostgres.NewCarecircleRepository(db), users, nil, lg)
		users.SetMembershipLister(circle)
		plwds := plwd.NewService(plwdPostgres.NewPLWDRepository(db), circle, lg)
		client, err := diary.NewClient(diary.Config{BaseURL: upstream.URL}, lg)
		Expect(err).NotTo(HaveOccurred())
		authz := session.NewAuthorizer(base, lg)

		router = chi.NewRouter()
		RegisterAllRoutes(router, Handlers{
			Base:       base,
			Auth:       auth.NewHandler(subjectValidator{}),
			Users:      user.NewHandler(users),
			PLWD:       plwd.NewHandler(base, plwds),
			Sessions:   session.NewHandler(base),
			Carecircle: carecircle.NewHandler(base, circle),
			Diary:      diary.NewHandler(base, client, authz),
			Resolver:   session.NewResolver(users, plwds, circle, lg),
			Authorizer: authz,
		}, Options{Logger: lg, OpenAPIPath: specPath})
	})

	AfterEach(func() {
		upstream.Close()
	})

	call := func(token, method, path, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder, v any) {
		ExpectWithOffset(1, json.Unmarshal(w.Body.Bytes(), v)).To(Succeed())
	}

	const (
		owner    = "auth0|owner|owner@example.com"
		member   = "auth0|member|jan@example.com"
		outsider = "auth0|outsider|eve@example.com"
	)

	It("enforces carecircle grants end to end", func() {
		Expect(call(owner, http.MethodPost, "/api/v1/users/me", `{"firstName":"Anna","lastName":"Peeters"}`).Code).To(Equal(http.StatusOK))
		Expect(db.Model(&userDatamodel.User{}).Where("auth0_id = ?", "auth0|owner").Update("role", "primary_caretaker").Error).To(Succeed())

		w := call(owner, http.MethodPost, "/api/v1/plwd", `{"firstName":"Maria","lastName":"Peeters"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var p plwd.PLWD
		decode(w, &p)
		prefix := "/api/v1/plwd/" + p.ID

		w = call(owner, http.MethodPost, prefix+"/carecircle-members",
			`{"email":"jan@example.com","affiliation":"Family","permissions":["read:calendar"]}`)
		Expect(w.Code).To(Equal(http.StatusCreated))

		// invitee claims the placeholder at onboarding
		Expect(call(member, http.MethodPost, "/api/v1/users/me", `{"firstName":"Jan","lastName":"Janssens"}`).Code).To(Equal(http.StatusOK))

		w = call(member, http.MethodGet, prefix+"/permissions", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var perms session.PermissionsResponse
		decode(w, &perms)
		Expect(perms.Capabilities.CanAccessCalendar).To(BeTrue())
		Expect(perms.Capabilities.CanManageCalendar).To(BeFalse())
		Expect(perms.Capabilities.CanAccessLocation).To(BeTrue())
		Expect(perms.Capabilities.CanAccessCarecircle).To(BeFalse())

		Expect(call(member, http.MethodGet, prefix+"/calendar-events", "").Code).To(Equal(http.StatusOK))
		Expect(call(member, http.MethodPost, prefix+"/calendar-events", `{}`).Code).To(Equal(http.StatusForbidden))
		Expect(call(member, http.MethodGet, prefix+"/carecircle-members", "").Code).To(Equal(http.StatusForbidden))
		Expect(call(member, http.MethodGet, prefix, "").Code).To(Equal(http.StatusOK))
		Expect(call(member, http.MethodPatch, prefix, `{"firstName":"X"}`).Code).To(Equal(http.StatusForbidden))
		Expect(hits).To(Equal(1))

		w = call(member, http.MethodGet, "/api/v1/plwd", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var list plwd.PLWDListResponse
		decode(w, &list)
		Expect(list.PLWDs).To(HaveLen(1))

		Expect(call(outsider, http.MethodPost, "/api/v1/users/me", `{"firstName":"Eve","lastName":"X"}`).Code).To(Equal(http.StatusOK))
		w = call(outsider, http.MethodGet, prefix+"/calendar-events", "")
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeNotInCarecircle)))

		w = call(owner, http.MethodGet, prefix+"/carecircle-members", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var members carecircle.MembersResponse
		decode(w, &members)
		Expect(members.Members).To(HaveLen(1))
		Expect(members.Members[0].User.FirstName).To(Equal("Jan"))
	})

	It("rejects users that have not onboarded", func() {
		w := call(member, http.MethodGet, "/api/v1/users/me", "")
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeUserNotFound)))
	})

	It("keeps plain users from creating PLWDs", func() {
		Expect(call(member, http.MethodPost, "/api/v1/users/me", `{"firstName":"Jan","lastName":"Janssens"}`).Code).To(Equal(http.StatusOK))
		Expect(call(member, http.MethodPost, "/api/v1/plwd", `{"firstName":"Maria"}`).Code).To(Equal(http.StatusForbidden))
	})
})
