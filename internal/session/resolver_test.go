package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	"github.com/imec-int/monument-plwd-sub001/internal/plwd"
	"github.com/imec-int/monument-plwd-sub001/internal/session"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockUsers struct {
	bySubject map[string]*user.User
	err       error
}

func (m *mockUsers) GetByAuth0ID(_ context.Context, subject string) (*user.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.bySubject[subject]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type mockPLWDs struct {
	byID map[string]*plwd.PLWD
}

func (m *mockPLWDs) GetByID(_ context.Context, id string) (*plwd.PLWD, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, plwd.ErrNotFound
	}
	return p, nil
}

type mockMemberships struct {
	grants     map[string][]string
	shouldFail bool
}

func (m *mockMemberships) GrantsFor(_ context.Context, userID, plwdID string) ([]string, bool, error) {
	if m.shouldFail {
		return nil, false, errors.New("db down")
	}
	g, ok := m.grants[userID+"/"+plwdID]
	return g, ok, nil
}

func newFixture() (*mockUsers, *mockPLWDs, *mockMemberships) {
	users := &mockUsers{bySubject: map[string]*user.User{
		"auth0|admin":  {ID: "u-admin", Role: access.RoleAdmin},
		"auth0|owner":  {ID: "u-owner", Role: access.RolePrimaryCaretaker},
		"auth0|member": {ID: "u-member", Role: access.RoleUser},
		"auth0|other":  {ID: "u-other", Role: access.RoleUser},
	}}
	plwds := &mockPLWDs{byID: map[string]*plwd.PLWD{
		"p-1": {ID: "p-1", CaretakerID: "u-owner", FirstName: "Maria"},
	}}
	memberships := &mockMemberships{grants: map[string][]string{
		"u-member/p-1": {access.TokenLocationWhenAssigned, access.TokenCalendarRead, "edit:calendar"},
	}}
	return users, plwds, memberships
}

var _ = Describe("Resolver", func() {
	var (
		resolver    *session.Resolver
		users       *mockUsers
		memberships *mockMemberships
		ctx         context.Context
	)

	BeforeEach(func() {
		var plwds *mockPLWDs
		users, plwds, memberships = newFixture()
		resolver = session.NewResolver(users, plwds, memberships, slog.New(slog.NewTextHandler(io.Discard, nil)))
		ctx = context.Background()
	})

	It("grants the admin everything without membership", func() {
		s, err := resolver.Resolve(ctx, "auth0|admin", "p-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Capabilities).To(Equal(access.Full()))
		Expect(s.Decision.Basis).To(Equal(access.BasisAdmin))
		Expect(s.Member).To(BeFalse())
	})

	It("grants the caretaker everything", func() {
		s, err := resolver.Resolve(ctx, "auth0|owner", "p-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Capabilities).To(Equal(access.Full()))
		Expect(s.IsOwner()).To(BeTrue())
	})

	It("derives member capabilities from grants", func() {
		s, err := resolver.Resolve(ctx, "auth0|member", "p-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Capabilities).To(Equal(access.Capabilities{
			CanAccessLocation: true,
			CanAccessCalendar: true,
		}))
		Expect(s.Decision.Grants.Unknown).To(ConsistOf("edit:calendar"))
	})

	It("rejects users outside the carecircle", func() {
		_, err := resolver.Resolve(ctx, "auth0|other", "p-1")
		Expect(err).To(Equal(internal.ErrNotInCarecircle))
	})

	It("rejects subjects that never onboarded", func() {
		_, err := resolver.Resolve(ctx, "auth0|nobody", "p-1")
		Expect(err).To(Equal(internal.ErrUserNotFound))
	})

	It("returns PLWD_NOT_FOUND for unknown PLWDs", func() {
		_, err := resolver.Resolve(ctx, "auth0|admin", "p-404")
		Expect(err).To(Equal(internal.ErrPLWDNotFound))
	})

	It("wraps store failures", func() {
		memberships.shouldFail = true
		_, err := resolver.Resolve(ctx, "auth0|member", "p-1")
		Expect(err).To(MatchError(ContainSubstring("db down")))
		_, isApp := internal.IsAppError(err)
		Expect(isApp).To(BeFalse())
	})

	It("treats an existing membership with no grants as all denied", func() {
		memberships.grants["u-other/p-1"] = nil
		s, err := resolver.Resolve(ctx, "auth0|other", "p-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Capabilities).To(Equal(access.Capabilities{}))
	})
})
