package access_test

import (
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Evaluate", func() {
	plwd := access.PLWDRef{ID: "plwd-1", CaretakerID: "owner-1"}

	member := func(grants ...string) access.Subject {
		return access.Subject{UserID: "member-1", Role: access.RoleUser, PLWD: plwd, Grants: grants}
	}

	Describe("bypass rules", func() {
		It("gives admins everything regardless of grants", func() {
			for _, grants := range [][]string{nil, {}, {access.TokenCalendarNever, access.TokenCarecircleNever}} {
				caps := access.Evaluate(access.Subject{UserID: "admin-1", Role: access.RoleAdmin, PLWD: plwd, Grants: grants})
				Expect(caps).To(Equal(access.Full()))
			}
		})

		It("gives the caretaker everything regardless of grants", func() {
			for _, role := range []access.Role{access.RoleUser, access.RolePrimaryCaretaker} {
				caps := access.Evaluate(access.Subject{UserID: "owner-1", Role: role, PLWD: plwd, Grants: []string{access.TokenCalendarNever}})
				Expect(caps).To(Equal(access.Full()))
			}
		})

		It("records which rule applied", func() {
			Expect(access.Decide(access.Subject{UserID: "a", Role: access.RoleAdmin, PLWD: plwd}).Basis).To(Equal(access.BasisAdmin))
			Expect(access.Decide(access.Subject{UserID: "owner-1", Role: access.RoleUser, PLWD: plwd}).Basis).To(Equal(access.BasisOwner))
			Expect(access.Decide(member()).Basis).To(Equal(access.BasisGrants))
		})

		It("does not treat an empty user id as the owner of a PLWD without caretaker", func() {
			caps := access.Evaluate(access.Subject{Role: access.RoleUser, PLWD: access.PLWDRef{ID: "p"}})
			Expect(caps).To(Equal(access.Capabilities{}))
		})
	})

	Describe("grants", func() {
		It("denies everything for an empty grant list", func() {
			Expect(access.Evaluate(member())).To(Equal(access.Capabilities{}))
		})

		DescribeTable("location",
			func(token string, view, manage bool) {
				caps := access.Evaluate(member(token))
				Expect(caps.CanAccessLocation).To(Equal(view))
				Expect(caps.CanManageLocation).To(Equal(manage))
			},
			Entry("always", access.TokenLocationAlways, true, true),
			Entry("when assigned", access.TokenLocationWhenAssigned, true, false),
		)

		DescribeTable("calendar",
			func(grants []string, view, manage bool) {
				caps := access.Evaluate(member(grants...))
				Expect(caps.CanAccessCalendar).To(Equal(view))
				Expect(caps.CanManageCalendar).To(Equal(manage))
			},
			Entry("manage", []string{access.TokenCalendarManage}, true, true),
			Entry("read", []string{access.TokenCalendarRead}, true, false),
			Entry("never", []string{access.TokenCalendarNever}, false, false),
			Entry("absent", []string{}, false, false),
		)

		DescribeTable("carecircle",
			func(grants []string, view, manage bool) {
				caps := access.Evaluate(member(grants...))
				Expect(caps.CanAccessCarecircle).To(Equal(view))
				Expect(caps.CanManageCarecircle).To(Equal(manage))
			},
			Entry("manage", []string{access.TokenCarecircleManage}, true, true),
			Entry("read", []string{access.TokenCarecircleRead}, true, false),
			Entry("never", []string{access.TokenCarecircleNever}, false, false),
			Entry("absent", []string{}, false, false),
		)

		It("evaluates namespaces independently", func() {
			caps := access.Evaluate(member(access.TokenLocationWhenAssigned, access.TokenCalendarManage, access.TokenCarecircleNever))
			Expect(caps).To(Equal(access.Capabilities{
				CanAccessLocation: true,
				CanAccessCalendar: true,
				CanManageCalendar: true,
			}))
		})

		It("ignores unrecognized tokens and reports them", func() {
			d := access.Decide(member(access.TokenCalendarRead, "edit:calendar"))
			Expect(d.Capabilities.CanAccessCalendar).To(BeTrue())
			Expect(d.Capabilities.CanManageCalendar).To(BeFalse())
			Expect(d.Grants.Unknown).To(ConsistOf("edit:calendar"))
		})

		It("keeps the highest level when a namespace repeats", func() {
			caps := access.Evaluate(member(access.TokenCalendarNever, access.TokenCalendarManage))
			Expect(caps.CanManageCalendar).To(BeTrue())
		})
	})

	Describe("Allows", func() {
		It("maps each capability to its flag", func() {
			caps := access.Capabilities{CanAccessCalendar: true, CanManageCarecircle: true}
			Expect(caps.Allows(access.AccessCalendar)).To(BeTrue())
			Expect(caps.Allows(access.ManageCarecircle)).To(BeTrue())
			Expect(caps.Allows(access.ManageCalendar)).To(BeFalse())
			Expect(caps.Allows(access.AccessLocation)).To(BeFalse())
			Expect(caps.Allows(access.Capability(42))).To(BeFalse())
		})
	})
})

var _ = Describe("Normalize", func() {
	It("fills absent namespaces with defaults in positional order", func() {
		tokens, err := access.Normalize([]string{access.TokenCalendarRead})
		Expect(err).NotTo(HaveOccurred())
		Expect(tokens).To(Equal([]string{access.TokenLocationWhenAssigned, access.TokenCalendarRead, access.TokenCarecircleNever}))
	})

	It("reorders tokens", func() {
		tokens, err := access.Normalize([]string{access.TokenCarecircleManage, access.TokenLocationAlways})
		Expect(err).NotTo(HaveOccurred())
		Expect(tokens).To(Equal([]string{access.TokenLocationAlways, access.TokenCalendarNever, access.TokenCarecircleManage}))
	})

	It("rejects unknown tokens", func() {
		_, err := access.Normalize([]string{"edit:calendar"})
		var grantErr *access.GrantError
		Expect(err).To(BeAssignableToTypeOf(grantErr))
		Expect(err.Error()).To(ContainSubstring("edit:calendar"))
	})

	It("rejects two tokens in one namespace", func() {
		_, err := access.Normalize([]string{access.TokenCalendarRead, access.TokenCalendarManage})
		Expect(err).To(HaveOccurred())
		Expect(err.(*access.GrantError).Conflicts).To(ConsistOf(access.NamespaceCalendar))
	})

	It("produces a list the positional migration leaves alone", func() {
		tokens, err := access.Normalize(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(access.MigratePositional(tokens)).To(Equal(tokens))
	})
})

var _ = Describe("ParseRole", func() {
	It("accepts the three roles", func() {
		for _, s := range []string{"admin", "primary_caretaker", "user"} {
			r, err := access.ParseRole(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(r)).To(Equal(s))
		}
	})

	It("rejects anything else", func() {
		_, err := access.ParseRole("manager")
		Expect(err).To(HaveOccurred())
	})
})
