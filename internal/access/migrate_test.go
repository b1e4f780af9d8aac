package access_test

import (
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MigratePositional", func() {
	It("converts the legacy manage:locations scenario", func() {
		tokens, legacy, err := access.DecodeStoredGrants([]byte(`[{"value":"manage:locations"},{"value":""},{"value":"read:carecircle"}]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(legacy).To(BeTrue())
		Expect(access.MigratePositional(tokens)).To(Equal([]string{"always:locations", "never:calendar", "read:carecircle"}))
	})

	It("returns the defaults for an empty list", func() {
		Expect(access.MigratePositional(nil)).To(Equal(access.DefaultGrants()))
		Expect(access.MigratePositional([]string{})).To(Equal(access.DefaultGrants()))
	})

	It("maps any other location value to when-assigned", func() {
		out := access.MigratePositional([]string{"view:locations", "read:calendar", "manage:carecircle"})
		Expect(out).To(Equal([]string{"when-assigned:locations", "read:calendar", "manage:carecircle"}))
	})

	It("pads short lists", func() {
		Expect(access.MigratePositional([]string{"manage:locations"})).
			To(Equal([]string{"always:locations", "never:calendar", "never:carecircle"}))
	})

	DescribeTable("is idempotent",
		func(input []string) {
			once := access.MigratePositional(input)
			Expect(access.MigratePositional(once)).To(Equal(once))
		},
		Entry("empty", []string{}),
		Entry("legacy manage", []string{"manage:locations", "", "read:carecircle"}),
		Entry("legacy blank", []string{"", "", ""}),
		Entry("migrated always", []string{"always:locations", "manage:calendar", "never:carecircle"}),
		Entry("migrated when-assigned", []string{"when-assigned:locations", "read:calendar", "read:carecircle"}),
		Entry("short", []string{"manage:locations", "read:calendar"}),
	)

	It("does not modify its input", func() {
		in := []string{"manage:locations", "", ""}
		access.MigratePositional(in)
		Expect(in).To(Equal([]string{"manage:locations", "", ""}))
	})
})

var _ = Describe("DecodeStoredGrants", func() {
	It("reads the namespaced form", func() {
		tokens, legacy, err := access.DecodeStoredGrants([]byte(`["always:locations","never:calendar","read:carecircle"]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(legacy).To(BeFalse())
		Expect(tokens).To(HaveLen(3))
	})

	It("treats null and empty input as no grants", func() {
		for _, raw := range []string{"", "null", "  "} {
			tokens, legacy, err := access.DecodeStoredGrants([]byte(raw))
			Expect(err).NotTo(HaveOccurred())
			Expect(legacy).To(BeFalse())
			Expect(tokens).To(BeEmpty())
		}
	})

	It("fails on something that is not a list", func() {
		_, _, err := access.DecodeStoredGrants([]byte(`{"value":"x"}`))
		Expect(err).To(HaveOccurred())
	})

	It("round trips through EncodeGrants", func() {
		raw, err := access.EncodeGrants(access.DefaultGrants())
		Expect(err).NotTo(HaveOccurred())
		tokens, _, err := access.DecodeStoredGrants(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(tokens).To(Equal(access.DefaultGrants()))
	})

	It("encodes nil as an empty list", func() {
		raw, err := access.EncodeGrants(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(Equal("[]"))
	})
})

var _ = Describe("ReadStoredGrants", func() {
	It("converts legacy rows by position", func() {
		tokens, converted, err := access.ReadStoredGrants([]byte(`[{"value":"manage:locations"},{"value":""},{"value":"read:carecircle"}]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(converted).To(BeTrue())
		Expect(tokens).To(Equal([]string{access.TokenLocationAlways, access.TokenCalendarNever, access.TokenCarecircleRead}))
	})

	It("returns namespaced rows as stored, in any order", func() {
		tokens, converted, err := access.ReadStoredGrants([]byte(`["read:calendar","manage:carecircle"]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(converted).To(BeFalse())
		Expect(tokens).To(Equal([]string{access.TokenCalendarRead, access.TokenCarecircleManage}))
	})

	It("gives an empty row the defaults", func() {
		tokens, converted, err := access.ReadStoredGrants([]byte(`[]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(converted).To(BeTrue())
		Expect(tokens).To(Equal(access.DefaultGrants()))
	})
})
