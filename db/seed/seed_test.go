package seed_test

import (
	"context"

	"github.com/imec-int/monument-plwd-sub001/db/seed"
	ccDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/carecircle"
	notificationDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/notification"
	plwdDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/plwd"
	userDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ = Describe("Fixtures", func() {
	var (
		ctx context.Context
		db  *gorm.DB
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&userDatamodel.User{}, &plwdDatamodel.PLWD{}, &ccDatamodel.Membership{}, &notificationDatamodel.Notification{})).To(Succeed())
	})

	It("loads the development fixtures", func() {
		f, err := seed.Load("fixtures.yml")
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Users).To(HaveLen(4))
		Expect(f.Carecircles).To(HaveLen(2))

		res, err := seed.Apply(ctx, db, f, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Users).To(Equal(4))
		Expect(res.PLWD).To(Equal(1))

		var legacy ccDatamodel.Membership
		Expect(db.Joins("JOIN users ON users.id = carecircles.user_id").
			Where("users.email = ?", "nurse.els@monument.local").First(&legacy).Error).To(Succeed())
		Expect([]byte(legacy.Permissions)).To(MatchJSON(`[{"value":""},{"value":"read:calendar"},{"value":""}]`))
	})

	It("is safe to apply twice", func() {
		f, err := seed.Load("fixtures.yml")
		Expect(err).NotTo(HaveOccurred())
		_, err = seed.Apply(ctx, db, f, false)
		Expect(err).NotTo(HaveOccurred())

		res, err := seed.Apply(ctx, db, f, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Users).To(BeZero())
		Expect(res.PLWD).To(BeZero())

		var count int64
		Expect(db.Model(&ccDatamodel.Membership{}).Count(&count).Error).To(Succeed())
		Expect(count).To(Equal(int64(2)))
	})

	It("stores namespaced grants in canonical order", func() {
		f, err := seed.Parse([]byte(`
users:
  - {email: owner@x.test, role: primary_caretaker}
  - {email: member@x.test}
plwd:
  - {key: p, caretaker: owner@x.test, firstName: Paul}
carecircles:
  - {plwd: p, user: member@x.test, affiliation: Friend, permissions: [read:carecircle, read:calendar]}
`))
		Expect(err).NotTo(HaveOccurred())
		_, err = seed.Apply(ctx, db, f, false)
		Expect(err).NotTo(HaveOccurred())

		var m ccDatamodel.Membership
		Expect(db.First(&m).Error).To(Succeed())
		Expect(string(m.Permissions)).To(Equal(`["when-assigned:locations","read:calendar","read:carecircle"]`))
	})

	It("clears existing rows first when asked", func() {
		Expect(db.Create(&userDatamodel.User{ID: "old", Email: "old@x.test", Role: "user"}).Error).To(Succeed())
		f, err := seed.Load("fixtures.yml")
		Expect(err).NotTo(HaveOccurred())

		_, err = seed.Apply(ctx, db, f, true)
		Expect(err).NotTo(HaveOccurred())

		var count int64
		Expect(db.Model(&userDatamodel.User{}).Where("email = ?", "old@x.test").Count(&count).Error).To(Succeed())
		Expect(count).To(BeZero())
	})

	DescribeTable("rejects inconsistent fixtures",
		func(doc string) {
			_, err := seed.Parse([]byte(doc))
			Expect(err).To(HaveOccurred())
		},
		Entry("unknown role", `users: [{email: a@x.test, role: nurse}]`),
		Entry("unknown caretaker", `plwd: [{key: p, caretaker: nobody@x.test, firstName: P}]`),
		Entry("unknown grant", `
users: [{email: a@x.test}, {email: b@x.test}]
plwd: [{key: p, caretaker: a@x.test, firstName: P}]
carecircles: [{plwd: p, user: b@x.test, permissions: [fly:calendar]}]`),
		Entry("not yaml", `users: [`),
	)
})
