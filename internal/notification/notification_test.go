package notification_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	notificationDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/notification"
	"github.com/imec-int/monument-plwd-sub001/internal/core/events"
	"github.com/imec-int/monument-plwd-sub001/internal/notification"
	notificationPostgres "github.com/imec-int/monument-plwd-sub001/internal/notification/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n.ID)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func memberEvent() *events.MemberEvent {
	return events.NewMemberInvitedEvent(events.MemberChange{
		MembershipID: "m-1",
		PLWDID:       "p-1",
		PLWDName:     "Maria Peeters",
		UserID:       "u-member",
		ActorID:      "u-owner",
		Affiliation:  "Family",
		Permissions:  []string{"when-assigned:locations", "never:calendar", "never:carecircle"},
		NewUser:      true,
	})
}

var _ = Describe("Notifications", func() {
	var (
		ctx     context.Context
		db      *gorm.DB
		repo    notification.RepositoryAPI
		service *notification.Service
		lg      *slog.Logger
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		lg = slog.New(slog.NewTextHandler(io.Discard, nil))

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		// every connection to :memory: is a separate database
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&notificationDatamodel.Notification{})).To(Succeed())

		repo = notificationPostgres.NewNotificationRepository(db)
		service = notification.NewService(repo, lg)
	})

	Describe("Service", func() {
		It("stores one pending notification per event", func() {
			e := memberEvent()
			Expect(service.HandleMemberEvent(ctx, e)).To(Succeed())
			Expect(service.HandleMemberEvent(ctx, e)).To(Succeed())

			list, err := service.ListForUser(ctx, "u-member")
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Status).To(Equal(notification.StatusPending))
			Expect(list[0].Kind).To(Equal(events.EventTypeMemberInvited))
			Expect(list[0].Body).To(ContainSubstring("Maria Peeters"))
		})

		It("rejects events of another type", func() {
			err := service.HandleMemberEvent(ctx, &events.BaseEvent{ID: "x", Type: "other"})
			Expect(err).To(HaveOccurred())
		})

		It("is wired to the event bus", func() {
			bus := events.NewEventBus(lg)
			service.RegisterEventHandlers(bus)

			Expect(bus.PublishSync(ctx, events.NewMemberRemovedEvent(events.MemberChange{UserID: "u-member", PLWDID: "p-1"}))).To(Succeed())

			list, err := service.ListForUser(ctx, "u-member")
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Title).To(Equal("You left a carecircle"))
		})
	})

	Describe("Dispatcher", func() {
		var sender *fakeSender

		BeforeEach(func() {
			sender = &fakeSender{}
			Expect(service.HandleMemberEvent(ctx, memberEvent())).To(Succeed())
		})

		pending := func() *notification.Notification {
			list, err := service.ListForUser(ctx, "u-member")
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			return list[0]
		}

		It("marks delivered notifications as sent", func() {
			d := notification.NewDispatcher(repo, sender, notification.DispatcherConfig{}, lg)
			d.Deliver(ctx, pending())

			n := pending()
			Expect(n.Status).To(Equal(notification.StatusSent))
			Expect(n.SentAt).NotTo(BeNil())
		})

		It("keeps failed notifications pending until the retry limit", func() {
			sender.err = errors.New("diary down")
			d := notification.NewDispatcher(repo, sender, notification.DispatcherConfig{MaxRetries: 2}, lg)

			d.Deliver(ctx, pending())
			n := pending()
			Expect(n.Status).To(Equal(notification.StatusPending))
			Expect(n.RetryCount).To(Equal(1))
			Expect(n.LastError).To(Equal("diary down"))

			d.Deliver(ctx, n)
			n = pending()
			Expect(n.Status).To(Equal(notification.StatusFailed))
			Expect(n.RetryCount).To(Equal(2))
		})

		It("drains pending notifications through the worker pool", func() {
			d := notification.NewDispatcher(repo, sender, notification.DispatcherConfig{
				MaxWorkers:   2,
				PollInterval: 10 * time.Millisecond,
			}, lg)

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- d.Run(runCtx) }()

			Eventually(func() notification.Status { return pending().Status }).
				WithTimeout(2 * time.Second).
				Should(Equal(notification.StatusSent))
			Expect(sender.count()).To(Equal(1))

			cancel()
			Eventually(done).WithTimeout(2 * time.Second).Should(Receive(BeNil()))
		})
	})
})
