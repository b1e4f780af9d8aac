package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imec-int/monument-plwd-sub001/internal/core/events"
	"github.com/imec-int/monument-plwd-sub001/internal/notification"
	notificationPostgres "github.com/imec-int/monument-plwd-sub001/internal/notification/postgres"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish carecircle events through the notification handlers, e.g. to replay a lost notification.`,
}

var publishEventCmd = &cobra.Command{
	Use:       "publish [invited|updated|removed]",
	Short:     "Publish a carecircle member event",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"invited", "updated", "removed"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishMemberEvent(cmd.Context(), args[0])
	},
}

var (
	eventChange      events.MemberChange
	eventPermissions []string
)

func memberEvent(kind string, c events.MemberChange) (*events.MemberEvent, error) {
	switch kind {
	case "invited":
		return events.NewMemberInvitedEvent(c), nil
	case "updated":
		return events.NewMemberUpdatedEvent(c), nil
	case "removed":
		return events.NewMemberRemovedEvent(c), nil
	}
	return nil, fmt.Errorf("unknown event kind %q", kind)
}

func publishMemberEvent(ctx context.Context, kind string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if eventChange.UserID == "" || eventChange.PLWDID == "" {
		return fmt.Errorf("--user and --plwd are required")
	}
	eventChange.Permissions = eventPermissions
	event, err := memberEvent(kind, eventChange)
	if err != nil {
		return err
	}

	cfg, lg, err := setup()
	if err != nil {
		return err
	}
	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	gdb, err := openGorm(db)
	if err != nil {
		return err
	}

	bus := events.NewEventBus(lg)
	notification.NewService(notificationPostgres.NewNotificationRepository(gdb), lg).RegisterEventHandlers(bus)

	lg.Info("publishing event", "event_type", event.EventType(), "event_id", event.EventID())
	if err := bus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType(), err)
	}
	lg.Info("event handled", "event_id", event.EventID())
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventChange.UserID, "user", "", "id of the member the event is about")
	publishEventCmd.Flags().StringVar(&eventChange.PLWDID, "plwd", "", "id of the PLWD")
	publishEventCmd.Flags().StringVar(&eventChange.PLWDName, "plwd-name", "", "display name of the PLWD")
	publishEventCmd.Flags().StringVar(&eventChange.MembershipID, "membership", "", "carecircle membership id")
	publishEventCmd.Flags().StringVar(&eventChange.Affiliation, "affiliation", "", "member affiliation")
	publishEventCmd.Flags().StringSliceVar(&eventPermissions, "permissions", nil, "grant tokens of the membership")

	eventCmd.AddCommand(publishEventCmd)
	rootCmd.AddCommand(eventCmd)
}
