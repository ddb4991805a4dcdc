package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
	"github.com/phlock-app/phlock-core/pkg/logger"
)

// NotificationDispatcher bridges follow graph events to the platform's
// notification service. It subscribes to follow and request events and
// calls the notifier off the primary write path; delivery failures are
// logged and dropped.
type NotificationDispatcher struct {
	notifier graph.FollowNotifier
	log      *logger.Logger
	timeout  time.Duration
}

// NewNotificationDispatcher creates a dispatcher over the notifier.
func NewNotificationDispatcher(notifier graph.FollowNotifier, log *logger.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifier: notifier,
		log:      log.With(logger.Component("notification_dispatcher")),
		timeout:  10 * time.Second,
	}
}

// Register subscribes the dispatcher to the events it handles.
func (d *NotificationDispatcher) Register(bus *InMemoryEventBus) error {
	return bus.Subscribe(d, shared.EventFollowCreated, shared.EventFollowRequestSent)
}

// Name implements shared.EventHandler.
func (d *NotificationDispatcher) Name() string { return "notification_dispatcher" }

// Handle implements shared.EventHandler.
func (d *NotificationDispatcher) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	switch e := event.(type) {
	case shared.FollowEvent:
		if event.EventType() != shared.EventFollowCreated {
			return nil
		}
		if err := d.notifier.NotifyNewFollower(ctx, e.TargetID, e.FollowerID); err != nil {
			d.log.Warn("new-follower notification dropped",
				logger.UserID(e.TargetID), logger.Err(err))
		}
	case shared.FollowRequestEvent:
		if event.EventType() != shared.EventFollowRequestSent {
			return nil
		}
		if err := d.notifier.NotifyFollowRequest(ctx, e.TargetID, e.RequesterID); err != nil {
			d.log.Warn("follow-request notification dropped",
				logger.UserID(e.TargetID), logger.Err(err))
		}
	default:
		return fmt.Errorf("dispatcher: unexpected event type %s", event.EventType())
	}
	return nil
}
