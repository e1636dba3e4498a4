package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserRegistered       ActivityEventType = "identity.user.registered"
	ActivityEventEmailVerified        ActivityEventType = "identity.user.email_verified"
	ActivityEventUserBanned           ActivityEventType = "identity.user.banned"
	ActivityEventUserUnbanned         ActivityEventType = "identity.user.unbanned"
	ActivityEventLoginSuccess         ActivityEventType = "identity.login.success"
	ActivityEventLoginFailure         ActivityEventType = "identity.login.failure"
	ActivityEventOTPIssued            ActivityEventType = "identity.otp.issued"
	ActivityEventOTPConfirmed         ActivityEventType = "identity.otp.confirmed"
	ActivityEventPasswordResetRequest ActivityEventType = "identity.password.reset_requested"
	ActivityEventPasswordResetSuccess ActivityEventType = "identity.password.reset"
	ActivityEventLogout               ActivityEventType = "identity.logout"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	ID         string
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	SessionID  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity normalizes and delivers an event; sink failures are
// logged, never propagated.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		if logger == nil {
			logger = defLogger{}
		}
		logger.Warn("activity sink error: %v", err)
	}
}
