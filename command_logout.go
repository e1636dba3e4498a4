package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type LogoutMessage struct {
	Session string `json:"session"`
}

func (e LogoutMessage) Type() string { return "identity.logout" }

// LogoutHandler consumes the server-side Auth session so a captured
// envelope cannot be replayed after logout. Clearing the client's
// cookie stays in the HTTP boundary adapter. Consuming an unknown or
// already-consumed session is a no-op.
type LogoutHandler struct {
	repo     RepositoryManager
	sessions SessionManager
	activity ActivitySink
	logger   Logger
}

// NewLogoutHandler creates a handler with sane defaults.
func NewLogoutHandler(repo RepositoryManager, sessions SessionManager) *LogoutHandler {
	return &LogoutHandler{
		repo:     repo,
		sessions: sessions,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit logout events.
func (h *LogoutHandler) WithActivitySink(sink ActivitySink) *LogoutHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *LogoutHandler) WithLogger(logger Logger) *LogoutHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *LogoutHandler) Execute(ctx context.Context, event LogoutMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during logout",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *LogoutHandler) execute(ctx context.Context, event LogoutMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Session == "" {
		return nil
	}

	session, err := h.repo.Sessions().GetByID(ctx, event.Session)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session for logout")
	}

	if err := h.sessions.Consume(ctx, session.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume auth session")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventLogout,
		Actor:     ActorRef{ID: session.UserID, Type: "user"},
		UserID:    session.UserID,
		SessionID: session.ID,
	})

	return nil
}
