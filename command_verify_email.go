package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type VerifyEmailMessage struct {
	Session string `json:"session"`
	Token   string `json:"token"`
}

func (e VerifyEmailMessage) Type() string { return "identity.user.verify_email" }

type VerifyEmailHandler struct {
	repo     RepositoryManager
	sessions SessionManager
	activity ActivitySink
	logger   Logger
}

// NewVerifyEmailHandler creates a handler with sane defaults.
func NewVerifyEmailHandler(repo RepositoryManager, sessions SessionManager) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:     repo,
		sessions: sessions,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit verification events.
func (h *VerifyEmailHandler) WithActivitySink(sink ActivitySink) *VerifyEmailHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyEmailHandler) WithLogger(logger Logger) *VerifyEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// unknown, expired, and token-mismatched sessions all collapse into
	// the same answer so callers cannot probe which check failed
	session, err := h.sessions.Validate(ctx, event.Session, event.Token)
	if err != nil {
		return invalidSession(err)
	}

	if session.Kind != SessionAccountVerification {
		return invalidSession(ErrSessionNotFound)
	}

	user, err := h.repo.Users().GetByID(ctx, session.UserID)
	if err != nil {
		if isNotFound(err) {
			return withMeta(ErrUserNotFound, map[string]any{"user_id": session.UserID})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for verification")
	}

	if user.IsVerified {
		return withMeta(ErrAlreadyVerified, map[string]any{"user_id": user.ID})
	}

	if err := h.repo.Users().MarkVerified(ctx, user.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark user as verified")
	}

	if err := h.sessions.Consume(ctx, session.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification session")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventEmailVerified,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		SessionID: session.ID,
	})

	return nil
}
