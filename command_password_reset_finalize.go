package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Session         string `json:"session"`
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "identity.password_reset.finalize" }

type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	sessions SessionManager
	activity ActivitySink
	logger   Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager, sessions SessionManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		sessions: sessions,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Password == "" || event.Password != event.ConfirmPassword {
		return ErrPasswordMismatch
	}

	session, err := h.sessions.Validate(ctx, event.Session, event.Token)
	if err != nil {
		return invalidSession(err)
	}

	if session.Kind != SessionPasswordReset {
		return invalidSession(ErrSessionNotFound)
	}

	user, err := h.repo.Users().GetByID(ctx, session.UserID)
	if err != nil {
		if isNotFound(err) {
			return withMeta(ErrUserNotFound, map[string]any{"user_id": session.UserID})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve user for password reset")
	}

	passwordHash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.Users().ResetPasswordTx(ctx, tx, user.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		if err := h.repo.Sessions().ExpireTx(ctx, tx, session.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume password reset session")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		SessionID: session.ID,
	})

	return nil
}
