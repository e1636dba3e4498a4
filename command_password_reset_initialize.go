package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "identity.password_reset" }

type InitializePasswordResetResponse struct {
	Session *Session
	Success bool
}

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	sessions SessionManager
	mailer   Mailer
	activity ActivitySink
	logger   Logger
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, sessions SessionManager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		sessions: sessions,
		mailer:   noopMailer{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithMailer sets the dispatch collaborator for the reset email.
func (h *InitializePasswordResetHandler) WithMailer(mailer Mailer) *InitializePasswordResetHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

// WithActivitySink sets the sink used to emit reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if isNotFound(err) {
			return withMeta(ErrUserNotFound, map[string]any{"email": event.Email})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	session, err := h.sessions.Create(ctx, user.ID, SessionPasswordReset)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset session")
	}

	dispatchMail(h.mailer, h.logger, MailMessage{
		To:       user.Email,
		Subject:  "Reset your password",
		Template: MailTemplatePasswordReset,
		Props: map[string]any{
			"name":    user.Name,
			"session": session.ID,
			"token":   session.Token,
		},
	})

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		SessionID: session.ID,
	})

	resp.Session = session
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
