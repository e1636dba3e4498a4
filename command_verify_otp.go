package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type VerifyOTPMessage struct {
	Session         string `json:"session"`
	Token           string `json:"token"`
	ExtendedSession bool   `json:"extended_session"`
	OnResponse      func(resp *VerifyOTPResponse)
}

func (e VerifyOTPMessage) Type() string { return "identity.otp.verify" }

type VerifyOTPResponse struct {
	UserID  string
	Session *Session
}

type VerifyOTPHandler struct {
	repo     RepositoryManager
	sessions SessionManager
	activity ActivitySink
	logger   Logger
}

// NewVerifyOTPHandler creates a handler with sane defaults.
func NewVerifyOTPHandler(repo RepositoryManager, sessions SessionManager) *VerifyOTPHandler {
	return &VerifyOTPHandler{
		repo:     repo,
		sessions: sessions,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit OTP events.
func (h *VerifyOTPHandler) WithActivitySink(sink ActivitySink) *VerifyOTPHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyOTPHandler) WithLogger(logger Logger) *VerifyOTPHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyOTPHandler) Execute(ctx context.Context, event VerifyOTPMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during OTP verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyOTPHandler) execute(ctx context.Context, event VerifyOTPMessage) error {
	resp := &VerifyOTPResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	session, err := h.sessions.Validate(ctx, event.Session, event.Token)
	if err != nil {
		// a wrong code against a live session is an authentication
		// failure; a dead or unknown session stays undifferentiated
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMismatch {
			return ErrInvalidCode
		}
		return invalidSession(err)
	}

	if session.Kind != SessionOtp {
		return invalidSession(ErrSessionNotFound)
	}

	user, err := h.repo.Users().GetByID(ctx, session.UserID)
	if err != nil {
		if isNotFound(err) {
			return withMeta(ErrUserNotFound, map[string]any{"user_id": session.UserID})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for OTP verification")
	}

	if user.IsBanned {
		return withMeta(ErrUserBanned, map[string]any{"user_id": user.ID})
	}

	opts := []CreateSessionOption{}
	if event.ExtendedSession {
		opts = append(opts, WithExtendedTTL())
	}

	authSession, err := h.sessions.Create(ctx, user.ID, SessionAuth, opts...)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create auth session")
	}

	if err := h.sessions.Consume(ctx, session.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume OTP session")
	}

	if err := h.repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		h.logger.Warn("failed to track successful login: %v", err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventOTPConfirmed,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		SessionID: authSession.ID,
	})

	resp.UserID = user.ID
	resp.Session = authSession

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
