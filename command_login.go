package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
)

type LoginMessage struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ExtendedSession bool   `json:"extended_session"`
	OnResponse      func(resp *LoginResponse)
}

func (e LoginMessage) Type() string { return "identity.login" }

// LoginResponse carries either a granted Auth session or, when the OTP
// branch is active, the OTP session the caller must confirm first.
type LoginResponse struct {
	UserID      string
	Session     *Session
	OTPRequired bool
	OTPSession  *Session
}

type LoginHandler struct {
	repo     RepositoryManager
	sessions SessionManager
	gate     gate.FeatureGate
	mailer   Mailer
	activity ActivitySink
	logger   Logger
}

// NewLoginHandler creates a handler with sane defaults.
func NewLoginHandler(repo RepositoryManager, sessions SessionManager) *LoginHandler {
	return &LoginHandler{
		repo:     repo,
		sessions: sessions,
		mailer:   noopMailer{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithFeatureGate enables the feature-gated OTP login branch.
func (h *LoginHandler) WithFeatureGate(featureGate gate.FeatureGate) *LoginHandler {
	h.gate = featureGate
	return h
}

// WithMailer sets the dispatch collaborator for OTP codes.
func (h *LoginHandler) WithMailer(mailer Mailer) *LoginHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

// WithActivitySink sets the sink used to emit login events.
func (h *LoginHandler) WithActivitySink(sink ActivitySink) *LoginHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *LoginHandler) WithLogger(logger Logger) *LoginHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *LoginHandler) Execute(ctx context.Context, event LoginMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during login",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *LoginHandler) execute(ctx context.Context, event LoginMessage) error {
	resp := &LoginResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if isNotFound(err) {
			return withMeta(ErrUserNotFound, map[string]any{"email": event.Email})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for login")
	}

	if user.IsBanned {
		h.recordFailure(ctx, user, "banned")
		return withMeta(ErrUserBanned, map[string]any{"user_id": user.ID})
	}

	if !user.IsVerified {
		h.recordFailure(ctx, user, "unverified")
		return withMeta(ErrUserNotVerified, map[string]any{"user_id": user.ID})
	}

	if err := ComparePasswordAndHash(event.Password, user.PasswordHash); err != nil {
		if trackErr := h.repo.Users().TrackAttemptedLogin(ctx, user); trackErr != nil {
			h.logger.Warn("failed to track login attempt: %v", trackErr)
		}
		h.recordFailure(ctx, user, "bad_credentials")
		return err
	}

	if otpLoginEnabled(ctx, h.gate, h.logger) {
		return h.issueOTP(ctx, user, resp, event.OnResponse)
	}

	return h.issueAuthSession(ctx, user, event, resp)
}

func (h *LoginHandler) issueAuthSession(ctx context.Context, user *User, event LoginMessage, resp *LoginResponse) error {
	opts := []CreateSessionOption{}
	if event.ExtendedSession {
		opts = append(opts, WithExtendedTTL())
	}

	session, err := h.sessions.Create(ctx, user.ID, SessionAuth, opts...)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create auth session")
	}

	if err := h.repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		h.logger.Warn("failed to track successful login: %v", err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		SessionID: session.ID,
	})

	resp.UserID = user.ID
	resp.Session = session

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *LoginHandler) issueOTP(ctx context.Context, user *User, resp *LoginResponse, onResponse func(*LoginResponse)) error {
	session, err := h.sessions.Create(ctx, user.ID, SessionOtp)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create OTP session")
	}

	dispatchMail(h.mailer, h.logger, MailMessage{
		To:       user.Email,
		Subject:  "Your sign-in code",
		Template: MailTemplateOTPCode,
		Props: map[string]any{
			"name":  user.Name,
			"token": session.Token,
		},
	})

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventOTPIssued,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		SessionID: session.ID,
	})

	resp.UserID = user.ID
	resp.OTPRequired = true
	resp.OTPSession = session

	if onResponse != nil {
		onResponse(resp)
	}

	return nil
}

func (h *LoginHandler) recordFailure(ctx context.Context, user *User, reason string) {
	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		Metadata:  map[string]any{"reason": reason},
	})
}
