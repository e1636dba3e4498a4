package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
)

type ResendOTPMessage struct {
	Session    string `json:"session"`
	OnResponse func(resp *ResendOTPResponse)
}

func (e ResendOTPMessage) Type() string { return "identity.otp.resend" }

type ResendOTPResponse struct {
	Session *Session
}

type ResendOTPHandler struct {
	repo     RepositoryManager
	sessions SessionManager
	gate     gate.FeatureGate
	mailer   Mailer
	activity ActivitySink
	logger   Logger
}

// NewResendOTPHandler creates a handler with sane defaults.
func NewResendOTPHandler(repo RepositoryManager, sessions SessionManager) *ResendOTPHandler {
	return &ResendOTPHandler{
		repo:     repo,
		sessions: sessions,
		mailer:   noopMailer{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithFeatureGate makes the resend path honor the OTP login gate.
func (h *ResendOTPHandler) WithFeatureGate(featureGate gate.FeatureGate) *ResendOTPHandler {
	h.gate = featureGate
	return h
}

// WithMailer sets the dispatch collaborator for the replacement code.
func (h *ResendOTPHandler) WithMailer(mailer Mailer) *ResendOTPHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

// WithActivitySink sets the sink used to emit OTP events.
func (h *ResendOTPHandler) WithActivitySink(sink ActivitySink) *ResendOTPHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ResendOTPHandler) WithLogger(logger Logger) *ResendOTPHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ResendOTPHandler) Execute(ctx context.Context, event ResendOTPMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during OTP resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendOTPHandler) execute(ctx context.Context, event ResendOTPMessage) error {
	resp := &ResendOTPResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if h.gate != nil {
		if err := requireFeatureGate(ctx, h.gate, FeatureLoginOTP, ErrOTPLoginDisabled); err != nil {
			return err
		}
	}

	replacement, err := h.sessions.Reissue(ctx, event.Session)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reissue OTP session")
	}

	user, err := h.repo.Users().GetByID(ctx, replacement.UserID)
	if err != nil {
		if isNotFound(err) {
			return withMeta(ErrUserNotFound, map[string]any{"user_id": replacement.UserID})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for OTP resend")
	}

	dispatchMail(h.mailer, h.logger, MailMessage{
		To:       user.Email,
		Subject:  "Your new sign-in code",
		Template: MailTemplateOTPCode,
		Props: map[string]any{
			"name":  user.Name,
			"token": replacement.Token,
		},
	})

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventOTPIssued,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		SessionID: replacement.ID,
		Metadata:  map[string]any{"replaced": event.Session},
	})

	resp.Session = replacement

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
