package identity

import (
	"bytes"
	"context"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

// Mail template names shipped with the package.
const (
	MailTemplateVerifyEmail   = "verify_email"
	MailTemplateOTPCode       = "otp_code"
	MailTemplatePasswordReset = "password_reset"
)

// MailMessage is what the orchestrator hands to the dispatch
// collaborator. Template is a logical name, Props the render context.
type MailMessage struct {
	To       string
	Subject  string
	Template string
	Props    map[string]any
}

// Mailer is the email dispatch collaborator. Delivery is best-effort
// from the core's perspective: handlers log failures and move on.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailSender delivers a rendered email body. Hosts plug in SMTP, an
// API-based provider, or a queue.
type MailSender func(ctx context.Context, to, subject, body string) error

// TemplateMailer renders bodies with the django engine from the
// embedded template set and delegates delivery to a MailSender.
type TemplateMailer struct {
	engine *django.Engine
	sender MailSender
	logger Logger
}

// TemplateMailerOption customizes mailer construction.
type TemplateMailerOption func(*TemplateMailer)

// WithMailerLogger overrides the logger.
func WithMailerLogger(logger Logger) TemplateMailerOption {
	return func(m *TemplateMailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewTemplateMailer wires the embedded templates to the given sender.
// A nil sender logs the rendered email instead of delivering it.
func NewTemplateMailer(sender MailSender, opts ...TemplateMailerOption) (*TemplateMailer, error) {
	sub, err := fs.Sub(templatesFS, "data/templates")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mount email templates")
	}

	engine := django.NewFileSystem(http.FS(sub), ".django")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load email templates")
	}

	m := &TemplateMailer{
		engine: engine,
		sender: sender,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m, nil
}

// Send renders the named template and delivers it.
func (m *TemplateMailer) Send(ctx context.Context, msg MailMessage) error {
	var body bytes.Buffer
	if err := m.engine.Render(&body, msg.Template, msg.Props); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email template").
			WithMetadata(map[string]any{"template": msg.Template})
	}

	if m.sender == nil {
		m.logger.Info("email (no sender configured) to=%s subject=%q\n%s", msg.To, msg.Subject, body.String())
		return nil
	}

	return m.sender(ctx, msg.To, msg.Subject, body.String())
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, MailMessage) error { return nil }

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return noopMailer{}
	}
	return m
}

// dispatchMail fires the message on its own goroutine; failures are
// logged only since notification is not correctness-critical.
func dispatchMail(mailer Mailer, logger Logger, msg MailMessage) {
	go func() {
		if err := normalizeMailer(mailer).Send(context.Background(), msg); err != nil {
			if logger == nil {
				logger = defLogger{}
			}
			logger.Warn("email dispatch failed to=%s template=%s: %v", msg.To, msg.Template, err)
		}
	}()
}
