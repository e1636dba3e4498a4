package identity

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator is the transport boundary adapter. The core hands
// it a session and a TTL; the adapter wraps the session id in a signed
// envelope and carries it as a secure http-only cookie. Nothing below
// this file knows about cookies or headers.
type RouteAuthenticator struct {
	cfg              Config
	tokens           TokenService
	sessions         SessionManager
	login            *LoginHandler
	logout           *LogoutHandler
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

// NewRouteAuthenticator wires the adapter to the login/logout handlers
// and the envelope signer.
func NewRouteAuthenticator(cfg Config, tokens TokenService, sessions SessionManager, login *LoginHandler, logout *LogoutHandler) (*RouteAuthenticator, error) {
	if cfg == nil {
		return nil, goerrors.New("config must not be nil", goerrors.CategoryInternal)
	}

	a := &RouteAuthenticator{
		cfg:      cfg,
		tokens:   tokens,
		sessions: sessions,
		login:    login,
		logout:   logout,
		Logger:   defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a *RouteAuthenticator) otpCookieName() string {
	return a.cfg.GetContextKey() + "_otp"
}

// Login runs the login flow and, on success, writes the session cookie.
// When the OTP branch is active no Auth session exists yet; the OTP
// session id goes into a short-lived cookie instead and the returned
// response reports OTPRequired.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (*LoginResponse, error) {
	var resp *LoginResponse

	msg := LoginMessage{
		Email:           payload.GetIdentifier(),
		Password:        payload.GetPassword(),
		ExtendedSession: payload.GetExtendedSession(),
		OnResponse: func(r *LoginResponse) {
			resp = r
		},
	}

	if err := a.login.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("Login error: %s", err)
		return nil, err
	}

	if resp == nil {
		return nil, goerrors.New("login produced no response", goerrors.CategoryInternal)
	}

	if resp.OTPRequired {
		a.setCookie(ctx, a.otpCookieName(), resp.OTPSession.ID, resp.OTPSession.TTL(time.Now()))
		return resp, nil
	}

	return resp, a.WriteSession(ctx, resp.Session)
}

// ConfirmOTP exchanges a confirmed OTP for the Auth session cookie.
func (a *RouteAuthenticator) ConfirmOTP(ctx router.Context, resp *VerifyOTPResponse) error {
	a.cookieDel(ctx, a.otpCookieName())
	return a.WriteSession(ctx, resp.Session)
}

// PendingOTPSession returns the OTP session id parked during login.
func (a *RouteAuthenticator) PendingOTPSession(ctx router.Context) string {
	return ctx.Cookies(a.otpCookieName(), "")
}

// WriteSession mints the envelope and sets the session cookie with the
// session's remaining lifetime.
func (a *RouteAuthenticator) WriteSession(ctx router.Context, session *Session) error {
	envelope, err := a.tokens.Generate(session)
	if err != nil {
		return err
	}

	a.setCookie(ctx, a.cfg.GetContextKey(), envelope, session.TTL(time.Now()))
	return nil
}

// CurrentSession resolves the cookie envelope and revalidates the
// session server-side; the envelope alone never authenticates.
func (a *RouteAuthenticator) CurrentSession(ctx router.Context) (*Session, error) {
	envelope := ctx.Cookies(a.cfg.GetContextKey(), "")
	if envelope == "" {
		return nil, ErrEnvelopeMalformed
	}

	claims, err := a.tokens.Validate(envelope)
	if err != nil {
		return nil, err
	}

	session, err := a.sessions.Validate(ctx.Context(), claims.GetSessionID(), "")
	if err != nil {
		return nil, err
	}

	return session, nil
}

// Logout consumes the server-side session and clears the cookie.
func (a *RouteAuthenticator) Logout(ctx router.Context) {
	envelope := ctx.Cookies(a.cfg.GetContextKey(), "")
	if envelope != "" {
		if claims, err := a.tokens.Validate(envelope); err == nil {
			if err := a.logout.Execute(ctx.Context(), LogoutMessage{Session: claims.GetSessionID()}); err != nil {
				a.Logger.Warn("logout error: %v", err)
			}
		}
	}

	a.cookieDel(ctx, a.cfg.GetContextKey())
	a.cookieDel(ctx, a.otpCookieName())
}

func (a *RouteAuthenticator) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		return def[0]
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	refererHeader := string(ctx.Referer())

	r := ctx.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = a.cfg.GetRejectedRouteDefault()
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) SetRedirect(ctx router.Context) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Info("Setting redirect cookie key=%s path=%s", rejectedRoute, ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) setCookie(c router.Context, name, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryAuth, "An unexpected authentication error").
			WithCode(goerrors.CodeUnauthorized)
	}

	a.Logger.Info("Authentication error, redirecting to login: %s text_code=%s path=%s",
		richErr.Message, richErr.TextCode, c.OriginalURL())

	a.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect("/login", statusCode)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Info("Middleware error handler: %s category=%s details=%s",
		richErr.Message, richErr.Category, print.MaybePrettyJSON(richErr.Metadata))

	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}
