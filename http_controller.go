package identity

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RegisterAuthRoutes mounts the identity flows on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.
		Get(controller.Routes.Login,
			controller.LoginShow,
		).
		SetName("sign-in.get")

	app.
		Post(
			controller.Routes.Login,
			controller.LoginPost,
		).
		SetName("sign-in.post")

	app.Get(controller.Routes.LoginOTP, controller.OTPShow).SetName("sign-in-otp.get")
	app.Post(controller.Routes.LoginOTP, controller.OTPPost).SetName("sign-in-otp.post")
	app.Post(controller.Routes.ResendOTP, controller.OTPResend).SetName("sign-in-otp-resend.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(fmt.Sprintf("%s/:session/:token", controller.Routes.Verify), controller.VerifyEmail).
		SetName("verify.get")

	app.Get(controller.Routes.PasswordReset, controller.PasswordResetGet).
		SetName("pwd-reset.get")
	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("pwd-reset.post")

	app.Get(fmt.Sprintf("%s/:session", controller.Routes.PasswordReset), controller.PasswordResetForm).
		SetName("pwd-reset-do.get")
	app.Post(fmt.Sprintf("%s/:session", controller.Routes.PasswordReset), controller.PasswordResetExecute).
		SetName("pwd-reset-do.post")
}

type AuthControllerRoutes struct {
	Login         string
	LoginOTP      string
	ResendOTP     string
	Logout        string
	Register      string
	Verify        string
	PasswordReset string
}

type AuthControllerViews struct {
	Login         string
	LoginOTP      string
	Register      string
	Verify        string
	PasswordReset string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Sessions     SessionManager
	Mailer       Mailer
	Activity     ActivitySink
	Gate         gate.FeatureGate
	Auther       *RouteAuthenticator
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	ErrorHandler router.ErrorHandler
	AdminEmail   string
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Login:         "/login",
			LoginOTP:      "/login/otp",
			ResendOTP:     "/login/otp/resend",
			Logout:        "/logout",
			Register:      "/register",
			Verify:        "/verify",
			PasswordReset: "/password-reset",
		},
		Views: &AuthControllerViews{
			Login:         "login",
			LoginOTP:      "login_otp",
			Register:      "register",
			Verify:        "verify",
			PasswordReset: "password_reset",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

func (a *AuthController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession reports whether a remember-me login was requested
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	errs := map[string]string{}

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": err.Error(),
		})
	}

	if a.Debug {
		fmt.Println("======= IDENTITY LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=============================")
	}

	resp, err := a.Auther.Login(ctx, payload)
	if err != nil {
		errs["authentication"] = "Authentication Error"
		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors":  errs,
			"payload": payload,
		})
	}

	if resp.OTPRequired {
		return ctx.Redirect(a.Routes.LoginOTP, router.StatusSeeOther)
	}

	redirect := a.Auther.GetRedirect(ctx, "/")

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *AuthController) OTPShow(ctx router.Context) error {
	return ctx.Render(a.Views.LoginOTP, router.ViewContext{
		"errors":  nil,
		"session": a.Auther.PendingOTPSession(ctx),
	})
}

// OTPRequest payload
type OTPRequest struct {
	Token      string `form:"token" json:"token"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// Validate will run validation rules
func (r OTPRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Token,
			validation.Required,
			is.Digit,
			validation.Length(DefaultCodeDigits, DefaultCodeDigits),
		),
	)
}

func (a *AuthController) OTPPost(ctx router.Context) error {
	payload := new(OTPRequest)
	errs := map[string]string{}

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.LoginOTP, router.ViewContext{
			"record":     payload,
			"validation": err.Error(),
		})
	}

	sessionID := a.Auther.PendingOTPSession(ctx)

	var resp *VerifyOTPResponse
	msg := VerifyOTPMessage{
		Session:         sessionID,
		Token:           payload.Token,
		ExtendedSession: payload.RememberMe,
		OnResponse: func(r *VerifyOTPResponse) {
			resp = r
		},
	}

	verifyOTP := NewVerifyOTPHandler(a.Repo, a.Sessions).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := verifyOTP.Execute(ctx.Context(), msg); err != nil {
		errs["authentication"] = "Invalid or expired code"
		return ctx.Render(a.Views.LoginOTP, router.ViewContext{
			"errors":  errs,
			"session": sessionID,
		})
	}

	if err := a.Auther.ConfirmOTP(ctx, resp); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	redirect := a.Auther.GetRedirect(ctx, "/")

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *AuthController) OTPResend(ctx router.Context) error {
	sessionID := a.Auther.PendingOTPSession(ctx)

	resendOTP := NewResendOTPHandler(a.Repo, a.Sessions).
		WithFeatureGate(a.Gate).
		WithMailer(a.Mailer).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	var resp *ResendOTPResponse
	msg := ResendOTPMessage{
		Session: sessionID,
		OnResponse: func(r *ResendOTPResponse) {
			resp = r
		},
	}

	if err := resendOTP.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("OTP resend error: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Could not resend code",
		}).Redirect(a.Routes.LoginOTP, fiber.StatusSeeOther)
	}

	// the pending cookie must now point at the replacement session
	a.Auther.setCookie(ctx, a.Auther.otpCookieName(), resp.Session.ID, resp.Session.TTL(time.Now()))

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "A new code is on its way",
	}).Redirect(a.Routes.LoginOTP, fiber.StatusSeeOther)
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.Redirect("/", router.StatusTemporaryRedirect)
}

func (a *AuthController) RegistrationShow(ctx router.Context) error {
	return ctx.Render(a.Views.Register, router.ViewContext{
		"errors": map[string]string{},
		"record": RegisterUserMessage{},
	})
}

// RegistrationCreatePayload is the form payload
type RegistrationCreatePayload struct {
	Name            string `form:"name" json:"name"`
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {

	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Username, validation.Length(2, 60)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		errs := map[string]string{}
		errs["form"] = "Failed to parse form"
		a.Logger.Error("register user parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Register, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		errs := FormatValidationErrorToMap(err)
		a.Logger.Error("register user validate payload: %v", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Register, router.ViewContext{
			"record":     payload,
			"validation": errs,
		})
	}

	req := RegisterUserMessage{
		Name:            payload.Name,
		Username:        payload.Username,
		Email:           payload.Email,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	}

	registerUser := NewRegisterUserHandler(a.Repo, a.Sessions).
		WithMailer(a.Mailer).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger).
		WithBootstrapAdminEmail(a.AdminEmail)

	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register user error: %v", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error registering user",
		}).Render(a.Views.Register, router.ViewContext{
			"record": payload,
			"errors": []string{err.Error()},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Successful user registration, check your inbox",
	}).Redirect("/", fiber.StatusSeeOther)
}

func (a *AuthController) VerifyEmail(ctx router.Context) error {
	msg := VerifyEmailMessage{
		Session: ctx.Param("session", ""),
		Token:   ctx.Param("token", ""),
	}

	verify := NewVerifyEmailHandler(a.Repo, a.Sessions).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := verify.Execute(ctx.Context(), msg); err != nil {
		return ctx.Render(a.Views.Verify, router.ViewContext{
			"errors":   []string{err.Error()},
			"verified": false,
		})
	}

	return ctx.Render(a.Views.Verify, router.ViewContext{
		"errors":   nil,
		"verified": true,
	})
}

const (
	sessionKey = "session"
	emailKey   = "email"
)

func (a *AuthController) PasswordResetGet(ctx router.Context) error {
	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"errors": nil,
		"reset":  map[string]string{},
	})
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AuthController) PasswordResetPost(ctx router.Context) error {
	errs := map[string]string{}
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		errs["form"] = "Failed to parse form"
		a.Logger.Error("password reset parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.PasswordReset, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: %v", err)
		errs := FormatValidationErrorToMap(err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.PasswordReset, router.ViewContext{
			"record":     payload,
			"validation": errs,
		})
	}

	var res *InitializePasswordResetResponse

	req := InitializePasswordResetMessage{
		Email: payload.Email,
		OnResponse: func(resp *InitializePasswordResetResponse) {
			res = resp
		},
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Repo, a.Sessions).
		WithMailer(a.Mailer).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset error: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Could not start password reset",
		}).Render(a.Views.PasswordReset, router.ViewContext{
			"record": payload,
			"errors": []string{err.Error()},
		})
	}

	if a.Debug {
		fmt.Println("================")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("================")
	}

	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"errors": errs,
		"reset": map[string]string{
			sessionKey: res.Session.ID,
			emailKey:   payload.Email,
		},
	})
}

func (a *AuthController) PasswordResetForm(ctx router.Context) error {
	sessionID := ctx.Param("session", "")

	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"errors": nil,
		"reset": map[string]string{
			sessionKey: sessionID,
		},
	})
}

// PasswordResetVerifyPayload holds values for password reset
type PasswordResetVerifyPayload struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetVerifyPayload) Validate() error {

	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Token,
			validation.Required,
			is.Digit,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(10, 100),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) PasswordResetExecute(ctx router.Context) error {
	sessionID := ctx.Param("session", "")

	errs := map[string]string{}
	payload := new(PasswordResetVerifyPayload)

	if err := ctx.Bind(payload); err != nil {
		errs["form"] = "Failed to parse form"
		a.Logger.Error("password reset parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.PasswordReset, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: %v", err)
		errs = FormatValidationErrorToMap(err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.PasswordReset, router.ViewContext{
			"record":     payload,
			"validation": errs,
		})
	}

	input := FinalizePasswordResetMessage{
		Session:         sessionID,
		Token:           payload.Token,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	}

	finalizePwdReset := NewFinalizePasswordResetHandler(a.Repo, a.Sessions).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := finalizePwdReset.Execute(ctx.Context(), input); err != nil {
		errs["validation"] = err.Error()
		return ctx.Render(a.Views.PasswordReset, router.ViewContext{
			"errors": errs,
			"reset": map[string]string{
				sessionKey: sessionID,
			},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Password changed, you can sign in now",
	}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map for templates.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["validation"] = err.Error()
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
