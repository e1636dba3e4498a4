package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// SelfManageRoleName names the per-user role granting rw on the user's
// own record.
func SelfManageRoleName(userID string) string {
	return fmt.Sprintf("self-manage:%s", userID)
}

// SuperadminRoleName is the bypass role assigned to the bootstrap
// admin account.
const SuperadminRoleName = "superadmin"

type RegisterUserMessage struct {
	Name            string `json:"name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	UseHashID       bool
	OnResponse      func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "identity.user.register" }

type RegisterUserResponse struct {
	User         *User
	Verification *Session
	Success      bool
}

type RegisterUserHandler struct {
	repo       RepositoryManager
	sessions   SessionManager
	mailer     Mailer
	activity   ActivitySink
	logger     Logger
	adminEmail string
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager, sessions SessionManager) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		sessions: sessions,
		mailer:   noopMailer{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithMailer sets the dispatch collaborator for verification emails.
func (h *RegisterUserHandler) WithMailer(mailer Mailer) *RegisterUserHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithBootstrapAdminEmail marks the address that receives the
// superadmin bypass role on registration.
func (h *RegisterUserHandler) WithBootstrapAdminEmail(email string) *RegisterUserHandler {
	h.adminEmail = email
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	resp := &RegisterUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Password == "" || event.Password != event.ConfirmPassword {
		return ErrPasswordMismatch
	}

	user := &User{
		Name:     event.Name,
		Email:    strings.TrimSpace(event.Email),
		Username: getUsername(event.Username, event.Email),
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Users().GetByEmailTx(ctx, tx, user.Email); err == nil {
			return withMeta(ErrEmailTaken, map[string]any{"email": user.Email})
		} else if !isNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}

		if _, err := h.repo.Users().GetByUsernameTx(ctx, tx, user.Username); err == nil {
			return withMeta(ErrUsernameTaken, map[string]any{"username": user.Username})
		} else if !isNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		user.PasswordHash = hash

		if event.UseHashID {
			if id, err := hashid.NewUUID(user.Email); err == nil {
				user.ID = id.String()
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		if err := h.provisionSelfManagement(ctx, tx, user); err != nil {
			return err
		}

		if h.adminEmail != "" && strings.EqualFold(user.Email, h.adminEmail) {
			if err := h.provisionSuperadmin(ctx, tx, user); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	verification, err := h.sessions.Create(ctx, user.ID, SessionAccountVerification)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create verification session")
	}

	dispatchMail(h.mailer, h.logger, MailMessage{
		To:       user.Email,
		Subject:  "Verify your account",
		Template: MailTemplateVerifyEmail,
		Props: map[string]any{
			"name":    user.Name,
			"session": verification.ID,
			"token":   verification.Token,
		},
	})

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		SessionID: verification.ID,
	})

	resp.User = user
	resp.Verification = verification
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// provisionSelfManagement gives the new user a dedicated role holding
// a single rw grant scoped to their own user record.
func (h *RegisterUserHandler) provisionSelfManagement(ctx context.Context, tx bun.Tx, user *User) error {
	role, err := h.repo.Roles().CreateTx(ctx, tx, &Role{
		Name:        SelfManageRoleName(user.ID),
		Description: "Self management role",
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create self management role")
	}

	permission, err := h.repo.Roles().CreatePermissionTx(ctx, tx, &Permission{
		Name:        SelfManageRoleName(user.ID),
		Resource:    ResourceUser,
		Action:      ActionReadWrite,
		ResourceID:  user.ID,
		Description: "Manage own account",
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create self management permission")
	}

	if err := h.repo.Roles().GrantPermissionTx(ctx, tx, role.ID, permission.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to grant self management permission")
	}

	if err := h.repo.Roles().AssignRoleTx(ctx, tx, user.ID, role.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to assign self management role")
	}

	return nil
}

func (h *RegisterUserHandler) provisionSuperadmin(ctx context.Context, tx bun.Tx, user *User) error {
	role, err := h.repo.Roles().GetOrCreateTx(ctx, tx, &Role{
		Name:        SuperadminRoleName,
		Description: "Bypass role for the bootstrap admin",
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to provision superadmin role")
	}

	if err := h.repo.Roles().AssignRoleTx(ctx, tx, user.ID, role.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to assign superadmin role")
	}

	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
