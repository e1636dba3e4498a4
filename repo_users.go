package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

var ResetUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."id" = ?;`

type Users interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)

	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)

	MarkVerified(ctx context.Context, id string) error
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id string) error

	Ban(ctx context.Context, id string) error
	BanTx(ctx context.Context, tx bun.IDB, id string) error
	Unban(ctx context.Context, id string) error
	UnbanTx(ctx context.Context, tx bun.IDB, id string) error

	ResetPassword(ctx context.Context, id, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id, passwordHash string) error

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error
}

type users struct {
	db *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db}
}

func (a *users) GetByID(ctx context.Context, id string) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*User, error) {
	return a.getBy(ctx, tx, "?TableAlias.id = ?", id, map[string]any{"id": id})
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

// GetByEmailTx matches case insensitively; the stored casing wins on
// the returned record.
func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	value := strings.ToLower(strings.TrimSpace(email))
	return a.getBy(ctx, tx, "LOWER(?TableAlias.email) = ?", value, map[string]any{"email": email})
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *users) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	value := strings.ToLower(strings.TrimSpace(username))
	return a.getBy(ctx, tx, "LOWER(?TableAlias.username) = ?", value, map[string]any{"username": username})
}

func (a *users) getBy(ctx context.Context, tx bun.IDB, where string, value any, meta map[string]any) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where(where, value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, newRecordNotFound("user", meta)
		}
		return nil, err
	}
	return record, nil
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if err := prepareUserDefaults(record); err != nil {
		return nil, err
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (a *users) MarkVerified(ctx context.Context, id string) error {
	return a.MarkVerifiedTx(ctx, a.db, id)
}

func (a *users) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id string) error {
	return a.setFlag(ctx, tx, id, "is_verified", true)
}

func (a *users) Ban(ctx context.Context, id string) error {
	return a.BanTx(ctx, a.db, id)
}

func (a *users) BanTx(ctx context.Context, tx bun.IDB, id string) error {
	return a.setFlag(ctx, tx, id, "is_banned", true)
}

func (a *users) Unban(ctx context.Context, id string) error {
	return a.UnbanTx(ctx, a.db, id)
}

func (a *users) UnbanTx(ctx context.Context, tx bun.IDB, id string) error {
	return a.setFlag(ctx, tx, id, "is_banned", false)
}

func (a *users) setFlag(ctx context.Context, tx bun.IDB, id, column string, value bool) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("? = ?", bun.Ident(column), value).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return newRecordNotFound("user", map[string]any{"id": id})
	}

	return nil
}

func (a *users) ResetPassword(ctx context.Context, id, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id, passwordHash string) error {
	res, err := tx.NewRaw(ResetUserPasswordSQL, passwordHash, id).Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return newRecordNotFound("user", map[string]any{"id": id})
	}

	return nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("usr".id = ?);
	`, loggedInAt, user.ID).Exec(ctx)

	return err
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, user)
}

func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	attempts := user.LoginAttempts + 1
	if user.LoginAttemptAt != nil {
		// stale attempt counters restart, they are observational only
		if recent, err := IsWithinThresholdPeriod(*user.LoginAttemptAt, "15m"); err == nil && !recent {
			attempts = 1
		}
	}

	now := time.Now()
	_, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("login_attempts = ?", attempts).
		Set("login_attempt_at = ?", now).
		Where("?TableAlias.id = ?", user.ID).
		Exec(ctx)

	return err
}

func prepareUserDefaults(record *User) error {
	if record == nil {
		return goerrors.New("user record must not be nil", goerrors.CategoryInternal)
	}

	if record.ID == "" {
		id, err := GenerateID(DefaultIDLength)
		if err != nil {
			return err
		}
		record.ID = id
	}

	record.Email = strings.TrimSpace(record.Email)
	record.Username = strings.TrimSpace(record.Username)

	return nil
}
