package identity

import (
	"context"

	"github.com/uptrace/bun"
)

var ExpireSessionSQL = `UPDATE "sessions" AS "ses"
SET
	"expired" = TRUE
WHERE
	"ses"."id" = ?;`

// Sessions is the storage collaborator for session records. Rows are
// only ever inserted and flagged, never deleted.
type Sessions interface {
	GetByID(ctx context.Context, id string) (*Session, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*Session, error)

	Create(ctx context.Context, record *Session) (*Session, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Session) (*Session, error)

	Expire(ctx context.Context, id string) error
	ExpireTx(ctx context.Context, tx bun.IDB, id string) error

	ListForUser(ctx context.Context, userID string, kind SessionKind) ([]*Session, error)
}

type sessions struct {
	db *bun.DB
}

var _ Sessions = (*sessions)(nil)

func NewSessionsRepository(db *bun.DB) Sessions {
	return &sessions{db: db}
}

func (a *sessions) GetByID(ctx context.Context, id string) (*Session, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *sessions) GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*Session, error) {
	record := &Session{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, newRecordNotFound("session", map[string]any{"id": id})
		}
		return nil, err
	}
	return record, nil
}

func (a *sessions) Create(ctx context.Context, record *Session) (*Session, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *sessions) CreateTx(ctx context.Context, tx bun.IDB, record *Session) (*Session, error) {
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *sessions) Expire(ctx context.Context, id string) error {
	return a.ExpireTx(ctx, a.db, id)
}

// ExpireTx is a raw single-column update so concurrent consumers
// cannot clobber each other's writes.
func (a *sessions) ExpireTx(ctx context.Context, tx bun.IDB, id string) error {
	_, err := tx.NewRaw(ExpireSessionSQL, id).Exec(ctx)
	return err
}

func (a *sessions) ListForUser(ctx context.Context, userID string, kind SessionKind) ([]*Session, error) {
	var records []*Session
	q := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("created_at DESC")

	if kind != "" {
		q = q.Where("?TableAlias.kind = ?", string(kind))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return records, nil
}
