package identity

import (
	"context"

	"github.com/uptrace/bun"
)

// Roles is the storage collaborator for roles, permissions, and their
// assignment tables.
type Roles interface {
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)

	Create(ctx context.Context, record *Role) (*Role, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Role) (*Role, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Role) (*Role, error)

	CreatePermissionTx(ctx context.Context, tx bun.IDB, record *Permission) (*Permission, error)

	AssignRoleTx(ctx context.Context, tx bun.IDB, userID, roleID string) error
	GrantPermissionTx(ctx context.Context, tx bun.IDB, roleID, permissionID string) error

	ListForUser(ctx context.Context, userID string) ([]*Role, error)
	ListPermissions(ctx context.Context, roleID string) ([]*Permission, error)

	HasPermission(ctx context.Context, roleID string, check PermissionCheck) (bool, error)
}

type roles struct {
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	return &roles{db: db}
}

func (a *roles) GetByID(ctx context.Context, id string) (*Role, error) {
	record := &Role{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, newRecordNotFound("role", map[string]any{"id": id})
		}
		return nil, err
	}
	return record, nil
}

func (a *roles) GetByName(ctx context.Context, name string) (*Role, error) {
	return a.GetByNameTx(ctx, a.db, name)
}

func (a *roles) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, newRecordNotFound("role", map[string]any{"name": name})
		}
		return nil, err
	}
	return record, nil
}

func (a *roles) Create(ctx context.Context, record *Role) (*Role, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *roles) CreateTx(ctx context.Context, tx bun.IDB, record *Role) (*Role, error) {
	if record.ID == "" {
		id, err := GenerateID(DefaultIDLength)
		if err != nil {
			return nil, err
		}
		record.ID = id
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (a *roles) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Role) (*Role, error) {
	existing, err := a.GetByNameTx(ctx, tx, record.Name)
	if err == nil {
		return existing, nil
	}

	if !isNotFound(err) {
		return nil, err
	}

	return a.CreateTx(ctx, tx, record)
}

func (a *roles) CreatePermissionTx(ctx context.Context, tx bun.IDB, record *Permission) (*Permission, error) {
	if record.ID == "" {
		id, err := GenerateID(DefaultIDLength)
		if err != nil {
			return nil, err
		}
		record.ID = id
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (a *roles) AssignRoleTx(ctx context.Context, tx bun.IDB, userID, roleID string) error {
	assignment := &RoleAssignment{UserID: userID, RoleID: roleID}
	_, err := tx.NewInsert().
		Model(assignment).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}

func (a *roles) GrantPermissionTx(ctx context.Context, tx bun.IDB, roleID, permissionID string) error {
	assignment := &PermissionAssignment{RoleID: roleID, PermissionID: permissionID}
	_, err := tx.NewInsert().
		Model(assignment).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}

func (a *roles) ListForUser(ctx context.Context, userID string) ([]*Role, error) {
	var records []*Role
	err := a.db.NewSelect().
		Model(&records).
		Join(`JOIN role_assignments AS ra ON ra.role_id = rol.id`).
		Where("ra.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *roles) ListPermissions(ctx context.Context, roleID string) ([]*Permission, error) {
	var records []*Permission
	err := a.db.NewSelect().
		Model(&records).
		Join(`JOIN permission_assignments AS pa ON pa.permission_id = perm.id`).
		Where("pa.role_id = ?", roleID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// HasPermission reports whether any grant attached to the role matches
// the check. A check without a ResourceID is satisfied by any grant on
// the resource/action pair, scoped or not; a check with a ResourceID
// demands that exact scope.
func (a *roles) HasPermission(ctx context.Context, roleID string, check PermissionCheck) (bool, error) {
	q := a.db.NewSelect().
		Model((*Permission)(nil)).
		Join(`JOIN permission_assignments AS pa ON pa.permission_id = perm.id`).
		Where("pa.role_id = ?", roleID).
		Where("perm.resource = ?", check.Resource).
		Where("perm.action = ?", check.Action)

	if check.ResourceID != "" {
		q = q.Where("perm.resource_id = ?", check.ResourceID)
	}

	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
