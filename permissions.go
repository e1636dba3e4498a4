package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// PermissionCheck asks whether a role holds a grant over a resource
// class, optionally scoped to one instance.
type PermissionCheck struct {
	Resource   Resource
	Action     Action
	ResourceID string
}

// PermissionEvaluator is the RBAC decision engine. Denial is a false
// result, never an error; errors only surface storage failures.
type PermissionEvaluator interface {
	Evaluate(ctx context.Context, roles []*Role, checks []PermissionCheck, bypassRoles []string, either bool) (bool, error)
	EvaluateForUser(ctx context.Context, userID string, checks []PermissionCheck, bypassRoles []string, either bool) (bool, error)
}

// PermissionEvaluatorOption customizes evaluator construction.
type PermissionEvaluatorOption func(*permissionEvaluator)

// WithEvaluatorLogger overrides the logger.
func WithEvaluatorLogger(logger Logger) PermissionEvaluatorOption {
	return func(e *permissionEvaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewPermissionEvaluator builds the default evaluator on top of the
// roles repository.
func NewPermissionEvaluator(repo RepositoryManager, opts ...PermissionEvaluatorOption) PermissionEvaluator {
	e := &permissionEvaluator{
		repo:   repo,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	return e
}

type permissionEvaluator struct {
	repo   RepositoryManager
	logger Logger
}

// Evaluate iterates the user's roles. A role whose name is in the
// bypass set grants everything immediately, ignoring the checks.
// Otherwise each (role, check) pair that matches a grant counts as one
// success; with either set any success passes, without it the total
// success count must reach len(checks).
//
// The combinator counts successes rather than tracking which distinct
// checks were satisfied, so two roles satisfying the same check can
// stand in for a different unsatisfied one. That behavior is load
// bearing for existing callers and is pinned by tests; do not tighten
// it without a product decision.
func (e *permissionEvaluator) Evaluate(ctx context.Context, roles []*Role, checks []PermissionCheck, bypassRoles []string, either bool) (bool, error) {
	bypass := make(map[string]struct{}, len(bypassRoles))
	for _, name := range bypassRoles {
		bypass[name] = struct{}{}
	}

	successes := 0
	for _, role := range roles {
		if role == nil {
			continue
		}

		if _, ok := bypass[role.Name]; ok {
			return true, nil
		}

		for _, check := range checks {
			ok, err := e.repo.Roles().HasPermission(ctx, role.ID, check)
			if err != nil {
				return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to evaluate permission")
			}
			if ok {
				successes++
			}
		}
	}

	if either {
		return successes > 0, nil
	}

	return successes >= len(checks), nil
}

// EvaluateForUser loads the user's effective roles first.
func (e *permissionEvaluator) EvaluateForUser(ctx context.Context, userID string, checks []PermissionCheck, bypassRoles []string, either bool) (bool, error) {
	roles, err := e.repo.Roles().ListForUser(ctx, userID)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user roles")
	}

	return e.Evaluate(ctx, roles, checks, bypassRoles, either)
}
