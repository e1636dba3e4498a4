package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// SessionManager drives the session lifecycle: Created -> Valid ->
// {Consumed | Expired}. Expired is reached by flag or by clock; both
// are terminal and equivalent for validation.
type SessionManager interface {
	Create(ctx context.Context, userID string, kind SessionKind, opts ...CreateSessionOption) (*Session, error)
	Validate(ctx context.Context, id, token string) (*Session, error)
	Consume(ctx context.Context, id string) error
	Reissue(ctx context.Context, id string) (*Session, error)
}

// SessionManagerOption customizes manager construction.
type SessionManagerOption func(*sessionManager)

// WithManagerClock injects a custom clock (useful for tests).
func WithManagerClock(clock Clock) SessionManagerOption {
	return func(m *sessionManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithManagerLogger overrides the logger.
func WithManagerLogger(logger Logger) SessionManagerOption {
	return func(m *sessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSessionPolicies replaces the policy table.
func WithSessionPolicies(policies SessionPolicies) SessionManagerOption {
	return func(m *sessionManager) {
		if len(policies) > 0 {
			m.policies = policies
		}
	}
}

// CreateSessionOption tunes a single Create call.
type CreateSessionOption func(*createSessionOptions)

type createSessionOptions struct {
	extended bool
}

// WithExtendedTTL applies the policy's extended lifetime, used for
// remember-me logins.
func WithExtendedTTL() CreateSessionOption {
	return func(o *createSessionOptions) {
		o.extended = true
	}
}

// NewSessionManager builds the default manager on top of the
// repository layer.
func NewSessionManager(repo RepositoryManager, cfg ManagerConfig, opts ...SessionManagerOption) SessionManager {
	m := &sessionManager{
		repo:     repo,
		cfg:      cfg,
		policies: cfg.Policies(),
		now:      time.Now,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

type sessionManager struct {
	repo     RepositoryManager
	cfg      ManagerConfig
	policies SessionPolicies
	now      Clock
	logger   Logger
}

func (m *sessionManager) policy(kind SessionKind) (SessionPolicy, error) {
	policy, ok := m.policies[kind]
	if !ok {
		return SessionPolicy{}, goerrors.New("unknown session kind", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"kind": string(kind)})
	}
	return policy, nil
}

func (m *sessionManager) Create(ctx context.Context, userID string, kind SessionKind, opts ...CreateSessionOption) (*Session, error) {
	options := &createSessionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	policy, err := m.policy(kind)
	if err != nil {
		return nil, err
	}

	session, err := m.build(userID, kind, policy, options.extended)
	if err != nil {
		return nil, err
	}

	if session, err = m.repo.Sessions().Create(ctx, session); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session")
	}

	return session, nil
}

func (m *sessionManager) build(userID string, kind SessionKind, policy SessionPolicy, extended bool) (*Session, error) {
	id, err := GenerateID(m.cfg.IDLength)
	if err != nil {
		return nil, err
	}

	token := ""
	if policy.RequiresToken {
		if token, err = GenerateCode(m.cfg.CodeDigits); err != nil {
			return nil, err
		}
	}

	ttl := policy.TTL
	if extended && policy.ExtendedTTL > 0 {
		ttl = policy.ExtendedTTL
	}

	now := m.now()
	return &Session{
		ID:        id,
		UserID:    userID,
		Kind:      kind,
		Token:     token,
		Expired:   false,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Validate checks the three usability conditions in order: existence,
// expiry by flag or clock, token equality when the kind requires one.
func (m *sessionManager) Validate(ctx context.Context, id, token string) (*Session, error) {
	session, err := m.repo.Sessions().GetByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, withMeta(ErrSessionNotFound, map[string]any{"session_id": id})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session")
	}

	if session.Expired || !m.now().Before(session.ExpiresAt) {
		return nil, withMeta(ErrSessionExpired, map[string]any{"session_id": id})
	}

	policy, err := m.policy(session.Kind)
	if err != nil {
		return nil, err
	}

	if policy.RequiresToken && session.Token != token {
		return nil, withMeta(ErrTokenMismatch, map[string]any{"session_id": id})
	}

	return session, nil
}

// Consume flips the expired flag. Consuming an unknown or already
// consumed session is a no-op so flows stay idempotent under retry.
func (m *sessionManager) Consume(ctx context.Context, id string) error {
	session, err := m.repo.Sessions().GetByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session")
	}

	if session.Expired {
		return nil
	}

	if err := m.repo.Sessions().Expire(ctx, id); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume session")
	}

	return nil
}

// Reissue replaces a rotating session with a fresh one of the same
// kind. The replacement is only allowed once the prior code is at
// least ReissueAfter old and no more than ReissueGrace old; issuing it
// always consumes the prior session.
func (m *sessionManager) Reissue(ctx context.Context, id string) (*Session, error) {
	prior, err := m.repo.Sessions().GetByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, withMeta(ErrSessionNotFound, map[string]any{"session_id": id})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session")
	}

	if prior.Expired {
		return nil, withMeta(ErrSessionExpired, map[string]any{"session_id": id})
	}

	policy, err := m.policy(prior.Kind)
	if err != nil {
		return nil, err
	}

	if !policy.Reissuable() {
		return nil, withMeta(ErrReissueNotAllowed, map[string]any{
			"session_id": id,
			"kind":       string(prior.Kind),
		})
	}

	age := m.now().Sub(prior.CreatedAt)
	if age < policy.ReissueAfter || age > policy.ReissueGrace {
		return nil, withMeta(ErrReissueNotAllowed, map[string]any{
			"session_id": id,
			"age":        age.String(),
		})
	}

	replacement, err := m.build(prior.UserID, prior.Kind, policy, false)
	if err != nil {
		return nil, err
	}

	err = m.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if replacement, err = m.repo.Sessions().CreateTx(ctx, tx, replacement); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist replacement session")
		}
		if err := m.repo.Sessions().ExpireTx(ctx, tx, prior.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume prior session")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return replacement, nil
}
