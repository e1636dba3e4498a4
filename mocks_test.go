package identity_test

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

type stubFeatureGate struct {
	enabled map[string]bool
	calls   []string
	err     error
}

func (s *stubFeatureGate) Enabled(ctx context.Context, key string, opts ...gate.ResolveOption) (bool, error) {
	s.calls = append(s.calls, key)
	if s.err != nil {
		return false, s.err
	}
	if s.enabled == nil {
		return true, nil
	}
	enabled, ok := s.enabled[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

type capturingSink struct {
	mu     sync.Mutex
	events []identity.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt identity.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Events() []identity.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]identity.ActivityEvent, len(c.events))
	copy(out, c.events)
	return out
}

type capturingMailer struct {
	mu   sync.Mutex
	sent []identity.MailMessage
}

func (c *capturingMailer) Send(ctx context.Context, msg identity.MailMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *capturingMailer) Sent() []identity.MailMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]identity.MailMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

func notFoundErr(entity string) error {
	return goerrors.New(entity+" not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound)
}

// memoryUsers is an in-memory Users repository.
type memoryUsers struct {
	mu      sync.Mutex
	records map[string]*identity.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{records: map[string]*identity.User{}}
}

func (m *memoryUsers) snapshot(u *identity.User) *identity.User {
	c := *u
	return &c
}

func (m *memoryUsers) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return m.GetByIDTx(ctx, nil, id)
}

func (m *memoryUsers) GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.records[id]; ok {
		return m.snapshot(u), nil
	}
	return nil, notFoundErr("user")
}

func (m *memoryUsers) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return m.GetByEmailTx(ctx, nil, email)
}

func (m *memoryUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.records {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return m.snapshot(u), nil
		}
	}
	return nil, notFoundErr("user")
}

func (m *memoryUsers) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	return m.GetByUsernameTx(ctx, nil, username)
}

func (m *memoryUsers) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.records {
		if strings.EqualFold(u.Username, strings.TrimSpace(username)) {
			return m.snapshot(u), nil
		}
	}
	return nil, notFoundErr("user")
}

func (m *memoryUsers) Create(ctx context.Context, record *identity.User) (*identity.User, error) {
	return m.CreateTx(ctx, nil, record)
}

func (m *memoryUsers) CreateTx(ctx context.Context, tx bun.IDB, record *identity.User) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.ID == "" {
		id, err := identity.GenerateID(identity.DefaultIDLength)
		if err != nil {
			return nil, err
		}
		record.ID = id
	}
	m.records[record.ID] = m.snapshot(record)
	return record, nil
}

func (m *memoryUsers) MarkVerified(ctx context.Context, id string) error {
	return m.MarkVerifiedTx(ctx, nil, id)
}

func (m *memoryUsers) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.records[id]
	if !ok {
		return notFoundErr("user")
	}
	u.IsVerified = true
	return nil
}

func (m *memoryUsers) Ban(ctx context.Context, id string) error {
	return m.BanTx(ctx, nil, id)
}

func (m *memoryUsers) BanTx(ctx context.Context, tx bun.IDB, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.records[id]
	if !ok {
		return notFoundErr("user")
	}
	u.IsBanned = true
	return nil
}

func (m *memoryUsers) Unban(ctx context.Context, id string) error {
	return m.UnbanTx(ctx, nil, id)
}

func (m *memoryUsers) UnbanTx(ctx context.Context, tx bun.IDB, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.records[id]
	if !ok {
		return notFoundErr("user")
	}
	u.IsBanned = false
	return nil
}

func (m *memoryUsers) ResetPassword(ctx context.Context, id, passwordHash string) error {
	return m.ResetPasswordTx(ctx, nil, id, passwordHash)
}

func (m *memoryUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.records[id]
	if !ok {
		return notFoundErr("user")
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memoryUsers) TrackAttemptedLogin(ctx context.Context, user *identity.User) error {
	return m.TrackAttemptedLoginTx(ctx, nil, user)
}

func (m *memoryUsers) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *identity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.records[user.ID]; ok {
		u.LoginAttempts++
	}
	return nil
}

func (m *memoryUsers) TrackSuccessfulLogin(ctx context.Context, user *identity.User) error {
	return m.TrackSuccessfulLoginTx(ctx, nil, user)
}

func (m *memoryUsers) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *identity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.records[user.ID]; ok {
		u.LoginAttempts = 0
	}
	return nil
}

// memorySessions is an in-memory Sessions repository.
type memorySessions struct {
	mu      sync.Mutex
	records map[string]*identity.Session
}

func newMemorySessions() *memorySessions {
	return &memorySessions{records: map[string]*identity.Session{}}
}

func (m *memorySessions) snapshot(s *identity.Session) *identity.Session {
	c := *s
	return &c
}

func (m *memorySessions) GetByID(ctx context.Context, id string) (*identity.Session, error) {
	return m.GetByIDTx(ctx, nil, id)
}

func (m *memorySessions) GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*identity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.records[id]; ok {
		return m.snapshot(s), nil
	}
	return nil, notFoundErr("session")
}

func (m *memorySessions) Create(ctx context.Context, record *identity.Session) (*identity.Session, error) {
	return m.CreateTx(ctx, nil, record)
}

func (m *memorySessions) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Session) (*identity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = m.snapshot(record)
	return record, nil
}

func (m *memorySessions) Expire(ctx context.Context, id string) error {
	return m.ExpireTx(ctx, nil, id)
}

func (m *memorySessions) ExpireTx(ctx context.Context, tx bun.IDB, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.records[id]; ok {
		s.Expired = true
	}
	return nil
}

func (m *memorySessions) ListForUser(ctx context.Context, userID string, kind identity.SessionKind) ([]*identity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*identity.Session
	for _, s := range m.records {
		if s.UserID != userID {
			continue
		}
		if kind != "" && s.Kind != kind {
			continue
		}
		out = append(out, m.snapshot(s))
	}
	return out, nil
}

// memoryRoles is an in-memory Roles repository.
type memoryRoles struct {
	mu          sync.Mutex
	roles       map[string]*identity.Role
	permissions map[string]*identity.Permission
	userRoles   map[string][]string
	rolePerms   map[string][]string
}

func newMemoryRoles() *memoryRoles {
	return &memoryRoles{
		roles:       map[string]*identity.Role{},
		permissions: map[string]*identity.Permission{},
		userRoles:   map[string][]string{},
		rolePerms:   map[string][]string{},
	}
}

func (m *memoryRoles) GetByID(ctx context.Context, id string) (*identity.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.roles[id]; ok {
		c := *r
		return &c, nil
	}
	return nil, notFoundErr("role")
}

func (m *memoryRoles) GetByName(ctx context.Context, name string) (*identity.Role, error) {
	return m.GetByNameTx(ctx, nil, name)
}

func (m *memoryRoles) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*identity.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == name {
			c := *r
			return &c, nil
		}
	}
	return nil, notFoundErr("role")
}

func (m *memoryRoles) Create(ctx context.Context, record *identity.Role) (*identity.Role, error) {
	return m.CreateTx(ctx, nil, record)
}

func (m *memoryRoles) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Role) (*identity.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.ID == "" {
		id, err := identity.GenerateID(identity.DefaultIDLength)
		if err != nil {
			return nil, err
		}
		record.ID = id
	}
	c := *record
	m.roles[record.ID] = &c
	return record, nil
}

func (m *memoryRoles) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *identity.Role) (*identity.Role, error) {
	if existing, err := m.GetByNameTx(ctx, tx, record.Name); err == nil {
		return existing, nil
	}
	return m.CreateTx(ctx, tx, record)
}

func (m *memoryRoles) CreatePermissionTx(ctx context.Context, tx bun.IDB, record *identity.Permission) (*identity.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.ID == "" {
		id, err := identity.GenerateID(identity.DefaultIDLength)
		if err != nil {
			return nil, err
		}
		record.ID = id
	}
	c := *record
	m.permissions[record.ID] = &c
	return record, nil
}

func (m *memoryRoles) AssignRoleTx(ctx context.Context, tx bun.IDB, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userRoles[userID] = append(m.userRoles[userID], roleID)
	return nil
}

func (m *memoryRoles) GrantPermissionTx(ctx context.Context, tx bun.IDB, roleID, permissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolePerms[roleID] = append(m.rolePerms[roleID], permissionID)
	return nil
}

func (m *memoryRoles) ListForUser(ctx context.Context, userID string) ([]*identity.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*identity.Role
	for _, roleID := range m.userRoles[userID] {
		if r, ok := m.roles[roleID]; ok {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memoryRoles) ListPermissions(ctx context.Context, roleID string) ([]*identity.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*identity.Permission
	for _, permID := range m.rolePerms[roleID] {
		if p, ok := m.permissions[permID]; ok {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memoryRoles) HasPermission(ctx context.Context, roleID string, check identity.PermissionCheck) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, permID := range m.rolePerms[roleID] {
		p, ok := m.permissions[permID]
		if !ok {
			continue
		}
		if p.Resource != check.Resource || p.Action != check.Action {
			continue
		}
		if check.ResourceID != "" && p.ResourceID != check.ResourceID {
			continue
		}
		return true, nil
	}
	return false, nil
}

// fakeRepo bundles the in-memory repositories behind RepositoryManager.
// RunInTx runs the closure with a zero transaction; the fakes ignore it.
type fakeRepo struct {
	users    *memoryUsers
	sessions *memorySessions
	roles    *memoryRoles
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:    newMemoryUsers(),
		sessions: newMemorySessions(),
		roles:    newMemoryRoles(),
	}
}

func (f *fakeRepo) Validate() error { return nil }
func (f *fakeRepo) MustValidate()   {}

func (f *fakeRepo) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn(ctx, bun.Tx{})
	}
}

func (f *fakeRepo) Users() identity.Users       { return f.users }
func (f *fakeRepo) Sessions() identity.Sessions { return f.sessions }
func (f *fakeRepo) Roles() identity.Roles       { return f.roles }

// MockSessions is a testify mock for the Sessions repository, used
// where tests need to force storage failures.
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) GetByID(ctx context.Context, id string) (*identity.Session, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*identity.Session)
	return s, args.Error(1)
}

func (m *MockSessions) GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*identity.Session, error) {
	args := m.Called(ctx, tx, id)
	s, _ := args.Get(0).(*identity.Session)
	return s, args.Error(1)
}

func (m *MockSessions) Create(ctx context.Context, record *identity.Session) (*identity.Session, error) {
	args := m.Called(ctx, record)
	if s, ok := args.Get(0).(*identity.Session); ok && s != nil {
		return s, args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockSessions) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Session) (*identity.Session, error) {
	args := m.Called(ctx, tx, record)
	if s, ok := args.Get(0).(*identity.Session); ok && s != nil {
		return s, args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockSessions) Expire(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessions) ExpireTx(ctx context.Context, tx bun.IDB, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockSessions) ListForUser(ctx context.Context, userID string, kind identity.SessionKind) ([]*identity.Session, error) {
	args := m.Called(ctx, userID, kind)
	s, _ := args.Get(0).([]*identity.Session)
	return s, args.Error(1)
}

// mockSessionRepo swaps only the sessions repository in a fakeRepo.
type mockSessionRepo struct {
	*fakeRepo
	sessions *MockSessions
}

func (f *mockSessionRepo) Sessions() identity.Sessions { return f.sessions }

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}
