package identity_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
)

func TestUserFromContext(t *testing.T) {
	tests := []struct {
		name     string
		setupCtx func() context.Context
		wantOK   bool
	}{
		{
			name: "should return user when present in context",
			setupCtx: func() context.Context {
				user := &identity.User{ID: "usr_1", Email: "ada@example.com"}
				return identity.WithUser(context.Background(), user)
			},
			wantOK: true,
		},
		{
			name: "should return false when no user in context",
			setupCtx: func() context.Context {
				return context.Background()
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, ok := identity.UserFromContext(tt.setupCtx())
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, "usr_1", user.ID)
				assert.Equal(t, "ada@example.com", user.Email)
			} else {
				assert.Nil(t, user)
			}
		})
	}
}

func TestSessionFromContext(t *testing.T) {
	session := &identity.Session{ID: "ses_1", Kind: identity.SessionAuth}

	ctx := identity.WithSession(context.Background(), session)
	got, ok := identity.SessionFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ses_1", got.ID)
	assert.Equal(t, identity.SessionAuth, got.Kind)

	got, ok = identity.SessionFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestUserAndSessionContextsAreIndependent(t *testing.T) {
	ctx := identity.WithUser(context.Background(), &identity.User{ID: "usr_1"})

	_, ok := identity.SessionFromContext(ctx)
	assert.False(t, ok)

	ctx = identity.WithSession(ctx, &identity.Session{ID: "ses_1"})

	user, ok := identity.UserFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "usr_1", user.ID)

	session, ok := identity.SessionFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ses_1", session.ID)
}
