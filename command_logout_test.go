package identity_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogoutHandlerConsumesSession(t *testing.T) {
	h := newCommandHarness(t)
	user := h.seedUser(t, "ada@example.com", "ada", "analytical-engine")

	session, err := h.sessions.Create(context.Background(), user.ID, identity.SessionAuth)
	require.NoError(t, err)

	handler := identity.NewLogoutHandler(h.repo, h.sessions).
		WithActivitySink(h.sink).
		WithLogger(testLogger{})
	require.NoError(t, handler.Execute(context.Background(), identity.LogoutMessage{
		Session: session.ID,
	}))

	stored, err := h.repo.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, stored.Expired)

	_, err = h.sessions.Validate(context.Background(), session.ID, "")
	requireTextCode(t, err, identity.TextCodeSessionExpired)

	events := h.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, identity.ActivityEventLogout, events[0].EventType)
	assert.Equal(t, user.ID, events[0].UserID)
	assert.Equal(t, session.ID, events[0].SessionID)
}

func TestLogoutHandlerUnknownSessionIsNoop(t *testing.T) {
	h := newCommandHarness(t)

	handler := identity.NewLogoutHandler(h.repo, h.sessions).
		WithActivitySink(h.sink).
		WithLogger(testLogger{})
	require.NoError(t, handler.Execute(context.Background(), identity.LogoutMessage{
		Session: "missing",
	}))
	assert.Empty(t, h.sink.Events())
}

func TestLogoutHandlerEmptySessionIsNoop(t *testing.T) {
	h := newCommandHarness(t)

	handler := identity.NewLogoutHandler(h.repo, h.sessions).WithLogger(testLogger{})
	require.NoError(t, handler.Execute(context.Background(), identity.LogoutMessage{}))
}

func TestLogoutHandlerIsIdempotent(t *testing.T) {
	h := newCommandHarness(t)
	user := h.seedUser(t, "ada@example.com", "ada", "analytical-engine")

	session, err := h.sessions.Create(context.Background(), user.ID, identity.SessionAuth)
	require.NoError(t, err)

	handler := identity.NewLogoutHandler(h.repo, h.sessions).WithLogger(testLogger{})
	msg := identity.LogoutMessage{Session: session.ID}
	require.NoError(t, handler.Execute(context.Background(), msg))
	require.NoError(t, handler.Execute(context.Background(), msg))
}
