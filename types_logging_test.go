package identity_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// formattingLoggerSpy renders every call through fmt.Sprintf the way
// defLogger does, so a call site passing key-value pairs against the
// printf contract shows up as %! noise in the captured line.
type formattingLoggerSpy struct {
	mu    sync.Mutex
	lines []string
}

func (l *formattingLoggerSpy) log(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *formattingLoggerSpy) Debug(format string, args ...any) { l.log(format, args...) }
func (l *formattingLoggerSpy) Info(format string, args ...any)  { l.log(format, args...) }
func (l *formattingLoggerSpy) Warn(format string, args ...any)  { l.log(format, args...) }
func (l *formattingLoggerSpy) Error(format string, args ...any) { l.log(format, args...) }

func (l *formattingLoggerSpy) rendered() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func TestRouteAuthenticatorLogLinesRenderCleanly(t *testing.T) {
	h := newRouteHarness(t, false)
	spy := &formattingLoggerSpy{}
	h.auther.Logger = spy

	mockCtx := new(MockContext)
	mockCtx.On("OriginalURL").Return("/admin/posts")
	mockCtx.On("Cookie", mock.Anything).Return()
	h.auther.SetRedirect(mockCtx)

	errCtx := new(MockContext)
	errCtx.On("OriginalURL").Return("/admin/posts")
	errCtx.On("Cookie", mock.Anything).Return()
	errCtx.On("Method").Return("GET")
	errCtx.On("Redirect", "/login", []int{http.StatusFound}).Return(nil)
	require.NoError(t, h.auther.AuthErrorHandler(errCtx, identity.ErrSessionExpired))

	lines := spy.rendered()
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.NotContains(t, line, "%!", "log call site does not match the printf Logger contract: %s", line)
	}
}

func TestRouteAuthenticatorLoginFailureLogRendersCleanly(t *testing.T) {
	h := newRouteHarness(t, false)
	h.seedUser(t, "ada@example.com", "ada", "analytical-engine")
	spy := &formattingLoggerSpy{}
	h.auther.Logger = spy

	mockCtx := new(MockContext)
	mockCtx.On("Context").Return(context.Background())

	_, err := h.auther.Login(mockCtx, testLoginPayload{
		Identifier: "ada@example.com",
		Password:   "wrong-password",
	})
	require.Error(t, err)

	lines := spy.rendered()
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.NotContains(t, line, "%!", "log call site does not match the printf Logger contract: %s", line)
	}
}
