package identity_test

import (
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category goerrors.Category
		textCode string
	}{
		{"invalid credentials", identity.ErrInvalidCredentials, goerrors.CategoryAuth, identity.TextCodeInvalidCredentials},
		{"user not found", identity.ErrUserNotFound, goerrors.CategoryNotFound, identity.TextCodeUserNotFound},
		{"user banned", identity.ErrUserBanned, goerrors.CategoryAuthz, identity.TextCodeUserBanned},
		{"user not verified", identity.ErrUserNotVerified, goerrors.CategoryAuth, identity.TextCodeUserNotVerified},
		{"email taken", identity.ErrEmailTaken, goerrors.CategoryConflict, identity.TextCodeEmailTaken},
		{"username taken", identity.ErrUsernameTaken, goerrors.CategoryConflict, identity.TextCodeUsernameTaken},
		{"already verified", identity.ErrAlreadyVerified, goerrors.CategoryConflict, identity.TextCodeAlreadyVerified},
		{"session not found", identity.ErrSessionNotFound, goerrors.CategoryNotFound, identity.TextCodeSessionNotFound},
		{"session expired", identity.ErrSessionExpired, goerrors.CategoryAuth, identity.TextCodeSessionExpired},
		{"token mismatch", identity.ErrTokenMismatch, goerrors.CategoryAuth, identity.TextCodeTokenMismatch},
		{"invalid session", identity.ErrInvalidSession, goerrors.CategoryBadInput, identity.TextCodeInvalidSession},
		{"password mismatch", identity.ErrPasswordMismatch, goerrors.CategoryValidation, identity.TextCodePasswordMismatch},
		{"reissue not allowed", identity.ErrReissueNotAllowed, goerrors.CategoryValidation, identity.TextCodeReissueNotAllowed},
		{"invalid code", identity.ErrInvalidCode, goerrors.CategoryAuth, identity.TextCodeInvalidCode},
		{"otp login disabled", identity.ErrOTPLoginDisabled, goerrors.CategoryAuthz, identity.TextCodeOTPLoginDisabled},
		{"envelope expired", identity.ErrEnvelopeExpired, goerrors.CategoryAuth, identity.TextCodeEnvelopeExpired},
		{"envelope malformed", identity.ErrEnvelopeMalformed, goerrors.CategoryAuth, identity.TextCodeEnvelopeMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rich *goerrors.Error
			require.True(t, goerrors.As(tt.err, &rich))
			assert.Equal(t, tt.category, rich.Category)
			assert.Equal(t, tt.textCode, rich.TextCode)
		})
	}
}

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("login flow: %w", identity.ErrInvalidCredentials)

	var rich *goerrors.Error
	require.True(t, goerrors.As(wrapped, &rich))
	assert.Equal(t, identity.TextCodeInvalidCredentials, rich.TextCode)
}

func TestErrNoEmptyStringIsValidation(t *testing.T) {
	var rich *goerrors.Error
	require.True(t, goerrors.As(identity.ErrNoEmptyString, &rich))
	assert.Equal(t, goerrors.CategoryValidation, rich.Category)
	assert.Equal(t, goerrors.CodeBadRequest, rich.Code)
}
