package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeUserNotFound       = "USER_NOT_FOUND"
	TextCodeUserBanned         = "USER_BANNED"
	TextCodeUserNotVerified    = "USER_NOT_VERIFIED"
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeUsernameTaken      = "USERNAME_TAKEN"
	TextCodeAlreadyVerified    = "ALREADY_VERIFIED"
	TextCodeSessionNotFound    = "SESSION_NOT_FOUND"
	TextCodeSessionExpired     = "SESSION_EXPIRED"
	TextCodeTokenMismatch      = "TOKEN_MISMATCH"
	TextCodeInvalidSession     = "INVALID_SESSION"
	TextCodePasswordMismatch   = "PASSWORD_MISMATCH"
	TextCodeReissueNotAllowed  = "REISSUE_NOT_ALLOWED"
	TextCodeInvalidCode        = "INVALID_CODE"
	TextCodeOTPLoginDisabled   = "OTP_LOGIN_DISABLED"
	TextCodeEnvelopeExpired    = "ENVELOPE_EXPIRED"
	TextCodeEnvelopeMalformed  = "ENVELOPE_MALFORMED"
)

// ErrInvalidCredentials covers both a wrong password and a malformed
// stored hash; callers cannot tell the two apart.
var ErrInvalidCredentials = goerrors.New("Invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserNotFound is returned where disclosing absence is acceptable.
var ErrUserNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUserBanned rejects any authentication attempt by a banned account.
var ErrUserBanned = goerrors.New("User is banned", goerrors.CategoryAuthz).
	WithTextCode(TextCodeUserBanned).
	WithCode(goerrors.CodeForbidden)

// ErrUserNotVerified rejects logins before the email has been verified.
var ErrUserNotVerified = goerrors.New("User is not verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeUserNotVerified).
	WithCode(goerrors.CodeUnauthorized)

var ErrEmailTaken = goerrors.New("Email is already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

var ErrUsernameTaken = goerrors.New("Username is already taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

var ErrAlreadyVerified = goerrors.New("Account is already verified", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(goerrors.CodeConflict)

// Session manager errors. The orchestrator collapses these into
// ErrInvalidSession at the flow boundary so callers cannot tell which
// check failed.
var ErrSessionNotFound = goerrors.New("Session not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrSessionExpired = goerrors.New("Session has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenMismatch = goerrors.New("Session token does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidSession is the single undifferentiated answer for an
// unknown, expired, or token-mismatched session in the verification and
// password reset flows.
var ErrInvalidSession = goerrors.New("Invalid or expired session", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidSession).
	WithCode(goerrors.CodeBadRequest)

var ErrPasswordMismatch = goerrors.New("Password and confirmation do not match", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrReissueNotAllowed is returned when an OTP replacement is requested
// outside the policy's re-issue window.
var ErrReissueNotAllowed = goerrors.New("Code cannot be reissued at this time", goerrors.CategoryValidation).
	WithTextCode(TextCodeReissueNotAllowed).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidCode rejects a wrong OTP code presented against an
// otherwise live session.
var ErrInvalidCode = goerrors.New("Invalid code", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCode).
	WithCode(goerrors.CodeUnauthorized)

var ErrOTPLoginDisabled = goerrors.New("OTP login is not enabled", goerrors.CategoryAuthz).
	WithTextCode(TextCodeOTPLoginDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString guards the hashing primitives from empty input.
var ErrNoEmptyString = goerrors.New("Value cannot be an empty string", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// Envelope errors surfaced by the TokenService at the HTTP boundary.
var ErrEnvelopeExpired = goerrors.New("Session envelope has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeEnvelopeExpired).
	WithCode(goerrors.CodeUnauthorized)

var ErrEnvelopeMalformed = goerrors.New("Session envelope is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeEnvelopeMalformed).
	WithCode(goerrors.CodeUnauthorized)

// withMeta attaches metadata to a copy of a sentinel. Sentinels are
// shared package state; WithMetadata writes into the receiver, so the
// clone keeps one request's identifiers out of another's error.
func withMeta(sentinel *goerrors.Error, metadata map[string]any) error {
	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	return clone.WithMetadata(metadata)
}

// invalidSession tags err with the undifferentiated session error,
// keeping the original failure in metadata for logs.
func invalidSession(err error) error {
	if err == nil {
		return nil
	}
	return withMeta(ErrInvalidSession, map[string]any{
		"cause": err.Error(),
	})
}
