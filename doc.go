// Package identity implements the identity core of a community platform:
// account registration, email verification, login with an optional one
// time password second factor, password reset, and role/permission based
// authorization.
//
// The package is organized around three pieces:
//
//   - SessionManager drives the lifecycle of four session kinds
//     (account verification, OTP, authenticated session, password reset)
//     backed by a single tagged Session entity. Sessions move from
//     Created to Valid and terminate as Consumed or Expired; consumption
//     is idempotent and records are never deleted.
//   - PermissionEvaluator answers RBAC questions over role and
//     permission assignments, with bypass-role short-circuiting and
//     resource-scoped grants.
//   - Command handlers (RegisterUser, VerifyEmail, Login, VerifyOTP,
//     ResendOTP, InitializePasswordReset, FinalizePasswordReset, Logout)
//     compose the repositories, the session manager, the credential
//     verifier, and the mailer into the orchestration flows.
//
// Transport concerns stay outside the core: handlers return session ids
// and TTLs, and the RouteAuthenticator in http.go is the thin boundary
// adapter that exchanges those values for secure http-only cookies.
package identity
