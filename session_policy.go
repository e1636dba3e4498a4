package identity

import "time"

// SessionPolicy describes how one session kind behaves: how long it
// lives, whether a numeric token gates it, and for kinds that support
// rotation, the bounds of the re-issue window.
type SessionPolicy struct {
	// TTL is the lifetime applied at creation.
	TTL time.Duration
	// ExtendedTTL replaces TTL when the caller asks for an extended
	// session (remember-me logins). Zero means no extended variant.
	ExtendedTTL time.Duration
	// RequiresToken controls whether Create mints a numeric code and
	// Validate demands it back.
	RequiresToken bool
	// ReissueAfter is the minimum age a session must reach before a
	// replacement may be issued. Zero disables rotation.
	ReissueAfter time.Duration
	// ReissueGrace is the maximum age, measured from creation, past
	// which a replacement is refused even though the session itself
	// may still be live.
	ReissueGrace time.Duration
}

// Reissuable reports whether the policy supports rotation at all.
func (p SessionPolicy) Reissuable() bool {
	return p.ReissueAfter > 0 || p.ReissueGrace > 0
}

// SessionPolicies maps each kind to its policy.
type SessionPolicies map[SessionKind]SessionPolicy

// ManagerConfig carries the tunable durations for the session manager.
// TTLs are configuration, not constants baked into the flows.
type ManagerConfig struct {
	VerificationTTL time.Duration
	OtpTTL          time.Duration
	OtpReissueAfter time.Duration
	OtpReissueGrace time.Duration
	AuthTTL         time.Duration
	AuthExtendedTTL time.Duration
	ResetTTL        time.Duration
	CodeDigits      int
	IDLength        int
}

// DefaultManagerConfig mirrors the production defaults: a week for
// email verification, ten minutes for OTP codes with a one minute
// floor and fifteen minute ceiling on re-issue, a day for regular
// logins and sixty days for remember-me, ten minutes for resets.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		VerificationTTL: 7 * 24 * time.Hour,
		OtpTTL:          10 * time.Minute,
		OtpReissueAfter: time.Minute,
		OtpReissueGrace: 15 * time.Minute,
		AuthTTL:         24 * time.Hour,
		AuthExtendedTTL: 60 * 24 * time.Hour,
		ResetTTL:        10 * time.Minute,
		CodeDigits:      DefaultCodeDigits,
		IDLength:        DefaultIDLength,
	}
}

// Policies expands the config into the per-kind policy table.
func (c ManagerConfig) Policies() SessionPolicies {
	return SessionPolicies{
		SessionAccountVerification: {
			TTL:           c.VerificationTTL,
			RequiresToken: true,
		},
		SessionOtp: {
			TTL:           c.OtpTTL,
			RequiresToken: true,
			ReissueAfter:  c.OtpReissueAfter,
			ReissueGrace:  c.OtpReissueGrace,
		},
		SessionAuth: {
			TTL:         c.AuthTTL,
			ExtendedTTL: c.AuthExtendedTTL,
		},
		SessionPasswordReset: {
			TTL:           c.ResetTTL,
			RequiresToken: true,
		},
	}
}
