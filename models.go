package identity

import (
	"time"

	"github.com/uptrace/bun"
)

// Resource enumerates the platform resource classes permissions apply to.
type Resource = string

const (
	ResourceBlogPost         Resource = "blog_post"
	ResourceUser             Resource = "user"
	ResourceBlogPostComment  Resource = "blog_post_comment"
	ResourceBlogPostTag      Resource = "blog_post_tag"
	ResourceBlogPostCategory Resource = "blog_post_category"
	ResourceAdminAction      Resource = "admin_action"
)

// Action is the access level a permission grants.
type Action = string

const (
	// ActionRead grants read access
	ActionRead Action = "r"
	// ActionReadWrite grants read and write access
	ActionReadWrite Action = "rw"
)

// User is the account model. Email and username are unique case
// insensitively; the stored values keep the caller's casing.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             string     `bun:"id,pk" json:"id,omitempty"`
	Name           string     `bun:"name" json:"name,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	IsVerified     bool       `bun:"is_verified,notnull,default:false" json:"is_verified,omitempty"`
	IsBanned       bool       `bun:"is_banned,notnull,default:false" json:"is_banned,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at,nullzero" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// SessionKind discriminates the four session variants sharing one table.
type SessionKind string

const (
	SessionAccountVerification SessionKind = "account_verification"
	SessionOtp                 SessionKind = "otp"
	SessionAuth                SessionKind = "auth"
	SessionPasswordReset       SessionKind = "password_reset"
)

// Session is a server-side record granting a time-bounded right to
// perform one action. A session is usable while Expired is false, the
// clock is before ExpiresAt, and the presented token (when the kind
// requires one) equals Token. Consumption flips Expired; rows are never
// deleted by this package.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            string      `bun:"id,pk" json:"id,omitempty"`
	UserID        string      `bun:"user_id,notnull" json:"user_id,omitempty"`
	User          *User       `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Kind          SessionKind `bun:"kind,notnull" json:"kind,omitempty"`
	Token         string      `bun:"token" json:"-"`
	Expired       bool        `bun:"expired,notnull,default:false" json:"expired,omitempty"`
	CreatedAt     time.Time   `bun:"created_at,notnull" json:"created_at,omitempty"`
	ExpiresAt     time.Time   `bun:"expires_at,notnull" json:"expires_at,omitempty"`
}

// TTL reports the remaining lifetime relative to now, zero when the
// session is already past its deadline.
func (s *Session) TTL(now time.Time) time.Duration {
	if s == nil || !now.Before(s.ExpiresAt) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// Usable reports whether the session would pass validation at now with
// the given token.
func (s *Session) Usable(now time.Time, token string) bool {
	if s == nil || s.Expired || !now.Before(s.ExpiresAt) {
		return false
	}
	if s.Token != "" && s.Token != token {
		return false
	}
	return true
}

// Role groups permissions under a name users can be assigned to.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            string     `bun:"id,pk" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Permission grants an action over a resource class, optionally scoped
// to a single instance through ResourceID.
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:perm"`
	ID            string     `bun:"id,pk" json:"id,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Resource      Resource   `bun:"resource,notnull" json:"resource,omitempty"`
	Action        Action     `bun:"action,notnull" json:"action,omitempty"`
	ResourceID    string     `bun:"resource_id" json:"resource_id,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// RoleAssignment links a user to a role.
type RoleAssignment struct {
	bun.BaseModel `bun:"table:role_assignments,alias:ra"`
	UserID        string `bun:"user_id,pk" json:"user_id,omitempty"`
	RoleID        string `bun:"role_id,pk" json:"role_id,omitempty"`
}

// PermissionAssignment links a role to a permission.
type PermissionAssignment struct {
	bun.BaseModel `bun:"table:permission_assignments,alias:pa"`
	RoleID        string `bun:"role_id,pk" json:"role_id,omitempty"`
	PermissionID  string `bun:"permission_id,pk" json:"permission_id,omitempty"`
}
