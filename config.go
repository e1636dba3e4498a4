package identity

// SimpleConfig is a plain struct implementation of Config for hosts
// that do not bring their own configuration layer.
type SimpleConfig struct {
	SigningKey           string
	ContextKey           string
	Issuer               string
	Audience             []string
	RejectedRouteKey     string
	RejectedRouteDefault string
	BootstrapAdminEmail  string
}

// NewDefaultConfig returns a config with conventional cookie and
// redirect keys; the signing key must still be provided by the host.
func NewDefaultConfig(signingKey string) *SimpleConfig {
	return &SimpleConfig{
		SigningKey:           signingKey,
		ContextKey:           "identity_session",
		RejectedRouteKey:     "rejected_route",
		RejectedRouteDefault: "/",
	}
}

func (c *SimpleConfig) GetSigningKey() string           { return c.SigningKey }
func (c *SimpleConfig) GetContextKey() string           { return c.ContextKey }
func (c *SimpleConfig) GetIssuer() string               { return c.Issuer }
func (c *SimpleConfig) GetAudience() []string           { return c.Audience }
func (c *SimpleConfig) GetRejectedRouteKey() string     { return c.RejectedRouteKey }
func (c *SimpleConfig) GetRejectedRouteDefault() string { return c.RejectedRouteDefault }
func (c *SimpleConfig) GetBootstrapAdminEmail() string  { return c.BootstrapAdminEmail }

var _ Config = (*SimpleConfig)(nil)
