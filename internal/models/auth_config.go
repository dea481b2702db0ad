package models

// AuthConfig configures tenant resolution for inbound requests. Role-level
// authorization is enforced upstream; this layer only establishes which
// tenant a request belongs to.
type AuthConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	HeaderName  string   `yaml:"header_name,omitempty" json:"header_name,omitzero"`
	JWTSecret   string   `yaml:"jwt_secret,omitempty" json:"-"`
	TenantClaim string   `yaml:"tenant_claim,omitempty" json:"tenant_claim,omitzero"`
	SkipPaths   []string `yaml:"skip_paths,omitempty" json:"skip_paths,omitzero"`
}

// IsZero reports whether the section was absent from configuration, as
// opposed to deliberately disabled.
func (c AuthConfig) IsZero() bool {
	return !c.Enabled && c.HeaderName == "" && c.JWTSecret == "" &&
		c.TenantClaim == "" && c.SkipPaths == nil
}

// DefaultAuthConfig returns the configuration used when the auth section is
// omitted: tenant resolution on, health checks exempt.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled:     true,
		HeaderName:  "X-API-Key",
		TenantClaim: "org_id",
		SkipPaths:   []string{"/health"},
	}
}
