package ldaprecord

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// ConnectionConfig holds the settings for a directory connection.
type ConnectionConfig struct {
	// Connection settings
	URL     string        // ldap://, ldaps://, or ldapi:// URL
	BaseDN  string        // Default search base
	Timeout time.Duration `default:"30s"` // Network timeout per operation

	// Authentication settings
	Username string // Bind DN, UPN, or SAM format
	Password string // Password for simple bind

	// Kerberos settings (GSSAPI bind)
	KerberosRealm  string // Kerberos realm
	KerberosKeytab string // Path to a keytab file
	KerberosCCache string // Path to a credential cache
	KerberosConfig string // Path to krb5.conf (default /etc/krb5.conf)
	KerberosSPN    string // Explicit service principal override

	// TLS settings
	TLSConfig *tls.Config // Custom TLS configuration
	StartTLS  bool        // Upgrade a plain connection with StartTLS

	// Retry settings for transient server conditions
	MaxRetries     int           `default:"3"`
	InitialBackoff time.Duration `default:"500ms"`
	MaxBackoff     time.Duration `default:"30s"`
	BackoffFactor  float64       `default:"2.0"`

	// Logger receives operation events. Defaults to a nop logger.
	Logger Logger
}

// NewConnectionConfig returns a config populated with defaults.
func NewConnectionConfig() *ConnectionConfig {
	cfg := &ConnectionConfig{}
	_ = defaults.Set(cfg)
	cfg.Logger = NopLogger()
	return cfg
}

// Validate checks that the configuration is usable.
func (c *ConnectionConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("connection URL is required")
	}
	if !strings.HasPrefix(c.URL, "ldap://") &&
		!strings.HasPrefix(c.URL, "ldaps://") &&
		!strings.HasPrefix(c.URL, "ldapi://") {
		return fmt.Errorf("unsupported URL scheme in %q", c.URL)
	}
	if c.BackoffFactor < 1 {
		return fmt.Errorf("backoff factor must be >= 1, got %v", c.BackoffFactor)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", c.MaxRetries)
	}
	return nil
}

// normalize fills zero values with defaults so a hand-built config behaves
// like one from NewConnectionConfig.
func (c *ConnectionConfig) normalize() {
	_ = defaults.Set(c)
	if c.Logger == nil {
		c.Logger = NopLogger()
	}
}

// usesKerberos reports whether the config selects GSSAPI authentication.
func (c *ConnectionConfig) usesKerberos() bool {
	return c.KerberosRealm != "" || c.KerberosKeytab != "" || c.KerberosCCache != ""
}
