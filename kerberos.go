package ldaprecord

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// BindKerberos performs a GSSAPI bind using the configured Kerberos
// credentials. Credential sources are tried in order: explicit credential
// cache, explicit keytab, then username/password against the KDC.
func (c *conn) BindKerberos(ctx context.Context) error {
	return logOperation(c.logger, "gssapi_bind", map[string]any{
		"realm": c.cfg.KerberosRealm,
	}, func() error {
		client, err := newGSSAPIClient(c.cfg)
		if err != nil {
			return fmt.Errorf("failed to create GSSAPI client: %w", err)
		}
		defer func() {
			_ = client.DeleteSecContext()
		}()

		spn, err := servicePrincipal(c.cfg)
		if err != nil {
			return fmt.Errorf("failed to build service principal: %w", err)
		}

		return c.withRetry(ctx, func() error {
			return c.ldap.GSSAPIBind(client, spn, "")
		})
	})
}

// newGSSAPIClient creates a GSSAPI client from the configured credentials.
func newGSSAPIClient(cfg *ConnectionConfig) (ldap.GSSAPIClient, error) {
	krb5conf := cfg.KerberosConfig
	if krb5conf == "" {
		krb5conf = "/etc/krb5.conf"
	}
	if !fileExists(krb5conf) {
		return nil, fmt.Errorf("kerberos configuration file not found at %s", krb5conf)
	}

	if cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache) {
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab) {
		return gssapi.NewClientWithKeytab(cfg.Username, cfg.KerberosRealm, cfg.KerberosKeytab, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if cfg.Username != "" && cfg.Password != "" {
		return gssapi.NewClientWithPassword(cfg.Username, cfg.KerberosRealm, cfg.Password, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable credentials for Kerberos authentication")
}

// servicePrincipal builds the ldap/<host> SPN from the connection URL
// unless an explicit override is configured.
func servicePrincipal(cfg *ConnectionConfig) (string, error) {
	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}

	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection URL: %w", err)
	}

	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("connection URL %q has no hostname", cfg.URL)
	}
	// Strip a trailing FQDN dot; SPNs never carry one.
	host = strings.TrimSuffix(host, ".")

	return "ldap/" + host, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
