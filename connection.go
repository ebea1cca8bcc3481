package ldaprecord

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// SearchScope defines how deep a search descends from its base.
type SearchScope int

const (
	ScopeBaseObject SearchScope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

func (s SearchScope) ldapScope() int {
	switch s {
	case ScopeBaseObject:
		return ldap.ScopeBaseObject
	case ScopeSingleLevel:
		return ldap.ScopeSingleLevel
	default:
		return ldap.ScopeWholeSubtree
	}
}

func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	default:
		return "sub"
	}
}

// SearchRequest encapsulates the parameters of a directory search.
type SearchRequest struct {
	BaseDN     string
	Scope      SearchScope
	Filter     string
	Attributes []string
	SizeLimit  int
	TimeLimit  time.Duration
}

// SearchResult contains the entries returned by a search.
type SearchResult struct {
	Entries []*ldap.Entry
	Total   int
}

// AddRequest encapsulates the parameters of an entry creation.
type AddRequest struct {
	DN         string
	Attributes map[string][]string
}

// ModifyRequest encapsulates attribute-level changes to an entry. Delete
// entries with an empty value slice remove the whole attribute; with values,
// only those values are removed.
type ModifyRequest struct {
	DN                string
	AddAttributes     map[string][]string
	ReplaceAttributes map[string][]string
	DeleteAttributes  map[string][]string
}

// Connection issues raw protocol operations against one directory server.
// Implementations are synchronous: every call blocks until the server
// responds. A Connection is not safe for concurrent use.
type Connection interface {
	Search(ctx context.Context, req *SearchRequest) (*SearchResult, error)
	SearchWithPaging(ctx context.Context, req *SearchRequest, pageSize uint32) (*SearchResult, error)
	Add(ctx context.Context, req *AddRequest) error
	Modify(ctx context.Context, req *ModifyRequest) error
	Delete(ctx context.Context, dn string) error
	Bind(ctx context.Context, username, password string) error
	BindKerberos(ctx context.Context) error
	WhoAmI(ctx context.Context) (string, error)
	BaseDN() string
	Close() error
}

// ldapConn is the subset of *ldap.Conn the connection layer uses.
type ldapConn interface {
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzID string) error
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Del(req *ldap.DelRequest) error
	WhoAmI(controls []ldap.Control) (*ldap.WhoAmIResult, error)
	Close() error
}

// conn implements Connection over go-ldap.
type conn struct {
	cfg    *ConnectionConfig
	ldap   ldapConn
	logger Logger
}

// Connect dials the configured server, performs StartTLS when requested,
// and binds with the configured credentials.
func Connect(ctx context.Context, cfg *ConnectionConfig) (Connection, error) {
	if cfg == nil {
		cfg = NewConnectionConfig()
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}

	var opts []ldap.DialOpt
	if cfg.TLSConfig != nil {
		opts = append(opts, ldap.DialWithTLSConfig(cfg.TLSConfig))
	}

	l, err := ldap.DialURL(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.URL, err)
	}
	if cfg.Timeout > 0 {
		l.SetTimeout(cfg.Timeout)
	}

	if cfg.StartTLS {
		if err := l.StartTLS(cfg.TLSConfig); err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("StartTLS failed: %w", err)
		}
	}

	c := &conn{cfg: cfg, ldap: l, logger: cfg.Logger}

	switch {
	case cfg.usesKerberos():
		err = c.BindKerberos(ctx)
	case cfg.Username != "":
		err = c.Bind(ctx, cfg.Username, cfg.Password)
	}
	if err != nil {
		_ = l.Close()
		return nil, err
	}

	c.logger.Info("connected", map[string]any{
		"url":     cfg.URL,
		"base_dn": cfg.BaseDN,
	})

	return c, nil
}

func (c *conn) BaseDN() string {
	return c.cfg.BaseDN
}

func (c *conn) Close() error {
	return c.ldap.Close()
}

// Bind authenticates with a simple bind. An empty password performs an
// unauthenticated bind with the given name.
func (c *conn) Bind(ctx context.Context, username, password string) error {
	return logOperation(c.logger, "bind", map[string]any{"username": username}, func() error {
		return c.withRetry(ctx, func() error {
			if password == "" {
				return c.ldap.UnauthenticatedBind(username)
			}
			return c.ldap.Bind(username, password)
		})
	})
}

// Search executes a single unpaged search.
func (c *conn) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil {
		return nil, fmt.Errorf("search request cannot be nil")
	}

	fields := map[string]any{
		"base_dn": req.BaseDN,
		"scope":   req.Scope.String(),
		"filter":  req.Filter,
	}

	var result *ldap.SearchResult
	err := logOperation(c.logger, "search", fields, func() error {
		return c.withRetry(ctx, func() error {
			var searchErr error
			result, searchErr = c.ldap.Search(c.toLDAPRequest(req, nil))
			// A server hitting the client-requested size limit still
			// hands back the entries collected so far; that truncation
			// is the expected outcome of a limited query, not a failure.
			if truncatedBySizeLimit(searchErr, req.SizeLimit) && result != nil {
				return nil
			}
			return searchErr
		})
	})
	if err != nil {
		return nil, newOperationError("search", req.BaseDN, err)
	}

	return &SearchResult{Entries: result.Entries, Total: len(result.Entries)}, nil
}

// SearchWithPaging executes a search through the RFC 2696 paged results
// control, requesting pages sequentially until the server reports no more.
func (c *conn) SearchWithPaging(ctx context.Context, req *SearchRequest, pageSize uint32) (*SearchResult, error) {
	if req == nil {
		return nil, fmt.Errorf("search request cannot be nil")
	}
	if pageSize == 0 {
		return c.Search(ctx, req)
	}

	fields := map[string]any{
		"base_dn":   req.BaseDN,
		"filter":    req.Filter,
		"page_size": pageSize,
	}
	c.logger.Debug("starting paged search", fields)

	var entries []*ldap.Entry
	paging := ldap.NewControlPaging(pageSize)
	pages := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var result *ldap.SearchResult
		err := c.withRetry(ctx, func() error {
			var searchErr error
			result, searchErr = c.ldap.Search(c.toLDAPRequest(req, []ldap.Control{paging}))
			return searchErr
		})
		if err != nil {
			if truncatedBySizeLimit(err, req.SizeLimit) && result != nil {
				entries = append(entries, result.Entries...)
				break
			}
			return nil, newOperationError("paged_search", req.BaseDN, err)
		}

		pages++
		entries = append(entries, result.Entries...)

		ctrl, ok := ldap.FindControl(result.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging)
		if !ok || len(ctrl.Cookie) == 0 {
			break
		}
		paging.SetCookie(ctrl.Cookie)
	}

	fields["pages"] = pages
	fields["entries"] = len(entries)
	c.logger.Debug("paged search completed", fields)

	return &SearchResult{Entries: entries, Total: len(entries)}, nil
}

// Add creates a new entry.
func (c *conn) Add(ctx context.Context, req *AddRequest) error {
	if req == nil {
		return fmt.Errorf("add request cannot be nil")
	}

	ldapReq := ldap.NewAddRequest(req.DN, nil)
	for attr, values := range req.Attributes {
		ldapReq.Attribute(attr, values)
	}

	err := logOperation(c.logger, "add", map[string]any{"dn": req.DN}, func() error {
		return c.withRetry(ctx, func() error {
			return c.ldap.Add(ldapReq)
		})
	})
	if err != nil {
		return newOperationError("add", req.DN, err)
	}
	return nil
}

// Modify applies attribute-level changes to an existing entry.
func (c *conn) Modify(ctx context.Context, req *ModifyRequest) error {
	if req == nil {
		return fmt.Errorf("modify request cannot be nil")
	}

	ldapReq := ldap.NewModifyRequest(req.DN, nil)
	for attr, values := range req.AddAttributes {
		ldapReq.Add(attr, values)
	}
	for attr, values := range req.ReplaceAttributes {
		ldapReq.Replace(attr, values)
	}
	for attr, values := range req.DeleteAttributes {
		ldapReq.Delete(attr, values)
	}

	err := logOperation(c.logger, "modify", map[string]any{"dn": req.DN}, func() error {
		return c.withRetry(ctx, func() error {
			return c.ldap.Modify(ldapReq)
		})
	})
	if err != nil {
		return newOperationError("modify", req.DN, err)
	}
	return nil
}

// Delete removes an entry.
func (c *conn) Delete(ctx context.Context, dn string) error {
	if dn == "" {
		return fmt.Errorf("DN cannot be empty")
	}

	err := logOperation(c.logger, "delete", map[string]any{"dn": dn}, func() error {
		return c.withRetry(ctx, func() error {
			return c.ldap.Del(ldap.NewDelRequest(dn, nil))
		})
	})
	if err != nil {
		return newOperationError("delete", dn, err)
	}
	return nil
}

// WhoAmI performs the Who Am I? extended operation.
func (c *conn) WhoAmI(ctx context.Context) (string, error) {
	var result *ldap.WhoAmIResult
	err := c.withRetry(ctx, func() error {
		var whoErr error
		result, whoErr = c.ldap.WhoAmI(nil)
		return whoErr
	})
	if err != nil {
		return "", newOperationError("whoami", "", err)
	}
	return result.AuthzID, nil
}

func (c *conn) toLDAPRequest(req *SearchRequest, controls []ldap.Control) *ldap.SearchRequest {
	timeLimit := int(req.TimeLimit.Seconds())
	if req.TimeLimit == 0 && c.cfg.Timeout > 0 {
		timeLimit = int(c.cfg.Timeout.Seconds())
	}
	attrs := req.Attributes
	if len(attrs) == 0 {
		attrs = []string{"*"}
	}
	return ldap.NewSearchRequest(
		req.BaseDN,
		req.Scope.ldapScope(),
		ldap.NeverDerefAliases,
		req.SizeLimit,
		timeLimit,
		false,
		req.Filter,
		attrs,
		controls,
	)
}

// withRetry executes an operation, retrying transient failures with
// exponential backoff.
func (c *conn) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := c.cfg.InitialBackoff

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return err
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		c.logger.Debug("retrying operation", map[string]any{
			"attempt":    attempt + 1,
			"backoff_ms": backoff.Milliseconds(),
			"error":      err.Error(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = min(time.Duration(float64(backoff)*c.cfg.BackoffFactor), c.cfg.MaxBackoff)
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}
