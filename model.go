package ldaprecord

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-ldap/ldap/v3"
)

// generalizedTimeFormat is the directory timestamp representation used for
// date-typed attribute values.
const generalizedTimeFormat = "20060102150405.0Z"

// ModelType describes one kind of directory entry: its identity key, the
// attributes the directory treats specially, and the named query fragments
// registered for it. Scopes are resolved at registration time, never by
// runtime method-name matching.
type ModelType struct {
	// Name identifies the type in diagnostics.
	Name string

	// GUIDKey is the attribute holding the directory-assigned unique
	// identifier. It is merged into every projection.
	GUIDKey string `default:"objectGUID"`

	// BinaryGUID marks directories that store the GUID as raw bytes
	// displayed as hex, requiring server-native encoding in filters.
	BinaryGUID bool `default:"true"`

	// SupportsANR marks directories implementing the native ambiguous
	// name resolution matching rule.
	SupportsANR bool

	// ObjectClasses are the structural classes of entries of this type.
	ObjectClasses []string

	// ANRAttributes is the disjunction set used when native ANR is
	// unavailable.
	ANRAttributes []string

	// DateAttributes lists attributes declared as dates. Date value
	// preparation is rejected for any other attribute.
	DateAttributes []string

	scopes map[string]NamedScope
}

// defaultANRAttributes is the fallback set of name-like attributes queried
// when the server lacks the ANR matching rule.
var defaultANRAttributes = []string{
	"cn", "sn", "uid", "name", "mail", "givenname", "displayname",
}

// NewModelType creates a model type with defaults applied.
func NewModelType(name string) *ModelType {
	t := &ModelType{Name: name}
	_ = defaults.Set(t)
	t.ANRAttributes = slices.Clone(defaultANRAttributes)
	t.scopes = make(map[string]NamedScope)
	return t
}

// RegisterScope adds a named query fragment to the type's registry.
func (t *ModelType) RegisterScope(name string, scope NamedScope) error {
	if name == "" {
		return invalidUsagef("scope name cannot be empty")
	}
	if scope == nil {
		return invalidUsagef("scope %q cannot be nil", name)
	}
	if t.scopes == nil {
		t.scopes = make(map[string]NamedScope)
	}
	key := strings.ToLower(name)
	if _, exists := t.scopes[key]; exists {
		return invalidUsagef("scope %q is already registered on %s", name, t.Name)
	}
	t.scopes[key] = scope
	return nil
}

// scopeNamed resolves a registered named scope.
func (t *ModelType) scopeNamed(name string) (NamedScope, bool) {
	s, ok := t.scopes[strings.ToLower(name)]
	return s, ok
}

// IsDateAttribute reports whether attr is declared as a date field.
func (t *ModelType) IsDateAttribute(attr string) bool {
	for _, a := range t.DateAttributes {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	return false
}

// Query starts a scoped model query for this type.
func (t *ModelType) Query(conn Connection, baseDN string) *ModelQuery {
	return NewModelQuery(t, conn, baseDN)
}

// Hydrate constructs models from raw search results. The resulting
// collection preserves result order.
func (t *ModelType) Hydrate(conn Connection, entries []*ldap.Entry) *Collection {
	models := make([]*Model, 0, len(entries))
	for _, entry := range entries {
		models = append(models, newModelFromEntry(t, conn, entry))
	}
	return NewCollection(models...)
}

// Model represents one hydrated directory entry. Attribute names are
// matched case-insensitively; the server's attribute order is preserved.
type Model struct {
	typ  *ModelType
	conn Connection

	dn        string
	attrOrder []string
	attrs     map[string][]string
	raw       map[string][][]byte
}

func newModelFromEntry(t *ModelType, conn Connection, entry *ldap.Entry) *Model {
	m := &Model{
		typ:   t,
		conn:  conn,
		dn:    entry.DN,
		attrs: make(map[string][]string, len(entry.Attributes)),
		raw:   make(map[string][][]byte, len(entry.Attributes)),
	}
	for _, attr := range entry.Attributes {
		key := strings.ToLower(attr.Name)
		m.attrOrder = append(m.attrOrder, attr.Name)
		m.attrs[key] = slices.Clone(attr.Values)
		m.raw[key] = slices.Clone(attr.ByteValues)
	}
	return m
}

// Type returns the model's type descriptor.
func (m *Model) Type() *ModelType {
	return m.typ
}

// Connection returns the connection the model was hydrated through.
func (m *Model) Connection() Connection {
	return m.conn
}

// DN returns the distinguished name identifying the entry.
func (m *Model) DN() string {
	return m.dn
}

// SetDN replaces the model's distinguished name.
func (m *Model) SetDN(dn string) {
	m.dn = dn
}

// AttributeNames returns the attribute names in server order.
func (m *Model) AttributeNames() []string {
	return slices.Clone(m.attrOrder)
}

// HasAttribute reports whether the entry carries the attribute.
func (m *Model) HasAttribute(name string) bool {
	_, ok := m.attrs[strings.ToLower(name)]
	return ok
}

// Attribute returns all values of the attribute, or nil when absent.
func (m *Model) Attribute(name string) []string {
	return slices.Clone(m.attrs[strings.ToLower(name)])
}

// FirstAttribute returns the first value of the attribute, or "".
func (m *Model) FirstAttribute(name string) string {
	values := m.attrs[strings.ToLower(name)]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// RawAttribute returns the raw byte values of the attribute.
func (m *Model) RawAttribute(name string) [][]byte {
	return m.raw[strings.ToLower(name)]
}

// ObjectGUID returns the entry's GUID in canonical hyphenated form, or ""
// when the GUID key is absent or malformed.
func (m *Model) ObjectGUID() string {
	key := strings.ToLower(m.typ.GUIDKey)
	if m.typ.BinaryGUID {
		raw := m.raw[key]
		if len(raw) == 0 {
			return ""
		}
		guid, err := GUIDFromBytes(raw[0])
		if err != nil {
			return ""
		}
		return guid
	}
	values := m.attrs[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// ObjectSID returns the decoded objectSid, or "" when absent or malformed.
func (m *Model) ObjectSID() string {
	raw := m.raw["objectsid"]
	if len(raw) > 0 {
		sid, err := DecodeSID(raw[0])
		if err == nil {
			return sid
		}
	}
	// String-valued SIDs appear in test fixtures and some proxies.
	if s := m.FirstAttribute("objectsid"); ValidSIDString(s) {
		return s
	}
	return ""
}

// Date parses a date-declared attribute value as a directory timestamp.
func (m *Model) Date(name string) (time.Time, error) {
	if !m.typ.IsDateAttribute(name) {
		return time.Time{}, invalidUsagef("attribute %q is not declared as a date on %s", name, m.typ.Name)
	}
	value := m.FirstAttribute(name)
	if value == "" {
		return time.Time{}, fmt.Errorf("attribute %q has no value", name)
	}
	t, err := time.Parse(generalizedTimeFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q as generalized time: %w", value, err)
	}
	return t, nil
}

// CreateAttribute adds values to an attribute on the directory entry. The
// server rejects values that already exist; callers relying on idempotence
// should go through a relation's Attach.
func (m *Model) CreateAttribute(ctx context.Context, name string, values ...string) error {
	if len(values) == 0 {
		return invalidUsagef("at least one value is required to create attribute %q", name)
	}
	err := m.conn.Modify(ctx, &ModifyRequest{
		DN:            m.dn,
		AddAttributes: map[string][]string{name: values},
	})
	if err != nil {
		return err
	}
	m.mergeValues(name, values)
	return nil
}

// DeleteAttribute removes specific values from an attribute, or the whole
// attribute when no values are given.
func (m *Model) DeleteAttribute(ctx context.Context, name string, values ...string) error {
	err := m.conn.Modify(ctx, &ModifyRequest{
		DN:               m.dn,
		DeleteAttributes: map[string][]string{name: values},
	})
	if err != nil {
		return err
	}
	m.dropValues(name, values)
	return nil
}

func (m *Model) mergeValues(name string, values []string) {
	key := strings.ToLower(name)
	if _, ok := m.attrs[key]; !ok {
		m.attrOrder = append(m.attrOrder, name)
	}
	for _, v := range values {
		if !slices.Contains(m.attrs[key], v) {
			m.attrs[key] = append(m.attrs[key], v)
		}
	}
}

func (m *Model) dropValues(name string, values []string) {
	key := strings.ToLower(name)
	if len(values) == 0 {
		delete(m.attrs, key)
		delete(m.raw, key)
		m.attrOrder = slices.DeleteFunc(m.attrOrder, func(n string) bool {
			return strings.EqualFold(n, name)
		})
		return
	}
	for _, v := range values {
		m.attrs[key] = slices.DeleteFunc(m.attrs[key], func(existing string) bool {
			return existing == v
		})
		m.raw[key] = slices.DeleteFunc(m.raw[key], func(existing []byte) bool {
			return string(existing) == v
		})
	}
}
