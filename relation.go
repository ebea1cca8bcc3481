package ldaprecord

import (
	"strings"
)

// defaultRelationPageSize is the batch size for paged relation retrieval,
// matching the usual directory server page limit.
const defaultRelationPageSize = 1000

// Fallback substrings for servers whose transport loses the LDAP result
// code; matching is case-insensitive. Both sets are overridable per
// relation since server error phrasing varies between implementations.
var (
	defaultAttachBypassPatterns = []string{"already exists"}
	defaultDetachBypassPatterns = []string{"server is unwilling to perform", "no such attribute"}
)

// Relation binds a parent model to a set of related entries through an
// attribute-value pointer: a related entry is linked if and only if its
// relation-key attribute holds the parent's foreign value. The parent may
// be shared with the caller; the relation never takes exclusive ownership.
type Relation struct {
	query   *ModelQuery
	parent  *Model
	related *ModelType

	// relationKey is the attribute on the related side compared against
	// the foreign value.
	relationKey string

	// foreignKey names the parent attribute providing the foreign value;
	// "dn" selects the distinguished name itself.
	foreignKey string

	// using redirects attach/detach onto a third model instead of the
	// related model directly.
	using    *Model
	usingKey string

	pageSize int

	attachBypass []string
	detachBypass []string
}

func newRelation(parent *Model, related *ModelType, relationKey, foreignKey string) Relation {
	if foreignKey == "" {
		foreignKey = "dn"
	}
	return Relation{
		query:        NewModelQuery(related, parent.Connection(), ""),
		parent:       parent,
		related:      related,
		relationKey:  relationKey,
		foreignKey:   foreignKey,
		pageSize:     defaultRelationPageSize,
		attachBypass: defaultAttachBypassPatterns,
		detachBypass: defaultDetachBypassPatterns,
	}
}

// Parent returns the model the relation is rooted at.
func (r *Relation) Parent() *Model {
	return r.parent
}

// RelationKey returns the attribute compared on the related side.
func (r *Relation) RelationKey() string {
	return r.relationKey
}

// ForeignKey returns the parent attribute providing the foreign value.
func (r *Relation) ForeignKey() string {
	return r.foreignKey
}

// PageSize returns the configured retrieval batch size.
func (r *Relation) PageSize() int {
	return r.pageSize
}

// Query exposes the relation's underlying model query for additional
// scoping before execution.
func (r *Relation) Query() *ModelQuery {
	return r.query
}

// ForeignValue derives the link value from a model according to the
// configured foreign key.
func (r *Relation) ForeignValue(m *Model) string {
	if strings.EqualFold(r.foreignKey, "dn") {
		return m.DN()
	}
	return m.FirstAttribute(r.foreignKey)
}

// RelationQuery builds the scoped query resolving the related set. The
// attribute needed for attach/detach bookkeeping (the redirection key when
// configured, the relation key otherwise) is added to the projection only
// when the projection is restricted and does not carry it yet, so repeated
// calls never accumulate duplicates. The returned query filters on raw
// equality against the parent's escaped foreign value.
func (r *Relation) RelationQuery() *ModelQuery {
	needed := r.relationKey
	if r.using != nil {
		needed = r.usingKey
	}

	selects := r.query.Selects()
	if len(selects) > 0 && !containsFold(selects, "*") && !containsFold(selects, needed) {
		r.query.query.AddSelect(needed)
	}

	c := r.query.Clone()
	c.WhereRaw(r.relationKey, c.Escape(r.ForeignValue(r.parent)))
	return c
}

// attemptFailable runs a directory mutation and reinterprets known-benign
// failures as success: the desired end-state already holds. benign matches
// structurally on the LDAP result code; patterns cover servers whose
// errors arrive without one. An error carrying a definite non-benign code
// propagates unchanged, even if its text happens to contain a pattern.
func (r *Relation) attemptFailable(op func() error, benign func(error) bool, patterns []string) error {
	err := op()
	if err == nil || benign(err) {
		return nil
	}
	if _, hasCode := resultCode(err); hasCode {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(msg, strings.ToLower(pattern)) {
			return nil
		}
	}
	return err
}
