package ldaprecord

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// globalScope pairs a scope with its registration identifier.
type globalScope struct {
	id    string
	scope Scope
}

// ModelQuery composes global scopes on top of a base Query and resolves
// results into hydrated models. Scope registration and application state
// are per-instance; a ModelQuery is not safe for concurrent mutation.
type ModelQuery struct {
	query *Query
	typ   *ModelType

	scopes []globalScope

	// applied records scope identifiers in application order. It survives
	// later removal of the scope, since the scope already mutated the query.
	applied []string
	removed []string
}

// NewModelQuery creates a scoped query for the given model type.
func NewModelQuery(t *ModelType, conn Connection, baseDN string) *ModelQuery {
	return &ModelQuery{
		query: NewQuery(conn, baseDN),
		typ:   t,
	}
}

// ModelType returns the type the query resolves into.
func (mq *ModelQuery) ModelType() *ModelType {
	return mq.typ
}

// WithGlobalScope registers a named scope. Registering an identifier twice
// replaces the earlier scope in place.
func (mq *ModelQuery) WithGlobalScope(id string, scope Scope) *ModelQuery {
	for i, gs := range mq.scopes {
		if gs.id == id {
			mq.scopes[i].scope = scope
			return mq
		}
	}
	mq.scopes = append(mq.scopes, globalScope{id: id, scope: scope})
	return mq
}

// WithoutGlobalScope removes a registered scope. The identifier is recorded
// as removed even if the scope was never applied.
func (mq *ModelQuery) WithoutGlobalScope(id string) *ModelQuery {
	mq.scopes = slices.DeleteFunc(mq.scopes, func(gs globalScope) bool {
		return gs.id == id
	})
	if !slices.Contains(mq.removed, id) {
		mq.removed = append(mq.removed, id)
	}
	return mq
}

// WithoutGlobalScopes removes the given scopes, or every currently
// registered scope when ids is nil.
func (mq *ModelQuery) WithoutGlobalScopes(ids []string) *ModelQuery {
	if ids == nil {
		ids = make([]string, 0, len(mq.scopes))
		for _, gs := range mq.scopes {
			ids = append(ids, gs.id)
		}
	}
	for _, id := range ids {
		mq.WithoutGlobalScope(id)
	}
	return mq
}

// RemovedScopes returns the identifiers removed from this builder.
func (mq *ModelQuery) RemovedScopes() []string {
	return slices.Clone(mq.removed)
}

// AppliedScopes returns the identifiers applied so far, in application
// order.
func (mq *ModelQuery) AppliedScopes() []string {
	return slices.Clone(mq.applied)
}

// ApplyScopes applies each registered scope that has not been applied yet,
// in registration order. Calling it again is a no-op for already-applied
// identifiers.
func (mq *ModelQuery) ApplyScopes() *ModelQuery {
	for _, gs := range mq.scopes {
		if slices.Contains(mq.applied, gs.id) {
			continue
		}
		gs.scope.Apply(mq, mq.typ)
		mq.applied = append(mq.applied, gs.id)
	}
	return mq
}

// ToBase applies scopes and returns the underlying base query. This is the
// only sanctioned way to reach the raw builder.
func (mq *ModelQuery) ToBase() *Query {
	mq.ApplyScopes()
	mq.ensureGUIDSelected()
	return mq.query
}

// Select sets the projection, merging in the GUID key so hydration can
// always re-identify entries. Duplicates are dropped, order preserved.
func (mq *ModelQuery) Select(columns ...string) *ModelQuery {
	if len(columns) == 0 {
		return mq
	}
	merged := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		if !containsFold(merged, col) {
			merged = append(merged, col)
		}
	}
	if !containsFold(merged, mq.typ.GUIDKey) {
		merged = append(merged, mq.typ.GUIDKey)
	}
	mq.query.Select(merged...)
	return mq
}

// ensureGUIDSelected keeps the GUID-key invariant for selections made on
// the base query directly (for example inside a scope).
func (mq *ModelQuery) ensureGUIDSelected() {
	selects := mq.query.Selects()
	if len(selects) == 0 || containsFold(selects, "*") {
		return
	}
	if !containsFold(selects, mq.typ.GUIDKey) {
		mq.query.AddSelect(mq.typ.GUIDKey)
	}
}

// Get applies scopes, executes the search, and hydrates the results into a
// fresh collection.
func (mq *ModelQuery) Get(ctx context.Context, columns ...string) (*Collection, error) {
	mq.Select(columns...)
	entries, err := mq.ToBase().Get(ctx)
	if err != nil {
		return nil, err
	}
	return mq.typ.Hydrate(mq.query.conn, entries), nil
}

// GetPaged is Get through the paged results control.
func (mq *ModelQuery) GetPaged(ctx context.Context, pageSize int, columns ...string) (*Collection, error) {
	mq.Select(columns...)
	entries, err := mq.ToBase().Paginate(ctx, pageSize)
	if err != nil {
		return nil, err
	}
	return mq.typ.Hydrate(mq.query.conn, entries), nil
}

// First limits the query to one result and returns it, or nil when nothing
// matched.
func (mq *ModelQuery) First(ctx context.Context, columns ...string) (*Model, error) {
	mq.query.Limit(1)
	results, err := mq.Get(ctx, columns...)
	if err != nil {
		return nil, err
	}
	return results.First(), nil
}

// FirstOrFail is First, returning NotFoundError when nothing matched.
func (mq *ModelQuery) FirstOrFail(ctx context.Context, columns ...string) (*Model, error) {
	model, err := mq.First(ctx, columns...)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, mq.notFound()
	}
	return model, nil
}

// Sole returns the single matching model. Zero matches yield NotFoundError;
// two or more yield MultipleObjectsFoundError.
func (mq *ModelQuery) Sole(ctx context.Context, columns ...string) (*Model, error) {
	mq.query.Limit(2)
	results, err := mq.Get(ctx, columns...)
	if err != nil {
		return nil, err
	}
	switch results.Count() {
	case 0:
		return nil, mq.notFound()
	case 1:
		return results.First(), nil
	default:
		return nil, &MultipleObjectsFoundError{
			Query:  mq.query.Filter(),
			BaseDN: mq.query.BaseDN(),
		}
	}
}

// Find resolves a single entry by its distinguished name, returning nil
// when the entry does not exist.
func (mq *ModelQuery) Find(ctx context.Context, dn string, columns ...string) (*Model, error) {
	c := mq.Clone()
	c.query.In(dn).WithScope(ScopeBaseObject).WhereHas("objectclass")
	model, err := c.First(ctx, columns...)
	if err != nil {
		// A base search below a missing DN fails rather than matching
		// nothing; treat it as a miss.
		if hasResultCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, err
	}
	return model, nil
}

// FindOrFail is Find, returning NotFoundError on a miss.
func (mq *ModelQuery) FindOrFail(ctx context.Context, dn string, columns ...string) (*Model, error) {
	model, err := mq.Find(ctx, dn, columns...)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, &NotFoundError{Query: mq.query.Filter(), BaseDN: dn}
	}
	return model, nil
}

// FindMany resolves multiple DNs, preserving input order and silently
// omitting DNs that do not resolve.
func (mq *ModelQuery) FindMany(ctx context.Context, dns []string, columns ...string) (*Collection, error) {
	models := make([]*Model, 0, len(dns))
	for _, dn := range dns {
		model, err := mq.Find(ctx, dn, columns...)
		if err != nil {
			return nil, err
		}
		if model != nil {
			models = append(models, model)
		}
	}
	return NewCollection(models...), nil
}

// FindBy returns the first entry whose attribute equals value, or nil.
func (mq *ModelQuery) FindBy(ctx context.Context, attr, value string, columns ...string) (*Model, error) {
	return mq.Clone().WhereEquals(attr, value).First(ctx, columns...)
}

// FindByOrFail is FindBy, returning NotFoundError on a miss.
func (mq *ModelQuery) FindByOrFail(ctx context.Context, attr, value string, columns ...string) (*Model, error) {
	c := mq.Clone().WhereEquals(attr, value)
	model, err := c.First(ctx, columns...)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, c.notFound()
	}
	return model, nil
}

// FindManyBy returns all entries whose attribute equals any of the given
// values, as a single disjunctive search. Empty values short-circuit to an
// empty collection without touching the server.
func (mq *ModelQuery) FindManyBy(ctx context.Context, attr string, values []string, columns ...string) (*Collection, error) {
	if len(values) == 0 {
		return NewCollection(), nil
	}
	fragments := make([]string, 0, len(values))
	for _, v := range values {
		fragments = append(fragments, equalityFilter(attr, v))
	}
	return mq.Clone().OrFilter(fragments...).Get(ctx, columns...)
}

// FindByANR performs an ambiguous-name-resolution lookup. Directories with
// the native ANR matching rule are queried through it; otherwise an
// equivalent disjunction over the type's declared ANR attributes is used.
func (mq *ModelQuery) FindByANR(ctx context.Context, value string, columns ...string) (*Model, error) {
	if mq.typ.SupportsANR {
		return mq.FindBy(ctx, "anr", value, columns...)
	}
	return mq.Clone().OrFilter(mq.anrFragments(value)...).First(ctx, columns...)
}

// FindManyByANR fans FindByANR out over multiple values.
func (mq *ModelQuery) FindManyByANR(ctx context.Context, values []string, columns ...string) (*Collection, error) {
	if mq.typ.SupportsANR {
		return mq.FindManyBy(ctx, "anr", values, columns...)
	}
	models := make([]*Model, 0, len(values))
	for _, value := range values {
		model, err := mq.FindByANR(ctx, value, columns...)
		if err != nil {
			return nil, err
		}
		if model != nil {
			models = append(models, model)
		}
	}
	return NewCollection(models...), nil
}

func (mq *ModelQuery) anrFragments(value string) []string {
	fragments := make([]string, 0, len(mq.typ.ANRAttributes))
	for _, attr := range mq.typ.ANRAttributes {
		fragments = append(fragments, equalityFilter(attr, value))
	}
	return fragments
}

// FindByGUID resolves an entry by its GUID key, returning nil on a miss.
// Binary GUID keys are converted to their server-native encoding before
// filtering.
func (mq *ModelQuery) FindByGUID(ctx context.Context, guid string, columns ...string) (*Model, error) {
	c, err := mq.guidQuery(guid)
	if err != nil {
		return nil, err
	}
	return c.First(ctx, columns...)
}

// FindByGUIDOrFail is FindByGUID, returning NotFoundError on a miss.
func (mq *ModelQuery) FindByGUIDOrFail(ctx context.Context, guid string, columns ...string) (*Model, error) {
	c, err := mq.guidQuery(guid)
	if err != nil {
		return nil, err
	}
	model, err := c.First(ctx, columns...)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, c.notFound()
	}
	return model, nil
}

func (mq *ModelQuery) guidQuery(guid string) (*ModelQuery, error) {
	c := mq.Clone()
	if mq.typ.BinaryGUID {
		guidBytes, err := GUIDToBytes(guid)
		if err != nil {
			return nil, invalidUsagef("cannot look up %s by GUID: %v", mq.typ.Name, err)
		}
		return c.WhereEquals(mq.typ.GUIDKey, string(guidBytes)), nil
	}
	return c.WhereEquals(mq.typ.GUIDKey, guid), nil
}

// Scope invokes a named scope registered on the model type.
func (mq *ModelQuery) Scope(name string, args ...any) (*ModelQuery, error) {
	scope, ok := mq.typ.scopeNamed(name)
	if !ok {
		return nil, invalidUsagef("scope %q is not registered on %s", name, mq.typ.Name)
	}
	scope(mq, args...)
	return mq, nil
}

// PrepareDateValue converts a time into the directory's timestamp
// representation. The attribute must be declared as a date on the type.
func (mq *ModelQuery) PrepareDateValue(attr string, t time.Time) (string, error) {
	if !mq.typ.IsDateAttribute(attr) {
		return "", invalidUsagef("attribute %q is not declared as a date on %s", attr, mq.typ.Name)
	}
	return t.UTC().Format(generalizedTimeFormat), nil
}

// WhereDateEquals adds an equality predicate on a date-declared attribute.
func (mq *ModelQuery) WhereDateEquals(attr string, t time.Time) (*ModelQuery, error) {
	value, err := mq.PrepareDateValue(attr, t)
	if err != nil {
		return nil, err
	}
	return mq.WhereEquals(attr, value), nil
}

// Clone deep-copies the builder. The clone shares no mutable search state
// with its source, and its applied-scope set starts empty.
func (mq *ModelQuery) Clone() *ModelQuery {
	return &ModelQuery{
		query:   mq.query.Clone(),
		typ:     mq.typ,
		scopes:  slices.Clone(mq.scopes),
		removed: slices.Clone(mq.removed),
	}
}

// Fluent passthroughs to the base builder.

func (mq *ModelQuery) WhereEquals(attr, value string) *ModelQuery {
	mq.query.WhereEquals(attr, value)
	return mq
}

func (mq *ModelQuery) WhereNot(attr, value string) *ModelQuery {
	mq.query.WhereNot(attr, value)
	return mq
}

func (mq *ModelQuery) WhereHas(attr string) *ModelQuery {
	mq.query.WhereHas(attr)
	return mq
}

func (mq *ModelQuery) WhereRaw(attr, value string) *ModelQuery {
	mq.query.WhereRaw(attr, value)
	return mq
}

func (mq *ModelQuery) WhereFilter(fragment string) *ModelQuery {
	mq.query.WhereFilter(fragment)
	return mq
}

func (mq *ModelQuery) OrFilter(fragments ...string) *ModelQuery {
	mq.query.OrFilter(fragments...)
	return mq
}

func (mq *ModelQuery) OrFilterFunc(fn func(*Query)) *ModelQuery {
	mq.query.OrFilterFunc(fn)
	return mq
}

func (mq *ModelQuery) Limit(n int) *ModelQuery {
	mq.query.Limit(n)
	return mq
}

func (mq *ModelQuery) In(baseDN string) *ModelQuery {
	mq.query.In(baseDN)
	return mq
}

// Terminal reads delegating straight to the base builder.

func (mq *ModelQuery) BaseDN() string             { return mq.query.BaseDN() }
func (mq *ModelQuery) Selects() []string          { return mq.query.Selects() }
func (mq *ModelQuery) Filter() string             { return mq.query.Filter() }
func (mq *ModelQuery) UnescapedFilter() string    { return mq.query.UnescapedFilter() }
func (mq *ModelQuery) Escape(value string) string { return mq.query.Escape(value) }
func (mq *ModelQuery) Connection() Connection     { return mq.query.Connection() }

// Exists reports whether the scoped query matches at least one entry.
func (mq *ModelQuery) Exists(ctx context.Context) (bool, error) {
	return mq.ToBase().Exists(ctx)
}

// DoesntExist reports whether the scoped query matches nothing.
func (mq *ModelQuery) DoesntExist(ctx context.Context) (bool, error) {
	return mq.ToBase().DoesntExist(ctx)
}

// ExistsOr runs fn when the query matches nothing, reporting whether a
// match existed.
func (mq *ModelQuery) ExistsOr(ctx context.Context, fn func(context.Context) error) (bool, error) {
	exists, err := mq.Exists(ctx)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fn(ctx)
	}
	return true, nil
}

func (mq *ModelQuery) notFound() *NotFoundError {
	return &NotFoundError{
		Query:  mq.query.Filter(),
		BaseDN: mq.query.BaseDN(),
	}
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
