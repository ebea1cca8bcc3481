package ldaprecord

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// matchAllFilter is executed when no predicates were added.
const matchAllFilter = "(objectclass=*)"

// Query builds and executes raw directory searches. All predicate methods
// mutate the receiver and return it for chaining. A Query is not safe for
// concurrent mutation; use Clone to branch independent searches.
type Query struct {
	conn      Connection
	baseDN    string
	scope     SearchScope
	filters   []string
	unescaped []string
	selects   []string
	limit     int
}

// NewQuery creates a builder rooted at baseDN. An empty baseDN falls back
// to the connection's configured base.
func NewQuery(conn Connection, baseDN string) *Query {
	if baseDN == "" && conn != nil {
		baseDN = conn.BaseDN()
	}
	return &Query{
		conn:   conn,
		baseDN: baseDN,
		scope:  ScopeWholeSubtree,
	}
}

// Connection returns the underlying connection.
func (q *Query) Connection() Connection {
	return q.conn
}

// In changes the search base of the query.
func (q *Query) In(baseDN string) *Query {
	q.baseDN = baseDN
	return q
}

// BaseDN returns the current search base.
func (q *Query) BaseDN() string {
	return q.baseDN
}

// WithScope sets the search scope.
func (q *Query) WithScope(scope SearchScope) *Query {
	q.scope = scope
	return q
}

// Limit caps the number of entries the server returns. Zero means no limit.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Select replaces the requested projection.
func (q *Query) Select(attrs ...string) *Query {
	q.selects = append([]string(nil), attrs...)
	return q
}

// AddSelect appends an attribute to the projection if not already present.
func (q *Query) AddSelect(attr string) *Query {
	for _, existing := range q.selects {
		if strings.EqualFold(existing, attr) {
			return q
		}
	}
	q.selects = append(q.selects, attr)
	return q
}

// Selects returns a copy of the requested projection.
func (q *Query) Selects() []string {
	return append([]string(nil), q.selects...)
}

// WhereEquals adds an equality predicate. The value is escaped for literal
// use in the filter.
func (q *Query) WhereEquals(attr, value string) *Query {
	q.filters = append(q.filters, equalityFilter(attr, value))
	q.unescaped = append(q.unescaped, fmt.Sprintf("(%s=%s)", attr, value))
	return q
}

// WhereNot adds a negated equality predicate.
func (q *Query) WhereNot(attr, value string) *Query {
	q.filters = append(q.filters, "(!"+equalityFilter(attr, value)+")")
	q.unescaped = append(q.unescaped, fmt.Sprintf("(!(%s=%s))", attr, value))
	return q
}

// WhereHas adds a presence predicate.
func (q *Query) WhereHas(attr string) *Query {
	fragment := fmt.Sprintf("(%s=*)", attr)
	q.filters = append(q.filters, fragment)
	q.unescaped = append(q.unescaped, fragment)
	return q
}

// WhereRaw adds an equality predicate whose value is used verbatim. The
// caller is responsible for escaping.
func (q *Query) WhereRaw(attr, value string) *Query {
	fragment := fmt.Sprintf("(%s=%s)", attr, value)
	q.filters = append(q.filters, fragment)
	q.unescaped = append(q.unescaped, fragment)
	return q
}

// WhereFilter adds a complete pre-rendered filter fragment.
func (q *Query) WhereFilter(fragment string) *Query {
	fragment = wrapFilter(fragment)
	q.filters = append(q.filters, fragment)
	q.unescaped = append(q.unescaped, fragment)
	return q
}

// OrFilter adds a disjunction over the given fragments. A single fragment
// is added as-is.
func (q *Query) OrFilter(fragments ...string) *Query {
	if len(fragments) == 0 {
		return q
	}
	if len(fragments) == 1 {
		return q.WhereFilter(fragments[0])
	}
	fragment := renderDisjunction(fragments)
	q.filters = append(q.filters, fragment)
	q.unescaped = append(q.unescaped, fragment)
	return q
}

// OrFilterFunc collects the predicates fn adds to a fresh builder into one
// grouped disjunction.
func (q *Query) OrFilterFunc(fn func(*Query)) *Query {
	sub := &Query{}
	fn(sub)
	switch len(sub.filters) {
	case 0:
		return q
	case 1:
		q.filters = append(q.filters, sub.filters[0])
		q.unescaped = append(q.unescaped, sub.unescaped[0])
	default:
		q.filters = append(q.filters, renderDisjunction(sub.filters))
		q.unescaped = append(q.unescaped, renderDisjunction(sub.unescaped))
	}
	return q
}

// Filter renders the composed search filter.
func (q *Query) Filter() string {
	return renderFilter(q.filters)
}

// UnescapedFilter renders the filter with values as the caller supplied
// them, for diagnostics only.
func (q *Query) UnescapedFilter() string {
	return renderFilter(q.unescaped)
}

// Escape escapes a value for literal use in a filter.
func (q *Query) Escape(value string) string {
	return ldap.EscapeFilter(value)
}

// Get executes the search and returns raw entries.
func (q *Query) Get(ctx context.Context) ([]*ldap.Entry, error) {
	result, err := q.conn.Search(ctx, q.request())
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// Paginate executes the search through the paged results control.
func (q *Query) Paginate(ctx context.Context, pageSize int) ([]*ldap.Entry, error) {
	if pageSize < 0 {
		return nil, invalidUsagef("page size must be >= 0, got %d", pageSize)
	}
	result, err := q.conn.SearchWithPaging(ctx, q.request(), uint32(pageSize))
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// Exists reports whether at least one entry matches the query.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	probe := q.Clone().Limit(1)
	entries, err := probe.Get(ctx)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// DoesntExist reports whether no entry matches the query.
func (q *Query) DoesntExist(ctx context.Context) (bool, error) {
	exists, err := q.Exists(ctx)
	return !exists, err
}

// Clone returns a deep copy sharing only the connection, so two scoped
// queries never share mutable search state.
func (q *Query) Clone() *Query {
	return &Query{
		conn:      q.conn,
		baseDN:    q.baseDN,
		scope:     q.scope,
		filters:   slices.Clone(q.filters),
		unescaped: slices.Clone(q.unescaped),
		selects:   slices.Clone(q.selects),
		limit:     q.limit,
	}
}

func (q *Query) request() *SearchRequest {
	return &SearchRequest{
		BaseDN:     q.baseDN,
		Scope:      q.scope,
		Filter:     q.Filter(),
		Attributes: q.Selects(),
		SizeLimit:  q.limit,
	}
}

func equalityFilter(attr, value string) string {
	return fmt.Sprintf("(%s=%s)", attr, ldap.EscapeFilter(value))
}

func renderDisjunction(fragments []string) string {
	var b strings.Builder
	b.WriteString("(|")
	for _, f := range fragments {
		b.WriteString(wrapFilter(f))
	}
	b.WriteString(")")
	return b.String()
}

func wrapFilter(fragment string) string {
	if strings.HasPrefix(fragment, "(") {
		return fragment
	}
	return "(" + fragment + ")"
}

func renderFilter(fragments []string) string {
	switch len(fragments) {
	case 0:
		return matchAllFilter
	case 1:
		return fragments[0]
	default:
		return "(&" + strings.Join(fragments, "") + ")"
	}
}
