package ldaprecord

// Scope is a named, reusable query modifier applied to a builder before
// execution.
type Scope interface {
	Apply(q *ModelQuery, t *ModelType)
}

// ScopeFunc adapts a plain function to the Scope interface.
type ScopeFunc func(q *ModelQuery, t *ModelType)

func (f ScopeFunc) Apply(q *ModelQuery, t *ModelType) {
	f(q, t)
}

// NamedScope is a reusable query fragment registered on a ModelType and
// resolved by name through ModelQuery.Scope.
type NamedScope func(q *ModelQuery, args ...any)
