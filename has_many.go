package ldaprecord

import (
	"context"
)

// HasMany resolves a one-to-many relationship expressed through
// attribute-value pointers, and mutates it idempotently.
type HasMany struct {
	Relation
}

// NewHasMany creates a one-to-many relation from parent to entries of the
// related type whose relationKey attribute equals the parent's foreignKey
// value. An empty foreignKey defaults to the parent DN.
func NewHasMany(parent *Model, related *ModelType, relationKey, foreignKey string) *HasMany {
	return &HasMany{Relation: newRelation(parent, related, relationKey, foreignKey)}
}

// Using redirects attach and detach onto a third model: the foreign value
// is derived from the related model and written to usingKey on the given
// model instead.
func (r *HasMany) Using(model *Model, usingKey string) *HasMany {
	r.using = model
	r.usingKey = usingKey
	return r
}

// WithPageSize overrides the retrieval batch size.
func (r *HasMany) WithPageSize(pageSize int) *HasMany {
	r.pageSize = pageSize
	return r
}

// WithBypassPatterns overrides the fallback error substrings treated as
// already-satisfied outcomes for attach and detach.
func (r *HasMany) WithBypassPatterns(attach, detach []string) *HasMany {
	if attach != nil {
		r.attachBypass = attach
	}
	if detach != nil {
		r.detachBypass = detach
	}
	return r
}

// Get resolves the related entries through paged retrieval at the current
// page size. Every call issues a fresh search.
func (r *HasMany) Get(ctx context.Context) (*Collection, error) {
	return r.RelationQuery().GetPaged(ctx, r.pageSize)
}

// Paginate resolves the related entries with a temporarily overridden page
// size. The previous page size is restored regardless of outcome.
func (r *HasMany) Paginate(ctx context.Context, pageSize int) (*Collection, error) {
	prev := r.pageSize
	r.pageSize = pageSize
	defer func() {
		r.pageSize = prev
	}()
	return r.Get(ctx)
}

// Attach links a model to the parent by writing the foreign value onto the
// relation-key attribute of the appropriate side. Attaching an already
// linked model is a successful no-op. Returns the passed-in model.
func (r *HasMany) Attach(ctx context.Context, model *Model) (*Model, error) {
	op := func() error {
		if r.using != nil {
			return r.using.CreateAttribute(ctx, r.usingKey, r.ForeignValue(model))
		}
		return model.CreateAttribute(ctx, r.relationKey, r.ForeignValue(r.parent))
	}
	if err := r.attemptFailable(op, IsAlreadyExists, r.attachBypass); err != nil {
		return nil, err
	}
	return model, nil
}

// AttachMany links each of the given models, stopping at the first
// non-benign failure.
func (r *HasMany) AttachMany(ctx context.Context, models []*Model) error {
	for _, model := range models {
		if _, err := r.Attach(ctx, model); err != nil {
			return err
		}
	}
	return nil
}

// Detach removes the link between the parent and a model. Detaching a
// model that was never attached is a successful no-op. Returns the
// passed-in model.
func (r *HasMany) Detach(ctx context.Context, model *Model) (*Model, error) {
	op := func() error {
		if r.using != nil {
			return r.using.DeleteAttribute(ctx, r.usingKey, r.ForeignValue(model))
		}
		return model.DeleteAttribute(ctx, r.relationKey, r.ForeignValue(r.parent))
	}
	if err := r.attemptFailable(op, IsUnwillingToPerform, r.detachBypass); err != nil {
		return nil, err
	}
	return model, nil
}

// DetachAll retrieves the current related set with a fresh search and
// detaches every entry, returning the set that was detached.
func (r *HasMany) DetachAll(ctx context.Context) (*Collection, error) {
	related, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := related.Each(func(m *Model) error {
		_, detachErr := r.Detach(ctx, m)
		return detachErr
	}); err != nil {
		return nil, err
	}
	return related, nil
}
