package ldaprecord

import "slices"

// Collection is an ordered, immutable sequence of models. Insertion order
// matches result order, and a fresh collection is produced per execution.
type Collection struct {
	models []*Model
}

// NewCollection builds a collection from the given models.
func NewCollection(models ...*Model) *Collection {
	return &Collection{models: slices.Clone(models)}
}

// All returns the models in result order. The returned slice is a copy.
func (c *Collection) All() []*Model {
	return slices.Clone(c.models)
}

// First returns the first model, or nil when the collection is empty.
func (c *Collection) First() *Model {
	if len(c.models) == 0 {
		return nil
	}
	return c.models[0]
}

// Count returns the number of models.
func (c *Collection) Count() int {
	return len(c.models)
}

// IsEmpty reports whether the collection holds no models.
func (c *Collection) IsEmpty() bool {
	return len(c.models) == 0
}

// Each invokes fn for every model in order, stopping at the first error.
func (c *Collection) Each(fn func(*Model) error) error {
	for _, m := range c.models {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}
