package components

import "github.com/mlange-42/ark/ecs"

// EntityRef is an optional, non-owning reference to an entity.
// The zero value refers to nothing.
type EntityRef struct {
	entity ecs.Entity
	set    bool
}

// NoEntity returns an empty reference.
func NoEntity() EntityRef {
	return EntityRef{}
}

// Ref returns a reference to e.
func Ref(e ecs.Entity) EntityRef {
	return EntityRef{entity: e, set: true}
}

// Get returns the referenced entity and whether the reference is set.
func (r EntityRef) Get() (ecs.Entity, bool) {
	return r.entity, r.set
}

// IsSet reports whether the reference points at an entity.
func (r EntityRef) IsSet() bool {
	return r.set
}

// Is reports whether the reference is set and points at e.
func (r EntityRef) Is(e ecs.Entity) bool {
	return r.set && r.entity == e
}
