package scene

import "github.com/rtauralize/auracore/internal/pool"

// Container is an insertion-ordered mapping from integer id to entity,
// reference-counted like any other scene-state object (spec.md §3):
// on destruction it releases one reference per child. Containers are
// not drawn from a pool.Pool — their allocation rate is one per scene
// version at most for the containers actually touched by a mutation,
// which is low enough that plain GC reclamation is fine; the embedded
// Base still gives deterministic PreRelease cascading of child
// references the moment the last reference to the container drops,
// rather than waiting on a GC cycle.
type Container[T Entity] struct {
	Base
	ids   []int64
	items map[int64]T
}

func NewContainer[T Entity]() *Container[T] {
	c := &Container[T]{items: make(map[int64]T)}
	c.InitStandalone()
	return c
}

// PreRelease drops one reference on every child, per spec.md §3.
func (c *Container[T]) PreRelease() {
	for _, id := range c.ids {
		pool.RemoveReference[T](c.items[id])
	}
	c.ids = nil
	c.items = nil
}

func (c *Container[T]) Has(id int64) bool {
	_, ok := c.items[id]
	return ok
}

func (c *Container[T]) Get(id int64) (T, bool) {
	v, ok := c.items[id]
	return v, ok
}

// IDs returns the ids in insertion order. Callers must not mutate it.
func (c *Container[T]) IDs() []int64 { return c.ids }

func (c *Container[T]) Len() int { return len(c.ids) }

// clone returns a new Container sharing every current child (each
// child gets one additional reference), for the copy-on-write clone
// a scene mutation performs the first time it touches this container
// within a new scene version.
func (c *Container[T]) clone() *Container[T] {
	cp := &Container[T]{
		ids:   append([]int64(nil), c.ids...),
		items: make(map[int64]T, len(c.items)),
	}
	cp.InitStandalone()
	for id, v := range c.items {
		v.AddReference()
		cp.items[id] = v
	}
	return cp
}

// insert adds a new child, storing the caller's reference. The caller must
// already hold a reference on v that it is transferring to c (i.e.
// insert does not take an extra reference beyond the one it stores).
func (c *Container[T]) insert(v T) {
	id := v.ID()
	if !c.Has(id) {
		c.ids = append(c.ids, id)
	}
	c.items[id] = v
}

// remove drops v's id from the container and releases the container's
// reference to it.
func (c *Container[T]) remove(id int64) {
	v, ok := c.items[id]
	if !ok {
		return
	}
	delete(c.items, id)
	for i, existing := range c.ids {
		if existing == id {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			break
		}
	}
	pool.RemoveReference[T](v)
}

// replace swaps the child at id for v (used by alter*State, which
// installs a freshly-cloned leaf in place of the shared one). The old
// child's reference is released, v's is retained as-is (the caller
// transfers its reference to the container).
func (c *Container[T]) replace(v T) {
	id := v.ID()
	if old, ok := c.items[id]; ok {
		pool.RemoveReference[T](old)
	} else {
		c.ids = append(c.ids, id)
	}
	c.items[id] = v
}

func (c *Container[T]) fix() {
	if c.Fixed() {
		return
	}
	for _, id := range c.ids {
		fixEntity(c.items[id])
	}
	c.Base.fix()
}

// fixEntity calls the unexported fix() method every scene entity type
// implements via its embedded Base, through the fixer interface.
func fixEntity(e Entity) {
	if f, ok := any(e).(interface{ fix() }); ok {
		f.fix()
	}
}
