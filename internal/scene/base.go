// Package scene implements the versioned, copy-on-write scene-state
// graph of spec.md §3/§4.3 (C3) and its three-way diff (C4): motion,
// sound-source, receiver, portal, and surface states held in
// containers, published as immutable fixed snapshots that a control
// thread mutates by deriving new versions while audio threads keep
// rendering whichever snapshot they last took a reference to.
package scene

import "github.com/rtauralize/auracore/internal/pool"

// Entity is the common interface every scene-state object (leaf or
// container) implements: the shared header spec.md §9's design note
// calls for in place of polymorphic inheritance over
// {motion, soundSource, receiver, portal, surface, container}.
type Entity interface {
	pool.Poolable
	AddReference()
	RefCount() int32
	ID() int64
	Fixed() bool
	ModTime() float64
}

// Base is embedded by every scene-state entity type. It carries the
// pool refcount (via pool.Base), an id assigned at construction, the
// fixed flag flipped exactly once by fix(), and a modification time
// inherited from the scene version that created or altered it.
type Base struct {
	pool.Base
	id      int64
	fixed   bool
	modTime float64
}

func (b *Base) ID() int64        { return b.id }
func (b *Base) Fixed() bool      { return b.fixed }
func (b *Base) ModTime() float64 { return b.modTime }

// fix flips the entity to read-only. Callers are responsible for
// having already fixed anything it references (spec.md §4.3 invariant
// (i): any state reachable from a fixed scene is itself fixed).
func (b *Base) fix() { b.fixed = true }

// init assigns identity to a freshly pool-requested entity. Pool
// requests already hold a refcount of one; init only sets the header
// fields, it does not touch the refcount.
func (b *Base) init(id int64, modTime float64) {
	b.id = id
	b.modTime = modTime
}

// ResetForReuse clears the header so a recycled pool object starts
// from a clean slate before init is called again.
func (b *Base) ResetForReuse() {
	b.id = 0
	b.modTime = 0
	b.fixed = false
}

// idGenerator hands out monotonically increasing entity ids. One per
// Manager, shared across all entity kinds so ids never collide across
// a scene even when sources and receivers are mixed in logs.
type idGenerator struct {
	next int64
}

func (g *idGenerator) nextID() int64 {
	g.next++
	return g.next
}
