package scene

import "github.com/rtauralize/auracore/internal/pool"

// SceneState is one immutable, fixed snapshot of the world (spec.md
// §3): four container states (sources, receivers, portals, surfaces)
// plus the id and modification time inherited from Base. Like
// Container, it is reference-counted but not pool-backed — one scene
// version is created per control-thread mutation batch, which is rare
// enough for plain GC reclamation once the last reference drops.
type SceneState struct {
	Base

	sources   *Container[*SoundSourceState]
	receivers *Container[*ReceiverState]
	portals   *Container[*PortalState]
	surfaces  *Container[*SurfaceState]
}

func (s *SceneState) PreRelease() {
	pool.RemoveReference[*Container[*SoundSourceState]](s.sources)
	pool.RemoveReference[*Container[*ReceiverState]](s.receivers)
	pool.RemoveReference[*Container[*PortalState]](s.portals)
	pool.RemoveReference[*Container[*SurfaceState]](s.surfaces)
	s.sources, s.receivers, s.portals, s.surfaces = nil, nil, nil, nil
}

func (s *SceneState) Sources() *Container[*SoundSourceState]   { return s.sources }
func (s *SceneState) Receivers() *Container[*ReceiverState]    { return s.receivers }
func (s *SceneState) Portals() *Container[*PortalState]        { return s.portals }
func (s *SceneState) Surfaces() *Container[*SurfaceState]      { return s.surfaces }

// fix recursively fixes every container reachable from s (which in
// turn fixes every leaf state reachable from each container), then
// flips s itself to read-only. Spec.md §4.3 invariant (i): any state
// reachable from a fixed scene is itself fixed.
func (s *SceneState) fix() {
	if s.Fixed() {
		return
	}
	s.sources.fix()
	s.receivers.fix()
	s.portals.fix()
	s.surfaces.fix()
	s.Base.fix()
}

// newEmptySceneState builds a freshly-initialized SceneState with four empty
// containers, each holding one standalone reference owned by s.
func newEmptySceneState(id int64, modTime float64) *SceneState {
	s := &SceneState{
		sources:   NewContainer[*SoundSourceState](),
		receivers: NewContainer[*ReceiverState](),
		portals:   NewContainer[*PortalState](),
		surfaces:  NewContainer[*SurfaceState](),
	}
	s.InitStandalone()
	s.init(id, modTime)
	return s
}

// deriveFrom builds a new SceneState that shares all four containers
// by pointer with base (pointer equality, no copy yet); the first
// mutation against each container performed through Manager will
// clone it on demand.
func deriveFrom(base *SceneState, id int64, modTime float64) *SceneState {
	base.sources.AddReference()
	base.receivers.AddReference()
	base.portals.AddReference()
	base.surfaces.AddReference()
	s := &SceneState{
		sources:   base.sources,
		receivers: base.receivers,
		portals:   base.portals,
		surfaces:  base.surfaces,
	}
	s.InitStandalone()
	s.init(id, modTime)
	return s
}
