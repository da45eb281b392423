package scene

import (
	"sync"

	"github.com/rtauralize/auracore/internal/aerr"
	"github.com/rtauralize/auracore/internal/pool"
)

const (
	sourcePoolQuota   = 16
	receiverPoolQuota = 8
	portalPoolQuota   = 8
	surfacePoolQuota  = 8
	motionPoolQuota   = 32
	poolBlockSize     = 16
)

// Manager is the control thread's single entry point into the scene
// graph (spec.md §4.3, C3): it owns the leaf-state pools, the id
// generator, and the most recently published ("head") fixed scene
// state. All mutation methods take a *SceneState obtained from
// CreateDerived and operate copy-on-write, cloning a container or leaf
// only the first time a given derivation touches it (spec.md §4.3
// invariant (ii)).
//
// A Manager's own bookkeeping (mu, head, id counter) is only ever
// touched by the control thread; nothing here is safe to call from an
// audio thread. Renderers read published SceneState snapshots they
// already hold a reference to, never the Manager itself.
type Manager struct {
	mu   sync.Mutex
	ids  idGenerator
	head *SceneState

	sourcePool   *pool.Pool[*SoundSourceState]
	receiverPool *pool.Pool[*ReceiverState]
	portalPool   *pool.Pool[*PortalState]
	surfacePool  *pool.Pool[*SurfaceState]
	motionPool   *pool.Pool[*MotionState]
}

// NewManager builds a Manager whose head is an empty, already-fixed
// scene state.
func NewManager() *Manager {
	m := &Manager{
		sourcePool:   pool.New[*SoundSourceState](sourcePoolQuota, poolBlockSize, func() *SoundSourceState { return &SoundSourceState{} }),
		receiverPool: pool.New[*ReceiverState](receiverPoolQuota, poolBlockSize, func() *ReceiverState { return &ReceiverState{} }),
		portalPool:   pool.New[*PortalState](portalPoolQuota, poolBlockSize, func() *PortalState { return &PortalState{} }),
		surfacePool:  pool.New[*SurfaceState](surfacePoolQuota, poolBlockSize, func() *SurfaceState { return &SurfaceState{} }),
		motionPool:   pool.New[*MotionState](motionPoolQuota, poolBlockSize, func() *MotionState { return &MotionState{} }),
	}
	root := newEmptySceneState(m.ids.nextID(), 0)
	root.fix()
	m.head = root
	return m
}

// GetHeadSceneStateID returns the id of the most recently published
// fixed scene state.
func (m *Manager) GetHeadSceneStateID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head.ID()
}

// Head returns the most recently published fixed scene state, taking
// a new reference on the caller's behalf (e.g. a renderer about to
// diff against its previous scene and hold this one for a block).
func (m *Manager) Head() *SceneState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head.AddReference()
	return m.head
}

// CreateDerived returns a new, mutable SceneState sharing every
// container with base by pointer. base is typically the Manager's
// current head, but any SceneState the caller still holds a reference
// to is a valid derivation point; the Manager itself does not need to
// have published it. Callers own the returned reference and must
// release it; passing it to Publish does not release it.
func (m *Manager) CreateDerived(base *SceneState, modTime float64) *SceneState {
	m.mu.Lock()
	id := m.ids.nextID()
	m.mu.Unlock()
	return deriveFrom(base, id, modTime)
}

// Publish fixes s (recursively fixing every container and leaf it
// reaches) and installs it as the new head, replacing and releasing
// the Manager's reference to the previous head. s must not be mutated
// again after Publish returns; the caller's own reference to s is
// unaffected; it must still release it eventually.
func (m *Manager) Publish(s *SceneState) {
	s.fix()
	s.AddReference()

	m.mu.Lock()
	old := m.head
	m.head = s
	m.mu.Unlock()

	pool.RemoveReference[*SceneState](old)
}

// NewMotionState returns a freshly pool-requested, unfixed MotionState
// with a reference count of one, for the caller to populate (SetPose,
// SetHATO, ...) and hand to a leaf's SetMotionState. SetMotionState
// takes its own reference, so once attached the caller should release
// its own with ReleaseMotionState.
func (m *Manager) NewMotionState() *MotionState {
	return m.motionPool.Request()
}

// ReleaseMotionState drops the caller's reference to ms, e.g. after
// handing it to SetMotionState.
func (m *Manager) ReleaseMotionState(ms *MotionState) {
	pool.RemoveReference[*MotionState](ms)
}

// --- sound sources ---

// AddSoundSource inserts a freshly pool-requested source into s's
// sources container (cloning the container first if s still shares it
// with its base) and returns a handle the caller can populate with
// SetPower/SetMotionState/... before s is published.
func (m *Manager) AddSoundSource(s *SceneState) (*SoundSourceState, *aerr.Error) {
	if s.Fixed() {
		return nil, aerr.New(aerr.ModalError, "scene state is already fixed")
	}
	s.ensureOwnSources()
	leaf := m.sourcePool.Request()
	leaf.init(m.nextLeafID(), s.ModTime())
	s.sources.insert(leaf)
	return leaf, nil
}

// RemoveSoundSource detaches id from s's sources container.
func (m *Manager) RemoveSoundSource(s *SceneState, id int64) *aerr.Error {
	if s.Fixed() {
		return aerr.New(aerr.ModalError, "scene state is already fixed")
	}
	s.ensureOwnSources()
	if !s.sources.Has(id) {
		return aerr.New(aerr.NotFound, "no such sound source").WithKeyPath("id")
	}
	s.sources.remove(id)
	return nil
}

// AlterSoundSourceState returns a mutable handle to source id within
// s, cloning the leaf first if it is still shared with another scene
// version (i.e. its reference count is above one once s's container
// solely owns it).
func (m *Manager) AlterSoundSourceState(s *SceneState, id int64) (*SoundSourceState, *aerr.Error) {
	if s.Fixed() {
		return nil, aerr.New(aerr.ModalError, "scene state is already fixed")
	}
	s.ensureOwnSources()
	leaf, ok := s.sources.Get(id)
	if !ok {
		return nil, aerr.New(aerr.NotFound, "no such sound source").WithKeyPath("id")
	}
	if leaf.RefCount() > 1 {
		clone := m.sourcePool.Request()
		clone.cloneFrom(leaf, s.ModTime())
		s.sources.replace(clone)
		leaf = clone
	}
	return leaf, nil
}

// --- receivers ---

func (m *Manager) AddReceiver(s *SceneState) (*ReceiverState, *aerr.Error) {
	if s.Fixed() {
		return nil, aerr.New(aerr.ModalError, "scene state is already fixed")
	}
	s.ensureOwnReceivers()
	leaf := m.receiverPool.Request()
	leaf.init(m.nextLeafID(), s.ModTime())
	s.receivers.insert(leaf)
	return leaf, nil
}

func (m *Manager) RemoveReceiver(s *SceneState, id int64) *aerr.Error {
	if s.Fixed() {
		return aerr.New(aerr.ModalError, "scene state is already fixed")
	}
	s.ensureOwnReceivers()
	if !s.receivers.Has(id) {
		return aerr.New(aerr.NotFound, "no such receiver").WithKeyPath("id")
	}
	s.receivers.remove(id)
	return nil
}

func (m *Manager) AlterReceiverState(s *SceneState, id int64) (*ReceiverState, *aerr.Error) {
	if s.Fixed() {
		return nil, aerr.New(aerr.ModalError, "scene state is already fixed")
	}
	s.ensureOwnReceivers()
	leaf, ok := s.receivers.Get(id)
	if !ok {
		return nil, aerr.New(aerr.NotFound, "no such receiver").WithKeyPath("id")
	}
	if leaf.RefCount() > 1 {
		clone := m.receiverPool.Request()
		clone.cloneFrom(leaf, s.ModTime())
		s.receivers.replace(clone)
		leaf = clone
	}
	return leaf, nil
}

// --- portals ---

func (m *Manager) AddPortal(s *SceneState) (*PortalState, *aerr.Error) {
	if s.Fixed() {
		return nil, aerr.New(aerr.ModalError, "scene state is already fixed")
	}
	s.ensureOwnPortals()
	leaf := m.portalPool.Request()
	leaf.init(m.nextLeafID(), s.ModTime())
	s.portals.insert(leaf)
	return leaf, nil
}

func (m *Manager) RemovePortal(s *SceneState, id int64) *aerr.Error {
	if s.Fixed() {
		return aerr.New(aerr.ModalError, "scene state is already fixed")
	}
	s.ensureOwnPortals()
	if !s.portals.Has(id) {
		return aerr.New(aerr.NotFound, "no such portal").WithKeyPath("id")
	}
	s.portals.remove(id)
	return nil
}

func (m *Manager) AlterPortalState(s *SceneState, id int64) (*PortalState, *aerr.Error) {
	if s.Fixed() {
		return nil, aerr.New(aerr.ModalError, "scene state is already fixed")
	}
	s.ensureOwnPortals()
	leaf, ok := s.portals.Get(id)
	if !ok {
		return nil, aerr.New(aerr.NotFound, "no such portal").WithKeyPath("id")
	}
	if leaf.RefCount() > 1 {
		clone := m.portalPool.Request()
		clone.cloneFrom(leaf, s.ModTime())
		s.portals.replace(clone)
		leaf = clone
	}
	return leaf, nil
}

// --- surfaces ---

func (m *Manager) AddSurface(s *SceneState) (*SurfaceState, *aerr.Error) {
	if s.Fixed() {
		return nil, aerr.New(aerr.ModalError, "scene state is already fixed")
	}
	s.ensureOwnSurfaces()
	leaf := m.surfacePool.Request()
	leaf.init(m.nextLeafID(), s.ModTime())
	s.surfaces.insert(leaf)
	return leaf, nil
}

func (m *Manager) RemoveSurface(s *SceneState, id int64) *aerr.Error {
	if s.Fixed() {
		return aerr.New(aerr.ModalError, "scene state is already fixed")
	}
	s.ensureOwnSurfaces()
	if !s.surfaces.Has(id) {
		return aerr.New(aerr.NotFound, "no such surface").WithKeyPath("id")
	}
	s.surfaces.remove(id)
	return nil
}

func (m *Manager) AlterSurfaceState(s *SceneState, id int64) (*SurfaceState, *aerr.Error) {
	if s.Fixed() {
		return nil, aerr.New(aerr.ModalError, "scene state is already fixed")
	}
	s.ensureOwnSurfaces()
	leaf, ok := s.surfaces.Get(id)
	if !ok {
		return nil, aerr.New(aerr.NotFound, "no such surface").WithKeyPath("id")
	}
	if leaf.RefCount() > 1 {
		clone := m.surfacePool.Request()
		clone.cloneFrom(leaf, s.ModTime())
		s.surfaces.replace(clone)
		leaf = clone
	}
	return leaf, nil
}

func (m *Manager) nextLeafID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids.nextID()
}

// ensureOwnSources clones s's sources container if it is still shared
// with another scene version (reference count above one once the
// derivation itself holds a reference), per spec.md §4.3's
// copy-on-write rule. A container solely referenced by s (count one)
// was already cloned by an earlier mutation within this same
// derivation and can be mutated in place.
func (s *SceneState) ensureOwnSources() {
	if s.sources.RefCount() > 1 {
		old := s.sources
		s.sources = old.clone()
		pool.RemoveReference[*Container[*SoundSourceState]](old)
	}
}

func (s *SceneState) ensureOwnReceivers() {
	if s.receivers.RefCount() > 1 {
		old := s.receivers
		s.receivers = old.clone()
		pool.RemoveReference[*Container[*ReceiverState]](old)
	}
}

func (s *SceneState) ensureOwnPortals() {
	if s.portals.RefCount() > 1 {
		old := s.portals
		s.portals = old.clone()
		pool.RemoveReference[*Container[*PortalState]](old)
	}
}

func (s *SceneState) ensureOwnSurfaces() {
	if s.surfaces.RefCount() > 1 {
		old := s.surfaces
		s.surfaces = old.clone()
		pool.RemoveReference[*Container[*SurfaceState]](old)
	}
}
