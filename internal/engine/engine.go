// Package engine ties the scene manager, the live set of renderer
// instances, and the reset/update-message plumbing into the single
// control-thread orchestration point spec.md §2's data-flow paragraph
// describes: "the control thread ... walks every renderer to
// translate the diff into path creations/deletions and parameter
// updates". It does not itself run an audio callback — that split is
// internal/driver's job (Realtime vs Offline), matching §5's "Offline
// rendering mode behaves identically but without a real audio thread:
// the control thread runs process() synchronously."
package engine

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/rtauralize/auracore/internal/aerr"
	"github.com/rtauralize/auracore/internal/audioio"
	"github.com/rtauralize/auracore/internal/auramode"
	"github.com/rtauralize/auracore/internal/obslog"
	"github.com/rtauralize/auracore/internal/renderer"
	"github.com/rtauralize/auracore/internal/scene"
)

// Config is the engine's construction-time shape.
type Config struct {
	SampleRate float64
	BlockLen   int
}

// Engine is the control thread's single entry point: it owns the
// scene manager, every named renderer instance mixing into the final
// output (spec.md §2's "renderer orchestration"), and the global
// auralization-mode gate applied to all of them.
type Engine struct {
	mu sync.Mutex

	mgr        *scene.Manager
	renderers  map[string]renderer.Contract
	order      []string
	globalMode auramode.Mode

	info       audioio.Info
	mixL, mixR []float64

	log *log.Logger
}

// New builds an Engine with an empty scene and no renderers.
func New(cfg Config) *Engine {
	return &Engine{
		mgr:        scene.NewManager(),
		renderers:  make(map[string]renderer.Contract),
		globalMode: auramode.Default,
		info:       audioio.Info{SampleRate: cfg.SampleRate, BlockLen: cfg.BlockLen, Channels: 2},
		mixL:       make([]float64, cfg.BlockLen),
		mixR:       make([]float64, cfg.BlockLen),
		log:        obslog.New("engine"),
	}
}

// SceneManager exposes the underlying scene.Manager for callers that
// need to build derived scene states directly (e.g. internal/config's
// loader, populating the initial scene before the engine starts).
func (e *Engine) SceneManager() *scene.Manager { return e.mgr }

// Info returns the engine's block-stream parameters.
func (e *Engine) Info() audioio.Info { return e.info }

// AddRenderer registers a named renderer instance and immediately
// brings it up to date with the current scene. Names are unique;
// re-registering an existing name is a ModalError.
func (e *Engine) AddRenderer(name string, r renderer.Contract) *aerr.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.renderers[name]; exists {
		return aerr.Newf(aerr.ModalError, "engine: renderer %q already registered", name)
	}
	e.renderers[name] = r
	e.order = append(e.order, name)
	sort.Strings(e.order)
	r.UpdateScene(e.mgr.Head())
	r.UpdateGlobalAuralizationMode(e.globalMode)
	return nil
}

// RemoveRenderer resets and drops a named renderer.
func (e *Engine) RemoveRenderer(name string) *aerr.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.renderers[name]
	if !ok {
		return aerr.Newf(aerr.NotFound, "engine: no renderer named %q", name)
	}
	r.Reset()
	delete(e.renderers, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// Renderer looks up a registered renderer by name.
func (e *Engine) Renderer(name string) (renderer.Contract, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.renderers[name]
	return r, ok
}

// RendererNames returns every registered renderer's name in mix order.
func (e *Engine) RendererNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(e.order))
	copy(names, e.order)
	return names
}

// Mutate runs fn against the scene manager and a freshly derived,
// still-mutable scene state (spec.md §4.3's copy-on-write derivation),
// publishes the result, and pushes the resulting diff to every
// registered renderer. fn returning a non-nil error aborts the
// mutation; the derived state is discarded.
func (e *Engine) Mutate(modTime float64, fn func(mgr *scene.Manager, derived *scene.SceneState) *aerr.Error) *aerr.Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	derived := e.mgr.CreateDerived(e.mgr.Head(), modTime)
	if err := fn(e.mgr, derived); err != nil {
		return err
	}
	e.mgr.Publish(derived)
	for _, name := range e.order {
		e.renderers[name].UpdateScene(derived)
	}
	return nil
}

// SetGlobalAuralizationMode rewrites the AND-gate every renderer's
// live paths read (spec.md §6's auralization-mode bitmask).
func (e *Engine) SetGlobalAuralizationMode(mode auramode.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globalMode = mode
	for _, name := range e.order {
		e.renderers[name].UpdateGlobalAuralizationMode(mode)
	}
}

// Process runs one block through every registered renderer and mixes
// their stereo outputs together (spec.md §2: "multiple renderer
// instances ... each consuming the same scene and mixing into the
// output"). Safe to call from either a real audio callback or an
// offline synchronous loop. It takes the engine mutex, so it waits
// while a control-thread call (Mutate, AddRenderer, Reset, ...) holds it.
func (e *Engine) Process(info audioio.Info) (outL, outR []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.mixL {
		e.mixL[i] = 0
		e.mixR[i] = 0
	}
	for _, name := range e.order {
		l, r := e.renderers[name].Process(info)
		for i := range e.mixL {
			e.mixL[i] += l[i]
			e.mixR[i] += r[i]
		}
	}
	return e.mixL, e.mixR
}

// Reset drains every renderer's live paths via its reset handshake
// (spec.md §5's "Cancellation and timeouts"); each Contract.Reset call
// blocks the control thread until its own audio-thread side has
// acknowledged.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range e.order {
		e.renderers[name].Reset()
	}
}

// Log returns the engine's structured logger (SPEC_FULL.md §A.1).
func (e *Engine) Log() *log.Logger { return e.log }

// DrainAudioEvents drains rng (typically a renderer's own AudioRing,
// obtained through a *renderer.Base accessor on a concrete variant)
// into the engine's logger. Intended to run once per control-thread
// tick, never from the audio thread itself.
func (e *Engine) DrainAudioEvents(rng *obslog.AudioRing) {
	obslog.Logged(e.log, rng)
}
