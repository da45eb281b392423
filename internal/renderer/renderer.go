// Package renderer implements the renderer contract of spec.md §4.6
// (C9), the single largest component: updateScene/process/reset/
// getParameters-setParameters, shared by every concrete variant in
// §4.8. Base implements the shared machinery — live source/receiver/
// path bookkeeping, update-message draining, the reset handshake, and
// the parameter side channel — that each variant subpackage composes
// with its own per-path DSP shape.
package renderer

import (
	"fmt"
	"io"

	"github.com/rtauralize/auracore/internal/aerr"
	"github.com/rtauralize/auracore/internal/audioio"
	"github.com/rtauralize/auracore/internal/auramode"
	"github.com/rtauralize/auracore/internal/motion"
	"github.com/rtauralize/auracore/internal/obslog"
	"github.com/rtauralize/auracore/internal/path"
	"github.com/rtauralize/auracore/internal/pool"
	"github.com/rtauralize/auracore/internal/reset"
	"github.com/rtauralize/auracore/internal/scene"
	"github.com/rtauralize/auracore/internal/structval"
	"github.com/rtauralize/auracore/internal/updatemsg"
)

// Contract is the shape every concrete renderer variant implements
// (spec.md §4.6).
type Contract interface {
	UpdateScene(newScene *scene.SceneState)
	UpdateGlobalAuralizationMode(mode auramode.Mode)
	Process(info audioio.Info) (outL, outR []float64)
	Reset()
	OutputDatasource() audioio.Source
	GetParameters(query *structval.Struct) *structval.Struct
	SetParameters(kv *structval.Struct) *aerr.Error
}

// SourceInputRegistrar is implemented by every concrete variant (each
// embeds *Base, which defines RegisterSourceInput, or forwards to one
// that does): binding a source id to its input audioio.Source without
// the caller needing to know which variant it is building, for
// drivers wiring cmd/auracore-offline's per-source WAV inputs against
// whatever renderer.Contract a config file names.
type SourceInputRegistrar interface {
	RegisterSourceInput(sourceID int64, src audioio.Source)
}

// pathKey identifies one sound path by its endpoints.
type pathKey struct {
	sourceID   int64
	receiverID int64
}

// Base implements the scene/path/update-message/reset bookkeeping
// shared by every renderer variant (spec.md §4.6's updateScene,
// process's live-path iteration, reset, and parameter side channel).
// A variant embeds Base and supplies its own path construction and
// per-block DSP beyond what path.Path already does.
type Base struct {
	pathFactory func() *path.Path
	pathPool    *pool.Pool[*path.Path]
	msgPool     *pool.Pool[*updatemsg.Message]
	queue       *updatemsg.Queue

	current *scene.SceneState

	liveSources   map[int64]*scene.SoundSourceState
	liveReceivers map[int64]*scene.ReceiverState
	livePaths     map[pathKey]*path.Path

	sourceMotions   map[int64]*motion.Model
	receiverMotions map[int64]*motion.Model
	motionCfg       motion.Config

	sourceInputs map[int64]audioio.Source
	inputScratch []float64

	globalMode auramode.Mode

	resetHandshake *reset.Handshake
	audioEvents    *obslog.AudioRing

	outputL, outputR []float64
	output           *outputSource

	params *structval.Struct
}

// NewBase builds a Base sharing pathFactory's constructed paths
// through a pool sized by initialPathQuota/pathGrowth.
func NewBase(pathFactory func() *path.Path, initialPathQuota, pathGrowth int, motionCfg motion.Config, sampleRate float64, blockLen int) *Base {
	if motionCfg.Capacity <= 0 {
		motionCfg = motion.DefaultConfig()
	}
	b := &Base{
		pathFactory:     pathFactory,
		pathPool:        pool.New[*path.Path](initialPathQuota, pathGrowth, pathFactory),
		msgPool:         pool.New[*updatemsg.Message](4, 4, updatemsg.NewFactory(8)),
		queue:           updatemsg.NewQueue(16),
		liveSources:     make(map[int64]*scene.SoundSourceState),
		liveReceivers:   make(map[int64]*scene.ReceiverState),
		livePaths:       make(map[pathKey]*path.Path),
		sourceMotions:   make(map[int64]*motion.Model),
		receiverMotions: make(map[int64]*motion.Model),
		motionCfg:       motionCfg,
		sourceInputs:    make(map[int64]audioio.Source),
		inputScratch:    make([]float64, blockLen),
		globalMode:      auramode.Default,
		resetHandshake:  reset.New(),
		audioEvents:     obslog.NewAudioRing(64),
		outputL:         make([]float64, blockLen),
		outputR:         make([]float64, blockLen),
		params:          structval.New(),
	}
	b.output = &outputSource{info: audioio.Info{SampleRate: sampleRate, BlockLen: blockLen, Channels: 2}, l: b.outputL, r: b.outputR}
	return b
}

// RegisterSourceInput binds sourceID's input sample frame source
// (spec.md §6: "each source owns a sample frame buffer"). The
// renderer reads channel 0 of whatever Source is registered here
// every block; an unregistered source is treated as silence.
func (b *Base) RegisterSourceInput(sourceID int64, src audioio.Source) {
	b.sourceInputs[sourceID] = src
}

// ResetHandshake exposes the underlying reset.Handshake so the engine
// layer can drive/observe it directly (e.g. to block the control
// thread in Reset()).
func (b *Base) ResetHandshake() *reset.Handshake { return b.resetHandshake }

// AudioEvents exposes the audio-thread degradation ring (spec.md §7
// "log and degrade") so the engine's control-thread tick can drain it
// into the structured logger without the audio thread itself ever
// calling into charmbracelet/log.
func (b *Base) AudioEvents() *obslog.AudioRing { return b.audioEvents }

// UpdateGlobalAuralizationMode rewrites the AND-gate every live path
// reads (spec.md §4.6).
func (b *Base) UpdateGlobalAuralizationMode(mode auramode.Mode) {
	b.globalMode = mode
}

// GlobalMode returns the auralization-mode gate most recently set by
// UpdateGlobalAuralizationMode, for variants driving path.Path.Process
// themselves through the Paths hook rather than through ProcessPaths.
func (b *Base) GlobalMode() auramode.Mode { return b.globalMode }

// UpdateScene diffs newScene against the scene Base last accepted,
// builds an update message describing every new/deleted source,
// receiver, and path, and pushes it to the audio-thread queue
// (spec.md §4.6). Control-thread only; never blocks the audio thread,
// which drains the queue for itself inside Process.
func (b *Base) UpdateScene(newScene *scene.SceneState) {
	msg := b.msgPool.Request()

	oldSourceIDs := map[int64]bool{}
	oldReceiverIDs := map[int64]bool{}
	if b.current != nil {
		for _, id := range b.current.Sources().IDs() {
			oldSourceIDs[id] = true
		}
		for _, id := range b.current.Receivers().IDs() {
			oldReceiverIDs[id] = true
		}
	}

	newSourceIDs := map[int64]bool{}
	for _, id := range newScene.Sources().IDs() {
		newSourceIDs[id] = true
		src, _ := newScene.Sources().Get(id)
		if !oldSourceIDs[id] {
			msg.AddNewSource(src)
		}
		m := b.sourceMotions[id]
		if m == nil {
			m = motion.New(b.motionCfg)
			b.sourceMotions[id] = m
		}
		if ms := src.MotionState(); ms != nil {
			m.InputMotionKey(src.ModTime(), ms.Position(), ms.View(), ms.Up())
		}
	}
	for id := range oldSourceIDs {
		if !newSourceIDs[id] {
			if src, ok := b.current.Sources().Get(id); ok {
				msg.AddDeletedSource(src)
			}
		}
	}

	newReceiverIDs := map[int64]bool{}
	for _, id := range newScene.Receivers().IDs() {
		newReceiverIDs[id] = true
		recv, _ := newScene.Receivers().Get(id)
		if !oldReceiverIDs[id] {
			msg.AddNewReceiver(recv)
		}
		m := b.receiverMotions[id]
		if m == nil {
			m = motion.New(b.motionCfg)
			b.receiverMotions[id] = m
		}
		if ms := recv.MotionState(); ms != nil {
			m.InputMotionKey(recv.ModTime(), ms.Position(), ms.View(), ms.Up())
		}
	}
	for id := range oldReceiverIDs {
		if !newReceiverIDs[id] {
			if recv, ok := b.current.Receivers().Get(id); ok {
				msg.AddDeletedReceiver(recv)
			}
		}
	}

	// Desired path set is the full cross product of surviving
	// sources x receivers (spec.md §3: "path count per renderer is
	// bounded by sources x receivers"). New pairs get a fresh pooled
	// Path; pairs whose source or receiver is gone are force-marked
	// and queued for deletion even without an explicit per-path call.
	desired := make(map[pathKey]bool, len(newSourceIDs)*len(newReceiverIDs))
	for sID := range newSourceIDs {
		for rID := range newReceiverIDs {
			key := pathKey{sID, rID}
			desired[key] = true
			if _, exists := b.livePaths[key]; exists {
				continue
			}
			src, _ := newScene.Sources().Get(sID)
			recv, _ := newScene.Receivers().Get(rID)
			p := b.pathPool.Request()
			p.Attach(src, recv, b.sourceMotions[sID], b.receiverMotions[rID])
			msg.AddNewPath(p)
			pool.RemoveReference[*path.Path](p) // message holds its own reference now
		}
	}
	for key, p := range b.livePaths {
		if !desired[key] {
			p.MarkForDeletion()
			msg.AddDeletedPath(p)
		}
	}

	newScene.AddReference()
	if b.current != nil {
		pool.RemoveReference[*scene.SceneState](b.current)
	}
	b.current = newScene

	if !b.queue.Push(msg) {
		// Backpressure: drop the message rather than merge it (spec.md
		// §4.6: "messages are never merged"). The next updateScene call
		// will still diff against the correctly-updated b.current, so
		// the scene graph itself never desyncs; only this block's view
		// of it is stale by one cycle.
		pool.RemoveReference[*updatemsg.Message](msg)
	}
}

// drainUpdates applies every queued update message to the live maps.
// Audio-thread side; called at the top of Process.
func (b *Base) drainUpdates() {
	for {
		msg := b.queue.Pop()
		if msg == nil {
			return
		}
		for _, s := range msg.NewSources {
			b.liveSources[s.ID()] = s
		}
		for _, s := range msg.DeletedSources {
			delete(b.liveSources, s.ID())
		}
		for _, r := range msg.NewReceivers {
			b.liveReceivers[r.ID()] = r
		}
		for _, r := range msg.DeletedReceivers {
			delete(b.liveReceivers, r.ID())
		}
		for _, p := range msg.NewPaths {
			key := pathKey{p.SourceID(), p.ReceiverID()}
			p.AddReference()
			b.livePaths[key] = p
		}
		for _, p := range msg.DeletedPaths {
			key := pathKey{p.SourceID(), p.ReceiverID()}
			if existing, ok := b.livePaths[key]; ok && existing == p {
				delete(b.livePaths, key)
				pool.RemoveReference[*path.Path](existing)
			}
		}
		pool.RemoveReference[*updatemsg.Message](msg)
	}
}

// Paths handles one block's worth of reset/update-message bookkeeping
// and then, unless a reset just fired, calls fn once per live,
// not-marked-for-deletion path with that source's pulled input block.
// Returns false when a reset fired this block (fn was not called);
// variants whose per-block DSP differs from path.Path's own binaural
// pipeline (ambisonics, reverb, air-traffic noise) drive their own
// per-path processing through this hook instead of ProcessPaths.
func (b *Base) Paths(info audioio.Info, fn func(p *path.Path, sourceBlock []float64)) bool {
	for i := range b.outputL {
		b.outputL[i] = 0
		b.outputR[i] = 0
	}

	if b.resetHandshake.State() == reset.Requested {
		for key, p := range b.livePaths {
			delete(b.livePaths, key)
			pool.RemoveReference[*path.Path](p)
		}
		b.resetHandshake.Acknowledge()
		return false
	}

	b.drainUpdates()

	for _, p := range b.livePaths {
		if p.MarkedForDeletion() {
			continue
		}
		in := b.pullSourceInput(p.SourceID(), info)
		fn(p, in)
	}
	return true
}

// ProcessPaths runs the shared binaural per-block pipeline: every
// live path's own VDL->filter-bank->convolver chain, mix-accumulated
// into Base's stereo output buffers. Variants with no DSP of their
// own beyond path.Path (free-field, the prototype variants) use this
// directly.
func (b *Base) ProcessPaths(info audioio.Info) (outL, outR []float64) {
	b.Paths(info, func(p *path.Path, in []float64) {
		p.Process(info.BlockTime, b.globalMode, in, b.outputL, b.outputR)
		if !p.ValidTrajectory() {
			b.audioEvents.Push(obslog.Event{Kind: obslog.EventMissingTrajectory, EntityID: p.SourceID()})
		}
	})
	return b.outputL, b.outputR
}

// OutputBuffers exposes Base's owned stereo scratch buffers directly,
// for variants that mix-accumulate outside of ProcessPaths (e.g. a
// reverb tail added on top of the direct-sound pass).
func (b *Base) OutputBuffers() (outL, outR []float64) { return b.outputL, b.outputR }

// LiveSource and LiveReceiver look up a currently-live entity by id,
// for variants that need the source's directivity or receiver's
// anthropometry outside of a path's own Process call (e.g. assembling
// sub-spectra for the air-traffic-noise variant).
func (b *Base) LiveSource(id int64) (*scene.SoundSourceState, bool) {
	s, ok := b.liveSources[id]
	return s, ok
}

func (b *Base) LiveReceiver(id int64) (*scene.ReceiverState, bool) {
	r, ok := b.liveReceivers[id]
	return r, ok
}

// SourceMotionModel and ReceiverMotionModel expose the motion models
// Base feeds from scene diffs, for variants computing their own
// geometry/DSP outside of path.Path's own pipeline (e.g. ambisonics'
// spherical-harmonic channel matrix, which replaces path.Path's per-
// ear FIR stage but still needs the same sampled trajectory).
func (b *Base) SourceMotionModel(id int64) (*motion.Model, bool) {
	m, ok := b.sourceMotions[id]
	return m, ok
}

func (b *Base) ReceiverMotionModel(id int64) (*motion.Model, bool) {
	m, ok := b.receiverMotions[id]
	return m, ok
}

// LivePath looks up the live path for one (sourceID, receiverID) pair,
// for variants that need to push data directly into a specific path's
// DSP graph (e.g. a raw impulse response via setParameters).
func (b *Base) LivePath(sourceID, receiverID int64) (*path.Path, bool) {
	p, ok := b.livePaths[pathKey{sourceID, receiverID}]
	return p, ok
}

func (b *Base) pullSourceInput(sourceID int64, info audioio.Info) []float64 {
	for i := range b.inputScratch {
		b.inputScratch[i] = 0
	}
	src, ok := b.sourceInputs[sourceID]
	if !ok {
		return b.inputScratch
	}
	dst := [][]float64{b.inputScratch}
	src.PullBlock(dst)
	return b.inputScratch
}

// Reset initiates the reset protocol (spec.md §5): request, then
// block the calling (control) thread until the audio thread
// acknowledges via the condition-variable Wait, then clear back to
// NotRequested.
func (b *Base) Reset() {
	b.resetHandshake.Request()
	b.resetHandshake.Wait()
	b.resetHandshake.Clear()
}

// OutputDatasource exposes Base's per-block output as a pull source.
func (b *Base) OutputDatasource() audioio.Source { return b.output }

// GetParameters returns the subset of the renderer's parameter struct
// named by query's keys, or every key if query is empty.
func (b *Base) GetParameters(query *structval.Struct) *structval.Struct {
	if query == nil || query.Len() == 0 {
		return b.params.Clone()
	}
	out := structval.New()
	for _, k := range query.Keys() {
		if v, ok := b.params.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

// SetParameters merges kv into the renderer's parameter struct.
// Variant-specific keys (e.g. RoomVolume, MaxOrder) are interpreted
// by the embedding variant's own SetParameters, which should call
// this after handling keys it recognizes so unrecognized ones are
// still retained for GetParameters round-trips.
func (b *Base) SetParameters(kv *structval.Struct) *aerr.Error {
	return b.params.Merge(kv, false)
}

// Dump writes a one-line-per-section introspection report (live
// entity/path counts and pool high-water marks) to w, per
// SPEC_FULL.md §C's debug-dump surface: used by cmd/auracore-scenelint
// and by tests asserting reset completeness leaves every count at zero.
func (b *Base) Dump(w io.Writer) {
	pathStats := b.pathPool.Stats()
	msgStats := b.msgPool.Stats()
	fmt.Fprintf(w, "live sources=%d receivers=%d paths=%d\n", len(b.liveSources), len(b.liveReceivers), len(b.livePaths))
	fmt.Fprintf(w, "path pool capacity=%d free=%d\n", pathStats.Capacity, pathStats.Free)
	fmt.Fprintf(w, "update-message pool capacity=%d free=%d\n", msgStats.Capacity, msgStats.Free)
	for key, p := range b.livePaths {
		fmt.Fprintf(w, "  path source=%d receiver=%d validTrajectory=%t markedForDeletion=%t\n",
			key.sourceID, key.receiverID, p.ValidTrajectory(), p.MarkedForDeletion())
	}
}

// outputSource adapts Base's per-block stereo buffers to audioio.Source.
type outputSource struct {
	info audioio.Info
	l, r []float64
}

func (o *outputSource) Info() audioio.Info { return o.info }

func (o *outputSource) PullBlock(dst [][]float64) bool {
	if len(dst) > 0 {
		copy(dst[0], o.l)
	}
	if len(dst) > 1 {
		copy(dst[1], o.r)
	}
	return true
}
