// Package path implements the sound path of spec.md §3/§4.6 (C8): the
// per-(source,receiver) DSP graph a renderer owns one of for every
// live pair. A Path is pool-backed like every other audio-critical
// object (C1) but holds non-owning pointers to its source and
// receiver — the renderer, not the path, is responsible for keeping
// those alive via its own reference bookkeeping.
package path

import (
	"math"

	"github.com/rtauralize/auracore/internal/auramode"
	"github.com/rtauralize/auracore/internal/directivity"
	"github.com/rtauralize/auracore/internal/dsp"
	"github.com/rtauralize/auracore/internal/metrics"
	"github.com/rtauralize/auracore/internal/motion"
	"github.com/rtauralize/auracore/internal/pool"
	"github.com/rtauralize/auracore/internal/scene"
)

// DefaultSpeedOfSound is 343 m/s (dry air at 20C).
const DefaultSpeedOfSound = 343.0

// DefaultMinDistanceMeters is d_min in spec.md §4.6 step 5, preventing
// the 1/d spreading-loss gain from blowing up near the head.
const DefaultMinDistanceMeters = 0.25

// Config is the fixed shape every path a renderer constructs shares:
// block length, filter-bank realization, and the shared filter pool
// its convolvers draw from.
type Config struct {
	SampleRate      float64
	BlockLen        int
	FIRTaps         int
	Realization     dsp.FilterBankRealization
	MaxPartitions   int
	MaxDelaySamples int
	FilterPool      *pool.Pool[*dsp.Filter]
}

// DefaultMaxDelaySamples sizes a VDL's ring for a path whose distance
// never exceeds maxDistanceMeters, with a small margin for ITD offset.
func DefaultMaxDelaySamples(sampleRate, maxDistanceMeters float64) int {
	samples := int(maxDistanceMeters/DefaultSpeedOfSound*sampleRate) + 64
	if samples < 64 {
		samples = 64
	}
	return samples
}

// Path is one source->receiver DSP graph (spec.md §3, C8): one
// variable delay line per output ear, one third-octave filter bank
// for source directivity, and one FIR convolver per ear for the HRIR.
// markedForDeletion is set by the control thread and drained by the
// audio thread at the next sync (spec.md §4.6's
// created->live->markedForDeletion->released state machine).
type Path struct {
	pool.Base

	cfg Config

	source   *scene.SoundSourceState
	receiver *scene.ReceiverState

	sourceMotion   *motion.Model
	receiverMotion *motion.Model

	speedOfSound                 float64
	minDistanceMeters            float64
	additionalStaticDelaySeconds float64
	switchAlgorithm              dsp.SwitchAlgorithm

	vdl             [2]*dsp.VariableDelayLine
	directivityBank *dsp.FilterBank
	convolver       [2]*dsp.Convolver

	haveSourceDirRecord bool
	lastSourceDirRecord int
	haveHRIRRecord      bool
	lastHRIRRecord      int
	manualIR            bool
	extraGain           float64

	markedForDeletion bool
	validTrajectory   bool

	scratchMono []float64 // filter-bank output, reused every block
	scratchEar  []float64 // per-ear VDL output, reused every block
}

// NewFactory returns a pool factory building Path objects shaped by
// cfg; every DSP element a path ever needs is preallocated once here,
// so later reuse through the pool never allocates.
func NewFactory(cfg Config) func() *Path {
	return func() *Path {
		maxDelay := cfg.MaxDelaySamples
		if maxDelay <= 0 {
			maxDelay = DefaultMaxDelaySamples(cfg.SampleRate, 100)
		}
		p := &Path{
			cfg:               cfg,
			speedOfSound:      DefaultSpeedOfSound,
			minDistanceMeters: DefaultMinDistanceMeters,
			switchAlgorithm:   dsp.SwitchWindowedSinc,
			extraGain:         1,
			directivityBank:   dsp.NewFilterBank(cfg.SampleRate, cfg.BlockLen, cfg.FIRTaps, cfg.Realization),
			scratchMono:       make([]float64, cfg.BlockLen),
			scratchEar:        make([]float64, cfg.BlockLen),
		}
		for ear := 0; ear < 2; ear++ {
			p.vdl[ear] = dsp.NewVariableDelayLine(maxDelay)
			p.convolver[ear] = dsp.NewConvolver(cfg.BlockLen, cfg.MaxPartitions, cfg.FilterPool)
		}
		return p
	}
}

func (p *Path) PreRelease() {
	p.source = nil
	p.receiver = nil
	p.sourceMotion = nil
	p.receiverMotion = nil
}

// ResetForReuse clears a recycled path's endpoint bindings and
// directivity/HRIR bookkeeping; the DSP elements themselves are kept
// (not reallocated) and fall back to an identity/silent state until
// Process first runs against the new endpoints.
func (p *Path) ResetForReuse() {
	p.source = nil
	p.receiver = nil
	p.sourceMotion = nil
	p.receiverMotion = nil
	p.speedOfSound = DefaultSpeedOfSound
	p.minDistanceMeters = DefaultMinDistanceMeters
	p.additionalStaticDelaySeconds = 0
	p.switchAlgorithm = dsp.SwitchWindowedSinc
	p.haveSourceDirRecord = false
	p.haveHRIRRecord = false
	p.manualIR = false
	p.extraGain = 1
	p.markedForDeletion = false
	p.validTrajectory = false
	p.directivityBank.SetIdentity()
}

// Attach binds p to a newly diffed-in (source, receiver) pair. Called
// by a renderer when it creates a path for this pair (spec.md §4.6);
// the renderer owns keeping source/receiver/their motion models alive
// for as long as this path references them.
func (p *Path) Attach(source *scene.SoundSourceState, receiver *scene.ReceiverState, sourceMotion, receiverMotion *motion.Model) {
	p.source = source
	p.receiver = receiver
	p.sourceMotion = sourceMotion
	p.receiverMotion = receiverMotion
}

func (p *Path) Source() *scene.SoundSourceState { return p.source }
func (p *Path) Receiver() *scene.ReceiverState  { return p.receiver }

// SourceID and ReceiverID identify p's endpoints without exposing the
// full entity, for renderers keying their live-path maps by
// (sourceID, receiverID). Valid only while the path is attached.
func (p *Path) SourceID() int64   { return p.source.ID() }
func (p *Path) ReceiverID() int64 { return p.receiver.ID() }

// MarkForDeletion flags p for removal at the audio thread's next
// drain (spec.md §4.6). Control-thread only.
func (p *Path) MarkForDeletion() { p.markedForDeletion = true }

func (p *Path) MarkedForDeletion() bool { return p.markedForDeletion }

// ValidTrajectory reports whether the most recent Process call had a
// usable motion estimate for both endpoints.
func (p *Path) ValidTrajectory() bool { return p.validTrajectory }

func (p *Path) SetSpeedOfSound(c float64)              { p.speedOfSound = c }
func (p *Path) SetMinDistanceMeters(d float64)         { p.minDistanceMeters = d }
func (p *Path) SetAdditionalStaticDelay(seconds float64) { p.additionalStaticDelaySeconds = seconds }
func (p *Path) SetSwitchAlgorithm(a dsp.SwitchAlgorithm) { p.switchAlgorithm = a }

// SetExtraGain applies an additional linear multiplier on top of the
// spec.md §4.6 step 8 gain, for renderer variants layering their own
// sub-spectra on top of the geometric path (e.g. the air-traffic-noise
// variant's air-attenuation/temporal-variation/ground-reflection
// factors, spec.md §4.8). Defaults to 1 and is reset on every
// ResetForReuse.
func (p *Path) SetExtraGain(g float64) { p.extraGain = g }

// Process runs the spec.md §4.6 nine-step per-block pipeline and
// mix-accumulates this path's contribution into outL/outR (neither is
// cleared first, so multiple paths can sum into one receiver's output
// frame). sourceBlock is one block of the source's input samples.
// globalMode is the renderer-global auralization-mode gate; the
// effective mode for this path is the AND of it with the source's and
// receiver's own masks (auramode.Effective).
func (p *Path) Process(blockTime float64, globalMode auramode.Mode, sourceBlock []float64, outL, outR []float64) {
	if p.markedForDeletion || p.source == nil || p.receiver == nil {
		p.validTrajectory = false
		return
	}

	// 1. Sample motion at the block timestamp.
	sourcePose, sOK := p.sourceMotion.Estimate(blockTime)
	receiverPose, rOK := p.receiverMotion.Estimate(blockTime)
	p.validTrajectory = sOK && rOK
	if !p.validTrajectory {
		return
	}

	// 2. Relative metrics, computed once and shared across every step
	// below (distance, azimuth/elevation both directions).
	sourceFrame := metrics.NewFrame(sourcePose.Position, sourcePose.View, sourcePose.Up)
	receiverFrame := metrics.NewFrame(receiverPose.Position, receiverPose.View, receiverPose.Up)
	rel := metrics.Compute(sourceFrame, receiverFrame)

	mode := auramode.Effective(p.source.AuraMode(), p.receiver.AuraMode(), globalMode)

	// 3. VDL delay = d/c + additional static delay, hard-switched when
	// Doppler is gated off; anthropometric ITD pulls the two ears'
	// delays in opposite directions (Woodworth's spherical-head model).
	distance := rel.SourceToReceiver.Distance
	baseDelaySamples := (distance/p.speedOfSound + p.additionalStaticDelaySeconds) * p.cfg.SampleRate
	itdOffset := p.itdOffsetSamples(rel.ReceiverToSource)

	algo := p.switchAlgorithm
	if !mode.Has(auramode.Doppler) {
		algo = dsp.SwitchHard
	}
	p.vdl[0].SetAlgorithm(algo)
	p.vdl[1].SetAlgorithm(algo)
	p.vdl[0].SetDelaySamples(baseDelaySamples - itdOffset)
	p.vdl[1].SetDelaySamples(baseDelaySamples + itdOffset)

	// 4. Source directivity magnitudes at the source->receiver angles.
	p.updateSourceDirectivity(mode, rel)

	// 5. Spreading-loss gain.
	spreadingGain := 1.0
	if mode.Has(auramode.SpreadingLoss) {
		d := distance
		if d < p.minDistanceMeters {
			d = p.minDistanceMeters
		}
		spreadingGain = 1 / d
	}

	// 6-7. Receiver HRIR lookup at the receiver->source angles; load
	// and exchange a new pair of convolver filters when it changes.
	p.updateHRIR(rel, sourceFrame, receiverFrame)

	// 8. Overall gain: spreading loss, source power relative to the
	// reference power (amplitude scales as sqrt(power)), receiver
	// calibration gain, muted and direct-sound gates.
	mutedGate := 1.0
	if p.source.Muted() || p.receiver.Muted() {
		mutedGate = 0
	}
	directGate := 1.0
	if !mode.Has(auramode.DirectSound) {
		directGate = 0
	}
	powerGain := math.Sqrt(p.source.Power() / scene.DefaultSoundPowerWatts)
	gain := spreadingGain * powerGain * p.receiver.Power() * mutedGate * directGate * p.extraGain
	p.convolver[0].SetGain(gain)
	p.convolver[1].SetGain(gain)

	// 9. VDL -> filter bank -> per-ear convolver, mix-accumulated into
	// the receiver's output frame. Directivity is angle-to-receiver,
	// not ear-dependent, so it runs once on the mono source block
	// before the per-ear delay/HRIR stages split the signal.
	p.directivityBank.Process(sourceBlock, p.scratchMono)

	p.vdl[0].Process(p.scratchMono, p.scratchEar)
	p.convolver[0].Process(p.scratchEar, outL)

	p.vdl[1].Process(p.scratchMono, p.scratchEar)
	p.convolver[1].Process(p.scratchEar, outR)
}

func (p *Path) updateSourceDirectivity(mode auramode.Mode, rel metrics.Reciprocal) {
	if !mode.Has(auramode.SourceDirectivity) {
		if !p.directivityBank.Identity() {
			p.directivityBank.SetIdentity()
		}
		return
	}
	handle := p.source.Directivity()
	if handle == nil {
		if !p.directivityBank.Identity() {
			p.directivityBank.SetIdentity()
		}
		return
	}
	rec := handle.GetNearestNeighbour(rel.SourceToReceiver.AzimuthDegrees(), rel.SourceToReceiver.ElevationDegrees())
	if p.haveSourceDirRecord && rec == p.lastSourceDirRecord {
		return
	}
	p.directivityBank.SetMagnitudes(handle.GetMagnitudes(rec))
	p.lastSourceDirRecord = rec
	p.haveSourceDirRecord = true
}

// SetManualImpulseResponse gates the geometric HRIR lookup off so a
// renderer variant that pushes its own impulse responses via
// LoadImpulseResponse (e.g. the generic-path and image-source
// prototypes' setParameters-driven IR, spec.md §4.8) is not
// immediately overwritten by the next block's directivity-handle
// lookup.
func (p *Path) SetManualImpulseResponse(manual bool) { p.manualIR = manual }

// LoadImpulseResponse installs coeffs directly into ear's convolver,
// bypassing the geometric HRIR lookup. Requires
// SetManualImpulseResponse(true) to stick across blocks.
func (p *Path) LoadImpulseResponse(ear int, coeffs []float64) {
	if ear < 0 || ear > 1 {
		return
	}
	f := p.convolver[ear].RequestFilter()
	f.Load(coeffs, p.cfg.BlockLen)
	p.convolver[ear].ExchangeFilter(f)
	p.convolver[ear].ReleaseFilter(f)
}

func (p *Path) updateHRIR(rel metrics.Reciprocal, sourceFrame, receiverFrame metrics.Frame) {
	if p.manualIR {
		return
	}
	handle := p.receiver.Directivity()
	if handle == nil {
		return
	}
	az := rel.ReceiverToSource.AzimuthDegrees()
	el := rel.ReceiverToSource.ElevationDegrees()
	rec := handle.GetNearestNeighbour(az, el)
	if p.haveHRIRRecord && rec == p.lastHRIRRecord {
		return
	}

	var frame directivity.HRIRFrame
	if hato, ok := handle.(directivity.HATOHandle); ok {
		frame = hato.GetHRIRByIndexAndHATO(rec, p.hatoDegrees(receiverFrame, sourceFrame))
	} else {
		frame = handle.GetHRIRByIndex(rec, rel.ReceiverToSource.Distance)
	}
	p.lastHRIRRecord = rec
	p.haveHRIRRecord = true

	for ear := 0; ear < 2 && ear < len(frame.Channels); ear++ {
		coeffs := make([]float64, len(frame.Channels[ear]))
		for i, v := range frame.Channels[ear] {
			coeffs[i] = float64(v)
		}
		f := p.convolver[ear].RequestFilter()
		f.Load(coeffs, p.cfg.BlockLen)
		p.convolver[ear].ExchangeFilter(f)
		p.convolver[ear].ReleaseFilter(f)
	}
}

// itdOffsetSamples estimates the per-ear delay correction from the
// receiver's head width relative to the default anthropometry, using
// Woodworth's spherical-head ITD approximation: itd = (r/c)(theta +
// sin theta), with r the head-width difference halved and theta the
// receiver->source azimuth from the view direction, wrapped to
// (-pi, pi]. Head-above-torso orientation is not modeled (no
// torso degree of freedom exists in the motion model), so HATO
// handles always individualize against a 0 degree torso reference.
func (p *Path) itdOffsetSamples(receiverToSource metrics.Relation) float64 {
	r := (p.receiver.Anthropometry().HeadWidthMeters - scene.DefaultAnthropometry.HeadWidthMeters) / 2
	theta := float64(receiverToSource.Azimuth)
	if theta > math.Pi {
		theta -= 2 * math.Pi
	}
	itdSeconds := (r / p.speedOfSound) * (theta + math.Sin(theta))
	return itdSeconds * p.cfg.SampleRate / 2
}

func (p *Path) hatoDegrees(receiverFrame, sourceFrame metrics.Frame) float64 {
	return 0
}
