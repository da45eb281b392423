// Package atn implements the binaural air-traffic-noise renderer of
// spec.md §4.8: two sub-paths per source x receiver, a direct path and
// a ground-reflected path, each with its own VDL, filter bank, and
// per-ear FIR convolver (path.Path's existing shape, reused twice).
// Per block, each sub-path's overall gain is further shaped by up to
// four sub-spectra (air attenuation, directivity, temporal variation,
// ground reflection); this implementation folds air attenuation,
// temporal variation, and ground reflection into path.Path's
// SetExtraGain hook (directivity is already path.Path's own step 4),
// computed either from a simple homogeneous-atmosphere model or from
// the last value pushed over setParameters.
package atn

import (
	"math"
	"math/rand"

	"github.com/rtauralize/auracore/internal/aerr"
	"github.com/rtauralize/auracore/internal/audioio"
	"github.com/rtauralize/auracore/internal/auramode"
	"github.com/rtauralize/auracore/internal/dsp"
	"github.com/rtauralize/auracore/internal/motion"
	"github.com/rtauralize/auracore/internal/path"
	"github.com/rtauralize/auracore/internal/pool"
	"github.com/rtauralize/auracore/internal/renderer"
	"github.com/rtauralize/auracore/internal/scene"
	"github.com/rtauralize/auracore/internal/structval"
)

// Atmosphere holds the air-traffic-noise sub-spectra inputs (spec.md
// §4.8): a homogeneous-atmosphere approximation unless externally
// overridden via setParameters.
type Atmosphere struct {
	AirAttenuationDBPerMeter float64
	GroundReflectionCoeff    float64 // 0 (absorbent) .. 1 (rigid)
	TemporalVariationStdDB   float64 // turbulence-induced level jitter, 1 sigma
	GroundHeightMeters       float64 // ground plane is Z = GroundHeightMeters
}

// DefaultAtmosphere models dry air at a hard-ish ground.
func DefaultAtmosphere() Atmosphere {
	return Atmosphere{
		AirAttenuationDBPerMeter: 0.005,
		GroundReflectionCoeff:    0.7,
		TemporalVariationStdDB:   0.5,
		GroundHeightMeters:       0,
	}
}

// Config is the air-traffic-noise renderer's construction-time shape.
type Config struct {
	SampleRate      float64
	BlockLen        int
	FIRTaps         int
	Realization     dsp.FilterBankRealization
	MaxPartitions   int
	MaxDelaySamples int
	MotionConfig    motion.Config

	InitialPathQuota int
	PathGrowth       int

	Atmosphere Atmosphere
}

// Renderer is the air-traffic-noise renderer variant: a direct
// sub-renderer and a ground-reflected sub-renderer, each a full
// renderer.Base over the same scene, mixed together every block.
type Renderer struct {
	direct *renderer.Base
	ground *renderer.Base

	atmosphere Atmosphere
	rng        *rand.Rand

	outL, outR []float64
}

func newSubBase(cfg Config) *renderer.Base {
	filterPool := pool.New[*dsp.Filter](cfg.InitialPathQuota*2, cfg.PathGrowth*2, func() *dsp.Filter { return &dsp.Filter{} })
	pathCfg := path.Config{
		SampleRate:      cfg.SampleRate,
		BlockLen:        cfg.BlockLen,
		FIRTaps:         cfg.FIRTaps,
		Realization:     cfg.Realization,
		MaxPartitions:   cfg.MaxPartitions,
		MaxDelaySamples: cfg.MaxDelaySamples,
		FilterPool:      filterPool,
	}
	return renderer.NewBase(path.NewFactory(pathCfg), cfg.InitialPathQuota, cfg.PathGrowth, cfg.MotionConfig, cfg.SampleRate, cfg.BlockLen)
}

// New builds an air-traffic-noise renderer with two independent
// sub-renderers (direct, ground-reflected) sharing no pool state.
func New(cfg Config) *Renderer {
	atmosphere := cfg.Atmosphere
	if atmosphere.GroundReflectionCoeff == 0 && atmosphere.AirAttenuationDBPerMeter == 0 {
		atmosphere = DefaultAtmosphere()
	}
	return &Renderer{
		direct:     newSubBase(cfg),
		ground:     newSubBase(cfg),
		atmosphere: atmosphere,
		rng:        rand.New(rand.NewSource(1)),
		outL:       make([]float64, cfg.BlockLen),
		outR:       make([]float64, cfg.BlockLen),
	}
}

// RegisterSourceInput binds sourceID's input to both sub-renderers
// (each drives its own copy of path.Path against the same samples).
func (r *Renderer) RegisterSourceInput(sourceID int64, src audioio.Source) {
	r.direct.RegisterSourceInput(sourceID, src)
	r.ground.RegisterSourceInput(sourceID, src)
}

func (r *Renderer) UpdateScene(newScene *scene.SceneState) {
	r.direct.UpdateScene(newScene)
	r.ground.UpdateScene(newScene)
}

func (r *Renderer) UpdateGlobalAuralizationMode(mode auramode.Mode) {
	r.direct.UpdateGlobalAuralizationMode(mode)
	r.ground.UpdateGlobalAuralizationMode(mode)
}

func (r *Renderer) Reset() {
	r.direct.Reset()
	r.ground.Reset()
}

func (r *Renderer) OutputDatasource() audioio.Source { return r.direct.OutputDatasource() }

func (r *Renderer) GetParameters(q *structval.Struct) *structval.Struct {
	return r.direct.GetParameters(q)
}

// SetParameters accepts AirAttenuationDBPerMeter, GroundReflectionCoeff,
// TemporalVariationStdDB, and GroundHeightMeters (spec.md §4.8: each
// sub-spectrum "can be set internally from physics... or externally
// via setParameters").
func (r *Renderer) SetParameters(kv *structval.Struct) *aerr.Error {
	if v, err := kv.GetDoubleOr("AirAttenuationDBPerMeter", r.atmosphere.AirAttenuationDBPerMeter); err != nil {
		return err
	} else {
		r.atmosphere.AirAttenuationDBPerMeter = v
	}
	if v, err := kv.GetDoubleOr("GroundReflectionCoeff", r.atmosphere.GroundReflectionCoeff); err != nil {
		return err
	} else {
		r.atmosphere.GroundReflectionCoeff = v
	}
	if v, err := kv.GetDoubleOr("TemporalVariationStdDB", r.atmosphere.TemporalVariationStdDB); err != nil {
		return err
	} else {
		r.atmosphere.TemporalVariationStdDB = v
	}
	if v, err := kv.GetDoubleOr("GroundHeightMeters", r.atmosphere.GroundHeightMeters); err != nil {
		return err
	} else {
		r.atmosphere.GroundHeightMeters = v
	}
	if err := r.direct.SetParameters(kv); err != nil {
		return err
	}
	return r.ground.SetParameters(kv)
}

// Process shapes each sub-renderer's live paths with this block's
// atmosphere-derived extra gain and additional path length, then mixes
// direct and ground-reflected output into one stereo pair (spec.md
// §4.8's uniform treatment of the sound-path delay offset between the
// two sub-paths — see the "air-traffic-noise... delay offset" open
// question resolved in DESIGN.md).
func (r *Renderer) Process(info audioio.Info) (outL, outR []float64) {
	r.direct.Paths(info, func(p *path.Path, in []float64) {
		dL, dR := r.direct.OutputBuffers()
		recv, ok := r.direct.LiveReceiver(p.ReceiverID())
		if !ok || recv.MotionState() == nil {
			p.SetExtraGain(1)
			p.Process(info.BlockTime, r.direct.GlobalMode(), in, dL, dR)
			return
		}
		src, _ := r.direct.LiveSource(p.SourceID())
		dist := directDistance(src, recv)
		p.SetExtraGain(airAttenuationGain(r.atmosphere, dist) * temporalVariationGain(r.rng, r.atmosphere))
		p.Process(info.BlockTime, r.direct.GlobalMode(), in, dL, dR)
	})

	r.ground.Paths(info, func(p *path.Path, in []float64) {
		recv, ok := r.ground.LiveReceiver(p.ReceiverID())
		src, sOK := r.ground.LiveSource(p.SourceID())
		gL, gR := r.ground.OutputBuffers()
		if !ok || !sOK || recv.MotionState() == nil || src.MotionState() == nil {
			p.SetExtraGain(0)
			p.Process(info.BlockTime, r.ground.GlobalMode(), in, gL, gR)
			return
		}
		groundDist, extraDelaySeconds := groundReflectedGeometry(src, recv, r.atmosphere)
		p.SetAdditionalStaticDelay(extraDelaySeconds)
		gain := r.atmosphere.GroundReflectionCoeff * airAttenuationGain(r.atmosphere, groundDist) * temporalVariationGain(r.rng, r.atmosphere)
		p.SetExtraGain(gain)
		p.Process(info.BlockTime, r.ground.GlobalMode(), in, gL, gR)
	})

	dL, dR := r.direct.OutputBuffers()
	gL, gR := r.ground.OutputBuffers()
	for i := range r.outL {
		r.outL[i] = dL[i] + gL[i]
		r.outR[i] = dR[i] + gR[i]
	}
	return r.outL, r.outR
}

// directDistance is the straight-line source-receiver distance used
// by the direct sub-path's own air-attenuation sub-spectrum (path.Path
// already computes and uses this distance for VDL/spreading loss; it
// is recomputed here only to size the attenuation sub-spectrum).
func directDistance(src *scene.SoundSourceState, recv *scene.ReceiverState) float64 {
	if src == nil || src.MotionState() == nil || recv.MotionState() == nil {
		return 1
	}
	sp := src.MotionState().Position()
	rp := recv.MotionState().Position()
	dx, dy, dz := sp.X-rp.X, sp.Y-rp.Y, sp.Z-rp.Z
	return math.Max(math.Sqrt(dx*dx+dy*dy+dz*dz), 1e-3)
}

// groundReflectedGeometry mirrors the source across the ground plane
// (the classical single-ground-bounce image method) and returns the
// mirrored path's length plus how much longer it is than the direct
// path, converted to a static delay offset on top of path.Path's own
// distance-derived VDL delay.
func groundReflectedGeometry(src *scene.SoundSourceState, recv *scene.ReceiverState, atm Atmosphere) (distance, extraDelaySeconds float64) {
	sp := src.MotionState().Position()
	rp := recv.MotionState().Position()
	mirroredZ := 2*atm.GroundHeightMeters - sp.Z
	dx, dy, dz := sp.X-rp.X, sp.Y-rp.Y, mirroredZ-rp.Z
	groundDist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	directDx, directDy, directDz := sp.X-rp.X, sp.Y-rp.Y, sp.Z-rp.Z
	direct := math.Sqrt(directDx*directDx + directDy*directDy + directDz*directDz)
	if groundDist < 1e-3 {
		groundDist = 1e-3
	}
	extra := (groundDist - direct) / path.DefaultSpeedOfSound
	if extra < 0 {
		extra = 0
	}
	return groundDist, extra
}

func airAttenuationGain(atm Atmosphere, distanceMeters float64) float64 {
	dbLoss := atm.AirAttenuationDBPerMeter * distanceMeters
	return math.Pow(10, -dbLoss/20)
}

func temporalVariationGain(rng *rand.Rand, atm Atmosphere) float64 {
	if atm.TemporalVariationStdDB <= 0 {
		return 1
	}
	dbJitter := rng.NormFloat64() * atm.TemporalVariationStdDB
	return math.Pow(10, dbJitter/20)
}

var _ renderer.Contract = (*Renderer)(nil)
