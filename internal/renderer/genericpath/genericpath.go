// Package genericpath implements the prototype generic-path renderer
// of spec.md §4.8: no per-path geometric computation of its own —
// setParameters pushes a raw impulse response straight into one
// path's convolver, bypassing the geometric HRIR lookup path.Path
// otherwise runs every block.
package genericpath

import (
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

// Config is the generic-path renderer's construction-time shape.
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
}

// Renderer is the prototype generic-path renderer variant.
type Renderer struct {
	*renderer.Base
}

// New builds a generic-path renderer.
func New(cfg Config) *Renderer {
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
	base := renderer.NewBase(path.NewFactory(pathCfg), cfg.InitialPathQuota, cfg.PathGrowth, cfg.MotionConfig, cfg.SampleRate, cfg.BlockLen)
	return &Renderer{Base: base}
}

func (r *Renderer) UpdateScene(newScene *scene.SceneState)              { r.Base.UpdateScene(newScene) }
func (r *Renderer) UpdateGlobalAuralizationMode(mode auramode.Mode)     { r.Base.UpdateGlobalAuralizationMode(mode) }
func (r *Renderer) Reset()                                              { r.Base.Reset() }
func (r *Renderer) OutputDatasource() audioio.Source                    { return r.Base.OutputDatasource() }
func (r *Renderer) GetParameters(q *structval.Struct) *structval.Struct { return r.Base.GetParameters(q) }

func (r *Renderer) Process(info audioio.Info) (outL, outR []float64) {
	return r.Base.ProcessPaths(info)
}

// SetParameters looks for the (sound_source_id, sound_receiver_id,
// impulse_response) triple documented for this variant (spec.md §4.8;
// no fixed key names are given in the external contract, so
// impulse_response follows the same SampleBufferData shape §6 uses
// for BRIR/stratified-atmosphere payloads) and, when present, installs
// it directly on the addressed path's convolvers.
func (r *Renderer) SetParameters(kv *structval.Struct) *aerr.Error {
	if kv.HasKey("sound_source_id") && kv.HasKey("sound_receiver_id") && kv.HasKey("impulse_response") {
		sourceID, err := kv.GetInt("sound_source_id")
		if err != nil {
			return err
		}
		receiverID, err := kv.GetInt("sound_receiver_id")
		if err != nil {
			return err
		}
		irValue, err := kv.Require("impulse_response")
		if err != nil {
			return err
		}
		buf, ok := irValue.AsSampleBuffer()
		if !ok {
			return aerr.New(aerr.InvalidParameter, "genericpath: impulse_response must be a sample buffer")
		}
		p, found := r.Base.LivePath(sourceID, receiverID)
		if !found {
			return aerr.Newf(aerr.NotFound, "genericpath: no live path for source %d, receiver %d", sourceID, receiverID)
		}
		p.SetManualImpulseResponse(true)
		for ear := 0; ear < 2 && ear < len(buf.Channels); ear++ {
			coeffs := make([]float64, len(buf.Channels[ear]))
			for i, v := range buf.Channels[ear] {
				coeffs[i] = float64(v)
			}
			p.LoadImpulseResponse(ear, coeffs)
		}
	}
	return r.Base.SetParameters(kv)
}

var _ renderer.Contract = (*Renderer)(nil)
