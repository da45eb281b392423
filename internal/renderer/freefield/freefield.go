// Package freefield implements the binaural free-field renderer of
// spec.md §4.8: one path per source x receiver, binaural HRIR via
// per-ear FIR, one VDL per ear, one filter bank for source
// directivity — exactly the shape renderer.Base and path.Path already
// provide, so this variant is a thin composition with no DSP of its
// own.
package freefield

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

// Config is the free-field renderer's construction-time shape.
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

// Renderer is the binaural free-field renderer variant.
type Renderer struct {
	*renderer.Base
}

// New builds a free-field renderer sharing one filter pool across
// every path it creates.
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

func (r *Renderer) UpdateScene(newScene *scene.SceneState)               { r.Base.UpdateScene(newScene) }
func (r *Renderer) UpdateGlobalAuralizationMode(mode auramode.Mode)      { r.Base.UpdateGlobalAuralizationMode(mode) }
func (r *Renderer) Reset()                                               { r.Base.Reset() }
func (r *Renderer) OutputDatasource() audioio.Source                     { return r.Base.OutputDatasource() }
func (r *Renderer) GetParameters(q *structval.Struct) *structval.Struct  { return r.Base.GetParameters(q) }
func (r *Renderer) SetParameters(kv *structval.Struct) *aerr.Error       { return r.Base.SetParameters(kv) }

// Process runs the shared per-block path loop unchanged (spec.md
// §4.6): the free-field variant adds nothing beyond what path.Path
// already implements.
func (r *Renderer) Process(info audioio.Info) (outL, outR []float64) {
	return r.Base.ProcessPaths(info)
}

var _ renderer.Contract = (*Renderer)(nil)
