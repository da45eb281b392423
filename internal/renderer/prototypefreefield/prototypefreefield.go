// Package prototypefreefield implements the prototype free-field
// renderer of spec.md §4.8: the same per-path DSP as the binaural
// free-field variant, but with a configurable per-receiver output
// channel count and optional WAV capture of the rendered block stream
// for offline inspection.
//
// path.Path's DSP graph is binaural by construction (one VDL and one
// convolver per ear), so NumChannels here does not fan the synthesis
// itself out to N channels; it controls how many channels the WAV
// writer emits (the stereo signal, with any extra channels filled with
// silence), matching this
// variant's documented role as a development/diagnostic prototype
// rather than a production multichannel renderer.
package prototypefreefield

import (
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
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

// Config is the prototype free-field renderer's construction-time shape.
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

	// NumChannels is the channel count recorded to the WAV file;
	// ch 0/1 carry the rendered binaural signal, any remainder is
	// silence.
	NumChannels int
}

// Renderer is the prototype free-field renderer variant.
type Renderer struct {
	*renderer.Base

	numChannels int
	recorder    *wavRecorder
}

// New builds a prototype free-field renderer.
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
	numChannels := cfg.NumChannels
	if numChannels < 2 {
		numChannels = 2
	}
	return &Renderer{Base: base, numChannels: numChannels}
}

func (r *Renderer) UpdateScene(newScene *scene.SceneState)              { r.Base.UpdateScene(newScene) }
func (r *Renderer) UpdateGlobalAuralizationMode(mode auramode.Mode)     { r.Base.UpdateGlobalAuralizationMode(mode) }
func (r *Renderer) Reset()                                              { r.Base.Reset() }
func (r *Renderer) OutputDatasource() audioio.Source                    { return r.Base.OutputDatasource() }
func (r *Renderer) GetParameters(q *structval.Struct) *structval.Struct { return r.Base.GetParameters(q) }

// SetParameters accepts every key renderer.Base understands, plus this
// variant's own recording control keys.
func (r *Renderer) SetParameters(kv *structval.Struct) *aerr.Error {
	if kv.HasKey("RecordWAV") {
		recordPath, err := kv.GetString("RecordWAV")
		if err != nil {
			return err
		}
		if recordPath != "" {
			if ioErr := r.StartRecording(recordPath); ioErr != nil {
				return aerr.Newf(aerr.FileNotFound, "prototypefreefield: failed to open WAV recording: %v", ioErr)
			}
		}
	}
	if stop, err := kv.GetBoolOr("StopRecordWAV", false); err != nil {
		return err
	} else if stop {
		r.StopRecording()
	}
	return r.Base.SetParameters(kv)
}

// Process runs the shared per-block path loop and, if recording is
// active, appends the rendered block to the open WAV file.
func (r *Renderer) Process(info audioio.Info) (outL, outR []float64) {
	outL, outR = r.Base.ProcessPaths(info)
	if r.recorder != nil {
		r.recorder.writeBlock(outL, outR, r.numChannels)
	}
	return outL, outR
}

// StartRecording opens filePath for 16-bit PCM WAV capture of every
// subsequent block passed through Process. The file handle is owned
// by the caller's lifetime; call StopRecording to flush and close it.
func (r *Renderer) StartRecording(filePath string) error {
	rec, err := newWAVRecorder(filePath, int(r.sampleRateHint()), r.numChannels)
	if err != nil {
		return err
	}
	r.recorder = rec
	return nil
}

// StopRecording flushes and closes any in-progress WAV capture.
func (r *Renderer) StopRecording() {
	if r.recorder == nil {
		return
	}
	r.recorder.close()
	r.recorder = nil
}

func (r *Renderer) sampleRateHint() float64 {
	return r.Base.OutputDatasource().Info().SampleRate
}

var _ renderer.Contract = (*Renderer)(nil)

// wavRecorder wraps a go-audio/wav.Encoder, the same dependency the
// pack's other audio-capture code (rayboyd-audio-engine, emer-auditory)
// uses for PCM file writes.
type wavRecorder struct {
	closer  io.Closer
	encoder *wav.Encoder
	buf     *audio.IntBuffer
}

func newWAVRecorder(filePath string, sampleRate, numChannels int) (*wavRecorder, error) {
	f, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	enc := wav.NewEncoder(f, sampleRate, 16, numChannels, 1)
	return &wavRecorder{
		closer:  f,
		encoder: enc,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: numChannels, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

func (w *wavRecorder) writeBlock(outL, outR []float64, numChannels int) {
	n := len(outL) * numChannels
	if cap(w.buf.Data) < n {
		w.buf.Data = make([]int, n)
	}
	w.buf.Data = w.buf.Data[:n]
	for i := range outL {
		base := i * numChannels
		w.buf.Data[base] = floatToPCM16(outL[i])
		if numChannels > 1 {
			w.buf.Data[base+1] = floatToPCM16(outR[i])
		}
		for ch := 2; ch < numChannels; ch++ {
			w.buf.Data[base+ch] = 0
		}
	}
	_ = w.encoder.Write(w.buf)
}

func (w *wavRecorder) close() {
	_ = w.encoder.Close()
	_ = w.closer.Close()
}

func floatToPCM16(v float64) int {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int(v * 32767)
}
