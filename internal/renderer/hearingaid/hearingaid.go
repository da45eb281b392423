// Package hearingaid implements the prototype hearing-aid renderer of
// spec.md §4.8: on top of the ordinary binaural free-field pipeline
// (which still drives the renderer.Contract stereo output, representing
// the two eardrum channels), every live path additionally drives a
// pair of behind-the-ear (BTE) microphone convolvers whose impulse
// responses come from the same HATO DAFF handle at a configurable
// channel map of head-above-torso-orientation offsets — the
// "four-channel binaural+BTE convolver" the spec names. The BTE pair
// has no place in the fixed stereo Contract return value, so (like the
// prototype free-field variant's WAV capture) it is exposed by
// recording all four channels to a WAV file when configured to.
package hearingaid

import (
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rtauralize/auracore/internal/aerr"
	"github.com/rtauralize/auracore/internal/audioio"
	"github.com/rtauralize/auracore/internal/auramode"
	"github.com/rtauralize/auracore/internal/directivity"
	"github.com/rtauralize/auracore/internal/dsp"
	"github.com/rtauralize/auracore/internal/metrics"
	"github.com/rtauralize/auracore/internal/motion"
	"github.com/rtauralize/auracore/internal/path"
	"github.com/rtauralize/auracore/internal/pool"
	"github.com/rtauralize/auracore/internal/renderer"
	"github.com/rtauralize/auracore/internal/scene"
	"github.com/rtauralize/auracore/internal/structval"
)

// Config is the hearing-aid renderer's construction-time shape.
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

	// BTEChannelMapDegrees is the HATO degree offset requested for the
	// left and right BTE microphone channels (spec.md §4.8:
	// "configurable channel map into an HATO DAFF"); defaults to +90/-90
	// (microphones mounted above each ear, torso-relative).
	BTEChannelMapDegrees [2]float64
}

type pairKey struct {
	sourceID, receiverID int64
}

type btePair struct {
	convL, convR *dsp.Convolver
	lastRecordL  int
	lastRecordR  int
	haveRecordL  bool
	haveRecordR  bool
	scratchL     []float64
	scratchR     []float64
}

// Renderer is the hearing-aid renderer variant.
type Renderer struct {
	*renderer.Base

	channelMap [2]float64
	filters    *pool.Pool[*dsp.Filter]
	bte        map[pairKey]*btePair

	recorder *wavRecorder
	blockLen int
}

// New builds a hearing-aid renderer.
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
	channelMap := cfg.BTEChannelMapDegrees
	if channelMap == [2]float64{} {
		channelMap = [2]float64{90, -90}
	}
	return &Renderer{
		Base:       base,
		channelMap: channelMap,
		filters:    pool.New[*dsp.Filter](cfg.InitialPathQuota, cfg.PathGrowth, func() *dsp.Filter { return &dsp.Filter{} }),
		bte:        make(map[pairKey]*btePair),
		blockLen:   cfg.BlockLen,
	}
}

func (r *Renderer) UpdateScene(newScene *scene.SceneState) { r.Base.UpdateScene(newScene) }
func (r *Renderer) UpdateGlobalAuralizationMode(mode auramode.Mode) {
	r.Base.UpdateGlobalAuralizationMode(mode)
}
func (r *Renderer) Reset()                           { r.Base.Reset() }
func (r *Renderer) OutputDatasource() audioio.Source { return r.Base.OutputDatasource() }

func (r *Renderer) GetParameters(q *structval.Struct) *structval.Struct {
	return r.Base.GetParameters(q)
}

// SetParameters accepts BTEChannelMapDegreesL/R and RecordWAV/StopRecordWAV
// for the 4-channel eardrum+BTE capture.
func (r *Renderer) SetParameters(kv *structval.Struct) *aerr.Error {
	if v, err := kv.GetDoubleOr("BTEChannelMapDegreesL", r.channelMap[0]); err != nil {
		return err
	} else {
		r.channelMap[0] = v
	}
	if v, err := kv.GetDoubleOr("BTEChannelMapDegreesR", r.channelMap[1]); err != nil {
		return err
	} else {
		r.channelMap[1] = v
	}
	if kv.HasKey("RecordWAV") {
		recordPath, err := kv.GetString("RecordWAV")
		if err != nil {
			return err
		}
		if recordPath != "" {
			rec, ioErr := newWAVRecorder(recordPath, int(r.Base.OutputDatasource().Info().SampleRate), 4)
			if ioErr != nil {
				return aerr.Newf(aerr.FileNotFound, "hearingaid: failed to open WAV recording: %v", ioErr)
			}
			r.recorder = rec
		}
	}
	if stop, err := kv.GetBoolOr("StopRecordWAV", false); err != nil {
		return err
	} else if stop && r.recorder != nil {
		r.recorder.close()
		r.recorder = nil
	}
	return r.Base.SetParameters(kv)
}

// Process runs the shared binaural pipeline for the Contract's stereo
// return value, and in the same pass drives each live path's BTE pair
// from the receiver's HATO handle at the configured channel map,
// recording all four channels if a recorder is active.
func (r *Renderer) Process(info audioio.Info) (outL, outR []float64) {
	outL, outR = r.Base.OutputBuffers()
	mode := r.Base.GlobalMode()

	r.Base.Paths(info, func(p *path.Path, in []float64) {
		p.Process(info.BlockTime, mode, in, outL, outR)
		r.driveBTE(p, info, in)
	})

	if r.recorder != nil {
		bteL, bteR := r.mixBTE()
		r.recorder.writeBlock(outL, outR, bteL, bteR)
	}
	return outL, outR
}

func (r *Renderer) driveBTE(p *path.Path, info audioio.Info, sourceBlock []float64) {
	recv, ok := r.Base.LiveReceiver(p.ReceiverID())
	if !ok || recv.MotionState() == nil {
		return
	}
	handle, ok := recv.Directivity().(directivity.HATOHandle)
	if !ok {
		return
	}
	sourceModel, sOK := r.Base.SourceMotionModel(p.SourceID())
	receiverModel, rOK := r.Base.ReceiverMotionModel(p.ReceiverID())
	if !sOK || !rOK {
		return
	}
	sourcePose, sPoseOK := sourceModel.Estimate(info.BlockTime)
	receiverPose, rPoseOK := receiverModel.Estimate(info.BlockTime)
	if !sPoseOK || !rPoseOK {
		return
	}
	rel := metrics.Compute(
		metrics.NewFrame(sourcePose.Position, sourcePose.View, sourcePose.Up),
		metrics.NewFrame(receiverPose.Position, receiverPose.View, receiverPose.Up),
	)
	rec := handle.GetNearestNeighbour(rel.ReceiverToSource.AzimuthDegrees(), rel.ReceiverToSource.ElevationDegrees())

	key := pairKey{p.SourceID(), p.ReceiverID()}
	pair := r.bte[key]
	if pair == nil {
		pair = &btePair{
			convL:    dsp.NewConvolver(r.blockLen, 4, r.filters),
			convR:    dsp.NewConvolver(r.blockLen, 4, r.filters),
			scratchL: make([]float64, r.blockLen),
			scratchR: make([]float64, r.blockLen),
		}
		r.bte[key] = pair
	}

	if !pair.haveRecordL || pair.lastRecordL != rec {
		frame := handle.GetHRIRByIndexAndHATO(rec, r.channelMap[0])
		loadChannel(pair.convL, frame, 0, r.blockLen)
		pair.lastRecordL, pair.haveRecordL = rec, true
	}
	if !pair.haveRecordR || pair.lastRecordR != rec {
		frame := handle.GetHRIRByIndexAndHATO(rec, r.channelMap[1])
		loadChannel(pair.convR, frame, 0, r.blockLen)
		pair.lastRecordR, pair.haveRecordR = rec, true
	}

	for i := range pair.scratchL {
		pair.scratchL[i] = 0
		pair.scratchR[i] = 0
	}
	pair.convL.Process(sourceBlock, pair.scratchL)
	pair.convR.Process(sourceBlock, pair.scratchR)
}

func loadChannel(conv *dsp.Convolver, frame directivity.HRIRFrame, channel, blockLen int) {
	if channel >= len(frame.Channels) {
		return
	}
	coeffs := make([]float64, len(frame.Channels[channel]))
	for i, v := range frame.Channels[channel] {
		coeffs[i] = float64(v)
	}
	f := conv.RequestFilter()
	f.Load(coeffs, blockLen)
	conv.ExchangeFilter(f)
	conv.ReleaseFilter(f)
}

// mixBTE sums every live path's BTE contribution into one stereo BTE
// pair (a BTE microphone hears every source in the scene, same as the
// eardrum mix).
func (r *Renderer) mixBTE() (left, right []float64) {
	left = make([]float64, r.blockLen)
	right = make([]float64, r.blockLen)
	for _, pair := range r.bte {
		for i := range left {
			left[i] += pair.scratchL[i]
			right[i] += pair.scratchR[i]
		}
	}
	return left, right
}

var _ renderer.Contract = (*Renderer)(nil)

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

// writeBlock interleaves eardrum-L, eardrum-R, BTE-L, BTE-R into one
// 4-channel PCM16 block.
func (w *wavRecorder) writeBlock(earL, earR, bteL, bteR []float64) {
	n := len(earL)
	data := make([]int, n*4)
	for i := 0; i < n; i++ {
		data[i*4+0] = floatToPCM16(earL[i])
		data[i*4+1] = floatToPCM16(earR[i])
		data[i*4+2] = floatToPCM16(valueOrZero(bteL, i))
		data[i*4+3] = floatToPCM16(valueOrZero(bteR, i))
	}
	w.buf.Data = data
	_ = w.encoder.Write(w.buf)
}

func valueOrZero(s []float64, i int) float64 {
	if i >= len(s) {
		return 0
	}
	return s[i]
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
