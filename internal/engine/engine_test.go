package engine

import (
	"math"
	"testing"

	"github.com/rtauralize/auracore/internal/aerr"
	"github.com/rtauralize/auracore/internal/audioio"
	"github.com/rtauralize/auracore/internal/auramode"
	"github.com/rtauralize/auracore/internal/dsp"
	"github.com/rtauralize/auracore/internal/motion"
	"github.com/rtauralize/auracore/internal/renderer/freefield"
	"github.com/rtauralize/auracore/internal/scene"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 44100.0
const testBlockLen = 32

func newTestEngine() *Engine {
	return New(Config{SampleRate: testSampleRate, BlockLen: testBlockLen})
}

func newTestFreefield() *freefield.Renderer {
	return freefield.New(freefield.Config{
		SampleRate:       testSampleRate,
		BlockLen:         testBlockLen,
		FIRTaps:          63,
		Realization:      dsp.RealizationIIRBiquadsOrder4,
		MaxPartitions:    4,
		MotionConfig:     motion.DefaultConfig(),
		InitialPathQuota: 4,
		PathGrowth:       4,
	})
}

func publishOnePair(t *testing.T, e *Engine) {
	t.Helper()
	err := e.Mutate(0, func(mgr *scene.Manager, derived *scene.SceneState) *aerr.Error {
		src, aerrv := mgr.AddSoundSource(derived)
		if aerrv != nil {
			return aerrv
		}
		if err := src.SetMotionState(mgr.NewMotionState()); err != nil {
			return err
		}
		recv, aerrv := mgr.AddReceiver(derived)
		if aerrv != nil {
			return aerrv
		}
		return recv.SetMotionState(mgr.NewMotionState())
	})
	require.Nil(t, err)
}

func TestEngine_AddRendererRejectsDuplicateName(t *testing.T) {
	e := newTestEngine()
	require.Nil(t, e.AddRenderer("free", newTestFreefield()))
	require.NotNil(t, e.AddRenderer("free", newTestFreefield()))
}

func TestEngine_MutatePublishesSceneToEveryRenderer(t *testing.T) {
	e := newTestEngine()
	require.Nil(t, e.AddRenderer("free", newTestFreefield()))
	publishOnePair(t, e)

	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2}
	outL, outR := e.Process(info)
	require.Len(t, outL, testBlockLen)
	require.Len(t, outR, testBlockLen)
	for i := range outL {
		require.False(t, math.IsNaN(outL[i]) || math.IsInf(outL[i], 0))
		require.False(t, math.IsNaN(outR[i]) || math.IsInf(outR[i], 0))
	}
}

func TestEngine_SetGlobalAuralizationModePropagates(t *testing.T) {
	e := newTestEngine()
	r := newTestFreefield()
	require.Nil(t, e.AddRenderer("free", r))
	e.SetGlobalAuralizationMode(auramode.DirectSound)
	require.Equal(t, auramode.DirectSound, r.GlobalMode())
}

func TestEngine_RemoveRendererDropsItFromProcessing(t *testing.T) {
	e := newTestEngine()
	require.Nil(t, e.AddRenderer("free", newTestFreefield()))
	require.Nil(t, e.RemoveRenderer("free"))
	_, ok := e.Renderer("free")
	require.False(t, ok)
}

func TestEngine_ResetDoesNotBlockWithNoRenderers(t *testing.T) {
	e := newTestEngine()
	e.Reset()
}
