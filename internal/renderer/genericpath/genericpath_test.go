package genericpath

import (
	"testing"

	"github.com/rtauralize/auracore/internal/audioio"
	"github.com/rtauralize/auracore/internal/dsp"
	"github.com/rtauralize/auracore/internal/motion"
	"github.com/rtauralize/auracore/internal/scene"
	"github.com/rtauralize/auracore/internal/structval"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 44100.0
const testBlockLen = 32

func newTestRenderer() *Renderer {
	return New(Config{
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

func publishOnePair(t *testing.T, mgr *scene.Manager) (*scene.SceneState, int64, int64) {
	t.Helper()
	derived := mgr.CreateDerived(mgr.Head(), 0)
	src, aerr := mgr.AddSoundSource(derived)
	require.Nil(t, aerr)
	require.Nil(t, src.SetMotionState(mgr.NewMotionState()))
	recv, aerr := mgr.AddReceiver(derived)
	require.Nil(t, aerr)
	require.Nil(t, recv.SetMotionState(mgr.NewMotionState()))
	mgr.Publish(derived)
	return derived, src.ID(), recv.ID()
}

func TestRenderer_PushedImpulseResponseOverridesConvolver(t *testing.T) {
	r := newTestRenderer()
	mgr := scene.NewManager()
	s, sourceID, receiverID := publishOnePair(t, mgr)
	r.UpdateScene(s)

	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2}
	r.Process(info) // drain the creation message so the path becomes live

	impulse := make([]float32, testBlockLen)
	impulse[0] = 1
	kv := structval.New()
	kv.Set("sound_source_id", structval.IntValue(sourceID))
	kv.Set("sound_receiver_id", structval.IntValue(receiverID))
	kv.Set("impulse_response", structval.SampleBufferValue(&structval.SampleBufferData{
		SampleRate: testSampleRate,
		Channels:   [][]float32{impulse, impulse},
	}))
	require.Nil(t, r.SetParameters(kv))
}

func TestRenderer_PushWithUnknownPathReturnsNotFound(t *testing.T) {
	r := newTestRenderer()
	kv := structval.New()
	kv.Set("sound_source_id", structval.IntValue(999))
	kv.Set("sound_receiver_id", structval.IntValue(998))
	kv.Set("impulse_response", structval.SampleBufferValue(&structval.SampleBufferData{Channels: [][]float32{{1}}}))
	err := r.SetParameters(kv)
	require.NotNil(t, err)
}
