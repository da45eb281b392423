package hearingaid

import (
	"os"
	"path/filepath"
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

func publishOnePair(t *testing.T, mgr *scene.Manager) *scene.SceneState {
	t.Helper()
	derived := mgr.CreateDerived(mgr.Head(), 0)
	src, aerr := mgr.AddSoundSource(derived)
	require.Nil(t, aerr)
	require.Nil(t, src.SetMotionState(mgr.NewMotionState()))
	recv, aerr := mgr.AddReceiver(derived)
	require.Nil(t, aerr)
	require.Nil(t, recv.SetMotionState(mgr.NewMotionState()))
	mgr.Publish(derived)
	return derived
}

func TestRenderer_ImplementsContract(t *testing.T) {
	r := newTestRenderer()
	require.NotNil(t, r)
}

func TestRenderer_ProcessWithoutDirectivityStillProducesStereo(t *testing.T) {
	r := newTestRenderer()
	mgr := scene.NewManager()
	s := publishOnePair(t, mgr)
	r.UpdateScene(s)

	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2}
	outL, outR := r.Process(info)
	require.Len(t, outL, testBlockLen)
	require.Len(t, outR, testBlockLen)
}

func TestRenderer_DefaultChannelMapIsPlusMinusNinety(t *testing.T) {
	r := newTestRenderer()
	require.Equal(t, [2]float64{90, -90}, r.channelMap)
}

func TestRenderer_RecordWAVWritesFourChannelFile(t *testing.T) {
	r := newTestRenderer()
	mgr := scene.NewManager()
	s := publishOnePair(t, mgr)
	r.UpdateScene(s)

	outPath := filepath.Join(t.TempDir(), "capture.wav")
	kv := structval.New()
	kv.Set("RecordWAV", structval.StringValue(outPath))
	require.Nil(t, r.SetParameters(kv))

	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2}
	for i := 0; i < 4; i++ {
		r.Process(info)
	}

	stopKV := structval.New()
	stopKV.Set("StopRecordWAV", structval.BoolValue(true))
	require.Nil(t, r.SetParameters(stopKV))

	stat, err := os.Stat(outPath)
	require.NoError(t, err)
	require.Greater(t, stat.Size(), int64(0))
}
