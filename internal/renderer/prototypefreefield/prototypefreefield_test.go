package prototypefreefield

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

func newTestRenderer(numChannels int) *Renderer {
	return New(Config{
		SampleRate:       testSampleRate,
		BlockLen:         testBlockLen,
		FIRTaps:          63,
		Realization:      dsp.RealizationIIRBiquadsOrder4,
		MaxPartitions:    4,
		MotionConfig:     motion.DefaultConfig(),
		InitialPathQuota: 4,
		PathGrowth:       4,
		NumChannels:      numChannels,
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

func TestRenderer_DefaultsToStereoChannelCount(t *testing.T) {
	r := newTestRenderer(0)
	require.Equal(t, 2, r.numChannels)
}

func TestRenderer_RecordWAVWritesFileAcrossBlocks(t *testing.T) {
	r := newTestRenderer(4)
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

	stop := structval.New()
	stop.Set("StopRecordWAV", structval.BoolValue(true))
	require.Nil(t, r.SetParameters(stop))

	fi, err := os.Stat(outPath)
	require.NoError(t, err)
	require.Greater(t, fi.Size(), int64(0))
}
