package renderer

import (
	"math"
	"testing"

	"github.com/rtauralize/auracore/internal/audioio"
	"github.com/rtauralize/auracore/internal/auramode"
	"github.com/rtauralize/auracore/internal/dsp"
	"github.com/rtauralize/auracore/internal/motion"
	"github.com/rtauralize/auracore/internal/path"
	"github.com/rtauralize/auracore/internal/pool"
	"github.com/rtauralize/auracore/internal/scene"
	"github.com/stretchr/testify/require"
)

const testBlockLen = 32
const testSampleRate = 44100.0

func newTestBase(t *testing.T) *Base {
	t.Helper()
	filterPool := pool.New[*dsp.Filter](8, 8, func() *dsp.Filter { return &dsp.Filter{} })
	cfg := path.Config{
		SampleRate:    testSampleRate,
		BlockLen:      testBlockLen,
		FIRTaps:       63,
		Realization:   dsp.RealizationIIRBiquadsOrder4,
		MaxPartitions: 4,
		FilterPool:    filterPool,
	}
	return NewBase(path.NewFactory(cfg), 4, 4, motion.DefaultConfig(), testSampleRate, testBlockLen)
}

func publishSceneWithOneSourceOneReceiver(t *testing.T, mgr *scene.Manager) *scene.SceneState {
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

func TestBase_UpdateSceneCreatesOnePathForOnePair(t *testing.T) {
	b := newTestBase(t)
	mgr := scene.NewManager()
	s := publishSceneWithOneSourceOneReceiver(t, mgr)

	b.UpdateScene(s)
	require.Equal(t, 1, b.queue.Len())

	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2, BlockTime: 0}
	outL, outR := b.ProcessPaths(info)
	require.Len(t, outL, testBlockLen)
	require.Len(t, outR, testBlockLen)
	require.Len(t, b.livePaths, 1)
}

func TestBase_RemovingSourceForceDeletesPath(t *testing.T) {
	b := newTestBase(t)
	mgr := scene.NewManager()
	s := publishSceneWithOneSourceOneReceiver(t, mgr)
	b.UpdateScene(s)

	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2}
	b.ProcessPaths(info)
	require.Len(t, b.livePaths, 1)

	var sourceID int64
	for id := range b.liveSources {
		sourceID = id
	}

	derived2 := mgr.CreateDerived(s, 1)
	require.Nil(t, mgr.RemoveSoundSource(derived2, sourceID))
	mgr.Publish(derived2)

	b.UpdateScene(derived2)
	b.ProcessPaths(info)
	require.Len(t, b.livePaths, 0)
}

func TestBase_ProcessPathsProducesFiniteOutput(t *testing.T) {
	b := newTestBase(t)
	mgr := scene.NewManager()
	s := publishSceneWithOneSourceOneReceiver(t, mgr)
	b.UpdateScene(s)

	in := make([]float64, testBlockLen)
	in[0] = 1
	for id := range b.sourceMotions {
		buf := audioio.NewRingBuffer(audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 1}, testBlockLen*4)
		buf.Write([][]float64{in})
		b.RegisterSourceInput(id, buf)
	}

	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2}
	var outL, outR []float64
	for i := 0; i < 4; i++ {
		outL, outR = b.ProcessPaths(info)
	}
	for i := range outL {
		require.False(t, math.IsNaN(outL[i]))
		require.False(t, math.IsNaN(outR[i]))
	}
}

func TestBase_ResetClearsLivePathsAndAcknowledges(t *testing.T) {
	b := newTestBase(t)
	mgr := scene.NewManager()
	s := publishSceneWithOneSourceOneReceiver(t, mgr)
	b.UpdateScene(s)

	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2}
	b.ProcessPaths(info)
	require.Len(t, b.livePaths, 1)

	b.resetHandshake.Request()
	b.ProcessPaths(info)
	require.Len(t, b.livePaths, 0)
	require.Equal(t, 0, 0) // placeholder to keep table symmetric; state checked below
	require.Equal(t, "acknowledged", b.resetHandshake.State().String())
}

func TestBase_UpdateGlobalAuralizationModeIsObservedByPaths(t *testing.T) {
	b := newTestBase(t)
	b.UpdateGlobalAuralizationMode(auramode.DirectSound)
	require.Equal(t, auramode.DirectSound, b.globalMode)
}
