package atn

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

func publishOnePair(t *testing.T, mgr *scene.Manager, srcZ, recvZ float64) *scene.SceneState {
	t.Helper()
	derived := mgr.CreateDerived(mgr.Head(), 0)
	src, aerr := mgr.AddSoundSource(derived)
	require.Nil(t, aerr)
	srcMS := mgr.NewMotionState()
	require.Nil(t, srcMS.SetPose(
		r3Vec(0, 0, srcZ),
		r3Vec(1, 0, 0),
		r3Vec(0, 0, 1),
	))
	require.Nil(t, src.SetMotionState(srcMS))

	recv, aerr := mgr.AddReceiver(derived)
	require.Nil(t, aerr)
	recvMS := mgr.NewMotionState()
	require.Nil(t, recvMS.SetPose(
		r3Vec(10, 0, recvZ),
		r3Vec(-1, 0, 0),
		r3Vec(0, 0, 1),
	))
	require.Nil(t, recv.SetMotionState(recvMS))

	mgr.Publish(derived)
	return derived
}

func TestRenderer_ImplementsContract(t *testing.T) {
	r := newTestRenderer()
	require.NotNil(t, r)
}

func TestRenderer_ProcessProducesFiniteStereoBlockFromBothSubPaths(t *testing.T) {
	r := newTestRenderer()
	mgr := scene.NewManager()
	s := publishOnePair(t, mgr, 50, 0)
	r.UpdateScene(s)

	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2}
	outL, outR := r.Process(info)
	require.Len(t, outL, testBlockLen)
	require.Len(t, outR, testBlockLen)
	for i := range outL {
		require.False(t, outL[i] != outL[i])
		require.False(t, outR[i] != outR[i])
	}
}

func TestGroundReflectedGeometry_IsLongerThanDirectPath(t *testing.T) {
	mgr := scene.NewManager()
	derived := mgr.CreateDerived(mgr.Head(), 0)
	src, _ := mgr.AddSoundSource(derived)
	srcMS := mgr.NewMotionState()
	_ = srcMS.SetPose(r3Vec(0, 0, 50), r3Vec(1, 0, 0), r3Vec(0, 0, 1))
	_ = src.SetMotionState(srcMS)
	recv, _ := mgr.AddReceiver(derived)
	recvMS := mgr.NewMotionState()
	_ = recvMS.SetPose(r3Vec(200, 0, 2), r3Vec(-1, 0, 0), r3Vec(0, 0, 1))
	_ = recv.SetMotionState(recvMS)

	groundDist, extraDelay := groundReflectedGeometry(src, recv, DefaultAtmosphere())
	direct := directDistance(src, recv)
	require.Greater(t, groundDist, direct)
	require.GreaterOrEqual(t, extraDelay, 0.0)
}

func TestRenderer_SetParametersUpdatesAtmosphere(t *testing.T) {
	r := newTestRenderer()
	kv := structval.New()
	kv.Set("GroundReflectionCoeff", structval.DoubleValue(0.3))
	kv.Set("AirAttenuationDBPerMeter", structval.DoubleValue(0.01))
	require.Nil(t, r.SetParameters(kv))
	require.Equal(t, 0.3, r.atmosphere.GroundReflectionCoeff)
	require.Equal(t, 0.01, r.atmosphere.AirAttenuationDBPerMeter)
}

func r3Vec(x, y, z float64) (v struct{ X, Y, Z float64 }) {
	v.X, v.Y, v.Z = x, y, z
	return v
}
