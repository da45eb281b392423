package imagesource

import (
	"math"
	"testing"

	"github.com/rtauralize/auracore/internal/audioio"
	"github.com/rtauralize/auracore/internal/dsp"
	"github.com/rtauralize/auracore/internal/motion"
	"github.com/rtauralize/auracore/internal/scene"
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
		MaxPartitions:    8,
		MotionConfig:     motion.DefaultConfig(),
		InitialPathQuota: 4,
		PathGrowth:       4,
		Room:             Room{Length: 6, Width: 5, Height: 3, BetaX1: 0.9, BetaX2: 0.9, BetaY1: 0.9, BetaY2: 0.9, BetaZ1: 0.9, BetaZ2: 0.9, MaxOrder: 1},
	})
}

func TestSynthesizeShoeboxIR_DirectPathIsTheStrongestTap(t *testing.T) {
	room := DefaultRoom()
	room.MaxOrder = 1
	ir := synthesizeShoeboxIR(room, testSampleRate, r3Vector{X: 1, Y: 1, Z: 1}, r3Vector{X: 3, Y: 2, Z: 1})

	maxIdx, maxVal := 0, 0.0
	for i, v := range ir {
		if math.Abs(v) > maxVal {
			maxVal = math.Abs(v)
			maxIdx = i
		}
	}
	dist := math.Sqrt((3.0-1)*(3.0-1) + (2.0-1)*(2.0-1))
	expectedIdx := int(dist / 343.0 * testSampleRate)
	require.InDelta(t, expectedIdx, maxIdx, 2)
}

func TestRenderer_UpdateSceneLoadsIRIntoLivePaths(t *testing.T) {
	r := newTestRenderer()
	mgr := scene.NewManager()
	derived := mgr.CreateDerived(mgr.Head(), 0)
	src, aerr := mgr.AddSoundSource(derived)
	require.Nil(t, aerr)
	require.Nil(t, src.SetMotionState(mgr.NewMotionState()))
	recv, aerr := mgr.AddReceiver(derived)
	require.Nil(t, aerr)
	require.Nil(t, recv.SetMotionState(mgr.NewMotionState()))
	mgr.Publish(derived)

	r.UpdateScene(derived)
	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2}
	r.Process(info)
	// Second UpdateScene call resynthesizes against the now-live path.
	r.UpdateScene(derived)
	outL, outR := r.Process(info)
	require.Len(t, outL, testBlockLen)
	require.Len(t, outR, testBlockLen)
}
