package reverb

import (
	"testing"
	"time"

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
		Room: RoomAcoustics{
			RT60Bands:                   []float64{0.3},
			RoomVolume:                  80,
			RoomSurfaceArea:             100,
			MaxReflectionsPerSecond:     2000,
			MovePositionThresholdMeters: 0.5,
			MoveAngleThresholdDegrees:   15,
		},
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

func TestRenderer_ProcessProducesFiniteStereoBlockAndEventuallySynthesizesBRIR(t *testing.T) {
	r := newTestRenderer()
	mgr := scene.NewManager()
	s := publishOnePair(t, mgr)
	r.UpdateScene(s)

	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2}

	var outL, outR []float64
	for i := 0; i < 50; i++ {
		outL, outR = r.Process(info)
		r.mu.Lock()
		_, hasAny := func() (int, bool) {
			for _, v := range r.convL {
				return 0, v != nil
			}
			return 0, false
		}()
		r.mu.Unlock()
		if hasAny {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	require.Len(t, outL, testBlockLen)
	require.Len(t, outR, testBlockLen)
	for i := range outL {
		require.False(t, isNaNOrInf(outL[i]))
		require.False(t, isNaNOrInf(outR[i]))
	}
}

func TestRenderer_SetParametersUpdatesRoomAcoustics(t *testing.T) {
	r := newTestRenderer()
	kv := structval.New()
	kv.Set("room_reverberation_times", structval.DoubleValue(0.6))
	kv.Set("RoomVolume", structval.DoubleValue(150))
	kv.Set("RoomSurfaceArea", structval.DoubleValue(200))
	require.Nil(t, r.SetParameters(kv))
	require.Equal(t, []float64{0.6}, r.room.RT60Bands)
	require.Equal(t, 150.0, r.room.RoomVolume)
	require.Equal(t, 200.0, r.room.RoomSurfaceArea)
}

func TestSynthesizeBRIR_ChannelsAreDecorrelated(t *testing.T) {
	left, right := synthesizeBRIR(DefaultRoomAcoustics(), testSampleRate)
	require.NotEmpty(t, left)
	require.NotEmpty(t, right)
	require.NotEqual(t, left, right)
}

func isNaNOrInf(v float64) bool {
	return v != v || v > 1e18 || v < -1e18
}
