package driver

import (
	"testing"
	"time"

	"github.com/rtauralize/auracore/internal/audioio"
	"github.com/rtauralize/auracore/internal/dsp"
	"github.com/rtauralize/auracore/internal/engine"
	"github.com/rtauralize/auracore/internal/motion"
	"github.com/rtauralize/auracore/internal/renderer/freefield"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 44100.0
const testBlockLen = 32

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New(engine.Config{SampleRate: testSampleRate, BlockLen: testBlockLen})
	r := freefield.New(freefield.Config{
		SampleRate:       testSampleRate,
		BlockLen:         testBlockLen,
		FIRTaps:          63,
		Realization:      dsp.RealizationIIRBiquadsOrder4,
		MaxPartitions:    4,
		MotionConfig:     motion.DefaultConfig(),
		InitialPathQuota: 4,
		PathGrowth:       4,
	})
	require.Nil(t, e.AddRenderer("free", r))
	return e
}

func TestOffline_RunRendersExactlyNumBlocks(t *testing.T) {
	e := newTestEngine(t)
	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2}
	var blocks [][]float64
	o := NewOffline(e, info, 5, func(outL, outR []float64) {
		cp := make([]float64, len(outL))
		copy(cp, outL)
		blocks = append(blocks, cp)
	})
	require.NoError(t, o.Run(nil))
	require.Len(t, blocks, 5)
}

func TestRealtime_RunStopsWhenStopClosed(t *testing.T) {
	e := newTestEngine(t)
	info := audioio.Info{SampleRate: testSampleRate, BlockLen: testBlockLen, Channels: 2}
	count := 0
	r := NewRealtime(e, info, func(outL, outR []float64) { count++ })

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- r.Run(stop) }()

	time.Sleep(10 * time.Millisecond)
	close(stop)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Realtime.Run did not stop")
	}
	require.Greater(t, count, 0)
}
