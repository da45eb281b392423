package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func impulseTrain(n int, period int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i += period {
		out[i] = 1
	}
	return out
}

func TestVDL_HardSwitchAppliesImmediately(t *testing.T) {
	v := NewVariableDelayLine(64)
	v.SetAlgorithm(SwitchHard)
	v.SetDelaySamples(4)

	in := impulseTrain(32, 32)
	out := make([]float64, 32)
	v.Process(in, out)

	require.InDelta(t, 1.0, out[4], 1e-6)
}

func TestVDL_LinearRampTransitionsSmoothly(t *testing.T) {
	v := NewVariableDelayLine(64)
	v.SetAlgorithm(SwitchLinear)
	v.SetDelaySamples(0)

	in := make([]float64, 16)
	out := make([]float64, 16)
	v.Process(in, out) // settle at delay 0

	v.SetDelaySamples(8)
	in2 := impulseTrain(16, 16)
	out2 := make([]float64, 16)
	v.Process(in2, out2)

	for _, s := range out2 {
		require.False(t, math.IsNaN(s))
		require.LessOrEqual(t, math.Abs(s), 1.5)
	}
}

func TestVDL_CrossfadeDoesNotExceedInputPeak(t *testing.T) {
	v := NewVariableDelayLine(64)
	v.SetAlgorithm(SwitchCrossfade)
	v.SetDelaySamples(2)

	in := impulseTrain(64, 8)
	out := make([]float64, 64)
	v.Process(in, out)

	v.SetDelaySamples(10)
	in2 := impulseTrain(64, 8)
	out2 := make([]float64, 64)
	v.Process(in2, out2)

	for _, s := range out2 {
		require.LessOrEqual(t, math.Abs(s), 1.0+1e-9)
	}
}

func TestVDL_WindowedSincAndCubicSplineProduceFiniteOutput(t *testing.T) {
	for _, algo := range []SwitchAlgorithm{SwitchCubicSpline, SwitchWindowedSinc} {
		v := NewVariableDelayLine(64)
		v.SetAlgorithm(algo)
		v.SetDelaySamples(5.5)

		in := impulseTrain(32, 5)
		out := make([]float64, 32)
		v.Process(in, out)

		for _, s := range out {
			require.False(t, math.IsNaN(s), "algorithm %v produced NaN", algo)
			require.False(t, math.IsInf(s, 0), "algorithm %v produced Inf", algo)
		}
	}
}
