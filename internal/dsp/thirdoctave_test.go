package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func flatMagnitudes(g float64) [NumThirdOctaveBands]float64 {
	var m [NumThirdOctaveBands]float64
	for i := range m {
		m[i] = g
	}
	return m
}

func TestThirdOctaveCenters_Monotonic(t *testing.T) {
	c := ThirdOctaveCenters()
	for i := 1; i < len(c); i++ {
		require.Greater(t, c[i], c[i-1])
	}
	require.InDelta(t, 1000, c[16], 1e-6)
}

func TestFilterBank_IdentityPassesSignalThrough(t *testing.T) {
	fb := NewFilterBank(44100, 64, 63, RealizationIIRBiquadsOrder4)
	// Run a few blocks so the initial crossfade settles.
	for i := 0; i < 4; i++ {
		in := make([]float64, 64)
		for j := range in {
			in[j] = math.Sin(2 * math.Pi * 440 * float64(i*64+j) / 44100)
		}
		out := make([]float64, 64)
		fb.Process(in, out)
		for j, s := range out {
			require.False(t, math.IsNaN(s))
			require.InDelta(t, in[j], s, 1e-9)
		}
	}
}

func TestFilterBank_FIRRealizationDoesNotExplode(t *testing.T) {
	fb := NewFilterBank(44100, 64, 63, RealizationFIRSplineLinearPhase)
	fb.SetMagnitudes(flatMagnitudes(2.0))
	in := make([]float64, 64)
	in[0] = 1
	out := make([]float64, 64)
	fb.Process(in, out)
	for _, s := range out {
		require.False(t, math.IsNaN(s))
		require.Less(t, math.Abs(s), 10.0)
	}
}

func TestFilterBank_SetIdentityRestoresFlatResponse(t *testing.T) {
	fb := NewFilterBank(44100, 64, 63, RealizationIIRBiquadsOrder10)
	fb.SetMagnitudes(flatMagnitudes(0.1))
	require.False(t, fb.Identity())
	fb.SetIdentity()
	require.True(t, fb.Identity())
}
