package dsp

import (
	"math"
	"testing"

	"github.com/rtauralize/auracore/internal/pool"
	"github.com/stretchr/testify/require"
)

func newTestConvolver(blockLen int) *Convolver {
	p := pool.New[*Filter](2, 2, func() *Filter { return &Filter{} })
	return NewConvolver(blockLen, 4, p)
}

// TestConvolver_DeltaFilterIsPassthrough grounds scenario 6 of spec
// §8: pushing a δ[0] impulse response through the convolver reproduces
// the input (scaled by gain) once the exchange crossfade settles.
func TestConvolver_DeltaFilterIsPassthrough(t *testing.T) {
	c := newTestConvolver(32)
	f := c.RequestFilter()
	f.Load([]float64{1}, 32)
	c.ExchangeFilter(f)
	c.ReleaseFilter(f)

	in := make([]float64, 32)
	for i := range in {
		in[i] = math.Sin(2 * math.Pi * float64(i) / 32)
	}

	// With no active filter yet, the first block installs the pending
	// filter directly, without a crossfade.
	out := make([]float64, 32)
	c.Process(in, out)
	out2 := make([]float64, 32)
	c.Process(in, out2)

	for i := range in {
		require.InDelta(t, in[i], out2[i], 1e-6)
	}
}

func TestConvolver_GainRampDoesNotClick(t *testing.T) {
	c := newTestConvolver(32)
	f := c.RequestFilter()
	f.Load([]float64{1}, 32)
	c.ExchangeFilter(f)
	c.ReleaseFilter(f)

	in := make([]float64, 32)
	in[0] = 1
	out := make([]float64, 32)
	c.Process(in, out)

	c.SetGain(0.0)
	out2 := make([]float64, 32)
	c.Process(in, out2)
	for _, s := range out2 {
		require.False(t, math.IsNaN(s))
	}
}

func TestFilter_CropsOversizedImpulseResponse(t *testing.T) {
	c := newTestConvolver(16)
	f := c.RequestFilter()
	f.Load(make([]float64, 16*40), 16)
	require.Greater(t, f.NumPartitions(), c.maxParts)
	c.ExchangeFilter(f)
	require.LessOrEqual(t, c.pending.NumPartitions(), c.maxParts)
	c.ReleaseFilter(f)
}
