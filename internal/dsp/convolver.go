package dsp

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/rtauralize/auracore/internal/pool"
)

// Filter is one set of frequency-domain-transformed coefficient
// partitions, held in a Convolver's FilterPool (spec §4.5's
// requestFilter → load → exchangeFilter → releaseFilter handle
// cycle). Pool-backed like every other audio-critical object in
// auracore (C1), so acquiring and releasing a filter on the control
// thread never touches the allocator on the audio thread.
type Filter struct {
	pool.Base

	blockLen   int
	numTaps    int
	partitions [][]complex128 // each length 2*blockLen
}

func (f *Filter) PreRelease() {}

func (f *Filter) ResetForReuse() {
	f.blockLen = 0
	f.numTaps = 0
	f.partitions = nil
}

// Load partitions coeffs into blockLen-sized segments (zero-padded to
// 2*blockLen) and FFT-transforms each, grounded on
// `github.com/mjibson/go-dsp/fft` the way san-kum-dynsim's audio
// package uses it for spectral analysis, repurposed here for
// frequency-domain overlap-save multiply-accumulate.
func (f *Filter) Load(coeffs []float64, blockLen int) {
	f.blockLen = blockLen
	f.numTaps = len(coeffs)
	fftLen := 2 * blockLen
	numParts := (len(coeffs) + blockLen - 1) / blockLen
	if numParts < 1 {
		numParts = 1
	}
	f.partitions = make([][]complex128, numParts)
	for p := 0; p < numParts; p++ {
		seg := make([]float64, fftLen)
		start := p * blockLen
		end := start + blockLen
		if end > len(coeffs) {
			end = len(coeffs)
		}
		if start < end {
			copy(seg, coeffs[start:end])
		}
		f.partitions[p] = fft.FFTReal(seg)
	}
}

// NumPartitions reports how many blockLen-sized partitions Load split
// the coefficients into; a Convolver crops any impulse response
// longer than its configured maximum number of partitions (spec §7:
// "a filter longer than the convolver supports is cropped with one
// warning").
func (f *Filter) NumPartitions() int { return len(f.partitions) }

const defaultCrossfadeSamples = 256

// Convolver is a uniformly-partitioned overlap-save FIR convolver
// whose partition size equals the audio block length (spec §4.5).
// Exchanging filters crossfades with a cosine-square window over
// min(256, blockLen) samples, fixed at construction (there is no
// setter for the crossfade length); gain changes ramp linearly across
// one block. Both transitions run entirely inside Process, which never
// blocks but allocates small per-block scratch slices.
type Convolver struct {
	blockLen     int
	maxParts     int
	crossfadeLen int

	filters *pool.Pool[*Filter]

	active  *Filter
	pending *Filter

	history   [][]complex128 // ring of transformed 2*blockLen input windows
	histPos   int
	prevInput []float64

	activeGain  float64
	targetGain  float64
	pendingGain float64
}

// NewConvolver builds a convolver for the given block length and
// maximum supported partition depth (i.e. maximum impulse response
// length = maxParts*blockLen samples).
func NewConvolver(blockLen, maxParts int, filterPool *pool.Pool[*Filter]) *Convolver {
	if maxParts < 1 {
		maxParts = 1
	}
	history := make([][]complex128, maxParts)
	fftLen := 2 * blockLen
	for i := range history {
		history[i] = make([]complex128, fftLen)
	}
	return &Convolver{
		blockLen:     blockLen,
		maxParts:     maxParts,
		crossfadeLen: minInt(defaultCrossfadeSamples, blockLen),
		filters:      filterPool,
		history:      history,
		prevInput:    make([]float64, blockLen),
		activeGain:   1,
		targetGain:   1,
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// RequestFilter acquires a pooled Filter ready for Load.
func (c *Convolver) RequestFilter() *Filter { return c.filters.Request() }

// ReleaseFilter drops the caller's reference to f.
func (c *Convolver) ReleaseFilter(f *Filter) { pool.RemoveReference[*Filter](f) }

// ExchangeFilter installs f as the convolver's pending filter; Process
// crossfades from the currently active filter to f over
// crossfadeLen samples and then f becomes active. Takes a reference
// on f; the caller should release its own with ReleaseFilter once it
// no longer needs to touch f directly.
func (c *Convolver) ExchangeFilter(f *Filter) {
	if f.NumPartitions() > c.maxParts {
		f.partitions = f.partitions[:c.maxParts] // cropped per spec §7
	}
	f.AddReference()
	if c.pending != nil {
		pool.RemoveReference[*Filter](c.pending)
	}
	c.pending = f
}

// SetGain requests a new overall gain, applied with a per-block
// linear envelope (spec §4.6 step 8).
func (c *Convolver) SetGain(g float64) { c.targetGain = g }

// Process runs one block of input through the convolver and
// mix-accumulates the result into out (out is not cleared first, so
// multiple paths can sum into a shared receiver frame per spec §4.6
// step 9).
func (c *Convolver) Process(in []float64, out []float64) {
	n := len(in)
	if n != c.blockLen || c.active == nil {
		if c.pending != nil {
			if c.active == nil {
				c.activeGain = c.targetGain
			}
			c.active = c.pending
			c.pending = nil
		}
		if c.active == nil {
			return
		}
	}

	window := make([]float64, 2*c.blockLen)
	copy(window, c.prevInput)
	copy(window[c.blockLen:], in)
	transformed := fft.FFT(toComplex(window))
	c.history[c.histPos] = transformed

	activeOut := c.convolveWith(c.active)
	var pendingOut []float64
	if c.pending != nil {
		pendingOut = c.convolveWith(c.pending)
	}

	for i := 0; i < n; i++ {
		gt := float64(i+1) / float64(n)
		gain := c.activeGain + (c.targetGain-c.activeGain)*gt

		sample := activeOut[i]
		if c.pending != nil {
			sample = crossfadeSample(activeOut[i], pendingOut[i], i, c.crossfadeLen)
		}
		out[i] += sample * gain
	}
	c.activeGain = c.targetGain

	if c.pending != nil && n >= c.crossfadeLen {
		old := c.active
		c.active = c.pending
		c.pending = nil
		if old != nil {
			pool.RemoveReference[*Filter](old)
		}
	}

	copy(c.prevInput, in)
	c.histPos = (c.histPos + 1) % c.maxParts
}

// crossfadeSample applies a cosine-square crossfade weight at sample
// index i within a crossfadeLen-sample transition window (spec §4.5).
func crossfadeSample(oldV, newV float64, i, crossfadeLen int) float64 {
	if crossfadeLen <= 0 {
		return newV
	}
	t := math.Min(float64(i)/float64(crossfadeLen), 1)
	w := math.Sin(0.5 * math.Pi * t)
	w = w * w
	return (1-w)*oldV + w*newV
}

// convolveWith multiplies f's partitions against the ring of
// transformed input windows (uniformly-partitioned overlap-save) and
// returns the valid (non-aliased) second half of the inverse FFT.
func (c *Convolver) convolveWith(f *Filter) []float64 {
	fftLen := 2 * c.blockLen
	acc := make([]complex128, fftLen)
	for p, part := range f.partitions {
		idx := (c.histPos - p + c.maxParts) % c.maxParts
		h := c.history[idx]
		for k := 0; k < fftLen; k++ {
			acc[k] += h[k] * part[k]
		}
	}
	full := fft.IFFT(acc)
	out := make([]float64, c.blockLen)
	for i := 0; i < c.blockLen; i++ {
		out[i] = real(full[c.blockLen+i])
	}
	return out
}

func toComplex(in []float64) []complex128 {
	out := make([]complex128, len(in))
	for i, v := range in {
		out[i] = complex(v, 0)
	}
	return out
}
