package audioio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBuffer_WriteThenPullBlockRoundTrips(t *testing.T) {
	info := Info{SampleRate: 44100, BlockLen: 4, Channels: 1}
	r := NewRingBuffer(info, 16)
	r.Write([][]float64{{1, 2, 3, 4}})

	dst := [][]float64{make([]float64, 4)}
	ok := r.PullBlock(dst)
	require.True(t, ok)
	require.Equal(t, []float64{1, 2, 3, 4}, dst[0])
}

func TestRingBuffer_UnderrunZeroPadsAndReportsNotOK(t *testing.T) {
	info := Info{SampleRate: 44100, BlockLen: 4, Channels: 1}
	r := NewRingBuffer(info, 16)
	r.Write([][]float64{{1, 2}})

	dst := [][]float64{make([]float64, 4)}
	ok := r.PullBlock(dst)
	require.False(t, ok)
	require.Equal(t, []float64{1, 2, 0, 0}, dst[0])
}

func TestRingBuffer_MissingChannelYieldsSilence(t *testing.T) {
	info := Info{SampleRate: 44100, BlockLen: 2, Channels: 1}
	r := NewRingBuffer(info, 8)

	dst := [][]float64{make([]float64, 2), make([]float64, 2)}
	ok := r.PullBlock(dst)
	require.False(t, ok)
	require.Equal(t, []float64{0, 0}, dst[1])
}
