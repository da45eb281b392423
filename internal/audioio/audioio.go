// Package audioio defines the block-oriented pull-source abstraction
// of spec.md §6 (External interfaces): renderers produce output
// through a realization of Source, and each sound source's input
// sample frame buffer is consumed through the same abstraction.
// Binding either side to a physical device or network transport is
// explicitly out of scope (spec.md §1 Non-goals) — this package only
// defines the interface and an in-memory ring implementation usable
// for offline rendering, testing, and feeding synthetic source input.
package audioio

import "sync"

// Info carries the block parameters and the per-block stream-info
// spec.md §6 requires: sample rate, channel count, block length, and
// the system time the block represents.
type Info struct {
	SampleRate float64
	BlockLen   int
	Channels   int
	BlockTime  float64
}

// Source is the block-oriented pull abstraction every renderer output
// and every sound-source input realizes. PullBlock must never block:
// a source with nothing ready returns ok=false and the caller treats
// the block as silence (spec.md §6: "the renderer may not block on
// the buffer being filled").
type Source interface {
	Info() Info
	PullBlock(dst [][]float64) (ok bool)
}

// RingBuffer is a multi-channel sample FIFO (it grows as needed; the
// capacity passed to NewRingBuffer is only a hint) usable on both
// sides of the abstraction: Write (control thread, or a signal
// generator) appends samples per channel; PullBlock (audio thread)
// drains exactly one block per call, never blocking. It is single-
// writer/single-reader like motion.Model's ring, guarded by a mutex
// because unlike the motion model the write side is not a fixed-size
// overwrite-in-place ring but a growing/draining FIFO.
type RingBuffer struct {
	info Info

	mu       sync.Mutex
	channels [][]float64 // each a FIFO of pending samples
}

// NewRingBuffer builds a ring with the given stream parameters and an
// initial capacity hint per channel.
func NewRingBuffer(info Info, capacityHint int) *RingBuffer {
	chans := make([][]float64, info.Channels)
	for i := range chans {
		chans[i] = make([]float64, 0, capacityHint)
	}
	return &RingBuffer{info: info, channels: chans}
}

func (r *RingBuffer) Info() Info { return r.info }

// Write appends any number of samples per channel (len(data)
// must be <= Info().Channels; a source with channel 0 only is the
// common case spec.md §6 describes). Control-thread / producer side.
func (r *RingBuffer) Write(data [][]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := 0; ch < len(data) && ch < len(r.channels); ch++ {
		r.channels[ch] = append(r.channels[ch], data[ch]...)
	}
}

// PullBlock drains exactly info.BlockLen samples per channel into
// dst, zero-padding (and reporting ok=false) if fewer are available —
// the renderer "may not block on the buffer being filled" (spec.md
// §6), so an underrun degrades to silence rather than waiting.
func (r *RingBuffer) PullBlock(dst [][]float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ok := true
	for ch := range dst {
		if ch >= len(r.channels) {
			for i := range dst[ch] {
				dst[ch][i] = 0
			}
			ok = false
			continue
		}
		avail := r.channels[ch]
		n := len(dst[ch])
		if len(avail) < n {
			ok = false
			n = len(avail)
		}
		copy(dst[ch], avail[:n])
		for i := n; i < len(dst[ch]); i++ {
			dst[ch][i] = 0
		}
		r.channels[ch] = avail[n:]
	}
	return ok
}

// Len reports the number of buffered samples on channel 0, for tests
// and diagnostics (e.g. detecting a growing backlog).
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.channels) == 0 {
		return 0
	}
	return len(r.channels[0])
}
