// Package driver implements the two ways an Engine's block-rate
// process() can be driven, per spec.md §5's "Offline rendering mode
// behaves identically but without a real audio thread: the control
// thread runs process() synchronously": Realtime ticks the engine at
// the device's block clock from a dedicated goroutine; Offline runs a
// fixed number of blocks synchronously on the calling goroutine. Both
// satisfy the same Driver interface, grounded on the teacher's own
// split between cmd/direwolf (binds to a live PortAudio device) and
// cmd/gen_tone (writes straight to a file, no device involved): two
// entry points over one shared codec/DSP core, distinguished only by
// how blocks get clocked.
package driver

import (
	"time"

	"github.com/rtauralize/auracore/internal/audioio"
	"github.com/rtauralize/auracore/internal/engine"
)

// Sink receives one rendered stereo block. Implementations must not
// retain outL/outR beyond the call — both are Engine-owned scratch
// buffers, overwritten on the next Process call.
type Sink func(outL, outR []float64)

// Driver is the shape both the realtime and offline drivers share.
type Driver interface {
	// Run drives the engine until stop is closed, or (for drivers with
	// a fixed length, like Offline) until that length is rendered.
	Run(stop <-chan struct{}) error
}

// Realtime drives engine.Process once per block period from a ticker,
// matching spec.md §5's "audio thread drives the renderers' process()
// from the audio device callback" (a ticker standing in for the
// device callback, since audio-device binding itself is out of scope
// per spec.md §1).
type Realtime struct {
	Engine *engine.Engine
	Info   audioio.Info
	Sink   Sink
}

func NewRealtime(eng *engine.Engine, info audioio.Info, sink Sink) *Realtime {
	return &Realtime{Engine: eng, Info: info, Sink: sink}
}

// Run blocks until stop is closed, delivering one rendered block to
// Sink every BlockLen/SampleRate seconds.
func (r *Realtime) Run(stop <-chan struct{}) error {
	period := time.Duration(float64(r.Info.BlockLen) / r.Info.SampleRate * float64(time.Second))
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	blockTime := 0.0
	blockDuration := float64(r.Info.BlockLen) / r.Info.SampleRate
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			info := r.Info
			info.BlockTime = blockTime
			outL, outR := r.Engine.Process(info)
			if r.Sink != nil {
				r.Sink(outL, outR)
			}
			blockTime += blockDuration
		}
	}
}

// Offline drives engine.Process synchronously for a fixed number of
// blocks, never sleeping between them (spec.md §5: "the control thread
// runs process() synchronously").
type Offline struct {
	Engine    *engine.Engine
	Info      audioio.Info
	NumBlocks int
	Sink      Sink
}

func NewOffline(eng *engine.Engine, info audioio.Info, numBlocks int, sink Sink) *Offline {
	return &Offline{Engine: eng, Info: info, NumBlocks: numBlocks, Sink: sink}
}

// Run ignores stop (offline rendering has a predetermined length) and
// renders NumBlocks blocks back-to-back.
func (o *Offline) Run(stop <-chan struct{}) error {
	blockTime := 0.0
	blockDuration := float64(o.Info.BlockLen) / o.Info.SampleRate
	for i := 0; i < o.NumBlocks; i++ {
		info := o.Info
		info.BlockTime = blockTime
		outL, outR := o.Engine.Process(info)
		if o.Sink != nil {
			o.Sink(outL, outR)
		}
		blockTime += blockDuration
	}
	return nil
}

var (
	_ Driver = (*Realtime)(nil)
	_ Driver = (*Offline)(nil)
)
