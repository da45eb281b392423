// Package motion implements the motion model of spec.md §4.4 (C5): a
// ring-buffered pose history with windowed weighted extrapolation at
// an arbitrary query time. One Model instance serves one entity
// (source, receiver, or portal/surface if ever animated); it is
// single-writer (the control thread calling InputMotionKey) and
// single-reader (the audio thread calling Estimate), with no lock;
// the ring's write counter is a plain field (see Model).
package motion

import (
	"math"

	"github.com/golang/geo/r3"
)

// Pose is a position plus an orthonormal view/up orientation.
type Pose struct {
	Position r3.Vector
	View     r3.Vector
	Up       r3.Vector
}

// key is one ring-buffer slot: a timestamped pose as reported by
// InputMotionKey.
type key struct {
	valid bool
	t     float64
	pos   r3.Vector
	view  r3.Vector
	up    r3.Vector
}

// Config bundles the tunables spec.md §6 documents as
// MotionModelNumHistoryKeys / MotionModelWindowSize / MotionModelWindowDelay.
type Config struct {
	Capacity int     // ring buffer size, default 100-1000 per spec.md §4.4
	Window   float64 // W, seconds, typical 0.1
	Delay    float64 // D, seconds, typical 0.1
}

func DefaultConfig() Config {
	return Config{Capacity: 300, Window: 0.1, Delay: 0.1}
}

// Model is a single entity's pose history and estimator.
type Model struct {
	cfg Config

	// ring is sized cfg.Capacity; writeCount is the total number of
	// keys ever written. The slot for write count n is
	// ring[n % cap]. Single writer, so plain int64 suffices; it is
	// read by Estimate without synchronization per spec.md §4.4's
	// "no lock required beyond the ring-buffer index" contract,
	// which in a garbage-collected language with no torn int64
	// writes on 64-bit platforms is satisfied by a plain field.
	ring       []key
	writeCount int64

	log *Log
}

func New(cfg Config) *Model {
	if cfg.Capacity <= 0 {
		cfg = DefaultConfig()
	}
	return &Model{cfg: cfg, ring: make([]key, cfg.Capacity)}
}

// AttachLog enables the logging side channel (spec.md §6): every
// input and estimate is appended to m.log, flushed to a TSV file when
// Close is called.
func (m *Model) AttachLog(l *Log) { m.log = l }

// Close flushes the attached log, if any, standing in for the
// "flushes to a tab-separated file on model destruction" behavior
// spec.md §4.4 describes; Go has no destructors, so callers must call
// Close explicitly when done with a Model.
func (m *Model) Close() error {
	if m.log == nil {
		return nil
	}
	return m.log.Flush()
}

// InputMotionKey appends a timestamped pose to the ring, overwriting
// the oldest entry once the ring is full. Out-of-order or backward-
// running timestamps are accepted: the model is a smoother, not a
// timestamp enforcer (spec.md §4.4).
func (m *Model) InputMotionKey(timestamp float64, position, view, up r3.Vector) {
	slot := int(m.writeCount % int64(len(m.ring)))
	m.ring[slot] = key{valid: true, t: timestamp, pos: position, view: view, up: up}
	m.writeCount++

	if m.log != nil {
		m.log.LogInput(timestamp, position, view, up)
	}
}

// snapshot returns the currently valid keys in chronological
// insertion order (oldest first).
func (m *Model) snapshot() []key {
	n := m.writeCount
	cap64 := int64(len(m.ring))
	count := n
	if count > cap64 {
		count = cap64
	}
	out := make([]key, 0, count)
	start := n - count
	for i := start; i < n; i++ {
		out = append(out, m.ring[i%cap64])
	}
	return out
}

// velocityAt returns the estimated velocity at keys[idx] from its
// chronological neighbors, or the zero vector if idx has no usable
// neighbor (spec.md §4.4: "or zero if unknown").
func velocityAt(keys []key, idx int) r3.Vector {
	switch {
	case len(keys) < 2:
		return r3.Vector{}
	case idx == 0:
		return finiteDiff(keys[0], keys[1])
	case idx == len(keys)-1:
		return finiteDiff(keys[idx-1], keys[idx])
	default:
		return finiteDiff(keys[idx-1], keys[idx+1])
	}
}

func finiteDiff(a, b key) r3.Vector {
	dt := b.t - a.t
	if dt == 0 {
		return r3.Vector{}
	}
	return b.pos.Sub(a.pos).Mul(1 / dt)
}

// Estimate returns the interpolated/extrapolated pose at queryTime
// using the triangular-window weighted extrapolation of spec.md §4.4.
// valid is false only when the model has never received a key.
// Querying the same queryTime twice in a row yields a bit-identical
// result (Estimate performs no mutation).
func (m *Model) Estimate(queryTime float64) (pose Pose, valid bool) {
	keys := m.snapshot()
	if len(keys) == 0 {
		if m.log != nil {
			m.log.LogEstimate(queryTime, Pose{}, 0)
		}
		return Pose{}, false
	}

	type weighted struct {
		w   float64
		pos r3.Vector
	}

	var sumW float64
	var accum r3.Vector
	bestW := -1.0
	bestIdx := len(keys) - 1

	// Velocities are taken from neighbours among the keys inside the
	// window only, so a zero-weight key has no influence on the estimate.
	weights := make([]float64, len(keys))
	inWindow := make([]key, 0, len(keys))
	for i, k := range keys {
		w := 1 - math.Abs(queryTime-k.t-m.cfg.Delay)/m.cfg.Window
		if w < 0 {
			w = 0
		}
		weights[i] = w
		if w > 0 {
			inWindow = append(inWindow, k)
		}
	}
	involved := len(inWindow)

	j := 0
	for i, k := range keys {
		w := weights[i]
		if w > bestW {
			bestW = w
			bestIdx = i
		}
		if w == 0 {
			continue
		}
		v := velocityAt(inWindow, j)
		j++
		extrapolated := k.pos.Add(v.Mul(queryTime - k.t))
		accum = accum.Add(extrapolated.Mul(w))
		sumW += w
	}

	var out Pose
	if sumW <= 0 {
		newest := keys[len(keys)-1]
		out = Pose{Position: newest.pos, View: newest.view, Up: newest.up}
		involved = 0
	} else {
		out = Pose{
			Position: accum.Mul(1 / sumW),
			View:     normalizeOrFallback(keys[bestIdx].view, r3.Vector{X: 0, Y: 0, Z: -1}),
			Up:       normalizeOrFallback(keys[bestIdx].up, r3.Vector{X: 0, Y: 1, Z: 0}),
		}
	}

	if m.log != nil {
		m.log.LogEstimate(queryTime, out, involved)
	}
	return out, true
}

func normalizeOrFallback(v, fallback r3.Vector) r3.Vector {
	n := v.Norm()
	if n < 1e-9 {
		return fallback
	}
	return v.Mul(1 / n)
}
