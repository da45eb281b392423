// Package obslog provides the engine's structured logging, plus the
// lock-free audio-thread event ring described in SPEC_FULL.md §A.1:
// audio-thread code never calls a *log.Logger directly, it pushes a
// fixed-layout Event onto an AudioRing and a control-thread goroutine
// drains it into github.com/charmbracelet/log.
package obslog

import (
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// New returns a logger for a subsystem, with level and time format
// matching engine-wide defaults. Prefix shows up in every line, e.g.
// "scene", "motion", "renderer/freefield".
func New(prefix string) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Prefix:          prefix,
	})
	l.SetLevel(log.InfoLevel)
	return l
}

// EventKind distinguishes the small set of degradations the audio
// thread is allowed to report (spec.md §7).
type EventKind uint8

const (
	EventNone EventKind = iota
	EventMissingTrajectory
	EventMissingDirectivity
	EventFilterCropped
	EventReverbTimeClamped
	EventPathSkipped
)

func (k EventKind) String() string {
	switch k {
	case EventMissingTrajectory:
		return "missing motion estimate, path skipped for block"
	case EventMissingDirectivity:
		return "missing directivity handle, using identity filter"
	case EventFilterCropped:
		return "filter longer than convolver supports, cropped"
	case EventReverbTimeClamped:
		return "reverberation time below minimum, clamped"
	case EventPathSkipped:
		return "path skipped"
	default:
		return "none"
	}
}

// Event is the fixed-layout record the audio thread may emit. It
// carries no strings and does not allocate at the call site.
type Event struct {
	Kind     EventKind
	EntityID int64
	A, B     float64
}

// AudioRing is a single-producer/single-consumer lock-free ring of
// Events. Capacity must be a power of two. Push is called only from
// the audio thread and never blocks; Drain is called only from the
// control thread.
type AudioRing struct {
	buf      []Event
	mask     uint64
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

func NewAudioRing(capacityPow2 int) *AudioRing {
	if capacityPow2 <= 0 || capacityPow2&(capacityPow2-1) != 0 {
		panic("obslog: AudioRing capacity must be a power of two")
	}
	return &AudioRing{
		buf:  make([]Event, capacityPow2),
		mask: uint64(capacityPow2 - 1),
	}
}

// Push enqueues ev. If the ring is full (the control thread has
// fallen too far behind), the oldest unread event is dropped; this
// trades log completeness for the audio thread never blocking.
func (r *AudioRing) Push(ev Event) {
	w := r.writePos.Load()
	read := r.readPos.Load()
	if w-read >= uint64(len(r.buf)) {
		r.readPos.Store(read + 1)
	}
	r.buf[w&r.mask] = ev
	r.writePos.Store(w + 1)
}

// Drain calls fn once per pending event, oldest first, and advances
// the read cursor. Intended to run on the control thread once per
// tick.
func (r *AudioRing) Drain(fn func(Event)) {
	w := r.writePos.Load()
	read := r.readPos.Load()
	for read != w {
		fn(r.buf[read&r.mask])
		read++
	}
	r.readPos.Store(read)
}

// Logged emits every event drained from r to l at Warn level, for
// callers that just want the obvious default behavior.
func Logged(l *log.Logger, r *AudioRing) {
	r.Drain(func(ev Event) {
		l.Warn(ev.Kind.String(), "entity", ev.EntityID, "a", ev.A, "b", ev.B)
	})
}
