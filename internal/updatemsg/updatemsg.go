// Package updatemsg implements the update-message plumbing of
// spec.md §4.6 (C10): a pooled, reference-counted message describing
// what changed in the scene since the last one, pushed from the
// control thread to the audio thread over a lock-free single-
// producer/single-consumer queue. Messages are never merged — each
// one is built from exactly one scene diff and consumed whole.
package updatemsg

import (
	"sync/atomic"

	"github.com/rtauralize/auracore/internal/path"
	"github.com/rtauralize/auracore/internal/pool"
	"github.com/rtauralize/auracore/internal/scene"
)

// Message carries the six vectors spec.md §4.6 names: new and deleted
// sources, new and deleted receivers, new and deleted paths. It holds
// a reference on every entity it carries from the moment it is added
// until PreRelease runs (when the message's own reference count drops
// to zero, typically right after the audio thread finishes draining
// it), so an entity can never be freed out from under a message still
// in flight on the queue.
type Message struct {
	pool.Base

	NewSources       []*scene.SoundSourceState
	DeletedSources   []*scene.SoundSourceState
	NewReceivers     []*scene.ReceiverState
	DeletedReceivers []*scene.ReceiverState
	NewPaths         []*path.Path
	DeletedPaths     []*path.Path
}

// NewFactory returns a pool factory for Message, sized by the given
// per-vector capacity hint (a plain append-growth slice cap, not a
// hard limit).
func NewFactory(capacityHint int) func() *Message {
	return func() *Message {
		return &Message{
			NewSources:       make([]*scene.SoundSourceState, 0, capacityHint),
			DeletedSources:   make([]*scene.SoundSourceState, 0, capacityHint),
			NewReceivers:     make([]*scene.ReceiverState, 0, capacityHint),
			DeletedReceivers: make([]*scene.ReceiverState, 0, capacityHint),
			NewPaths:         make([]*path.Path, 0, capacityHint),
			DeletedPaths:     make([]*path.Path, 0, capacityHint),
		}
	}
}

func (m *Message) PreRelease() {
	for _, s := range m.NewSources {
		pool.RemoveReference[*scene.SoundSourceState](s)
	}
	for _, s := range m.DeletedSources {
		pool.RemoveReference[*scene.SoundSourceState](s)
	}
	for _, r := range m.NewReceivers {
		pool.RemoveReference[*scene.ReceiverState](r)
	}
	for _, r := range m.DeletedReceivers {
		pool.RemoveReference[*scene.ReceiverState](r)
	}
	for _, p := range m.NewPaths {
		pool.RemoveReference[*path.Path](p)
	}
	for _, p := range m.DeletedPaths {
		pool.RemoveReference[*path.Path](p)
	}
}

func (m *Message) ResetForReuse() {
	m.NewSources = m.NewSources[:0]
	m.DeletedSources = m.DeletedSources[:0]
	m.NewReceivers = m.NewReceivers[:0]
	m.DeletedReceivers = m.DeletedReceivers[:0]
	m.NewPaths = m.NewPaths[:0]
	m.DeletedPaths = m.DeletedPaths[:0]
}

// AddNewSource, AddDeletedSource, and their receiver/path counterparts
// each take a reference on the held entity before appending it;
// PreRelease drops exactly those references.
func (m *Message) AddNewSource(s *scene.SoundSourceState) {
	s.AddReference()
	m.NewSources = append(m.NewSources, s)
}

func (m *Message) AddDeletedSource(s *scene.SoundSourceState) {
	s.AddReference()
	m.DeletedSources = append(m.DeletedSources, s)
}

func (m *Message) AddNewReceiver(r *scene.ReceiverState) {
	r.AddReference()
	m.NewReceivers = append(m.NewReceivers, r)
}

func (m *Message) AddDeletedReceiver(r *scene.ReceiverState) {
	r.AddReference()
	m.DeletedReceivers = append(m.DeletedReceivers, r)
}

func (m *Message) AddNewPath(p *path.Path) {
	p.AddReference()
	m.NewPaths = append(m.NewPaths, p)
}

func (m *Message) AddDeletedPath(p *path.Path) {
	p.AddReference()
	m.DeletedPaths = append(m.DeletedPaths, p)
}

// Queue is a single-producer/single-consumer lock-free ring buffer of
// *Message, sized to a power of two. Indices are atomic.Uint64 and
// slots are atomic.Pointer values, accessed with plain atomic loads,
// stores and swaps (no compare-and-swap); Push/Pop never block or allocate
// once the ring itself is sized — the property that lets the audio
// thread call Pop safely.
type Queue struct {
	buf  []atomic.Pointer[Message]
	mask uint64
	head atomic.Uint64 // next slot the producer will write
	tail atomic.Uint64 // next slot the consumer will read
}

// NewQueue builds a ring buffer with at least capacity slots (rounded
// up to the next power of two).
func NewQueue(capacity int) *Queue {
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &Queue{buf: make([]atomic.Pointer[Message], n), mask: uint64(n - 1)}
}

// Push enqueues msg, returning false if the queue is full. A full
// queue is a backpressure signal for the control thread to handle
// (e.g. drop and log, per spec.md §9's degrade-in-place policy); Push
// itself never merges or drops on the caller's behalf.
func (q *Queue) Push(msg *Message) bool {
	head := q.head.Load()
	tail := q.tail.Load()
	if head-tail >= uint64(len(q.buf)) {
		return false
	}
	q.buf[head&q.mask].Store(msg)
	q.head.Store(head + 1)
	return true
}

// Pop dequeues the oldest message, or returns nil if none is ready.
// Safe to call from the audio thread: no lock, no allocation.
func (q *Queue) Pop() *Message {
	tail := q.tail.Load()
	head := q.head.Load()
	if tail == head {
		return nil
	}
	msg := q.buf[tail&q.mask].Swap(nil)
	q.tail.Store(tail + 1)
	return msg
}

// Len reports the number of messages currently queued. Approximate
// under concurrent use; intended for diagnostics, not control flow.
func (q *Queue) Len() int {
	return int(q.head.Load() - q.tail.Load())
}
