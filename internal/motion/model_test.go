package motion

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func fwd() r3.Vector { return r3.Vector{X: 0, Y: 0, Z: -1} }
func up() r3.Vector  { return r3.Vector{X: 0, Y: 1, Z: 0} }

func Test_NoKeysIsInvalid(t *testing.T) {
	m := New(DefaultConfig())
	_, valid := m.Estimate(0)
	assert.False(t, valid)
}

func Test_SingleKeyOutsideWindowReturnsVerbatim(t *testing.T) {
	m := New(Config{Capacity: 8, Window: 0.1, Delay: 0.1})
	m.InputMotionKey(0, r3.Vector{X: 1, Y: 2, Z: 3}, fwd(), up())

	pose, valid := m.Estimate(10.0) // far outside the window
	require.True(t, valid)
	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, pose.Position)
}

func Test_IdempotentEstimate(t *testing.T) {
	m := New(DefaultConfig())
	m.InputMotionKey(0.0, r3.Vector{X: 0, Y: 0, Z: 0}, fwd(), up())
	m.InputMotionKey(0.05, r3.Vector{X: 1, Y: 0, Z: 0}, fwd(), up())
	m.InputMotionKey(0.10, r3.Vector{X: 2, Y: 0, Z: 0}, fwd(), up())

	p1, ok1 := m.Estimate(0.12)
	p2, ok2 := m.Estimate(0.12)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, p1, p2)
}

func Test_AddingFutureKeyDoesNotChangePastEstimate(t *testing.T) {
	m := New(DefaultConfig())
	m.InputMotionKey(0.0, r3.Vector{X: 0, Y: 0, Z: 0}, fwd(), up())
	m.InputMotionKey(0.05, r3.Vector{X: 1, Y: 0, Z: 0}, fwd(), up())

	before, _ := m.Estimate(0.03)
	m.InputMotionKey(10.0, r3.Vector{X: 100, Y: 0, Z: 0}, fwd(), up())
	after, _ := m.Estimate(0.03)

	assert.Equal(t, before, after)
}

// Test_WindowLaw checks spec.md §8: for any key older than
// queryTime - D - W, its weight is 0, so removing it (here: never
// having added it, since the ring naturally evicts) does not change
// the estimate.
func Test_WindowLaw(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		window := rapid.Float64Range(0.01, 1.0).Draw(t, "window")
		delay := rapid.Float64Range(0.0, 1.0).Draw(t, "delay")
		queryTime := rapid.Float64Range(0.0, 5.0).Draw(t, "queryTime")

		cutoff := queryTime - delay - window

		withOld := New(Config{Capacity: 64, Window: window, Delay: delay})
		withoutOld := New(Config{Capacity: 64, Window: window, Delay: delay})

		oldTime := cutoff - rapid.Float64Range(0.01, 10.0).Draw(t, "staleness")
		withOld.InputMotionKey(oldTime, r3.Vector{X: 999, Y: 999, Z: 999}, fwd(), up())

		recentTimes := rapid.SliceOfN(rapid.Float64Range(cutoff+0.001, queryTime+1), 1, 5).Draw(t, "recent")
		for i, rt := range recentTimes {
			pos := r3.Vector{X: float64(i), Y: 0, Z: 0}
			withOld.InputMotionKey(rt, pos, fwd(), up())
			withoutOld.InputMotionKey(rt, pos, fwd(), up())
		}

		p1, ok1 := withOld.Estimate(queryTime)
		p2, ok2 := withoutOld.Estimate(queryTime)
		require.Equal(t, ok1, ok2)
		if ok1 {
			assert.InDelta(t, p2.Position.X, p1.Position.X, 1e-9)
			assert.InDelta(t, p2.Position.Y, p1.Position.Y, 1e-9)
			assert.InDelta(t, p2.Position.Z, p1.Position.Z, 1e-9)
		}
	})
}

func Test_RingEvictsOldestBeyondCapacity(t *testing.T) {
	m := New(Config{Capacity: 2, Window: 10, Delay: 0})
	m.InputMotionKey(0, r3.Vector{X: 0}, fwd(), up())
	m.InputMotionKey(1, r3.Vector{X: 1}, fwd(), up())
	m.InputMotionKey(2, r3.Vector{X: 2}, fwd(), up())

	keys := m.snapshot()
	require.Len(t, keys, 2)
	assert.Equal(t, 1.0, keys[0].t)
	assert.Equal(t, 2.0, keys[1].t)
}
