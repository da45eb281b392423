package metrics

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func Test_DirectlyAheadIsZeroAzimuthZeroElevation(t *testing.T) {
	observer := NewFrame(r3.Vector{}, r3.Vector{X: 0, Y: 0, Z: -1}, r3.Vector{X: 0, Y: 1, Z: 0})
	rel := Between(observer, r3.Vector{X: 0, Y: 0, Z: -5})
	assert.InDelta(t, 5.0, rel.Distance, 1e-9)
	assert.InDelta(t, 0.0, rel.AzimuthDegrees(), 1e-6)
	assert.InDelta(t, 0.0, rel.ElevationDegrees(), 1e-6)
}

func Test_ToTheRightIsNinetyDegreesAzimuth(t *testing.T) {
	observer := NewFrame(r3.Vector{}, r3.Vector{X: 0, Y: 0, Z: -1}, r3.Vector{X: 0, Y: 1, Z: 0})
	rel := Between(observer, r3.Vector{X: 5, Y: 0, Z: 0})
	assert.InDelta(t, 90.0, rel.AzimuthDegrees(), 1e-6)
}

func Test_DirectlyAboveIsNinetyDegreesElevation(t *testing.T) {
	observer := NewFrame(r3.Vector{}, r3.Vector{X: 0, Y: 0, Z: -1}, r3.Vector{X: 0, Y: 1, Z: 0})
	rel := Between(observer, r3.Vector{X: 0, Y: 5, Z: 0})
	assert.InDelta(t, 90.0, rel.ElevationDegrees(), 1e-6)
}

func Test_AzimuthWrapsToPositiveRange(t *testing.T) {
	observer := NewFrame(r3.Vector{}, r3.Vector{X: 0, Y: 0, Z: -1}, r3.Vector{X: 0, Y: 1, Z: 0})
	rel := Between(observer, r3.Vector{X: -5, Y: 0, Z: 0})
	assert.InDelta(t, 270.0, rel.AzimuthDegrees(), 1e-6)
	assert.GreaterOrEqual(t, float64(rel.Azimuth), 0.0)
	assert.Less(t, float64(rel.Azimuth), 2*math.Pi)
}

func Test_FrameDefensivelyOrthogonalizesNonOrthogonalUp(t *testing.T) {
	// up has a forward component; NewFrame must strip it.
	observer := NewFrame(r3.Vector{}, r3.Vector{X: 0, Y: 0, Z: -1}, r3.Vector{X: 0, Y: 1, Z: -0.5})
	assert.InDelta(t, 0.0, observer.Forward.Dot(observer.Up), 1e-9)
	assert.InDelta(t, 1.0, observer.Up.Norm(), 1e-9)
}
