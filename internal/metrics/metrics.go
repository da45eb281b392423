// Package metrics computes the relative azimuth/elevation/distance
// between oriented entities (spec.md §4.7, C6). It is deliberately
// tiny and allocation-free so it can run once per sound path per
// audio block.
package metrics

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
)

// Frame is an orthonormal observer frame: Forward and Up are unit and
// mutually orthogonal. Right completes a right-handed basis as
// Forward x Up, matching spec.md §4.7 ("toward the right (view x up)").
type Frame struct {
	Position r3.Vector
	Forward  r3.Vector
	Up       r3.Vector
	Right    r3.Vector
}

// NewFrame builds a Frame from a position, view vector, and up
// vector, defensively renormalizing and re-orthogonalizing them (up
// is Gram-Schmidt orthogonalized against view) so that callers never
// need to trust upstream data to be exactly unit/orthogonal.
func NewFrame(position, view, up r3.Vector) Frame {
	forward := safeNormalize(view, r3.Vector{X: 0, Y: 0, Z: -1})
	upOrtho := up.Sub(forward.Mul(up.Dot(forward)))
	upOrtho = safeNormalize(upOrtho, r3.Vector{X: 0, Y: 1, Z: 0})
	right := forward.Cross(upOrtho)
	right = safeNormalize(right, r3.Vector{X: 1, Y: 0, Z: 0})
	return Frame{Position: position, Forward: forward, Up: upOrtho, Right: right}
}

func safeNormalize(v, fallback r3.Vector) r3.Vector {
	n := v.Norm()
	if n < 1e-9 {
		return fallback
	}
	return v.Mul(1 / n)
}

// Relation bundles the distance/azimuth/elevation from one oriented
// entity toward another, computed once per block and shared across
// the VDL delay, directivity lookup, and HRIR lookup steps instead of
// recomputing the same trig three times (grounded on
// VASourceTargetMetrics's cached-bundle shape, see DESIGN.md).
type Relation struct {
	Distance  float64
	Azimuth   s1.Angle // [0, 2*pi)
	Elevation s1.Angle // [-pi/2, pi/2]
}

// Between computes the relation from observer toward target: azimuth
// in [0, 360) degrees from the observer's forward vector toward its
// right, elevation in [-90, 90] from the observer's horizontal plane
// toward its up.
func Between(observer Frame, target r3.Vector) Relation {
	d := target.Sub(observer.Position)
	distance := d.Norm()

	forwardComp := d.Dot(observer.Forward)
	rightComp := d.Dot(observer.Right)
	upComp := d.Dot(observer.Up)

	az := math.Atan2(rightComp, forwardComp)
	if az < 0 {
		az += 2 * math.Pi
	}

	horiz := math.Hypot(forwardComp, rightComp)
	el := math.Atan2(upComp, horiz)

	return Relation{
		Distance:  distance,
		Azimuth:   s1.Angle(az),
		Elevation: s1.Angle(el),
	}
}

// Reciprocal computes the Between relation in both directions for a
// source/receiver pair in one call: Relation from source toward
// receiver (for the source's directivity lookup and the VDL delay)
// and from receiver toward source (for HRIR selection).
type Reciprocal struct {
	SourceToReceiver Relation
	ReceiverToSource Relation
}

func Compute(source, receiver Frame) Reciprocal {
	return Reciprocal{
		SourceToReceiver: Between(source, receiver.Position),
		ReceiverToSource: Between(receiver, source.Position),
	}
}

// AzimuthDegrees and ElevationDegrees are convenience accessors for
// code (directivity/HRIR lookups) that wants plain float64 degrees.
func (r Relation) AzimuthDegrees() float64   { return float64(r.Azimuth) * 180 / math.Pi }
func (r Relation) ElevationDegrees() float64 { return float64(r.Elevation) * 180 / math.Pi }
