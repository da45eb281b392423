package scene

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/rtauralize/auracore/internal/aerr"
)

const orthogonalityTolerance = 1e-2 // radians-equivalent dot-product slack

// MotionState is the scene-graph snapshot of an entity's pose: a
// position, a view and up vector (equivalently a unit-quaternion
// orientation), an optional head-above-torso orientation, and an
// optional separate real-world pose for loudspeaker setups where the
// physical listener and the virtual listener differ (spec.md §3).
// Once fixed it is immutable; a new pose is a new MotionState, fed as
// a new key into the owning entity's motion.Model by the control
// thread (spec.md §2).
type MotionState struct {
	Base

	position r3.Vector
	view     r3.Vector
	up       r3.Vector

	hasHATO bool
	hatoDeg float64

	hasRealWorld  bool
	realWorldPos  r3.Vector
	realWorldView r3.Vector
	realWorldUp   r3.Vector
}

func (m *MotionState) PreRelease() {}

func (m *MotionState) ResetForReuse() {
	m.Base.ResetForReuse()
	*m = MotionState{Base: m.Base}
}

func (m *MotionState) Position() r3.Vector { return m.position }
func (m *MotionState) View() r3.Vector     { return m.view }
func (m *MotionState) Up() r3.Vector       { return m.up }

func (m *MotionState) HATODegrees() (float64, bool) { return m.hatoDeg, m.hasHATO }

func (m *MotionState) RealWorldPose() (pos, view, up r3.Vector, ok bool) {
	return m.realWorldPos, m.realWorldView, m.realWorldUp, m.hasRealWorld
}

// SetPose sets the position/view/up. Fails with ModalError if the
// state is already fixed. The view/up orthogonality invariant
// (spec.md §3) is checked with a generous tolerance; metrics.NewFrame
// still re-orthogonalizes defensively downstream, so this check exists
// to catch grossly malformed input early, with the key path it
// belongs to in the error.
func (m *MotionState) SetPose(position, view, up r3.Vector) *aerr.Error {
	if m.Fixed() {
		return aerr.New(aerr.ModalError, "motion state is already fixed").WithKeyPath("pose")
	}
	if err := checkOrthonormal(view, up); err != nil {
		return err
	}
	m.position = position
	m.view = view
	m.up = up
	return nil
}

func (m *MotionState) SetHATO(degrees float64) *aerr.Error {
	if m.Fixed() {
		return aerr.New(aerr.ModalError, "motion state is already fixed").WithKeyPath("hato")
	}
	m.hasHATO = true
	m.hatoDeg = degrees
	return nil
}

func (m *MotionState) SetRealWorldPose(position, view, up r3.Vector) *aerr.Error {
	if m.Fixed() {
		return aerr.New(aerr.ModalError, "motion state is already fixed").WithKeyPath("real_world_pose")
	}
	if err := checkOrthonormal(view, up); err != nil {
		return err
	}
	m.hasRealWorld = true
	m.realWorldPos = position
	m.realWorldView = view
	m.realWorldUp = up
	return nil
}

func checkOrthonormal(view, up r3.Vector) *aerr.Error {
	vn, un := view.Norm(), up.Norm()
	if vn < 1e-9 || un < 1e-9 {
		return aerr.New(aerr.InvalidParameter, "view/up vectors must be non-zero").WithKeyPath("pose")
	}
	if math.Abs(vn-1) > orthogonalityTolerance || math.Abs(un-1) > orthogonalityTolerance {
		return aerr.New(aerr.InvalidParameter, "view/up vectors must be unit length").WithKeyPath("pose")
	}
	cos := view.Mul(1 / vn).Dot(up.Mul(1 / un))
	if math.Abs(cos) > orthogonalityTolerance {
		return aerr.New(aerr.InvalidParameter, "view/up vectors must be mutually orthogonal").WithKeyPath("pose")
	}
	return nil
}
