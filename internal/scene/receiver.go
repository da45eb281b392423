package scene

import (
	"github.com/rtauralize/auracore/internal/aerr"
	"github.com/rtauralize/auracore/internal/auramode"
	"github.com/rtauralize/auracore/internal/directivity"
	"github.com/rtauralize/auracore/internal/pool"
	"github.com/rtauralize/auracore/internal/structval"
)

// Anthropometry bundles the head-width/height/depth parameters used
// for ITD individualization and HRIR selection (spec.md §3).
type Anthropometry struct {
	HeadWidthMeters  float64
	HeadHeightMeters float64
	HeadDepthMeters  float64
}

// DefaultAnthropometry is a generic adult head, roughly matching the
// KEMAR dummy head measurements commonly used as an HRIR baseline.
var DefaultAnthropometry = Anthropometry{
	HeadWidthMeters:  0.145,
	HeadHeightMeters: 0.130,
	HeadDepthMeters:  0.200,
}

// ReceiverState is one listening entity in the scene (spec.md §3): the
// same shape as SoundSourceState plus anthropometric parameters.
type ReceiverState struct {
	Base

	motionState *MotionState
	power       float64 // calibration gain, analogous to source power
	auraMode    auramode.Mode
	muted       bool

	anthropometry Anthropometry

	directivityID   string
	directivityData directivity.Handle

	params *structval.Struct
}

func (r *ReceiverState) PreRelease() {
	if r.motionState != nil {
		pool.RemoveReference[*MotionState](r.motionState)
		r.motionState = nil
	}
	r.directivityData = nil
	r.params = nil
}

func (r *ReceiverState) ResetForReuse() {
	r.Base.ResetForReuse()
	r.motionState = nil
	r.power = 1.0
	r.auraMode = auramode.Default
	r.muted = false
	r.anthropometry = DefaultAnthropometry
	r.directivityID = ""
	r.directivityData = nil
	r.params = structval.New()
}

func (r *ReceiverState) MotionState() *MotionState          { return r.motionState }
func (r *ReceiverState) Power() float64                     { return r.power }
func (r *ReceiverState) AuraMode() auramode.Mode             { return r.auraMode }
func (r *ReceiverState) Muted() bool                         { return r.muted }
func (r *ReceiverState) Anthropometry() Anthropometry        { return r.anthropometry }
func (r *ReceiverState) DirectivityID() string               { return r.directivityID }
func (r *ReceiverState) Directivity() directivity.Handle     { return r.directivityData }
func (r *ReceiverState) Params() *structval.Struct           { return r.params }

func (r *ReceiverState) SetMotionState(ms *MotionState) *aerr.Error {
	if r.Fixed() {
		return aerr.New(aerr.ModalError, "receiver state is already fixed").WithKeyPath("motion_state")
	}
	if r.motionState != nil {
		pool.RemoveReference[*MotionState](r.motionState)
	}
	ms.AddReference()
	r.motionState = ms
	return nil
}

func (r *ReceiverState) SetPower(gain float64) *aerr.Error {
	if r.Fixed() {
		return aerr.New(aerr.ModalError, "receiver state is already fixed").WithKeyPath("power")
	}
	r.power = gain
	return nil
}

func (r *ReceiverState) SetAuraMode(m auramode.Mode) *aerr.Error {
	if r.Fixed() {
		return aerr.New(aerr.ModalError, "receiver state is already fixed").WithKeyPath("aura_mode")
	}
	r.auraMode = m
	return nil
}

func (r *ReceiverState) SetMuted(muted bool) *aerr.Error {
	if r.Fixed() {
		return aerr.New(aerr.ModalError, "receiver state is already fixed").WithKeyPath("muted")
	}
	r.muted = muted
	return nil
}

func (r *ReceiverState) SetAnthropometry(a Anthropometry) *aerr.Error {
	if r.Fixed() {
		return aerr.New(aerr.ModalError, "receiver state is already fixed").WithKeyPath("anthropometry")
	}
	r.anthropometry = a
	return nil
}

func (r *ReceiverState) SetDirectivity(id string, h directivity.Handle) *aerr.Error {
	if r.Fixed() {
		return aerr.New(aerr.ModalError, "receiver state is already fixed").WithKeyPath("directivity")
	}
	r.directivityID = id
	r.directivityData = h
	return nil
}

// cloneFrom copies src's field values into r; see SoundSourceState.cloneFrom.
func (r *ReceiverState) cloneFrom(src *ReceiverState, modTime float64) {
	r.init(src.ID(), modTime)
	r.power = src.power
	r.auraMode = src.auraMode
	r.muted = src.muted
	r.anthropometry = src.anthropometry
	r.directivityID = src.directivityID
	r.directivityData = src.directivityData
	r.params = src.params.Clone()
	r.motionState = src.motionState
	if r.motionState != nil {
		r.motionState.AddReference()
	}
}

func (r *ReceiverState) SetParams(p *structval.Struct) *aerr.Error {
	if r.Fixed() {
		return aerr.New(aerr.ModalError, "receiver state is already fixed").WithKeyPath("params")
	}
	r.params = p
	return nil
}
