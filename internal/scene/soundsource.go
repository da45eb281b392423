package scene

import (
	"github.com/rtauralize/auracore/internal/aerr"
	"github.com/rtauralize/auracore/internal/auramode"
	"github.com/rtauralize/auracore/internal/directivity"
	"github.com/rtauralize/auracore/internal/pool"
	"github.com/rtauralize/auracore/internal/structval"
)

// DefaultSoundPowerWatts is 1 pW, spec.md §3's "94 dB SPL at 1 m"
// reference sound power.
const DefaultSoundPowerWatts = 1e-12

// SoundSourceState is one sound-emitting entity in the scene
// (spec.md §3): a reference to a motion state, a sound power, an
// auralization-mode mask, a directivity identifier/handle, and a
// free-form parameter struct.
type SoundSourceState struct {
	Base

	motionState *MotionState
	power       float64
	auraMode    auramode.Mode
	muted       bool

	directivityID   string
	directivityData directivity.Handle

	params *structval.Struct
}

func (s *SoundSourceState) PreRelease() {
	if s.motionState != nil {
		pool.RemoveReference[*MotionState](s.motionState)
		s.motionState = nil
	}
	s.directivityData = nil
	s.params = nil
}

func (s *SoundSourceState) ResetForReuse() {
	s.Base.ResetForReuse()
	s.motionState = nil
	s.power = DefaultSoundPowerWatts
	s.auraMode = auramode.Default
	s.muted = false
	s.directivityID = ""
	s.directivityData = nil
	s.params = structval.New()
}

func (s *SoundSourceState) MotionState() *MotionState       { return s.motionState }
func (s *SoundSourceState) Power() float64                  { return s.power }
func (s *SoundSourceState) AuraMode() auramode.Mode          { return s.auraMode }
func (s *SoundSourceState) Muted() bool                      { return s.muted }
func (s *SoundSourceState) DirectivityID() string            { return s.directivityID }
func (s *SoundSourceState) Directivity() directivity.Handle  { return s.directivityData }
func (s *SoundSourceState) Params() *structval.Struct        { return s.params }

// SetMotionState installs ms as this source's motion state, taking a
// reference; any previously installed motion state is released.
func (s *SoundSourceState) SetMotionState(ms *MotionState) *aerr.Error {
	if s.Fixed() {
		return aerr.New(aerr.ModalError, "sound source state is already fixed").WithKeyPath("motion_state")
	}
	if s.motionState != nil {
		pool.RemoveReference[*MotionState](s.motionState)
	}
	ms.AddReference()
	s.motionState = ms
	return nil
}

func (s *SoundSourceState) SetPower(watts float64) *aerr.Error {
	if s.Fixed() {
		return aerr.New(aerr.ModalError, "sound source state is already fixed").WithKeyPath("power")
	}
	if watts < 0 {
		return aerr.New(aerr.InvalidParameter, "sound power must be non-negative").WithKeyPath("power")
	}
	s.power = watts
	return nil
}

func (s *SoundSourceState) SetAuraMode(m auramode.Mode) *aerr.Error {
	if s.Fixed() {
		return aerr.New(aerr.ModalError, "sound source state is already fixed").WithKeyPath("aura_mode")
	}
	s.auraMode = m
	return nil
}

func (s *SoundSourceState) SetMuted(muted bool) *aerr.Error {
	if s.Fixed() {
		return aerr.New(aerr.ModalError, "sound source state is already fixed").WithKeyPath("muted")
	}
	s.muted = muted
	return nil
}

func (s *SoundSourceState) SetDirectivity(id string, h directivity.Handle) *aerr.Error {
	if s.Fixed() {
		return aerr.New(aerr.ModalError, "sound source state is already fixed").WithKeyPath("directivity")
	}
	s.directivityID = id
	s.directivityData = h
	return nil
}

// cloneFrom copies src's field values into s (a freshly pool-requested
// object already carrying its own id and reference count), preserving
// src's identity and stamping modTime as the new modification time.
// The motion state is shared by reference (one extra AddReference);
// the params struct is shallow-copied so the clone can be mutated
// without perturbing a still-published scene's copy.
func (s *SoundSourceState) cloneFrom(src *SoundSourceState, modTime float64) {
	s.init(src.ID(), modTime)
	s.power = src.power
	s.auraMode = src.auraMode
	s.muted = src.muted
	s.directivityID = src.directivityID
	s.directivityData = src.directivityData
	s.params = src.params.Clone()
	s.motionState = src.motionState
	if s.motionState != nil {
		s.motionState.AddReference()
	}
}

func (s *SoundSourceState) SetParams(p *structval.Struct) *aerr.Error {
	if s.Fixed() {
		return aerr.New(aerr.ModalError, "sound source state is already fixed").WithKeyPath("params")
	}
	s.params = p
	return nil
}
