// Package directivity defines the opaque directivity/HRIR data handle
// contract of spec.md §6. Loading the underlying DAFF-format files is
// explicitly out of scope (spec.md §1): this package only defines the
// interface every renderer consumes and a small synthetic Identity
// implementation used as the fallback spec.md §7 calls for when a
// receiver or source has no directivity handle, and in tests.
package directivity

// ThirdOctaveBands is the number of ISO third-octave bands the
// magnitude-only directivity/filter-bank interfaces work with
// (spec.md §4.5).
const ThirdOctaveBands = 31

// HRIRFrame is a two-ear (or multichannel, for prototyping variants)
// impulse response at some distance, azimuth, and elevation.
type HRIRFrame struct {
	SampleRate float64
	Channels   [][]float32 // one slice per ear/channel
}

// Handle is the contract every directivity/HRIR data source
// implements, whether backed by a DAFF file (outside this module's
// scope) or synthesized for tests.
type Handle interface {
	// IsSpaceDiscrete reports whether the handle only has data at a
	// fixed set of measured directions (so callers must snap to the
	// nearest neighbour) or can synthesize a continuous response.
	IsSpaceDiscrete() bool

	// FilterLength is the number of samples in one HRIR channel.
	FilterLength() int

	// GetNearestNeighbour returns the record index closest to
	// (azimuthDeg, elevationDeg), for discrete handles.
	GetNearestNeighbour(azimuthDeg, elevationDeg float64) int

	// GetMagnitudes returns the 31 third-octave-band magnitudes (in
	// linear gain, not dB) for recordIndex.
	GetMagnitudes(recordIndex int) [ThirdOctaveBands]float64

	// GetHRIRByIndex returns the impulse response at recordIndex,
	// scaled for the given distance (e.g. for near-field correction).
	GetHRIRByIndex(recordIndex int, distance float64) HRIRFrame

	// GetHRIR returns the impulse response nearest
	// (azimuthDeg, elevationDeg) at distance, resolving through
	// GetNearestNeighbour for discrete handles or synthesizing
	// directly for continuous ones.
	GetHRIR(azimuthDeg, elevationDeg, distance float64) HRIRFrame
}

// HATOHandle is implemented by handles that can additionally
// individualize a record by head-above-torso orientation, per
// spec.md §6.
type HATOHandle interface {
	Handle
	GetHRIRByIndexAndHATO(recordIndex int, hatoDeg float64) HRIRFrame
}
