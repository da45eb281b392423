package scene

import "github.com/rtauralize/auracore/internal/aerr"

// SurfaceState carries a material identifier (spec.md §3), used by
// renderers that model reflective/absorptive surfaces (e.g. the
// image-source variant's wall reflection coefficients).
type SurfaceState struct {
	Base
	materialID string
}

func (s *SurfaceState) PreRelease() {}

func (s *SurfaceState) ResetForReuse() {
	s.Base.ResetForReuse()
	s.materialID = ""
}

// cloneFrom copies src's field values into s, preserving identity.
func (s *SurfaceState) cloneFrom(src *SurfaceState, modTime float64) {
	s.init(src.ID(), modTime)
	s.materialID = src.materialID
}

func (s *SurfaceState) MaterialID() string { return s.materialID }

func (s *SurfaceState) SetMaterialID(id string) *aerr.Error {
	if s.Fixed() {
		return aerr.New(aerr.ModalError, "surface state is already fixed").WithKeyPath("material_id")
	}
	s.materialID = id
	return nil
}
