package scene

import "github.com/rtauralize/auracore/internal/aerr"

// PortalState carries a scalar open-state in [0,1] (spec.md §3): e.g.
// a door or window that sound-path renderers can use to gate or
// attenuate a transmission path.
type PortalState struct {
	Base
	openState float64
}

func (p *PortalState) PreRelease() {}

func (p *PortalState) ResetForReuse() {
	p.Base.ResetForReuse()
	p.openState = 0
}

// cloneFrom copies src's field values into p, preserving identity.
func (p *PortalState) cloneFrom(src *PortalState, modTime float64) {
	p.init(src.ID(), modTime)
	p.openState = src.openState
}

func (p *PortalState) OpenState() float64 { return p.openState }

func (p *PortalState) SetOpenState(v float64) *aerr.Error {
	if p.Fixed() {
		return aerr.New(aerr.ModalError, "portal state is already fixed").WithKeyPath("open_state")
	}
	if v < 0 || v > 1 {
		return aerr.New(aerr.InvalidParameter, "open state must be in [0,1]").WithKeyPath("open_state")
	}
	p.openState = v
	return nil
}
