// Package imagesource implements the prototype image-source renderer
// of spec.md §4.8: like the generic-path prototype, it loads a raw
// impulse response directly into each live path's convolver, but
// synthesizes that response itself from a shoebox room (six wall
// reflection coefficients, a maximum reflection order) via the
// classical image-source / mirror-image method (Allen & Berkley)
// instead of receiving it over setParameters.
package imagesource

import (
	"math"

	"github.com/rtauralize/auracore/internal/aerr"
	"github.com/rtauralize/auracore/internal/audioio"
	"github.com/rtauralize/auracore/internal/auramode"
	"github.com/rtauralize/auracore/internal/dsp"
	"github.com/rtauralize/auracore/internal/motion"
	"github.com/rtauralize/auracore/internal/path"
	"github.com/rtauralize/auracore/internal/pool"
	"github.com/rtauralize/auracore/internal/renderer"
	"github.com/rtauralize/auracore/internal/scene"
	"github.com/rtauralize/auracore/internal/structval"
)

// Room is the shoebox geometry and per-wall reflection coefficients
// the mirror-image synthesis operates over (spec.md §6's
// RoomLength/Width/Height and Beta{x1,x2,y1,y2,z1,z2} keys).
type Room struct {
	Length, Width, Height float64
	BetaX1, BetaX2        float64
	BetaY1, BetaY2        float64
	BetaZ1, BetaZ2        float64
	MaxOrder              int
}

// DefaultRoom is a small, lightly damped room; every beta defaults to
// 0.9 (10% absorption per reflection).
func DefaultRoom() Room {
	return Room{Length: 6, Width: 5, Height: 3, BetaX1: 0.9, BetaX2: 0.9, BetaY1: 0.9, BetaY2: 0.9, BetaZ1: 0.9, BetaZ2: 0.9, MaxOrder: 2}
}

// Config is the image-source renderer's construction-time shape.
type Config struct {
	SampleRate      float64
	BlockLen        int
	FIRTaps         int
	Realization     dsp.FilterBankRealization
	MaxPartitions   int
	MaxDelaySamples int
	MotionConfig    motion.Config

	InitialPathQuota int
	PathGrowth       int

	Room Room
}

// Renderer is the prototype image-source renderer variant.
type Renderer struct {
	*renderer.Base

	room Room
}

// New builds an image-source renderer.
func New(cfg Config) *Renderer {
	filterPool := pool.New[*dsp.Filter](cfg.InitialPathQuota*2, cfg.PathGrowth*2, func() *dsp.Filter { return &dsp.Filter{} })
	pathCfg := path.Config{
		SampleRate:      cfg.SampleRate,
		BlockLen:        cfg.BlockLen,
		FIRTaps:         cfg.FIRTaps,
		Realization:     cfg.Realization,
		MaxPartitions:   cfg.MaxPartitions,
		MaxDelaySamples: cfg.MaxDelaySamples,
		FilterPool:      filterPool,
	}
	base := renderer.NewBase(path.NewFactory(pathCfg), cfg.InitialPathQuota, cfg.PathGrowth, cfg.MotionConfig, cfg.SampleRate, cfg.BlockLen)
	room := cfg.Room
	if room.Length <= 0 || room.Width <= 0 || room.Height <= 0 {
		room = DefaultRoom()
	}
	return &Renderer{Base: base, room: room}
}

func (r *Renderer) UpdateGlobalAuralizationMode(mode auramode.Mode)     { r.Base.UpdateGlobalAuralizationMode(mode) }
func (r *Renderer) Reset()                                              { r.Base.Reset() }
func (r *Renderer) OutputDatasource() audioio.Source                    { return r.Base.OutputDatasource() }
func (r *Renderer) GetParameters(q *structval.Struct) *structval.Struct { return r.Base.GetParameters(q) }

func (r *Renderer) Process(info audioio.Info) (outL, outR []float64) {
	return r.Base.ProcessPaths(info)
}

// UpdateScene diffs the scene as usual, then resynthesizes and pushes
// a fresh mirror-image impulse response into every now-live path
// (spec.md §4.8: this prototype has no per-block geometric
// computation — the IR is the only thing that changes when the scene
// does).
func (r *Renderer) UpdateScene(newScene *scene.SceneState) {
	r.Base.UpdateScene(newScene)
	for _, sourceID := range newScene.Sources().IDs() {
		src, ok := newScene.Sources().Get(sourceID)
		if !ok || src.MotionState() == nil {
			continue
		}
		for _, receiverID := range newScene.Receivers().IDs() {
			recv, ok := newScene.Receivers().Get(receiverID)
			if !ok || recv.MotionState() == nil {
				continue
			}
			p, found := r.Base.LivePath(sourceID, receiverID)
			if !found {
				continue
			}
			ir := synthesizeShoeboxIR(r.room, r.Base.OutputDatasource().Info().SampleRate,
				src.MotionState().Position(), recv.MotionState().Position())
			p.SetManualImpulseResponse(true)
			p.LoadImpulseResponse(0, ir)
			p.LoadImpulseResponse(1, ir)
		}
	}
}

// SetParameters lets the room geometry be altered at runtime via the
// same RoomLength/Width/Height/MaxOrder/Beta{...} keys spec.md §6
// documents for the artificial-reverb variant's RT60 estimation.
func (r *Renderer) SetParameters(kv *structval.Struct) *aerr.Error {
	if l, err := kv.GetDoubleOr("RoomLength", r.room.Length); err != nil {
		return err
	} else {
		r.room.Length = l
	}
	if w, err := kv.GetDoubleOr("RoomWidth", r.room.Width); err != nil {
		return err
	} else {
		r.room.Width = w
	}
	if h, err := kv.GetDoubleOr("RoomHeight", r.room.Height); err != nil {
		return err
	} else {
		r.room.Height = h
	}
	if n, err := kv.GetIntOr("MaxOrder", int64(r.room.MaxOrder)); err != nil {
		return err
	} else {
		r.room.MaxOrder = int(n)
	}
	betas := map[string]*float64{
		"Betax1": &r.room.BetaX1, "Betax2": &r.room.BetaX2,
		"Betay1": &r.room.BetaY1, "Betay2": &r.room.BetaY2,
		"Betaz1": &r.room.BetaZ1, "Betaz2": &r.room.BetaZ2,
	}
	for key, field := range betas {
		v, err := kv.GetDoubleOr(key, *field)
		if err != nil {
			return err
		}
		*field = v
	}
	return r.Base.SetParameters(kv)
}

var _ renderer.Contract = (*Renderer)(nil)

// synthesizeShoeboxIR implements the classical image-source method
// (Allen & Berkley 1979): for every mirror image of the source whose
// total reflection order |l|+|m|+|n| is at most room.MaxOrder, place a
// weighted dirac at the
// image's propagation delay, amplitude attenuated by the product of
// the reflected walls' coefficients and 1/distance spreading.
func synthesizeShoeboxIR(room Room, sampleRate float64, sourcePos, receiverPos r3Vector) []float64 {
	const speedOfSound = 343.0
	maxDelaySeconds := 2 * (room.Length + room.Width + room.Height) / speedOfSound * float64(room.MaxOrder+1)
	irLen := int(maxDelaySeconds*sampleRate) + 1
	if irLen < 8 {
		irLen = 8
	}
	if irLen > 1<<16 {
		irLen = 1 << 16
	}
	ir := make([]float64, irLen)

	beta1 := [3]float64{room.BetaX1, room.BetaY1, room.BetaZ1}
	beta2 := [3]float64{room.BetaX2, room.BetaY2, room.BetaZ2}
	dims := [3]float64{room.Length, room.Width, room.Height}
	src := [3]float64{sourcePos.X, sourcePos.Y, sourcePos.Z}
	recv := [3]float64{receiverPos.X, receiverPos.Y, receiverPos.Z}

	// Classical image-source construction (Allen & Berkley 1979): for
	// every integer triple (l,m,n) within MaxOrder and every corner
	// sign triple (p,q,r) in {0,1}^3, the image source sits at
	// ((1-2p)xs + 2lLx, (1-2q)ys + 2mLy, (1-2r)zs + 2nLz) with
	// amplitude the product of each axis's two wall reflection
	// coefficients raised to how many times the path crosses each.
	for l := -room.MaxOrder; l <= room.MaxOrder; l++ {
		for m := -room.MaxOrder; m <= room.MaxOrder; m++ {
			for n := -room.MaxOrder; n <= room.MaxOrder; n++ {
				if absInt(l)+absInt(m)+absInt(n) > room.MaxOrder {
					continue
				}
				idx := [3]int{l, m, n}
				for corner := 0; corner < 8; corner++ {
					sign := [3]int{corner & 1, (corner >> 1) & 1, (corner >> 2) & 1}
					var imgPos [3]float64
					amp := 1.0
					for axis := 0; axis < 3; axis++ {
						p := sign[axis]
						k := idx[axis]
						imgPos[axis] = (1-2*float64(p))*src[axis] + 2*float64(k)*dims[axis]
						amp *= math.Pow(beta1[axis], float64(absInt(k-p)))
						amp *= math.Pow(beta2[axis], float64(absInt(k)))
					}
					dx := imgPos[0] - recv[0]
					dy := imgPos[1] - recv[1]
					dz := imgPos[2] - recv[2]
					dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
					if dist < 1e-6 {
						dist = 1e-6
					}
					delaySamples := int(dist / speedOfSound * sampleRate)
					if delaySamples >= irLen {
						continue
					}
					ir[delaySamples] += amp / dist
				}
			}
		}
	}
	return ir
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// r3Vector avoids importing golang/geo's r3.Vector in this file's
// signature so synthesizeShoeboxIR's unit tests can construct plain
// coordinates; scene.MotionState.Position() already returns r3.Vector,
// which has the same X/Y/Z fields.
type r3Vector = struct{ X, Y, Z float64 }
