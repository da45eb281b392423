package directivity

// Identity is the fallback handle spec.md §7 describes: "a missing
// directivity handle falls back to an identity filter bank and
// identity FIR." Every direction returns unity magnitudes and a
// single-sample unit impulse per channel, so a path wired to Identity
// passes audio through unmodified.
type Identity struct {
	Channels   int
	SampleRate float64
}

func NewIdentity(channels int, sampleRate float64) *Identity {
	if channels <= 0 {
		channels = 2
	}
	return &Identity{Channels: channels, SampleRate: sampleRate}
}

func (*Identity) IsSpaceDiscrete() bool { return false }
func (*Identity) FilterLength() int     { return 1 }

func (*Identity) GetNearestNeighbour(_, _ float64) int { return 0 }

func (*Identity) GetMagnitudes(_ int) [ThirdOctaveBands]float64 {
	var mags [ThirdOctaveBands]float64
	for i := range mags {
		mags[i] = 1.0
	}
	return mags
}

func (id *Identity) unitImpulse() HRIRFrame {
	chans := make([][]float32, id.Channels)
	for i := range chans {
		chans[i] = []float32{1.0}
	}
	return HRIRFrame{SampleRate: id.SampleRate, Channels: chans}
}

func (id *Identity) GetHRIRByIndex(_ int, _ float64) HRIRFrame {
	return id.unitImpulse()
}

func (id *Identity) GetHRIR(_, _, _ float64) HRIRFrame {
	return id.unitImpulse()
}
