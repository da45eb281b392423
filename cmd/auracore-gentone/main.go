// Command auracore-gentone generates a test signal (sine, linear
// sweep, or white noise) for feeding a sound source's input, adapted
// from the teacher's cmd/gen_tone: a small standalone signal generator
// writing straight to a WAV file rather than a live device, reusing
// go-audio/wav the same way internal/renderer/prototypefreefield and
// internal/renderer/hearingaid do for their own WAV capture.
package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/pflag"
)

func main() {
	kind := pflag.StringP("kind", "k", "sine", "Signal kind: sine, sweep, or noise.")
	freq := pflag.Float64P("freq", "f", 440, "Tone frequency in Hz (sweep: start frequency).")
	freqEnd := pflag.Float64("freq-end", 880, "Sweep end frequency in Hz (sweep only).")
	duration := pflag.Float64P("duration", "d", 1, "Signal duration in seconds.")
	sampleRate := pflag.Float64P("samplerate", "r", 44100, "Sample rate in Hz.")
	amplitude := pflag.Float64P("amplitude", "a", 0.5, "Peak amplitude, 0..1.")
	seed := pflag.Int64("seed", 1, "Noise RNG seed (noise only).")
	out := pflag.StringP("out", "o", "tone.wav", "Output WAV file path.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = usage
	pflag.Parse()

	if *help {
		usage()
		return
	}

	samples, err := generate(*kind, *freq, *freqEnd, *duration, *sampleRate, *amplitude, *seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "auracore-gentone: %v\n", err)
		usage()
		os.Exit(1)
	}

	if err := writeWAV(*out, samples, int(*sampleRate)); err != nil {
		fmt.Fprintf(os.Stderr, "auracore-gentone: %v\n", err)
		os.Exit(1)
	}
}

func generate(kind string, freq, freqEnd, duration, sampleRate, amplitude float64, seed int64) ([]int, error) {
	n := int(duration * sampleRate)
	samples := make([]int, n)

	switch kind {
	case "sine":
		for i := range samples {
			t := float64(i) / sampleRate
			samples[i] = floatToPCM16(amplitude * math.Sin(2*math.Pi*freq*t))
		}
	case "sweep":
		for i := range samples {
			t := float64(i) / sampleRate
			// Linear chirp: instantaneous frequency f(t) = freq + (freqEnd-freq)*t/duration,
			// phase is the integral of 2*pi*f(t) dt.
			phase := 2 * math.Pi * (freq*t + (freqEnd-freq)*t*t/(2*duration))
			samples[i] = floatToPCM16(amplitude * math.Sin(phase))
		}
	case "noise":
		rng := rand.New(rand.NewSource(seed))
		for i := range samples {
			samples[i] = floatToPCM16(amplitude * (2*rng.Float64() - 1))
		}
	default:
		return nil, fmt.Errorf("unknown signal kind %q (want sine, sweep, or noise)", kind)
	}
	return samples, nil
}

func writeWAV(path string, samples []int, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

func floatToPCM16(v float64) int {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int(v * 32767)
}

func usage() {
	fmt.Fprintf(os.Stderr, "auracore-gentone generates a test signal for a sound source's input.\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n  auracore-gentone [flags]\n\nFlags:\n")
	pflag.PrintDefaults()
}
