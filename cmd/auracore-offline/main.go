// Command auracore-offline loads a YAML scene/engine config, a WAV
// file per sound source, runs the full renderer graph in offline mode
// (spec.md §5: "the control thread runs process() synchronously"),
// and writes the mixed stereo output to a WAV file. Adapted from the
// teacher's cmd/gen_tone: a small standalone tool reusing the shared
// library package to write straight to a file rather than binding to
// a live audio device.
package main

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rtauralize/auracore/internal/audioio"
	"github.com/rtauralize/auracore/internal/config"
	"github.com/rtauralize/auracore/internal/driver"
	"github.com/rtauralize/auracore/internal/dsp"
	"github.com/rtauralize/auracore/internal/engine"
	"github.com/rtauralize/auracore/internal/motion"
	"github.com/rtauralize/auracore/internal/renderer"
	"github.com/rtauralize/auracore/internal/renderer/ambisonics"
	"github.com/rtauralize/auracore/internal/renderer/atn"
	"github.com/rtauralize/auracore/internal/renderer/freefield"
	"github.com/rtauralize/auracore/internal/renderer/genericpath"
	"github.com/rtauralize/auracore/internal/renderer/hearingaid"
	"github.com/rtauralize/auracore/internal/renderer/imagesource"
	"github.com/rtauralize/auracore/internal/renderer/prototypefreefield"
	"github.com/rtauralize/auracore/internal/renderer/reverb"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "Scene/engine YAML config file (required).")
	sourceWAVs := pflag.StringArray("source-wav", nil, "sourceIndex=path.wav, repeatable; binds one source's input.")
	durationOverride := pflag.Float64P("duration", "d", 0, "Render duration in seconds; 0 uses the longest source WAV.")
	out := pflag.StringP("out", "o", "render.wav", "Output WAV file path.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = usage
	pflag.Parse()

	if *help || *configPath == "" {
		usage()
		if *configPath == "" {
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *sourceWAVs, *durationOverride, *out); err != nil {
		fmt.Fprintf(os.Stderr, "auracore-offline: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, sourceWAVBindings []string, durationOverride float64, outPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Config{SampleRate: cfg.SampleRate, BlockLen: cfg.BlockLen})

	for _, rc := range cfg.Renderers {
		r, err := buildRenderer(rc.Variant, cfg.SampleRate, cfg.BlockLen)
		if err != nil {
			return err
		}
		if aerrv := eng.AddRenderer(rc.Name, r); aerrv != nil {
			return aerrv
		}
		if params := rc.ToStruct(); params.Len() > 0 {
			if aerrv := r.SetParameters(params); aerrv != nil {
				return aerrv
			}
		}
	}

	if aerrv := cfg.ApplyScene(eng); aerrv != nil {
		return aerrv
	}

	maxFrames := 0
	for _, binding := range sourceWAVBindings {
		sourceID, path, err := parseSourceBinding(binding)
		if err != nil {
			return err
		}
		frames, err := bindSourceWAV(eng, sourceID, path, cfg.SampleRate, cfg.BlockLen)
		if err != nil {
			return err
		}
		if frames > maxFrames {
			maxFrames = frames
		}
	}

	duration := durationOverride
	if duration <= 0 {
		duration = float64(maxFrames) / cfg.SampleRate
	}
	if duration <= 0 {
		duration = 1
	}
	numBlocks := int(duration*cfg.SampleRate)/cfg.BlockLen + 1

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, int(cfg.SampleRate), 16, 2, 1)

	info := audioio.Info{SampleRate: cfg.SampleRate, BlockLen: cfg.BlockLen, Channels: 2}
	off := driver.NewOffline(eng, info, numBlocks, func(outL, outR []float64) {
		data := make([]int, len(outL)*2)
		for i := range outL {
			data[i*2] = floatToPCM16(outL[i])
			data[i*2+1] = floatToPCM16(outR[i])
		}
		_ = enc.Write(&audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: int(cfg.SampleRate)},
			Data:           data,
			SourceBitDepth: 16,
		})
	})
	if err := off.Run(nil); err != nil {
		return err
	}
	return enc.Close()
}

// buildRenderer constructs the named variant with the shared DSP
// defaults; variant-specific tuning (room acoustics, atmosphere,
// ambisonic order, ...) flows in afterward through SetParameters.
func buildRenderer(variant string, sampleRate float64, blockLen int) (renderer.Contract, error) {
	motionCfg := motion.DefaultConfig()
	const (
		firTaps          = 63
		maxPartitions    = 4
		initialPathQuota = 8
		pathGrowth       = 8
	)
	realization := dsp.RealizationIIRBiquadsOrder4

	switch variant {
	case "freefield", "":
		return freefield.New(freefield.Config{
			SampleRate: sampleRate, BlockLen: blockLen, FIRTaps: firTaps, Realization: realization,
			MaxPartitions: maxPartitions, MotionConfig: motionCfg,
			InitialPathQuota: initialPathQuota, PathGrowth: pathGrowth,
		}), nil
	case "prototypefreefield":
		return prototypefreefield.New(prototypefreefield.Config{
			SampleRate: sampleRate, BlockLen: blockLen, FIRTaps: firTaps, Realization: realization,
			MaxPartitions: maxPartitions, MotionConfig: motionCfg,
			InitialPathQuota: initialPathQuota, PathGrowth: pathGrowth,
		}), nil
	case "genericpath":
		return genericpath.New(genericpath.Config{
			SampleRate: sampleRate, BlockLen: blockLen, FIRTaps: firTaps, Realization: realization,
			MaxPartitions: maxPartitions, MotionConfig: motionCfg,
			InitialPathQuota: initialPathQuota, PathGrowth: pathGrowth,
		}), nil
	case "imagesource":
		return imagesource.New(imagesource.Config{
			SampleRate: sampleRate, BlockLen: blockLen, FIRTaps: firTaps, Realization: realization,
			MaxPartitions: maxPartitions, MotionConfig: motionCfg,
			InitialPathQuota: initialPathQuota, PathGrowth: pathGrowth,
			Room: imagesource.DefaultRoom(),
		}), nil
	case "reverb":
		return reverb.New(reverb.Config{
			SampleRate: sampleRate, BlockLen: blockLen, FIRTaps: firTaps, Realization: realization,
			MaxPartitions: maxPartitions, MotionConfig: motionCfg,
			InitialPathQuota: initialPathQuota, PathGrowth: pathGrowth,
			Room: reverb.DefaultRoomAcoustics(),
		}), nil
	case "atn":
		return atn.New(atn.Config{
			SampleRate: sampleRate, BlockLen: blockLen, FIRTaps: firTaps, Realization: realization,
			MaxPartitions: maxPartitions, MotionConfig: motionCfg,
			InitialPathQuota: initialPathQuota, PathGrowth: pathGrowth,
			Atmosphere: atn.DefaultAtmosphere(),
		}), nil
	case "ambisonics":
		return ambisonics.New(ambisonics.Config{
			SampleRate: sampleRate, BlockLen: blockLen, FIRTaps: firTaps, Realization: realization,
			MaxPartitions: maxPartitions, MotionConfig: motionCfg,
			InitialPathQuota: initialPathQuota, PathGrowth: pathGrowth,
			Order: 1,
		}), nil
	case "hearingaid":
		return hearingaid.New(hearingaid.Config{
			SampleRate: sampleRate, BlockLen: blockLen, FIRTaps: firTaps, Realization: realization,
			MaxPartitions: maxPartitions, MotionConfig: motionCfg,
			InitialPathQuota: initialPathQuota, PathGrowth: pathGrowth,
		}), nil
	default:
		return nil, fmt.Errorf("unknown renderer variant %q", variant)
	}
}

func parseSourceBinding(binding string) (sourceID int64, path string, err error) {
	eq := -1
	for i, c := range binding {
		if c == '=' {
			eq = i
			break
		}
	}
	if eq < 0 {
		return 0, "", fmt.Errorf("malformed --source-wav binding %q, want sourceIndex=path.wav", binding)
	}
	if _, err := fmt.Sscanf(binding[:eq], "%d", &sourceID); err != nil {
		return 0, "", fmt.Errorf("malformed --source-wav binding %q: %w", binding, err)
	}
	return sourceID, binding[eq+1:], nil
}

// bindSourceWAV decodes path and registers its samples as sourceID's
// input on every renderer that accepts one, returning the frame count.
func bindSourceWAV(eng *engine.Engine, sourceID int64, path string, sampleRate float64, blockLen int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return 0, fmt.Errorf("invalid wav buffer: %s", path)
	}
	numCh := buf.Format.NumChannels
	frames := len(buf.Data) / numCh
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		mono[i] = float64(buf.Data[i*numCh]) / 32768
	}

	ring := audioio.NewRingBuffer(audioio.Info{SampleRate: sampleRate, BlockLen: blockLen, Channels: 1}, frames)
	ring.Write([][]float64{mono})

	for _, name := range eng.RendererNames() {
		r, _ := eng.Renderer(name)
		if reg, ok := r.(renderer.SourceInputRegistrar); ok {
			reg.RegisterSourceInput(sourceID, ring)
		}
	}
	return frames, nil
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
	fmt.Fprintf(os.Stderr, "auracore-offline renders a scene config offline to a WAV file.\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n  auracore-offline --config scene.yaml [flags]\n\nFlags:\n")
	pflag.PrintDefaults()
}
