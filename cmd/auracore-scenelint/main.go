// Command auracore-scenelint loads a scene/engine YAML config, builds
// the scene and renderer graph it describes, and prints a sanity
// report: entity counts, negative-power and muted-but-powered entity
// warnings, duplicate renderer names, and each renderer's
// internal/renderer.Base.Dump output
// (SPEC_FULL.md §C: the debug-dump surface is "used by
// cmd/auracore-scenelint"). It makes no changes to the config file;
// adapted from the teacher's cmd/samoyed-ll2utm: a small offline-only
// tool sharing library code with the live server rather than
// duplicating scene-construction logic.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rtauralize/auracore/internal/config"
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

// dumper is satisfied by every renderer.Contract whose concrete type
// embeds *renderer.Base directly (all but atn.Renderer, which wraps
// two Base instances rather than embedding one).
type dumper interface {
	Dump(w io.Writer)
}

func main() {
	configPath := pflag.StringP("config", "c", "", "Scene/engine YAML config file (required).")
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

	if err := run(*configPath, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "auracore-scenelint: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "config: %s\n", configPath)
	fmt.Fprintf(w, "sample rate: %g Hz, block length: %d\n", cfg.SampleRate, cfg.BlockLen)
	fmt.Fprintf(w, "scene: %d source(s), %d receiver(s)\n", len(cfg.Scene.Sources), len(cfg.Scene.Receivers))

	lintEntities("source", cfg.Scene.Sources, w)
	lintEntities("receiver", cfg.Scene.Receivers, w)

	names := make(map[string]int)
	for _, rc := range cfg.Renderers {
		names[rc.Name]++
	}
	for name, count := range names {
		if count > 1 {
			fmt.Fprintf(w, "WARNING: renderer name %q declared %d times, only the last wins\n", name, count)
		}
	}
	if len(cfg.Renderers) == 0 {
		fmt.Fprintln(w, "WARNING: no renderers configured, scene will render silence")
	}

	eng := engine.New(engine.Config{SampleRate: cfg.SampleRate, BlockLen: cfg.BlockLen})
	for _, rc := range cfg.Renderers {
		r, err := buildRenderer(rc.Variant, cfg.SampleRate, cfg.BlockLen)
		if err != nil {
			fmt.Fprintf(w, "WARNING: renderer %q: %v\n", rc.Name, err)
			continue
		}
		if aerrv := eng.AddRenderer(rc.Name, r); aerrv != nil {
			fmt.Fprintf(w, "WARNING: renderer %q: %v\n", rc.Name, aerrv)
			continue
		}
		if params := rc.ToStruct(); params.Len() > 0 {
			if aerrv := r.SetParameters(params); aerrv != nil {
				fmt.Fprintf(w, "WARNING: renderer %q parameters: %v\n", rc.Name, aerrv)
			}
		}
	}

	if aerrv := cfg.ApplyScene(eng); aerrv != nil {
		return aerrv
	}

	head := eng.SceneManager().Head()
	fmt.Fprintf(w, "published scene: %d source(s), %d receiver(s)\n", head.Sources().Len(), head.Receivers().Len())

	for _, name := range eng.RendererNames() {
		r, _ := eng.Renderer(name)
		fmt.Fprintf(w, "--- renderer %q ---\n", name)
		if d, ok := r.(dumper); ok {
			d.Dump(w)
		} else {
			fmt.Fprintln(w, "(no introspection dump available for this variant)")
		}
	}

	return nil
}

func lintEntities(kind string, entities []config.EntityConfig, w io.Writer) {
	for i, e := range entities {
		if e.Power < 0 {
			fmt.Fprintf(w, "WARNING: %s[%d] has negative power %g\n", kind, i, e.Power)
		}
		if e.Muted && e.Power > 0 {
			fmt.Fprintf(w, "NOTE: %s[%d] is muted despite a configured power of %g\n", kind, i, e.Power)
		}
	}
}

// buildRenderer mirrors auracore-offline's factory: every variant's own
// New fills in sensible defaults for a zero-valued variant-specific
// config field, so scenelint only needs the shared DSP parameters to
// construct something worth introspecting.
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

func usage() {
	fmt.Fprintf(os.Stderr, "auracore-scenelint validates a scene config and prints a sanity report.\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n  auracore-scenelint --config scene.yaml\n\nFlags:\n")
	pflag.PrintDefaults()
}
