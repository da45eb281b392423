// Package config loads the engine's YAML scene/engine configuration
// file (SPEC_FULL.md §A.2, grounded on the teacher's deviceid.go use
// of gopkg.in/yaml.v3 for tocalls.yaml), the compatibility layer
// spec.md §9 describes sitting on top of the tagged struct-value
// representation used everywhere else: "INI preserved as
// compatibility layer, tagged struct value internally". Renderer
// parameter sections decode through ToStruct into the same
// *structval.Struct renderer.Contract.SetParameters consumes at
// runtime, so a config file and a live setParameters call exercise
// identical validation. No hot-path string-to-number coercion: Load
// and ToStruct only ever run on the control thread, at startup.
package config

import (
	"fmt"
	"os"

	"github.com/golang/geo/r3"
	"github.com/rtauralize/auracore/internal/aerr"
	"github.com/rtauralize/auracore/internal/engine"
	"github.com/rtauralize/auracore/internal/scene"
	"github.com/rtauralize/auracore/internal/structval"
	"gopkg.in/yaml.v3"
)

// Vector3 is the YAML representation of an r3.Vector.
type Vector3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// ToR3 converts to the r3.Vector representation motion.Model and
// scene.MotionState use throughout.
func (v Vector3) ToR3() r3.Vector { return r3.Vector{X: v.X, Y: v.Y, Z: v.Z} }

func (v Vector3) isZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// EntityConfig is the YAML shape of one sound source or receiver.
type EntityConfig struct {
	Position Vector3 `yaml:"position"`
	View     Vector3 `yaml:"view"`
	Up       Vector3 `yaml:"up"`
	Power    float64 `yaml:"power"`
	Muted    bool    `yaml:"muted"`
}

// SceneConfig lists the sources and receivers to populate the initial
// published scene state with.
type SceneConfig struct {
	Sources   []EntityConfig `yaml:"sources"`
	Receivers []EntityConfig `yaml:"receivers"`
}

// RendererConfig names one renderer instance to construct and the
// parameter struct to push into it via setParameters once built.
// Variant is the renderer subpackage to build (e.g. "freefield",
// "reverb", "ambisonics"); Parameters is an open map decoded by
// ToStruct into a *structval.Struct.
type RendererConfig struct {
	Name       string         `yaml:"name"`
	Variant    string         `yaml:"variant"`
	Parameters map[string]any `yaml:"parameters"`
}

// Config is the top-level YAML document shape.
type Config struct {
	SampleRate float64          `yaml:"sample_rate"`
	BlockLen   int              `yaml:"block_len"`
	Scene      SceneConfig      `yaml:"scene"`
	Renderers  []RendererConfig `yaml:"renderers"`
}

// Load reads and parses a YAML config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.BlockLen <= 0 {
		cfg.BlockLen = 512
	}
	return &cfg, nil
}

// ToStruct converts a renderer's YAML parameter map into a
// *structval.Struct, coercing the handful of scalar types yaml.v3
// decodes untyped YAML into (bool, int, int64, float64, string) into
// the matching structval.Value kind. Nested maps/sequences are
// skipped: every recognized renderer.SetParameters key across spec.md
// §6 is a flat scalar (or a struct.Bands-style "band_N" key set,
// itself flat).
func (r RendererConfig) ToStruct() *structval.Struct {
	s := structval.New()
	for k, v := range r.Parameters {
		switch val := v.(type) {
		case bool:
			s.Set(k, structval.BoolValue(val))
		case int:
			s.Set(k, structval.IntValue(int64(val)))
		case int64:
			s.Set(k, structval.IntValue(val))
		case float64:
			s.Set(k, structval.DoubleValue(val))
		case string:
			s.Set(k, structval.StringValue(val))
		}
	}
	return s
}

var (
	defaultView = r3.Vector{X: 0, Y: 0, Z: -1}
	defaultUp   = r3.Vector{X: 0, Y: 1, Z: 0}
)

func (e EntityConfig) pose() (position, view, up r3.Vector) {
	position = e.Position.ToR3()
	view = defaultView
	if !e.View.isZero() {
		view = e.View.ToR3()
	}
	up = defaultUp
	if !e.Up.isZero() {
		up = e.Up.ToR3()
	}
	return position, view, up
}

// ApplyScene populates eng's scene with every configured source and
// receiver, in one scene-manager mutation (so renderers observe them
// as a single diff rather than one add per entity).
func (c *Config) ApplyScene(eng *engine.Engine) *aerr.Error {
	return eng.Mutate(0, func(mgr *scene.Manager, derived *scene.SceneState) *aerr.Error {
		for _, sc := range c.Scene.Sources {
			src, err := mgr.AddSoundSource(derived)
			if err != nil {
				return err
			}
			ms := mgr.NewMotionState()
			position, view, up := sc.pose()
			if err := ms.SetPose(position, view, up); err != nil {
				return err
			}
			if err := src.SetMotionState(ms); err != nil {
				return err
			}
			if sc.Power > 0 {
				if err := src.SetPower(sc.Power); err != nil {
					return err
				}
			}
			if sc.Muted {
				if err := src.SetMuted(true); err != nil {
					return err
				}
			}
		}
		for _, rc := range c.Scene.Receivers {
			recv, err := mgr.AddReceiver(derived)
			if err != nil {
				return err
			}
			ms := mgr.NewMotionState()
			position, view, up := rc.pose()
			if err := ms.SetPose(position, view, up); err != nil {
				return err
			}
			if err := recv.SetMotionState(ms); err != nil {
				return err
			}
			if rc.Power > 0 {
				if err := recv.SetPower(rc.Power); err != nil {
					return err
				}
			}
			if rc.Muted {
				if err := recv.SetMuted(true); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
