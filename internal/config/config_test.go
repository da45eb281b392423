package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rtauralize/auracore/internal/dsp"
	"github.com/rtauralize/auracore/internal/engine"
	"github.com/rtauralize/auracore/internal/motion"
	"github.com/rtauralize/auracore/internal/renderer/freefield"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
sample_rate: 48000
block_len: 64
scene:
  sources:
    - position: {x: 1, y: 0, z: 0}
      power: 0.5
  receivers:
    - position: {x: 0, y: 0, z: 0}
renderers:
  - name: free
    variant: freefield
    parameters:
      AdditionalStaticDelaySeconds: 0.01
      DirectSound: true
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	return p
}

func TestLoad_ParsesScalarsAndDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 48000.0, cfg.SampleRate)
	require.Equal(t, 64, cfg.BlockLen)
	require.Len(t, cfg.Scene.Sources, 1)
	require.Len(t, cfg.Scene.Receivers, 1)
	require.Len(t, cfg.Renderers, 1)
}

func TestLoad_AppliesDefaultsWhenOmitted(t *testing.T) {
	path := writeTempConfig(t, "scene:\n  sources: []\n  receivers: []\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 44100.0, cfg.SampleRate)
	require.Equal(t, 512, cfg.BlockLen)
}

func TestRendererConfig_ToStructCoercesScalarKinds(t *testing.T) {
	rc := RendererConfig{Parameters: map[string]any{
		"DirectSound":                  true,
		"MotionModelNumHistoryKeys":    8,
		"AdditionalStaticDelaySeconds": 0.01,
		"SwitchingAlgorithm":           "crossfade",
	}}
	s := rc.ToStruct()
	b, aerrv := s.GetBool("DirectSound")
	require.Nil(t, aerrv)
	require.True(t, b)
	i, aerrv := s.GetInt("MotionModelNumHistoryKeys")
	require.Nil(t, aerrv)
	require.EqualValues(t, 8, i)
	d, aerrv := s.GetDouble("AdditionalStaticDelaySeconds")
	require.Nil(t, aerrv)
	require.InDelta(t, 0.01, d, 1e-12)
	str, aerrv := s.GetString("SwitchingAlgorithm")
	require.Nil(t, aerrv)
	require.Equal(t, "crossfade", str)
}

func TestConfig_ApplySceneCreatesSourceAndReceiver(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	eng := engine.New(engine.Config{SampleRate: cfg.SampleRate, BlockLen: cfg.BlockLen})
	r := freefield.New(freefield.Config{
		SampleRate:       cfg.SampleRate,
		BlockLen:         cfg.BlockLen,
		FIRTaps:          63,
		Realization:      dsp.RealizationIIRBiquadsOrder4,
		MaxPartitions:    4,
		MotionConfig:     motion.DefaultConfig(),
		InitialPathQuota: 4,
		PathGrowth:       4,
	})
	require.Nil(t, eng.AddRenderer("free", r))

	require.Nil(t, cfg.ApplyScene(eng))

	head := eng.SceneManager().Head()
	require.Equal(t, 1, head.Sources().Len())
	require.Equal(t, 1, head.Receivers().Len())
}
