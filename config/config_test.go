package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ░░ defaults ░░

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	require.Equal(t, 22, s.CoefficientCount())
	require.Equal(t, 23, s.WeightWidth())
	require.Equal(t, 22, s.RecordWidth())
	require.True(t, s.Both())
}

func TestDerivedGeometry(t *testing.T) {
	for _, tc := range []struct{ datagram, coeffs int }{
		{24, 2}, {26, 3}, {64, 22}, {1024, 502},
	} {
		s := Default()
		s.DatagramSize = tc.datagram
		require.Equal(t, tc.coeffs, s.CoefficientCount(), "datagram %d", tc.datagram)
		require.NoError(t, s.Validate())
	}
}

// ░░ validation ░░

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Settings){
		"no sensors":       func(s *Settings) { s.SensorCount = 0 },
		"no samples":       func(s *Settings) { s.SampleCount = 0 },
		"zero tasks":       func(s *Settings) { s.TaskCount = 0 },
		"too many tasks":   func(s *Settings) { s.TaskCount = 17 },
		"short datagram":   func(s *Settings) { s.DatagramSize = 23 },
		"weights file":     func(s *Settings) { s.SimulateWeights = false },
		"weight bounds":    func(s *Settings) { s.WeightsBounds.Granularity = 0 },
		"data source":      func(s *Settings) { s.SimulateAmplitudes = false },
		"amplitude bounds": func(s *Settings) { s.AmplitudeBounds.Min = 2 },
		"pattern":          func(s *Settings) { s.ExecPattern = "all" },
		"prefetch":         func(s *Settings) { s.Prefetch = "eager" },
		"feed":             func(s *Settings) { s.Feed = "udp" },
		"node mult":        func(s *Settings) { s.NodeMult = 0 },
		"node div":         func(s *Settings) { s.NodeDiv = 0 },
		"negative between": func(s *Settings) { s.BetweenMs = -1 },
		"negative repeats": func(s *Settings) { s.Repeats = -1 },
	}
	for name, mutate := range cases {
		s := Default()
		mutate(&s)
		err := s.Validate()
		require.Error(t, err, name)
		require.True(t, errors.Is(err, ErrConfigurationInvalid), name)
	}
}

func TestValidateAcceptsFiles(t *testing.T) {
	s := Default()
	s.SimulateWeights = false
	s.WeightsFile = "w.db"
	s.SimulateAmplitudes = false
	s.DataSource = "w.db"
	s.WeightsBounds.Granularity = 0
	require.NoError(t, s.Validate())
}

// ░░ yaml ░░

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sensor_count: 250
task_count: 4
exec_pattern: coro
weights_bounds:
  min: -0.5
  max: 0.5
  granularity: 64
`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 250, s.SensorCount)
	require.Equal(t, 4, s.TaskCount)
	require.Equal(t, PatternCoro, s.ExecPattern)
	require.Equal(t, float32(-0.5), s.WeightsBounds.Min)
	require.Equal(t, uint32(64), s.WeightsBounds.Granularity)
	require.Equal(t, Default().SampleCount, s.SampleCount)
	require.NoError(t, s.Validate())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sensors: 3\n"), 0o644))
	_, err := Load(path)
	require.ErrorIs(t, err, ErrConfigurationInvalid)
}

func TestFromYAMLEmpty(t *testing.T) {
	s := Default()
	require.NoError(t, FromYAML(nil, &s))
	require.Equal(t, Default(), s)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
