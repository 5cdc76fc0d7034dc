// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: config.go — Run settings, YAML loading and validation
//
// Purpose:
//   - One Settings record holds every run-time knob of the harness.
//   - Defaults, a YAML overlay and the CLI flags all fill the same record.
//   - Validate rejects any combination the harness cannot run.
//
// Notes:
//   - Derived geometry (coefficient count, weight row width) is computed
//     from DatagramSize and never stored.
// ─────────────────────────────────────────────────────────────────────────────

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"coroinfer/constants"
	"coroinfer/prefetch"
	"coroinfer/simulate"
)

// ErrConfigurationInvalid wraps every validation failure.
var ErrConfigurationInvalid = errors.New("config: invalid configuration")

// Execution patterns.
const (
	PatternSeq  = "seq"
	PatternCoro = "coro"
	PatternBoth = "both"
)

// Input feeds.
const (
	FeedDirect = "direct"
	FeedRing   = "ring"
)

// Settings is the full run configuration.
type Settings struct {
	Verbosity int `yaml:"verbosity" mapstructure:"verbosity"`

	SensorCount  int `yaml:"sensor_count" mapstructure:"sensor-count"`
	SampleCount  int `yaml:"sample_count" mapstructure:"sample-count"`
	DatagramSize int `yaml:"datagram_size" mapstructure:"datagram-size"`
	Repeats      int `yaml:"repeats" mapstructure:"repeats"`
	TaskCount    int `yaml:"task_count" mapstructure:"task-count"`

	SimulateWeights bool            `yaml:"simulate_weights" mapstructure:"simulate-weights"`
	WeightsFile     string          `yaml:"weights_file" mapstructure:"weights-file"`
	WeightsBounds   simulate.Bounds `yaml:"weights_bounds" mapstructure:"weights-bounds"`

	SimulateAmplitudes bool            `yaml:"simulate_amplitudes" mapstructure:"simulate-amplitudes"`
	DataSource         string          `yaml:"data_source" mapstructure:"data-source"`
	AmplitudeBounds    simulate.Bounds `yaml:"amplitude_bounds" mapstructure:"amplitude-bounds"`

	SkipHeader bool   `yaml:"skip_header" mapstructure:"skip-header"`
	ReportFile string `yaml:"report_file" mapstructure:"report-file"`
	PerfFile   string `yaml:"perf_file" mapstructure:"perf-file"`

	ExecPattern string `yaml:"exec_pattern" mapstructure:"exec-pattern"`
	DelayMs     int    `yaml:"delay_ms" mapstructure:"delay-ms"`
	BetweenMs   int    `yaml:"between_ms" mapstructure:"between-ms"`

	Prefetch string `yaml:"prefetch" mapstructure:"prefetch"`
	NodeMult int    `yaml:"node_mult" mapstructure:"node-mult"`
	NodeDiv  int    `yaml:"node_div" mapstructure:"node-div"`

	Feed        string `yaml:"feed" mapstructure:"feed"`
	PinCPU      int    `yaml:"pin_cpu" mapstructure:"pin-cpu"`
	GPIOFile    string `yaml:"gpio_file" mapstructure:"gpio-file"`
	ResultsJSON string `yaml:"results_json" mapstructure:"results-json"`

	IndexSeed  int64 `yaml:"index_seed" mapstructure:"index-seed"`
	ClearCache bool  `yaml:"clear_cache" mapstructure:"clear-cache"`
}

// Default returns the settings of a small fully simulated run.
func Default() Settings {
	unit := simulate.Bounds{Min: -1, Max: 1, Granularity: constants.DefaultGranularity}
	return Settings{
		Verbosity:          1,
		SensorCount:        1000,
		SampleCount:        8,
		DatagramSize:       64,
		Repeats:            1,
		TaskCount:          6,
		SimulateWeights:    true,
		WeightsBounds:      unit,
		SimulateAmplitudes: true,
		AmplitudeBounds:    unit,
		ExecPattern:        PatternBoth,
		BetweenMs:          100,
		Prefetch:           "active",
		NodeMult:           1,
		NodeDiv:            1,
		Feed:               FeedDirect,
		PinCPU:             -1,
		IndexSeed:          constants.IDSeed,
		ClearCache:         true,
	}
}

// CoefficientCount is L: the items after the header plus the two inline
// header items.
func (s *Settings) CoefficientCount() int {
	return (s.DatagramSize-constants.HeaderSize)/constants.ItemSize + constants.HeaderItems
}

// WeightWidth is one weight row: bias then L coefficients.
func (s *Settings) WeightWidth() int { return s.CoefficientCount() + 1 }

// RecordWidth is the payload length of one sample record.
func (s *Settings) RecordWidth() int { return s.CoefficientCount() }

// Both reports whether the seq/coro/seq pattern is selected.
func (s *Settings) Both() bool { return s.ExecPattern == PatternBoth }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfigurationInvalid}, args...)...)
}

// Validate checks every field the harness depends on.
func (s *Settings) Validate() error {
	switch {
	case s.SensorCount <= 0:
		return invalid("sensor count must be positive")
	case s.SampleCount <= 0:
		return invalid("sample count must be positive")
	case s.Repeats < 0:
		return invalid("repeats must not be negative")
	case s.TaskCount < 1 || s.TaskCount > constants.MaxTaskCount:
		return invalid("task count %d outside [1, %d]", s.TaskCount, constants.MaxTaskCount)
	case s.DatagramSize < constants.HeaderSize:
		return invalid("datagram size %d below header size %d", s.DatagramSize, constants.HeaderSize)
	case s.CoefficientCount() < constants.MinCoefficients:
		return invalid("coefficient count %d below %d", s.CoefficientCount(), constants.MinCoefficients)
	case !s.SimulateWeights && s.WeightsFile == "":
		return invalid("weights file required when weights are not simulated")
	case s.SimulateWeights && !s.WeightsBounds.Valid():
		return invalid("weights bounds %s", s.WeightsBounds)
	case !s.SimulateAmplitudes && s.DataSource == "":
		return invalid("data source required when amplitudes are not simulated")
	case s.SimulateAmplitudes && !s.AmplitudeBounds.Valid():
		return invalid("amplitude bounds %s", s.AmplitudeBounds)
	case s.NodeMult <= 0 || s.NodeDiv <= 0:
		return invalid("node factors %d/%d must be positive", s.NodeMult, s.NodeDiv)
	case s.DelayMs < 0 || s.BetweenMs < 0:
		return invalid("waits must not be negative")
	}
	switch s.ExecPattern {
	case PatternSeq, PatternCoro, PatternBoth:
	default:
		return invalid("unknown exec pattern %q", s.ExecPattern)
	}
	if _, ok := prefetch.Select(s.Prefetch); !ok {
		return invalid("unknown prefetch variant %q", s.Prefetch)
	}
	switch s.Feed {
	case FeedDirect, FeedRing:
	default:
		return invalid("unknown feed %q", s.Feed)
	}
	return nil
}

// Load overlays the YAML file at path on Default. Unknown keys are rejected.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := FromYAML(data, &s); err != nil {
		return s, err
	}
	return s, nil
}

// FromYAML decodes data over s. Keys absent from data keep their value.
func FromYAML(data []byte, s *Settings) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrConfigurationInvalid, err)
	}
	return nil
}
