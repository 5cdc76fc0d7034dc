// ════════════════════════════════════════════════════════════════════════════════════════════════
// Coroutine Prefetch Inference Harness - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Coroutine Prefetch Inference Harness
// Component: Command line and process lifecycle
//
// Description:
//   Builds Settings from defaults, an optional YAML file, COROINFER_* environment
//   variables and flags (in rising precedence), then hands them to the harness.
//
// Commands:
//   - run:    ingest, time and report the configured pipeline models
//   - export: write simulated weights and one sample batch to SQLite
//   - tree:   print the index statistics for the configured entity count
//
// Exit codes:
//   1 invalid configuration, 2 faulty input, 3 any other failure
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"coroinfer/config"
	"coroinfer/constants"
	"coroinfer/control"
	"coroinfer/debug"
	"coroinfer/harness"
	"coroinfer/report"
	"coroinfer/sensoridx"
	"coroinfer/simulate"
	"coroinfer/sqlstore"
	"coroinfer/utils"
)

var rootCmd = &cobra.Command{
	Use:   "coroinfer",
	Short: "Multi-sensor SVM inference benchmark",
	Long: `coroinfer runs a fixed-point linear SVM over every sample of every sensor and
compares a plain sequential pipeline against coroutine tasks that prefetch their
weights and samples one stage ahead.

Each repeat ingests one batch of samples, then times the configured pattern:
  seq   the sequential pipeline only
  coro  the coroutine pipeline only
  both  sequential, coroutine, sequential, reporting seq/coro ratios`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	rootCmd.AddCommand(runCmd(), exportCmd(), treeCmd())

	err := rootCmd.Execute()
	control.ShutdownWG.Wait()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrConfigurationInvalid):
		return 1
	case errors.Is(err, harness.ErrFaultyInput):
		return 2
	}
	return 3
}

func initConfig() {
	viper.SetEnvPrefix("COROINFER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// FLAGS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func addPersistentFlags() {
	d := config.Default()
	f := rootCmd.PersistentFlags()
	f.String("config", "", "YAML settings file applied before flags")
	f.IntP("verbosity", "v", d.Verbosity, "verbosity level (0 is quiet)")
	f.IntP("sensors", "s", d.SensorCount, "number of sensors")
	f.IntP("samples", "c", d.SampleCount, "samples per sensor")
	f.IntP("datagram", "d", d.DatagramSize, "datagram size in bytes")
	f.IntP("tasks", "t", d.TaskCount, "coroutine task count (1-16)")

	f.BoolP("sim-weights", "i", d.SimulateWeights, "simulate weights")
	f.StringP("weights-file", "w", d.WeightsFile, "SQLite file holding weights")
	f.Uint32P("weights-div", "g", d.WeightsBounds.Granularity, "divider for simulated weights")
	f.Float32P("weights-min", "m", d.WeightsBounds.Min, "minimum simulated weight")
	f.Float32P("weights-max", "n", d.WeightsBounds.Max, "maximum simulated weight")

	f.Bool("sim-amplitudes", d.SimulateAmplitudes, "simulate sample amplitudes")
	f.StringP("source", "u", d.DataSource, "SQLite file holding a sample batch")
	f.Uint32P("ampl-div", "j", d.AmplitudeBounds.Granularity, "divider for simulated amplitudes")
	f.Float32P("ampl-min", "q", d.AmplitudeBounds.Min, "minimum simulated amplitude")
	f.Float32P("ampl-max", "x", d.AmplitudeBounds.Max, "maximum simulated amplitude")

	f.Int("node-mult", d.NodeMult, "B+tree slot count multiplier")
	f.Int("node-div", d.NodeDiv, "B+tree slot count divider")
	f.Int64("index-seed", d.IndexSeed, "seed of simulated sensor ids")

	for _, name := range []string{
		"config", "verbosity", "sensors", "samples", "datagram", "tasks",
		"sim-weights", "weights-file", "weights-div", "weights-min", "weights-max",
		"sim-amplitudes", "source", "ampl-div", "ampl-min", "ampl-max",
		"node-mult", "node-div", "index-seed",
	} {
		_ = viper.BindPFlag(name, f.Lookup(name))
	}
}

func runFlags(cmd *cobra.Command) {
	d := config.Default()
	f := cmd.Flags()
	f.BoolP("skip-header", "k", d.SkipHeader, "skip report header line")
	f.StringP("report-file", "y", d.ReportFile, "report file, - for stdout")
	f.StringP("perf-file", "f", d.PerfFile, "perf counter report file, - for stdout")
	f.IntP("repeats", "a", d.Repeats, "times the data set is repeated")
	f.IntP("delay", "b", d.DelayMs, "initial delay (ms)")
	f.IntP("between", "e", d.BetweenMs, "wait between operations (ms)")
	f.String("pattern", d.ExecPattern, "execution pattern: seq, coro or both")
	f.String("prefetch", d.Prefetch, "coroutine prefetch: active or inert")
	f.String("feed", d.Feed, "input feed: direct or ring")
	f.Int("pin-cpu", d.PinCPU, "CPU of the ring feed producer, -1 unpinned")
	f.String("gpio-file", d.GPIOFile, "file receiving timing marker edges")
	f.String("results-json", d.ResultsJSON, "file receiving the final results as JSON")
	f.Bool("clear-cache", d.ClearCache, "evict data caches before each seq/coro/seq repeat")

	for _, name := range []string{
		"skip-header", "report-file", "perf-file", "repeats", "delay", "between",
		"pattern", "prefetch", "feed", "pin-cpu", "gpio-file", "results-json", "clear-cache",
	} {
		_ = viper.BindPFlag(name, f.Lookup(name))
	}
}

// settings layers the YAML file, environment and flags over the defaults.
// Only keys explicitly set in the environment or on the command line
// override the file.
func settings() (config.Settings, error) {
	s := config.Default()
	if path := viper.GetString("config"); path != "" {
		var err error
		if s, err = config.Load(path); err != nil {
			return s, err
		}
	}

	setInt(&s.Verbosity, "verbosity")
	setInt(&s.SensorCount, "sensors")
	setInt(&s.SampleCount, "samples")
	setInt(&s.DatagramSize, "datagram")
	setInt(&s.TaskCount, "tasks")

	setBool(&s.SimulateWeights, "sim-weights")
	setString(&s.WeightsFile, "weights-file")
	setBounds(&s.WeightsBounds, "weights")

	setBool(&s.SimulateAmplitudes, "sim-amplitudes")
	setString(&s.DataSource, "source")
	setBounds(&s.AmplitudeBounds, "ampl")

	setInt(&s.NodeMult, "node-mult")
	setInt(&s.NodeDiv, "node-div")
	if viper.IsSet("index-seed") {
		s.IndexSeed = viper.GetInt64("index-seed")
	}

	setBool(&s.SkipHeader, "skip-header")
	setString(&s.ReportFile, "report-file")
	setString(&s.PerfFile, "perf-file")
	setInt(&s.Repeats, "repeats")
	setInt(&s.DelayMs, "delay")
	setInt(&s.BetweenMs, "between")
	setString(&s.ExecPattern, "pattern")
	setString(&s.Prefetch, "prefetch")
	setString(&s.Feed, "feed")
	setInt(&s.PinCPU, "pin-cpu")
	setString(&s.GPIOFile, "gpio-file")
	setString(&s.ResultsJSON, "results-json")
	setBool(&s.ClearCache, "clear-cache")

	return s, s.Validate()
}

func setInt(dst *int, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

func setBool(dst *bool, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetBool(key)
	}
}

func setString(dst *string, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetString(key)
	}
}

func setBounds(dst *simulate.Bounds, prefix string) {
	if viper.IsSet(prefix + "-min") {
		dst.Min = float32(viper.GetFloat64(prefix + "-min"))
	}
	if viper.IsSet(prefix + "-max") {
		dst.Max = float32(viper.GetFloat64(prefix + "-max"))
	}
	if viper.IsSet(prefix + "-div") {
		dst.Granularity = viper.GetUint32(prefix + "-div")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings()
			if err != nil {
				return err
			}
			setupSignalHandling()

			h, err := harness.New(s)
			if err != nil {
				return err
			}
			defer func() {
				if err := h.Close(); err != nil {
					debug.DropError("CLOSE", err)
				}
			}()
			if err := h.Initialise(); err != nil {
				return err
			}
			return h.Run()
		},
	}
	runFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write simulated weights and one sample batch to SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings()
			if err != nil {
				return err
			}
			if out == "" {
				return fmt.Errorf("%w: --out is required", config.ErrConfigurationInvalid)
			}
			ids, err := simulate.IDs(s.SensorCount, s.IndexSeed)
			if err != nil {
				return err
			}
			weights, err := simulate.Weights(len(ids), s.WeightWidth(), s.WeightsBounds, constants.WeightsSeed)
			if err != nil {
				return err
			}
			in, err := simulate.NewInput(ids, s.SampleCount, s.RecordWidth(), s.AmplitudeBounds, constants.AmplitudeSeed)
			if err != nil {
				return err
			}
			batch := simulate.Collect(in)

			db, err := sqlstore.Open(out)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.SaveWeights(ids, weights, s.WeightWidth()); err != nil {
				return err
			}
			if err := db.SaveSamples(batch); err != nil {
				return err
			}
			debug.DropMessage("EXPORT", utils.Itoa(len(ids))+" entities, "+utils.Itoa(len(batch))+" samples → "+out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "SQLite file to write")
	return cmd
}

func treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings()
			if err != nil {
				return err
			}
			ids, err := simulate.IDs(s.SensorCount, s.IndexSeed)
			if err != nil {
				return err
			}
			tree, err := sensoridx.Build(sensoridx.ScaledTraits(s.NodeMult, s.NodeDiv), ids)
			if err != nil {
				return err
			}
			report.TreeTable(cmd.OutOrStdout(), tree.Stats(), constants.BinSearchThreshold)
			return nil
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SYSTEM LIFECYCLE MANAGEMENT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// setupSignalHandling stops the run at the next repeat boundary on the first
// signal and exits on the second.
func setupSignalHandling() {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		debug.DropMessage("SIGNAL", "stopping after the current repeat")
		control.Shutdown()

		<-sigChan
		debug.DropMessage("SIGNAL", "forced exit")
		os.Exit(3)
	}()
}
