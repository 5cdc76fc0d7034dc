// ════════════════════════════════════════════════════════════════════════════════════════════════
// BENCHMARK HARNESS
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Coroutine Prefetch Inference Harness
// Component: Run orchestration
//
// Description:
//   Builds the run from Settings and drives the repeat loop. Every repeat first
//   ingests one full batch into the Runtime Data Store, then times the
//   configured pipeline models over it.
//
// Phases:
//   - Initialise: ids, index, weights, store, source, reports, probes, runner
//   - Settle: GC and return freed memory before anything is timed
//   - Repeat: ingest, optional cache eviction, timed models, report lines
//   - Summary: mean ratios over every completed seq/coro/seq repeat
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package harness

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	rtdebug "runtime/debug"
	"time"

	"gopkg.in/yaml.v3"

	"coroinfer/config"
	"coroinfer/constants"
	"coroinfer/control"
	"coroinfer/debug"
	"coroinfer/feed"
	"coroinfer/fixed"
	"coroinfer/ingest"
	"coroinfer/pipeline"
	"coroinfer/probe"
	"coroinfer/report"
	"coroinfer/sensoridx"
	"coroinfer/simulate"
	"coroinfer/sqlstore"
	"coroinfer/store"
	"coroinfer/utils"
)

var (
	// ErrFaultyInput wraps any record the store rejected during ingestion.
	ErrFaultyInput = errors.New("harness: faulty input received")

	// ErrResultsDiverged is returned when the models of one repeat disagree.
	ErrResultsDiverged = errors.New("harness: pipeline results diverged")
)

// Option adjusts a Harness before Initialise.
type Option func(*Harness)

// WithOutput sends console output (summary, dumps, stdout reports) to w.
func WithOutput(w io.Writer) Option {
	return func(h *Harness) { h.out = w }
}

// WithSource replaces the configured input source.
func WithSource(src ingest.Source) Option {
	return func(h *Harness) { h.src = src }
}

// WithMarker replaces the configured timing marker.
func WithMarker(m probe.Marker) Option {
	return func(h *Harness) { h.marker = m }
}

// WithCounters replaces the configured performance counters.
func WithCounters(c probe.Counters) Option {
	return func(h *Harness) { h.counters = c }
}

// perf_event counters follow the thread that opened them, so the goroutine
// that Initialises, Runs and Closes stays on one OS thread throughout.
var (
	lockThread   = runtime.LockOSThread
	unlockThread = runtime.UnlockOSThread
)

// Harness owns every resource of one run.
type Harness struct {
	cfg   config.Settings
	shape report.Shape
	out   io.Writer

	ids    []sensoridx.EntityID
	tree   *sensoridx.Tree
	store  *store.Store
	src    ingest.Source
	pump   *feed.Pump
	runner pipeline.Scheduled

	report   *report.Writer
	console  *report.Writer
	perf     *report.Writer
	marker   probe.Marker
	counters probe.Counters

	locked      bool
	rec         ingest.Record
	spans       [3]int64
	ratioTotals [2]float64
	ratioCount  int
	evict       []uint16
}

// New validates cfg and returns an uninitialised harness.
func New(cfg config.Settings, opts ...Option) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Harness{
		cfg: cfg,
		out: os.Stdout,
		shape: report.Shape{
			Sensors:  cfg.SensorCount,
			Samples:  cfg.SampleCount,
			Datagram: cfg.DatagramSize,
			Tasks:    cfg.TaskCount,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// INITIALISATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Initialise builds every run resource and locks the calling goroutine to its
// OS thread until Close. On error the caller still owns the partially built
// harness and must Close it.
func (h *Harness) Initialise() error {
	cfg := &h.cfg
	if !h.locked {
		lockThread()
		h.locked = true
	}
	h.console = report.NewWriter(h.out)

	if cfg.Verbosity >= 2 {
		enc := yaml.NewEncoder(h.out)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		_ = enc.Close()
	}

	weights, err := h.loadModel()
	if err != nil {
		return err
	}

	h.tree, err = sensoridx.Build(sensoridx.ScaledTraits(cfg.NodeMult, cfg.NodeDiv), h.ids)
	if err != nil {
		return err
	}
	h.store, err = store.New(h.ids, h.tree, weights, cfg.SampleCount, cfg.CoefficientCount())
	if err != nil {
		return err
	}
	debug.DropMessage("LOADED", utils.Itoa(len(h.ids))+" entities, "+utils.Itoa(cfg.WeightWidth())+" weights per row")

	if cfg.Verbosity >= 2 {
		report.TreeTable(h.out, h.tree.Stats(), constants.BinSearchThreshold)
	}

	if err := h.openSource(); err != nil {
		return err
	}
	if err := h.openReports(); err != nil {
		return err
	}
	h.openProbes()

	h.runner, err = pipeline.NewScheduled(cfg.Prefetch, cfg.TaskCount)
	if err != nil {
		return err
	}

	// Settle the heap before the first timed region.
	runtime.GC()
	runtime.GC()
	rtdebug.FreeOSMemory()

	debug.DropMessage("READY", "harness initialised")
	return nil
}

// loadModel fills h.ids and returns the weight rows, simulated or stored.
func (h *Harness) loadModel() ([]fixed.Q, error) {
	cfg := &h.cfg
	if cfg.SimulateWeights {
		ids, err := simulate.IDs(cfg.SensorCount, cfg.IndexSeed)
		if err != nil {
			return nil, err
		}
		h.ids = ids
		return simulate.Weights(len(ids), cfg.WeightWidth(), cfg.WeightsBounds, constants.WeightsSeed)
	}

	db, err := sqlstore.Open(cfg.WeightsFile)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ids, err := db.LoadIDs()
	if err != nil {
		return nil, err
	}
	if len(ids) != cfg.SensorCount {
		return nil, fmt.Errorf("%w: %s holds %d entities, run has %d",
			config.ErrConfigurationInvalid, cfg.WeightsFile, len(ids), cfg.SensorCount)
	}
	h.ids = ids
	return db.LoadWeights(ids, cfg.WeightWidth())
}

func (h *Harness) openSource() error {
	cfg := &h.cfg
	if h.src == nil {
		if cfg.SimulateAmplitudes {
			in, err := simulate.NewInput(h.ids, cfg.SampleCount, cfg.RecordWidth(), cfg.AmplitudeBounds, constants.AmplitudeSeed)
			if err != nil {
				return err
			}
			h.src = in
		} else {
			db, err := sqlstore.Open(cfg.DataSource)
			if err != nil {
				return err
			}
			batch, err := db.LoadSamples(cfg.RecordWidth())
			_ = db.Close()
			if err != nil {
				return err
			}
			h.src = simulate.NewReplay(batch)
		}
	}
	if cfg.Feed == config.FeedRing {
		h.pump = feed.NewPump(h.src, constants.FeedRingSize, cfg.RecordWidth(), cfg.PinCPU)
		h.src = h.pump
	}
	return nil
}

func (h *Harness) openReports() error {
	cfg := &h.cfg
	if cfg.ReportFile == "" || cfg.ReportFile == "-" {
		h.report = h.console
	} else {
		w, err := report.Create(cfg.ReportFile, true)
		if err != nil {
			return err
		}
		h.report = w
	}
	if cfg.PerfFile != "" {
		if cfg.PerfFile == "-" {
			h.perf = h.console
		} else {
			w, err := report.Create(cfg.PerfFile, false)
			if err != nil {
				return err
			}
			h.perf = w
		}
	}
	return nil
}

// openProbes never fails: a probe that cannot open is replaced by its no-op.
func (h *Harness) openProbes() {
	cfg := &h.cfg
	if h.marker == nil {
		h.marker = probe.NopMarker{}
		if cfg.GPIOFile != "" {
			m, err := probe.OpenFileMarker(cfg.GPIOFile)
			if err != nil {
				debug.DropError("GPIO", err)
			} else {
				h.marker = m
			}
		}
	}
	h.marker.Set(int(report.ModelSequential), false)
	h.marker.Set(int(report.ModelCoroutine), false)

	if h.counters == nil {
		h.counters = probe.NopCounters{}
		if cfg.PerfFile != "" {
			c, err := probe.OpenCounters()
			if err != nil {
				debug.DropError("PERF", err)
			} else {
				h.counters = c
			}
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// REPEAT LOOP
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Run waits the initial delay, runs every repeat and writes the summary.
// A stop request ends the loop early without error.
func (h *Harness) Run() error {
	cfg := &h.cfg
	wait(cfg.DelayMs)

	if !cfg.SkipHeader && cfg.Verbosity > 0 {
		if err := h.report.Header(cfg.Both()); err != nil {
			return err
		}
	}
	if h.perf != nil {
		if err := h.perf.PerfHeader(); err != nil {
			return err
		}
	}

	for i := 0; i < cfg.Repeats; i++ {
		stop, err := h.RunRepeat(i)
		if err != nil {
			return err
		}
		if stop {
			debug.DropMessage("STOP", "stop requested after "+utils.Itoa(i)+" repeats")
			break
		}
	}

	if cfg.Verbosity > 0 {
		if err := h.console.Summary(h.shape, h.MeanRatios()); err != nil {
			return err
		}
	}
	if cfg.ResultsJSON != "" {
		return h.writeResults(cfg.ResultsJSON)
	}
	return nil
}

// RunRepeat ingests one batch and runs the configured pattern over it. It
// reports true when the source or the process asked to stop; no model runs
// in that case.
func (h *Harness) RunRepeat(i int) (bool, error) {
	if err := h.ingest(); err != nil {
		return false, err
	}
	if h.src.StopRequested() || control.Stopping() {
		return true, nil
	}
	if h.cfg.Both() {
		return false, h.runBoth(i)
	}
	return false, h.runOne(i)
}

func (h *Harness) ingest() error {
	h.src.Reset()
	h.store.ResetSequenceCounters()
	for h.src.Next(&h.rec) {
		if err := h.store.Ingest(&h.rec); err != nil {
			return fmt.Errorf("%w: %w", ErrFaultyInput, err)
		}
	}
	return nil
}

// runBoth times seq, coro, seq and checks the three agree.
func (h *Harness) runBoth(repeat int) error {
	if h.cfg.ClearCache {
		h.clearCache()
	}
	var digests [3][32]byte
	for step := 0; step < 3; step++ {
		wait(h.cfg.BetweenMs)
		m := report.ModelSequential
		if step == 1 {
			m = report.ModelCoroutine
		}
		span, err := h.timed(repeat, step, m)
		if err != nil {
			return err
		}
		h.spans[step] = span
		digests[step] = report.Digest(h.store.Results())
	}
	wait(h.cfg.BetweenMs)

	if digests[1] != digests[0] || digests[2] != digests[0] {
		return fmt.Errorf("%w: repeat %d", ErrResultsDiverged, repeat)
	}

	ratios := report.Ratios(h.spans)
	if h.cfg.Verbosity > 0 {
		if err := h.report.Three(h.shape, h.spans, ratios); err != nil {
			return err
		}
	}
	h.ratioTotals[0] += ratios[0]
	h.ratioTotals[1] += ratios[1]
	h.ratioCount++
	return nil
}

func (h *Harness) runOne(repeat int) error {
	m := report.ModelSequential
	if h.cfg.ExecPattern == config.PatternCoro {
		m = report.ModelCoroutine
	}
	span, err := h.timed(repeat, 0, m)
	if err != nil {
		return err
	}
	if h.cfg.Verbosity > 0 {
		return h.report.One(h.shape, m, span)
	}
	return nil
}

// timed runs one model between the marker edges and the counter reads.
func (h *Harness) timed(repeat, step int, m report.Model) (int64, error) {
	h.store.ClearResults()
	if err := h.counters.Start(); err != nil {
		debug.DropError("PERF", err)
	}
	h.marker.Set(int(m), true)
	started := time.Now()

	err := h.execute(m)

	span := time.Since(started).Nanoseconds()
	h.marker.Set(int(m), false)
	sample, perr := h.counters.Stop()
	if err != nil {
		return 0, err
	}
	if perr != nil {
		debug.DropError("PERF", perr)
	}

	if h.perf != nil {
		if err := h.perf.PerfLine(repeat, step, m, sample); err != nil {
			return 0, err
		}
	}
	if h.cfg.Verbosity > 1 {
		for e := 0; e < h.store.EntityCount(); e++ {
			if err := report.DumpResults(h.out, "results "+utils.Itoa(e), h.store.ResolveResults(e)); err != nil {
				return 0, err
			}
		}
	}
	return span, nil
}

func (h *Harness) execute(m report.Model) error {
	if m == report.ModelSequential {
		return pipeline.RunSequential(h.store)
	}
	_, err := h.runner.Run(h.store)
	return err
}

// clearCache rewrites a buffer larger than the last-level cache.
func (h *Harness) clearCache() {
	if h.evict == nil {
		h.evict = make([]uint16, constants.ClearCacheBytes/2)
	}
	for j := range h.evict {
		h.evict[j] = uint16(j)
	}
}

func wait(ms int) {
	if ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// RESULTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// MeanRatios averages seq0/coro and seq1/coro over the completed repeats.
func (h *Harness) MeanRatios() [2]float64 {
	if h.ratioCount == 0 {
		return [2]float64{}
	}
	n := float64(h.ratioCount)
	return [2]float64{h.ratioTotals[0] / n, h.ratioTotals[1] / n}
}

// Store exposes the Runtime Data Store of the run.
func (h *Harness) Store() *store.Store { return h.store }

// Tree exposes the built index.
func (h *Harness) Tree() *sensoridx.Tree { return h.tree }

func (h *Harness) writeResults(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.ResultsJSON(f, h.ids, h.store.Results(), h.cfg.SampleCount); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Close releases every resource Initialise opened and the thread lock. Safe
// on a partially initialised harness. Call it from the goroutine that ran
// Initialise.
func (h *Harness) Close() error {
	var errs []error
	if h.pump != nil {
		errs = append(errs, h.pump.Close())
	}
	if h.report != nil && h.report != h.console {
		errs = append(errs, h.report.Close())
	}
	if h.perf != nil && h.perf != h.console {
		errs = append(errs, h.perf.Close())
	}
	if h.console != nil {
		errs = append(errs, h.console.Close())
	}
	if h.marker != nil {
		errs = append(errs, h.marker.Close())
	}
	if h.counters != nil {
		errs = append(errs, h.counters.Close())
	}
	if h.locked {
		unlockThread()
		h.locked = false
	}
	return errors.Join(errs...)
}
