// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: report.go — Timing and perf report lines
//
// Purpose:
//   - One CSV line per repeat: a single model time, or the seq/coro/seq triple
//     with its two ratios.
//   - One CSV line per timed model for hardware counter readings.
//   - A closing summary line with the mean ratios over all repeats.
//
// Notes:
//   - Written only between timed regions; buffered and flushed per line so a
//     run killed mid-way still leaves complete lines on disk.
// ─────────────────────────────────────────────────────────────────────────────

package report

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"coroinfer/probe"
	"coroinfer/utils"
)

// Shape is the run geometry that prefixes every report line.
type Shape struct {
	Sensors  int
	Samples  int
	Datagram int
	Tasks    int
}

// Model identifies a pipeline; its value doubles as the marker pin.
type Model int

const (
	ModelSequential Model = 0
	ModelCoroutine  Model = 1
)

var modelNames = [...]string{"sequential", "coroutine"}

func (m Model) String() string {
	if m >= 0 && int(m) < len(modelNames) {
		return modelNames[m]
	}
	return "model" + utils.Itoa(int(m))
}

// Writer emits CSV report lines.
type Writer struct {
	csv    *csv.Writer
	closer io.Closer
}

// NewWriter wraps w. Close does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// Create opens path for a report. "" and "-" mean stdout. With appendTo the
// file is appended to, otherwise truncated.
func Create(path string, appendTo bool) (*Writer, error) {
	if path == "" || path == "-" {
		return NewWriter(os.Stdout), nil
	}
	flags := os.O_CREATE | os.O_WRONLY
	if appendTo {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

func (w *Writer) line(fields ...string) error {
	if err := w.csv.Write(fields); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes and closes the underlying file, if owned.
func (w *Writer) Close() error {
	w.csv.Flush()
	err := w.csv.Error()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// ───────────────────────────── timing ─────────────────────────────────────

// Header writes the column names for the chosen pattern.
func (w *Writer) Header(both bool) error {
	if both {
		return w.line("sensors", "samples", "datagram", "seq0", "coro", "seq1", "ratio0", "ratio1")
	}
	return w.line("sensors", "samples", "datagram", "model", "time")
}

// One writes a single-model line; ns is the model's wall time.
func (w *Writer) One(s Shape, m Model, ns int64) error {
	return w.line(utils.Itoa(s.Sensors), utils.Itoa(s.Samples), utils.Itoa(s.Datagram),
		m.String(), strconv.FormatInt(ns, 10))
}

// Three writes the seq/coro/seq line with ratios seq0/coro and seq1/coro.
func (w *Writer) Three(s Shape, spans [3]int64, ratios [2]float64) error {
	return w.line(utils.Itoa(s.Sensors), utils.Itoa(s.Samples), utils.Itoa(s.Datagram),
		strconv.FormatInt(spans[0], 10), strconv.FormatInt(spans[1], 10), strconv.FormatInt(spans[2], 10),
		ftoa(ratios[0]), ftoa(ratios[1]))
}

// Summary writes the closing key,value line with the mean ratios.
func (w *Writer) Summary(s Shape, ratios [2]float64) error {
	return w.line(
		"sensors", utils.Itoa(s.Sensors),
		"samples", utils.Itoa(s.Samples),
		"datagram", utils.Itoa(s.Datagram),
		"tasks", utils.Itoa(s.Tasks),
		"ratio0", ftoa(ratios[0]),
		"ratio1", ftoa(ratios[1]),
	)
}

// Ratios returns seq0/coro and seq1/coro. A zero coroutine span yields zeros.
func Ratios(spans [3]int64) [2]float64 {
	if spans[1] == 0 {
		return [2]float64{}
	}
	c := float64(spans[1])
	return [2]float64{float64(spans[0]) / c, float64(spans[2]) / c}
}

// ───────────────────────────── perf ───────────────────────────────────────

// PerfHeader writes the counter column names.
func (w *Writer) PerfHeader() error {
	return w.line(append([]string{"repeat", "step", "model"}, probe.Names()...)...)
}

// PerfLine writes one counter reading for a timed step.
func (w *Writer) PerfLine(repeat, step int, m Model, s probe.Sample) error {
	fields := make([]string, 0, 3+probe.NumCounters)
	fields = append(fields, utils.Itoa(repeat), utils.Itoa(step), utils.Itoa(int(m)))
	for _, v := range s {
		fields = append(fields, utils.Utoa(v))
	}
	return w.line(fields...)
}
