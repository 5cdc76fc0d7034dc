// marker.go
//
// Timing markers bracket each timed pipeline model so an external logic
// analyser (or a post-processing script) can line up power traces with the
// run. On hosts without GPIO hardware the file marker writes one line per
// edge in the form  pin<TAB>level<TAB>unix-micros .

package probe

import (
	"bufio"
	"os"
	"sync"
	"time"

	"coroinfer/utils"
)

// Marker drives one logical output pin per execution model.
type Marker interface {
	Set(pin int, high bool)
	Close() error
}

// NopMarker discards every edge.
type NopMarker struct{}

func (NopMarker) Set(int, bool) {}
func (NopMarker) Close() error  { return nil }

// FileMarker appends edges to a file.
type FileMarker struct {
	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	now func() time.Time
}

// OpenFileMarker opens path for appending, creating it if needed.
func OpenFileMarker(path string) (*FileMarker, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileMarker{f: f, w: bufio.NewWriter(f), now: time.Now}, nil
}

// Set records one edge. Lines are flushed on Close.
func (m *FileMarker) Set(pin int, high bool) {
	level := "0"
	if high {
		level = "1"
	}
	ts := m.now().UnixMicro()
	m.mu.Lock()
	_, _ = m.w.WriteString(utils.Itoa(pin) + "\t" + level + "\t" + utils.Itoa(int(ts)) + "\n")
	m.mu.Unlock()
}

// Close flushes and closes the file.
func (m *FileMarker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.w.Flush(); err != nil {
		_ = m.f.Close()
		return err
	}
	return m.f.Close()
}
