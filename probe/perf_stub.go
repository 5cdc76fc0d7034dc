//go:build !linux

package probe

// OpenCounters is unavailable off Linux.
func OpenCounters() (Counters, error) {
	return nil, ErrUnsupported
}
