//go:build linux

// perf_linux.go
//
// perf_event_open(2) backend. One counter fd per slot, user space only,
// measuring the calling thread on any CPU. Callers must hold LockOSThread
// from OpenCounters until Close, and may Pin for stable numbers.

package probe

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

type perfCounters struct {
	fds [NumCounters]int
}

func cacheConfig(result uint64) uint64 {
	return unix.PERF_COUNT_HW_CACHE_L1D |
		unix.PERF_COUNT_HW_CACHE_OP_READ<<8 |
		result<<16
}

// OpenCounters opens the four hardware counters for the calling thread.
func OpenCounters() (Counters, error) {
	events := [NumCounters]struct {
		typ    uint32
		config uint64
	}{
		CPUCycles:    {unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CPU_CYCLES},
		Instructions: {unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_INSTRUCTIONS},
		DCacheReads:  {unix.PERF_TYPE_HW_CACHE, cacheConfig(unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS)},
		DCacheMisses: {unix.PERF_TYPE_HW_CACHE, cacheConfig(unix.PERF_COUNT_HW_CACHE_RESULT_MISS)},
	}

	pc := &perfCounters{}
	for i := range pc.fds {
		pc.fds[i] = -1
	}
	for i, ev := range events {
		attr := unix.PerfEventAttr{
			Type:   ev.typ,
			Config: ev.config,
			Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
			Bits:   unix.PerfBitDisabled | unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv,
		}
		fd, err := unix.PerfEventOpen(&attr, 0, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrUnsupported, counterNames[i], err)
		}
		pc.fds[i] = fd
	}
	return pc, nil
}

// Start zeroes and enables every counter.
func (pc *perfCounters) Start() error {
	for _, fd := range pc.fds {
		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_RESET, 0); err != nil {
			return err
		}
	}
	for _, fd := range pc.fds {
		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
			return err
		}
	}
	return nil
}

// Stop disables the counters and reads them.
func (pc *perfCounters) Stop() (Sample, error) {
	var s Sample
	for _, fd := range pc.fds {
		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_DISABLE, 0); err != nil {
			return s, err
		}
	}
	var buf [8]byte
	for i, fd := range pc.fds {
		n, err := unix.Read(fd, buf[:])
		if err != nil {
			return s, err
		}
		if n != len(buf) {
			return s, fmt.Errorf("probe: short counter read (%d bytes)", n)
		}
		s[i] = binary.NativeEndian.Uint64(buf[:])
	}
	return s, nil
}

// Close releases every open fd.
func (pc *perfCounters) Close() error {
	var first error
	for i, fd := range pc.fds {
		if fd < 0 {
			continue
		}
		if err := unix.Close(fd); err != nil && first == nil {
			first = err
		}
		pc.fds[i] = -1
	}
	return first
}
