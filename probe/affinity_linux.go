//go:build linux && !tinygo

// affinity_linux.go
//
// Linux binding for sched_setaffinity(2) that pins the calling OS thread to
// one logical CPU. The caller must hold runtime.LockOSThread for the pin to
// stay attached to its goroutine.
//
// On a containerised or cgroup-restricted host the call may fail with EPERM
// or EINVAL; the error is returned and callers treat it as "not pinned".

package probe

import "golang.org/x/sys/unix"

// Pin restricts the current thread to cpu. A negative cpu is a no-op.
func Pin(cpu int) error {
	if cpu < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set) // pid 0 → current thread
}

// Pinned reports the CPUs the current thread may run on.
func Pinned() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, err
	}
	var cpus []int
	for i := 0; i < len(set)*64; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
