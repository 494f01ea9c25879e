//go:build linux

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Apply restricts the calling thread to the given cores.
//
// The caller must have pinned its goroutine with runtime.LockOSThread first;
// otherwise the mask could land on a thread the goroutine migrates away from.
func Apply(cores []int) error {
	var set unix.CPUSet
	for _, core := range cores {
		set.Set(core)
	}

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("failed to set CPU affinity to %v: %w", cores, err)
	}
	return nil
}
