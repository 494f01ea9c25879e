//go:build !linux

package affinity

// Apply is a no-op on platforms without sched_setaffinity. Workers still run;
// core placement is left to the OS scheduler.
func Apply(cores []int) error {
	return nil
}
