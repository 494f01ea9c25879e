// Package affinity computes and applies per-worker CPU core assignments.
//
// Each worker thread is restricted to a small window of cores before doing
// any CPU-bound work, so encoder processes spawned by different workers do
// not fight over the same cores.
package affinity

// Plan returns the set of core indices worker workerID out of workers should
// be restricted to, given totalCores cores on the host.
//
// Cores are assigned in a round-robin fashion. Some cores may be shared if
// the worker count does not divide the core count.
//
// Examples:
// 8 workers, 8 cores
// [1][2][3][4][5][6][7][8]
// 8 workers, 16 cores
// [1][1][2][2][3][3][4][4][5][5][6][6][7][7][8][8]
// 12 workers, 16 cores
// [1+9][1+9][2+10][2+10][3+11][3+11][4+12][4+12][5][5][6][6][7][7][8][8]
// 16 workers, 8 cores
// [1+9][2+10][3+11][4+12][5+13][6+14][7+15][8+16]
//
// Raw window indices wrap modulo the worker count. See PlanWrapCores for the
// variant that wraps modulo the core count instead.
func Plan(totalCores, workers, workerID int) []int {
	return plan(totalCores, workers, workerID, workers)
}

// PlanWrapCores is Plan with the wraparound taken modulo totalCores rather
// than the worker count, so oversubscribed workers never map to core indices
// beyond the host's actual cores. Selected by the affinity_wrap_cores config
// option; Plan remains the default.
func PlanWrapCores(totalCores, workers, workerID int) []int {
	return plan(totalCores, workers, workerID, totalCores)
}

func plan(totalCores, workers, workerID, modulus int) []int {
	if totalCores <= 0 || workers <= 0 || modulus <= 0 {
		return nil
	}

	coresPerWorker := (totalCores + workers - 1) / workers
	start := workerID * coresPerWorker
	end := start + coresPerWorker

	seen := make(map[int]bool, coresPerWorker)
	cores := make([]int, 0, coresPerWorker)
	for i := start; i < end; i++ {
		core := i % modulus
		if seen[core] {
			continue
		}
		seen[core] = true
		cores = append(cores, core)
	}
	return cores
}
