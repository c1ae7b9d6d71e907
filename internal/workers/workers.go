// Package workers sizes worker pools for background processing tasks,
// respecting container CPU limits via GOMAXPROCS.
package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the optimal number of workers for a given task type,
// scaling the available CPU count by multiplier (1.0 for CPU-bound
// tasks). The limit parameter caps the worker count to prevent resource
// exhaustion; use 0 for no limit. The EXTRACT_WORKERS environment
// variable overrides the computed count.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("EXTRACT_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)
	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
