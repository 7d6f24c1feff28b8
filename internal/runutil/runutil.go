// internal/runutil/runutil.go
package runutil

import "runtime"

// EffectiveThreads maps the --threads flag to a worker count:
// 0 means all CPUs.
func EffectiveThreads(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}
