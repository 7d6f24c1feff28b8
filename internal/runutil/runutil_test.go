// internal/runutil/runutil_test.go
package runutil

import (
	"runtime"
	"testing"
)

func TestEffectiveThreads(t *testing.T) {
	if got := EffectiveThreads(4); got != 4 {
		t.Errorf("EffectiveThreads(4) = %d", got)
	}
	if got := EffectiveThreads(0); got != runtime.NumCPU() {
		t.Errorf("EffectiveThreads(0) = %d, want NumCPU", got)
	}
}
