// internal/modcall/modcall_test.go
package modcall

import (
	"testing"

	"github.com/vertgenlab/gonomics/dna"
)

func mustCaller(t *testing.T, threshold float64, perCode map[string]float64) *Caller {
	t.Helper()
	c, err := NewCaller(threshold, perCode)
	if err != nil {
		t.Fatalf("NewCaller: %v", err)
	}
	return c
}

func TestNewCallerValidates(t *testing.T) {
	if _, err := NewCaller(1.5, nil); err == nil {
		t.Fatalf("expected error for threshold > 1")
	}
	if _, err := NewCaller(0.8, map[string]float64{"m": -0.1}); err == nil {
		t.Fatalf("expected error for negative per-code threshold")
	}
}

func TestCallCanonical(t *testing.T) {
	c := mustCaller(t, 0.8, nil)
	got := c.Call(dna.C, map[string]float64{"m": 0.05})
	if got.Kind != Canonical {
		t.Errorf("got %v, want canonical", got)
	}
}

func TestCallModified(t *testing.T) {
	c := mustCaller(t, 0.8, nil)
	got := c.Call(dna.C, map[string]float64{"m": 0.95})
	if got.Kind != Modified || got.Code != "m" {
		t.Errorf("got %v, want modified(m)", got)
	}
}

func TestCallFilteredBelowThreshold(t *testing.T) {
	c := mustCaller(t, 0.8, nil)
	// canonical wins the argmax but misses the pass threshold
	if got := c.Call(dna.C, map[string]float64{"m": 0.4}); got.Kind != Filtered {
		t.Errorf("got %v, want filtered", got)
	}
	// modified wins the argmax but misses the pass threshold
	if got := c.Call(dna.C, map[string]float64{"m": 0.6}); got.Kind != Filtered {
		t.Errorf("got %v, want filtered", got)
	}
}

func TestCallPerCodeOverride(t *testing.T) {
	c := mustCaller(t, 0.8, map[string]float64{"h": 0.55})
	if got := c.Call(dna.C, map[string]float64{"h": 0.6}); got.Kind != Modified || got.Code != "h" {
		t.Errorf("got %v, want modified(h) under the lowered threshold", got)
	}
	if got := c.Call(dna.C, map[string]float64{"m": 0.6}); got.Kind != Filtered {
		t.Errorf("got %v, want filtered at the default threshold", got)
	}
}

func TestCallArgmaxAcrossCodes(t *testing.T) {
	c := mustCaller(t, 0.5, nil)
	got := c.Call(dna.C, map[string]float64{"h": 0.3, "m": 0.65})
	if got.Kind != Modified || got.Code != "m" {
		t.Errorf("got %v, want modified(m)", got)
	}
}

func TestCallTiePrefersSmallestCode(t *testing.T) {
	c := mustCaller(t, 0.3, nil)
	got := c.Call(dna.C, map[string]float64{"m": 0.45, "h": 0.45})
	if got.Kind != Modified || got.Code != "h" {
		t.Errorf("got %v, want modified(h) on a tie", got)
	}
}

func TestCallNoProbs(t *testing.T) {
	// an empty vector is an explicit canonical call
	c := mustCaller(t, 0.8, nil)
	if got := c.Call(dna.C, map[string]float64{}); got.Kind != Canonical {
		t.Errorf("got %v, want canonical", got)
	}
}

func TestParseThresholdSpec(t *testing.T) {
	code, v, err := ParseThresholdSpec("m:0.75")
	if err != nil || code != "m" || v != 0.75 {
		t.Fatalf("got %q %v %v, want m 0.75 nil", code, v, err)
	}
	// numeric ChEBI codes contain no colon, so the last one splits
	code, v, err = ParseThresholdSpec("21839:0.9")
	if err != nil || code != "21839" || v != 0.9 {
		t.Fatalf("got %q %v %v, want 21839 0.9 nil", code, v, err)
	}
	for _, in := range []string{"m", ":0.5", "m:", "m:x"} {
		if _, _, err := ParseThresholdSpec(in); err == nil {
			t.Errorf("ParseThresholdSpec(%q): expected error", in)
		}
	}
}
