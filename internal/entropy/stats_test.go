// internal/entropy/stats_test.go
package entropy

import (
	"math"
	"testing"
)

func success(entropy float64, reads int) *StrandEntropy {
	return &StrandEntropy{Result: Result{Entropy: entropy, NumReads: reads}}
}

func failure() *StrandEntropy {
	return &StrandEntropy{Err: &CoverageError{Kind: InsufficientCoverage}}
}

func TestAggregateStats(t *testing.T) {
	wes := []WindowEntropy{
		{Fwd: success(0.2, 10)},
		{Fwd: success(0.4, 20)},
		{Fwd: success(0.9, 5)},
		{Fwd: failure()},
	}
	re := Aggregate(1, 100, 200, "r1", wes)
	if re.ChromID != 1 || re.Start != 100 || re.End != 200 || re.Name != "r1" {
		t.Errorf("region identity = %+v", re)
	}
	if re.Fwd == nil || re.Fwd.Err != nil {
		t.Fatalf("forward side must carry stats, got %+v", re.Fwd)
	}
	st := re.Fwd.Stats
	if math.Abs(st.MeanEntropy-0.5) > 1e-12 {
		t.Errorf("mean entropy = %v, want 0.5", st.MeanEntropy)
	}
	if st.MedianEntropy < st.MinEntropy || st.MedianEntropy > st.MaxEntropy {
		t.Errorf("median entropy %v outside [%v, %v]", st.MedianEntropy, st.MinEntropy, st.MaxEntropy)
	}
	if st.MinEntropy != 0.2 || st.MaxEntropy != 0.9 {
		t.Errorf("entropy extrema = %v %v", st.MinEntropy, st.MaxEntropy)
	}
	if st.MinNumReads != 5 || st.MaxNumReads != 20 {
		t.Errorf("read extrema = %v %v", st.MinNumReads, st.MaxNumReads)
	}
	if math.Abs(st.MeanNumReads-35.0/3) > 1e-12 {
		t.Errorf("mean reads = %v, want 35/3", st.MeanNumReads)
	}
	if st.SuccessfulCount != 3 || st.FailedCount != 1 {
		t.Errorf("counts = %d/%d, want 3/1", st.SuccessfulCount, st.FailedCount)
	}
	if len(re.Windows) != len(wes) {
		t.Errorf("constituent windows not carried through")
	}
}

func TestAggregateOmitsUnpopulatedSide(t *testing.T) {
	wes := []WindowEntropy{{Fwd: success(0.1, 4)}}
	re := Aggregate(0, 0, 50, "r", wes)
	if re.Rev != nil {
		t.Errorf("side with no outcomes must be omitted, got %+v", re.Rev)
	}
}

func TestAggregateFailedOnlySide(t *testing.T) {
	wes := []WindowEntropy{
		{Fwd: success(0.1, 4), Rev: failure()},
		{Rev: failure()},
	}
	re := Aggregate(0, 0, 50, "r", wes)
	if re.Rev == nil {
		t.Fatalf("side with failures must still be reported")
	}
	if re.Rev.Err == nil {
		t.Fatalf("side with zero successes must carry an aggregate error")
	}
	cov, ok := re.Rev.Err.(*CoverageError)
	if !ok || cov.Kind != ZeroCoverage {
		t.Errorf("aggregate error = %v, want zero-coverage", re.Rev.Err)
	}
}

func TestAggregateMedianUniformValues(t *testing.T) {
	wes := []WindowEntropy{
		{Fwd: success(0.3, 1)},
		{Fwd: success(0.3, 1)},
		{Fwd: success(0.3, 1)},
	}
	re := Aggregate(0, 0, 10, "r", wes)
	if got := re.Fwd.Stats.MedianEntropy; math.Abs(got-0.3) > 1e-12 {
		t.Errorf("median of identical values = %v, want 0.3", got)
	}
}
