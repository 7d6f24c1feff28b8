// internal/entropy/stats.go
//
// RegionAggregator: folds the window-level entropy outcomes of one named
// region into descriptive statistics per strand side.
package entropy

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DescriptiveStats summarizes the successful windows of one region side.
type DescriptiveStats struct {
	MeanEntropy   float64
	MedianEntropy float64
	MinEntropy    float64
	MaxEntropy    float64

	MeanNumReads float64
	MinNumReads  int
	MaxNumReads  int

	SuccessfulCount int
	FailedCount     int
}

// StrandStats is one region side's aggregate: either stats or a
// *CoverageError when the side had no successful window.
type StrandStats struct {
	Stats *DescriptiveStats
	Err   error
}

// RegionEntropy is one named region's aggregate plus its constituent
// window outcomes for the long-format output. Rev is nil when the (-) side
// was never populated (combine-strands mode).
type RegionEntropy struct {
	ChromID int
	Start   int
	End     int
	Name    string
	Fwd     *StrandStats
	Rev     *StrandStats
	Windows []WindowEntropy
}

// Aggregate rolls a region's window outcomes into per-side statistics. The
// covering interval [start, end) is that of the whole region's window set.
func Aggregate(chromID, start, end int, name string, wes []WindowEntropy) RegionEntropy {
	var fwdEntropies, revEntropies []float64
	var fwdReads, revReads []int
	fwdFails, revFails := 0, 0

	for _, we := range wes {
		if we.Fwd != nil {
			if we.Fwd.Err != nil {
				fwdFails++
			} else {
				fwdEntropies = append(fwdEntropies, we.Fwd.Result.Entropy)
				fwdReads = append(fwdReads, we.Fwd.Result.NumReads)
			}
		}
		if we.Rev != nil {
			if we.Rev.Err != nil {
				revFails++
			} else {
				revEntropies = append(revEntropies, we.Rev.Result.Entropy)
				revReads = append(revReads, we.Rev.Result.NumReads)
			}
		}
	}

	out := RegionEntropy{
		ChromID: chromID,
		Start:   start,
		End:     end,
		Name:    name,
		Windows: wes,
		Fwd:     describe(fwdEntropies, fwdReads, fwdFails, chromID, start, end),
	}
	// A side with no successes and no failures was never populated and is
	// omitted entirely from the region result.
	if len(revEntropies) > 0 || revFails > 0 {
		out.Rev = describe(revEntropies, revReads, revFails, chromID, start, end)
	}
	return out
}

// describe computes the statistics for one side, or a zero-coverage-style
// aggregate failure when no window on the side succeeded.
func describe(entropies []float64, numReads []int, fails, chromID, start, end int) *StrandStats {
	if len(entropies) == 0 {
		return &StrandStats{Err: &CoverageError{Kind: ZeroCoverage, ChromID: chromID, Start: start, End: end}}
	}
	sorted := append([]float64(nil), entropies...)
	sort.Float64s(sorted)

	reads := make([]float64, len(numReads))
	minReads, maxReads := numReads[0], numReads[0]
	for i, n := range numReads {
		reads[i] = float64(n)
		if n < minReads {
			minReads = n
		}
		if n > maxReads {
			maxReads = n
		}
	}

	return &StrandStats{Stats: &DescriptiveStats{
		MeanEntropy:     stat.Mean(entropies, nil),
		MedianEntropy:   stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		MinEntropy:      sorted[0],
		MaxEntropy:      sorted[len(sorted)-1],
		MeanNumReads:    stat.Mean(reads, nil),
		MinNumReads:     minReads,
		MaxNumReads:     maxReads,
		SuccessfulCount: len(entropies),
		FailedCount:     fails,
	}}
}
