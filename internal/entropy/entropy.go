// internal/entropy/entropy.go
//
// EntropyEngine: encodes a window's accumulated per-read modification
// patterns into symbol strings and computes the methylation entropy
// statistic, classifying windows that fail the coverage threshold.
package entropy

import (
	"fmt"
	"math"
	"sort"

	"mentropy/internal/genome"
	"mentropy/internal/modcall"
	"mentropy/internal/windows"
)

// Symbols used in encoded patterns: '0' is reserved for canonical calls,
// '*' marks a filtered position, and each observed modification code is
// assigned '1'.. in sorted code order.
const (
	CanonicalSymbol = '0'
	FilteredSymbol  = '*'
)

/* ------------------------------- failures ------------------------------- */

// FailureKind distinguishes why a window (or region side) produced no
// entropy value.
type FailureKind uint8

const (
	// ZeroCoverage: no read contributed a valid call at any position.
	ZeroCoverage FailureKind = iota
	// InsufficientCoverage: reads contributed calls, but some position
	// stayed below the minimum valid coverage.
	InsufficientCoverage
)

func (k FailureKind) String() string {
	if k == ZeroCoverage {
		return "zero-coverage"
	}
	return "insufficient-coverage"
}

// CoverageError is the typed, non-fatal failure carried through to the
// writers; Start/End locate the failing interval for diagnostics.
type CoverageError struct {
	Kind    FailureKind
	ChromID int
	Start   int
	End     int
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("%s at %d:%d-%d", e.Kind, e.ChromID, e.Start, e.End)
}

// Reason is the failure-tally key: the kind alone, without coordinates.
func (e *CoverageError) Reason() string { return e.Kind.String() }

/* -------------------------------- results ------------------------------- */

// Result is one successful per-window, per-strand entropy measurement over
// the half-open interval [Start, End).
type Result struct {
	Entropy  float64
	NumReads int
	Start    int
	End      int
}

// StrandEntropy is a success or a *CoverageError for one strand side.
type StrandEntropy struct {
	Result Result
	Err    error
}

// WindowEntropy is the per-window outcome: one optional entry per strand
// side. Combined-strand windows populate only Fwd, from the (+) frame. The
// sides are independent; a failure on one never suppresses the other.
type WindowEntropy struct {
	ChromID int
	Fwd     *StrandEntropy
	Rev     *StrandEntropy
}

/* ------------------------------ computation ----------------------------- */

// Compute converts one completed window into its entropy outcome.
func Compute(w windows.Window, chromID, minCoverage int) WindowEntropy {
	alphabet := modCodeAlphabet(w)
	out := WindowEntropy{ChromID: chromID}
	switch win := w.(type) {
	case *windows.Combined:
		out.Fwd = strandEntropy(w, genome.Forward, chromID, win.Patterns(), win.Coverage(), alphabet, minCoverage)
	case *windows.Stranded:
		if win.HasSide(genome.Forward) {
			out.Fwd = strandEntropy(w, genome.Forward, chromID, win.Patterns(genome.Forward), win.Coverage(genome.Forward), alphabet, minCoverage)
		}
		if win.HasSide(genome.Reverse) {
			out.Rev = strandEntropy(w, genome.Reverse, chromID, win.Patterns(genome.Reverse), win.Coverage(genome.Reverse), alphabet, minCoverage)
		}
	default:
		panic(fmt.Sprintf("unknown window shape %T", w))
	}
	return out
}

func strandEntropy(
	w windows.Window,
	strand genome.Strand,
	chromID int,
	patterns [][]modcall.Call,
	coverage []uint32,
	alphabet map[string]byte,
	minCoverage int,
) *StrandEntropy {
	start, ok := w.Start(strand)
	if !ok {
		panic("strand side must be populated when computing entropy")
	}
	end, _ := w.End(strand)

	encoded, err := encodePatterns(patterns, coverage, alphabet, chromID, start, end, minCoverage)
	if err != nil {
		return &StrandEntropy{Err: err}
	}
	value := shannon(encoded, w.Size())
	return &StrandEntropy{Result: Result{
		Entropy:  value,
		NumReads: len(encoded),
		Start:    start,
		End:      end + 1,
	}}
}

// modCodeAlphabet collects every distinct modification code seen in the
// window, across whichever strand sides are populated, and assigns each a
// symbol in sorted code order.
func modCodeAlphabet(w windows.Window) map[string]byte {
	codes := make(map[string]struct{})
	collect := func(patterns [][]modcall.Call) {
		for _, pattern := range patterns {
			for _, call := range pattern {
				if call.Kind == modcall.Modified {
					codes[call.Code] = struct{}{}
				}
			}
		}
	}
	switch win := w.(type) {
	case *windows.Combined:
		collect(win.Patterns())
	case *windows.Stranded:
		collect(win.Patterns(genome.Forward))
		collect(win.Patterns(genome.Reverse))
	default:
		panic(fmt.Sprintf("unknown window shape %T", w))
	}

	sorted := make([]string, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Strings(sorted)
	if len(sorted) > 9 {
		panic(fmt.Sprintf("%d distinct modification codes exceed the symbol range", len(sorted)))
	}
	alphabet := make(map[string]byte, len(sorted))
	for i, code := range sorted {
		alphabet[code] = byte('1' + i)
	}
	return alphabet
}

// DecodeAlphabet inverts a symbol assignment back to the set of observed
// modification codes, in symbol order.
func DecodeAlphabet(alphabet map[string]byte) []string {
	codes := make([]string, 0, len(alphabet))
	for code := range alphabet {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return alphabet[codes[i]] < alphabet[codes[j]] })
	return codes
}

func encodePatterns(
	patterns [][]modcall.Call,
	coverage []uint32,
	alphabet map[string]byte,
	chromID, start, end, minCoverage int,
) ([]string, error) {
	allZero := true
	belowThreshold := false
	for _, c := range coverage {
		if c != 0 {
			allZero = false
		}
		if int(c) < minCoverage {
			belowThreshold = true
		}
	}
	if belowThreshold {
		kind := InsufficientCoverage
		if allZero {
			kind = ZeroCoverage
		}
		return nil, &CoverageError{Kind: kind, ChromID: chromID, Start: start, End: end}
	}

	encoded := make([]string, len(patterns))
	for i, pattern := range patterns {
		buf := make([]byte, len(pattern))
		for j, call := range pattern {
			switch call.Kind {
			case modcall.Canonical:
				buf[j] = CanonicalSymbol
			case modcall.Modified:
				buf[j] = alphabet[call.Code]
			default:
				buf[j] = FilteredSymbol
			}
		}
		if len(buf) != len(coverage) {
			panic(fmt.Sprintf("pattern %q has %d positions, window has %d", buf, len(buf), len(coverage)))
		}
		encoded[i] = string(buf)
	}
	return encoded, nil
}

// shannon is the methylation entropy statistic: Shannon entropy (log2) of
// the distribution of distinct encoded patterns, scaled by 1/windowSize.
// A uniform pattern set yields exactly 0; values are finite, non-negative,
// and grow as the distribution flattens.
func shannon(encoded []string, windowSize int) float64 {
	if len(encoded) == 0 || windowSize == 0 {
		return 0
	}
	counts := make(map[string]int, len(encoded))
	for _, p := range encoded {
		counts[p]++
	}
	total := float64(len(encoded))
	var h float64
	for _, n := range counts {
		p := float64(n) / total
		h -= p * math.Log2(p)
	}
	h /= float64(windowSize)
	if h == 0 {
		// avoid -0 from a single invariant pattern
		return 0
	}
	return h
}
