// internal/windows/windows.go
//
// GenomeWindow data structures: a window is a fixed number of motif-hit
// positions on one contig, holding the per-read modification patterns and
// per-position valid-coverage counters accumulated for it. Two shapes exist:
// Combined (both strands projected onto the (+) frame) and Stranded
// (independent (+) and/or (-) sides). Consumers switch exhaustively on the
// two concrete types.
package windows

import (
	"fmt"
	"sort"

	"mentropy/internal/genome"
	"mentropy/internal/modcall"
)

// Window is one genome window. Interval accessors return ok=false for a
// strand side the window does not carry. Start/End are the first and last
// included genomic coordinates of the side.
type Window interface {
	Start(s genome.Strand) (int, bool)
	End(s genome.Strand) (int, bool)
	Leftmost() int
	Rightmost() int
	Size() int

	// AddRead intersects one read's reference-position call map with the
	// window. Updates to distinct windows are commutative and independent,
	// so disjoint windows may be updated concurrently.
	AddRead(calls map[genome.BasePos]modcall.Call, refStart, refEnd int, strand genome.Strand, maxFiltered int)
}

/* ------------------------------- Combined ------------------------------- */

// pair links a mirrored (-) strand position to its canonical (+) position.
type pair struct {
	Neg genome.BasePos
	Pos genome.BasePos
}

// Combined projects (-) strand calls onto the (+) coordinate frame: one
// logical site per motif occurrence, patterns ordered by canonical position.
type Combined struct {
	start, end int
	pairs      []pair // sorted by canonical (+) position
	patterns   [][]modcall.Call
	coverage   []uint32
}

// NewCombined builds a combined-strand window from the mirrored-to-canonical
// position mapping. Panics when the mapping does not hold exactly
// numPositions entries; the scanner must only hand over full windows.
func NewCombined(negToPos map[genome.BasePos]genome.BasePos, numPositions int) *Combined {
	if len(negToPos) != numPositions {
		panic(fmt.Sprintf("combined window has %d positions, want %d", len(negToPos), numPositions))
	}
	pairs := make([]pair, 0, len(negToPos))
	for neg, pos := range negToPos {
		pairs = append(pairs, pair{Neg: neg, Pos: pos})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Pos.Pos < pairs[j].Pos.Pos })
	start, end := pairs[0].Pos.Pos, pairs[0].Pos.Pos
	for _, p := range pairs {
		for _, c := range []int{p.Neg.Pos, p.Pos.Pos} {
			if c < start {
				start = c
			}
			if c > end {
				end = c
			}
		}
	}
	return &Combined{
		start:    start,
		end:      end,
		pairs:    pairs,
		coverage: make([]uint32, numPositions),
	}
}

func (w *Combined) Start(genome.Strand) (int, bool) { return w.start, true }
func (w *Combined) End(genome.Strand) (int, bool)   { return w.end, true }
func (w *Combined) Leftmost() int                   { return w.start }
func (w *Combined) Rightmost() int                  { return w.end }
func (w *Combined) Size() int                       { return len(w.coverage) }
func (w *Combined) Patterns() [][]modcall.Call      { return w.patterns }
func (w *Combined) Coverage() []uint32              { return w.coverage }

func (w *Combined) AddRead(calls map[genome.BasePos]modcall.Call, refStart, refEnd int, strand genome.Strand, maxFiltered int) {
	if !covers(refStart, refEnd, w.start, w.end) {
		return
	}
	pattern := make([]modcall.Call, len(w.pairs))
	for i, p := range w.pairs {
		key := p.Pos
		if strand == genome.Reverse {
			key = p.Neg
		}
		call, ok := calls[key]
		if !ok {
			call = modcall.Call{Kind: modcall.Filtered}
		}
		pattern[i] = call
	}
	w.accept(pattern, maxFiltered, w.coverage)
}

func (w *Combined) accept(pattern []modcall.Call, maxFiltered int, coverage []uint32) {
	if countFiltered(pattern) > maxFiltered {
		return
	}
	for i, call := range pattern {
		if call.Kind != modcall.Filtered {
			coverage[i]++
		}
	}
	w.patterns = append(w.patterns, pattern)
}

/* ------------------------------- Stranded ------------------------------- */

type side struct {
	positions  []genome.BasePos // strictly increasing genomic coordinates
	start, end int
	patterns   [][]modcall.Call
	coverage   []uint32
}

func newSide(positions []genome.BasePos, numPositions int) *side {
	if len(positions) != numPositions {
		panic(fmt.Sprintf("window side has %d positions, want %d", len(positions), numPositions))
	}
	for i := 1; i < len(positions); i++ {
		if positions[i-1].Pos >= positions[i].Pos {
			panic("window positions must be strictly increasing")
		}
	}
	return &side{
		positions: positions,
		start:     positions[0].Pos,
		end:       positions[len(positions)-1].Pos,
		coverage:  make([]uint32, numPositions),
	}
}

// Stranded keeps the two strands apart; a window may carry only a (+) side,
// only a (-) side, or both when hits on both strands start at the same
// leftmost coordinate.
type Stranded struct {
	fwd *side
	rev *side
}

// NewStranded builds a stranded window from the per-strand position lists;
// nil means the side is absent. At least one side must be present.
func NewStranded(fwd, rev []genome.BasePos, numPositions int) *Stranded {
	w := &Stranded{}
	if fwd != nil {
		w.fwd = newSide(fwd, numPositions)
	}
	if rev != nil {
		w.rev = newSide(rev, numPositions)
	}
	if w.fwd == nil && w.rev == nil {
		panic("stranded window needs at least one side")
	}
	return w
}

func (w *Stranded) side(s genome.Strand) *side {
	if s == genome.Reverse {
		return w.rev
	}
	return w.fwd
}

func (w *Stranded) Start(s genome.Strand) (int, bool) {
	if sd := w.side(s); sd != nil {
		return sd.start, true
	}
	return 0, false
}

func (w *Stranded) End(s genome.Strand) (int, bool) {
	if sd := w.side(s); sd != nil {
		return sd.end, true
	}
	return 0, false
}

func (w *Stranded) Leftmost() int {
	switch {
	case w.fwd != nil && w.rev != nil:
		return min(w.fwd.start, w.rev.start)
	case w.fwd != nil:
		return w.fwd.start
	default:
		return w.rev.start
	}
}

func (w *Stranded) Rightmost() int {
	switch {
	case w.fwd != nil && w.rev != nil:
		return max(w.fwd.end, w.rev.end)
	case w.fwd != nil:
		return w.fwd.end
	default:
		return w.rev.end
	}
}

func (w *Stranded) Size() int {
	if w.fwd != nil {
		return len(w.fwd.coverage)
	}
	return len(w.rev.coverage)
}

func (w *Stranded) HasSide(s genome.Strand) bool { return w.side(s) != nil }

func (w *Stranded) Patterns(s genome.Strand) [][]modcall.Call {
	if sd := w.side(s); sd != nil {
		return sd.patterns
	}
	return nil
}

func (w *Stranded) Coverage(s genome.Strand) []uint32 {
	if sd := w.side(s); sd != nil {
		return sd.coverage
	}
	return nil
}

func (w *Stranded) AddRead(calls map[genome.BasePos]modcall.Call, refStart, refEnd int, strand genome.Strand, maxFiltered int) {
	sd := w.side(strand)
	if sd == nil {
		return
	}
	if !covers(refStart, refEnd, sd.start, sd.end) {
		return
	}
	pattern := make([]modcall.Call, len(sd.positions))
	for i, p := range sd.positions {
		call, ok := calls[p]
		if !ok {
			call = modcall.Call{Kind: modcall.Filtered}
		}
		pattern[i] = call
	}
	if countFiltered(pattern) > maxFiltered {
		return
	}
	for i, call := range pattern {
		if call.Kind != modcall.Filtered {
			sd.coverage[i]++
		}
	}
	sd.patterns = append(sd.patterns, pattern)
}

/* -------------------------------- helpers ------------------------------- */

// covers reports whether [refStart, refEnd) fully spans the side interval.
func covers(refStart, refEnd, windowStart, windowEnd int) bool {
	if refStart < 0 || refEnd <= refStart {
		return false
	}
	return refStart <= windowStart && refEnd >= windowEnd
}

func countFiltered(pattern []modcall.Call) int {
	n := 0
	for _, c := range pattern {
		if c.Kind == modcall.Filtered {
			n++
		}
	}
	return n
}

/* ---------------------------------- Set --------------------------------- */

// Set is an ordered, non-empty batch entry of windows on one contig. A
// non-empty RegionName marks the set as one named region to be aggregated.
type Set struct {
	ChromID    int
	Windows    []Window
	RegionName string
}

func NewSet(chromID int, ws []Window, regionName string) *Set {
	if len(ws) == 0 {
		panic("window set must not be empty")
	}
	return &Set{ChromID: chromID, Windows: ws, RegionName: regionName}
}

// Range is the minimal genomic interval covering every window in the set,
// used as the fetch interval for the alignment sources.
func (s *Set) Range() (start, end int) {
	return s.Windows[0].Leftmost(), s.Windows[len(s.Windows)-1].Rightmost()
}
