// internal/scanner/scanner.go
//
// GenomeScanner: a single-owner, stateful batch iterator that partitions
// reference sequences (whole contigs or named region slices) into windows of
// motif-hit positions. Not restartable and not safe to share across
// goroutines; emitted window sets are handed off and never touched again by
// the scanner.
package scanner

import (
	"errors"
	"sort"

	"mentropy/internal/genome"
	"mentropy/internal/motif"
	"mentropy/internal/windows"

	log "github.com/sirupsen/logrus"
	"github.com/vertgenlab/gonomics/dna"
)

// Sequence is one unit of scanning work. Record.Start is non-zero when Seq
// is a region slice of the contig; positions emitted by the scanner are
// always genome coordinates. RegionName is empty in plain sliding-window
// mode.
type Sequence struct {
	Record     genome.ReferenceRecord
	Seq        []dna.Base
	RegionName string
}

type Scanner struct {
	motifs         []motif.Motif
	combineStrands bool
	numPositions   int
	searchSpan     int // bases scanned ahead of the cursor for hits
	batchSize      int
	searchAdj      int

	queue   []Sequence
	curr    Sequence
	currPos int // relative to curr.Seq
	done    bool
}

// New builds a scanner over the given sequences. Sequences with no motif hit
// at all are skipped with a log line; it is an error if none remain.
func New(seqs []Sequence, motifs []motif.Motif, combineStrands bool, numPositions, searchSpan, batchSize int) (*Scanner, error) {
	if len(motifs) == 0 {
		return nil, errors.New("at least one motif is required")
	}
	if numPositions < 1 {
		return nil, errors.New("num positions must be >= 1")
	}
	if combineStrands {
		for _, m := range motifs {
			if !m.Palindromic() {
				return nil, errors.New("combine-strands requires palindromic motifs, " + m.String() + " is not")
			}
		}
	}
	sc := &Scanner{
		motifs:         motifs,
		combineStrands: combineStrands,
		numPositions:   numPositions,
		searchSpan:     searchSpan,
		batchSize:      batchSize,
		searchAdj:      motif.MaxSearchAdjustment(motifs),
		queue:          seqs,
		done:           true,
	}
	sc.rotate()
	if sc.done {
		return nil, errors.New("didn't find at least 1 sequence with a valid start position")
	}
	return sc, nil
}

// TotalLength is the number of bases left to scan, for progress reporting.
func (sc *Scanner) TotalLength() int {
	total := len(sc.curr.Seq)
	for _, s := range sc.queue {
		total += len(s.Seq)
	}
	return total
}

// NextBatch produces the next batch of window sets, or nil once every input
// sequence is exhausted. A batch is cut when it holds batchSize sets, or in
// sliding-window mode when a set accumulates more than batchSize windows; a
// contig or region boundary always closes the pending set, so a named
// region is never split across batches.
func (sc *Scanner) NextBatch() []*windows.Set {
	var batch []*windows.Set
	var pending []windows.Window
	for {
		if sc.done || len(batch) >= sc.batchSize {
			break
		}

		if w := sc.nextWindow(); w != nil {
			pending = append(pending, w)
		}

		if sc.atEndOfSequence() {
			if len(pending) > 0 {
				batch = append(batch, windows.NewSet(sc.curr.Record.ID, pending, sc.curr.RegionName))
				pending = nil
			}
			sc.rotate()
			continue
		}

		if sc.curr.RegionName == "" && len(pending) > sc.batchSize {
			batch = append(batch, windows.NewSet(sc.curr.Record.ID, pending, ""))
			pending = nil
		}
	}
	if len(pending) > 0 {
		batch = append(batch, windows.NewSet(sc.curr.Record.ID, pending, ""))
	}
	return batch
}

func (sc *Scanner) atEndOfSequence() bool { return sc.currPos >= len(sc.curr.Seq) }

// rotate advances to the next queued sequence that has a usable start
// position, or marks the scanner done.
func (sc *Scanner) rotate() {
	for len(sc.queue) > 0 {
		next := sc.queue[0]
		sc.queue = sc.queue[1:]
		if start, ok := findStartPosition(next.Seq, sc.motifs, sc.searchAdj); ok {
			sc.curr = next
			sc.currPos = start
			sc.done = false
			return
		}
		if next.RegionName != "" {
			log.Debugf("skipping region %s, no motif hits", next.RegionName)
		} else {
			log.Debugf("skipping %s, no motif hits", next.Record.Name)
		}
	}
	sc.done = true
}

// findStartPosition locates the first motif hit in seq, scanning in chunks
// with enough overlap to catch hits straddling a chunk boundary.
func findStartPosition(seq []dna.Base, motifs []motif.Motif, searchAdj int) (int, bool) {
	const chunk = 10_000
	for from := 0; from < len(seq); from += chunk {
		to := from + chunk + searchAdj
		if to > len(seq) {
			to = len(seq)
		}
		first := -1
		for _, m := range motifs {
			for _, h := range m.FindHits(seq[from:to]) {
				if first < 0 || h.Pos < first {
					first = h.Pos
				}
			}
		}
		if first >= 0 {
			return from + first, true
		}
	}
	return 0, false
}

// motifHit is a transient scan product; positions are genome coordinates.
type motifHit struct {
	pos    int
	negPos int
	hasNeg bool
	strand genome.Strand
	base   dna.Base
}

// nextWindow advances the cursor until a full window forms or the current
// sequence runs out. On success the cursor lands one base past the window's
// leftmost coordinate so consecutive windows never reuse a start position.
func (sc *Scanner) nextWindow() windows.Window {
	for !sc.atEndOfSequence() {
		end := sc.currPos + sc.searchSpan
		if end > len(sc.curr.Seq) {
			end = len(sc.curr.Seq)
		}
		subStart := sc.currPos - sc.searchAdj
		if subStart < 0 {
			subStart = 0
		}
		offset := sc.currPos - subStart

		var hits []motifHit
		for _, m := range sc.motifs {
			for _, h := range m.FindHits(sc.curr.Seq[subStart:end]) {
				rel := h.Pos - offset // relative to the cursor
				if rel < 0 {
					continue
				}
				seqPos := rel + sc.currPos
				base := sc.curr.Seq[seqPos]
				if h.Strand == genome.Reverse {
					base = dna.ComplementSingleBase(base)
				}
				hit := motifHit{
					pos:    seqPos + sc.curr.Record.Start,
					strand: h.Strand,
					base:   base,
				}
				if h.Strand == genome.Forward {
					if np, ok := m.MirroredPosition(hit.pos); ok {
						hit.negPos, hit.hasNeg = np, true
					}
				}
				hits = append(hits, hit)
			}
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
		var fwd, rev []motifHit
		for _, h := range hits {
			if h.strand == genome.Forward {
				fwd = append(fwd, h)
			} else {
				rev = append(rev, h)
			}
		}

		if w := sc.windowFromHits(fwd, rev); w != nil {
			sc.currPos = w.Leftmost() + 1 - sc.curr.Record.Start
			return w
		}

		sc.advancePastFailure(hits, end)
	}
	return nil
}

// advancePastFailure moves the cursor to the next candidate hit, or to the
// end of the searched span when no hit remains.
func (sc *Scanner) advancePastFailure(hits []motifHit, end int) {
	positions := make([]int, 0, len(hits))
	seen := make(map[int]struct{}, len(hits))
	for _, h := range hits {
		rel := h.pos - sc.curr.Record.Start
		if _, dup := seen[rel]; !dup {
			seen[rel] = struct{}{}
			positions = append(positions, rel)
		}
	}
	sort.Ints(positions)
	switch {
	case len(positions) == 0:
		sc.currPos = end
	case positions[0] != sc.currPos:
		sc.currPos = positions[0]
	case len(positions) > 1:
		sc.currPos = positions[1]
	default:
		sc.currPos = end
	}
}

// takeIfEnough returns the first numPositions hit positions, or nil when the
// strand does not have enough hits.
func (sc *Scanner) takeIfEnough(hits []motifHit) []genome.BasePos {
	if len(hits) < sc.numPositions {
		return nil
	}
	positions := make([]genome.BasePos, sc.numPositions)
	for i := 0; i < sc.numPositions; i++ {
		positions[i] = genome.BasePos{Base: hits[i].base, Pos: hits[i].pos}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Pos < positions[j].Pos })
	return positions
}

// windowFromHits attempts to form a window from the strand-partitioned,
// position-sorted hits at the cursor.
func (sc *Scanner) windowFromHits(fwd, rev []motifHit) windows.Window {
	if sc.combineStrands {
		negToPos := make(map[genome.BasePos]genome.BasePos, sc.numPositions)
		n := 0
		for _, h := range fwd {
			if n == sc.numPositions {
				break
			}
			n++
			if h.hasNeg {
				negToPos[genome.BasePos{Base: h.base, Pos: h.negPos}] = genome.BasePos{Base: h.base, Pos: h.pos}
			}
		}
		if len(negToPos) < sc.numPositions {
			return nil
		}
		return windows.NewCombined(negToPos, sc.numPositions)
	}

	if len(fwd) < sc.numPositions && len(rev) < sc.numPositions {
		return nil
	}
	fwdPositions := sc.takeIfEnough(fwd)
	revPositions := sc.takeIfEnough(rev)
	switch {
	case fwdPositions != nil && revPositions != nil:
		// The strictly-lesser leftmost side alone forms the window; at a
		// tie, both sides share one window.
		switch {
		case fwdPositions[0].Pos < revPositions[0].Pos:
			return windows.NewStranded(fwdPositions, nil, sc.numPositions)
		case revPositions[0].Pos < fwdPositions[0].Pos:
			return windows.NewStranded(nil, revPositions, sc.numPositions)
		default:
			return windows.NewStranded(fwdPositions, revPositions, sc.numPositions)
		}
	case fwdPositions != nil:
		return windows.NewStranded(fwdPositions, nil, sc.numPositions)
	case revPositions != nil:
		return windows.NewStranded(nil, revPositions, sc.numPositions)
	default:
		return nil
	}
}
