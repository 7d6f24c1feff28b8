// internal/motif/motif.go
package motif

import (
	"fmt"
	"strconv"
	"strings"

	"mentropy/internal/genome"

	"github.com/vertgenlab/gonomics/dna"
)

/* -------------------------- IUPAC lookup table -------------------------- */

var iupacMask [256]byte // bit0=A bit1=C bit2=G bit3=T

var iupacComplement [256]byte

func init() {
	set := func(c byte, bits byte) { iupacMask[c] = bits }
	set('A', 1)       // 0001
	set('C', 2)       // 0010
	set('G', 4)       // 0100
	set('T', 8)       // 1000
	set('R', 1|4)     // A/G
	set('Y', 2|8)     // C/T
	set('S', 2|4)     // C/G
	set('W', 1|8)     // A/T
	set('K', 4|8)     // G/T
	set('M', 1|2)     // A/C
	set('B', 2|4|8)   // C/G/T
	set('D', 1|4|8)   // A/G/T
	set('H', 1|2|8)   // A/C/T
	set('V', 1|2|4)   // A/C/G
	set('N', 1|2|4|8) // any

	comp := func(a, b byte) { iupacComplement[a] = b; iupacComplement[b] = a }
	comp('A', 'T')
	comp('C', 'G')
	comp('R', 'Y')
	comp('K', 'M')
	comp('B', 'V')
	comp('D', 'H')
	iupacComplement['S'] = 'S'
	iupacComplement['W'] = 'W'
	iupacComplement['N'] = 'N'
}

// baseMatch reports whether genome base g satisfies motif letter p. A
// genome base outside A/C/G/T (N blocks, gaps) is a hard mismatch so that
// N runs never produce hits.
func baseMatch(g dna.Base, p byte) bool {
	r := byte(dna.BaseToRune(g))
	if r != 'A' && r != 'C' && r != 'G' && r != 'T' {
		return false
	}
	return iupacMask[p]&iupacMask[r] != 0
}

func revComp(pattern string) string {
	out := make([]byte, len(pattern))
	for i := 0; i < len(pattern); i++ {
		c := iupacComplement[pattern[len(pattern)-1-i]]
		if c == 0 {
			c = 'N'
		}
		out[i] = c
	}
	return string(out)
}

/* --------------------------------- Motif -------------------------------- */

// Motif is a sequence pattern with a designated modified-base offset.
// Immutable and safe to share across goroutines.
type Motif struct {
	pattern     string
	rcPattern   string
	offset      int
	palindromic bool
}

// Parse validates an IUPAC motif pattern and its modified-base offset.
func Parse(pattern string, offset int) (Motif, error) {
	p := strings.ToUpper(pattern)
	if len(p) == 0 {
		return Motif{}, fmt.Errorf("empty motif pattern")
	}
	for i := 0; i < len(p); i++ {
		if iupacMask[p[i]] == 0 {
			return Motif{}, fmt.Errorf("motif %q: invalid IUPAC letter %q", pattern, p[i])
		}
	}
	if offset < 0 || offset >= len(p) {
		return Motif{}, fmt.Errorf("motif %q: offset %d out of range", pattern, offset)
	}
	rc := revComp(p)
	return Motif{pattern: p, rcPattern: rc, offset: offset, palindromic: rc == p}, nil
}

// ParseSpec parses the CLI form "PATTERN,OFFSET", e.g. "CG,0".
func ParseSpec(spec string) (Motif, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 2 {
		return Motif{}, fmt.Errorf("motif spec %q: want PATTERN,OFFSET", spec)
	}
	offset, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Motif{}, fmt.Errorf("motif spec %q: bad offset: %w", spec, err)
	}
	return Parse(strings.TrimSpace(parts[0]), offset)
}

func (m Motif) Length() int { return len(m.pattern) }
func (m Motif) Offset() int { return m.offset }

// Palindromic reports whether the motif equals its reverse complement, in
// which case every (+) strand hit has a mirrored (-) strand position and the
// motif may be used in combine-strands mode.
func (m Motif) Palindromic() bool { return m.palindromic }

func (m Motif) String() string { return fmt.Sprintf("%s:%d", m.pattern, m.offset) }

// MirroredPosition maps a (+) strand hit position to the coordinate of the
// modified base on the (-) strand of the same motif occurrence. Only defined
// for palindromic motifs.
func (m Motif) MirroredPosition(pos int) (int, bool) {
	if !m.palindromic {
		return 0, false
	}
	return pos + len(m.pattern) - 1 - 2*m.offset, true
}

// Hit is a motif occurrence. Pos is the coordinate of the modified base
// (offset applied), relative to the searched sequence; Strand tells which
// strand carries the modified base.
type Hit struct {
	Pos    int
	Strand genome.Strand
}

// FindHits scans seq on both strands and returns hits in occurrence order.
// Reverse-strand occurrences are located by matching the reverse-complement
// pattern against the forward sequence; a palindromic motif therefore yields
// a (+) and a (-) hit from the same occurrence.
func (m Motif) FindHits(seq []dna.Base) []Hit {
	n := len(m.pattern)
	if len(seq) < n {
		return nil
	}
	var hits []Hit
	for s := 0; s+n <= len(seq); s++ {
		if m.matchAt(seq, s, m.pattern) {
			hits = append(hits, Hit{Pos: s + m.offset, Strand: genome.Forward})
		}
		if m.matchAt(seq, s, m.rcPattern) {
			hits = append(hits, Hit{Pos: s + n - 1 - m.offset, Strand: genome.Reverse})
		}
	}
	return hits
}

func (m Motif) matchAt(seq []dna.Base, s int, pattern string) bool {
	for j := 0; j < len(pattern); j++ {
		if !baseMatch(seq[s+j], pattern[j]) {
			return false
		}
	}
	return true
}

// MaxSearchAdjustment is the longest multi-base motif length in the set,
// used by the scanner to catch motifs straddling its cursor.
func MaxSearchAdjustment(motifs []Motif) int {
	adj := 0
	for _, m := range motifs {
		if l := m.Length(); l > 1 && l > adj {
			adj = l
		}
	}
	return adj
}
