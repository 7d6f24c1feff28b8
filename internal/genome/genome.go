// internal/genome/genome.go
package genome

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vertgenlab/gonomics/dna"
)

// Strand is an alignment / motif-hit orientation.
type Strand int8

const (
	Forward Strand = iota
	Reverse
)

func (s Strand) Char() byte {
	if s == Reverse {
		return '-'
	}
	return '+'
}

func (s Strand) String() string { return string(s.Char()) }

func (s Strand) Opposite() Strand {
	if s == Reverse {
		return Forward
	}
	return Reverse
}

// BasePos keys a modification call (or expected motif position) by the
// canonical base carrying the modification and its reference coordinate.
// The base is always expressed on the strand that carries the modification,
// so a (-) strand CpG cytosine is (C, pos), not (G, pos).
type BasePos struct {
	Base dna.Base
	Pos  int
}

// ReferenceRecord identifies one scanned sequence: a whole contig, or a
// slice of one when scanning caller-supplied regions. Start and Length are
// in genome coordinates; ID is the contig's ordinal in the reference.
type ReferenceRecord struct {
	ID     int
	Start  int
	Length int
	Name   string
}

func (r ReferenceRecord) End() int { return r.Start + r.Length }

// Region restricts a run to one contig or one interval of it.
type Region struct {
	Chrom string
	Start int
	End   int // 0 with Start 0 means the whole contig
}

func (r Region) WholeContig() bool { return r.Start == 0 && r.End == 0 }

// ParseRegion parses "chrom" or "chrom:start-end" (0-based, half-open).
func ParseRegion(s string) (Region, error) {
	if s == "" {
		return Region{}, fmt.Errorf("empty region")
	}
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return Region{Chrom: s}, nil
	}
	chrom, span := s[:i], s[i+1:]
	if chrom == "" {
		return Region{}, fmt.Errorf("invalid region %q: missing contig", s)
	}
	parts := strings.SplitN(span, "-", 2)
	if len(parts) != 2 {
		return Region{}, fmt.Errorf("invalid region %q: want chrom:start-end", s)
	}
	start, err := strconv.Atoi(strings.ReplaceAll(parts[0], ",", ""))
	if err != nil {
		return Region{}, fmt.Errorf("invalid region start in %q: %w", s, err)
	}
	end, err := strconv.Atoi(strings.ReplaceAll(parts[1], ",", ""))
	if err != nil {
		return Region{}, fmt.Errorf("invalid region end in %q: %w", s, err)
	}
	if start < 0 || end <= start {
		return Region{}, fmt.Errorf("invalid region %q: end must be after start", s)
	}
	return Region{Chrom: chrom, Start: start, End: end}, nil
}
