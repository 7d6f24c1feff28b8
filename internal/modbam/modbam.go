// internal/modbam/modbam.go
//
// Decodes MM/ML base-modification tags from aligned reads into per-reference
// -position modification calls. Only simplex calls are handled: duplex reads
// (modification blocks on the opposite strand of the read) are skipped.
package modbam

import (
	"fmt"
	"strconv"
	"strings"

	"mentropy/internal/genome"
	"mentropy/internal/modcall"

	"github.com/vertgenlab/gonomics/dna"
	"github.com/vertgenlab/gonomics/sam"
)

const flagReverse = 0x10

// ReadCalls is one read's thresholded calls keyed by (canonical base,
// reference position), plus the alignment span and strand the window
// accumulators need.
type ReadCalls struct {
	Calls    map[genome.BasePos]modcall.Call
	RefStart int
	RefEnd   int
	Strand   genome.Strand
}

// modBlock is one parsed MM tag block, e.g. "C+m?,1,3" with its ML slice.
type modBlock struct {
	base     dna.Base // fundamental base, read orientation
	codes    []string
	implicit bool  // '.' or absent: unlisted occurrences are canonical
	deltas   []int // skipped base occurrences between listed positions
	probs    [][]float64
}

// FromRecord extracts and thresholds the modification calls of one primary
// alignment. An error means the read is unusable (malformed tags, duplex);
// callers log it at debug and continue.
func FromRecord(rec sam.Sam, caller *modcall.Caller) (ReadCalls, error) {
	mm, ml, err := rawTags(rec)
	if err != nil {
		return ReadCalls{}, err
	}
	blocks, err := parseMM(mm, ml)
	if err != nil {
		return ReadCalls{}, fmt.Errorf("read %s: %w", rec.QName, err)
	}

	reverse := rec.Flag&flagReverse != 0
	strand := genome.Forward
	if reverse {
		strand = genome.Reverse
	}
	queryToRef := queryToRefMap(rec)

	calls := make(map[genome.BasePos]modcall.Call)
	for _, block := range blocks {
		perQuery, err := placeBlock(rec.Seq, block, reverse)
		if err != nil {
			return ReadCalls{}, fmt.Errorf("read %s: %w", rec.QName, err)
		}
		for queryIdx, probs := range perQuery {
			refPos, ok := queryToRef[queryIdx]
			if !ok {
				continue // insertion or clipped base, no reference home
			}
			key := genome.BasePos{Base: block.base, Pos: refPos}
			calls[key] = caller.Call(block.base, probs)
		}
	}

	return ReadCalls{
		Calls:    calls,
		RefStart: rec.GetChromStart(),
		RefEnd:   rec.GetChromEnd(),
		Strand:   strand,
	}, nil
}

// rawTags pulls the MM:Z and ML:B:C fields out of the parsed aux data.
func rawTags(rec sam.Sam) (string, []int, error) {
	var mm string
	var ml []int
	for _, field := range strings.Split(rec.Extra, "\t") {
		switch {
		case strings.HasPrefix(field, "MM:Z:") || strings.HasPrefix(field, "Mm:Z:"):
			mm = field[5:]
		case strings.HasPrefix(field, "ML:B:") || strings.HasPrefix(field, "Ml:B:"):
			body := field[5:]
			if len(body) > 0 {
				body = body[1:] // array type character
			}
			for _, tok := range strings.Split(strings.TrimPrefix(body, ","), ",") {
				if tok == "" {
					continue
				}
				v, err := strconv.Atoi(tok)
				if err != nil || v < 0 || v > 255 {
					return "", nil, fmt.Errorf("read %s: bad ML value %q", rec.QName, tok)
				}
				ml = append(ml, v)
			}
		}
	}
	if mm == "" {
		return "", nil, fmt.Errorf("read %s: no MM tag", rec.QName)
	}
	return mm, ml, nil
}

// parseMM splits the MM tag into blocks and distributes the ML probability
// array over them (positions x codes, codes fastest).
func parseMM(mm string, ml []int) ([]modBlock, error) {
	var blocks []modBlock
	mlIdx := 0
	for _, raw := range strings.Split(strings.TrimSuffix(mm, ";"), ";") {
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		head := parts[0]
		if len(head) < 3 {
			return nil, fmt.Errorf("malformed MM block %q", raw)
		}
		base, err := parseFundamentalBase(head[0])
		if err != nil {
			return nil, fmt.Errorf("malformed MM block %q: %w", raw, err)
		}
		if head[1] == '-' {
			return nil, fmt.Errorf("duplex modification block %q not supported", raw)
		}
		if head[1] != '+' {
			return nil, fmt.Errorf("malformed MM block %q", raw)
		}
		body := head[2:]
		implicit := true
		switch body[len(body)-1] {
		case '?':
			implicit = false
			body = body[:len(body)-1]
		case '.':
			body = body[:len(body)-1]
		}
		codes, err := parseModCodes(body)
		if err != nil {
			return nil, fmt.Errorf("malformed MM block %q: %w", raw, err)
		}

		deltas := make([]int, 0, len(parts)-1)
		for _, d := range parts[1:] {
			n, err := strconv.Atoi(d)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("malformed MM delta %q in %q", d, raw)
			}
			deltas = append(deltas, n)
		}

		probs := make([][]float64, len(deltas))
		for i := range deltas {
			row := make([]float64, len(codes))
			for j := range codes {
				if mlIdx >= len(ml) {
					return nil, fmt.Errorf("ML array too short for MM block %q", raw)
				}
				// midpoint of the 1/256 probability bucket
				row[j] = (float64(ml[mlIdx]) + 0.5) / 256.0
				mlIdx++
			}
			probs[i] = row
		}
		blocks = append(blocks, modBlock{base: base, codes: codes, implicit: implicit, deltas: deltas, probs: probs})
	}
	if mlIdx != len(ml) {
		return nil, fmt.Errorf("ML array has %d leftover values", len(ml)-mlIdx)
	}
	return blocks, nil
}

func parseFundamentalBase(c byte) (dna.Base, error) {
	switch c {
	case 'A':
		return dna.A, nil
	case 'C':
		return dna.C, nil
	case 'G':
		return dna.G, nil
	case 'T':
		return dna.T, nil
	case 'N':
		return dna.N, nil
	}
	return 0, fmt.Errorf("unknown fundamental base %q", c)
}

// parseModCodes splits a code run: single-letter codes concatenate
// ("mh" = 5mC + 5hmC) while a numeric ChEBI id is one whole code.
func parseModCodes(body string) ([]string, error) {
	if body == "" {
		return nil, fmt.Errorf("no modification codes")
	}
	if body[0] >= '0' && body[0] <= '9' {
		if _, err := strconv.Atoi(body); err != nil {
			return nil, fmt.Errorf("bad numeric code %q", body)
		}
		return []string{body}, nil
	}
	codes := make([]string, len(body))
	for i := 0; i < len(body); i++ {
		codes[i] = string(body[i])
	}
	return codes, nil
}

// placeBlock resolves the block's delta-encoded positions to query indices
// of the stored (aligned-orientation) sequence, returning per-index
// probability vectors. For reverse alignments the MM tag counts complement
// -base occurrences from the 3' end of the stored sequence.
func placeBlock(seq []dna.Base, block modBlock, reverse bool) (map[int]map[string]float64, error) {
	target := block.base
	if reverse {
		target = dna.ComplementSingleBase(target)
	}

	// query indices of the base occurrences in original-read order
	var occurrences []int
	if reverse {
		for i := len(seq) - 1; i >= 0; i-- {
			if baseMatches(seq[i], target) {
				occurrences = append(occurrences, i)
			}
		}
	} else {
		for i := 0; i < len(seq); i++ {
			if baseMatches(seq[i], target) {
				occurrences = append(occurrences, i)
			}
		}
	}

	out := make(map[int]map[string]float64, len(block.deltas))
	occIdx := 0
	for i, delta := range block.deltas {
		occIdx += delta
		if occIdx >= len(occurrences) {
			return nil, fmt.Errorf("MM positions overrun the read sequence")
		}
		probs := make(map[string]float64, len(block.codes))
		for j, code := range block.codes {
			probs[code] = block.probs[i][j]
		}
		out[occurrences[occIdx]] = probs
		occIdx++
	}

	// implicit mode: every unlisted occurrence is an explicit canonical call
	if block.implicit {
		for _, q := range occurrences {
			if _, listed := out[q]; !listed {
				out[q] = map[string]float64{}
			}
		}
	}
	return out, nil
}

func baseMatches(b, target dna.Base) bool {
	if target == dna.N {
		return true
	}
	return b == target
}

// queryToRefMap walks the cigar to map query indices onto reference
// positions; clipped and inserted bases have no entry.
func queryToRefMap(rec sam.Sam) map[int]int {
	out := make(map[int]int, len(rec.Seq))
	ref := rec.GetChromStart()
	query := 0
	for _, c := range rec.Cigar {
		switch c.Op {
		case 'M', '=', 'X':
			for i := 0; i < c.RunLength; i++ {
				out[query] = ref
				query++
				ref++
			}
		case 'I', 'S':
			query += c.RunLength
		case 'D', 'N':
			ref += c.RunLength
		}
	}
	return out
}
