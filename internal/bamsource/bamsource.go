// internal/bamsource/bamsource.go
//
// Indexed BAM alignment source. One Source per input file; fetches for
// different sources may run in parallel, but a single Source is consumed
// sequentially.
package bamsource

import (
	"fmt"

	"github.com/vertgenlab/gonomics/sam"
)

const (
	flagUnmapped      = 0x4
	flagSecondary     = 0x100
	flagSupplementary = 0x800
)

type Source struct {
	path   string
	reader *sam.BamReader
	header sam.Header
	bai    sam.Bai
}

// Open opens an indexed BAM (expects path + ".bai" alongside). gonomics
// surfaces open failures as panics; they are converted into errors here so
// a bad input file is reported, not a crash.
func Open(path string) (src *Source, err error) {
	defer func() {
		if r := recover(); r != nil {
			src, err = nil, fmt.Errorf("failed to open bam %s: %v", path, r)
		}
	}()
	reader, header := sam.OpenBam(path)
	bai := sam.ReadBai(path + ".bai")
	return &Source{path: path, reader: reader, header: header, bai: bai}, nil
}

func (s *Source) Path() string { return s.path }

// Fetch returns the primary, mapped alignments overlapping [start, end) on
// chrom, with their auxiliary tags parsed. Failures inside the seek are
// recovered into an error so one bad batch never aborts the run.
func (s *Source) Fetch(chrom string, start, end int) (reads []sam.Sam, err error) {
	defer func() {
		if r := recover(); r != nil {
			reads, err = nil, fmt.Errorf("fetch %s:%d-%d from %s: %v", chrom, start, end, s.path, r)
		}
	}()
	if start < 0 {
		start = 0
	}
	all := sam.SeekBamRegion(s.reader, s.bai, chrom, uint32(start), uint32(end))
	reads = make([]sam.Sam, 0, len(all))
	for i := range all {
		if all[i].Flag&(flagUnmapped|flagSecondary|flagSupplementary) != 0 {
			continue
		}
		if len(all[i].Seq) == 0 {
			continue
		}
		sam.ParseExtra(&all[i])
		reads = append(reads, all[i])
	}
	return reads, nil
}

func (s *Source) Close() error {
	return s.reader.Close()
}
