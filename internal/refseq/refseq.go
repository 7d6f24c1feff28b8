// internal/refseq/refseq.go
package refseq

import (
	"fmt"

	"mentropy/internal/genome"

	"github.com/vertgenlab/gonomics/dna"
	"github.com/vertgenlab/gonomics/fasta"
)

// Reference holds the loaded reference sequences, uppercased, with stable
// contig ids in file order. Read-only after Load; safe to share.
type Reference struct {
	names   []string
	byName  map[string]int
	contigs [][]dna.Base
}

// Load reads a reference FASTA (gzip transparent). gonomics surfaces read
// failures as panics, so those are converted back into errors here.
func Load(path string) (ref *Reference, err error) {
	defer func() {
		if r := recover(); r != nil {
			ref, err = nil, fmt.Errorf("failed to read reference %s: %v", path, r)
		}
	}()
	records := fasta.Read(path)
	if len(records) == 0 {
		return nil, fmt.Errorf("no sequences in reference %s", path)
	}
	ref = &Reference{byName: make(map[string]int, len(records))}
	for _, rec := range records {
		if _, dup := ref.byName[rec.Name]; dup {
			return nil, fmt.Errorf("duplicate contig %q in %s", rec.Name, path)
		}
		dna.AllToUpper(rec.Seq)
		ref.byName[rec.Name] = len(ref.names)
		ref.names = append(ref.names, rec.Name)
		ref.contigs = append(ref.contigs, rec.Seq)
	}
	return ref, nil
}

func (r *Reference) Names() []string { return r.names }

func (r *Reference) ChromID(name string) (int, bool) {
	id, ok := r.byName[name]
	return id, ok
}

func (r *Reference) NameByID(id int) string {
	if id < 0 || id >= len(r.names) {
		return fmt.Sprintf("chrom-%d", id)
	}
	return r.names[id]
}

func (r *Reference) Contig(name string) ([]dna.Base, bool) {
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.contigs[id], true
}

// Subsequence slices [start, end) of a contig, clamping end to the contig
// length so a slightly overhanging BED region is usable.
func (r *Reference) Subsequence(name string, start, end int) ([]dna.Base, error) {
	seq, ok := r.Contig(name)
	if !ok {
		return nil, fmt.Errorf("contig %q not in reference", name)
	}
	if end > len(seq) {
		end = len(seq)
	}
	if start < 0 || start >= end {
		return nil, fmt.Errorf("interval %d-%d out of range for contig %q (length %d)", start, end, name, len(seq))
	}
	return seq[start:end], nil
}

// Sequences assembles the scanner work list. With no region restriction it
// yields every contig whole; with one, just the matching slice.
func (r *Reference) Sequences(restrict *genome.Region) ([]genome.ReferenceRecord, [][]dna.Base, error) {
	if restrict == nil {
		records := make([]genome.ReferenceRecord, len(r.names))
		for id, name := range r.names {
			records[id] = genome.ReferenceRecord{ID: id, Start: 0, Length: len(r.contigs[id]), Name: name}
		}
		return records, r.contigs, nil
	}

	id, ok := r.byName[restrict.Chrom]
	if !ok {
		return nil, nil, fmt.Errorf("region contig %q not in reference", restrict.Chrom)
	}
	if restrict.WholeContig() {
		rec := genome.ReferenceRecord{ID: id, Start: 0, Length: len(r.contigs[id]), Name: restrict.Chrom}
		return []genome.ReferenceRecord{rec}, [][]dna.Base{r.contigs[id]}, nil
	}
	seq, err := r.Subsequence(restrict.Chrom, restrict.Start, restrict.End)
	if err != nil {
		return nil, nil, err
	}
	rec := genome.ReferenceRecord{ID: id, Start: restrict.Start, Length: len(seq), Name: restrict.Chrom}
	return []genome.ReferenceRecord{rec}, [][]dna.Base{seq}, nil
}
