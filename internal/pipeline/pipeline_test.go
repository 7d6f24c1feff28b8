// internal/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mentropy/internal/entropy"
	"mentropy/internal/genome"
	"mentropy/internal/modcall"
	"mentropy/internal/motif"
	"mentropy/internal/scanner"

	"github.com/vertgenlab/gonomics/cigar"
	"github.com/vertgenlab/gonomics/dna"
	"github.com/vertgenlab/gonomics/sam"
)

type fetchCall struct {
	chrom      string
	start, end int
}

type fakeSource struct {
	path    string
	reads   []sam.Sam
	err     error
	fetches []fetchCall
}

func (f *fakeSource) Path() string { return f.path }

func (f *fakeSource) Fetch(chrom string, start, end int) ([]sam.Sam, error) {
	f.fetches = append(f.fetches, fetchCall{chrom, start, end})
	if f.err != nil {
		return nil, f.err
	}
	return f.reads, nil
}

func bases(t *testing.T, s string) []dna.Base {
	t.Helper()
	out := make([]dna.Base, len(s))
	for i, r := range s {
		switch r {
		case 'A':
			out[i] = dna.A
		case 'C':
			out[i] = dna.C
		case 'G':
			out[i] = dna.G
		case 'T':
			out[i] = dna.T
		default:
			t.Fatalf("unexpected base %q in %q", r, s)
		}
	}
	return out
}

// canonicalRead is a forward 8M alignment over the whole test contig with
// explicit canonical calls at both CpG cytosines.
func canonicalRead(t *testing.T, name string) sam.Sam {
	t.Helper()
	return sam.Sam{
		QName: name,
		Flag:  0,
		RName: "chr1",
		Pos:   1,
		Cigar: []cigar.Cigar{{RunLength: 8, Op: 'M'}},
		Seq:   bases(t, "TACGACGT"),
		Extra: "MM:Z:C+m?,0,0;\tML:B:C,10,10",
	}
}

func testScanner(t *testing.T, regionName string) *scanner.Scanner {
	t.Helper()
	m, err := motif.ParseSpec("CG,0")
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	seqs := []scanner.Sequence{{
		Record:     genome.ReferenceRecord{ID: 0, Start: 0, Length: 8, Name: "chr1"},
		Seq:        bases(t, "TACGACGT"),
		RegionName: regionName,
	}}
	sc, err := scanner.New(seqs, []motif.Motif{m}, false, 2, 100, 10)
	if err != nil {
		t.Fatalf("scanner.New: %v", err)
	}
	return sc
}

func testCaller(t *testing.T) *modcall.Caller {
	t.Helper()
	c, err := modcall.NewCaller(0.8, nil)
	if err != nil {
		t.Fatalf("NewCaller: %v", err)
	}
	return c
}

func chromName(int) string { return "chr1" }

func runPipeline(t *testing.T, sc *scanner.Scanner, sources []Source) []Result {
	t.Helper()
	cfg := Config{Threads: 2, MinCoverage: 3, MaxFilteredPositions: 0}
	var results []Result
	err := Run(context.Background(), cfg, sc, sources, testCaller(t), chromName, nil,
		func(res Result) error {
			results = append(results, res)
			return nil
		})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return results
}

func TestRunUniformReads(t *testing.T) {
	// CpGs at 2 and 5: a forward window over the (+) cytosines and a
	// reverse window over the (-) cytosines at 3 and 6
	src := &fakeSource{path: "a.bam", reads: []sam.Sam{
		canonicalRead(t, "r1"), canonicalRead(t, "r2"), canonicalRead(t, "r3"),
	}}
	results := runPipeline(t, testScanner(t, ""), []Source{src})

	if len(results) != 1 || results[0].Region != nil {
		t.Fatalf("want one windows result, got %+v", results)
	}
	wes := results[0].Windows
	if len(wes) != 2 {
		t.Fatalf("got %d windows, want 2", len(wes))
	}

	fwd := wes[0].Fwd
	if fwd == nil || fwd.Err != nil {
		t.Fatalf("forward window must succeed, got %+v", fwd)
	}
	if fwd.Result.Entropy != 0 || fwd.Result.NumReads != 3 {
		t.Errorf("forward result = %+v, want entropy 0 over 3 reads", fwd.Result)
	}
	if fwd.Result.Start != 2 || fwd.Result.End != 6 {
		t.Errorf("forward interval = %d-%d, want [2,6)", fwd.Result.Start, fwd.Result.End)
	}

	rev := wes[1].Rev
	if rev == nil || rev.Err == nil {
		t.Fatalf("reverse window has no reverse reads and must fail, got %+v", rev)
	}
	var cov *entropy.CoverageError
	if !errors.As(rev.Err, &cov) || cov.Kind != entropy.ZeroCoverage {
		t.Errorf("reverse failure = %v, want zero-coverage", rev.Err)
	}
}

func TestRunFetchInterval(t *testing.T) {
	src := &fakeSource{path: "a.bam"}
	runPipeline(t, testScanner(t, ""), []Source{src})
	// windows span 2..6 inclusive, so the half-open fetch is [2,7)
	if len(src.fetches) != 1 {
		t.Fatalf("got %d fetches, want 1", len(src.fetches))
	}
	got := src.fetches[0]
	if got.chrom != "chr1" || got.start != 2 || got.end != 7 {
		t.Errorf("fetch = %+v, want chr1 [2,7)", got)
	}
}

func TestRunDropsFailingSource(t *testing.T) {
	good := &fakeSource{path: "good.bam", reads: []sam.Sam{
		canonicalRead(t, "r1"), canonicalRead(t, "r2"), canonicalRead(t, "r3"),
	}}
	bad := &fakeSource{path: "bad.bam", err: errors.New("truncated bgzf block")}
	results := runPipeline(t, testScanner(t, ""), []Source{bad, good})

	fwd := results[0].Windows[0].Fwd
	if fwd == nil || fwd.Err != nil {
		t.Fatalf("good source alone must still cover the window: %+v", fwd)
	}
	if fwd.Result.NumReads != 3 {
		t.Errorf("num reads = %d, want 3 from the surviving source", fwd.Result.NumReads)
	}
}

func TestRunSkipsUnusableReads(t *testing.T) {
	junk := canonicalRead(t, "junk")
	junk.Extra = "NM:i:0" // no MM tag
	src := &fakeSource{path: "a.bam", reads: []sam.Sam{
		canonicalRead(t, "r1"), canonicalRead(t, "r2"), canonicalRead(t, "r3"), junk,
	}}
	results := runPipeline(t, testScanner(t, ""), []Source{src})
	if got := results[0].Windows[0].Fwd.Result.NumReads; got != 3 {
		t.Errorf("num reads = %d, want 3 usable", got)
	}
}

func TestRunRegionAggregation(t *testing.T) {
	src := &fakeSource{path: "a.bam", reads: []sam.Sam{
		canonicalRead(t, "r1"), canonicalRead(t, "r2"), canonicalRead(t, "r3"),
	}}
	results := runPipeline(t, testScanner(t, "myregion"), []Source{src})

	if len(results) != 1 || results[0].Region == nil {
		t.Fatalf("want one region result, got %+v", results)
	}
	re := results[0].Region
	if re.Name != "myregion" || re.Start != 2 || re.End != 7 {
		t.Errorf("region identity = %+v, want myregion over [2,7)", re)
	}
	if re.Fwd == nil || re.Fwd.Err != nil {
		t.Fatalf("forward aggregate must succeed: %+v", re.Fwd)
	}
	if re.Fwd.Stats.SuccessfulCount != 1 || re.Fwd.Stats.MeanEntropy != 0 {
		t.Errorf("forward stats = %+v", re.Fwd.Stats)
	}
	if re.Rev == nil || re.Rev.Err == nil {
		t.Errorf("reverse aggregate must carry the zero-coverage failure: %+v", re.Rev)
	}
	if len(re.Windows) != 2 {
		t.Errorf("constituent windows = %d, want 2", len(re.Windows))
	}
}

func TestRunEmitError(t *testing.T) {
	src := &fakeSource{path: "a.bam"}
	want := fmt.Errorf("sink closed")
	err := Run(context.Background(), Config{Threads: 1, MinCoverage: 1}, testScanner(t, ""),
		[]Source{src}, testCaller(t), chromName, nil,
		func(Result) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("Run error = %v, want %v", err, want)
	}
}

func TestRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, Config{Threads: 1, MinCoverage: 1}, testScanner(t, ""),
		[]Source{&fakeSource{path: "a.bam"}}, testCaller(t), chromName, nil,
		func(Result) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}
