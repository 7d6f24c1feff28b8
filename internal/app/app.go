// internal/app/app.go
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"mentropy/internal/bamsource"
	"mentropy/internal/bedfile"
	"mentropy/internal/cli"
	"mentropy/internal/genome"
	"mentropy/internal/modcall"
	"mentropy/internal/motif"
	"mentropy/internal/pipeline"
	"mentropy/internal/progress"
	"mentropy/internal/refseq"
	"mentropy/internal/runutil"
	"mentropy/internal/scanner"
	"mentropy/internal/version"
	"mentropy/internal/writers"

	log "github.com/sirupsen/logrus"
)

func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	fs := cli.NewFlagSet("mentropy")
	fs.SetOutput(io.Discard)

	if len(argv) == 0 {
		fs.SetOutput(stdout)
		fs.Usage()
		return 0
	}

	opts, err := cli.ParseArgs(fs, argv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(stdout)
			fs.Usage()
			return 0
		}
		_, _ = fmt.Fprintln(stderr, err)
		fs.SetOutput(stdout)
		fs.Usage()
		return 2
	}

	if opts.Version {
		_, _ = fmt.Fprintf(stdout, "mentropy version %s\n", version.Version)
		return 0
	}

	closeLog, err := setupLogging(opts, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}
	defer closeLog()

	if err := run(parent, opts, stdout); err != nil {
		if writers.IsBrokenPipe(err) {
			return 0
		}
		_, _ = fmt.Fprintln(stderr, err)
		return 3
	}
	return 0
}

func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}

func setupLogging(opts cli.Options, stderr io.Writer) (func(), error) {
	log.SetLevel(log.InfoLevel)
	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if opts.LogFilepath == "" {
		log.SetOutput(stderr)
		return func() {}, nil
	}
	f, err := os.Create(opts.LogFilepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(stderr, f))
	return func() { _ = f.Close() }, nil
}

func run(ctx context.Context, opts cli.Options, stdout io.Writer) error {
	motifs := make([]motif.Motif, 0, len(opts.Motifs))
	for _, spec := range opts.Motifs {
		m, err := motif.ParseSpec(spec)
		if err != nil {
			return err
		}
		motifs = append(motifs, m)
	}

	caller, err := buildCaller(opts)
	if err != nil {
		return err
	}

	ref, err := refseq.Load(opts.RefFile)
	if err != nil {
		return err
	}

	seqs, err := buildSequences(opts, ref)
	if err != nil {
		return err
	}

	sc, err := scanner.New(seqs, motifs, opts.CombineStrands, opts.NumPositions, opts.WindowSize, opts.BatchSize)
	if err != nil {
		return err
	}

	sources, err := openSources(opts.BamFiles)
	if err != nil {
		return err
	}
	defer func() {
		for _, src := range sources {
			_ = src.Close()
		}
	}()
	pipeSources := make([]pipeline.Source, len(sources))
	for i, src := range sources {
		pipeSources[i] = src
	}

	track := progress.Start(sc.TotalLength(), opts.SuppressProgress)

	in, errCh, tally, closeOut, err := startWriter(opts, ref, track, stdout)
	if err != nil {
		return err
	}

	cfg := pipeline.Config{
		Threads:              runutil.EffectiveThreads(opts.Threads),
		MinCoverage:          opts.MinCoverage,
		MaxFilteredPositions: opts.MaxFilteredPositions,
	}
	runErr := pipeline.Run(ctx, cfg, sc, pipeSources, caller, ref.NameByID, track, func(res pipeline.Result) error {
		in <- res
		return nil
	})
	close(in)
	writeErr := <-errCh
	if cerr := closeOut(); writeErr == nil {
		writeErr = cerr
	}

	track.Finish()
	log.Infof("wrote %d rows, %d failed", track.RowsWritten(), track.RowsFailed())
	tally.Report()

	if runErr != nil {
		return runErr
	}
	return writeErr
}

func buildCaller(opts cli.Options) (*modcall.Caller, error) {
	perCode := make(map[string]float64, len(opts.ModThresholds))
	for _, spec := range opts.ModThresholds {
		code, v, err := modcall.ParseThresholdSpec(spec)
		if err != nil {
			return nil, err
		}
		perCode[code] = v
	}
	return modcall.NewCaller(opts.FilterThreshold, perCode)
}

// buildSequences assembles the scanner work list: contig slices keyed to
// named BED regions, or whole contigs (optionally restricted by --region).
func buildSequences(opts cli.Options, ref *refseq.Reference) ([]scanner.Sequence, error) {
	if opts.Regions != "" {
		regions, _, err := bedfile.Read(opts.Regions)
		if err != nil {
			return nil, err
		}
		var seqs []scanner.Sequence
		skipped := 0
		for _, r := range regions {
			id, ok := ref.ChromID(r.Chrom)
			if !ok {
				log.Debugf("skipping region %s: contig %q not in reference", r.Name, r.Chrom)
				skipped++
				continue
			}
			seq, err := ref.Subsequence(r.Chrom, r.Start, r.End)
			if err != nil {
				log.Debugf("skipping region %s: %v", r.Name, err)
				skipped++
				continue
			}
			seqs = append(seqs, scanner.Sequence{
				Record:     genome.ReferenceRecord{ID: id, Start: r.Start, Length: len(seq), Name: r.Chrom},
				Seq:        seq,
				RegionName: r.Name,
			})
		}
		if skipped > 0 {
			log.Infof("skipped %d regions not usable with this reference", skipped)
		}
		if len(seqs) == 0 {
			return nil, errors.New("no usable regions")
		}
		return seqs, nil
	}

	var restrict *genome.Region
	if opts.Region != "" {
		r, err := genome.ParseRegion(opts.Region)
		if err != nil {
			return nil, err
		}
		restrict = &r
	}
	records, contigs, err := ref.Sequences(restrict)
	if err != nil {
		return nil, err
	}
	seqs := make([]scanner.Sequence, len(records))
	for i := range records {
		seqs[i] = scanner.Sequence{Record: records[i], Seq: contigs[i]}
	}
	return seqs, nil
}

// openSources opens every BAM input; unusable files are logged and skipped.
// Only a run with zero usable sources fails.
func openSources(paths []string) ([]*bamsource.Source, error) {
	sources := make([]*bamsource.Source, 0, len(paths))
	for _, path := range paths {
		src, err := bamsource.Open(path)
		if err != nil {
			log.Warnf("%v", err)
			continue
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, errors.New("no usable alignment sources")
	}
	return sources, nil
}

func startWriter(
	opts cli.Options,
	ref *refseq.Reference,
	track *progress.Tracker,
	stdout io.Writer,
) (chan<- pipeline.Result, <-chan error, *writers.Tally, func() error, error) {
	if opts.Regions != "" {
		in, errCh, tally, err := writers.StartRegionsWriter(
			opts.OutDir, opts.Prefix, ref.NameByID, opts.Header, opts.DropZeros, track, 0)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return in, errCh, tally, func() error { return nil }, nil
	}

	out := stdout
	closeOut := func() error { return nil }
	if opts.Output != "-" && opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		out = f
		closeOut = f.Close
	}
	in, errCh, tally := writers.StartWindowsWriter(out, ref.NameByID, opts.Header, opts.DropZeros, track, 0)
	return in, errCh, tally, closeOut, nil
}
