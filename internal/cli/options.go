// internal/cli/options.go
package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"mentropy/internal/version"
)

// Options holds all CLI flags and arguments.
type Options struct {
	// Inputs
	BamFiles []string
	RefFile  string
	Regions  string // BED file; switches to region-aggregated mode
	Region   string // chr[:start-end] scan restriction

	// Motifs / windowing
	Motifs         []string // "PATTERN,OFFSET" specs
	CpG            bool
	CombineStrands bool
	NumPositions   int
	WindowSize     int
	BatchSize      int

	// Calling / filtering
	MinCoverage          int
	MaxFilteredPositions int
	FilterThreshold      float64
	ModThresholds        []string // "CODE:VALUE" overrides
	DropZeros            bool

	// Output
	Output string // windows TSV path, '-' = stdout
	OutDir string // region mode output directory
	Prefix string
	Header bool // true unless --no-header

	// Performance
	Threads int

	// Logging
	LogFilepath      string
	SuppressProgress bool
	Debug            bool

	Version bool
}

// NewFlagSet returns a configured FlagSet with custom usage/help.
func NewFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			`%s: methylation entropy over sliding windows of motif positions

Version: %s

Usage of %s:
`, name, version.Version, name)
		fs.PrintDefaults()
	}
	return fs
}

// ParseArgs registers and parses all flags, returns an Options struct.
func ParseArgs(fs *flag.FlagSet, argv []string) (Options, error) {
	var opt Options
	var help bool

	// Inputs
	var bams stringSlice
	fs.Var(&bams, "in-bam", "indexed BAM file (repeatable) [*]")
	fs.StringVar(&opt.RefFile, "ref", "", "reference FASTA [*]")
	fs.StringVar(&opt.Regions, "regions", "", "BED file of named regions; aggregate per region")
	fs.StringVar(&opt.Region, "region", "", "restrict scanning to chr or chr:start-end")

	// Motifs / windowing
	var motifs stringSlice
	fs.Var(&motifs, "motif", "motif as PATTERN,OFFSET e.g. CG,0 (repeatable) [CG,0]")
	fs.BoolVar(&opt.CpG, "cpg", false, "shorthand for --motif CG,0 [false]")
	fs.BoolVar(&opt.CombineStrands, "combine-strands", false, "project (-) strand calls onto the (+) frame [false]")
	fs.IntVar(&opt.NumPositions, "num-positions", 4, "motif positions per window [4]")
	fs.IntVar(&opt.WindowSize, "window-size", 50, "bases scanned ahead for motif hits [50]")
	fs.IntVar(&opt.BatchSize, "batch-size", 1000, "windows per scheduling batch [1000]")

	// Calling / filtering
	fs.IntVar(&opt.MinCoverage, "min-coverage", 3, "per-position valid-coverage threshold [3]")
	fs.IntVar(&opt.MaxFilteredPositions, "max-filtered-positions", 0, "max filtered positions per accepted read pattern [0]")
	fs.Float64Var(&opt.FilterThreshold, "filter-threshold", 0.8, "mod-call pass threshold [0.8]")
	var modThresholds stringSlice
	fs.Var(&modThresholds, "mod-threshold", "per-code threshold override as CODE:VALUE (repeatable)")
	fs.BoolVar(&opt.DropZeros, "drop-zeros", false, "skip entropy==0 rows in windows output [false]")

	// Output
	fs.StringVar(&opt.Output, "out", "-", "windows TSV output path, '-' = stdout [-]")
	fs.StringVar(&opt.OutDir, "out-dir", "", "output directory (region mode) [*]")
	fs.StringVar(&opt.Prefix, "prefix", "", "output filename prefix (region mode)")
	noHeader := false
	fs.BoolVar(&noHeader, "no-header", false, "suppress header lines [false]")

	// Performance
	fs.IntVar(&opt.Threads, "threads", 0, "number of worker threads (0 = all CPUs) [0]")

	// Logging
	fs.StringVar(&opt.LogFilepath, "log-filepath", "", "tee logs to file")
	fs.BoolVar(&opt.SuppressProgress, "suppress-progress", false, "disable progress counters [false]")
	fs.BoolVar(&opt.Debug, "debug", false, "debug-level logging [false]")

	fs.BoolVar(&opt.Version, "v", false, "print version and exit (shorthand) [false]")
	fs.BoolVar(&opt.Version, "version", false, "print version and exit [false]")
	fs.BoolVar(&help, "h", false, "show this help message (shorthand) [false]")

	if err := fs.Parse(argv); err != nil {
		return opt, err
	}
	if help {
		fs.Usage()
		return opt, flag.ErrHelp
	}
	if opt.Version {
		return opt, nil
	}
	opt.BamFiles = bams
	opt.Motifs = motifs
	opt.ModThresholds = modThresholds
	opt.Header = !noHeader
	if opt.CpG {
		opt.Motifs = append(opt.Motifs, "CG,0")
	}
	if len(opt.Motifs) == 0 {
		opt.Motifs = []string{"CG,0"}
	}

	// Validation
	switch {
	case len(opt.BamFiles) == 0:
		return opt, errors.New("at least one --in-bam file is required")
	case opt.RefFile == "":
		return opt, errors.New("--ref is required")
	case opt.Regions != "" && opt.OutDir == "":
		return opt, errors.New("--regions requires --out-dir")
	case opt.Regions != "" && opt.Output != "-":
		return opt, errors.New("--out conflicts with region mode, use --out-dir")
	case opt.Regions == "" && opt.OutDir != "":
		return opt, errors.New("--out-dir requires --regions")
	case opt.Regions != "" && opt.Region != "":
		return opt, errors.New("--regions conflicts with --region")
	}
	if opt.NumPositions < 1 {
		return opt, errors.New("--num-positions must be >= 1")
	}
	if opt.WindowSize < 1 {
		return opt, errors.New("--window-size must be >= 1")
	}
	if opt.BatchSize < 1 {
		return opt, errors.New("--batch-size must be >= 1")
	}
	if opt.MinCoverage < 1 {
		return opt, errors.New("--min-coverage must be >= 1")
	}
	if opt.MaxFilteredPositions < 0 {
		return opt, errors.New("--max-filtered-positions must be >= 0")
	}
	if opt.MaxFilteredPositions >= opt.NumPositions {
		return opt, errors.New("--max-filtered-positions must be less than --num-positions")
	}
	if opt.FilterThreshold < 0 || opt.FilterThreshold > 1 {
		return opt, errors.New("--filter-threshold must be in [0,1]")
	}
	if opt.Threads < 0 {
		return opt, errors.New("--threads must be >= 0")
	}
	return opt, nil
}

// stringSlice allows repeatable string flags.
type stringSlice []string

func (s *stringSlice) String() string     { return strings.Join(*s, ",") }
func (s *stringSlice) Set(v string) error { *s = append(*s, v); return nil }
