// internal/writers/entropy.go
package writers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mentropy/internal/entropy"
	"mentropy/internal/genome"
	"mentropy/internal/output"
	"mentropy/internal/pipeline"
	"mentropy/internal/progress"

	log "github.com/sirupsen/logrus"
)

// Tally counts emitted failures by reason. It is owned by a single writer
// goroutine; read it only after the writer's error channel has delivered.
type Tally struct {
	Reasons map[string]int
}

func newTally() *Tally { return &Tally{Reasons: make(map[string]int)} }

func fwdOrRev(c byte) genome.Strand {
	if c == '-' {
		return genome.Reverse
	}
	return genome.Forward
}

func (t *Tally) add(err error) {
	var cov *entropy.CoverageError
	if errors.As(err, &cov) {
		t.Reasons[cov.Reason()]++
		return
	}
	t.Reasons[err.Error()]++
}

// Report logs the failure-reason breakdown table at the end of a run.
func (t *Tally) Report() {
	if len(t.Reasons) == 0 {
		return
	}
	log.Info("failure reasons:")
	for reason, count := range t.Reasons {
		log.Infof("\t%s: %d", reason, count)
	}
}

// writeWindowRows emits the successful strand rows of each window outcome
// and tallies the failures; sides are independent.
func writeWindowRows(
	w io.Writer,
	wes []entropy.WindowEntropy,
	chromName func(int) string,
	dropZeros bool,
	track *progress.Tracker,
	tally *Tally,
) error {
	for _, we := range wes {
		chrom := chromName(we.ChromID)
		for _, side := range []struct {
			se     *entropy.StrandEntropy
			strand byte
		}{{we.Fwd, '+'}, {we.Rev, '-'}} {
			if side.se == nil {
				continue
			}
			if side.se.Err != nil {
				log.Debugf("%s: %v", chrom, side.se.Err)
				tally.add(side.se.Err)
				track.RowFailed()
				continue
			}
			if dropZeros && side.se.Result.Entropy == 0 {
				continue
			}
			strand := fwdOrRev(side.strand)
			row := output.FormatWindowRowTSV(output.WindowRow(chrom, strand, side.se.Result))
			if _, err := fmt.Fprintln(w, row); err != nil {
				return err
			}
			track.RowWritten()
		}
	}
	return nil
}

// StartWindowsWriter spins up the writer goroutine for plain sliding-window
// mode: one TSV stream of per-window rows. The error (or nil) arrives on
// the returned 1-buffered channel once the input channel is closed.
func StartWindowsWriter(
	out io.Writer,
	chromName func(int) string,
	header, dropZeros bool,
	track *progress.Tracker,
	bufSize int,
) (chan<- pipeline.Result, <-chan error, *Tally) {
	if bufSize <= 0 {
		bufSize = 64
	}
	in := make(chan pipeline.Result, bufSize)
	errCh := make(chan error, 1)
	tally := newTally()

	go func() {
		bw := bufio.NewWriter(out)
		var err error
		if header {
			_, err = fmt.Fprintln(bw, output.WindowsHeader)
		}
		for res := range in {
			if err != nil {
				continue // drain
			}
			if res.Region != nil {
				err = errors.New("windows writer received a region result")
				continue
			}
			err = writeWindowRows(bw, res.Windows, chromName, dropZeros, track, tally)
		}
		if err == nil {
			err = bw.Flush()
		}
		errCh <- err
	}()

	return in, errCh, tally
}

// StartRegionsWriter spins up the writer goroutine for region mode: a
// summary row per region side in <prefix_>regions.bed plus the constituent
// window rows in <prefix_>windows.bedgraph.
func StartRegionsWriter(
	outDir, prefix string,
	chromName func(int) string,
	header, dropZeros bool,
	track *progress.Tracker,
	bufSize int,
) (chan<- pipeline.Result, <-chan error, *Tally, error) {
	if info, err := os.Stat(outDir); err == nil && !info.IsDir() {
		return nil, nil, nil, fmt.Errorf("regions output location %s must be a directory", outDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, nil, nil, err
	}
	name := func(base string) string {
		if prefix != "" {
			return filepath.Join(outDir, prefix+"_"+base)
		}
		return filepath.Join(outDir, base)
	}
	regionsFile, err := os.Create(name("regions.bed"))
	if err != nil {
		return nil, nil, nil, err
	}
	windowsFile, err := os.Create(name("windows.bedgraph"))
	if err != nil {
		_ = regionsFile.Close()
		return nil, nil, nil, err
	}

	if bufSize <= 0 {
		bufSize = 64
	}
	in := make(chan pipeline.Result, bufSize)
	errCh := make(chan error, 1)
	tally := newTally()

	go func() {
		regions := bufio.NewWriter(regionsFile)
		winOut := bufio.NewWriter(windowsFile)
		var err error
		if header {
			_, err = fmt.Fprintln(regions, output.RegionsHeader)
			if err == nil {
				_, err = fmt.Fprintln(winOut, output.WindowsHeader)
			}
		}
		for res := range in {
			if err != nil {
				continue // drain
			}
			if res.Region == nil {
				err = errors.New("regions writer received a windows result")
				continue
			}
			err = writeRegion(regions, winOut, res.Region, chromName, dropZeros, track, tally)
		}
		if err == nil {
			err = regions.Flush()
		}
		if err == nil {
			err = winOut.Flush()
		}
		if cerr := regionsFile.Close(); err == nil {
			err = cerr
		}
		if cerr := windowsFile.Close(); err == nil {
			err = cerr
		}
		errCh <- err
	}()

	return in, errCh, tally, nil
}

func writeRegion(
	regions, winOut io.Writer,
	re *entropy.RegionEntropy,
	chromName func(int) string,
	dropZeros bool,
	track *progress.Tracker,
	tally *Tally,
) error {
	chrom := chromName(re.ChromID)
	for _, side := range []struct {
		st     *entropy.StrandStats
		strand byte
	}{{re.Fwd, '+'}, {re.Rev, '-'}} {
		if side.st == nil {
			continue
		}
		if side.st.Err != nil {
			log.Debugf("%s:%d-%d %s: %v", chrom, re.Start, re.End, re.Name, side.st.Err)
			tally.add(side.st.Err)
			track.RowFailed()
			continue
		}
		row := output.FormatRegionRowTSV(output.RegionRow(chrom, fwdOrRev(side.strand), *re, side.st.Stats))
		if _, err := fmt.Fprintln(regions, row); err != nil {
			return err
		}
		track.RowWritten()
	}
	return writeWindowRows(winOut, re.Windows, chromName, dropZeros, track, tally)
}
