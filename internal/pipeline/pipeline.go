// internal/pipeline/pipeline.go
//
// Batch driver: consumes scanner batches, fetches alignments for each window
// set's covering interval (in parallel across sources), assigns reads to
// windows (in parallel over disjoint window indices), computes entropy (data
// -parallel map) and folds region aggregates. Results are emitted in scanner
// order, so output within a contig or region is already position-sorted.
package pipeline

import (
	"context"
	"sync"

	"mentropy/internal/entropy"
	"mentropy/internal/modbam"
	"mentropy/internal/modcall"
	"mentropy/internal/progress"
	"mentropy/internal/scanner"
	"mentropy/internal/windows"

	log "github.com/sirupsen/logrus"
	"github.com/vertgenlab/gonomics/sam"
)

// Source is an indexed alignment source, queried independently per input
// file. A fetch error drops that source for the batch, never the run.
type Source interface {
	Path() string
	Fetch(chrom string, start, end int) ([]sam.Sam, error)
}

type Config struct {
	Threads              int // worker goroutines (>=1)
	MinCoverage          int
	MaxFilteredPositions int
}

// Result is one emitted unit: per-window outcomes in sliding-window mode,
// or one aggregated region.
type Result struct {
	Windows []entropy.WindowEntropy
	Region  *entropy.RegionEntropy
}

// Run drives the scanner to exhaustion, emitting one Result per window set.
// emit runs on the calling goroutine, in scan order.
func Run(
	ctx context.Context,
	cfg Config,
	sc *scanner.Scanner,
	sources []Source,
	caller *modcall.Caller,
	chromName func(int) string,
	track *progress.Tracker,
	emit func(Result) error,
) error {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := sc.NextBatch()
		if len(batch) == 0 {
			return nil
		}
		for _, set := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(processSet(cfg, set, sources, caller, chromName, track)); err != nil {
				return err
			}
		}
	}
}

func processSet(
	cfg Config,
	set *windows.Set,
	sources []Source,
	caller *modcall.Caller,
	chromName func(int) string,
	track *progress.Tracker,
) Result {
	start, end := set.Range()
	chrom := chromName(set.ChromID)

	// one fetch per alignment source, in parallel
	perSource := make([][]modbam.ReadCalls, len(sources))
	var wg sync.WaitGroup
	wg.Add(len(sources))
	for i, src := range sources {
		go func(i int, src Source) {
			defer wg.Done()
			reads, err := src.Fetch(chrom, start, end+1)
			if err != nil {
				log.Warnf("dropping %s for %s:%d-%d: %v", src.Path(), chrom, start, end+1, err)
				return
			}
			calls := make([]modbam.ReadCalls, 0, len(reads))
			for _, rec := range reads {
				rc, err := modbam.FromRecord(rec, caller)
				if err != nil {
					log.Debugf("skipping read: %v", err)
					continue
				}
				calls = append(calls, rc)
			}
			perSource[i] = calls
		}(i, src)
	}
	wg.Wait()

	var messages []modbam.ReadCalls
	for _, calls := range perSource {
		messages = append(messages, calls...)
	}

	// window updates are commutative and disjoint per window, so the window
	// arena is partitioned by index across workers with no locking
	parallelIndices(len(set.Windows), cfg.Threads, func(i int) {
		w := set.Windows[i]
		for _, msg := range messages {
			w.AddRead(msg.Calls, msg.RefStart, msg.RefEnd, msg.Strand, cfg.MaxFilteredPositions)
		}
	})

	wes := make([]entropy.WindowEntropy, len(set.Windows))
	parallelIndices(len(set.Windows), cfg.Threads, func(i int) {
		wes[i] = entropy.Compute(set.Windows[i], set.ChromID, cfg.MinCoverage)
	})

	if track != nil {
		track.Advance(end + 1 - start)
	}

	if set.RegionName != "" {
		region := entropy.Aggregate(set.ChromID, start, end+1, set.RegionName, wes)
		return Result{Region: &region}
	}
	return Result{Windows: wes}
}

// parallelIndices fans fn out over [0, n) on up to threads workers.
func parallelIndices(n, threads int, fn func(i int)) {
	if threads > n {
		threads = n
	}
	if threads <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	jobs := make(chan int, threads*2)
	var wg sync.WaitGroup
	wg.Add(threads)
	for w := 0; w < threads; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
