// internal/progress/progress.go
package progress

import (
	"sync/atomic"

	"github.com/cheggaaa/pb/v3"
)

// Tracker carries the scan progress bar plus the rows-written/rows-failed
// counters. With suppress set everything degrades to silent counting.
type Tracker struct {
	bar     *pb.ProgressBar
	written atomic.Int64
	failed  atomic.Int64
}

// Start begins tracking a scan over total bases; total <= 0 or suppress
// disables the bar.
func Start(total int, suppress bool) *Tracker {
	t := &Tracker{}
	if !suppress && total > 0 {
		t.bar = pb.Full.Start64(int64(total))
		t.bar.Set(pb.Bytes, false)
	}
	return t
}

// Advance moves the scan bar by n bases.
func (t *Tracker) Advance(n int) {
	if t.bar != nil {
		t.bar.Add64(int64(n))
	}
}

func (t *Tracker) RowWritten()        { t.written.Add(1) }
func (t *Tracker) RowFailed()         { t.failed.Add(1) }
func (t *Tracker) RowsWritten() int64 { return t.written.Load() }
func (t *Tracker) RowsFailed() int64  { return t.failed.Load() }

func (t *Tracker) Finish() {
	if t.bar != nil {
		t.bar.SetCurrent(t.bar.Total())
		t.bar.Finish()
	}
}
