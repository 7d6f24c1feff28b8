// internal/output/rows.go
package output

import (
	"fmt"
	"strconv"

	"mentropy/internal/entropy"
	"mentropy/internal/genome"
	"mentropy/pkg/api"
)

// WindowsHeader is the canonical header for window rows (windows TSV and the
// region-mode windows bedgraph). Keep it the single source of truth.
const WindowsHeader = "#chrom\tstart\tend\tentropy\tstrand\tnum_reads"

// RegionsHeader is the canonical header for region summary rows.
const RegionsHeader = "chrom\tstart\tend\tregion_name\tmean_entropy\tstrand\t" +
	"median_entropy\tmin_entropy\tmax_entropy\tmean_num_reads\tmin_num_reads\t" +
	"max_num_reads\tsuccessful_window_count\tfailed_window_count"

// Float renders entropy values with the shortest representation that
// round-trips at float32 precision, matching their computed precision.
func Float(v float64) string {
	return strconv.FormatFloat(float64(float32(v)), 'f', -1, 32)
}

// WindowRow converts one successful strand outcome into its stable row.
func WindowRow(chrom string, strand genome.Strand, r entropy.Result) api.WindowV1 {
	return api.WindowV1{
		Chrom:    chrom,
		Start:    r.Start,
		End:      r.End,
		Entropy:  r.Entropy,
		Strand:   strand.String(),
		NumReads: r.NumReads,
	}
}

// RegionRow converts one region side's statistics into its stable row.
func RegionRow(chrom string, strand genome.Strand, re entropy.RegionEntropy, st *entropy.DescriptiveStats) api.RegionV1 {
	return api.RegionV1{
		Chrom:                 chrom,
		Start:                 re.Start,
		End:                   re.End,
		RegionName:            re.Name,
		Strand:                strand.String(),
		MeanEntropy:           st.MeanEntropy,
		MedianEntropy:         st.MedianEntropy,
		MinEntropy:            st.MinEntropy,
		MaxEntropy:            st.MaxEntropy,
		MeanNumReads:          st.MeanNumReads,
		MinNumReads:           st.MinNumReads,
		MaxNumReads:           st.MaxNumReads,
		SuccessfulWindowCount: st.SuccessfulCount,
		FailedWindowCount:     st.FailedCount,
	}
}

// FormatWindowRowTSV returns the 6 window columns (no trailing newline).
func FormatWindowRowTSV(r api.WindowV1) string {
	return fmt.Sprintf("%s\t%d\t%d\t%s\t%s\t%d",
		r.Chrom, r.Start, r.End, Float(r.Entropy), r.Strand, r.NumReads)
}

// FormatRegionRowTSV returns the 14 region columns (no trailing newline).
func FormatRegionRowTSV(r api.RegionV1) string {
	return fmt.Sprintf("%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d",
		r.Chrom, r.Start, r.End, r.RegionName,
		Float(r.MeanEntropy), r.Strand,
		Float(r.MedianEntropy), Float(r.MinEntropy), Float(r.MaxEntropy),
		Float(r.MeanNumReads), r.MinNumReads, r.MaxNumReads,
		r.SuccessfulWindowCount, r.FailedWindowCount)
}
