// pkg/api/entropy_v1.go
package api

// WindowV1 is the stable schema for one per-window entropy row.
// Keep fields, names, and types stable. Add new fields only with ",omitempty".
type WindowV1 struct {
	Chrom    string  `json:"chrom"`
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Entropy  float64 `json:"entropy"`
	Strand   string  `json:"strand"` // "+" | "-"
	NumReads int     `json:"num_reads"`
}

// RegionV1 is the stable schema for one per-region summary row.
type RegionV1 struct {
	Chrom      string  `json:"chrom"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	RegionName string  `json:"region_name"`
	Strand     string  `json:"strand"` // "+" | "-"

	MeanEntropy   float64 `json:"mean_entropy"`
	MedianEntropy float64 `json:"median_entropy"`
	MinEntropy    float64 `json:"min_entropy"`
	MaxEntropy    float64 `json:"max_entropy"`

	MeanNumReads float64 `json:"mean_num_reads"`
	MinNumReads  int     `json:"min_num_reads"`
	MaxNumReads  int     `json:"max_num_reads"`

	SuccessfulWindowCount int `json:"successful_window_count"`
	FailedWindowCount     int `json:"failed_window_count"`
}
