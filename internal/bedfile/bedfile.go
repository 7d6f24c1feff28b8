// internal/bedfile/bedfile.go
package bedfile

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/vertgenlab/gonomics/fileio"
)

// Region is one parsed BED line. Three-column lines synthesize the name as
// "chrom:start-end"; four or more columns keep the literal name field,
// spaces included.
type Region struct {
	Chrom string
	Start int
	End   int
	Name  string
}

// ParseLine parses a single BED region line.
func ParseLine(line string) (Region, error) {
	fields := strings.Split(strings.TrimRight(line, "\n"), "\t")
	if len(fields) < 3 {
		return Region{}, fmt.Errorf("BED line %q: need at least 3 columns", line)
	}
	chrom := fields[0]
	if chrom == "" {
		return Region{}, fmt.Errorf("BED line %q: empty chrom", line)
	}
	start, err := strconv.Atoi(fields[1])
	if err != nil {
		return Region{}, fmt.Errorf("BED line %q: bad start: %w", line, err)
	}
	end, err := strconv.Atoi(fields[2])
	if err != nil {
		return Region{}, fmt.Errorf("BED line %q: bad end: %w", line, err)
	}
	if end <= start {
		return Region{}, fmt.Errorf("BED line %q: end must be after start", line)
	}
	name := fmt.Sprintf("%s:%d-%d", chrom, start, end)
	if len(fields) >= 4 && fields[3] != "" {
		name = fields[3]
	}
	return Region{Chrom: chrom, Start: start, End: end, Name: name}, nil
}

// Read parses a (possibly gzipped) BED region file. Malformed lines are
// counted by failure reason and logged at debug, never fatal; it is an
// error only when no valid region remains.
func Read(path string) ([]Region, map[string]int, error) {
	reader := fileio.EasyOpen(path)
	defer reader.Close()

	var regions []Region
	failures := make(map[string]int)
	for line, done := fileio.EasyNextRealLine(reader); !done; line, done = fileio.EasyNextRealLine(reader) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		region, err := ParseLine(line)
		if err != nil {
			failures[reason(err)]++
			log.Debugf("skipping region line: %v", err)
			continue
		}
		regions = append(regions, region)
	}

	if len(failures) > 0 {
		log.Debugf("failure reasons while parsing regions BED file %s:", path)
		for cause, count := range failures {
			log.Debugf("\t%s: %d", cause, count)
		}
	}
	if len(regions) == 0 {
		return nil, failures, fmt.Errorf("no valid regions parsed from %s", path)
	}
	return regions, failures, nil
}

// reason strips the per-line detail so equivalent failures tally together.
func reason(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
