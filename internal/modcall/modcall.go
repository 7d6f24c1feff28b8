// internal/modcall/modcall.go
package modcall

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vertgenlab/gonomics/dna"
)

// Kind classifies a per-position modification call.
type Kind uint8

const (
	Canonical Kind = iota
	Modified
	Filtered
)

// Call is the outcome of thresholding one position's modification
// probability vector. Code is set only for Modified calls and holds the
// modification code from the MM tag ('m', 'h', or a numeric ChEBI id).
type Call struct {
	Kind Kind
	Code string
}

func (c Call) String() string {
	switch c.Kind {
	case Canonical:
		return "canonical"
	case Modified:
		return "modified(" + c.Code + ")"
	default:
		return "filtered"
	}
}

// Caller turns a probability vector into a Call: the most probable outcome
// wins, and it must clear the pass threshold (per-code override first, then
// the default) or the position is Filtered. Deterministic in its inputs and
// safe for concurrent use.
type Caller struct {
	defaultThreshold float64
	perCode          map[string]float64
}

func NewCaller(threshold float64, perCode map[string]float64) (*Caller, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("filter threshold %v out of [0,1]", threshold)
	}
	for code, t := range perCode {
		if t < 0 || t > 1 {
			return nil, fmt.Errorf("threshold %v for code %q out of [0,1]", t, code)
		}
	}
	return &Caller{defaultThreshold: threshold, perCode: perCode}, nil
}

func (c *Caller) threshold(code string) float64 {
	if t, ok := c.perCode[code]; ok {
		return t
	}
	return c.defaultThreshold
}

// Call picks the argmax over {canonical} ∪ mods. The canonical probability
// is the residual 1 - Σ mod probabilities, clamped at 0. Ties prefer the
// lexically smallest mod code so the result is order-independent.
func (c *Caller) Call(base dna.Base, modProbs map[string]float64) Call {
	_ = base // the canonical base does not change thresholding
	var sum float64
	bestCode := ""
	bestProb := -1.0
	for code, p := range modProbs {
		sum += p
		if p > bestProb || (p == bestProb && code < bestCode) {
			bestCode, bestProb = code, p
		}
	}
	canonical := 1 - sum
	if canonical < 0 {
		canonical = 0
	}
	if canonical >= bestProb {
		if canonical < c.threshold("") {
			return Call{Kind: Filtered}
		}
		return Call{Kind: Canonical}
	}
	if bestProb < c.threshold(bestCode) {
		return Call{Kind: Filtered}
	}
	return Call{Kind: Modified, Code: bestCode}
}

// ParseThresholdSpec parses the CLI form "CODE:VALUE", e.g. "m:0.75".
func ParseThresholdSpec(spec string) (string, float64, error) {
	i := strings.LastIndexByte(spec, ':')
	if i <= 0 || i == len(spec)-1 {
		return "", 0, fmt.Errorf("mod threshold %q: want CODE:VALUE", spec)
	}
	v, err := strconv.ParseFloat(spec[i+1:], 64)
	if err != nil {
		return "", 0, fmt.Errorf("mod threshold %q: bad value: %w", spec, err)
	}
	return spec[:i], v, nil
}
