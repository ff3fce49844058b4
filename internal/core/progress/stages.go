// Package progress tracks long-running batch ingestion jobs reported by the API.
package progress

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Stage is a named step of the external pipeline. Threshold is the progress
// percentage at which the stage begins.
type Stage struct {
	Name      string
	Threshold int
}

// Stages is an ordered partition of [0,100).
type Stages []Stage

var ErrInvalidStages = errors.New("invalid stage thresholds")

var defaultStageNames = []string{"upload", "scan", "split", "structure", "matching"}

// DefaultStages mirrors the pipeline: upload, OCR scan, deal split,
// structuring, matching.
func DefaultStages() Stages {
	s, _ := NewStages(defaultStageNames, []int{10, 30, 55, 80})
	return s
}

// NewStages pairs names with ascending thresholds. The first stage starts at 0,
// so len(names) must be len(thresholds)+1.
func NewStages(names []string, thresholds []int) (Stages, error) {
	if len(names) != len(thresholds)+1 {
		return nil, fmt.Errorf("%w: %d names for %d thresholds", ErrInvalidStages, len(names), len(thresholds))
	}
	prev := 0
	for i, t := range thresholds {
		if t <= prev || t >= 100 {
			return nil, fmt.Errorf("%w: threshold %d (%d) must be in (%d,100)", ErrInvalidStages, i, t, prev)
		}
		prev = t
	}

	stages := make(Stages, len(names))
	stages[0] = Stage{Name: names[0]}
	for i, t := range thresholds {
		stages[i+1] = Stage{Name: names[i+1], Threshold: t}
	}
	return stages, nil
}

// ParseThresholds reads a comma separated list such as "10,30,55,80" and
// builds stages with the default names.
func ParseThresholds(s string) (Stages, error) {
	var thresholds []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStages, s)
		}
		thresholds = append(thresholds, v)
	}
	return NewStages(defaultStageNames, thresholds)
}

// Index returns the stage i with t_i <= p < t_{i+1}; progress at or beyond the
// last threshold maps to the last stage and negative progress to the first.
func (s Stages) Index(p int) int {
	idx := 0
	for i := 1; i < len(s); i++ {
		if p >= s[i].Threshold {
			idx = i
		}
	}
	return idx
}

// Name returns the stage name for progress p.
func (s Stages) Name(p int) string {
	if len(s) == 0 {
		return ""
	}
	return s[s.Index(p)].Name
}

func (s Stages) Names() []string {
	out := make([]string, len(s))
	for i, st := range s {
		out[i] = st.Name
	}
	return out
}
