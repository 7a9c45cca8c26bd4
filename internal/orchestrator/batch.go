package orchestrator

import (
	"sort"
	"time"

	"github.com/anstrom/scanfinder/internal/scanning"
)

// Batch holds exactly one outcome per address submitted to RunBatch, in the
// order the probes completed.
type Batch struct {
	ID       string
	Mode     scanning.Mode
	Outcomes []scanning.Outcome
	Started  time.Time
	Duration time.Duration
}

// Len returns the number of outcomes.
func (b Batch) Len() int {
	return len(b.Outcomes)
}

// InInputOrder returns a copy of the outcomes sorted by submission index.
func (b Batch) InInputOrder() []scanning.Outcome {
	out := make([]scanning.Outcome, len(b.Outcomes))
	copy(out, b.Outcomes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Successful returns the successful outcomes in input order.
func (b Batch) Successful() []scanning.Outcome {
	ordered := b.InInputOrder()
	out := make([]scanning.Outcome, 0, len(ordered))
	for _, o := range ordered {
		if o.Success {
			out = append(out, o)
		}
	}
	return out
}

// SuccessCount returns the number of successful outcomes.
func (b Batch) SuccessCount() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}
