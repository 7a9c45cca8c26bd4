// Package report aggregates scan batches into summaries, persists them in
// the scanfinder text formats and renders console tables.
package report

import (
	"github.com/anstrom/scanfinder/internal/orchestrator"
	"github.com/anstrom/scanfinder/internal/scanning"
)

// Summary counts the outcomes of one batch.
// Success + Failure == Total == number of outcomes.
type Summary struct {
	Mode    scanning.Mode
	Total   int
	Success int
	Failure int
}

// Summarize counts successes and failures in batch.
func Summarize(batch orchestrator.Batch) Summary {
	success := batch.SuccessCount()
	return Summary{
		Mode:    batch.Mode,
		Total:   batch.Len(),
		Success: success,
		Failure: batch.Len() - success,
	}
}

// Reachable returns the addresses of successful outcomes in input order.
func Reachable(batch orchestrator.Batch) []string {
	successful := batch.Successful()
	out := make([]string, 0, len(successful))
	for _, o := range successful {
		out = append(out, o.Address)
	}
	return out
}
