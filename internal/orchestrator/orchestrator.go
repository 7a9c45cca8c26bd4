// Package orchestrator fans a list of addresses out to a bounded pool of scan
// probes and collects exactly one outcome per address.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/scanfinder/internal/logging"
	"github.com/anstrom/scanfinder/internal/metrics"
	"github.com/anstrom/scanfinder/internal/scanning"
	"github.com/anstrom/scanfinder/internal/workers"
)

// Orchestrator runs scan batches against one engine.
type Orchestrator struct {
	engine    scanning.Engine
	progress  Progress
	recorder  metrics.Recorder
	rateLimit float64

	active atomic.Int32
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress sets the progress sink. The default is Discard.
func WithProgress(p Progress) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.progress = p
		}
	}
}

// WithRecorder sets the metrics recorder. The default is metrics.Nop.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithRateLimit caps probe starts per second across the pool (0 = no limit).
func WithRateLimit(perSecond float64) Option {
	return func(o *Orchestrator) {
		o.rateLimit = perSecond
	}
}

// New creates an orchestrator for engine.
func New(engine scanning.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:   engine,
		progress: Discard,
		recorder: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PoolSize returns the number of workers used for n addresses when workerCount
// are requested: min(workerCount, n), with requests below 1 treated as 1.
func PoolSize(workerCount, n int) int {
	if workerCount < 1 {
		workerCount = 1
	}
	if n < workerCount {
		return n
	}
	return workerCount
}

// RunBatch probes every address in mode and returns one outcome per address,
// in completion order. It never fails: per-host errors are part of the
// outcomes. Canceling ctx makes probes that have not started yet fail fast
// without calling the engine.
func (o *Orchestrator) RunBatch(ctx context.Context, addresses []string, workerCount int, mode scanning.Mode) Batch {
	batch := Batch{
		ID:       uuid.NewString(),
		Mode:     mode,
		Outcomes: make([]scanning.Outcome, 0, len(addresses)),
		Started:  time.Now(),
	}

	if len(addresses) == 0 {
		return batch
	}

	size := PoolSize(workerCount, len(addresses))
	log := logging.Default().WithComponent("orchestrator").WithBatchID(batch.ID)
	log.Info("Starting scan batch",
		"mode", mode,
		"targets", len(addresses),
		"workers", size)

	pool := workers.New[scanning.Outcome](workers.Config{
		Size:      size,
		QueueSize: len(addresses),
		RateLimit: o.rateLimit,
		Burst:     size,
	})
	pool.Start(ctx)
	defer pool.Shutdown()

	o.progress.Start(len(addresses), mode)

	// The queue holds the whole batch, so Submit only fails if the pool
	// itself is broken; such addresses still get an outcome.
	var rejected []scanning.Outcome
	for seq, address := range addresses {
		job := &probeJob{orchestrator: o, seq: seq, address: address, mode: mode}
		if err := pool.Submit(job); err != nil {
			log.ErrorScan("Failed to submit probe", address, err)
			rejected = append(rejected, scanning.Outcome{
				Address: address,
				Detail:  fmt.Sprintf("Error: %s", err.Error()),
				Failure: scanning.FailureError,
				Seq:     seq,
			})
		}
	}
	pool.Close()

	for result := range pool.Results() {
		o.collect(&batch, result.Value)
	}
	for _, outcome := range rejected {
		o.collect(&batch, outcome)
	}

	o.progress.Finish()
	o.recorder.SetActiveProbes(string(mode), 0)

	batch.Duration = time.Since(batch.Started)
	success := batch.SuccessCount()
	o.recorder.ObserveBatch(string(mode), batch.Len(), success, batch.Duration)

	log.Info("Scan batch complete",
		"mode", mode,
		"targets", batch.Len(),
		"success", success,
		"failure", batch.Len()-success,
		"duration", batch.Duration)

	return batch
}

// collect is the only writer of batch.Outcomes.
func (o *Orchestrator) collect(batch *Batch, outcome scanning.Outcome) {
	batch.Outcomes = append(batch.Outcomes, outcome)
	o.recorder.ObserveProbe(string(batch.Mode), outcome.Result(), outcome.Duration)
	o.progress.Advance(outcome)
}

// probeJob runs one scanning.Probe on a pool worker.
type probeJob struct {
	orchestrator *Orchestrator
	seq          int
	address      string
	mode         scanning.Mode
}

func (j *probeJob) Execute(ctx context.Context) scanning.Outcome {
	o := j.orchestrator
	o.recorder.SetActiveProbes(string(j.mode), int(o.active.Add(1)))
	defer func() {
		o.recorder.SetActiveProbes(string(j.mode), int(o.active.Add(-1)))
	}()

	outcome := scanning.Probe(ctx, o.engine, j.address, j.mode)
	outcome.Seq = j.seq
	return outcome
}

func (j *probeJob) ID() string {
	return strconv.Itoa(j.seq) + ":" + j.address
}

func (j *probeJob) Type() string {
	return string(j.mode)
}
