// Package workers provides a bounded worker pool for concurrent probes in
// scanfinder. Every submitted job produces exactly one result on the pool's
// result channel; jobs are never dropped, even when the pool's context is
// canceled, so a caller can always account for what it submitted.
package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/anstrom/scanfinder/internal/logging"
)

var (
	// ErrPoolClosed is returned when submitting after Close.
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolStopped is returned when a full queue cannot accept a job
	// because the pool's context has ended.
	ErrPoolStopped = errors.New("worker pool is shutting down")
	// ErrPoolNotStarted is returned when submitting before Start.
	ErrPoolNotStarted = errors.New("worker pool is not started")
)

// Job represents a unit of work to be executed by a worker.
type Job[R any] interface {
	// Execute performs the job. It must return even when ctx is done.
	Execute(ctx context.Context) R
	// ID returns a unique identifier for the job.
	ID() string
	// Type returns the job type for logging.
	Type() string
}

// Result carries the value produced by one job.
type Result[R any] struct {
	JobID    string
	JobType  string
	Value    R
	Duration time.Duration
	WorkerID int
}

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines to create.
	Size int
	// QueueSize is the job queue capacity. Sizing it to the number of jobs
	// lets every Submit return immediately.
	QueueSize int
	// RateLimit caps how many jobs per second workers start (0 = no limit).
	RateLimit float64
	// Burst is the number of jobs that may start at once under RateLimit.
	Burst int
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:      10,
		QueueSize: 100,
		RateLimit: 0,
		Burst:     1,
	}
}

// Pool manages a fixed set of worker goroutines.
type Pool[R any] struct {
	config  Config
	jobs    chan Job[R]
	results chan Result[R]
	limiter *rate.Limiter

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
	closed    atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
}

// New creates a new worker pool. Non-positive sizes are raised to 1.
func New[R any](config Config) *Pool[R] {
	if config.Size < 1 {
		config.Size = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 1
	}
	if config.Burst < 1 {
		config.Burst = 1
	}

	pool := &Pool[R]{
		config:  config,
		jobs:    make(chan Job[R], config.QueueSize),
		results: make(chan Result[R], config.QueueSize),
	}

	if config.RateLimit > 0 {
		pool.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst)
	}

	return pool
}

// Start launches the workers. Jobs receive a context derived from ctx.
func (p *Pool[R]) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.ctx, p.cancel = context.WithCancel(ctx)

		logging.Debug("Starting worker pool",
			"worker_count", p.config.Size,
			"queue_size", p.config.QueueSize,
			"rate_limit", p.config.RateLimit)

		for i := 0; i < p.config.Size; i++ {
			p.wg.Add(1)
			go p.work(i)
		}

		go func() {
			p.wg.Wait()
			close(p.results)
		}()

		p.started.Store(true)
	})
}

// Submit queues a job. It blocks only while the queue is full.
func (p *Pool[R]) Submit(job Job[R]) error {
	if !p.started.Load() {
		return ErrPoolNotStarted
	}
	if p.closed.Load() {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		p.submitted.Add(1)
		return nil
	default:
	}

	select {
	case p.jobs <- job:
		p.submitted.Add(1)
		return nil
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

// Close stops accepting jobs. Workers finish everything already queued and
// the results channel is closed afterwards. Close must not race with Submit.
func (p *Pool[R]) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.jobs)
	})
}

// Results returns the channel on which one Result per job is delivered.
func (p *Pool[R]) Results() <-chan Result[R] {
	return p.results
}

// Wait blocks until every worker has exited.
func (p *Pool[R]) Wait() {
	p.wg.Wait()
}

// Shutdown cancels the pool context, closes the queue and waits for the
// workers. Queued jobs still run, with a canceled context.
func (p *Pool[R]) Shutdown() {
	if p.cancel != nil {
		p.cancel()
	}
	p.Close()
	p.Wait()
	logging.Debug("Worker pool shutdown completed",
		"submitted", p.submitted.Load(),
		"completed", p.completed.Load())
}

// Size returns the number of workers.
func (p *Pool[R]) Size() int {
	return p.config.Size
}

func (p *Pool[R]) work(id int) {
	defer p.wg.Done()

	logging.Debug("Worker started", "worker_id", id)
	defer logging.Debug("Worker stopped", "worker_id", id)

	// Draining the queue regardless of cancellation keeps one result per job.
	for job := range p.jobs {
		p.execute(id, job)
	}
}

func (p *Pool[R]) execute(id int, job Job[R]) {
	if p.limiter != nil {
		if err := p.limiter.Wait(p.ctx); err != nil {
			logging.Debug("Rate limiter wait aborted", "job_id", job.ID(), "error", err)
		}
	}

	start := time.Now()
	value := job.Execute(p.ctx)
	duration := time.Since(start)

	p.completed.Add(1)
	p.results <- Result[R]{
		JobID:    job.ID(),
		JobType:  job.Type(),
		Value:    value,
		Duration: duration,
		WorkerID: id,
	}

	logging.Debug("Job completed",
		"job_id", job.ID(),
		"job_type", job.Type(),
		"duration", duration,
		"worker_id", id)
}
