// Package dispatch runs operation execution fan-out on a bounded pool of
// goroutines so a large distributed operation cannot stall the
// coordinator's call path.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devrev/agentmesh/internal/model"
	"go.uber.org/zap"
)

// Job is one unit of dispatch work: delivering an operation (or one
// partition of it) to a target component.
type Job struct {
	OperationID model.OperationID
	Target      model.ComponentID
	Run         func(context.Context) error
}

// Config holds dispatch pool configuration.
type Config struct {
	Workers   int
	QueueSize int
}

// Pool is a bounded worker pool executing dispatch jobs with panic
// recovery.
type Pool struct {
	cfg      Config
	jobs     chan Job
	logger   *zap.Logger
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once

	activeWorkers int32
	submitted     uint64
	completed     uint64
	failed        uint64
	rejected      uint64
}

// NewPool creates and starts a dispatch pool.
func NewPool(cfg Config, logger *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		cfg:    cfg,
		jobs:   make(chan Job, cfg.QueueSize),
		logger: logger,
		stopCh: make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	logger.Info("Dispatch pool started",
		zap.Int("workers", cfg.Workers),
		zap.Int("queue_size", cfg.QueueSize))

	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case job := <-p.jobs:
			p.execute(id, job)
		}
	}
}

func (p *Pool) execute(workerID int, job Job) {
	atomic.AddInt32(&p.activeWorkers, 1)
	defer atomic.AddInt32(&p.activeWorkers, -1)

	start := time.Now()
	err := p.safeRun(job)

	if err != nil {
		atomic.AddUint64(&p.failed, 1)
		p.logger.Error("Dispatch failed",
			zap.Int("worker_id", workerID),
			zap.String("operation_id", string(job.OperationID)),
			zap.String("target", string(job.Target)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}

	atomic.AddUint64(&p.completed, 1)
	p.logger.Debug("Dispatch completed",
		zap.Int("worker_id", workerID),
		zap.String("operation_id", string(job.OperationID)),
		zap.String("target", string(job.Target)),
		zap.Duration("duration", time.Since(start)))
}

func (p *Pool) safeRun(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panicked: %v", r)
		}
	}()
	if job.Run == nil {
		return nil
	}
	return job.Run(context.Background())
}

// Submit enqueues a job without blocking. Returns an error when the pool
// is stopped or its queue is full.
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.stopCh:
		atomic.AddUint64(&p.rejected, 1)
		return fmt.Errorf("dispatch pool is stopped")
	default:
	}

	select {
	case p.jobs <- job:
		atomic.AddUint64(&p.submitted, 1)
		return nil
	default:
		atomic.AddUint64(&p.rejected, 1)
		return fmt.Errorf("dispatch queue is full")
	}
}

// Stop drains the pool, waiting up to timeout for in-flight jobs.
func (p *Pool) Stop(timeout time.Duration) error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stopCh)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Info("Dispatch pool stopped")
		case <-time.After(timeout):
			err = fmt.Errorf("dispatch pool stop timed out after %v", timeout)
			p.logger.Warn("Dispatch pool stop timeout")
		}
	})
	return err
}

// Stats reports pool counters.
type Stats struct {
	ActiveWorkers int
	Queued        int
	Submitted     uint64
	Completed     uint64
	Failed        uint64
	Rejected      uint64
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		ActiveWorkers: int(atomic.LoadInt32(&p.activeWorkers)),
		Queued:        len(p.jobs),
		Submitted:     atomic.LoadUint64(&p.submitted),
		Completed:     atomic.LoadUint64(&p.completed),
		Failed:        atomic.LoadUint64(&p.failed),
		Rejected:      atomic.LoadUint64(&p.rejected),
	}
}
