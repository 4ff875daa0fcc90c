package converter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/harliandi/heicconv/pkg/metrics"
)

var (
	// ErrPoolBusy is returned when the worker pool is at capacity
	ErrPoolBusy = errors.New("worker pool is busy, please retry later")
	// ErrPoolStopped is returned for submissions after Stop
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// job is one queued conversion.
type job struct {
	ctx    context.Context
	data   []byte
	opts   Options
	result chan<- jobResult
}

type jobResult struct {
	res *Result
	err error
}

// WorkerPool bounds how many conversions run at once. The queue holds twice
// as many jobs as there are workers; beyond that Submit fails fast.
type WorkerPool struct {
	conv    *Converter
	jobs    chan job
	workers int
	logger  zerolog.Logger

	active atomic.Int64
	mu     sync.RWMutex
	closed bool

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(conv *Converter, workers int, logger zerolog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		conv:    conv,
		jobs:    make(chan job, workers*2),
		workers: workers,
		logger:  logger,
	}
}

// Start starts the worker goroutines. Later calls do nothing.
func (p *WorkerPool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info().Int("workers", p.workers).Msg("starting worker pool")
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		p.active.Add(1)
		p.updateMetrics()

		res, err := p.conv.ConvertBytes(j.ctx, j.data, j.opts)

		p.active.Add(-1)
		p.updateMetrics()

		// result is buffered; the submitter may already have given up
		select {
		case j.result <- jobResult{res: res, err: err}:
		default:
			p.logger.Debug().Int("worker", id).Msg("result dropped, submitter gone")
		}
	}
}

// Submit queues a conversion and waits for it. It returns ErrPoolBusy
// immediately when the queue is full, and a timeout ConversionError when ctx
// ends before the result arrives.
func (p *WorkerPool) Submit(ctx context.Context, data []byte, opts Options) (*Result, error) {
	p.Start()

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolStopped
	}

	resultChan := make(chan jobResult, 1)
	select {
	case p.jobs <- job{ctx: ctx, data: data, opts: opts, result: resultChan}:
		p.mu.RUnlock()
	default:
		p.mu.RUnlock()
		return nil, ErrPoolBusy
	}
	p.updateMetrics()

	select {
	case <-ctx.Done():
		return nil, &ConversionError{Op: "timeout", Err: ctx.Err()}
	case r := <-resultChan:
		return r.res, r.err
	}
}

// Stop stops accepting work and waits for queued jobs to finish.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()

		p.wg.Wait()
		p.logger.Info().Msg("worker pool stopped")
	})
}

// Stats returns the number of running and queued jobs.
func (p *WorkerPool) Stats() (active, queued int) {
	return int(p.active.Load()), len(p.jobs)
}

func (p *WorkerPool) updateMetrics() {
	active, queued := p.Stats()
	metrics.UpdateWorkerPoolMetrics(active, queued)
}
