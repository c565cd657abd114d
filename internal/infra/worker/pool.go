// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull  = errors.New("worker queue full")
	ErrPoolClosed = errors.New("worker pool stopped")
)

// Task is one unit of asynchronous work.
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines.
// Submit never blocks: saturated queues reject the task.
type Pool struct {
	wg     sync.WaitGroup
	mu     sync.RWMutex
	jobs   chan namedTask
	closed bool
	n      int
	log    zerolog.Logger
}

type namedTask struct {
	name string
	run  Task
}

func NewPool(workers, queueSize int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	return &Pool{
		jobs: make(chan namedTask, queueSize),
		n:    workers,
		log:  logger.With().Str("component", "worker_pool").Logger(),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-p.jobs:
					if !ok {
						return
					}
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task namedTask) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Str("task", task.name).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task.run(ctx); err != nil {
		p.log.Error().Err(err).Int("worker", id).Str("task", task.name).Msg("task failed")
	}
}

// Stop rejects new tasks, lets the workers drain the queue and waits for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) Submit(name string, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- namedTask{name: name, run: task}:
		return nil
	default:
		return fmt.Errorf("submit %s: %w", name, ErrQueueFull)
	}
}
