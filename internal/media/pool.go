package media

import (
	"errors"
	"sync"
)

var ErrNoWorkers = errors.New("worker pool is empty")

// WorkerPool spreads router creation over a fixed set of workers in
// cyclic order, wrapping at the pool size.
type WorkerPool struct {
	mu      sync.Mutex
	workers []Worker
	next    int
}

func NewWorkerPool(workers []Worker) *WorkerPool {
	return &WorkerPool{workers: workers}
}

func (p *WorkerPool) Next() (Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.workers) == 0 {
		return nil, ErrNoWorkers
	}
	w := p.workers[p.next]
	p.next = (p.next + 1) % len(p.workers)
	return w, nil
}

func (p *WorkerPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, w := range p.workers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.workers = nil
	return errors.Join(errs...)
}
