package storefront

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultTaskQueue = 256

// Task is one unit of responder work, named for logging.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// WorkerPool runs request handlers off the NATS dispatch goroutine.
type WorkerPool struct {
	tasks  chan Task
	logger *zap.Logger

	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func NewWorkerPool(size int, logger *zap.Logger) *WorkerPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	wp := &WorkerPool{
		tasks:  make(chan Task, defaultTaskQueue),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	wp.workers.Add(size)
	for i := 0; i < size; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.workers.Done()
	for task := range wp.tasks {
		if err := task.Run(wp.ctx); err != nil {
			wp.logger.Error("Failed to process task",
				zap.String("task", task.Name),
				zap.Error(err))
		}
	}
}

// Submit queues task, blocking while the queue is full. It reports false
// once the pool has been shut down.
func (wp *WorkerPool) Submit(task Task) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		wp.logger.Warn("Dropping task after shutdown", zap.String("task", task.Name))
		return false
	}
	wp.tasks <- task
	return true
}

// Shutdown stops accepting tasks, runs the queued ones and waits for the
// workers to exit.
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.tasks)
	wp.mu.Unlock()

	wp.workers.Wait()
	wp.cancel()
}
