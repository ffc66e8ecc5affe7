package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/autorename/autorename/internal/conversation"
	"github.com/autorename/autorename/internal/logger"
)

var ErrPoolNotStarted = errors.New("worker pool not started")

// Handler processes one inbound event.
type Handler interface {
	Handle(ctx context.Context, ev conversation.Event) error
}

// WorkerPool runs events concurrently across users while keeping each
// user's events in arrival order. Every user hashes onto one shard, and each
// shard is drained by a single goroutine.
type WorkerPool struct {
	handler Handler
	shards  []chan conversation.Event

	// Concurrency control
	maxConcurrentOps int
	opSemaphore      chan struct{}

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex
}

// WorkerPoolConfig holds configuration for the worker pool
type WorkerPoolConfig struct {
	Shards           int // Number of per-user queues, one worker each
	ShardQueueSize   int // Buffer per queue
	MaxConcurrentOps int // Events handled at the same time across all shards
	ShutdownTimeout  time.Duration
}

// DefaultWorkerPoolConfig returns a sensible default configuration
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Shards:           32,
		ShardQueueSize:   64,
		MaxConcurrentOps: 20,
		ShutdownTimeout:  30 * time.Second,
	}
}

func NewWorkerPool(handler Handler, config WorkerPoolConfig) *WorkerPool {
	if config.Shards <= 0 {
		config.Shards = 1
	}
	if config.MaxConcurrentOps <= 0 {
		config.MaxConcurrentOps = config.Shards
	}

	ctx, cancel := context.WithCancel(context.Background())
	wp := &WorkerPool{
		handler:          handler,
		shards:           make([]chan conversation.Event, config.Shards),
		maxConcurrentOps: config.MaxConcurrentOps,
		opSemaphore:      make(chan struct{}, config.MaxConcurrentOps),
		ctx:              ctx,
		cancel:           cancel,
	}
	for i := range wp.shards {
		wp.shards[i] = make(chan conversation.Event, config.ShardQueueSize)
	}
	return wp
}

// Start launches one worker per shard.
func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return fmt.Errorf("worker pool already started")
	}

	logger.Info("Starting worker pool", map[string]interface{}{
		"shards":             len(wp.shards),
		"max_concurrent_ops": wp.maxConcurrentOps,
		"shard_queue_size":   cap(wp.shards[0]),
	})

	for i, queue := range wp.shards {
		wp.wg.Add(1)
		go wp.worker(i, queue)
	}

	wp.started = true
	logger.InfoMsg("Worker pool started successfully")
	return nil
}

// Stop closes the queues and waits for queued events to drain, up to timeout.
func (wp *WorkerPool) Stop(timeout time.Duration) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.started {
		return ErrPoolNotStarted
	}

	logger.InfoMsg("Stopping worker pool...")
	for _, queue := range wp.shards {
		close(queue)
	}
	wp.started = false

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.cancel()
		logger.InfoMsg("Worker pool stopped gracefully")
		return nil
	case <-time.After(timeout):
		// abort in-flight handlers
		wp.cancel()
		logger.Warn("Worker pool shutdown timed out", nil)
		return fmt.Errorf("worker pool shutdown timed out")
	}
}

func (wp *WorkerPool) shardFor(userID int64) int {
	return int(uint64(userID) % uint64(len(wp.shards)))
}

// Submit queues ev on its user's shard. A full shard makes Submit wait, which
// holds back the update loop instead of losing the event; it gives up only
// when ctx is done.
func (wp *WorkerPool) Submit(ctx context.Context, ev conversation.Event) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.started {
		return ErrPoolNotStarted
	}

	userID := ev.Actor().ID
	shard := wp.shardFor(userID)
	queue := wp.shards[shard]

	select {
	case queue <- ev:
		logger.Debug("Event queued for processing", map[string]interface{}{
			"user_id":    userID,
			"kind":       ev.Kind(),
			"shard":      shard,
			"queue_size": len(queue),
		})
		return nil
	default:
	}

	logger.Warn("Shard queue full, waiting for room", map[string]interface{}{
		"user_id": userID,
		"kind":    ev.Kind(),
		"shard":   shard,
	})
	select {
	case queue <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shard %d: %w", shard, ctx.Err())
	}
}

func (wp *WorkerPool) worker(workerID int, queue <-chan conversation.Event) {
	defer wp.wg.Done()

	logger.Debug("Worker started", map[string]interface{}{
		"worker_id": workerID,
	})

	for ev := range queue {
		wp.process(workerID, ev)
	}

	logger.Debug("Worker stopping", map[string]interface{}{
		"worker_id": workerID,
	})
}

// process runs one event. A panic is logged and the worker carries on with
// the next event.
func (wp *WorkerPool) process(workerID int, ev conversation.Event) {
	select {
	case wp.opSemaphore <- struct{}{}:
		defer func() { <-wp.opSemaphore }()
	case <-wp.ctx.Done():
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Worker panic recovered", map[string]interface{}{
				"worker_id": workerID,
				"user_id":   ev.Actor().ID,
				"kind":      ev.Kind(),
				"panic":     r,
			})
		}
	}()

	startTime := time.Now()
	if err := wp.handler.Handle(wp.ctx, ev); err != nil {
		logger.Error("Error processing event", map[string]interface{}{
			"worker_id": workerID,
			"user_id":   ev.Actor().ID,
			"kind":      ev.Kind(),
			"error":     err.Error(),
		})
	}

	logger.Debug("Event processed", map[string]interface{}{
		"worker_id": workerID,
		"user_id":   ev.Actor().ID,
		"duration":  time.Since(startTime).String(),
	})
}

// GetStats returns current worker pool statistics
func (wp *WorkerPool) GetStats() map[string]interface{} {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	queued := 0
	for _, queue := range wp.shards {
		queued += len(queue)
	}

	return map[string]interface{}{
		"started":            wp.started,
		"shards":             len(wp.shards),
		"queued_events":      queued,
		"shard_capacity":     cap(wp.shards[0]),
		"active_operations":  len(wp.opSemaphore),
		"max_concurrent_ops": wp.maxConcurrentOps,
	}
}
