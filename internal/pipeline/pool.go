package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/a11yscan/a11yscan/internal/config"
	"github.com/a11yscan/a11yscan/internal/model"
)

var (
	// ErrPoolClosed is returned when submitting to a pool that is
	// shutting down, and recorded on pending tasks dropped at shutdown.
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrTaskTimeout is recorded on a task whose execution exceeded the
	// task timeout. The worker is reclaimed; the task is not retried.
	ErrTaskTimeout = errors.New("task execution timed out")

	// ErrAwaitTimeout is returned when AwaitResult gives up waiting.
	ErrAwaitTimeout = errors.New("timed out waiting for task result")

	// ErrUnknownTask is returned for task IDs the pool has never seen.
	ErrUnknownTask = errors.New("unknown task id")

	// ErrTaskCancelled is recorded on pending tasks dropped by
	// CancelPending or CancelAllPending.
	ErrTaskCancelled = errors.New("task cancelled before execution")

	// ErrWorkerCount is returned by Resize for counts outside the
	// supported range.
	ErrWorkerCount = errors.New("worker count out of range")
)

// AnalyzeFunc executes the analysis for one task. The context carries
// the task timeout; implementations should honor it.
type AnalyzeFunc func(ctx context.Context, task *model.AnalysisTask) (*model.PageReport, error)

// WorkerMetrics is a point-in-time view of one worker, recomputed on
// every read.
type WorkerMetrics struct {
	WorkerID              int
	TasksProcessed        int64
	AverageProcessingTime time.Duration
	ErrorRate             float64
	Uptime                time.Duration
}

// workerState is the pool-internal record for one worker goroutine.
type workerState struct {
	id              int
	startedAt       time.Time
	busy            bool
	tasksProcessed  int64
	totalProcessing time.Duration
	taskErrors      int64
}

// WorkerPool executes analysis tasks with a bounded, resizable set of
// workers. Tasks are dispatched by priority (high before medium before
// low) with FIFO order among equals; failed tasks are retried at the
// front of the queue until their retry budget is spent.
//
// Design decision: all queue and worker state sits behind one mutex
// with a condition variable waking idle workers. A blocked worker
// consumes nothing, and a single lock keeps the four task collections
// consistent without fine-grained coordination. The condition variable
// replaces slot polling: submitters signal, workers wait.
type WorkerPool struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue   *taskQueue
	analyze AnalyzeFunc
	logger  *slog.Logger
	metrics *Metrics

	taskTimeout time.Duration
	baseCtx     context.Context

	target       int
	alive        int
	nextWorkerID int
	workers      map[int]*workerState

	started bool
	closed  bool
	wg      sync.WaitGroup
}

// PoolOption configures a WorkerPool.
type PoolOption func(*WorkerPool)

// WithPoolLogger sets a custom logger for the pool.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *WorkerPool) {
		p.logger = logger
	}
}

// WithWorkers sets the initial worker count, clamped to the supported
// range.
func WithWorkers(n int) PoolOption {
	return func(p *WorkerPool) {
		if n >= config.MinWorkers && n <= config.MaxWorkers {
			p.target = n
		}
	}
}

// WithTaskTimeout bounds the execution time of a single task.
func WithTaskTimeout(d time.Duration) PoolOption {
	return func(p *WorkerPool) {
		if d > 0 {
			p.taskTimeout = d
		}
	}
}

// WithPoolMetrics attaches prometheus collectors to the pool.
func WithPoolMetrics(m *Metrics) PoolOption {
	return func(p *WorkerPool) {
		p.metrics = m
	}
}

// NewWorkerPool creates a pool executing analyze for every task. Call
// Start to launch the workers and Shutdown to stop them.
func NewWorkerPool(analyze AnalyzeFunc, opts ...PoolOption) *WorkerPool {
	p := &WorkerPool{
		queue:       newTaskQueue(),
		analyze:     analyze,
		target:      config.DefaultWorkers,
		taskTimeout: config.DefaultTaskTimeout,
		workers:     make(map[int]*workerState),
	}
	p.cond = sync.NewCond(&p.mu)

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// Start launches the initial workers. The context is the base for every
// task execution; cancelling it aborts in-flight analyses.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.closed {
		return
	}
	p.started = true
	p.baseCtx = ctx

	for p.alive < p.target {
		p.spawnLocked()
	}

	p.logger.Debug("worker pool started", "workers", p.target)
}

// spawnLocked adds one worker. Caller holds p.mu.
func (p *WorkerPool) spawnLocked() {
	w := &workerState{
		id:        p.nextWorkerID,
		startedAt: time.Now(),
	}
	p.nextWorkerID++
	p.workers[w.id] = w
	p.alive++
	p.metrics.SetWorkers(p.alive)

	p.wg.Add(1)
	go p.run(w)
}

// retireLocked removes a worker from the books. Caller holds p.mu.
func (p *WorkerPool) retireLocked(w *workerState) {
	delete(p.workers, w.id)
	p.alive--
	p.metrics.SetWorkers(p.alive)
}

// Submit validates and enqueues a task, returning its ID. Tasks with a
// missing URL or unknown type are rejected here and never enqueued.
func (p *WorkerPool) Submit(task *model.AnalysisTask) (string, error) {
	if err := task.Validate(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", ErrPoolClosed
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	p.queue.pushBack(task)
	p.metrics.SetQueueDepth(len(p.queue.pending))
	p.cond.Signal()

	p.logger.Debug("task submitted",
		"task_id", task.ID,
		"url", task.URL,
		"priority", task.Priority.String(),
	)

	return task.ID, nil
}

// AwaitResult blocks until the task terminates, the timeout elapses, or
// the context is cancelled.
func (p *WorkerPool) AwaitResult(ctx context.Context, taskID string, timeout time.Duration) (*TaskResult, error) {
	p.mu.Lock()
	if r, ok := p.queue.result(taskID); ok {
		p.mu.Unlock()
		return r, nil
	}
	ch, ok := p.queue.waiter(taskID)
	p.mu.Unlock()

	if !ok {
		return nil, ErrUnknownTask
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
	case <-timer.C:
		return nil, ErrAwaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.queue.result(taskID)
	if !ok {
		return nil, ErrUnknownTask
	}
	return r, nil
}

// CancelPending drops a task that has not started. A task already
// processing runs to completion or timeout and cannot be interrupted.
func (p *WorkerPool) CancelPending(taskID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.queue.cancel(taskID, ErrTaskCancelled) {
		p.metrics.SetQueueDepth(len(p.queue.pending))
		return nil
	}
	if _, ok := p.queue.processing[taskID]; ok {
		return errors.New("task is already processing")
	}
	if _, ok := p.queue.result(taskID); ok {
		return errors.New("task already terminated")
	}
	return ErrUnknownTask
}

// CancelAllPending drops every pending task, returning how many were
// dropped.
func (p *WorkerPool) CancelAllPending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	dropped := p.queue.cancelAll(ErrTaskCancelled)
	p.metrics.SetQueueDepth(0)
	return dropped
}

// Resize changes the worker count within the supported range. Scaling
// up adds idle workers immediately. Scaling down retires idle workers
// immediately and busy workers once their current task completes; no
// task is interrupted.
func (p *WorkerPool) Resize(n int) error {
	if n < config.MinWorkers || n > config.MaxWorkers {
		return ErrWorkerCount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.target = n
	if p.started {
		for p.alive < p.target {
			p.spawnLocked()
		}
	}
	p.cond.Broadcast()

	p.logger.Debug("worker pool resized", "workers", n)
	return nil
}

// Workers returns the current number of live workers.
func (p *WorkerPool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// TaskTimeout returns the per-attempt deadline tasks run under.
func (p *WorkerPool) TaskTimeout() time.Duration {
	return p.taskTimeout
}

// Counts returns a snapshot of the four task collections.
func (p *WorkerPool) Counts() (pending, processing, completed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue.pending), len(p.queue.processing),
		len(p.queue.completed), len(p.queue.failed)
}

// Results returns terminal results for every completed and failed task.
func (p *WorkerPool) Results() []*TaskResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]*TaskResult, 0, len(p.queue.completed)+len(p.queue.failed))
	for _, r := range p.queue.completed {
		results = append(results, r)
	}
	for _, r := range p.queue.failed {
		results = append(results, r)
	}
	return results
}

// WorkerMetricsSnapshot recomputes per-worker metrics from the raw
// counters.
func (p *WorkerPool) WorkerMetricsSnapshot() []WorkerMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	snapshot := make([]WorkerMetrics, 0, len(p.workers))
	for _, w := range p.workers {
		m := WorkerMetrics{
			WorkerID:       w.id,
			TasksProcessed: w.tasksProcessed,
			Uptime:         now.Sub(w.startedAt),
		}
		if w.tasksProcessed > 0 {
			m.AverageProcessingTime = w.totalProcessing / time.Duration(w.tasksProcessed)
			m.ErrorRate = float64(w.taskErrors) / float64(w.tasksProcessed)
		}
		snapshot = append(snapshot, m)
	}

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].WorkerID < snapshot[j].WorkerID
	})
	return snapshot
}

// Shutdown stops accepting tasks, drops pending tasks, waits for every
// processing task to reach a terminal state, then releases the workers.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	dropped := p.queue.cancelAll(ErrPoolClosed)
	p.metrics.SetQueueDepth(0)
	p.cond.Broadcast()
	p.mu.Unlock()

	if dropped > 0 {
		p.logger.Debug("dropped pending tasks at shutdown", "count", dropped)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the worker loop.
func (p *WorkerPool) run(w *workerState) {
	defer p.wg.Done()

	for {
		task, ok := p.nextTask(w)
		if !ok {
			return
		}

		p.execute(w, task)

		p.mu.Lock()
		w.busy = false
		if p.alive > p.target {
			p.retireLocked(w)
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}

// nextTask blocks until a task is available, the worker is retired by a
// scale-down, or the pool shuts down.
func (p *WorkerPool) nextTask(w *workerState) (*model.AnalysisTask, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.alive > p.target || p.closed {
			p.retireLocked(w)
			return nil, false
		}

		if task := p.queue.popHighest(); task != nil {
			w.busy = true
			if task.StartedAt == nil {
				now := time.Now()
				task.StartedAt = &now
			}
			p.metrics.SetQueueDepth(len(p.queue.pending))
			return task, true
		}

		p.cond.Wait()
	}
}

// execute runs one task attempt, racing it against the task timeout.
// On timeout the worker is reclaimed immediately; the analysis
// goroutine is cancelled via its context and drains on its own.
func (p *WorkerPool) execute(w *workerState, task *model.AnalysisTask) {
	ctx, cancel := context.WithTimeout(p.baseCtx, p.taskTimeout)
	defer cancel()

	type outcome struct {
		report *model.PageReport
		err    error
	}
	ch := make(chan outcome, 1)

	start := time.Now()
	go func() {
		report, err := p.analyze(ctx, task)
		ch <- outcome{report: report, err: err}
	}()

	timer := time.NewTimer(p.taskTimeout)
	defer timer.Stop()

	var report *model.PageReport
	var err error
	select {
	case o := <-ch:
		report, err = o.report, o.err
		// An analysis that surfaced its context deadline is the same
		// timeout as losing the timer race.
		if err != nil && ctx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
			err = ErrTaskTimeout
		}
	case <-timer.C:
		err = ErrTaskTimeout
	}
	elapsed := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()

	w.tasksProcessed++
	w.totalProcessing += elapsed
	p.metrics.ObserveTaskDuration(elapsed)

	if err == nil {
		now := time.Now()
		task.CompletedAt = &now
		p.queue.complete(task, report)
		p.metrics.IncTask("completed")
		return
	}

	w.taskErrors++

	// A closed pool has no workers left to pick up a reinserted task, so
	// the attempt fails terminally instead of retrying into limbo.
	if p.closed {
		now := time.Now()
		task.CompletedAt = &now
		p.queue.fail(task, ErrPoolClosed)
		p.metrics.IncTask("failed")
		p.logger.Debug("task failed at shutdown",
			"task_id", task.ID,
			"error", err,
		)
		return
	}

	// Timeouts are terminal; only execution errors consume the retry
	// budget.
	if !errors.Is(err, ErrTaskTimeout) && task.RetryCount < task.MaxRetries {
		p.queue.retry(task)
		p.metrics.IncRetry()
		p.metrics.SetQueueDepth(len(p.queue.pending))
		p.cond.Signal()
		p.logger.Debug("task retrying",
			"task_id", task.ID,
			"retry", task.RetryCount,
			"error", err,
		)
		return
	}

	now := time.Now()
	task.CompletedAt = &now
	p.queue.fail(task, err)
	p.metrics.IncTask("failed")
	p.logger.Warn("task failed",
		"task_id", task.ID,
		"url", task.URL,
		"attempts", task.RetryCount+1,
		"error", err,
	)
}
