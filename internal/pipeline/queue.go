package pipeline

import (
	"github.com/a11yscan/a11yscan/internal/model"
)

// TaskResult is the terminal outcome of one task.
type TaskResult struct {
	// Task is the finished task, timestamps set.
	Task *model.AnalysisTask

	// Report is the page analysis result. Nil when the task failed.
	Report *model.PageReport

	// Err is the final error for a failed task. Nil on success.
	Err error
}

// Status returns the terminal task status for the result.
func (r *TaskResult) Status() model.TaskStatus {
	if r.Err != nil {
		return model.TaskStatusFailed
	}
	return model.TaskStatusCompleted
}

// taskQueue partitions all known tasks into four disjoint collections.
// A task belongs to exactly one collection at any time, and
// len(processing) never exceeds the worker count because only workers
// move tasks into processing.
//
// The queue carries no lock of its own: the owning WorkerPool holds a
// single mutex over all queue state. Operations are O(1) map moves plus
// a bounded scan of pending, so one lock is cheap.
type taskQueue struct {
	pending    []*model.AnalysisTask
	processing map[string]*model.AnalysisTask
	completed  map[string]*TaskResult
	failed     map[string]*TaskResult

	// waiters holds a channel per task, closed when the task reaches a
	// terminal collection. AwaitResult blocks on it.
	waiters map[string]chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		pending:    make([]*model.AnalysisTask, 0),
		processing: make(map[string]*model.AnalysisTask),
		completed:  make(map[string]*TaskResult),
		failed:     make(map[string]*TaskResult),
		waiters:    make(map[string]chan struct{}),
	}
}

// pushBack appends a newly submitted task to the pending collection.
func (q *taskQueue) pushBack(task *model.AnalysisTask) {
	q.pending = append(q.pending, task)
	if _, ok := q.waiters[task.ID]; !ok {
		q.waiters[task.ID] = make(chan struct{})
	}
}

// pushFront reinserts a retrying task at the front of pending, so it is
// dispatched before other tasks of its priority.
func (q *taskQueue) pushFront(task *model.AnalysisTask) {
	q.pending = append([]*model.AnalysisTask{task}, q.pending...)
}

// popHighest removes and returns the dispatchable task: highest
// priority first, ties broken by position (FIFO for submissions, front
// insertion for retries). Returns nil when pending is empty.
func (q *taskQueue) popHighest() *model.AnalysisTask {
	if len(q.pending) == 0 {
		return nil
	}

	best := 0
	for i := 1; i < len(q.pending); i++ {
		if q.pending[i].Priority > q.pending[best].Priority {
			best = i
		}
	}

	task := q.pending[best]
	q.pending = append(q.pending[:best], q.pending[best+1:]...)
	q.processing[task.ID] = task
	return task
}

// cancel drops a pending task by ID, recording it as failed with the
// given error. Tasks already processing cannot be cancelled.
func (q *taskQueue) cancel(id string, err error) bool {
	for i, task := range q.pending {
		if task.ID != id {
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		q.fail(task, err)
		return true
	}
	return false
}

// cancelAll drops every pending task, recording each as failed.
func (q *taskQueue) cancelAll(err error) int {
	dropped := len(q.pending)
	for _, task := range q.pending {
		q.fail(task, err)
	}
	q.pending = q.pending[:0]
	return dropped
}

// retry moves a processing task back to the front of pending with its
// retry count incremented.
func (q *taskQueue) retry(task *model.AnalysisTask) {
	delete(q.processing, task.ID)
	task.RetryCount++
	q.pushFront(task)
}

// complete moves a processing task to completed and wakes its waiters.
func (q *taskQueue) complete(task *model.AnalysisTask, report *model.PageReport) {
	delete(q.processing, task.ID)
	q.completed[task.ID] = &TaskResult{Task: task, Report: report}
	q.wake(task.ID)
}

// fail moves a task to failed and wakes its waiters.
func (q *taskQueue) fail(task *model.AnalysisTask, err error) {
	delete(q.processing, task.ID)
	q.failed[task.ID] = &TaskResult{Task: task, Err: err}
	q.wake(task.ID)
}

func (q *taskQueue) wake(id string) {
	if ch, ok := q.waiters[id]; ok {
		close(ch)
		delete(q.waiters, id)
	}
}

// result returns the terminal result for a task, if it has one.
func (q *taskQueue) result(id string) (*TaskResult, bool) {
	if r, ok := q.completed[id]; ok {
		return r, true
	}
	if r, ok := q.failed[id]; ok {
		return r, true
	}
	return nil, false
}

// waiter returns the channel closed when the task terminates. The
// second return is false for unknown task IDs.
func (q *taskQueue) waiter(id string) (chan struct{}, bool) {
	if ch, ok := q.waiters[id]; ok {
		return ch, true
	}
	return nil, false
}
