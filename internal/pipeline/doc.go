// Package pipeline executes page-analysis tasks on a bounded worker
// pool with priority ordering, retry on failure, and graceful scaling.
//
// The package has three layers:
//   - taskQueue partitions every task into exactly one of four
//     collections (pending, processing, completed, failed).
//   - WorkerPool pulls from pending with a resizable set of workers,
//     enforcing per-task timeouts and the retry budget.
//   - Orchestrator composes the crawler, the analysis cache, the
//     registered analyzers, and the pool into a full site audit.
package pipeline
