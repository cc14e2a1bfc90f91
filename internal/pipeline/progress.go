package pipeline

// Progress is an incremental status event emitted while a site audit
// runs. Observers (CLI output, telemetry) receive each event in order.
type Progress struct {
	// Stage names the phase: "crawl", "analyze", "summarize", "done".
	Stage string

	// Percent is the estimated completion of the whole run, [0, 100].
	Percent float64

	// Message is a human-readable status line.
	Message string
}

// ProgressFunc receives progress events. It is called from the
// orchestrator goroutine and from pool workers, so implementations
// accessing shared state must be safe for concurrent use.
type ProgressFunc func(Progress)
