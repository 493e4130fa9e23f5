package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	submissionsQueued    atomic.Int64
	submissionsProcessed atomic.Int64
	queueDepth           atomic.Int64
	activeWorkers        atomic.Int64
	cacheEntries         atomic.Int64
	cacheActive          atomic.Int64
)

func ObserveQueue(queued, processed, depth, workers int64) {
	submissionsQueued.Store(queued)
	submissionsProcessed.Store(processed)
	queueDepth.Store(depth)
	activeWorkers.Store(workers)
}

func ObserveCache(entries, active int64) {
	cacheEntries.Store(entries)
	cacheActive.Store(active)
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP pechabench_submissions_queued_total Submissions accepted into the task queue since startup.\n")
	fmt.Fprintf(w, "# TYPE pechabench_submissions_queued_total counter\n")
	fmt.Fprintf(w, "pechabench_submissions_queued_total %d\n", submissionsQueued.Load())

	fmt.Fprintf(w, "# HELP pechabench_submissions_processed_total Submissions fully processed by the worker pool since startup.\n")
	fmt.Fprintf(w, "# TYPE pechabench_submissions_processed_total counter\n")
	fmt.Fprintf(w, "pechabench_submissions_processed_total %d\n", submissionsProcessed.Load())

	fmt.Fprintf(w, "# HELP pechabench_queue_depth Tasks currently waiting in the queue.\n")
	fmt.Fprintf(w, "# TYPE pechabench_queue_depth gauge\n")
	fmt.Fprintf(w, "pechabench_queue_depth %d\n", queueDepth.Load())

	fmt.Fprintf(w, "# HELP pechabench_active_workers Workers currently running.\n")
	fmt.Fprintf(w, "# TYPE pechabench_active_workers gauge\n")
	fmt.Fprintf(w, "pechabench_active_workers %d\n", activeWorkers.Load())

	fmt.Fprintf(w, "# HELP pechabench_progress_cache_entries Entries currently held by the progress cache.\n")
	fmt.Fprintf(w, "# TYPE pechabench_progress_cache_entries gauge\n")
	fmt.Fprintf(w, "pechabench_progress_cache_entries %d\n", cacheEntries.Load())

	fmt.Fprintf(w, "# HELP pechabench_progress_cache_active Non-terminal entries in the progress cache.\n")
	fmt.Fprintf(w, "# TYPE pechabench_progress_cache_active gauge\n")
	fmt.Fprintf(w, "pechabench_progress_cache_active %d\n", cacheActive.Load())
}
