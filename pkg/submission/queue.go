package submission

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pechabench/platform/pkg/common/logger"
)

// TaskQueue is the producer/consumer channel between API handlers and the
// worker pool: a bounded priority queue (lower priority value first, FIFO
// within a priority). Enqueue never blocks; Dequeue blocks up to a timeout
// so workers can poll for shutdown.
type TaskQueue struct {
	mu       sync.Mutex
	items    taskHeap
	capacity int
	seq      uint64
	closed   bool

	tokens chan struct{} // one token per queued task
	done   chan struct{} // closed on shutdown

	queued    atomic.Int64
	processed atomic.Int64
}

type QueueStats struct {
	TotalQueued    int64 `json:"total_queued"`
	TotalProcessed int64 `json:"total_processed"`
	QueueSize      int   `json:"queue_size"`
	ActiveWorkers  int   `json:"active_workers"`
}

func NewTaskQueue(capacity int) *TaskQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &TaskQueue{
		capacity: capacity,
		tokens:   make(chan struct{}, capacity),
		done:     make(chan struct{}),
	}
}

// Enqueue accepts a task unless the queue is full or shutting down. It
// never waits for processing.
func (q *TaskQueue) Enqueue(task *SubmissionTask) bool {
	if task == nil {
		return false
	}

	q.mu.Lock()
	if q.closed || q.items.Len() >= q.capacity {
		q.mu.Unlock()
		logger.Log.WithField("submission_id", task.SubmissionID).Warn("Task queue rejected task")
		return false
	}
	q.seq++
	heap.Push(&q.items, &queuedTask{task: task, seq: q.seq})
	size := q.items.Len()
	q.mu.Unlock()

	// Heap size never exceeds capacity, so this send cannot block.
	q.tokens <- struct{}{}
	q.queued.Add(1)

	logger.Log.WithFields(map[string]interface{}{
		"submission_id": task.SubmissionID,
		"queue_size":    size,
	}).Info("Task queued")
	return true
}

// Dequeue returns the most urgent task. A (nil, false) return means the
// timeout elapsed with no work; (nil, true) is the shutdown sentinel.
// Queued tasks drain before the sentinel is delivered.
func (q *TaskQueue) Dequeue(timeout time.Duration) (*SubmissionTask, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.tokens:
			if task := q.pop(); task != nil {
				return task, true
			}
		case <-q.done:
			select {
			case <-q.tokens:
				if task := q.pop(); task != nil {
					return task, true
				}
			default:
				return nil, true
			}
		case <-timer.C:
			return nil, false
		}
	}
}

func (q *TaskQueue) pop() *SubmissionTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return nil
	}
	item := heap.Pop(&q.items).(*queuedTask)
	return item.task
}

// MarkProcessed is called by a worker after it finishes a dequeued task.
func (q *TaskQueue) MarkProcessed() {
	q.processed.Add(1)
}

// Close stops accepting tasks and unblocks every worker's next Dequeue.
// Already-queued tasks are still handed out before sentinels.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

func (q *TaskQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *TaskQueue) Stats() QueueStats {
	return QueueStats{
		TotalQueued:    q.queued.Load(),
		TotalProcessed: q.processed.Load(),
		QueueSize:      q.Size(),
	}
}

type queuedTask struct {
	task *SubmissionTask
	seq  uint64
}

type taskHeap []*queuedTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority < h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x interface{}) {
	*h = append(*h, x.(*queuedTask))
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
