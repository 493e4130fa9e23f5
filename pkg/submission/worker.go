package submission

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pechabench/platform/pkg/common/logger"
	"github.com/pechabench/platform/pkg/common/models"
	"github.com/pechabench/platform/pkg/upload"
)

// Collaborators the pipeline depends on. They are interfaces so the pool
// is testable without Postgres, MinIO or a live challenge bucket.

type SubmissionStore interface {
	GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, message string) error
	SetDatasetURL(ctx context.Context, id uuid.UUID, url, message string) error
	SaveResults(ctx context.Context, submissionID, userID uuid.UUID, scores map[string]float64) error
}

type Uploader interface {
	ProcessSubmissionFile(ctx context.Context, content []byte, filename, challengeTitle, submissionID string) (upload.Result, error)
}

type GroundTruthFetcher interface {
	FetchGroundTruth(ctx context.Context, url string) ([]models.DatasetRecord, error)
}

type Scorer interface {
	Score(groundTruth, submission []models.DatasetRecord) map[string]float64
}

// EventPublisher emits terminal lifecycle events; it may be nil.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error
}

type PoolConfig struct {
	Workers        int
	DequeueTimeout time.Duration
	TaskDeadline   time.Duration
}

// Pool is a fixed set of long-lived workers draining the task queue. Each
// worker drives one task at a time through upload -> evaluate -> persist,
// advancing the progress cache first and the durable record second at
// every stage.
type Pool struct {
	queue     *TaskQueue
	cache     *ProgressCache
	store     SubmissionStore
	uploader  Uploader
	fetcher   GroundTruthFetcher
	scorer    Scorer
	publisher EventPublisher

	workers        int
	dequeueTimeout time.Duration
	taskDeadline   time.Duration

	wg     sync.WaitGroup
	active atomic.Int32
}

func NewPool(queue *TaskQueue, cache *ProgressCache, store SubmissionStore, uploader Uploader, fetcher GroundTruthFetcher, scorer Scorer, publisher EventPublisher, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = 5 * time.Second
	}
	if cfg.TaskDeadline <= 0 {
		cfg.TaskDeadline = 10 * time.Minute
	}
	return &Pool{
		queue:          queue,
		cache:          cache,
		store:          store,
		uploader:       uploader,
		fetcher:        fetcher,
		scorer:         scorer,
		publisher:      publisher,
		workers:        cfg.Workers,
		dequeueTimeout: cfg.DequeueTimeout,
		taskDeadline:   cfg.TaskDeadline,
	}
}

func (p *Pool) Start() {
	for i := 1; i <= p.workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	logger.Log.WithField("workers", p.workers).Info("Submission workers started")
}

// Stop closes the queue and waits up to wait for workers to drain.
func (p *Pool) Stop(wait time.Duration) {
	p.queue.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("All submission workers stopped")
	case <-time.After(wait):
		logger.Log.Warn("Timed out waiting for submission workers")
	}
}

func (p *Pool) ActiveWorkers() int {
	return int(p.active.Load())
}

func (p *Pool) run(workerID int) {
	defer p.wg.Done()
	p.active.Add(1)
	defer p.active.Add(-1)

	logger.Log.WithField("worker", workerID).Info("Worker started")
	for {
		task, ok := p.queue.Dequeue(p.dequeueTimeout)
		if !ok {
			continue // timeout, poll again
		}
		if task == nil {
			logger.Log.WithField("worker", workerID).Info("Worker stopped")
			return
		}
		p.safeProcess(workerID, task)
		p.queue.MarkProcessed()
	}
}

// safeProcess is the outer guard: nothing may escape a task and kill the
// worker, since that would silently shrink the pool.
func (p *Pool) safeProcess(workerID int, task *SubmissionTask) {
	defer func() {
		if r := recover(); r != nil {
			errMsg := fmt.Sprintf("worker %d processing panic: %v", workerID, r)
			logger.Log.WithField("submission_id", task.SubmissionID).Error(errMsg)

			p.cache.Set(task.SubmissionID.String(), StatusFailed, "Unexpected processing error", 0, "Failed", errMsg)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := p.store.UpdateStatus(ctx, task.SubmissionID, StatusFailed, errMsg); err != nil {
				logger.Log.WithError(err).WithField("submission_id", task.SubmissionID).
					Error("Failed to record panic status")
			}
		}
	}()

	// Task-scoped execution context: bounds the network-bound sub-steps
	// and is torn down when the task finishes, on every exit path.
	ctx, cancel := context.WithTimeout(context.Background(), p.taskDeadline)
	defer cancel()

	p.process(ctx, workerID, task)
}

func (p *Pool) process(ctx context.Context, workerID int, task *SubmissionTask) {
	id := task.SubmissionID
	sid := id.String()

	logger.Log.WithFields(map[string]interface{}{
		"worker":        workerID,
		"submission_id": sid,
	}).Info("Processing submission")

	p.cache.Set(sid, StatusProcessing, fmt.Sprintf("Worker %d started processing", workerID), 10, "Worker Started", "")

	if _, err := p.store.GetSubmission(ctx, id); err != nil {
		// Deleted concurrently (or store down): abort without creating a row.
		errMsg := fmt.Sprintf("submission %s not found: %v", sid, err)
		logger.Log.WithField("worker", workerID).Error(errMsg)
		p.cache.Set(sid, StatusFailed, "Submission not found in database", 0, "Error", errMsg)
		return
	}

	if err := p.store.UpdateStatus(ctx, id, StatusProcessing, fmt.Sprintf("Processing by worker %d", workerID)); err != nil {
		p.fail(ctx, task, "Unexpected processing error", fmt.Sprintf("status update failed: %v", err))
		return
	}

	// Stage 1: upload + validation.
	p.cache.Set(sid, StatusUploading, "Uploading and validating file", 30, "File Upload & Validation", "")

	uploaded, err := p.uploader.ProcessSubmissionFile(ctx, task.FileContent, task.Filename, task.ChallengeName, sid)
	if err != nil {
		p.fail(ctx, task, "File upload or validation failed", fmt.Sprintf("File processing failed: %v", err))
		return
	}

	// Stage 2: record where the file now lives.
	p.cache.Set(sid, StatusProcessing, "File uploaded successfully. Starting evaluation", 60, "Starting Evaluation", "")

	if err := p.store.SetDatasetURL(ctx, id, uploaded.URL, "File uploaded successfully. Running evaluation"); err != nil {
		p.fail(ctx, task, "Unexpected processing error", fmt.Sprintf("dataset URL update failed: %v", err))
		return
	}

	// Stage 3: evaluation.
	p.cache.Set(sid, StatusEvaluating, "Running automatic evaluation", 80, "Evaluation in Progress", "")

	groundTruth, err := p.fetcher.FetchGroundTruth(ctx, task.GroundTruthURL)
	if err != nil {
		p.fail(ctx, task, "Evaluation error occurred", fmt.Sprintf("Evaluation error: %v", err))
		return
	}

	scores := p.scorer.Score(groundTruth, uploaded.Records)

	if err := p.store.SaveResults(ctx, id, task.UserID, scores); err != nil {
		p.fail(ctx, task, "Evaluation error occurred", fmt.Sprintf("Evaluation error: failed to save results: %v", err))
		return
	}

	// Terminal: cache first, durable second.
	p.cache.Set(sid, StatusCompleted, fmt.Sprintf("Evaluation completed successfully by worker %d", workerID), 100, "Completed", "")

	if err := p.store.UpdateStatus(ctx, id, StatusCompleted, "Evaluation completed successfully"); err != nil {
		logger.Log.WithError(err).WithField("submission_id", sid).Error("Failed to persist completed status")
		p.bestEffortStatus(id, StatusCompleted, "Evaluation completed successfully")
	}

	p.publish(ctx, task, "submission.completed", scores)

	logger.Log.WithFields(map[string]interface{}{
		"worker":        workerID,
		"submission_id": sid,
		"scores":        scores,
	}).Info("Submission completed")
}

// fail records a terminal failure in the cache and mirrors it to the
// durable record; the task is dropped, never retried.
func (p *Pool) fail(ctx context.Context, task *SubmissionTask, userMessage, errDetail string) {
	sid := task.SubmissionID.String()
	logger.Log.WithField("submission_id", sid).Error(errDetail)

	p.cache.Set(sid, StatusFailed, userMessage, 0, "Failed", errDetail)

	if err := p.store.UpdateStatus(ctx, task.SubmissionID, StatusFailed, errDetail); err != nil {
		logger.Log.WithError(err).WithField("submission_id", sid).Error("Failed to persist failed status")
		p.bestEffortStatus(task.SubmissionID, StatusFailed, errDetail)
	}

	p.publish(ctx, task, "submission.failed", nil)
}

// bestEffortStatus retries a terminal write once off the task context, in
// case the task deadline itself is what failed the write.
func (p *Pool) bestEffortStatus(id uuid.UUID, status Status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.UpdateStatus(ctx, id, status, message); err != nil {
		logger.Log.WithError(err).WithField("submission_id", id).Error("Best-effort status write failed")
	}
}

func (p *Pool) publish(ctx context.Context, task *SubmissionTask, eventType string, scores map[string]float64) {
	if p.publisher == nil {
		return
	}
	data := map[string]interface{}{
		"submission_id": task.SubmissionID.String(),
		"user_id":       task.UserID.String(),
		"model_id":      task.ModelID.String(),
	}
	if scores != nil {
		data["scores"] = scores
	}
	if err := p.publisher.PublishEvent(ctx, eventType, task.ChallengeName, data); err != nil {
		logger.Log.WithError(err).WithField("submission_id", task.SubmissionID).
			Warn("Failed to publish lifecycle event")
	}
}
