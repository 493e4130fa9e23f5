package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pechabench/platform/pkg/challenge"
	"github.com/pechabench/platform/pkg/common/logger"
	"github.com/pechabench/platform/pkg/common/models"
)

var (
	ErrInvalidRequest   = errors.New("invalid submission request")
	ErrQueueUnavailable = errors.New("submission queue is not accepting tasks")
	ErrDuplicateTask    = errors.New("submission is already being processed")
)

// Store is the durable-submission surface the service needs; *Repository
// implements it.
type Store interface {
	SubmissionStore
	Create(ctx context.Context, sub *Submission) error
}

// ChallengeDirectory resolves the challenge a submission targets;
// *challenge.Repository implements it.
type ChallengeDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error)
}

// Service owns the single per-process queue, cache and pool (an explicit
// context object instead of package-level singletons) and is what the
// HTTP layer talks to.
type Service struct {
	repo       Store
	challenges ChallengeDirectory
	cache      *ProgressCache
	queue      *TaskQueue
	pool       *Pool
}

func NewService(repo Store, challenges ChallengeDirectory, cache *ProgressCache, queue *TaskQueue, pool *Pool) *Service {
	return &Service{
		repo:       repo,
		challenges: challenges,
		cache:      cache,
		queue:      queue,
		pool:       pool,
	}
}

// Submit creates the durable pending row, seeds the progress cache and
// enqueues the task. It returns as soon as the task is accepted; all file
// processing happens on the worker pool.
func (s *Service) Submit(ctx context.Context, req models.SubmissionRequest) (*models.SubmissionAccepted, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("user_id: %w", ErrInvalidRequest)
	}
	modelID, err := uuid.Parse(req.ModelID)
	if err != nil {
		return nil, fmt.Errorf("model_id: %w", ErrInvalidRequest)
	}
	challengeID, err := uuid.Parse(req.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("challenge_id: %w", ErrInvalidRequest)
	}
	if len(req.FileContent) == 0 || req.Filename == "" {
		return nil, fmt.Errorf("prediction file required: %w", ErrInvalidRequest)
	}

	ch, err := s.challenges.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if ch.GroundTruth == "" {
		return nil, fmt.Errorf("challenge %q has no ground truth dataset: %w", ch.Title, ErrInvalidRequest)
	}

	sub := &Submission{
		UserID:        userID,
		ModelID:       modelID,
		ChallengeID:   challengeID,
		Description:   req.Description,
		Status:        StatusPending,
		StatusMessage: "Submission queued for processing",
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("creating submission record: %w", err)
	}

	task := &SubmissionTask{
		SubmissionID:   sub.ID,
		FileContent:    req.FileContent,
		Filename:       req.Filename,
		UserID:         userID,
		ModelID:        modelID,
		ChallengeName:  ch.Title,
		GroundTruthURL: ch.GroundTruth,
		Priority:       req.Priority,
	}

	if err := s.EnqueueTask(ctx, task); err != nil {
		return nil, err
	}

	return &models.SubmissionAccepted{
		ID:        sub.ID.String(),
		Status:    string(StatusPending),
		Message:   "Submission accepted and queued for processing",
		Timestamp: time.Now().UTC(),
	}, nil
}

// EnqueueTask seeds the cache and hands the task to the queue. A task for
// a submission that is still active in the cache is rejected so the same
// identifier cannot be processed twice concurrently.
func (s *Service) EnqueueTask(ctx context.Context, task *SubmissionTask) error {
	sid := task.SubmissionID.String()

	if entry, ok := s.cache.Get(sid); ok && !entry.Status.Terminal() {
		logger.Log.WithField("submission_id", sid).Warn("Duplicate task rejected")
		return ErrDuplicateTask
	}

	s.cache.Set(sid, StatusPending, "Submission queued for processing", 0, "Queued", "")

	if !s.queue.Enqueue(task) {
		s.cache.Set(sid, StatusFailed, "Submission queue is full", 0, "Failed", "queue rejected task")
		if err := s.repo.UpdateStatus(ctx, task.SubmissionID, StatusFailed, "Submission queue is full"); err != nil {
			logger.Log.WithError(err).WithField("submission_id", sid).Error("Failed to mark rejected submission")
		}
		return ErrQueueUnavailable
	}
	return nil
}

// Progress serves status queries: cache fast path, durable record on a
// miss (which also covers entries the janitor evicted).
func (s *Service) Progress(ctx context.Context, id string) (*ProgressEntry, error) {
	if entry, ok := s.cache.Get(id); ok {
		return &entry, nil
	}

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("submission id: %w", ErrInvalidRequest)
	}
	sub, err := s.repo.GetSubmission(ctx, uid)
	if err != nil {
		return nil, err
	}

	progress := 0
	if sub.Status == StatusCompleted {
		progress = 100
	}
	return &ProgressEntry{
		SubmissionID: id,
		Status:       sub.Status,
		Message:      sub.StatusMessage,
		Progress:     progress,
		StartedAt:    sub.CreatedAt,
		UpdatedAt:    sub.UpdatedAt,
	}, nil
}

func (s *Service) ActiveSubmissions() map[string]ProgressEntry {
	return s.cache.AllActive()
}

func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

func (s *Service) QueueStats() QueueStats {
	stats := s.queue.Stats()
	if s.pool != nil {
		stats.ActiveWorkers = s.pool.ActiveWorkers()
	}
	return stats
}
