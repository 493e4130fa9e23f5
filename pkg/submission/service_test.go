package submission

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pechabench/platform/pkg/challenge"
	"github.com/pechabench/platform/pkg/common/models"
)

type fakeChallengeDir struct {
	challenges map[uuid.UUID]*challenge.Challenge
}

func (f *fakeChallengeDir) Get(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	ch, ok := f.challenges[id]
	if !ok {
		return nil, challenge.ErrNotFound
	}
	return ch, nil
}

func newTestService(queueCapacity int) (*Service, *fakeStore, uuid.UUID) {
	store := newFakeStore()
	challengeID := uuid.New()
	dir := &fakeChallengeDir{challenges: map[uuid.UUID]*challenge.Challenge{
		challengeID: {
			ID:          challengeID,
			Title:       "Tibetan OCR",
			GroundTruth: "http://datasets/ocr-ground-truth.json",
		},
	}}
	svc := NewService(store, dir, NewProgressCache(), NewTaskQueue(queueCapacity), nil)
	return svc, store, challengeID
}

func validRequest(challengeID uuid.UUID) models.SubmissionRequest {
	return models.SubmissionRequest{
		UserID:      uuid.New().String(),
		ModelID:     uuid.New().String(),
		ChallengeID: challengeID.String(),
		Filename:    "predictions.json",
		FileContent: []byte(`[{"filename":"a.png","prediction":"bod"}]`),
	}
}

func TestSubmitAcceptsAndQueues(t *testing.T) {
	svc, store, challengeID := newTestService(8)

	acc, err := svc.Submit(context.Background(), validRequest(challengeID))
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, string(StatusPending), acc.Status)

	id, err := uuid.Parse(acc.ID)
	require.NoError(t, err)

	// Durable row exists before any worker touches the task.
	sub := store.submission(id)
	assert.Equal(t, StatusPending, sub.Status)
	assert.Equal(t, challengeID, sub.ChallengeID)

	entry, ok := svc.cache.Get(acc.ID)
	require.True(t, ok)
	assert.Equal(t, StatusPending, entry.Status)
	assert.Equal(t, "Queued", entry.Step)
	assert.Equal(t, 0, entry.Progress)

	assert.Equal(t, 1, svc.queue.Size())
}

func TestSubmitRejectsMalformedIDs(t *testing.T) {
	svc, _, challengeID := newTestService(8)

	req := validRequest(challengeID)
	req.UserID = "not-a-uuid"

	_, err := svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSubmitRejectsMissingFile(t *testing.T) {
	svc, _, challengeID := newTestService(8)

	req := validRequest(challengeID)
	req.FileContent = nil

	_, err := svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSubmitUnknownChallenge(t *testing.T) {
	svc, _, _ := newTestService(8)

	req := validRequest(uuid.New())

	_, err := svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, challenge.ErrNotFound)
}

func TestSubmitChallengeWithoutGroundTruth(t *testing.T) {
	svc, _, challengeID := newTestService(8)
	dir := svc.challenges.(*fakeChallengeDir)
	dir.challenges[challengeID].GroundTruth = ""

	_, err := svc.Submit(context.Background(), validRequest(challengeID))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestEnqueueTaskRejectsDuplicate(t *testing.T) {
	svc, store, _ := newTestService(8)

	id := uuid.New()
	store.seed(id)
	task := &SubmissionTask{SubmissionID: id, FileContent: []byte("{}"), Filename: "p.json"}

	require.NoError(t, svc.EnqueueTask(context.Background(), task))
	assert.ErrorIs(t, svc.EnqueueTask(context.Background(), task), ErrDuplicateTask)
	assert.Equal(t, 1, svc.queue.Size())
}

func TestEnqueueTaskAllowsResubmitAfterTerminal(t *testing.T) {
	svc, store, _ := newTestService(8)

	id := uuid.New()
	store.seed(id)
	svc.cache.Set(id.String(), StatusFailed, "Evaluation error occurred", 0, "Failed", "boom")

	task := &SubmissionTask{SubmissionID: id, FileContent: []byte("{}"), Filename: "p.json"}
	assert.NoError(t, svc.EnqueueTask(context.Background(), task))
}

func TestEnqueueTaskQueueFull(t *testing.T) {
	svc, store, _ := newTestService(1)

	first := uuid.New()
	store.seed(first)
	require.NoError(t, svc.EnqueueTask(context.Background(), &SubmissionTask{SubmissionID: first}))

	second := uuid.New()
	store.seed(second)
	err := svc.EnqueueTask(context.Background(), &SubmissionTask{SubmissionID: second})
	assert.ErrorIs(t, err, ErrQueueUnavailable)

	// The rejection is terminal in both the cache and the durable record.
	entry, ok := svc.cache.Get(second.String())
	require.True(t, ok)
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, StatusFailed, store.submission(second).Status)
}

func TestProgressServedFromCache(t *testing.T) {
	svc, _, _ := newTestService(8)

	svc.cache.Set("sub-1", StatusEvaluating, "Running automatic evaluation", 80, "Evaluation in Progress", "")

	entry, err := svc.Progress(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, StatusEvaluating, entry.Status)
	assert.Equal(t, 80, entry.Progress)
}

func TestProgressFallsBackToDurableAfterEviction(t *testing.T) {
	svc, store, _ := newTestService(8)

	id := uuid.New()
	store.seed(id)
	require.NoError(t, store.UpdateStatus(context.Background(), id, StatusCompleted, "Evaluation completed successfully"))

	// Simulate a janitor eviction: terminal entry aged out of the cache.
	svc.cache.Set(id.String(), StatusCompleted, "Completed", 100, "Completed", "")
	svc.cache.Remove(id.String())

	entry, err := svc.Progress(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, entry.Status)
	assert.Equal(t, 100, entry.Progress)
	assert.Equal(t, "Evaluation completed successfully", entry.Message)
}

func TestProgressUnknownSubmission(t *testing.T) {
	svc, _, _ := newTestService(8)

	_, err := svc.Progress(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Progress(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueueStatsWithoutPool(t *testing.T) {
	svc, store, _ := newTestService(8)

	id := uuid.New()
	store.seed(id)
	require.NoError(t, svc.EnqueueTask(context.Background(), &SubmissionTask{SubmissionID: id}))

	stats := svc.QueueStats()
	assert.Equal(t, int64(1), stats.TotalQueued)
	assert.Equal(t, 1, stats.QueueSize)
	assert.Equal(t, 0, stats.ActiveWorkers)
}
