package submission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pechabench/platform/pkg/common/models"
	"github.com/pechabench/platform/pkg/evaluation"
	"github.com/pechabench/platform/pkg/upload"
)

// fakeStore keeps submissions in a map so pipeline tests run without
// Postgres.
type fakeStore struct {
	mu        sync.Mutex
	subs      map[uuid.UUID]*Submission
	results   map[uuid.UUID]map[string]float64
	statusErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:    make(map[uuid.UUID]*Submission),
		results: make(map[uuid.UUID]map[string]float64),
	}
}

func (f *fakeStore) seed(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[id] = &Submission{ID: id, Status: StatusPending, CreatedAt: time.Now().UTC()}
}

func (f *fakeStore) Create(ctx context.Context, sub *Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	copied := *sub
	f.subs[sub.ID] = &copied
	return nil
}

func (f *fakeStore) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	sub, ok := f.subs[id]
	if !ok {
		return ErrNotFound
	}
	sub.Status = status.Coarse()
	sub.StatusMessage = message
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) SetDatasetURL(ctx context.Context, id uuid.UUID, url, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return ErrNotFound
	}
	sub.DatasetURL = url
	sub.StatusMessage = message
	return nil
}

func (f *fakeStore) SaveResults(ctx context.Context, submissionID, userID uuid.UUID, scores map[string]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make(map[string]float64, len(scores))
	for name, score := range scores {
		copied[name] = score
	}
	f.results[submissionID] = copied
	return nil
}

func (f *fakeStore) submission(id uuid.UUID) Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.subs[id]
}

func (f *fakeStore) scores(id uuid.UUID) map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[id]
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type memPutter struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memPutter) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = content
	return "mem://submissions/" + key, nil
}

type fakeFetcher struct {
	records []models.DatasetRecord
	err     error
}

func (f *fakeFetcher) FetchGroundTruth(ctx context.Context, url string) ([]models.DatasetRecord, error) {
	return f.records, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

func (f *fakePublisher) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func newTestPool(queue *TaskQueue, cache *ProgressCache, store SubmissionStore, fetcher GroundTruthFetcher, publisher EventPublisher, workers int) *Pool {
	uploader := upload.NewService(&memPutter{}, 1<<20)
	return NewPool(queue, cache, store, uploader, fetcher, evaluation.NewEngine(), publisher, PoolConfig{
		Workers:        workers,
		DequeueTimeout: 20 * time.Millisecond,
		TaskDeadline:   5 * time.Second,
	})
}

func waitForTerminal(t *testing.T, cache *ProgressCache, id string) ProgressEntry {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if entry, ok := cache.Get(id); ok && entry.Status.Terminal() {
			return entry
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("submission %s never reached a terminal state", id)
	return ProgressEntry{}
}

func TestPipelineCompletesMatchingSubmission(t *testing.T) {
	store := newFakeStore()
	queue := NewTaskQueue(8)
	cache := NewProgressCache()
	publisher := &fakePublisher{}
	fetcher := &fakeFetcher{records: []models.DatasetRecord{
		{Filename: "page_001.png", Label: "bod yig"},
		{Filename: "page_002.png", Label: "gsung 'bum"},
	}}

	id := uuid.New()
	store.seed(id)
	require.True(t, queue.Enqueue(&SubmissionTask{
		SubmissionID:   id,
		UserID:         uuid.New(),
		ModelID:        uuid.New(),
		FileContent:    []byte(`[{"filename":"page_001.png","prediction":"bod yig"},{"filename":"page_002.png","prediction":"gsung 'bum"}]`),
		Filename:       "predictions.json",
		ChallengeName:  "Tibetan OCR",
		GroundTruthURL: "http://datasets/ocr.json",
	}))

	pool := newTestPool(queue, cache, store, fetcher, publisher, 1)
	pool.Start()
	defer pool.Stop(time.Second)

	entry := waitForTerminal(t, cache, id.String())
	assert.Equal(t, StatusCompleted, entry.Status)
	assert.Equal(t, 100, entry.Progress)
	assert.Equal(t, "Completed", entry.Step)
	assert.Empty(t, entry.ErrorDetails)

	sub := store.submission(id)
	assert.Equal(t, StatusCompleted, sub.Status)
	assert.NotEmpty(t, sub.DatasetURL)

	scores := store.scores(id)
	require.NotNil(t, scores)
	assert.Equal(t, 0.0, scores["cer"])
	assert.Equal(t, 0.0, scores["wer"])

	assert.Equal(t, []string{"submission.completed"}, publisher.published())
}

func TestPipelineCompletesWithWorstScoreWhenNothingMatches(t *testing.T) {
	store := newFakeStore()
	queue := NewTaskQueue(8)
	cache := NewProgressCache()
	fetcher := &fakeFetcher{records: []models.DatasetRecord{
		{Filename: "page_001.png", Label: "bod yig"},
	}}

	id := uuid.New()
	store.seed(id)
	require.True(t, queue.Enqueue(&SubmissionTask{
		SubmissionID: id,
		UserID:       uuid.New(),
		FileContent:  []byte(`[{"filename":"unrelated.png","prediction":"bod yig"}]`),
		Filename:     "predictions.json",
	}))

	pool := newTestPool(queue, cache, store, fetcher, nil, 1)
	pool.Start()
	defer pool.Stop(time.Second)

	entry := waitForTerminal(t, cache, id.String())
	// An empty intersection is a legitimate (terrible) result, not a failure.
	assert.Equal(t, StatusCompleted, entry.Status)

	scores := store.scores(id)
	require.NotNil(t, scores)
	assert.Equal(t, evaluation.WorstScore, scores["cer"])
	assert.Equal(t, evaluation.WorstScore, scores["wer"])
}

func TestPipelineFailsOnValidationError(t *testing.T) {
	store := newFakeStore()
	queue := NewTaskQueue(8)
	cache := NewProgressCache()
	publisher := &fakePublisher{}

	id := uuid.New()
	store.seed(id)
	require.True(t, queue.Enqueue(&SubmissionTask{
		SubmissionID: id,
		UserID:       uuid.New(),
		FileContent:  []byte(`[{"filename":"a","prediction":"b"}]`),
		Filename:     "predictions.txt",
	}))

	pool := newTestPool(queue, cache, store, &fakeFetcher{}, publisher, 1)
	pool.Start()
	defer pool.Stop(time.Second)

	entry := waitForTerminal(t, cache, id.String())
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, 0, entry.Progress)
	assert.Equal(t, "File upload or validation failed", entry.Message)
	assert.Contains(t, entry.ErrorDetails, "Only JSON files are allowed")

	sub := store.submission(id)
	assert.Equal(t, StatusFailed, sub.Status)
	assert.Empty(t, sub.DatasetURL)
	assert.Nil(t, store.scores(id))

	assert.Equal(t, []string{"submission.failed"}, publisher.published())
}

func TestPipelineAbortsWhenDurableRecordMissing(t *testing.T) {
	store := newFakeStore()
	queue := NewTaskQueue(8)
	cache := NewProgressCache()
	publisher := &fakePublisher{}

	id := uuid.New()
	require.True(t, queue.Enqueue(&SubmissionTask{
		SubmissionID: id,
		FileContent:  []byte(`[{"filename":"a","prediction":"b"}]`),
		Filename:     "predictions.json",
	}))

	pool := newTestPool(queue, cache, store, &fakeFetcher{}, publisher, 1)
	pool.Start()
	defer pool.Stop(time.Second)

	entry := waitForTerminal(t, cache, id.String())
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, "Submission not found in database", entry.Message)

	// No ghost row may appear for a submission that was never created.
	assert.Equal(t, 0, store.count())
	assert.Empty(t, publisher.published())
}

func TestPipelineFailsWhenGroundTruthUnavailable(t *testing.T) {
	store := newFakeStore()
	queue := NewTaskQueue(8)
	cache := NewProgressCache()
	fetcher := &fakeFetcher{err: errors.New("dataset service returned 503")}

	id := uuid.New()
	store.seed(id)
	require.True(t, queue.Enqueue(&SubmissionTask{
		SubmissionID: id,
		UserID:       uuid.New(),
		FileContent:  []byte(`[{"filename":"a","prediction":"b"}]`),
		Filename:     "predictions.json",
	}))

	pool := newTestPool(queue, cache, store, fetcher, nil, 1)
	pool.Start()
	defer pool.Stop(time.Second)

	entry := waitForTerminal(t, cache, id.String())
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, "Evaluation error occurred", entry.Message)
	assert.Contains(t, entry.ErrorDetails, "dataset service returned 503")

	// The file uploaded fine before evaluation broke.
	sub := store.submission(id)
	assert.Equal(t, StatusFailed, sub.Status)
	assert.NotEmpty(t, sub.DatasetURL)
}

func TestPipelineIsolatesConcurrentTasks(t *testing.T) {
	store := newFakeStore()
	queue := NewTaskQueue(8)
	cache := NewProgressCache()
	fetcher := &fakeFetcher{records: []models.DatasetRecord{
		{Filename: "page_001.png", Label: "bod yig"},
	}}

	good := uuid.New()
	bad := uuid.New()
	store.seed(good)
	store.seed(bad)

	require.True(t, queue.Enqueue(&SubmissionTask{
		SubmissionID: good,
		UserID:       uuid.New(),
		FileContent:  []byte(`[{"filename":"page_001.png","prediction":"bod yig"}]`),
		Filename:     "good.json",
	}))
	require.True(t, queue.Enqueue(&SubmissionTask{
		SubmissionID: bad,
		UserID:       uuid.New(),
		FileContent:  []byte(`not json at all`),
		Filename:     "bad.json",
	}))

	pool := newTestPool(queue, cache, store, fetcher, nil, 2)
	pool.Start()
	defer pool.Stop(time.Second)

	goodEntry := waitForTerminal(t, cache, good.String())
	badEntry := waitForTerminal(t, cache, bad.String())

	assert.Equal(t, StatusCompleted, goodEntry.Status)
	assert.Equal(t, StatusFailed, badEntry.Status)
	assert.Equal(t, StatusCompleted, store.submission(good).Status)
	assert.Equal(t, StatusFailed, store.submission(bad).Status)
	assert.NotNil(t, store.scores(good))
	assert.Nil(t, store.scores(bad))
}
