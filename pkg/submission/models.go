package submission

import (
	"time"

	"github.com/google/uuid"
)

// Status covers the fine-grained states the progress cache exposes. The
// durable record only ever stores the coarse projection (see Coarse).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusUploading  Status = "uploading"
	StatusValidating Status = "validating"
	StatusEvaluating Status = "evaluating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions occur from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Coarse collapses intermediate states to the four statuses a client can
// observe on the durable record: pending, processing, completed, failed.
func (s Status) Coarse() Status {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return s
	default:
		return StatusProcessing
	}
}

// Submission is the authoritative persisted record; it survives restarts
// and is the fallback when the progress cache has evicted an entry.
type Submission struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;column:id"`
	UserID        uuid.UUID `json:"user_id" gorm:"type:uuid;column:user_id;index"`
	ModelID       uuid.UUID `json:"model_id" gorm:"type:uuid;column:model_id;index"`
	ChallengeID   uuid.UUID `json:"challenge_id" gorm:"type:uuid;column:challenge_id;index"`
	Description   string    `json:"description,omitempty" gorm:"column:description"`
	DatasetURL    string    `json:"dataset_url,omitempty" gorm:"column:dataset_url"` // empty until upload succeeds
	Status        Status    `json:"status" gorm:"column:status"`
	StatusMessage string    `json:"status_message" gorm:"column:status_message"`
	CreatedAt     time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Submission) TableName() string {
	return "submissions"
}

// Result is one metric score for one submission.
type Result struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;column:id"`
	Type         string    `json:"type" gorm:"column:type"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;column:user_id;index"`
	SubmissionID uuid.UUID `json:"submission_id" gorm:"type:uuid;column:submission_id;index"`
	Score        float64   `json:"score" gorm:"column:score"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Result) TableName() string {
	return "results"
}

// SubmissionTask is the immutable descriptor queued for the worker pool.
// It is created once by the producer and owned exclusively by whichever
// worker dequeues it.
type SubmissionTask struct {
	SubmissionID   uuid.UUID
	FileContent    []byte
	Filename       string
	UserID         uuid.UUID
	ModelID        uuid.UUID
	ChallengeName  string
	GroundTruthURL string
	Priority       int // lower = more urgent
}

// ProgressEntry is the cached, fine-grained processing status of one
// submission.
type ProgressEntry struct {
	SubmissionID string    `json:"submission_id"`
	Status       Status    `json:"status"`
	Message      string    `json:"message"`
	Progress     int       `json:"progress_percentage"`
	Step         string    `json:"current_step"`
	ErrorDetails string    `json:"error_details,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func clampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
