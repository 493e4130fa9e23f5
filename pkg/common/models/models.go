package models

import (
	"time"
)

// Dataset records are the wire shape shared by ground-truth files and
// submitted prediction files: ground truth carries "label", submissions
// carry "prediction", both keyed by "filename".
type DatasetRecord struct {
	Filename   string `json:"filename"`
	Label      string `json:"label,omitempty"`
	Prediction string `json:"prediction,omitempty"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // submission.queued, submission.completed, submission.failed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// SubmissionRequest is what the HTTP layer hands to the submission
// service after it has read the multipart upload.
type SubmissionRequest struct {
	UserID      string `json:"user_id"`
	ModelID     string `json:"model_id"`
	ChallengeID string `json:"challenge_id"`
	Description string `json:"description,omitempty"`
	Filename    string `json:"filename"`
	FileContent []byte `json:"-"`
	Priority    int    `json:"priority,omitempty"`
}

// SubmissionAccepted is the immediate response for a queued submission.
type SubmissionAccepted struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
