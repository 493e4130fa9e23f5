package upload

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pechabench/platform/pkg/common/logger"
	"github.com/pechabench/platform/pkg/common/models"
)

// ObjectPutter is the slice of ObjectStore the service needs; tests swap
// in an in-memory implementation.
type ObjectPutter interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (string, error)
}

// Result is the outcome of a successful intake: where the file now lives
// and what it contained.
type Result struct {
	URL     string
	Records []models.DatasetRecord
}

type Service struct {
	store    ObjectPutter
	maxBytes int64
}

func NewService(store ObjectPutter, maxBytes int64) *Service {
	return &Service{store: store, maxBytes: maxBytes}
}

// ProcessSubmissionFile validates a prediction file and, when it passes,
// uploads it under the challenge's prefix. Validation failures come back
// as ValidationError; anything else is an object-storage fault.
func (s *Service) ProcessSubmissionFile(ctx context.Context, content []byte, filename, challengeTitle, submissionID string) (Result, error) {
	records, err := ParseAndValidate(content, filename, s.maxBytes)
	if err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"submission_id": submissionID,
			"filename":      filename,
		}).Warn("Submission file failed validation")
		return Result{}, err
	}

	key := objectKey(challengeTitle, filename)
	url, err := s.store.Put(ctx, key, content, "application/json")
	if err != nil {
		return Result{}, fmt.Errorf("uploading submission file: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"submission_id": submissionID,
		"key":           key,
		"records":       len(records),
	}).Info("Submission file uploaded")

	return Result{URL: url, Records: records}, nil
}

func objectKey(challengeTitle, filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".json"
	}
	return fmt.Sprintf("submissions/%s/%s%s", slugify(challengeTitle), uuid.New(), ext)
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "-")
	if s == "" {
		return "unassigned"
	}
	return s
}
