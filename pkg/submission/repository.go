package submission

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("submission not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Submission{}, &Result{})
}

func (r *Repository) Create(ctx context.Context, sub *Submission) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.Status == "" {
		sub.Status = StatusPending
	}
	sub.CreatedAt = time.Now().UTC()
	sub.UpdatedAt = sub.CreatedAt
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *Repository) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var sub Submission
	result := r.db.WithContext(ctx).First(&sub, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &sub, result.Error
}

// UpdateStatus persists the coarse projection of status plus the
// human-readable message.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, message string) error {
	result := r.db.WithContext(ctx).Model(&Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status.Coarse(),
			"status_message": message,
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetDatasetURL(ctx context.Context, id uuid.UUID, url, message string) error {
	result := r.db.WithContext(ctx).Model(&Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"dataset_url":    url,
			"status_message": message,
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveResults writes one child row per metric in a single transaction.
func (r *Repository) SaveResults(ctx context.Context, submissionID, userID uuid.UUID, scores map[string]float64) error {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now().UTC()
	rows := make([]Result, 0, len(names))
	for _, name := range names {
		rows = append(rows, Result{
			ID:           uuid.New(),
			Type:         metricType(name),
			UserID:       userID,
			SubmissionID: submissionID,
			Score:        scores[name],
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	return r.db.WithContext(ctx).Create(&rows).Error
}

// metricType maps an engine metric name to the persisted result type
// label ("cer" -> "CER").
func metricType(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func (r *Repository) ResultsFor(ctx context.Context, submissionID uuid.UUID) ([]Result, error) {
	var results []Result
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("type").
		Find(&results).Error
	return results, err
}
