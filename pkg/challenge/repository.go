package challenge

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("challenge not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Challenge{})
}

func (r *Repository) Create(ctx context.Context, ch *Challenge) error {
	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	ch.CreatedAt = time.Now().UTC()
	ch.UpdatedAt = ch.CreatedAt
	return r.db.WithContext(ctx).Create(ch).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Challenge, error) {
	var ch Challenge
	result := r.db.WithContext(ctx).First(&ch, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &ch, result.Error
}

func (r *Repository) GetByTitle(ctx context.Context, title string) (*Challenge, error) {
	var ch Challenge
	result := r.db.WithContext(ctx).First(&ch, "title = ?", title)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &ch, result.Error
}

func (r *Repository) List(ctx context.Context) ([]Challenge, error) {
	var challenges []Challenge
	err := r.db.WithContext(ctx).Order("created_at").Find(&challenges).Error
	return challenges, err
}
