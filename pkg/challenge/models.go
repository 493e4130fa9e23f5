package challenge

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusActive   = "active"
	StatusUpcoming = "upcoming"
	StatusClosed   = "closed"
)

// Challenge is one benchmark card: a task (OCR, STT, MT, ...) with a
// ground-truth reference dataset submissions are scored against.
type Challenge struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey;column:id"`
	Title       string            `json:"title" gorm:"column:title;uniqueIndex"`
	Category    string            `json:"category" gorm:"column:category"`
	GroundTruth string            `json:"ground_truth" gorm:"column:ground_truth"`
	Description string            `json:"description,omitempty" gorm:"column:description"`
	Status      string            `json:"status" gorm:"column:status"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"column:metadata"`
	CreatedAt   time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

func (Challenge) TableName() string {
	return "challenges"
}
