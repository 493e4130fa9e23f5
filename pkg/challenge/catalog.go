package challenge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pechabench/platform/pkg/common/logger"
	"gopkg.in/yaml.v3"
)

// Definition is one challenge entry in the seed catalog file.
type Definition struct {
	Title       string `yaml:"title" json:"title"`
	Category    string `yaml:"category" json:"category"`
	GroundTruth string `yaml:"ground_truth" json:"ground_truth"`
	Description string `yaml:"description" json:"description"`
	Status      string `yaml:"status" json:"status"`
}

type Catalog struct {
	Challenges []Definition `yaml:"challenges" json:"challenges"`
}

func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Challenges) == 0 {
		return Catalog{}, fmt.Errorf("challenge catalog empty")
	}
	return cat, nil
}

func (c Catalog) Lookup(title string) (Definition, bool) {
	for _, def := range c.Challenges {
		if strings.EqualFold(def.Title, title) {
			return def, true
		}
	}
	return Definition{}, false
}

// Seed inserts catalog entries that are not present yet; existing rows are
// left untouched so operators can edit them in the database.
func (c Catalog) Seed(ctx context.Context, repo *Repository) error {
	for _, def := range c.Challenges {
		if _, err := repo.GetByTitle(ctx, def.Title); err == nil {
			continue
		} else if err != ErrNotFound {
			return err
		}

		status := def.Status
		if status == "" {
			status = StatusActive
		}
		ch := &Challenge{
			Title:       def.Title,
			Category:    def.Category,
			GroundTruth: def.GroundTruth,
			Description: def.Description,
			Status:      status,
		}
		if err := repo.Create(ctx, ch); err != nil {
			return fmt.Errorf("seeding challenge %q: %w", def.Title, err)
		}
		logger.Log.WithField("challenge", def.Title).Info("Seeded challenge from catalog")
	}
	return nil
}

func DefaultCatalog() Catalog {
	return Catalog{Challenges: []Definition{
		{
			Title:       "Tibetan OCR",
			Category:    "ocr",
			GroundTruth: "https://pechabench.s3.amazonaws.com/ground-truth/ocr.json",
			Description: "Optical character recognition over pecha page images.",
			Status:      StatusActive,
		},
		{
			Title:       "Tibetan STT",
			Category:    "stt",
			GroundTruth: "https://pechabench.s3.amazonaws.com/ground-truth/stt.json",
			Description: "Speech to text over recorded Tibetan audio.",
			Status:      StatusActive,
		},
		{
			Title:       "Tibetan MT",
			Category:    "mt",
			GroundTruth: "https://pechabench.s3.amazonaws.com/ground-truth/mt.json",
			Description: "Machine translation between Tibetan and English.",
			Status:      StatusUpcoming,
		},
	}}
}
