package challenge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "challenges.yaml")
	content := `challenges:
  - title: Tibetan OCR
    category: ocr
    ground_truth: https://datasets.local/ocr.json
    description: OCR over pecha pages.
    status: active
  - title: Tibetan STT
    category: stt
    ground_truth: https://datasets.local/stt.json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}

	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(cat.Challenges) != 2 {
		t.Fatalf("expected 2 challenges, got %d", len(cat.Challenges))
	}
	if cat.Challenges[0].GroundTruth != "https://datasets.local/ocr.json" {
		t.Fatalf("unexpected ground truth: %q", cat.Challenges[0].GroundTruth)
	}
}

func TestLoadCatalogDefaultsWhenUnset(t *testing.T) {
	cat, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(cat.Challenges) == 0 {
		t.Fatal("default catalog must not be empty")
	}
	for _, def := range cat.Challenges {
		if def.Title == "" || def.GroundTruth == "" {
			t.Fatalf("default catalog entry incomplete: %+v", def)
		}
	}
}

func TestLoadCatalogRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "challenges.yaml")
	if err := os.WriteFile(path, []byte("challenges: []\n"), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for empty catalog")
	}
}

func TestLoadCatalogRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "challenges.yaml")
	if err := os.WriteFile(path, []byte("challenges: {not valid"), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestCatalogLookup(t *testing.T) {
	cat := DefaultCatalog()

	def, ok := cat.Lookup("tibetan ocr")
	if !ok {
		t.Fatal("lookup should be case-insensitive")
	}
	if def.Category != "ocr" {
		t.Fatalf("unexpected category %q", def.Category)
	}

	if _, ok := cat.Lookup("no such challenge"); ok {
		t.Fatal("lookup must miss for unknown titles")
	}
}
