package upload

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pechabench/platform/pkg/common/models"
)

var (
	errNotJSON     = errors.New("only JSON files are allowed")
	errTooLarge    = errors.New("file too large")
	errEmptyFile   = errors.New("JSON file is empty")
	errBadEncoding = errors.New("file is not valid UTF-8")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

var requiredColumns = []string{"filename", "prediction"}

// ParseAndValidate checks extension, size, encoding and record shape, and
// returns the parsed prediction records. Every failure is a ValidationError
// so callers can tell user mistakes from infrastructure faults.
func ParseAndValidate(content []byte, filename string, maxBytes int64) ([]models.DatasetRecord, error) {
	if strings.ToLower(filepath.Ext(filename)) != ".json" {
		return nil, ValidationError{reason: fmt.Errorf("Only JSON files are allowed: %w", errNotJSON)}
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return nil, ValidationError{reason: fmt.Errorf("file exceeds %d bytes: %w", maxBytes, errTooLarge)}
	}
	if len(content) == 0 {
		return nil, ValidationError{reason: errEmptyFile}
	}
	if !utf8.Valid(content) {
		return nil, ValidationError{reason: errBadEncoding}
	}

	// Decode generically first: field presence matters, not just values.
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		var single map[string]json.RawMessage
		if err2 := json.Unmarshal(content, &single); err2 != nil {
			return nil, ValidationError{reason: fmt.Errorf("invalid JSON format: %w", err)}
		}
		raw = []map[string]json.RawMessage{single}
	}
	if len(raw) == 0 {
		return nil, ValidationError{reason: errEmptyFile}
	}

	for i, record := range raw {
		for _, column := range requiredColumns {
			if _, ok := record[column]; !ok {
				return nil, ValidationError{
					reason: fmt.Errorf("record %d is missing required column: %s", i+1, column),
				}
			}
		}
	}

	var records []models.DatasetRecord
	if err := json.Unmarshal(content, &records); err != nil {
		var single models.DatasetRecord
		if err2 := json.Unmarshal(content, &single); err2 != nil {
			return nil, ValidationError{reason: fmt.Errorf("invalid JSON format: %w", err)}
		}
		records = []models.DatasetRecord{single}
	}

	return records, nil
}
