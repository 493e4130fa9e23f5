package evaluation

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pechabench/platform/pkg/common/logger"
	"github.com/pechabench/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// Fetcher retrieves and parses ground-truth datasets from their reference
// URLs. Parsed datasets are cached in Redis so repeated submissions against
// the same challenge skip the object-storage round trip; the cache is
// optional and the fetcher works without it.
type Fetcher struct {
	client *http.Client
	redis  *redis.Client
	ttl    time.Duration
}

func NewFetcher(rdb *redis.Client, timeout, ttl time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		redis:  rdb,
		ttl:    ttl,
	}
}

func (f *Fetcher) FetchGroundTruth(ctx context.Context, url string) ([]models.DatasetRecord, error) {
	if url == "" {
		return nil, fmt.Errorf("ground truth URL is empty")
	}

	key := cacheKey(url)
	if f.redis != nil {
		if data, err := f.redis.Get(ctx, key).Bytes(); err == nil {
			var records []models.DatasetRecord
			if err := json.Unmarshal(data, &records); err == nil {
				logger.Log.WithField("url", url).Debug("Ground truth cache hit")
				return records, nil
			}
		}
	}

	records, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}

	if f.redis != nil {
		if data, err := json.Marshal(records); err == nil {
			if err := f.redis.Set(ctx, key, data, f.ttl).Err(); err != nil {
				logger.Log.WithError(err).Warn("Failed to cache ground truth")
			}
		}
	}

	return records, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]models.DatasetRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building ground truth request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading ground truth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading ground truth: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ground truth body: %w", err)
	}

	var records []models.DatasetRecord
	if err := json.Unmarshal(body, &records); err != nil {
		var single models.DatasetRecord
		if err2 := json.Unmarshal(body, &single); err2 != nil {
			return nil, fmt.Errorf("parsing ground truth JSON: %w", err)
		}
		records = []models.DatasetRecord{single}
	}

	logger.Log.WithFields(map[string]interface{}{
		"url":     url,
		"records": len(records),
	}).Info("Ground truth downloaded")
	return records, nil
}

func cacheKey(url string) string {
	return fmt.Sprintf("groundtruth:%x", sha256.Sum256([]byte(url)))
}
