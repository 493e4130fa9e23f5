package evaluation

import (
	"math"
	"strings"

	"github.com/pechabench/platform/pkg/common/logger"
	"github.com/pechabench/platform/pkg/common/models"
)

// WorstScore is the explicit "could not evaluate" sentinel for error-rate
// metrics: 1.0 means total failure.
const WorstScore = 1.0

// Metric scores one (reference, prediction) pair as a normalized error
// rate in [0,1], lower is better.
type Metric func(reference, prediction string) float64

// CharacterErrorRate is the rune-level edit distance divided by the
// reference length, clamped to [0,1].
func CharacterErrorRate(reference, prediction string) float64 {
	ref := []rune(reference)
	pred := []rune(prediction)
	if len(ref) == 0 {
		return WorstScore
	}
	return clampRate(float64(editDistance(ref, pred)) / float64(len(ref)))
}

// WordErrorRate is the token-level edit distance divided by the reference
// token count, clamped to [0,1].
func WordErrorRate(reference, prediction string) float64 {
	ref := strings.Fields(reference)
	pred := strings.Fields(prediction)
	if len(ref) == 0 {
		return WorstScore
	}
	return clampRate(float64(editDistance(ref, pred)) / float64(len(ref)))
}

func clampRate(rate float64) float64 {
	if rate > WorstScore {
		return WorstScore
	}
	if rate < 0 {
		return 0
	}
	return rate
}

// editDistance is the Levenshtein distance between two sequences, two-row
// dynamic programming.
func editDistance[T comparable](a, b []T) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Engine compares a ground-truth dataset against submitted predictions
// over the intersection of filenames and averages per-pair metric values.
// It never returns an error: anything unevaluable scores WorstScore.
type Engine struct {
	normalize Normalizer
	metrics   map[string]Metric
}

func NewEngine() *Engine {
	return &Engine{
		normalize: DefaultNormalizer,
		metrics: map[string]Metric{
			"cer": CharacterErrorRate,
			"wer": WordErrorRate,
		},
	}
}

func (e *Engine) WithNormalizer(n Normalizer) *Engine {
	if n != nil {
		e.normalize = n
	}
	return e
}

func (e *Engine) MetricNames() []string {
	names := make([]string, 0, len(e.metrics))
	for name := range e.metrics {
		names = append(names, name)
	}
	return names
}

func (e *Engine) worst() map[string]float64 {
	scores := make(map[string]float64, len(e.metrics))
	for name := range e.metrics {
		scores[name] = WorstScore
	}
	return scores
}

// Score computes the mean per-pair error rate for every registered metric.
// Keys present on only one side are logged and ignored; pairs with an
// empty side after trimming are skipped.
func (e *Engine) Score(groundTruth, submission []models.DatasetRecord) (scores map[string]float64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithField("panic", r).Error("Evaluation panicked, reporting worst-case scores")
			scores = e.worst()
		}
	}()

	references := make(map[string]string, len(groundTruth))
	for _, rec := range groundTruth {
		references[rec.Filename] = rec.Label
	}
	predictions := make(map[string]string, len(submission))
	for _, rec := range submission {
		predictions[rec.Filename] = rec.Prediction
	}

	var common []string
	missing := 0
	for filename := range references {
		if _, ok := predictions[filename]; ok {
			common = append(common, filename)
		} else {
			missing++
		}
	}
	if missing > 0 {
		logger.Log.WithField("count", missing).Warn("Ground-truth files without predictions")
	}
	if extra := len(predictions) - len(common); extra > 0 {
		logger.Log.WithField("count", extra).Warn("Predictions for files not in ground truth")
	}
	if len(common) == 0 {
		logger.Log.Warn("No common files between ground truth and submission")
		return e.worst()
	}

	logger.Log.WithField("count", len(common)).Info("Evaluating common files")

	sums := make(map[string]float64, len(e.metrics))
	scored := 0
	for _, filename := range common {
		reference := strings.TrimSpace(references[filename])
		prediction := strings.TrimSpace(predictions[filename])
		if reference == "" || prediction == "" {
			logger.Log.WithField("filename", filename).Warn("Skipping empty label or prediction")
			continue
		}

		reference = e.normalize(reference)
		prediction = e.normalize(prediction)
		for name, metric := range e.metrics {
			sums[name] += metric(reference, prediction)
		}
		scored++
	}

	if scored == 0 {
		logger.Log.Warn("No valid files could be evaluated")
		return e.worst()
	}

	scores = make(map[string]float64, len(e.metrics))
	for name := range e.metrics {
		scores[name] = round4(sums[name] / float64(scored))
	}
	logger.Log.WithFields(map[string]interface{}{
		"samples": scored,
		"scores":  scores,
	}).Info("Evaluation completed")
	return scores
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
