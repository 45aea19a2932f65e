// Package weights nudges feature weights toward the features that best
// separate good decisions from bad ones, independent of realized P&L.
package weights

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
	"github.com/pojakpijak/H-5N1P3R/pkg/logger"
)

const (
	// successScore - candidates at or above this (without anomaly) count
	// as successful decisions.
	successScore = 80
	// failureScore - candidates below this count as failed decisions.
	failureScore = 50

	adjustmentMin = -0.5
	adjustmentMax = 0.5

	effectiveWeightMin = 0.01
	effectiveWeightMax = 1.0

	// DefaultAdaptationRate scales raw adjustments before smoothing.
	DefaultAdaptationRate = 0.1
)

// AdaptiveEngine maintains per-feature weight adjustments derived from the
// statistical behavior of recently scored candidates. State is owned by the
// invoking scorer goroutine; the engine itself is not safe for concurrent
// use and does not need to be.
type AdaptiveEngine struct {
	base           domain.FeatureWeights
	adjustments    map[domain.Feature]float64
	adaptationRate float64
	log            zerolog.Logger
}

// NewAdaptiveEngine builds an engine around a base weight set.
// rate <= 0 falls back to DefaultAdaptationRate.
func NewAdaptiveEngine(base domain.FeatureWeights, rate float64, log zerolog.Logger) *AdaptiveEngine {
	if rate <= 0 {
		rate = DefaultAdaptationRate
	}
	return &AdaptiveEngine{
		base:           base,
		adjustments:    make(map[domain.Feature]float64),
		adaptationRate: rate,
		log:            logger.Component(log, "adaptive_weights"),
	}
}

// SetBase replaces the base weights, preserving learned adjustments.
// Called when the optimizer's proposal is applied.
func (e *AdaptiveEngine) SetBase(base domain.FeatureWeights) {
	e.base = base
}

// EffectiveWeights returns base + adjustment per feature, each clamped to
// [0.01, 1.0].
func (e *AdaptiveEngine) EffectiveWeights() domain.FeatureWeights {
	var out domain.FeatureWeights
	for _, f := range domain.AllFeatures() {
		v := e.base.Weight(f) + e.adjustments[f]
		out.SetWeight(f, clamp(v, effectiveWeightMin, effectiveWeightMax))
	}
	return out
}

// Adjustment returns the current smoothed adjustment for one feature.
func (e *AdaptiveEngine) Adjustment(f domain.Feature) float64 {
	return e.adjustments[f]
}

// Recalculate updates adjustments from a batch of recently scored
// candidates. Candidates in the middle band (score 50-79, no anomaly) are
// treated as inconclusive and only contribute to the correlation term.
func (e *AdaptiveEngine) Recalculate(candidates []domain.ScoredCandidate) {
	if len(candidates) == 0 {
		return
	}

	var successes, failures []domain.ScoredCandidate
	for _, c := range candidates {
		switch {
		case c.PredictedScore >= successScore && !c.AnomalyDetected:
			successes = append(successes, c)
		case c.PredictedScore < failureScore || c.AnomalyDetected:
			failures = append(failures, c)
		}
	}

	for _, f := range domain.AllFeatures() {
		raw := e.rawAdjustment(f, candidates, successes, failures)

		// Exponential smoothing prevents single-batch swings.
		smoothed := 0.8*e.adjustments[f] + 0.2*raw
		e.adjustments[f] = clamp(smoothed, adjustmentMin, adjustmentMax)
	}

	e.log.Debug().
		Int("sample", len(candidates)).
		Int("successes", len(successes)).
		Int("failures", len(failures)).
		Msg("Weight adjustments recalculated")
}

func (e *AdaptiveEngine) rawAdjustment(f domain.Feature, all, successes, failures []domain.ScoredCandidate) float64 {
	name := string(f)

	effectiveness := clamp(0.5+featureMean(successes, name)-featureMean(failures, name), 0, 1)
	variance := featureStdDev(successes, name)
	correlation := scoreCorrelation(all, name)

	return e.adaptationRate * (0.4*(2*effectiveness-1) +
		0.4*correlation +
		0.2*math.Max(0.5-variance, -0.5))
}

func featureMean(candidates []domain.ScoredCandidate, feature string) float64 {
	values := featureValues(candidates, feature)
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

func featureStdDev(candidates []domain.ScoredCandidate, feature string) float64 {
	values := featureValues(candidates, feature)
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// scoreCorrelation computes the Pearson correlation between a feature's
// score and the final predicted score across the full sample. Degenerate
// samples (constant columns, fewer than two points) yield 0.
func scoreCorrelation(candidates []domain.ScoredCandidate, feature string) float64 {
	var xs, ys []float64
	for _, c := range candidates {
		v, ok := c.FeatureScores[feature]
		if !ok {
			continue
		}
		xs = append(xs, v)
		ys = append(ys, float64(c.PredictedScore))
	}
	if len(xs) < 2 {
		return 0
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

func featureValues(candidates []domain.ScoredCandidate, feature string) []float64 {
	var values []float64
	for _, c := range candidates {
		if v, ok := c.FeatureScores[feature]; ok {
			values = append(values, v)
		}
	}
	return values
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
