// Package optimizer turns performance reports into parameter-change
// proposals. It is deliberately conservative: one bounded weight adjustment
// per underperforming report, always with a recorded reason.
package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
	"github.com/pojakpijak/H-5N1P3R/internal/ledger"
	"github.com/pojakpijak/H-5N1P3R/pkg/logger"
)

const (
	// profitFactorTrigger - reports at or above this need no intervention.
	profitFactorTrigger = 1.2
	// weightBoost applied to the worst-performing feature.
	weightBoost = 1.10
	// losingSampleCap bounds how many losing trades feed one analysis.
	losingSampleCap = 50
	// DefaultMinSampleSize - reports covering fewer trades are statistical noise.
	DefaultMinSampleSize = 10
)

// StrategyOptimizer consumes performance reports and emits parameter
// proposals. Proposals compound: each one becomes the baseline for the next.
type StrategyOptimizer struct {
	storage   ledger.Storage
	reports   <-chan domain.PerformanceReport
	proposals chan<- domain.OptimizedParameters
	minSample int
	log       zerolog.Logger

	// Current baseline, owned by the Run goroutine.
	weights    domain.FeatureWeights
	thresholds domain.ScoreThresholds
}

// NewStrategyOptimizer builds an optimizer starting from the given baseline.
// minSample <= 0 falls back to DefaultMinSampleSize.
func NewStrategyOptimizer(
	storage ledger.Storage,
	reports <-chan domain.PerformanceReport,
	proposals chan<- domain.OptimizedParameters,
	baseline domain.FeatureWeights,
	thresholds domain.ScoreThresholds,
	minSample int,
	log zerolog.Logger,
) *StrategyOptimizer {
	if minSample <= 0 {
		minSample = DefaultMinSampleSize
	}
	return &StrategyOptimizer{
		storage:    storage,
		reports:    reports,
		proposals:  proposals,
		minSample:  minSample,
		log:        logger.Component(log, "strategy_optimizer"),
		weights:    baseline,
		thresholds: thresholds,
	}
}

// Run consumes reports until the context is cancelled.
func (o *StrategyOptimizer) Run(ctx context.Context) {
	o.log.Info().Int("min_sample", o.minSample).Msg("Strategy optimizer started")

	for {
		select {
		case <-ctx.Done():
			o.log.Info().Msg("Strategy optimizer stopping")
			return
		case report := <-o.reports:
			proposal, err := o.Evaluate(ctx, report)
			if err != nil {
				o.log.Error().Err(err).
					Str("report_id", report.ID).
					Msg("Optimization pass failed")
				continue
			}
			if proposal == nil {
				continue
			}
			select {
			case o.proposals <- *proposal:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Evaluate inspects one report and returns a proposal when intervention is
// warranted, nil otherwise. A successful proposal becomes the new baseline.
func (o *StrategyOptimizer) Evaluate(ctx context.Context, report domain.PerformanceReport) (*domain.OptimizedParameters, error) {
	if report.ProfitFactor >= profitFactorTrigger || report.TotalTradesEvaluated <= o.minSample {
		o.log.Debug().
			Str("report_id", report.ID).
			Float64("profit_factor", report.ProfitFactor).
			Int("trades", report.TotalTradesEvaluated).
			Msg("No intervention needed")
		return nil, nil
	}

	losses, err := o.storage.GetLosingTrades(ctx, losingSampleCap)
	if err != nil {
		return nil, fmt.Errorf("failed to load losing trades: %w", err)
	}
	losses = withinWindow(losses, report.TimeWindowHours)
	if len(losses) == 0 {
		return nil, nil
	}

	worst, mean, ok := worstFeature(losses)
	if !ok {
		return nil, nil
	}

	newWeights := o.weights
	boosted := newWeights.Weight(worst) * weightBoost
	newWeights.SetWeight(worst, boosted)

	proposal := &domain.OptimizedParameters{
		ID:            uuid.NewString(),
		NewWeights:    newWeights,
		NewThresholds: o.thresholds,
		Reason: fmt.Sprintf(
			"profit factor %.2f below %.2f over %d trades; feature %q scored lowest among %d losing trades (mean %.3f), weight raised %.3f -> %.3f",
			report.ProfitFactor, profitFactorTrigger, report.TotalTradesEvaluated,
			worst, len(losses), mean, o.weights.Weight(worst), boosted,
		),
	}

	// Compounding baseline: the next report is judged against this proposal.
	o.weights = newWeights

	o.log.Info().
		Str("proposal_id", proposal.ID).
		Str("worst_feature", string(worst)).
		Float64("mean_score", mean).
		Float64("new_weight", boosted).
		Msg("Parameter adjustment proposed")

	return proposal, nil
}

// withinWindow keeps only losses decided inside the report's trailing
// window. A zero window means the report carries no time bound.
func withinWindow(losses []domain.TransactionRecord, windowHours float64) []domain.TransactionRecord {
	if windowHours <= 0 {
		return losses
	}
	cutoff := time.Now().UnixMilli() - int64(windowHours*float64(time.Hour/time.Millisecond))

	filtered := losses[:0]
	for _, rec := range losses {
		if rec.DecisionMadeAt >= cutoff {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// worstFeature returns the feature with the lowest mean score across the
// losing trades. Only features actually present in the loss records are
// considered. Ties resolve to the earliest feature in canonical order:
// feature scores arrive as maps, so any "first seen" rule would pick a
// different winner from run to run.
func worstFeature(losses []domain.TransactionRecord) (domain.Feature, float64, bool) {
	sums := make(map[domain.Feature]float64)
	counts := make(map[domain.Feature]int)

	for _, rec := range losses {
		for name, score := range rec.Candidate.FeatureScores {
			f := domain.Feature(name)
			sums[f] += score
			counts[f]++
		}
	}

	var (
		worst     domain.Feature
		worstMean float64
		found     bool
	)
	for _, f := range domain.AllFeatures() {
		n := counts[f]
		if n == 0 {
			continue
		}
		mean := sums[f] / float64(n)
		if !found || mean < worstMean {
			worst = f
			worstMean = mean
			found = true
		}
	}
	return worst, worstMean, found
}
