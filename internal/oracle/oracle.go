package oracle

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
	"github.com/pojakpijak/H-5N1P3R/internal/regime"
	"github.com/pojakpijak/H-5N1P3R/internal/weights"
	"github.com/pojakpijak/H-5N1P3R/pkg/logger"
)

const (
	// DefaultRecalcEvery - adaptive weights refresh after this many
	// scored candidates.
	DefaultRecalcEvery = 50
	// sampleCap bounds the rolling candidate sample fed to the adaptive
	// engine; oldest entries fall off.
	sampleCap = 256
)

// Oracle is the decision loop. It consumes pre-featured candidates, folds
// the active configuration and adaptive adjustments into a final score,
// records every decision, and applies optimizer proposals as they arrive.
type Oracle struct {
	cfg       *ConfigCell
	engine    *weights.AdaptiveEngine
	regimes   *regime.State
	candidate <-chan domain.ScoredCandidate
	proposals <-chan domain.OptimizedParameters
	decisions chan<- domain.TransactionRecord
	log       zerolog.Logger

	recalcEvery int
	scored      int
	sample      []domain.ScoredCandidate
}

// New wires the oracle loop. recalcEvery <= 0 falls back to
// DefaultRecalcEvery.
func New(
	cfg *ConfigCell,
	engine *weights.AdaptiveEngine,
	regimes *regime.State,
	candidates <-chan domain.ScoredCandidate,
	proposals <-chan domain.OptimizedParameters,
	decisions chan<- domain.TransactionRecord,
	recalcEvery int,
	log zerolog.Logger,
) *Oracle {
	if recalcEvery <= 0 {
		recalcEvery = DefaultRecalcEvery
	}
	return &Oracle{
		cfg:         cfg,
		engine:      engine,
		regimes:     regimes,
		candidate:   candidates,
		proposals:   proposals,
		decisions:   decisions,
		recalcEvery: recalcEvery,
		log:         logger.Component(log, "oracle"),
	}
}

// Run processes candidates and proposals until the context is cancelled.
func (o *Oracle) Run(ctx context.Context) {
	o.log.Info().Int("recalc_every", o.recalcEvery).Msg("Oracle started")

	for {
		select {
		case <-ctx.Done():
			o.log.Info().Msg("Oracle stopping")
			return

		case c := <-o.candidate:
			rec := o.evaluate(c)
			select {
			case o.decisions <- rec:
			case <-ctx.Done():
				return
			}

		case p := <-o.proposals:
			o.applyProposal(p)
		}
	}
}

// evaluate scores one candidate and builds its ledger record.
func (o *Oracle) evaluate(c domain.ScoredCandidate) domain.TransactionRecord {
	c.PredictedScore = o.Score(c.FeatureScores)
	if c.Timestamp == 0 {
		c.Timestamp = time.Now().UnixMilli()
	}

	o.trackSample(c)

	o.log.Debug().
		Str("mint", c.Mint).
		Uint8("score", c.PredictedScore).
		Str("regime", string(o.regimes.Current())).
		Msg("Candidate scored")

	return domain.TransactionRecord{
		Candidate:      c,
		DecisionMadeAt: c.Timestamp,
		ActualOutcome:  domain.NotExecuted(),
		MarketContext:  o.marketContext(),
	}
}

// marketContext snapshots the macro conditions behind this decision: the
// detector's latest readings plus a flag for the active regime.
func (o *Oracle) marketContext() map[string]float64 {
	ctx := map[string]float64{
		"regime_" + string(o.regimes.Current()): 1,
	}

	macro := o.regimes.Macro()
	if macro.SampledAt != 0 {
		ctx["sol_price_usd"] = macro.SolPriceUSD
		ctx["network_tps"] = macro.NetworkTPS
		ctx["dex_volume_usd"] = macro.DexVolumeUSD
		ctx["volatility_pct"] = macro.VolatilityPct
	}
	return ctx
}

// Score computes the weighted 0-100 score for a feature map using the
// active configuration with adaptive adjustments folded in. Weights are
// normalized over the features actually present.
func (o *Oracle) Score(featureScores map[string]float64) uint8 {
	effective := o.engine.EffectiveWeights()

	var weighted, totalWeight float64
	for _, f := range domain.AllFeatures() {
		score, ok := featureScores[string(f)]
		if !ok {
			continue
		}
		w := effective.Weight(f)
		weighted += w * score
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}

	score := math.Round(weighted / totalWeight * 100.0)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return uint8(score)
}

// trackSample feeds the rolling adaptive-weights sample and triggers a
// recalculation every recalcEvery candidates.
func (o *Oracle) trackSample(c domain.ScoredCandidate) {
	o.sample = append(o.sample, c)
	if len(o.sample) > sampleCap {
		o.sample = o.sample[len(o.sample)-sampleCap:]
	}

	o.scored++
	if o.scored%o.recalcEvery == 0 {
		o.engine.Recalculate(o.sample)
		o.log.Debug().
			Int("sample", len(o.sample)).
			Msg("Adaptive weights recalculated")
	}
}

// applyProposal is the "Act" phase: swap the proposal into the config cell
// and rebase the adaptive engine on the new weights.
func (o *Oracle) applyProposal(p domain.OptimizedParameters) {
	if err := o.cfg.Update(p.NewWeights, p.NewThresholds); err != nil {
		o.log.Error().Err(err).
			Str("proposal_id", p.ID).
			Msg("Rejected parameter proposal")
		return
	}
	o.engine.SetBase(p.NewWeights)

	o.log.Info().
		Str("proposal_id", p.ID).
		Str("reason", p.Reason).
		Msg("Parameter proposal applied")
}
