package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
	"github.com/pojakpijak/H-5N1P3R/internal/ledger"
	testdb "github.com/pojakpijak/H-5N1P3R/internal/testing"
)

const testMinSample = 3

func newOptimizerFixture(t *testing.T) (*StrategyOptimizer, ledger.Storage, chan domain.PerformanceReport, chan domain.OptimizedParameters, func()) {
	t.Helper()

	db, cleanup := testdb.NewTestDB(t, "decisions")
	store, err := ledger.NewSQLiteLedger(db, zerolog.Nop())
	require.NoError(t, err)

	reports := make(chan domain.PerformanceReport, 4)
	proposals := make(chan domain.OptimizedParameters, 4)
	o := NewStrategyOptimizer(
		store, reports, proposals,
		domain.DefaultFeatureWeights(), domain.DefaultScoreThresholds(),
		testMinSample, zerolog.Nop(),
	)
	return o, store, reports, proposals, cleanup
}

func insertLoss(t *testing.T, store ledger.Storage, features map[string]float64, decidedAt int64) {
	t.Helper()

	rec := domain.TransactionRecord{
		Candidate: domain.ScoredCandidate{
			Mint:           "mint",
			PredictedScore: 85,
			FeatureScores:  features,
			Timestamp:      decidedAt,
		},
		DecisionMadeAt: decidedAt,
		ActualOutcome:  domain.Loss(0.5),
		MarketContext:  map[string]float64{},
	}
	_, err := store.InsertRecord(context.Background(), &rec)
	require.NoError(t, err)
}

func TestEvaluateSkipsHealthyReport(t *testing.T) {
	o, _, _, _, cleanup := newOptimizerFixture(t)
	defer cleanup()

	proposal, err := o.Evaluate(context.Background(), domain.PerformanceReport{
		ProfitFactor:         1.5,
		TotalTradesEvaluated: 20,
	})
	require.NoError(t, err)
	assert.Nil(t, proposal)
}

func TestEvaluateSkipsSmallSample(t *testing.T) {
	o, _, _, _, cleanup := newOptimizerFixture(t)
	defer cleanup()

	proposal, err := o.Evaluate(context.Background(), domain.PerformanceReport{
		ProfitFactor:         0.5,
		TotalTradesEvaluated: testMinSample, // must be strictly greater
	})
	require.NoError(t, err)
	assert.Nil(t, proposal)
}

func TestEvaluateBoostsWorstFeature(t *testing.T) {
	o, store, _, _, cleanup := newOptimizerFixture(t)
	defer cleanup()

	base := time.Now().UnixMilli()
	// liquidity consistently scored lowest among the losses.
	insertLoss(t, store, map[string]float64{"liquidity": 0.1, "volume_growth": 0.9}, base)
	insertLoss(t, store, map[string]float64{"liquidity": 0.2, "volume_growth": 0.8}, base+1000)
	insertLoss(t, store, map[string]float64{"liquidity": 0.15, "volume_growth": 0.7}, base+2000)
	insertLoss(t, store, map[string]float64{"liquidity": 0.1, "volume_growth": 0.6}, base+3000)

	proposal, err := o.Evaluate(context.Background(), domain.PerformanceReport{
		ProfitFactor:         0.8,
		TotalTradesEvaluated: 12,
	})
	require.NoError(t, err)
	require.NotNil(t, proposal)

	defaults := domain.DefaultFeatureWeights()
	assert.InDelta(t, defaults.Liquidity*1.10, proposal.NewWeights.Liquidity, 1e-9)
	// Every other weight untouched.
	assert.Equal(t, defaults.VolumeGrowth, proposal.NewWeights.VolumeGrowth)
	assert.Equal(t, defaults.HolderGrowth, proposal.NewWeights.HolderGrowth)
	// Thresholds never change.
	assert.Equal(t, domain.DefaultScoreThresholds(), proposal.NewThresholds)
	assert.NotEmpty(t, proposal.ID)
	assert.Contains(t, proposal.Reason, "liquidity")
}

func TestEvaluateCompoundsBaseline(t *testing.T) {
	o, store, _, _, cleanup := newOptimizerFixture(t)
	defer cleanup()

	base := time.Now().UnixMilli()
	for i := 0; i < 4; i++ {
		insertLoss(t, store, map[string]float64{"liquidity": 0.1, "volume_growth": 0.9}, base+int64(i)*1000)
	}

	report := domain.PerformanceReport{ProfitFactor: 0.8, TotalTradesEvaluated: 12}

	first, err := o.Evaluate(context.Background(), report)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := o.Evaluate(context.Background(), report)
	require.NoError(t, err)
	require.NotNil(t, second)

	// The second boost applies on top of the first.
	defaults := domain.DefaultFeatureWeights()
	assert.InDelta(t, defaults.Liquidity*1.10*1.10, second.NewWeights.Liquidity, 1e-9)
}

func TestEvaluateNoLossesNoProposal(t *testing.T) {
	o, _, _, _, cleanup := newOptimizerFixture(t)
	defer cleanup()

	proposal, err := o.Evaluate(context.Background(), domain.PerformanceReport{
		ProfitFactor:         0.5,
		TotalTradesEvaluated: 12,
	})
	require.NoError(t, err)
	assert.Nil(t, proposal)
}

func TestEvaluateIgnoresLossesOutsideReportWindow(t *testing.T) {
	o, store, _, _, cleanup := newOptimizerFixture(t)
	defer cleanup()

	old := time.Now().Add(-48 * time.Hour).UnixMilli()
	for i := 0; i < 4; i++ {
		insertLoss(t, store, map[string]float64{"liquidity": 0.1}, old+int64(i)*1000)
	}

	proposal, err := o.Evaluate(context.Background(), domain.PerformanceReport{
		ProfitFactor:         0.8,
		TotalTradesEvaluated: 12,
		TimeWindowHours:      24,
	})
	require.NoError(t, err)
	assert.Nil(t, proposal)
}

func TestRunEmitsProposals(t *testing.T) {
	o, store, reports, proposals, cleanup := newOptimizerFixture(t)
	defer cleanup()

	base := time.Now().UnixMilli()
	for i := 0; i < 4; i++ {
		insertLoss(t, store, map[string]float64{"liquidity": 0.1, "holder_growth": 0.9}, base+int64(i)*1000)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	reports <- domain.PerformanceReport{ID: "r1", ProfitFactor: 0.9, TotalTradesEvaluated: 15}

	select {
	case p := <-proposals:
		assert.NotEmpty(t, p.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a proposal")
	}
}
