package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
	testdb "github.com/pojakpijak/H-5N1P3R/internal/testing"
)

func newTestLedger(t *testing.T) (*SQLiteLedger, func()) {
	t.Helper()

	db, cleanup := testdb.NewTestDB(t, "decisions")
	l, err := NewSQLiteLedger(db, zerolog.Nop())
	require.NoError(t, err)
	return l, cleanup
}

func testRecord(mint, signature string, score uint8, outcome domain.Outcome, decidedAt int64) domain.TransactionRecord {
	return domain.TransactionRecord{
		Candidate: domain.ScoredCandidate{
			Mint:           mint,
			PredictedScore: score,
			FeatureScores: map[string]float64{
				"liquidity":     0.8,
				"volume_growth": 0.6,
			},
			Reason:    "test decision",
			Timestamp: decidedAt,
		},
		Signature:      signature,
		DecisionMadeAt: decidedAt,
		ActualOutcome:  outcome,
		MarketContext:  map[string]float64{"sol_price_usd": 150.0},
	}
}

func TestInsertAndReadBack(t *testing.T) {
	l, cleanup := newTestLedger(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UnixMilli()
	rec := testRecord("MintAAA", "sig-1", 85, domain.PendingConfirmation(), now)
	spent := 1.5
	rec.InitialSolSpent = &spent

	id, err := l.InsertRecord(ctx, &rec)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	records, err := l.GetRecordsSince(ctx, now-1000)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "MintAAA", got.Candidate.Mint)
	assert.Equal(t, uint8(85), got.Candidate.PredictedScore)
	assert.Equal(t, "sig-1", got.Signature)
	assert.Equal(t, domain.OutcomePendingConfirmation, got.ActualOutcome.Kind)
	assert.Equal(t, 0.8, got.Candidate.FeatureScores["liquidity"])
	assert.Equal(t, 150.0, got.MarketContext["sol_price_usd"])
	require.NotNil(t, got.InitialSolSpent)
	assert.Equal(t, 1.5, *got.InitialSolSpent)
}

func TestGetRecordsSinceFiltersAndOrders(t *testing.T) {
	l, cleanup := newTestLedger(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UnixMilli()
	for i, mint := range []string{"old", "mid", "new"} {
		rec := testRecord(mint, "", 50, domain.NotExecuted(), base+int64(i)*10_000)
		_, err := l.InsertRecord(ctx, &rec)
		require.NoError(t, err)
	}

	records, err := l.GetRecordsSince(ctx, base+10_000)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "mid", records[0].Candidate.Mint)
	assert.Equal(t, "new", records[1].Candidate.Mint)
}

func TestUpdateOutcomeUnknownSignatureIsNoOp(t *testing.T) {
	l, cleanup := newTestLedger(t)
	defer cleanup()

	applied, err := l.UpdateOutcome(context.Background(), domain.OutcomeUpdate{
		Signature: "never-seen",
		Outcome:   domain.Profit(0.5),
	})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestUpdateOutcomeTransitionsAndIdempotency(t *testing.T) {
	l, cleanup := newTestLedger(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UnixMilli()
	rec := testRecord("MintBBB", "sig-2", 90, domain.PendingConfirmation(), now)
	_, err := l.InsertRecord(ctx, &rec)
	require.NoError(t, err)

	received := 2.0
	applied, err := l.UpdateOutcome(ctx, domain.OutcomeUpdate{
		Signature:   "sig-2",
		Outcome:     domain.Profit(0.5),
		SolReceived: &received,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	// Identical re-patch is an idempotent no-op.
	applied, err = l.UpdateOutcome(ctx, domain.OutcomeUpdate{
		Signature: "sig-2",
		Outcome:   domain.Profit(0.5),
	})
	require.NoError(t, err)
	assert.False(t, applied)

	records, err := l.GetRecordsSince(ctx, now-1000)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.Profit(0.5), records[0].ActualOutcome)
	require.NotNil(t, records[0].FinalSolReceived)
	assert.Equal(t, 2.0, *records[0].FinalSolReceived)
	assert.NotNil(t, records[0].OutcomeEvaluatedAt)
}

func TestUpdateOutcomeSameOutcomeStillFillsExecutionFields(t *testing.T) {
	l, cleanup := newTestLedger(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UnixMilli()
	rec := testRecord("MintDDD", "sig-p", 88, domain.PendingConfirmation(), now)
	_, err := l.InsertRecord(ctx, &rec)
	require.NoError(t, err)

	// Send-time patch: outcome unchanged, but buy price and spend are now
	// known and must land on the record.
	buyPrice := 0.0005
	spent := 1.2
	applied, err := l.UpdateOutcome(ctx, domain.OutcomeUpdate{
		Signature:   "sig-p",
		Outcome:     domain.PendingConfirmation(),
		BuyPriceSol: &buyPrice,
		SolSpent:    &spent,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	records, err := l.GetRecordsSince(ctx, now-1000)
	require.NoError(t, err)
	require.Len(t, records, 1)
	got := records[0]
	assert.Equal(t, domain.PendingConfirmation(), got.ActualOutcome)
	require.NotNil(t, got.BuyPriceSol)
	assert.Equal(t, 0.0005, *got.BuyPriceSol)
	require.NotNil(t, got.InitialSolSpent)
	assert.Equal(t, 1.2, *got.InitialSolSpent)
	// Still pending: no final verdict timestamp yet.
	assert.Nil(t, got.OutcomeEvaluatedAt)

	// Once terminal, identical re-patches stay no-ops even with fields.
	_, err = l.UpdateOutcome(ctx, domain.OutcomeUpdate{Signature: "sig-p", Outcome: domain.Profit(0.4)})
	require.NoError(t, err)

	applied, err = l.UpdateOutcome(ctx, domain.OutcomeUpdate{
		Signature:   "sig-p",
		Outcome:     domain.Profit(0.4),
		SolReceived: &spent,
	})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestUpdateOutcomeRejectsTerminalConflict(t *testing.T) {
	l, cleanup := newTestLedger(t)
	defer cleanup()
	ctx := context.Background()

	rec := testRecord("MintCCC", "sig-3", 90, domain.PendingConfirmation(), time.Now().UnixMilli())
	_, err := l.InsertRecord(ctx, &rec)
	require.NoError(t, err)

	_, err = l.UpdateOutcome(ctx, domain.OutcomeUpdate{Signature: "sig-3", Outcome: domain.Profit(0.3)})
	require.NoError(t, err)

	_, err = l.UpdateOutcome(ctx, domain.OutcomeUpdate{Signature: "sig-3", Outcome: domain.Loss(0.3)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutcomeConflict))
}

func TestGetLosingTrades(t *testing.T) {
	l, cleanup := newTestLedger(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UnixMilli()
	outcomes := []domain.Outcome{
		domain.Profit(1.0),
		domain.Loss(0.4),
		domain.FailedExecution(),
		domain.NotExecuted(),
		domain.Loss(0.1),
	}
	for i, o := range outcomes {
		rec := testRecord("mint", "", 40, o, base+int64(i)*1000)
		_, err := l.InsertRecord(ctx, &rec)
		require.NoError(t, err)
	}

	losses, err := l.GetLosingTrades(ctx, 50)
	require.NoError(t, err)
	require.Len(t, losses, 3)
	// Most recent first.
	assert.Equal(t, domain.Loss(0.1), losses[0].ActualOutcome)
	for _, rec := range losses {
		assert.True(t, rec.ActualOutcome.IsLoss())
	}

	limited, err := l.GetLosingTrades(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestHealthCheck(t *testing.T) {
	l, cleanup := newTestLedger(t)
	defer cleanup()

	assert.NoError(t, l.HealthCheck(context.Background()))
}
