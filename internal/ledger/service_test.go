package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
)

func TestServiceRecordsDecisionsAndPatches(t *testing.T) {
	l, cleanup := newTestLedger(t)
	defer cleanup()

	decisions := make(chan domain.TransactionRecord, 4)
	updates := make(chan domain.OutcomeUpdate, 4)
	svc := NewService(l, decisions, updates, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	now := time.Now().UnixMilli()
	decisions <- testRecord("MintSvc", "sig-svc", 88, domain.PendingConfirmation(), now)

	// The single consumer drains decisions and patches in send order, so the
	// insert is visible before the patch is applied.
	require.Eventually(t, func() bool {
		recs, err := l.GetRecordsSince(context.Background(), now-1000)
		return err == nil && len(recs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	updates <- domain.OutcomeUpdate{Signature: "sig-svc", Outcome: domain.Profit(0.25)}

	require.Eventually(t, func() bool {
		recs, err := l.GetRecordsSince(context.Background(), now-1000)
		return err == nil && len(recs) == 1 && recs[0].ActualOutcome.Equal(domain.Profit(0.25))
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop on context cancellation")
	}
}

func TestServiceSurvivesFailedWrites(t *testing.T) {
	l, cleanup := newTestLedger(t)
	defer cleanup()

	decisions := make(chan domain.TransactionRecord, 4)
	updates := make(chan domain.OutcomeUpdate, 4)
	svc := NewService(l, decisions, updates, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	// Empty signature fails validation inside UpdateOutcome; the service must
	// log, drop, and keep consuming.
	updates <- domain.OutcomeUpdate{Outcome: domain.Profit(1.0)}

	now := time.Now().UnixMilli()
	decisions <- testRecord("MintAfterError", "", 70, domain.NotExecuted(), now)

	require.Eventually(t, func() bool {
		recs, err := l.GetRecordsSince(context.Background(), now-1000)
		return err == nil && len(recs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	recs, err := l.GetRecordsSince(context.Background(), now-1000)
	require.NoError(t, err)
	assert.Equal(t, "MintAfterError", recs[0].Candidate.Mint)
}
