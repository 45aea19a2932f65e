package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
	"github.com/pojakpijak/H-5N1P3R/pkg/logger"
)

// DefaultConfirmationTimeout bounds how long a sent transaction may stay
// unresolved before it is forced to ConfirmationTimeout.
const DefaultConfirmationTimeout = 90 * time.Second

// Verifier checks a transaction's on-chain state. Implementations live in
// the RPC layer; the monitor only depends on this interface.
// A PendingConfirmation result means "not resolved yet, ask again".
type Verifier interface {
	VerifyTransaction(ctx context.Context, signature string) (domain.Outcome, error)
}

type pendingTx struct {
	signature string
	deadline  time.Time
}

// TransactionMonitor tracks in-flight transaction signatures, polls the
// verifier for each, and emits outcome patches into the ledger's update
// channel. Signatures that outlive their deadline are forced to
// ConfirmationTimeout so no record stays pending forever.
type TransactionMonitor struct {
	verifier     Verifier
	updates      chan<- domain.OutcomeUpdate
	timeout      time.Duration
	pollInterval time.Duration
	log          zerolog.Logger

	mu      sync.Mutex
	pending map[string]pendingTx
}

// NewTransactionMonitor builds a monitor. A zero timeout falls back to
// DefaultConfirmationTimeout.
func NewTransactionMonitor(
	verifier Verifier,
	updates chan<- domain.OutcomeUpdate,
	timeout time.Duration,
	pollInterval time.Duration,
	log zerolog.Logger,
) *TransactionMonitor {
	if timeout <= 0 {
		timeout = DefaultConfirmationTimeout
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &TransactionMonitor{
		verifier:     verifier,
		updates:      updates,
		timeout:      timeout,
		pollInterval: pollInterval,
		log:          logger.Component(log, "transaction_monitor"),
		pending:      make(map[string]pendingTx),
	}
}

// Track registers a sent transaction for verification. Tracking the same
// signature twice keeps the original deadline.
func (m *TransactionMonitor) Track(signature string) {
	if signature == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pending[signature]; exists {
		return
	}
	m.pending[signature] = pendingTx{
		signature: signature,
		deadline:  time.Now().Add(m.timeout),
	}
	m.log.Debug().Str("signature", signature).Msg("Tracking transaction")
}

// PendingCount returns how many signatures are awaiting resolution.
func (m *TransactionMonitor) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Run polls pending signatures until the context is cancelled.
func (m *TransactionMonitor) Run(ctx context.Context) {
	m.log.Info().
		Dur("timeout", m.timeout).
		Dur("poll_interval", m.pollInterval).
		Msg("Transaction monitor started")

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("Transaction monitor stopping")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *TransactionMonitor) poll(ctx context.Context) {
	m.mu.Lock()
	batch := make([]pendingTx, 0, len(m.pending))
	for _, tx := range m.pending {
		batch = append(batch, tx)
	}
	m.mu.Unlock()

	now := time.Now()
	for _, tx := range batch {
		if now.After(tx.deadline) {
			m.resolve(ctx, tx.signature, domain.ConfirmationTimeout())
			continue
		}

		outcome, err := m.verifier.VerifyTransaction(ctx, tx.signature)
		if err != nil {
			// Transient verification failures keep the signature pending;
			// the deadline bounds total retry time.
			m.log.Warn().Err(err).
				Str("signature", tx.signature).
				Msg("Verification attempt failed, will retry")
			continue
		}
		if outcome.IsTerminal() {
			m.resolve(ctx, tx.signature, outcome)
		}
	}
}

func (m *TransactionMonitor) resolve(ctx context.Context, signature string, outcome domain.Outcome) {
	m.mu.Lock()
	delete(m.pending, signature)
	m.mu.Unlock()

	now := time.Now().UnixMilli()
	upd := domain.OutcomeUpdate{
		Signature:   signature,
		Outcome:     outcome,
		EvaluatedAt: &now,
	}

	select {
	case m.updates <- upd:
		m.log.Info().
			Str("signature", signature).
			Str("outcome", outcome.String()).
			Msg("Transaction resolved")
	case <-ctx.Done():
	}
}
