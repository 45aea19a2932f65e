// Package ledger persists every scoring decision and its eventual outcome.
// The ledger is the system's long-term memory: append-only records, patched
// exactly once with a terminal outcome, never deleted.
package ledger

import (
	"context"
	"errors"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
)

// ErrOutcomeConflict is returned when a patch tries to replace a terminal
// outcome with a different terminal outcome. Re-applying the identical
// outcome is a no-op, not a conflict.
var ErrOutcomeConflict = errors.New("outcome already terminal")

// Storage is the capability surface the rest of the system sees. Consumers
// depend on this interface, never on a concrete implementation.
type Storage interface {
	// InsertRecord appends a new decision record and returns its row id.
	InsertRecord(ctx context.Context, rec *domain.TransactionRecord) (int64, error)

	// UpdateOutcome patches the record matching the update's signature.
	// A missing signature is not an error: the patch is dropped and
	// (false, nil) is returned. Identical re-patches are idempotent no-ops.
	// Replacing a terminal outcome with a different terminal outcome fails
	// with ErrOutcomeConflict.
	UpdateOutcome(ctx context.Context, upd domain.OutcomeUpdate) (bool, error)

	// GetRecordsSince returns all records decided at or after the given
	// Unix-millisecond timestamp, oldest first.
	GetRecordsSince(ctx context.Context, sinceMillis int64) ([]domain.TransactionRecord, error)

	// GetLosingTrades returns up to limit losing records (Loss or
	// FailedExecution), most recent first.
	GetLosingTrades(ctx context.Context, limit int) ([]domain.TransactionRecord, error)

	// HealthCheck verifies the store is reachable and consistent.
	HealthCheck(ctx context.Context) error
}
