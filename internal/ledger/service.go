package ledger

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
	"github.com/pojakpijak/H-5N1P3R/pkg/logger"
)

// Service serializes all ledger writes through a single consumer goroutine.
// Producers send decisions and outcome patches on channels; the single
// consumer guarantees per-signature ordering (a record's insert always lands
// before any patch the same producer sent afterwards).
type Service struct {
	storage   Storage
	decisions <-chan domain.TransactionRecord
	updates   <-chan domain.OutcomeUpdate
	log       zerolog.Logger
}

// NewService wires a storage implementation to its input channels.
func NewService(
	storage Storage,
	decisions <-chan domain.TransactionRecord,
	updates <-chan domain.OutcomeUpdate,
	log zerolog.Logger,
) *Service {
	return &Service{
		storage:   storage,
		decisions: decisions,
		updates:   updates,
		log:       logger.Component(log, "ledger_service"),
	}
}

// Run consumes both channels until the context is cancelled. A failed write
// is logged and dropped; the loop never stops on storage errors.
func (s *Service) Run(ctx context.Context) {
	s.log.Info().Msg("Ledger service started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Ledger service stopping")
			return

		case rec := <-s.decisions:
			if _, err := s.storage.InsertRecord(ctx, &rec); err != nil {
				s.log.Error().Err(err).
					Str("mint", rec.Candidate.Mint).
					Msg("Failed to record decision, dropping")
			}

		case upd := <-s.updates:
			if _, err := s.storage.UpdateOutcome(ctx, upd); err != nil {
				s.log.Error().Err(err).
					Str("signature", upd.Signature).
					Msg("Failed to apply outcome patch, dropping")
			}
		}
	}
}
