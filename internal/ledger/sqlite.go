package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pojakpijak/H-5N1P3R/internal/database"
	"github.com/pojakpijak/H-5N1P3R/internal/domain"
	"github.com/pojakpijak/H-5N1P3R/pkg/logger"
)

// recordColumns is the column list for the transaction_records table.
// Order must match scanRecord. Avoids SELECT * so schema additions don't
// silently break scans.
const recordColumns = `id, mint, creator, slot, predicted_score, feature_scores, reason,
	calculation_time, anomaly_detected, candidate_timestamp, signature,
	buy_price_sol, sell_price_sol, amount_bought_tokens, amount_sold_tokens,
	initial_sol_spent, final_sol_received, decision_made_at, transaction_sent_at,
	outcome_evaluated_at, actual_outcome, market_context`

const schema = `
CREATE TABLE IF NOT EXISTS transaction_records (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	mint                 TEXT NOT NULL,
	creator              TEXT NOT NULL DEFAULT '',
	slot                 INTEGER NOT NULL DEFAULT 0,
	predicted_score      INTEGER NOT NULL,
	feature_scores       TEXT NOT NULL,
	reason               TEXT NOT NULL DEFAULT '',
	calculation_time     INTEGER NOT NULL DEFAULT 0,
	anomaly_detected     INTEGER NOT NULL DEFAULT 0,
	candidate_timestamp  INTEGER NOT NULL,
	signature            TEXT,
	buy_price_sol        REAL,
	sell_price_sol       REAL,
	amount_bought_tokens REAL,
	amount_sold_tokens   REAL,
	initial_sol_spent    REAL,
	final_sol_received   REAL,
	decision_made_at     INTEGER NOT NULL,
	transaction_sent_at  INTEGER,
	outcome_evaluated_at INTEGER,
	actual_outcome       TEXT NOT NULL,
	market_context       TEXT NOT NULL DEFAULT '{}'
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_records_signature
	ON transaction_records(signature) WHERE signature IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_records_decision_made_at
	ON transaction_records(decision_made_at);
CREATE INDEX IF NOT EXISTS idx_records_outcome
	ON transaction_records(actual_outcome);
`

// SQLiteLedger is the primary Storage implementation, backed by a SQLite
// database opened with the ledger durability profile.
type SQLiteLedger struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSQLiteLedger opens the ledger over an existing database connection and
// ensures the schema exists.
func NewSQLiteLedger(db *database.DB, log zerolog.Logger) (*SQLiteLedger, error) {
	l := &SQLiteLedger{
		db:  db,
		log: logger.Component(log, "ledger"),
	}
	if err := l.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger schema: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) ensureSchema() error {
	return database.WithTransaction(l.db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(schema)
		return err
	})
}

// InsertRecord appends a new decision record.
func (l *SQLiteLedger) InsertRecord(ctx context.Context, rec *domain.TransactionRecord) (int64, error) {
	featureScores, err := json.Marshal(rec.Candidate.FeatureScores)
	if err != nil {
		return 0, fmt.Errorf("failed to encode feature scores: %w", err)
	}
	outcome, err := json.Marshal(rec.ActualOutcome)
	if err != nil {
		return 0, fmt.Errorf("failed to encode outcome: %w", err)
	}
	marketContext, err := json.Marshal(rec.MarketContext)
	if err != nil {
		return 0, fmt.Errorf("failed to encode market context: %w", err)
	}

	query := `
		INSERT INTO transaction_records
		(mint, creator, slot, predicted_score, feature_scores, reason,
		 calculation_time, anomaly_detected, candidate_timestamp, signature,
		 buy_price_sol, sell_price_sol, amount_bought_tokens, amount_sold_tokens,
		 initial_sol_spent, final_sol_received, decision_made_at,
		 transaction_sent_at, outcome_evaluated_at, actual_outcome, market_context)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := l.db.ExecContext(ctx, query,
		rec.Candidate.Mint,
		rec.Candidate.Creator,
		rec.Candidate.Slot,
		rec.Candidate.PredictedScore,
		string(featureScores),
		rec.Candidate.Reason,
		rec.Candidate.CalculationTimeUs,
		boolToInt(rec.Candidate.AnomalyDetected),
		rec.Candidate.Timestamp,
		nullString(rec.Signature),
		rec.BuyPriceSol,
		rec.SellPriceSol,
		rec.AmountBoughtTokens,
		rec.AmountSoldTokens,
		rec.InitialSolSpent,
		rec.FinalSolReceived,
		rec.DecisionMadeAt,
		rec.TransactionSentAt,
		rec.OutcomeEvaluatedAt,
		string(outcome),
		string(marketContext),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record for %s: %w", rec.Candidate.Mint, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted record id: %w", err)
	}

	l.log.Debug().
		Int64("id", id).
		Str("mint", rec.Candidate.Mint).
		Uint8("score", rec.Candidate.PredictedScore).
		Msg("Decision recorded")

	return id, nil
}

// UpdateOutcome patches the record matching the update's signature.
// The read-check-write runs inside one transaction so concurrent patches
// cannot interleave.
func (l *SQLiteLedger) UpdateOutcome(ctx context.Context, upd domain.OutcomeUpdate) (bool, error) {
	if upd.Signature == "" {
		return false, fmt.Errorf("outcome update requires a signature")
	}

	applied := false
	err := database.WithTransaction(l.db.Conn(), func(tx *sql.Tx) error {
		var currentJSON string
		err := tx.QueryRowContext(ctx,
			"SELECT actual_outcome FROM transaction_records WHERE signature = ?",
			upd.Signature,
		).Scan(&currentJSON)
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown signature: drop the patch, not an error.
			l.log.Warn().
				Str("signature", upd.Signature).
				Msg("Outcome patch for unknown signature dropped")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read current outcome: %w", err)
		}

		var current domain.Outcome
		if err := json.Unmarshal([]byte(currentJSON), &current); err != nil {
			return fmt.Errorf("failed to decode stored outcome: %w", err)
		}

		sameOutcome := current.Equal(upd.Outcome)
		if sameOutcome && (current.IsTerminal() || !upd.HasExecutionFields()) {
			// Idempotent re-patch. A repeated non-terminal outcome with new
			// execution fields falls through: prices learned at send time
			// still land on the record.
			return nil
		}
		if current.IsTerminal() {
			return fmt.Errorf("signature %s already %s, refusing %s: %w",
				upd.Signature, current, upd.Outcome, ErrOutcomeConflict)
		}

		outcomeJSON, err := json.Marshal(upd.Outcome)
		if err != nil {
			return fmt.Errorf("failed to encode outcome: %w", err)
		}

		// outcome_evaluated_at marks the final verdict; patches that leave
		// the record non-terminal keep it NULL.
		var evaluatedAt interface{}
		switch {
		case upd.EvaluatedAt != nil:
			evaluatedAt = *upd.EvaluatedAt
		case upd.Outcome.IsTerminal():
			evaluatedAt = time.Now().UnixMilli()
		}

		query := `
			UPDATE transaction_records SET
				actual_outcome = ?,
				outcome_evaluated_at = COALESCE(?, outcome_evaluated_at),
				buy_price_sol = COALESCE(?, buy_price_sol),
				sell_price_sol = COALESCE(?, sell_price_sol),
				initial_sol_spent = COALESCE(?, initial_sol_spent),
				final_sol_received = COALESCE(?, final_sol_received)
			WHERE signature = ?
		`
		if _, err := tx.ExecContext(ctx, query,
			string(outcomeJSON),
			evaluatedAt,
			upd.BuyPriceSol,
			upd.SellPriceSol,
			upd.SolSpent,
			upd.SolReceived,
			upd.Signature,
		); err != nil {
			return fmt.Errorf("failed to update outcome: %w", err)
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if applied {
		l.log.Info().
			Str("signature", upd.Signature).
			Str("outcome", upd.Outcome.String()).
			Msg("Outcome updated")
	}
	return applied, nil
}

// GetRecordsSince returns all records decided at or after sinceMillis,
// oldest first.
func (l *SQLiteLedger) GetRecordsSince(ctx context.Context, sinceMillis int64) ([]domain.TransactionRecord, error) {
	query := `
		SELECT ` + recordColumns + ` FROM transaction_records
		WHERE decision_made_at >= ?
		ORDER BY decision_made_at ASC
	`

	rows, err := l.db.QueryContext(ctx, query, sinceMillis)
	if err != nil {
		return nil, fmt.Errorf("failed to query records since %d: %w", sinceMillis, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetLosingTrades returns up to limit losing records, most recent first.
// Loss is matched by the outcome's JSON shape: {"Loss":x} or "FailedExecution".
func (l *SQLiteLedger) GetLosingTrades(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	query := `
		SELECT ` + recordColumns + ` FROM transaction_records
		WHERE actual_outcome LIKE '{"Loss"%' OR actual_outcome = '"FailedExecution"'
		ORDER BY decision_made_at DESC
		LIMIT ?
	`

	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query losing trades: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// HealthCheck verifies the database is reachable and passes integrity checks.
func (l *SQLiteLedger) HealthCheck(ctx context.Context) error {
	return l.db.HealthCheck(ctx)
}

func scanRecords(rows *sql.Rows) ([]domain.TransactionRecord, error) {
	var records []domain.TransactionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (domain.TransactionRecord, error) {
	var (
		rec               domain.TransactionRecord
		featureScores     string
		anomaly           int
		signature         sql.NullString
		buyPrice          sql.NullFloat64
		sellPrice         sql.NullFloat64
		amountBought      sql.NullFloat64
		amountSold        sql.NullFloat64
		solSpent          sql.NullFloat64
		solReceived       sql.NullFloat64
		sentAt            sql.NullInt64
		evaluatedAt       sql.NullInt64
		outcomeJSON       string
		marketContextJSON string
	)

	err := rows.Scan(
		&rec.ID,
		&rec.Candidate.Mint,
		&rec.Candidate.Creator,
		&rec.Candidate.Slot,
		&rec.Candidate.PredictedScore,
		&featureScores,
		&rec.Candidate.Reason,
		&rec.Candidate.CalculationTimeUs,
		&anomaly,
		&rec.Candidate.Timestamp,
		&signature,
		&buyPrice,
		&sellPrice,
		&amountBought,
		&amountSold,
		&solSpent,
		&solReceived,
		&rec.DecisionMadeAt,
		&sentAt,
		&evaluatedAt,
		&outcomeJSON,
		&marketContextJSON,
	)
	if err != nil {
		return rec, err
	}

	rec.Candidate.AnomalyDetected = anomaly != 0
	if signature.Valid {
		rec.Signature = signature.String
	}
	rec.BuyPriceSol = nullableFloat(buyPrice)
	rec.SellPriceSol = nullableFloat(sellPrice)
	rec.AmountBoughtTokens = nullableFloat(amountBought)
	rec.AmountSoldTokens = nullableFloat(amountSold)
	rec.InitialSolSpent = nullableFloat(solSpent)
	rec.FinalSolReceived = nullableFloat(solReceived)
	rec.TransactionSentAt = nullableInt(sentAt)
	rec.OutcomeEvaluatedAt = nullableInt(evaluatedAt)

	if err := json.Unmarshal([]byte(featureScores), &rec.Candidate.FeatureScores); err != nil {
		return rec, fmt.Errorf("failed to decode feature scores for record %d: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(outcomeJSON), &rec.ActualOutcome); err != nil {
		return rec, fmt.Errorf("failed to decode outcome for record %d: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(marketContextJSON), &rec.MarketContext); err != nil {
		return rec, fmt.Errorf("failed to decode market context for record %d: %w", rec.ID, err)
	}

	return rec, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
