// Package domain defines the core data model of the oracle feedback loop:
// scored candidates, transaction records, performance reports, parameter
// proposals and market regimes. The domain layer is pure - no storage or
// transport dependencies.
package domain

import (
	"encoding/json"
	"math"
)

// ScoredCandidate is one scoring decision for an observed token candidate,
// captured before its outcome is known.
type ScoredCandidate struct {
	// Mint is the token mint address the decision refers to.
	Mint string `json:"mint"`
	// Creator is the token creator address, when known.
	Creator string `json:"creator,omitempty"`
	// Slot is the chain slot the candidate was observed at.
	Slot uint64 `json:"slot,omitempty"`
	// PredictedScore is the final weighted score in [0,100].
	PredictedScore uint8 `json:"predicted_score"`
	// FeatureScores maps feature name to its [0,1] score at decision time.
	FeatureScores map[string]float64 `json:"feature_scores"`
	// Reason is the human-readable justification for the score.
	Reason string `json:"reason"`
	// CalculationTimeUs is the scoring latency in microseconds.
	CalculationTimeUs int64 `json:"calculation_time"`
	// AnomalyDetected flags candidates that tripped an anomaly heuristic.
	AnomalyDetected bool `json:"anomaly_detected"`
	// Timestamp is the decision time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// TransactionRecord is the complete, append-only record of one decision and
// its eventual transactional outcome. Only the decision ledger writes it.
type TransactionRecord struct {
	// ID is the storage row id; zero until persisted.
	ID int64

	// Candidate is the scoring decision that triggered this record.
	Candidate ScoredCandidate

	// Signature is the transaction signature, empty until a transaction
	// is sent. Unique across records when present.
	Signature string

	// Execution fields, nil until known.
	BuyPriceSol        *float64
	SellPriceSol       *float64
	AmountBoughtTokens *float64
	AmountSoldTokens   *float64
	InitialSolSpent    *float64
	FinalSolReceived   *float64

	// DecisionMadeAt is the decision timestamp in Unix milliseconds.
	// Immutable once set.
	DecisionMadeAt int64
	// TransactionSentAt is when the buy transaction was sent, if ever.
	TransactionSentAt *int64
	// OutcomeEvaluatedAt is when the final outcome was determined, if ever.
	OutcomeEvaluatedAt *int64

	// ActualOutcome is the current lifecycle state; see Outcome.
	ActualOutcome Outcome

	// MarketContext maps macro metric name to its value at decision time.
	MarketContext map[string]float64
}

// OutcomeUpdate is a signature-keyed patch resolving a record's outcome.
// Patches are idempotent; re-applying an identical patch is a no-op. A patch
// that repeats a non-terminal outcome but carries new execution fields is
// still applied, so price data learned at send time lands on the record.
type OutcomeUpdate struct {
	Signature    string
	Outcome      Outcome
	BuyPriceSol  *float64
	SellPriceSol *float64
	SolSpent     *float64
	SolReceived  *float64
	// EvaluatedAt is Unix milliseconds; nil means "now" at apply time.
	EvaluatedAt *int64
}

// HasExecutionFields reports whether the patch carries any execution price
// fields beyond the outcome itself.
func (u OutcomeUpdate) HasExecutionFields() bool {
	return u.BuyPriceSol != nil || u.SellPriceSol != nil ||
		u.SolSpent != nil || u.SolReceived != nil
}

// PerformanceReport is an immutable aggregate over a trailing window of
// closed trades. It is delivered once to the optimizer and then discarded.
type PerformanceReport struct {
	// ID correlates the report across log lines and the optimizer.
	ID string `json:"id"`
	// Timestamp is report creation time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
	// TimeWindowHours is the trailing window the report covers.
	TimeWindowHours float64 `json:"time_window_hours"`
	// TotalTradesEvaluated counts every record in the window, closed or not.
	TotalTradesEvaluated int `json:"total_trades_evaluated"`

	WinRatePercent float64 `json:"win_rate_percent"`
	// ProfitFactor is sum(profits)/sum(|losses|); +Inf when there are wins
	// and no losses, 0 for an empty window.
	ProfitFactor       float64 `json:"profit_factor"`
	NetProfitSol       float64 `json:"net_profit_sol"`
	AverageProfitSol   float64 `json:"average_profit_sol"`
	AverageLossSol     float64 `json:"average_loss_sol"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
}

// MarshalJSON encodes a non-finite profit factor as a string sentinel
// ("Infinity" / "-Infinity"); encoding/json rejects raw IEEE infinities and
// the report must stay encodable exactly when there are wins and no losses.
func (r PerformanceReport) MarshalJSON() ([]byte, error) {
	type plain PerformanceReport
	out := struct {
		plain
		ProfitFactor interface{} `json:"profit_factor"`
	}{plain: plain(r), ProfitFactor: r.ProfitFactor}

	switch {
	case math.IsInf(r.ProfitFactor, 1):
		out.ProfitFactor = "Infinity"
	case math.IsInf(r.ProfitFactor, -1):
		out.ProfitFactor = "-Infinity"
	}
	return json.Marshal(out)
}

// OptimizedParameters is a complete parameter-change proposal. Weights and
// thresholds are always proposed together; Reason is mandatory and names the
// evidence behind the change.
type OptimizedParameters struct {
	ID            string          `json:"id"`
	NewWeights    FeatureWeights  `json:"new_weights"`
	NewThresholds ScoreThresholds `json:"new_thresholds"`
	Reason        string          `json:"reason"`
}

// MarketRegime is a coarse classification of current macro market conditions.
type MarketRegime string

const (
	RegimeBullish        MarketRegime = "Bullish"
	RegimeBearish        MarketRegime = "Bearish"
	RegimeChoppy         MarketRegime = "Choppy"
	RegimeHighCongestion MarketRegime = "HighCongestion"
	RegimeLowActivity    MarketRegime = "LowActivity"
)

// RegimeSpecificParameters is a complete weights+thresholds pair expressing
// one regime's risk posture.
type RegimeSpecificParameters struct {
	Weights    FeatureWeights  `json:"weights"`
	Thresholds ScoreThresholds `json:"thresholds"`
}
