package domain

import (
	"encoding/json"
	"fmt"
)

// OutcomeKind identifies the lifecycle stage of a decision's financial result.
type OutcomeKind string

const (
	// OutcomeNotExecuted - candidate was scored but no transaction was sent
	OutcomeNotExecuted OutcomeKind = "NotExecuted"
	// OutcomePendingConfirmation - transaction sent, awaiting on-chain result
	OutcomePendingConfirmation OutcomeKind = "PendingConfirmation"
	// OutcomeProfit - trade closed with a profit (amount in SOL)
	OutcomeProfit OutcomeKind = "Profit"
	// OutcomeLoss - trade closed with a loss (amount in SOL)
	OutcomeLoss OutcomeKind = "Loss"
	// OutcomeFailedExecution - transaction failed during execution
	OutcomeFailedExecution OutcomeKind = "FailedExecution"
	// OutcomeConfirmationTimeout - verification window expired before confirmation
	OutcomeConfirmationTimeout OutcomeKind = "ConfirmationTimeout"
	// OutcomeExecutionError - submission-side error before or during send
	OutcomeExecutionError OutcomeKind = "ExecutionError"
	// OutcomeVerificationFailed - on-chain verification could not reconcile the trade
	OutcomeVerificationFailed OutcomeKind = "VerificationFailed"
)

// Outcome is the tagged financial/execution result of a decision.
// Profit and Loss carry an amount in SOL; every other kind is a unit variant.
// The JSON encoding is kept compatible with the historical ledger format:
// unit variants serialize as bare strings ("NotExecuted") and valued variants
// as single-key objects ({"Profit":0.5}).
type Outcome struct {
	Kind   OutcomeKind
	Amount float64
}

// NotExecuted returns the default outcome for a freshly scored decision.
func NotExecuted() Outcome { return Outcome{Kind: OutcomeNotExecuted} }

// PendingConfirmation marks a decision whose transaction is in flight.
func PendingConfirmation() Outcome { return Outcome{Kind: OutcomePendingConfirmation} }

// Profit builds a terminal profitable outcome. Amount is SOL gained.
func Profit(sol float64) Outcome { return Outcome{Kind: OutcomeProfit, Amount: sol} }

// Loss builds a terminal losing outcome. Amount is SOL lost (stored as given).
func Loss(sol float64) Outcome { return Outcome{Kind: OutcomeLoss, Amount: sol} }

// FailedExecution marks a transaction that failed during execution.
func FailedExecution() Outcome { return Outcome{Kind: OutcomeFailedExecution} }

// ConfirmationTimeout marks a transaction whose monitoring window expired.
func ConfirmationTimeout() Outcome { return Outcome{Kind: OutcomeConfirmationTimeout} }

// ExecutionError marks a submission-side failure.
func ExecutionError() Outcome { return Outcome{Kind: OutcomeExecutionError} }

// VerificationFailed marks a trade that could not be reconciled on-chain.
func VerificationFailed() Outcome { return Outcome{Kind: OutcomeVerificationFailed} }

// IsTerminal reports whether the outcome is final and must never be
// overwritten by a later patch.
func (o Outcome) IsTerminal() bool {
	switch o.Kind {
	case OutcomeProfit, OutcomeLoss, OutcomeFailedExecution,
		OutcomeConfirmationTimeout, OutcomeExecutionError, OutcomeVerificationFailed:
		return true
	}
	return false
}

// IsClosed reports whether the outcome represents a closed trade with a
// realized P&L (Profit or Loss). Only closed trades enter KPI calculations.
func (o Outcome) IsClosed() bool {
	return o.Kind == OutcomeProfit || o.Kind == OutcomeLoss
}

// IsLoss reports whether the outcome counts as a losing trade for the
// optimizer's analysis (realized Loss or a failed execution).
func (o Outcome) IsLoss() bool {
	return o.Kind == OutcomeLoss || o.Kind == OutcomeFailedExecution
}

// Equal compares two outcomes including the carried amount.
func (o Outcome) Equal(other Outcome) bool {
	return o.Kind == other.Kind && o.Amount == other.Amount
}

// hasAmount reports whether the kind carries a SOL amount.
func (k OutcomeKind) hasAmount() bool {
	return k == OutcomeProfit || k == OutcomeLoss
}

// valid reports whether k is a member of the closed outcome set.
func (k OutcomeKind) valid() bool {
	switch k {
	case OutcomeNotExecuted, OutcomePendingConfirmation, OutcomeProfit, OutcomeLoss,
		OutcomeFailedExecution, OutcomeConfirmationTimeout, OutcomeExecutionError,
		OutcomeVerificationFailed:
		return true
	}
	return false
}

// MarshalJSON implements the historical ledger encoding.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if !o.Kind.valid() {
		return nil, fmt.Errorf("invalid outcome kind %q", o.Kind)
	}
	if o.Kind.hasAmount() {
		return json.Marshal(map[OutcomeKind]float64{o.Kind: o.Amount})
	}
	return json.Marshal(string(o.Kind))
}

// UnmarshalJSON implements the historical ledger encoding.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		kind := OutcomeKind(s)
		if !kind.valid() || kind.hasAmount() {
			return fmt.Errorf("invalid unit outcome %q", s)
		}
		*o = Outcome{Kind: kind}
		return nil
	}

	var m map[OutcomeKind]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to decode outcome: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("outcome object must have exactly one key, got %d", len(m))
	}
	for kind, amount := range m {
		if !kind.hasAmount() {
			return fmt.Errorf("outcome kind %q does not carry an amount", kind)
		}
		*o = Outcome{Kind: kind, Amount: amount}
	}
	return nil
}

// String renders the outcome for logs and reasons.
func (o Outcome) String() string {
	if o.Kind.hasAmount() {
		return fmt.Sprintf("%s(%.6f)", o.Kind, o.Amount)
	}
	return string(o.Kind)
}
