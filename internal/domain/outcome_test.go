package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeWireEncoding(t *testing.T) {
	// Unit variants encode as bare strings, valued variants as single-key
	// objects. This format is shared with the historical ledger and must
	// not drift.
	data, err := json.Marshal(NotExecuted())
	require.NoError(t, err)
	assert.JSONEq(t, `"NotExecuted"`, string(data))

	data, err = json.Marshal(Profit(0.5))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Profit":0.5}`, string(data))

	var decoded Outcome
	require.NoError(t, json.Unmarshal([]byte(`{"Loss":0.25}`), &decoded))
	assert.Equal(t, Loss(0.25), decoded)

	require.NoError(t, json.Unmarshal([]byte(`"ConfirmationTimeout"`), &decoded))
	assert.Equal(t, ConfirmationTimeout(), decoded)
}

func TestOutcomeDecodeRejectsMalformedInput(t *testing.T) {
	var o Outcome

	// Unknown variant name.
	assert.Error(t, json.Unmarshal([]byte(`"Moon"`), &o))
	// Valued variant as a bare string.
	assert.Error(t, json.Unmarshal([]byte(`"Profit"`), &o))
	// Unit variant with an amount.
	assert.Error(t, json.Unmarshal([]byte(`{"NotExecuted":1.0}`), &o))
	// More than one key.
	assert.Error(t, json.Unmarshal([]byte(`{"Profit":1.0,"Loss":2.0}`), &o))
}

func TestOutcomeStateMachinePredicates(t *testing.T) {
	assert.False(t, NotExecuted().IsTerminal())
	assert.False(t, PendingConfirmation().IsTerminal())

	for _, terminal := range []Outcome{
		Profit(1), Loss(1), FailedExecution(), ConfirmationTimeout(),
		ExecutionError(), VerificationFailed(),
	} {
		assert.True(t, terminal.IsTerminal(), terminal.String())
	}

	assert.True(t, Profit(1).IsClosed())
	assert.True(t, Loss(1).IsClosed())
	assert.False(t, FailedExecution().IsClosed())

	assert.True(t, Loss(1).IsLoss())
	assert.True(t, FailedExecution().IsLoss())
	assert.False(t, ConfirmationTimeout().IsLoss())
	assert.False(t, Profit(1).IsLoss())
}

func TestOutcomeEqualComparesAmount(t *testing.T) {
	assert.True(t, Profit(0.5).Equal(Profit(0.5)))
	assert.False(t, Profit(0.5).Equal(Profit(0.6)))
	assert.False(t, Profit(0.5).Equal(Loss(0.5)))
}
