package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformanceReportEncodesInfiniteProfitFactor(t *testing.T) {
	report := PerformanceReport{
		ID:                   "r1",
		TotalTradesEvaluated: 5,
		WinRatePercent:       100,
		ProfitFactor:         math.Inf(1),
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)
	require.True(t, json.Valid(data))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Infinity", decoded["profit_factor"])
	assert.Equal(t, "r1", decoded["id"])

	report.ProfitFactor = math.Inf(-1)
	data, err = json.Marshal(report)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "-Infinity", decoded["profit_factor"])
}

func TestPerformanceReportEncodesFiniteProfitFactor(t *testing.T) {
	data, err := json.Marshal(PerformanceReport{ProfitFactor: 1.5})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1.5, decoded["profit_factor"])
}

func TestOutcomeUpdateHasExecutionFields(t *testing.T) {
	assert.False(t, OutcomeUpdate{Outcome: PendingConfirmation()}.HasExecutionFields())

	price := 0.001
	assert.True(t, OutcomeUpdate{BuyPriceSol: &price}.HasExecutionFields())
	assert.True(t, OutcomeUpdate{SolSpent: &price}.HasExecutionFields())
}
