package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultFeatureWeightsCoverEveryFeature(t *testing.T) {
	w := DefaultFeatureWeights()
	for _, f := range AllFeatures() {
		assert.Greater(t, w.Weight(f), 0.0, string(f))
	}
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
}

func TestSetWeightRejectsUnknownFeature(t *testing.T) {
	w := DefaultFeatureWeights()
	assert.False(t, w.SetWeight(Feature("made_up"), 0.5))
	assert.True(t, w.SetWeight(FeatureLiquidity, 0.5))
	assert.Equal(t, 0.5, w.Liquidity)
}

func TestNormalized(t *testing.T) {
	w := FeatureWeights{Liquidity: 2, VolumeGrowth: 2}
	n := w.Normalized()
	assert.InDelta(t, 0.5, n.Liquidity, 1e-9)
	assert.InDelta(t, 0.5, n.VolumeGrowth, 1e-9)
	assert.InDelta(t, 1.0, n.Sum(), 1e-9)

	// Zero-sum input comes back unchanged.
	zero := FeatureWeights{}
	assert.Equal(t, zero, zero.Normalized())
}

func TestValid(t *testing.T) {
	assert.True(t, DefaultFeatureWeights().Valid())

	bad := DefaultFeatureWeights()
	bad.PriceChange = -0.1
	assert.False(t, bad.Valid())
}
