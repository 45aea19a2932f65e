package oracle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
)

func TestConfigCellSnapshotAndUpdate(t *testing.T) {
	cell, err := NewConfigCell(domain.DefaultFeatureWeights(), domain.DefaultScoreThresholds())
	require.NoError(t, err)

	snap := cell.Snapshot()
	assert.Equal(t, domain.DefaultFeatureWeights(), snap.Weights)

	newWeights := domain.DefaultFeatureWeights()
	newWeights.Liquidity = 0.30
	newThresholds := domain.DefaultScoreThresholds()
	newThresholds.MinLiquiditySol = 20.0

	require.NoError(t, cell.Update(newWeights, newThresholds))

	snap = cell.Snapshot()
	assert.Equal(t, 0.30, snap.Weights.Liquidity)
	assert.Equal(t, 20.0, snap.Thresholds.MinLiquiditySol)
}

func TestConfigCellRejectsInvalidPairAtomically(t *testing.T) {
	cell, err := NewConfigCell(domain.DefaultFeatureWeights(), domain.DefaultScoreThresholds())
	require.NoError(t, err)

	bad := domain.DefaultFeatureWeights()
	bad.Liquidity = -1.0
	thresholds := domain.DefaultScoreThresholds()
	thresholds.MinLiquiditySol = 99.0

	err = cell.Update(bad, thresholds)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	// Neither half applied.
	snap := cell.Snapshot()
	assert.Equal(t, domain.DefaultFeatureWeights(), snap.Weights)
	assert.Equal(t, domain.DefaultScoreThresholds(), snap.Thresholds)
}

func TestConfigCellValidation(t *testing.T) {
	zero := domain.FeatureWeights{}
	_, err := NewConfigCell(zero, domain.DefaultScoreThresholds())
	assert.Error(t, err)

	badThresholds := domain.DefaultScoreThresholds()
	badThresholds.WhaleThreshold = 1.5
	_, err = NewConfigCell(domain.DefaultFeatureWeights(), badThresholds)
	assert.Error(t, err)

	badThresholds = domain.DefaultScoreThresholds()
	badThresholds.CreatorSellPenaltyThreshold = -1
	_, err = NewConfigCell(domain.DefaultFeatureWeights(), badThresholds)
	assert.Error(t, err)
}

func TestConfigCellConcurrentReaders(t *testing.T) {
	cell, err := NewConfigCell(domain.DefaultFeatureWeights(), domain.DefaultScoreThresholds())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap := cell.Snapshot()
				// A snapshot is always internally consistent: both halves
				// belong to the same update.
				if snap.Weights.Liquidity == 0.30 {
					assert.Equal(t, 20.0, snap.Thresholds.MinLiquiditySol)
				} else {
					assert.Equal(t, 10.0, snap.Thresholds.MinLiquiditySol)
				}
			}
		}()
	}

	newWeights := domain.DefaultFeatureWeights()
	newWeights.Liquidity = 0.30
	newThresholds := domain.DefaultScoreThresholds()
	newThresholds.MinLiquiditySol = 20.0
	require.NoError(t, cell.Update(newWeights, newThresholds))

	wg.Wait()
}
