// Package oracle ties the decision loop together: it scores incoming
// candidates under the currently active parameters, records every decision,
// and applies parameter proposals atomically at runtime.
package oracle

import (
	"fmt"
	"sync"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
)

// ConfigError reports an inconsistent weights/thresholds pair. When an
// update fails with a ConfigError, neither half was applied.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid scoring configuration: %s", e.Reason)
}

// ScoringConfig is one consistent weights+thresholds pair.
type ScoringConfig struct {
	Weights    domain.FeatureWeights
	Thresholds domain.ScoreThresholds
}

// ConfigCell is the hot-swap parameter bus: a single lock-protected cell
// holding the active scoring configuration. Updates replace both fields
// together; readers always observe a consistent pair.
type ConfigCell struct {
	mu  sync.RWMutex
	cfg ScoringConfig
}

// NewConfigCell starts from the given configuration.
func NewConfigCell(weights domain.FeatureWeights, thresholds domain.ScoreThresholds) (*ConfigCell, error) {
	if err := validate(weights, thresholds); err != nil {
		return nil, err
	}
	return &ConfigCell{cfg: ScoringConfig{Weights: weights, Thresholds: thresholds}}, nil
}

// Update validates the pair and swaps it in atomically. On error nothing
// is applied.
func (c *ConfigCell) Update(weights domain.FeatureWeights, thresholds domain.ScoreThresholds) error {
	if err := validate(weights, thresholds); err != nil {
		return err
	}

	c.mu.Lock()
	c.cfg = ScoringConfig{Weights: weights, Thresholds: thresholds}
	c.mu.Unlock()
	return nil
}

// Snapshot returns a consistent copy of the active configuration.
func (c *ConfigCell) Snapshot() ScoringConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func validate(weights domain.FeatureWeights, thresholds domain.ScoreThresholds) error {
	if !weights.Valid() {
		return &ConfigError{Reason: "weights must be finite and non-negative"}
	}
	if weights.Sum() == 0 {
		return &ConfigError{Reason: "weights must not all be zero"}
	}
	if thresholds.MinLiquiditySol < 0 {
		return &ConfigError{Reason: "min_liquidity_sol must be non-negative"}
	}
	if thresholds.WhaleThreshold <= 0 || thresholds.WhaleThreshold > 1 {
		return &ConfigError{Reason: "whale_threshold must be in (0, 1]"}
	}
	if thresholds.MinMetadataQuality < 0 || thresholds.MinMetadataQuality > 1 {
		return &ConfigError{Reason: "min_metadata_quality must be in [0, 1]"}
	}
	if thresholds.CreatorSellPenaltyThreshold < 0 {
		return &ConfigError{Reason: "creator_sell_penalty_threshold must be non-negative"}
	}
	return nil
}
