package regime

import "github.com/pojakpijak/H-5N1P3R/internal/domain"

// ParametersFor returns the precomputed parameter preset for a regime.
// Each preset expresses a distinct risk posture; unknown regimes fall back
// to the LowActivity preset.
func ParametersFor(r domain.MarketRegime) domain.RegimeSpecificParameters {
	switch r {
	case domain.RegimeBullish:
		return bullishParameters()
	case domain.RegimeBearish:
		return bearishParameters()
	case domain.RegimeChoppy:
		return choppyParameters()
	case domain.RegimeHighCongestion:
		return highCongestionParameters()
	default:
		return lowActivityParameters()
	}
}

// Bullish: momentum features lead, liquidity bar relaxed.
func bullishParameters() domain.RegimeSpecificParameters {
	w := domain.DefaultFeatureWeights()
	w.VolumeGrowth = 0.20
	w.HolderGrowth = 0.15
	w.PriceChange = 0.15
	w.Liquidity = 0.15

	t := domain.DefaultScoreThresholds()
	t.MinLiquiditySol = 8.0
	t.VolumeGrowthThreshold = 1.5

	return domain.RegimeSpecificParameters{Weights: w, Thresholds: t}
}

// Bearish: weight holder concentration and creator selling heavily, raise
// the minimum liquidity bar.
func bearishParameters() domain.RegimeSpecificParameters {
	w := domain.DefaultFeatureWeights()
	w.HolderDistribution = 0.25
	w.CreatorSellSpeed = 0.20
	w.VolumeGrowth = 0.10
	w.PriceChange = 0.05

	t := domain.DefaultScoreThresholds()
	t.MinLiquiditySol = 20.0
	t.WhaleThreshold = 0.10
	t.CreatorSellPenaltyThreshold = 600

	return domain.RegimeSpecificParameters{Weights: w, Thresholds: t}
}

// Choppy: distrust short-term price action, lean on fundamentals.
func choppyParameters() domain.RegimeSpecificParameters {
	w := domain.DefaultFeatureWeights()
	w.PriceChange = 0.05
	w.VolumeGrowth = 0.10
	w.Liquidity = 0.25
	w.MetadataQuality = 0.15

	t := domain.DefaultScoreThresholds()
	t.MinLiquiditySol = 15.0
	t.VolumeGrowthThreshold = 3.0

	return domain.RegimeSpecificParameters{Weights: w, Thresholds: t}
}

// HighCongestion: execution robustness dominates; only deep, well-bundled
// candidates are worth fighting for blockspace.
func highCongestionParameters() domain.RegimeSpecificParameters {
	w := domain.DefaultFeatureWeights()
	w.JitoBundlePresence = 0.20
	w.Liquidity = 0.25
	w.PriceChange = 0.05
	w.SocialActivity = 0.02

	t := domain.DefaultScoreThresholds()
	t.MinLiquiditySol = 25.0

	return domain.RegimeSpecificParameters{Weights: w, Thresholds: t}
}

// LowActivity: the baseline posture.
func lowActivityParameters() domain.RegimeSpecificParameters {
	return domain.RegimeSpecificParameters{
		Weights:    domain.DefaultFeatureWeights(),
		Thresholds: domain.DefaultScoreThresholds(),
	}
}
