package domain

// Feature is one named, independently computed [0,1] signal that the scorer
// combines into a final 0-100 score via FeatureWeights.
type Feature string

const (
	FeatureLiquidity          Feature = "liquidity"
	FeatureHolderDistribution Feature = "holder_distribution"
	FeatureVolumeGrowth       Feature = "volume_growth"
	FeatureHolderGrowth       Feature = "holder_growth"
	FeaturePriceChange        Feature = "price_change"
	FeatureJitoBundlePresence Feature = "jito_bundle_presence"
	FeatureCreatorSellSpeed   Feature = "creator_sell_speed"
	FeatureMetadataQuality    Feature = "metadata_quality"
	FeatureSocialActivity     Feature = "social_activity"
)

// AllFeatures returns the closed feature set in canonical order.
// The order is stable; optimizer tie-breaks rely on it.
func AllFeatures() []Feature {
	return []Feature{
		FeatureLiquidity,
		FeatureHolderDistribution,
		FeatureVolumeGrowth,
		FeatureHolderGrowth,
		FeaturePriceChange,
		FeatureJitoBundlePresence,
		FeatureCreatorSellSpeed,
		FeatureMetadataQuality,
		FeatureSocialActivity,
	}
}

// FeatureWeights holds the per-feature scoring weights. Weights are
// non-negative and need not sum to 1 - the scorer normalizes at use time.
type FeatureWeights struct {
	Liquidity          float64 `json:"liquidity"`
	HolderDistribution float64 `json:"holder_distribution"`
	VolumeGrowth       float64 `json:"volume_growth"`
	HolderGrowth       float64 `json:"holder_growth"`
	PriceChange        float64 `json:"price_change"`
	JitoBundlePresence float64 `json:"jito_bundle_presence"`
	CreatorSellSpeed   float64 `json:"creator_sell_speed"`
	MetadataQuality    float64 `json:"metadata_quality"`
	SocialActivity     float64 `json:"social_activity"`
}

// DefaultFeatureWeights returns the baseline production weights.
func DefaultFeatureWeights() FeatureWeights {
	return FeatureWeights{
		Liquidity:          0.20,
		HolderDistribution: 0.15,
		VolumeGrowth:       0.15,
		HolderGrowth:       0.10,
		PriceChange:        0.10,
		JitoBundlePresence: 0.05,
		CreatorSellSpeed:   0.10,
		MetadataQuality:    0.10,
		SocialActivity:     0.05,
	}
}

// Weight returns the weight of a single feature. Unknown features weigh 0.
func (w FeatureWeights) Weight(f Feature) float64 {
	switch f {
	case FeatureLiquidity:
		return w.Liquidity
	case FeatureHolderDistribution:
		return w.HolderDistribution
	case FeatureVolumeGrowth:
		return w.VolumeGrowth
	case FeatureHolderGrowth:
		return w.HolderGrowth
	case FeaturePriceChange:
		return w.PriceChange
	case FeatureJitoBundlePresence:
		return w.JitoBundlePresence
	case FeatureCreatorSellSpeed:
		return w.CreatorSellSpeed
	case FeatureMetadataQuality:
		return w.MetadataQuality
	case FeatureSocialActivity:
		return w.SocialActivity
	}
	return 0
}

// SetWeight sets the weight of a single feature. Unknown features are ignored
// and reported via the return value.
func (w *FeatureWeights) SetWeight(f Feature, v float64) bool {
	switch f {
	case FeatureLiquidity:
		w.Liquidity = v
	case FeatureHolderDistribution:
		w.HolderDistribution = v
	case FeatureVolumeGrowth:
		w.VolumeGrowth = v
	case FeatureHolderGrowth:
		w.HolderGrowth = v
	case FeaturePriceChange:
		w.PriceChange = v
	case FeatureJitoBundlePresence:
		w.JitoBundlePresence = v
	case FeatureCreatorSellSpeed:
		w.CreatorSellSpeed = v
	case FeatureMetadataQuality:
		w.MetadataQuality = v
	case FeatureSocialActivity:
		w.SocialActivity = v
	default:
		return false
	}
	return true
}

// Sum returns the total of all weights.
func (w FeatureWeights) Sum() float64 {
	total := 0.0
	for _, f := range AllFeatures() {
		total += w.Weight(f)
	}
	return total
}

// Normalized returns a copy scaled so weights sum to 1. A zero-sum input is
// returned unchanged to avoid division by zero.
func (w FeatureWeights) Normalized() FeatureWeights {
	sum := w.Sum()
	if sum <= 0 {
		return w
	}
	out := w
	for _, f := range AllFeatures() {
		out.SetWeight(f, w.Weight(f)/sum)
	}
	return out
}

// Valid reports whether every weight is finite and non-negative.
func (w FeatureWeights) Valid() bool {
	for _, f := range AllFeatures() {
		v := w.Weight(f)
		if v < 0 || v != v { // negative or NaN
			return false
		}
	}
	return true
}

// ScoreThresholds holds the gating thresholds applied alongside weights.
type ScoreThresholds struct {
	MinLiquiditySol             float64 `json:"min_liquidity_sol"`
	WhaleThreshold              float64 `json:"whale_threshold"`
	VolumeGrowthThreshold       float64 `json:"volume_growth_threshold"`
	HolderGrowthThreshold       float64 `json:"holder_growth_threshold"`
	MinMetadataQuality          float64 `json:"min_metadata_quality"`
	CreatorSellPenaltyThreshold int64   `json:"creator_sell_penalty_threshold"`
	SocialActivityThreshold     float64 `json:"social_activity_threshold"`
}

// DefaultScoreThresholds returns the baseline production thresholds.
func DefaultScoreThresholds() ScoreThresholds {
	return ScoreThresholds{
		MinLiquiditySol:             10.0,
		WhaleThreshold:              0.15,
		VolumeGrowthThreshold:       2.0,
		HolderGrowthThreshold:       1.5,
		MinMetadataQuality:          0.7,
		CreatorSellPenaltyThreshold: 300,
		SocialActivityThreshold:     100.0,
	}
}
