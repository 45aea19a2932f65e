// Package regime classifies macro market conditions into one of five coarse
// states and exposes per-regime parameter presets. Classification is
// timer-driven and independent of outcome feedback.
package regime

import (
	"context"
	"sync"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/pojakpijak/H-5N1P3R/internal/domain"
	"github.com/pojakpijak/H-5N1P3R/pkg/logger"
)

const (
	// priceWindowSize bounds the trailing SOL price window.
	priceWindowSize = 60
	// trendMinSamples - trend-based rules need more history than this.
	trendMinSamples = 10

	congestionTPS       = 3000.0
	choppyVolatilityPct = 5.0
	bullishTrend        = 0.02
	bearishTrend        = -0.02
	bullishDexVolumeUSD = 40_000_000.0
	bullishTPS          = 1500.0

	// Fallbacks when a macro fetch fails; each metric defaults individually.
	defaultTPS          = 1000.0
	defaultDexVolumeUSD = 50_000_000.0
)

// MacroSource supplies best-effort macro market indicators. The fetching
// layer (RPC, aggregator APIs) lives outside this package.
type MacroSource interface {
	SolPriceUSD(ctx context.Context) (float64, error)
	NetworkTPS(ctx context.Context) (float64, error)
	GlobalDexVolumeUSD(ctx context.Context) (float64, error)
}

// StaticSource is a MacroSource returning fixed values. Used in tests and
// as the process default until an RPC-backed feed is wired in.
type StaticSource struct {
	Price        float64
	TPS          float64
	DexVolumeUSD float64
}

func (s StaticSource) SolPriceUSD(context.Context) (float64, error) { return s.Price, nil }

func (s StaticSource) NetworkTPS(context.Context) (float64, error) { return s.TPS, nil }

func (s StaticSource) GlobalDexVolumeUSD(context.Context) (float64, error) {
	return s.DexVolumeUSD, nil
}

// MacroSnapshot is the set of macro readings behind one detector pass.
// SampledAt is zero until the first pass completes.
type MacroSnapshot struct {
	SolPriceUSD   float64
	NetworkTPS    float64
	DexVolumeUSD  float64
	VolatilityPct float64
	SampledAt     int64
}

// State is the shared regime cell: single writer (the detector), any number
// of readers.
type State struct {
	mu      sync.RWMutex
	current domain.MarketRegime
	macro   MacroSnapshot
}

// NewState starts in LowActivity, the safe default.
func NewState() *State {
	return &State{current: domain.RegimeLowActivity}
}

// Current returns the most recently detected regime.
func (s *State) Current() domain.MarketRegime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Macro returns the readings behind the current regime. A zero SampledAt
// means the detector has not completed a pass yet.
func (s *State) Macro() MacroSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.macro
}

// Observe records one detector pass: the classified regime and the macro
// readings it was derived from.
func (s *State) Observe(r domain.MarketRegime, m MacroSnapshot) {
	s.mu.Lock()
	s.current = r
	s.macro = m
	s.mu.Unlock()
}

// Detector periodically samples macro indicators and updates the shared
// regime state when the classification changes.
type Detector struct {
	source   MacroSource
	state    *State
	interval time.Duration
	log      zerolog.Logger

	// prices is the trailing window, owned by the Run goroutine.
	prices []float64
}

// NewDetector builds a detector writing into the given state cell.
func NewDetector(source MacroSource, state *State, interval time.Duration, log zerolog.Logger) *Detector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Detector{
		source:   source,
		state:    state,
		interval: interval,
		log:      logger.Component(log, "regime_detector"),
	}
}

// Run samples on every tick until the context is cancelled.
func (d *Detector) Run(ctx context.Context) {
	d.log.Info().Dur("interval", d.interval).Msg("Regime detector started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("Regime detector stopping")
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick performs one sample-and-classify pass.
func (d *Detector) Tick(ctx context.Context) {
	if price, err := d.source.SolPriceUSD(ctx); err != nil {
		// A failed price fetch skips the sample; the window keeps its
		// existing history.
		d.log.Warn().Err(err).Msg("SOL price fetch failed, skipping sample")
	} else {
		d.addPrice(price)
	}

	tps, err := d.source.NetworkTPS(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("TPS fetch failed, using default")
		tps = defaultTPS
	}

	dexVolume, err := d.source.GlobalDexVolumeUSD(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("DEX volume fetch failed, using default")
		dexVolume = defaultDexVolumeUSD
	}

	volatility := Volatility(d.prices)
	detected := DetermineRegime(d.prices, volatility, tps, dexVolume)

	snapshot := MacroSnapshot{
		NetworkTPS:    tps,
		DexVolumeUSD:  dexVolume,
		VolatilityPct: volatility,
		SampledAt:     time.Now().UnixMilli(),
	}
	if len(d.prices) > 0 {
		snapshot.SolPriceUSD = d.prices[len(d.prices)-1]
	}

	previous := d.state.Current()
	d.state.Observe(detected, snapshot)
	if detected != previous {
		d.log.Info().
			Str("previous", string(previous)).
			Str("current", string(detected)).
			Float64("volatility_pct", volatility).
			Float64("tps", tps).
			Float64("dex_volume_usd", dexVolume).
			Msg("Market regime changed")
	}
}

func (d *Detector) addPrice(price float64) {
	d.prices = append(d.prices, price)
	if len(d.prices) > priceWindowSize {
		d.prices = d.prices[len(d.prices)-priceWindowSize:]
	}
}

// Volatility returns stddev/mean of the price window as a percentage.
// Fewer than two samples or a zero mean yield 0.
func Volatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}

	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))
	if mean == 0 {
		return 0
	}

	stddev := talib.StdDev(prices, len(prices), 1.0)
	return stddev[len(stddev)-1] / mean * 100.0
}

// DetermineRegime classifies one snapshot of macro conditions. Rules apply
// in strict priority order; the first match wins.
func DetermineRegime(prices []float64, volatilityPct, tps, dexVolumeUSD float64) domain.MarketRegime {
	if tps > congestionTPS {
		return domain.RegimeHighCongestion
	}
	if volatilityPct > choppyVolatilityPct {
		return domain.RegimeChoppy
	}

	// Trend rules only fire with enough history to trust the slope.
	if len(prices) > trendMinSamples && prices[0] != 0 {
		trend := (prices[len(prices)-1] - prices[0]) / prices[0]
		if trend > bullishTrend && dexVolumeUSD > bullishDexVolumeUSD && tps > bullishTPS {
			return domain.RegimeBullish
		}
		if trend < bearishTrend {
			return domain.RegimeBearish
		}
	}

	return domain.RegimeLowActivity
}
