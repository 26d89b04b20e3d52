// Package population owns the fixed strategy population: seeded generation of
// immutable configs and the registry of per-strategy rolling statistics.
package population

import (
	"fmt"
	"math/rand"

	"pump-strategy-lab/internal/domain"
)

// Range is an inclusive numeric sampling range.
type Range struct {
	Min float64
	Max float64
}

// GeneratorConfig holds population size and parameter ranges.
type GeneratorConfig struct {
	Count int   // population size; half LONG, half SHORT
	Seed  int64 // RNG seed; same seed and ranges reproduce the population

	MinConfidence       Range // entry: minimum signal confidence
	MinVolumeMultiplier Range // entry: minimum volume spike
	TakeProfitPct       Range
	StopLossPct         Range
	MaxHoldCandles      Range // sampled and truncated to int
	PositionSizeQuote   float64

	// RSIFilterShare is the fraction of strategies carrying an RSI entry
	// filter (LONG: RSIMax, SHORT: RSIMin).
	RSIFilterShare float64
	RSIMax         Range
	RSIMin         Range
}

// DefaultGeneratorConfig returns generation defaults mirroring the production
// population: 100 strategies, 50 USDT position size.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Count:               100,
		Seed:                1,
		MinConfidence:       Range{Min: 40, Max: 90},
		MinVolumeMultiplier: Range{Min: 1.5, Max: 5.0},
		TakeProfitPct:       Range{Min: 1.0, Max: 6.0},
		StopLossPct:         Range{Min: 0.5, Max: 3.0},
		MaxHoldCandles:      Range{Min: 5, Max: 30},
		PositionSizeQuote:   50,
		RSIFilterShare:      0.5,
		RSIMax:              Range{Min: 70, Max: 90},
		RSIMin:              Range{Min: 10, Max: 30},
	}
}

// Validate fails fast on invalid generation parameters.
func (c GeneratorConfig) Validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("population count must be positive, got %d", c.Count)
	}
	if c.PositionSizeQuote <= 0 {
		return fmt.Errorf("position size must be positive, got %v", c.PositionSizeQuote)
	}
	if c.RSIFilterShare < 0 || c.RSIFilterShare > 1 {
		return fmt.Errorf("rsi filter share must be in [0,1], got %v", c.RSIFilterShare)
	}
	for name, r := range map[string]Range{
		"min_confidence":        c.MinConfidence,
		"min_volume_multiplier": c.MinVolumeMultiplier,
		"take_profit_pct":       c.TakeProfitPct,
		"stop_loss_pct":         c.StopLossPct,
		"max_hold_candles":      c.MaxHoldCandles,
	} {
		if r.Min <= 0 || r.Max < r.Min {
			return fmt.Errorf("invalid %s range [%v, %v]", name, r.Min, r.Max)
		}
	}
	return nil
}

// Generate produces the strategy population. Deterministic for a given
// config: ids are dense ("strat-0001"...), assigned once and never reused.
// The first half of the population is LONG-biased, the second half SHORT.
func Generate(config GeneratorConfig) ([]*domain.StrategyConfig, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("generate population: %w", err)
	}

	rng := rand.New(rand.NewSource(config.Seed))
	configs := make([]*domain.StrategyConfig, 0, config.Count)

	for i := 0; i < config.Count; i++ {
		direction := domain.DirectionLong
		if i >= config.Count/2 {
			direction = domain.DirectionShort
		}

		sc := &domain.StrategyConfig{
			StrategyID:          fmt.Sprintf("strat-%04d", i+1),
			Direction:           direction,
			MinConfidence:       sample(rng, config.MinConfidence),
			MinVolumeMultiplier: sample(rng, config.MinVolumeMultiplier),
			TakeProfitPct:       sample(rng, config.TakeProfitPct),
			StopLossPct:         sample(rng, config.StopLossPct),
			MaxHoldCandles:      int(sample(rng, config.MaxHoldCandles)),
			PositionSizeQuote:   config.PositionSizeQuote,
		}

		// The RSI draw is consumed unconditionally to keep the sample
		// sequence stable across filter-share changes.
		hasFilter := rng.Float64() < config.RSIFilterShare
		rsiMax := sample(rng, config.RSIMax)
		rsiMin := sample(rng, config.RSIMin)
		if hasFilter {
			if direction == domain.DirectionLong {
				sc.RSIMax = &rsiMax
			} else {
				sc.RSIMin = &rsiMin
			}
		}

		configs = append(configs, sc)
	}

	return configs, nil
}

func sample(rng *rand.Rand, r Range) float64 {
	if r.Max == r.Min {
		return r.Min
	}
	return r.Min + rng.Float64()*(r.Max-r.Min)
}
