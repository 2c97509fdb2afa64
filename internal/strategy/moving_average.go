package strategy

import (
	"github.com/rxtech-lab/argo-algo/internal/indicator"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
)

// MovingAverageKind selects the averaging method.
type MovingAverageKind string

const (
	MovingAverageSimple      MovingAverageKind = "sma"
	MovingAverageExponential MovingAverageKind = "ema"
)

// MovingAverageConfig configures the crossover strategy.
type MovingAverageConfig struct {
	Symbols     []string          `yaml:"symbols" json:"symbols" validate:"required,min=1"`
	ShortPeriod int               `yaml:"short_period" json:"short_period" validate:"gt=0"`
	LongPeriod  int               `yaml:"long_period" json:"long_period" validate:"gtfield=ShortPeriod"`
	Kind        MovingAverageKind `yaml:"kind" json:"kind" validate:"oneof=sma ema"`
	Quantity    float64           `yaml:"quantity" json:"quantity" validate:"gt=0"`
}

// DefaultMovingAverageConfig returns the stock configuration.
func DefaultMovingAverageConfig() MovingAverageConfig {
	return MovingAverageConfig{
		Symbols:     []string{"RELIANCE", "TCS"},
		ShortPeriod: 5,
		LongPeriod:  20,
		Kind:        MovingAverageSimple,
		Quantity:    10,
	}
}

// MovingAverageCrossover emits BUY on a golden cross and SELL on a death cross.
type MovingAverageCrossover struct {
	*core
	config MovingAverageConfig
}

// NewMovingAverageCrossover creates the strategy. It starts enabled.
func NewMovingAverageCrossover(name string, config MovingAverageConfig, log *logger.Logger) (*MovingAverageCrossover, error) {
	if config.ShortPeriod <= 0 || config.LongPeriod <= config.ShortPeriod {
		return nil, errors.Newf(errors.ErrCodeStrategyConfigError,
			"moving average periods must satisfy 0 < short < long, got %d/%d", config.ShortPeriod, config.LongPeriod)
	}

	if config.Kind == "" {
		config.Kind = MovingAverageSimple
	}

	s := &MovingAverageCrossover{
		core:   newCore(name, config.Symbols, log),
		config: config,
	}
	s.Enable()

	return s, nil
}

// Requirements asks for a few bars beyond the long period so a cross can be read.
func (s *MovingAverageCrossover) Requirements() Requirements {
	return Requirements{
		MinDataPoints: s.config.LongPeriod + 5,
		BarInterval:   0,
	}
}

// GenerateSignals evaluates every configured symbol.
func (s *MovingAverageCrossover) GenerateSignals(history map[string][]types.Bar) ([]types.Signal, error) {
	var signals []types.Signal

	for _, symbol := range s.symbols {
		bars := history[symbol]
		if len(bars) < s.Requirements().MinDataPoints {
			continue
		}

		closes := types.Closes(bars)

		short, err := s.average(closes, s.config.ShortPeriod)
		if err != nil {
			return nil, err
		}

		long, err := s.average(closes, s.config.LongPeriod)
		if err != nil {
			return nil, err
		}

		prevShort, currShort, okShort := indicator.LastTwo(short)
		prevLong, currLong, okLong := indicator.LastTwo(long)

		if !okShort || !okLong {
			continue
		}

		var (
			side       types.Side
			signalType string
		)

		switch {
		case prevShort <= prevLong && currShort > currLong:
			side, signalType = types.SideBuy, "GOLDEN_CROSS"
		case prevShort >= prevLong && currShort < currLong:
			side, signalType = types.SideSell, "DEATH_CROSS"
		default:
			continue
		}

		if !s.claim(symbol, side) {
			continue
		}

		last := bars[len(bars)-1]
		sig := s.signal(symbol, side, last, s.config.Quantity, signalType, 0.7)
		sig.Metadata.Values["short_ma"] = currShort
		sig.Metadata.Values["long_ma"] = currLong
		signals = append(signals, sig)
	}

	return signals, nil
}

func (s *MovingAverageCrossover) average(values []float64, period int) ([]float64, error) {
	if s.config.Kind == MovingAverageExponential {
		return indicator.EMA(values, period)
	}

	return indicator.SMA(values, period)
}
