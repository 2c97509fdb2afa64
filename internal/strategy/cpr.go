package strategy

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/featurestore"
	"github.com/rxtech-lab/argo-algo/internal/indicator"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"go.uber.org/zap"
)

const (
	vwapWindow = 20
	// winningHold is the longest hold after which a profitable trade still
	// counts as a clean win for labeling.
	winningHold = 30 * time.Minute
)

// FeatureRecorder persists signal feature vectors and their outcomes.
type FeatureRecorder interface {
	Append(ctx context.Context, record featurestore.Record) error
	Label(ctx context.Context, symbol string, label int) (bool, error)
}

// CPRConfig configures the CPR breakout strategy.
type CPRConfig struct {
	Symbol        string        `yaml:"symbol" json:"symbol" validate:"required"`
	Quantity      float64       `yaml:"quantity" json:"quantity" validate:"gte=0"`
	BarInterval   time.Duration `yaml:"bar_interval" json:"bar_interval" validate:"gt=0"`
	StrikeStep    int           `yaml:"strike_step" json:"strike_step" validate:"gt=0"`
	ATMOffset     float64       `yaml:"atm_offset" json:"atm_offset"`
	ExpiryWeekday time.Weekday  `yaml:"expiry_weekday" json:"expiry_weekday" validate:"gte=0,lte=6"`
	Timezone      string        `yaml:"timezone" json:"timezone"`
	ModelPath     string        `yaml:"model_path" json:"model_path"`
	Threshold     float64       `yaml:"threshold" json:"threshold" validate:"gte=0,lte=1"`
}

// DefaultCPRConfig returns the stock configuration.
func DefaultCPRConfig() CPRConfig {
	return CPRConfig{
		Symbol:        "NIFTY 50",
		Quantity:      75,
		BarInterval:   5 * time.Minute,
		StrikeStep:    100,
		ATMOffset:     0,
		ExpiryWeekday: time.Thursday,
		Timezone:      "Asia/Kolkata",
		ModelPath:     "",
		Threshold:     DefaultAcceptThreshold,
	}
}

// SessionOHLC is the high, low and close of one calendar session.
type SessionOHLC struct {
	Date  time.Time
	High  float64
	Low   float64
	Close float64
}

// CPRBreakout buys calls when the underlying closes above a CPR level and puts
// when it closes below one. Each candidate is scored by the ensemble before
// it becomes a signal.
type CPRBreakout struct {
	*core
	config   CPRConfig
	location *time.Location
	ensemble *Ensemble
	recorder FeatureRecorder
	lastBar  time.Time
}

// NewCPRBreakout creates the strategy. ensemble and recorder may be nil.
func NewCPRBreakout(name string, config CPRConfig, ensemble *Ensemble, recorder FeatureRecorder, log *logger.Logger) (*CPRBreakout, error) {
	if config.Symbol == "" {
		return nil, errors.New(errors.ErrCodeStrategyConfigError, "cpr strategy needs an underlying symbol")
	}

	if config.BarInterval <= 0 {
		config.BarInterval = DefaultCPRConfig().BarInterval
	}

	if config.StrikeStep <= 0 {
		config.StrikeStep = DefaultCPRConfig().StrikeStep
	}

	location := time.UTC

	if config.Timezone != "" {
		loc, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "unknown timezone %s", config.Timezone)
		}

		location = loc
	}

	s := &CPRBreakout{
		core:     newCore(name, []string{config.Symbol}, log),
		config:   config,
		location: location,
		ensemble: ensemble,
		recorder: recorder,
		lastBar:  time.Time{},
	}
	s.Enable()

	return s, nil
}

// Requirements asks for closed bars of the configured width.
func (s *CPRBreakout) Requirements() Requirements {
	return Requirements{
		MinDataPoints: 2,
		BarInterval:   s.config.BarInterval,
	}
}

// cprCandidate is one crossed level before filtering.
type cprCandidate struct {
	bullish  bool
	index    int
	level    indicator.Level
	target   float64
	stopLoss float64
}

// GenerateSignals reads the last two bars against the previous session's levels.
func (s *CPRBreakout) GenerateSignals(history map[string][]types.Bar) ([]types.Signal, error) {
	bars := history[s.config.Symbol]
	if len(bars) < 2 {
		return nil, nil
	}

	prev, curr := bars[len(bars)-2], bars[len(bars)-1]

	s.mu.Lock()
	if !curr.Timestamp.After(s.lastBar) {
		s.mu.Unlock()

		return nil, nil
	}

	s.lastBar = curr.Timestamp
	s.mu.Unlock()

	session, ok := PreviousSession(bars, s.location)
	if !ok {
		return nil, nil
	}

	levels := indicator.ComputeCPR(session.High, session.Low, session.Close)

	var signals []types.Signal

	for _, c := range crossedLevels(levels.Ordered(), prev.Close, curr.Close) {
		features := BuildCPRFeatures(bars, len(bars)-1, levels, c, s.location)

		accepted, probability, err := s.ensemble.Accept(features)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStrategyRuntimeError, "ensemble scoring failed", err)
		}

		optionType := OptionCall
		if !c.bullish {
			optionType = OptionPut
		}

		strike := NearestStrike(curr.Close+s.config.ATMOffset, s.config.StrikeStep)
		expiry := NextExpiry(curr.Timestamp.In(s.location), s.config.ExpiryWeekday)
		symbol := WeeklyOptionSymbol(s.config.Symbol, strike, optionType, expiry)

		s.record(symbol, curr, c, features, probability, accepted)

		if !accepted {
			s.logger.Info("Ensemble filter rejected candidate",
				zap.String("level", c.level.Name),
				zap.Bool("bullish", c.bullish),
				zap.Float64("probability", probability),
			)

			continue
		}

		quantity := s.config.Quantity
		if quantity <= 0 {
			quantity = LotSize(s.config.Symbol, DefaultCPRConfig().Quantity)
		}

		direction := "BULL"
		if !c.bullish {
			direction = "BEAR"
		}

		sig := s.signal(symbol, types.SideBuy, curr, quantity,
			fmt.Sprintf("CPR_%s_%s", direction, strings.ToUpper(c.level.Name)), probability)
		sig.Price = 0
		sig.Metadata.StopLoss = optional.Some(c.stopLoss)
		sig.Metadata.Target = optional.Some(c.target)
		sig.Metadata.UnderlyingSymbol = s.config.Symbol
		sig.Metadata.Values["entry_price"] = curr.Close
		sig.Metadata.Values["level_index"] = float64(c.index)
		sig.Metadata.Values["probability"] = probability
		sig.Metadata.Values["pivot"] = levels.Pivot
		signals = append(signals, sig)
	}

	return signals, nil
}

// OnTradeComplete labels the feature record of an exited option trade.
func (s *CPRBreakout) OnTradeComplete(ctx context.Context, trade types.Trade) {
	if s.recorder == nil || trade.PnL.IsNone() {
		return
	}

	label := 0

	held := time.Duration(0)
	if trade.FilledTimestamp.IsSome() && trade.ExitTimestamp.IsSome() {
		held = trade.ExitTimestamp.Unwrap().Sub(trade.FilledTimestamp.Unwrap())
	}

	if trade.PnL.Unwrap() > 0.1*math.Abs(trade.EntryPrice()) && held < winningHold {
		label = 1
	}

	if _, err := s.recorder.Label(ctx, trade.Symbol, label); err != nil {
		s.logger.Warn("Failed to label feature record", zap.String("symbol", trade.Symbol), zap.Error(err))
	}
}

func (s *CPRBreakout) record(symbol string, bar types.Bar, c cprCandidate, features []float64, probability float64, accepted bool) {
	if s.recorder == nil {
		return
	}

	err := s.recorder.Append(context.Background(), featurestore.Record{
		ID:          uuid.NewString(),
		Strategy:    s.name,
		Symbol:      symbol,
		Underlying:  s.config.Symbol,
		BarTime:     bar.Timestamp,
		Bullish:     c.bullish,
		Level:       c.level.Name,
		EntryPrice:  bar.Close,
		Target:      c.target,
		StopLoss:    c.stopLoss,
		Probability: probability,
		Accepted:    accepted,
		Features:    features,
		Label:       optional.None[int](),
	})
	if err != nil {
		s.logger.Warn("Failed to record features", zap.String("symbol", symbol), zap.Error(err))
	}
}

// crossedLevels returns every level the close crossed between two bars.
// Bull crosses target the next level up, bear crosses the next level down;
// the crossed level is the stop. Candidates whose levels do not bracket the
// close are dropped.
func crossedLevels(levels []indicator.Level, prevClose, currClose float64) []cprCandidate {
	var out []cprCandidate

	for i, lvl := range levels {
		if prevClose < lvl.Value && lvl.Value <= currClose && i+1 < len(levels) {
			target := levels[i+1].Value
			if lvl.Value < currClose && currClose < target {
				out = append(out, cprCandidate{bullish: true, index: i, level: lvl, target: target, stopLoss: lvl.Value})
			}
		}
	}

	for i, lvl := range levels {
		if prevClose > lvl.Value && lvl.Value >= currClose && i-1 >= 0 {
			target := levels[i-1].Value
			if target < currClose && currClose < lvl.Value {
				out = append(out, cprCandidate{bullish: false, index: i, level: lvl, target: target, stopLoss: lvl.Value})
			}
		}
	}

	return out
}

// PreviousSession returns the OHLC of the second-to-last calendar date in bars.
// ok is false when bars span fewer than two dates.
func PreviousSession(bars []types.Bar, location *time.Location) (SessionOHLC, bool) {
	var dates []string

	sessions := make(map[string]*SessionOHLC)

	for _, b := range bars {
		t := b.Timestamp.In(location)
		key := t.Format(time.DateOnly)

		session, ok := sessions[key]
		if !ok {
			y, m, d := t.Date()
			session = &SessionOHLC{
				Date:  time.Date(y, m, d, 0, 0, 0, 0, location),
				High:  b.High,
				Low:   b.Low,
				Close: b.Close,
			}
			sessions[key] = session
			dates = append(dates, key)
		}

		session.High = math.Max(session.High, b.High)
		session.Low = math.Min(session.Low, b.Low)
		session.Close = b.Close
	}

	if len(dates) < 2 {
		return SessionOHLC{}, false
	}

	return *sessions[dates[len(dates)-2]], true
}

// CPRWidthRegime buckets the CPR width relative to price: 0 narrow, 1 average, 2 wide.
func CPRWidthRegime(widthPct float64) int {
	switch {
	case widthPct < 0.002:
		return 0
	case widthPct < 0.005:
		return 1
	default:
		return 2
	}
}

// BuildCPRFeatures composes the 27-value feature vector of the bar at idx.
func BuildCPRFeatures(bars []types.Bar, idx int, levels indicator.CPRLevels, c cprCandidate, location *time.Location) []float64 {
	bar := bars[idx]
	closePrice := bar.Close

	window := min(idx, vwapWindow)
	pv, vol := 0.0, 0.0

	for _, b := range bars[idx-window : idx] {
		pv += b.Close * b.Volume
		vol += b.Volume
	}

	vwap := pv / (vol + 1e-9)
	t := bar.Timestamp.In(location)
	widthPct := levels.Width / closePrice

	isBull := 0.0
	if c.bullish {
		isBull = 1
	}

	return []float64{
		closePrice,
		vwap,
		closePrice - vwap,
		levels.Pivot,
		levels.TC,
		levels.BC,
		levels.R1,
		levels.R2,
		levels.R3,
		levels.R4,
		levels.S1,
		levels.S2,
		levels.S3,
		levels.S4,
		levels.Width,
		widthPct,
		float64(t.Hour()*60 + t.Minute()),
		isBull,
		float64(c.index),
		math.Abs((c.target - closePrice) / closePrice),
		math.Abs((c.stopLoss - closePrice) / closePrice),
		float64(CPRWidthRegime(widthPct)),
		bar.Open,
		bar.High,
		bar.Low,
		bar.Close,
		bar.Volume,
	}
}
