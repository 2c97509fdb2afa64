// Package stats accumulates session statistics from exited trades.
package stats

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/pnl"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Accumulator holds running statistics for exited trades.
type Accumulator struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	RealizedPnL   float64
	TotalFees     float64
	MaxProfit     float64
	MaxLoss       float64
	MaxDrawdown   float64
	PeakPnL       float64
	HoldingTimes  []int // in seconds
	ByStrategy    map[string]*StrategyResult
}

// StrategyResult is the per-strategy slice of a report.
type StrategyResult struct {
	Trades      int     `yaml:"trades" json:"trades"`
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl"`
}

// TradeResult summarises trade outcomes.
type TradeResult struct {
	NumberOfTrades        int     `yaml:"number_of_trades" json:"number_of_trades"`
	NumberOfWinningTrades int     `yaml:"number_of_winning_trades" json:"number_of_winning_trades"`
	NumberOfLosingTrades  int     `yaml:"number_of_losing_trades" json:"number_of_losing_trades"`
	WinRate               float64 `yaml:"win_rate" json:"win_rate"`
	MaxDrawdown           float64 `yaml:"max_drawdown" json:"max_drawdown"`
}

// TradePnl summarises realized P&L.
type TradePnl struct {
	RealizedPnL   float64 `yaml:"realized_pnl" json:"realized_pnl"`
	MaximumLoss   float64 `yaml:"maximum_loss" json:"maximum_loss"`
	MaximumProfit float64 `yaml:"maximum_profit" json:"maximum_profit"`
}

// HoldingTime is in seconds.
type HoldingTime struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
	Avg int `yaml:"avg" json:"avg"`
}

// Report is the serialized form written to stats.yaml.
type Report struct {
	Date         string                    `yaml:"date" json:"date"`
	SessionStart time.Time                 `yaml:"session_start" json:"session_start"`
	LastUpdated  time.Time                 `yaml:"last_updated" json:"last_updated"`
	TradeResult  TradeResult               `yaml:"trade_result" json:"trade_result"`
	TradePnl     TradePnl                  `yaml:"trade_pnl" json:"trade_pnl"`
	HoldingTime  HoldingTime               `yaml:"trade_holding_time" json:"trade_holding_time"`
	TotalFees    float64                   `yaml:"total_fees" json:"total_fees"`
	Strategies   map[string]StrategyResult `yaml:"strategies" json:"strategies"`
}

// Tracker keeps daily and cumulative statistics. Daily statistics reset when
// an exit falls on a new date.
type Tracker struct {
	calc         *pnl.Calculator
	sessionStart time.Time
	currentDate  string

	// reset on date boundary
	daily *Accumulator
	// since session start
	cumulative *Accumulator

	now    func() time.Time
	mu     sync.Mutex
	logger *logger.Logger
}

// NewTracker creates a tracker for a session starting now.
func NewTracker(calc *pnl.Calculator, log *logger.Logger) *Tracker {
	return NewTrackerWithClock(calc, time.Now, log)
}

// NewTrackerWithClock creates a tracker using now as the clock.
func NewTrackerWithClock(calc *pnl.Calculator, now func() time.Time, log *logger.Logger) *Tracker {
	if log == nil {
		log = logger.NewNop()
	}

	if calc == nil {
		calc = pnl.NewCalculator(nil)
	}

	start := now().UTC()

	return &Tracker{
		calc:         calc,
		sessionStart: start,
		currentDate:  start.Format(dateLayout),
		daily:        newAccumulator(),
		cumulative:   newAccumulator(),
		now:          now,
		mu:           sync.Mutex{},
		logger:       log.Named("stats"),
	}
}

func newAccumulator() *Accumulator {
	return &Accumulator{
		TotalTrades:   0,
		WinningTrades: 0,
		LosingTrades:  0,
		RealizedPnL:   0,
		TotalFees:     0,
		MaxProfit:     0,
		MaxLoss:       0,
		MaxDrawdown:   0,
		PeakPnL:       0,
		HoldingTimes:  make([]int, 0),
		ByStrategy:    make(map[string]*StrategyResult),
	}
}

// Record adds an exited trade. Its signature matches settlement.Handler.
func (t *Tracker) Record(_ context.Context, trade types.Trade) {
	if trade.Status != types.TradeStatusExited || trade.PnL.IsNone() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	exitDate := trade.ExitTimestamp.TakeOr(t.now()).UTC().Format(dateLayout)
	if exitDate > t.currentDate {
		t.handleDateBoundaryLocked(exitDate)
	}

	t.update(t.daily, trade)
	t.update(t.cumulative, trade)

	t.logger.Debug("Trade recorded",
		zap.String("trade_id", trade.ID),
		zap.Float64("pnl", trade.PnL.Unwrap()),
		zap.Int("total_trades", t.cumulative.TotalTrades),
	)
}

func (t *Tracker) update(acc *Accumulator, trade types.Trade) {
	realized := trade.PnL.Unwrap()

	acc.TotalTrades++
	acc.TotalFees += t.calc.Fees(trade.EntryPrice(), trade.ExitPrice.TakeOr(trade.EntryPrice()), trade.Quantity)
	acc.RealizedPnL += realized

	if realized > 0 {
		acc.WinningTrades++
	} else if realized < 0 {
		acc.LosingTrades++
	}

	if realized > acc.MaxProfit {
		acc.MaxProfit = realized
	}

	if realized < acc.MaxLoss {
		acc.MaxLoss = realized
	}

	if acc.RealizedPnL > acc.PeakPnL {
		acc.PeakPnL = acc.RealizedPnL
	}

	if drawdown := acc.PeakPnL - acc.RealizedPnL; drawdown > acc.MaxDrawdown {
		acc.MaxDrawdown = drawdown
	}

	if trade.FilledTimestamp.IsSome() && trade.ExitTimestamp.IsSome() {
		held := int(trade.ExitTimestamp.Unwrap().Sub(trade.FilledTimestamp.Unwrap()).Seconds())
		if held > 0 {
			acc.HoldingTimes = append(acc.HoldingTimes, held)
		}
	}

	result, ok := acc.ByStrategy[trade.Strategy]
	if !ok {
		result = &StrategyResult{Trades: 0, RealizedPnL: 0}
		acc.ByStrategy[trade.Strategy] = result
	}

	result.Trades++
	result.RealizedPnL += realized
}

// HandleDateBoundary resets the daily statistics and keeps the cumulative ones.
func (t *Tracker) HandleDateBoundary(newDate string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handleDateBoundaryLocked(newDate)
}

func (t *Tracker) handleDateBoundaryLocked(newDate string) {
	oldDate := t.currentDate
	t.currentDate = newDate
	t.daily = newAccumulator()

	t.logger.Info("Date boundary handled, daily stats reset",
		zap.String("old_date", oldDate),
		zap.String("new_date", newDate),
	)
}

// Daily returns the statistics of the current date.
func (t *Tracker) Daily() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.build(t.daily, t.currentDate)
}

// Cumulative returns the statistics since the session started.
func (t *Tracker) Cumulative() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.build(t.cumulative, t.sessionStart.Format(dateLayout))
}

func (t *Tracker) build(acc *Accumulator, date string) Report {
	winRate := 0.0
	if decided := acc.WinningTrades + acc.LosingTrades; decided > 0 {
		winRate = float64(acc.WinningTrades) / float64(decided)
	}

	holding := HoldingTime{Min: 0, Max: 0, Avg: 0}

	if len(acc.HoldingTimes) > 0 {
		sorted := append([]int(nil), acc.HoldingTimes...)
		sort.Ints(sorted)

		total := 0
		for _, h := range sorted {
			total += h
		}

		holding.Min = sorted[0]
		holding.Max = sorted[len(sorted)-1]
		holding.Avg = total / len(sorted)
	}

	strategies := make(map[string]StrategyResult, len(acc.ByStrategy))
	for name, result := range acc.ByStrategy {
		strategies[name] = *result
	}

	return Report{
		Date:         date,
		SessionStart: t.sessionStart,
		LastUpdated:  t.now().UTC(),
		TradeResult: TradeResult{
			NumberOfTrades:        acc.TotalTrades,
			NumberOfWinningTrades: acc.WinningTrades,
			NumberOfLosingTrades:  acc.LosingTrades,
			WinRate:               winRate,
			MaxDrawdown:           acc.MaxDrawdown,
		},
		TradePnl: TradePnl{
			RealizedPnL:   acc.RealizedPnL,
			MaximumLoss:   acc.MaxLoss,
			MaximumProfit: acc.MaxProfit,
		},
		HoldingTime: holding,
		TotalFees:   acc.TotalFees,
		Strategies:  strategies,
	}
}

// WriteYAML writes the cumulative statistics to path.
func (t *Tracker) WriteYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := yaml.Marshal(t.Cumulative())
	if err != nil {
		return fmt.Errorf("failed to marshal stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}

	return nil
}

// ReadYAML reads a report written by WriteYAML.
func ReadYAML(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read stats file: %w", err)
	}

	var report Report
	if err := yaml.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("failed to unmarshal stats: %w", err)
	}

	return report, nil
}

// CurrentDate returns the date the daily statistics belong to.
func (t *Tracker) CurrentDate() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.currentDate
}
