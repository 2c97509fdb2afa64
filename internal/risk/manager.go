// Package risk runs the periodic risk checks, keeps the alert log and gates
// new entries.
package risk

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rxtech-lab/argo-algo/internal/ledger"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/pnl"
	"github.com/rxtech-lab/argo-algo/internal/strategy"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const Name = "risk"

const (
	// drawdownRatio of MaxPositionSize is the strategy drawdown warning level.
	drawdownRatio = 0.1
	// minWinRate applies once a strategy has more than minTradesForWinRate trades.
	minWinRate          = 0.3
	minTradesForWinRate = 10
)

// Config holds the risk limits.
type Config struct {
	Interval        time.Duration
	MaxPositionSize float64
	MaxDailyLoss    float64
	MaxPositions    int
	MaxDailyTrades  int
	// Location decides where the trading day starts. Defaults to UTC.
	Location *time.Location
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		Interval:        10 * time.Second,
		MaxPositionSize: 100000,
		MaxDailyLoss:    10000,
		MaxPositions:    10,
		MaxDailyTrades:  50,
		Location:        time.UTC,
	}
}

// Exposure summarises the open positions.
type Exposure struct {
	TotalExposure    float64            `yaml:"total_exposure" json:"total_exposure"`
	PositionsCount   int                `yaml:"positions_count" json:"positions_count"`
	MaxExposureLimit float64            `yaml:"max_exposure_limit" json:"max_exposure_limit"`
	ExposureRatio    float64            `yaml:"exposure_ratio" json:"exposure_ratio"`
	Positions        map[string]float64 `yaml:"positions" json:"positions"`
}

// Manager is the risk worker.
type Manager struct {
	registry *strategy.Registry
	ledger   *ledger.Ledger
	config   Config
	alerts   *AlertLog
	now      func() time.Time
	logger   *logger.Logger
}

// New creates a risk manager. alerts may be shared across restarts of the worker.
func New(registry *strategy.Registry, l *ledger.Ledger, alerts *AlertLog, config Config, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}

	if alerts == nil {
		alerts = NewAlertLog(DefaultAlertCapacity)
	}

	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}

	if config.Location == nil {
		config.Location = time.UTC
	}

	return &Manager{
		registry: registry,
		ledger:   l,
		config:   config,
		alerts:   alerts,
		now:      time.Now,
		logger:   log.Named(Name),
	}
}

// WithClock replaces the wall clock.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now

	return m
}

// Name implements the controller worker contract.
func (m *Manager) Name() string {
	return Name
}

// Alerts returns the alert log.
func (m *Manager) Alerts() *AlertLog {
	return m.alerts
}

// Run checks every interval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.logger.Info("Risk manager started", zap.Duration("interval", m.config.Interval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Risk manager stopped")

			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs every risk check once. A failing check raises an alert and does
// not stop the others.
func (m *Manager) Check(ctx context.Context) {
	m.checkStrategies()

	if err := m.checkPositions(ctx); err != nil {
		m.checkFailed("position", err)
	}

	if err := m.checkDailyLoss(ctx); err != nil {
		m.checkFailed("daily loss", err)
	}

	if err := m.checkCounts(ctx); err != nil {
		m.checkFailed("trade count", err)
	}
}

func (m *Manager) checkStrategies() {
	for _, s := range m.registry.Enabled() {
		metrics := s.PerformanceMetrics()

		if metrics.MaxDrawdown > m.config.MaxPositionSize*drawdownRatio {
			m.alert(types.AlertTypeHighDrawdown, types.AlertSeverityWarning,
				fmt.Sprintf("Strategy %s has high drawdown: %.2f", s.Name(), metrics.MaxDrawdown))
		}

		if metrics.TradesExecuted > minTradesForWinRate && metrics.WinRate < minWinRate {
			m.alert(types.AlertTypeLowWinRate, types.AlertSeverityWarning,
				fmt.Sprintf("Strategy %s has low win rate: %.1f%%", s.Name(), metrics.WinRate*100))
		}
	}
}

func (m *Manager) checkPositions(ctx context.Context) error {
	exposure, err := m.Exposure(ctx)
	if err != nil {
		return err
	}

	symbols := make([]string, 0, len(exposure.Positions))
	for symbol := range exposure.Positions {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	for _, symbol := range symbols {
		value := decimal.NewFromFloat(exposure.Positions[symbol]).Abs()
		if value.GreaterThan(decimal.NewFromFloat(m.config.MaxPositionSize)) {
			m.alert(types.AlertTypePositionLimit, types.AlertSeverityCritical,
				fmt.Sprintf("Position in %s exceeds limit: %s", symbol, value.StringFixed(2)))
		}
	}

	return nil
}

func (m *Manager) checkDailyLoss(ctx context.Context) error {
	daily, err := m.DailyPnL(ctx)
	if err != nil {
		return err
	}

	if daily >= -m.config.MaxDailyLoss {
		return nil
	}

	m.alert(types.AlertTypeDailyLossLimit, types.AlertSeverityCritical,
		fmt.Sprintf("Daily loss limit breached: %.2f", daily))
	m.EmergencyStop("Daily loss limit exceeded")

	return nil
}

func (m *Manager) checkCounts(ctx context.Context) error {
	open, err := m.ledger.Open(ctx)
	if err != nil {
		return err
	}

	if m.config.MaxPositions > 0 && len(open) >= m.config.MaxPositions {
		m.alert(types.AlertTypeMaxPositions, types.AlertSeverityWarning,
			fmt.Sprintf("Open positions at limit: %d/%d", len(open), m.config.MaxPositions))
	}

	count, err := m.ledger.CountSince(ctx, m.dayStart())
	if err != nil {
		return err
	}

	if m.config.MaxDailyTrades > 0 && count >= m.config.MaxDailyTrades {
		m.alert(types.AlertTypeMaxDailyTrades, types.AlertSeverityWarning,
			fmt.Sprintf("Daily trades at limit: %d/%d", count, m.config.MaxDailyTrades))
	}

	return nil
}

// EmergencyStop disables every strategy. Strategies already disabled are left
// alone; the EMERGENCY_STOP alert is raised only when something was disabled.
func (m *Manager) EmergencyStop(reason string) int {
	disabled := m.registry.DisableAll()
	if disabled == 0 {
		return 0
	}

	m.logger.Error("Emergency stop", zap.String("reason", reason), zap.Int("strategies_disabled", disabled))
	m.alert(types.AlertTypeEmergencyStop, types.AlertSeverityCritical,
		fmt.Sprintf("Emergency stop triggered: %s", reason))

	return disabled
}

// AllowEntry reports whether a new trade may be opened.
func (m *Manager) AllowEntry(ctx context.Context) (bool, string) {
	open, err := m.ledger.Open(ctx)
	if err != nil {
		return false, "open positions unavailable"
	}

	if m.config.MaxPositions > 0 && len(open) >= m.config.MaxPositions {
		return false, fmt.Sprintf("max positions reached (%d)", m.config.MaxPositions)
	}

	count, err := m.ledger.CountSince(ctx, m.dayStart())
	if err != nil {
		return false, "daily trade count unavailable"
	}

	if m.config.MaxDailyTrades > 0 && count >= m.config.MaxDailyTrades {
		return false, fmt.Sprintf("max daily trades reached (%d)", m.config.MaxDailyTrades)
	}

	daily, err := m.DailyPnL(ctx)
	if err != nil {
		return false, "daily pnl unavailable"
	}

	if daily < -m.config.MaxDailyLoss {
		return false, "daily loss limit breached"
	}

	return true, ""
}

// Exposure returns the signed notional per symbol over FILLED and ACTIVE trades.
func (m *Manager) Exposure(ctx context.Context) (Exposure, error) {
	open, err := m.ledger.Open(ctx)
	if err != nil {
		return Exposure{}, err
	}

	positions := make(map[string]decimal.Decimal)
	total := decimal.Zero

	for _, trade := range open {
		notional := pnl.Notional(trade)
		positions[trade.Symbol] = positions[trade.Symbol].Add(notional)
		total = total.Add(notional.Abs())
	}

	out := Exposure{
		TotalExposure:    total.Round(2).InexactFloat64(),
		PositionsCount:   len(positions),
		MaxExposureLimit: m.config.MaxPositionSize,
		ExposureRatio:    0,
		Positions:        make(map[string]float64, len(positions)),
	}

	if m.config.MaxPositionSize > 0 {
		out.ExposureRatio = total.Div(decimal.NewFromFloat(m.config.MaxPositionSize)).Round(4).InexactFloat64()
	}

	for symbol, value := range positions {
		out.Positions[symbol] = value.Round(2).InexactFloat64()
	}

	return out, nil
}

// DailyPnL returns the realized P&L of trades exited since the start of today.
func (m *Manager) DailyPnL(ctx context.Context) (float64, error) {
	return m.ledger.RealizedPnLSince(ctx, m.dayStart())
}

func (m *Manager) dayStart() time.Time {
	now := m.now().In(m.config.Location)

	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, m.config.Location)
}

func (m *Manager) alert(alertType string, severity types.AlertSeverity, message string) {
	m.alerts.Append(types.Alert{
		Type:      alertType,
		Message:   message,
		Severity:  severity,
		Timestamp: m.now().UTC(),
	})

	m.logger.Warn("Risk alert",
		zap.String("type", alertType),
		zap.String("severity", string(severity)),
		zap.String("message", message),
	)
}

func (m *Manager) checkFailed(check string, err error) {
	m.logger.Error("Risk check failed", zap.String("check", check), zap.Error(err))
	m.alert(types.AlertTypeRiskCheckFailed, types.AlertSeverityWarning,
		fmt.Sprintf("%s check failed: %v", check, err))
}
