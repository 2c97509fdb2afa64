package types

import "time"

type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "WARNING"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

const (
	AlertTypeHighDrawdown    = "HIGH_DRAWDOWN"
	AlertTypeLowWinRate      = "LOW_WIN_RATE"
	AlertTypePositionLimit   = "POSITION_LIMIT_BREACH"
	AlertTypeDailyLossLimit  = "DAILY_LOSS_LIMIT"
	AlertTypeEmergencyStop   = "EMERGENCY_STOP"
	AlertTypeMaxPositions    = "MAX_POSITIONS"
	AlertTypeMaxDailyTrades  = "MAX_DAILY_TRADES"
	AlertTypeRiskCheckFailed = "RISK_CHECK_FAILED"
)

// Alert is a risk notification.
type Alert struct {
	Type      string        `yaml:"type" json:"type"`
	Message   string        `yaml:"message" json:"message"`
	Severity  AlertSeverity `yaml:"severity" json:"severity"`
	Timestamp time.Time     `yaml:"timestamp" json:"timestamp"`
}
