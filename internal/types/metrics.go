package types

// PerformanceMetrics is a snapshot of a strategy's performance state.
type PerformanceMetrics struct {
	Name             string  `yaml:"name" json:"name"`
	Enabled          bool    `yaml:"enabled" json:"enabled"`
	SignalsGenerated int     `yaml:"signals_generated" json:"signals_generated"`
	TradesExecuted   int     `yaml:"trades_executed" json:"trades_executed"`
	WinCount         int     `yaml:"win_count" json:"win_count"`
	LossCount        int     `yaml:"loss_count" json:"loss_count"`
	TotalPnL         float64 `yaml:"total_pnl" json:"total_pnl"`
	PeakPnL          float64 `yaml:"peak_pnl" json:"peak_pnl"`
	MaxDrawdown      float64 `yaml:"max_drawdown" json:"max_drawdown"`
	WinRate          float64 `yaml:"win_rate" json:"win_rate"`
	SharpeRatio      float64 `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	AvgTradePnL      float64 `yaml:"avg_trade_pnl" json:"avg_trade_pnl"`
}
