package strategy

import (
	"math"
	"sync"

	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/shopspring/decimal"
)

// Performance accumulates the realized results of one strategy.
type Performance struct {
	signalsGenerated int
	tradesExecuted   int
	winCount         int
	lossCount        int
	totalPnL         decimal.Decimal
	peakPnL          decimal.Decimal
	maxDrawdown      decimal.Decimal
	tradePnLs        []float64
	mu               sync.Mutex
}

// NewPerformance creates an empty performance state.
func NewPerformance() *Performance {
	return &Performance{
		signalsGenerated: 0,
		tradesExecuted:   0,
		winCount:         0,
		lossCount:        0,
		totalPnL:         decimal.Zero,
		peakPnL:          decimal.Zero,
		maxDrawdown:      decimal.Zero,
		tradePnLs:        make([]float64, 0),
		mu:               sync.Mutex{},
	}
}

// RecordSignal counts a generated signal.
func (p *Performance) RecordSignal() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.signalsGenerated++
}

// Update records one realized P&L. A zero P&L counts as executed but is
// neither a win nor a loss. Max drawdown never decreases.
func (p *Performance) Update(pnl float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tradePnLs = append(p.tradePnLs, pnl)
	p.tradesExecuted++

	switch {
	case pnl > 0:
		p.winCount++
	case pnl < 0:
		p.lossCount++
	}

	p.totalPnL = p.totalPnL.Add(decimal.NewFromFloat(pnl))
	if p.totalPnL.GreaterThan(p.peakPnL) {
		p.peakPnL = p.totalPnL
	}

	drawdown := p.peakPnL.Sub(p.totalPnL)
	if drawdown.GreaterThan(p.maxDrawdown) {
		p.maxDrawdown = drawdown
	}
}

// Snapshot returns the metrics with derived ratios.
func (p *Performance) Snapshot() types.PerformanceMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	winRate := 0.0
	if decided := p.winCount + p.lossCount; decided > 0 {
		winRate = float64(p.winCount) / float64(decided)
	}

	avg := 0.0
	if p.tradesExecuted > 0 {
		avg = p.totalPnL.Div(decimal.NewFromInt(int64(p.tradesExecuted))).InexactFloat64()
	}

	return types.PerformanceMetrics{
		Name:             "",
		Enabled:          false,
		SignalsGenerated: p.signalsGenerated,
		TradesExecuted:   p.tradesExecuted,
		WinCount:         p.winCount,
		LossCount:        p.lossCount,
		TotalPnL:         p.totalPnL.Round(2).InexactFloat64(),
		PeakPnL:          p.peakPnL.Round(2).InexactFloat64(),
		MaxDrawdown:      p.maxDrawdown.Round(2).InexactFloat64(),
		WinRate:          round(winRate, 4),
		SharpeRatio:      round(sharpe(p.tradePnLs), 3),
		AvgTradePnL:      round(avg, 2),
	}
}

// sharpe is mean over sample standard deviation of per-trade P&L.
func sharpe(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}

	mean := 0.0
	for _, v := range pnls {
		mean += v
	}

	mean /= float64(len(pnls))

	variance := 0.0
	for _, v := range pnls {
		variance += (v - mean) * (v - mean)
	}

	std := math.Sqrt(variance / float64(len(pnls)-1))
	if std == 0 {
		return 0
	}

	return mean / std
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
