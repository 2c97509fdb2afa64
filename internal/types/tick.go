package types

import "time"

// Tick is one normalized market update. Ticks are values and are never mutated after emission.
type Tick struct {
	Symbol    string    `yaml:"symbol" json:"symbol"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Open      float64   `yaml:"open" json:"open"`
	High      float64   `yaml:"high" json:"high"`
	Low       float64   `yaml:"low" json:"low"`
	Close     float64   `yaml:"close" json:"close"`
	Volume    float64   `yaml:"volume" json:"volume"`
}

// Bar is an OHLCV aggregate over a time bucket starting at Timestamp.
type Bar struct {
	Symbol    string    `yaml:"symbol" json:"symbol"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Open      float64   `yaml:"open" json:"open"`
	High      float64   `yaml:"high" json:"high"`
	Low       float64   `yaml:"low" json:"low"`
	Close     float64   `yaml:"close" json:"close"`
	Volume    float64   `yaml:"volume" json:"volume"`
}

// AsBar returns the tick as a single-update bar.
func (t Tick) AsBar() Bar {
	return Bar{
		Symbol:    t.Symbol,
		Timestamp: t.Timestamp,
		Open:      t.Open,
		High:      t.High,
		Low:       t.Low,
		Close:     t.Close,
		Volume:    t.Volume,
	}
}

// Closes returns the close prices of bars in order.
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	return closes
}
