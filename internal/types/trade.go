package types

import (
	"slices"
	"time"

	"github.com/moznion/go-optional"
)

// TradeStatus is the ledger lifecycle state of a Trade.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "PENDING"
	TradeStatusFilled    TradeStatus = "FILLED"
	TradeStatusActive    TradeStatus = "ACTIVE"
	TradeStatusExited    TradeStatus = "EXITED"
	TradeStatusRejected  TradeStatus = "REJECTED"
	TradeStatusCancelled TradeStatus = "CANCELLED"
)

// AllTradeStatuses lists every status in lifecycle order.
var AllTradeStatuses = []TradeStatus{
	TradeStatusPending,
	TradeStatusFilled,
	TradeStatusActive,
	TradeStatusExited,
	TradeStatusRejected,
	TradeStatusCancelled,
}

var tradeTransitions = map[TradeStatus][]TradeStatus{
	TradeStatusPending: {TradeStatusFilled, TradeStatusRejected, TradeStatusCancelled},
	TradeStatusFilled:  {TradeStatusActive, TradeStatusCancelled},
	TradeStatusActive:  {TradeStatusExited, TradeStatusCancelled},
}

// CanTransitionTo reports whether next is an edge of the lifecycle from s.
func (s TradeStatus) CanTransitionTo(next TradeStatus) bool {
	return slices.Contains(tradeTransitions[s], next)
}

// SourcesOf returns every status that may move into next.
func SourcesOf(next TradeStatus) []TradeStatus {
	var sources []TradeStatus

	for _, from := range AllTradeStatuses {
		if from.CanTransitionTo(next) {
			sources = append(sources, from)
		}
	}

	return sources
}

// IsTerminal reports whether no further transition is possible.
func (s TradeStatus) IsTerminal() bool {
	return len(tradeTransitions[s]) == 0
}

// HasFill reports whether a trade in this status carries a filled price.
func (s TradeStatus) HasFill() bool {
	return s == TradeStatusFilled || s == TradeStatusActive || s == TradeStatusExited
}

// IsOpen reports whether the trade holds a live position.
func (s TradeStatus) IsOpen() bool {
	return s == TradeStatusFilled || s == TradeStatusActive
}

// Trade is the ledger's order record.
type Trade struct {
	ID               string                     `yaml:"id" json:"id"`
	Symbol           string                     `yaml:"symbol" json:"symbol"`
	Side             Side                       `yaml:"side" json:"side"`
	Quantity         float64                    `yaml:"quantity" json:"quantity"`
	Price            float64                    `yaml:"price" json:"price"`
	FilledPrice      optional.Option[float64]   `yaml:"filled_price" json:"filled_price"`
	Strategy         string                     `yaml:"strategy" json:"strategy"`
	Status           TradeStatus                `yaml:"status" json:"status"`
	Timestamp        time.Time                  `yaml:"timestamp" json:"timestamp"`
	FilledTimestamp  optional.Option[time.Time] `yaml:"filled_timestamp" json:"filled_timestamp"`
	OrderID          string                     `yaml:"order_id" json:"order_id"`
	ErrorMessage     string                     `yaml:"error_message" json:"error_message"`
	StopLoss         optional.Option[float64]   `yaml:"stop_loss" json:"stop_loss"`
	Target           optional.Option[float64]   `yaml:"target" json:"target"`
	UnderlyingSymbol string                     `yaml:"underlying_symbol" json:"underlying_symbol"`
	PnL              optional.Option[float64]   `yaml:"pnl" json:"pnl"`
	ExitPrice        optional.Option[float64]   `yaml:"exit_price" json:"exit_price"`
	ExitTimestamp    optional.Option[time.Time] `yaml:"exit_timestamp" json:"exit_timestamp"`
	// StopOrderID and TargetOrderID are the broker ids of the exit bracket legs.
	StopOrderID   string `yaml:"stop_order_id" json:"stop_order_id"`
	TargetOrderID string `yaml:"target_order_id" json:"target_order_id"`
}

// EntryPrice returns the filled price, or the requested price before a fill.
func (t Trade) EntryPrice() float64 {
	return t.FilledPrice.TakeOr(t.Price)
}

// HasExitLevels reports whether the trade carries a stop-loss or target.
func (t Trade) HasExitLevels() bool {
	return t.StopLoss.IsSome() || t.Target.IsSome()
}

// WatchSymbol is the symbol whose price is compared against the exit levels.
func (t Trade) WatchSymbol() string {
	if t.UnderlyingSymbol != "" {
		return t.UnderlyingSymbol
	}

	return t.Symbol
}

// ExitsBelow reports whether the stop sits below the target on the watched price,
// i.e. the position profits when the watched price rises. Without both levels the
// side of the trade decides.
func (t Trade) ExitsBelow() bool {
	if t.StopLoss.IsSome() && t.Target.IsSome() {
		return t.StopLoss.Unwrap() < t.Target.Unwrap()
	}

	if t.UnderlyingSymbol != "" {
		return true
	}

	return t.Side == SideBuy
}

// TradeFilter narrows ledger listings. Zero values mean no filter.
type TradeFilter struct {
	Statuses []TradeStatus
	Strategy string
	Symbol   string
	Since    time.Time
	Limit    int
}
