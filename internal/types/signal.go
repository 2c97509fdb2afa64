package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
)

// Signal is a strategy's recommendation. It is consumed exactly once by the executor.
type Signal struct {
	ID           string    `validate:"required"`
	Symbol       string    `validate:"required"`
	Action       Side      `validate:"required,oneof=BUY SELL"`
	Price        float64   `validate:"gte=0"`
	Quantity     float64   `validate:"gt=0"`
	SignalType   string    `validate:"required"`
	Confidence   float64   `validate:"gte=0,lte=1"`
	StrategyName string    `validate:"required"`
	Timestamp    time.Time `validate:"required"`
	Metadata     SignalMetadata
}

// SignalMetadata carries exit levels and free-form indicator values.
// StopLoss and Target refer to UnderlyingSymbol when it is set.
type SignalMetadata struct {
	StopLoss         optional.Option[float64]
	Target           optional.Option[float64]
	UnderlyingSymbol string
	Values           map[string]float64
}

// HasExitLevels reports whether the signal asks for stop-loss/target management.
func (m SignalMetadata) HasExitLevels() bool {
	return m.StopLoss.IsSome() || m.Target.IsSome()
}

// Validate validates the signal fields.
func (s *Signal) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSignal, "invalid signal", err)
	}

	return nil
}
