package ledger

import (
	"database/sql"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
)

func scanTrade(rows *sql.Rows) (types.Trade, error) {
	var (
		trade                              types.Trade
		side, status                       string
		filledPrice, stopLoss, target, pnl sql.NullFloat64
		exitPrice                          sql.NullFloat64
		filledAt, exitAt                   sql.NullTime
		orderID, errorMessage, underlying  sql.NullString
		stopOrderID, targetOrderID         sql.NullString
	)

	err := rows.Scan(
		&trade.ID, &trade.Symbol, &side, &trade.Quantity, &trade.Price, &filledPrice,
		&trade.Strategy, &status, &trade.Timestamp, &filledAt, &orderID, &errorMessage,
		&stopLoss, &target, &underlying, &pnl, &exitPrice, &exitAt, &stopOrderID, &targetOrderID,
	)
	if err != nil {
		return types.Trade{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan trade", err)
	}

	trade.Side = types.Side(side)
	trade.Status = types.TradeStatus(status)
	trade.Timestamp = trade.Timestamp.UTC()
	trade.FilledPrice = someFloat(filledPrice)
	trade.FilledTimestamp = someTime(filledAt)
	trade.OrderID = orderID.String
	trade.ErrorMessage = errorMessage.String
	trade.StopLoss = someFloat(stopLoss)
	trade.Target = someFloat(target)
	trade.UnderlyingSymbol = underlying.String
	trade.PnL = someFloat(pnl)
	trade.ExitPrice = someFloat(exitPrice)
	trade.ExitTimestamp = someTime(exitAt)
	trade.StopOrderID = stopOrderID.String
	trade.TargetOrderID = targetOrderID.String

	return trade, nil
}

func someFloat(v sql.NullFloat64) optional.Option[float64] {
	if !v.Valid {
		return optional.None[float64]()
	}

	return optional.Some(v.Float64)
}

func someTime(v sql.NullTime) optional.Option[time.Time] {
	if !v.Valid {
		return optional.None[time.Time]()
	}

	return optional.Some(v.Time.UTC())
}

func nullFloat(v optional.Option[float64]) sql.NullFloat64 {
	if v.IsNone() {
		return sql.NullFloat64{}
	}

	return sql.NullFloat64{Float64: v.Unwrap(), Valid: true}
}

func nullTime(v optional.Option[time.Time]) sql.NullTime {
	if v.IsNone() {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: v.Unwrap().UTC(), Valid: true}
}
