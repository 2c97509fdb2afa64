package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/config"
	"github.com/rxtech-lab/argo-algo/internal/marketdata"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func schemaAction(_ context.Context, cmd *cli.Command) error {
	schema, err := config.SchemaJSON()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, schema)

	return err
}

// tradeView is the printable form of a trade.
type tradeView struct {
	ID               string     `yaml:"id" json:"id"`
	Symbol           string     `yaml:"symbol" json:"symbol"`
	Side             types.Side `yaml:"side" json:"side"`
	Quantity         float64    `yaml:"quantity" json:"quantity"`
	Price            float64    `yaml:"price" json:"price"`
	Status           string     `yaml:"status" json:"status"`
	Strategy         string     `yaml:"strategy" json:"strategy"`
	Timestamp        time.Time  `yaml:"timestamp" json:"timestamp"`
	OrderID          string     `yaml:"order_id,omitempty" json:"order_id,omitempty"`
	FilledPrice      *float64   `yaml:"filled_price,omitempty" json:"filled_price,omitempty"`
	FilledTimestamp  *time.Time `yaml:"filled_timestamp,omitempty" json:"filled_timestamp,omitempty"`
	StopLoss         *float64   `yaml:"stop_loss,omitempty" json:"stop_loss,omitempty"`
	Target           *float64   `yaml:"target,omitempty" json:"target,omitempty"`
	UnderlyingSymbol string     `yaml:"underlying_symbol,omitempty" json:"underlying_symbol,omitempty"`
	ExitPrice        *float64   `yaml:"exit_price,omitempty" json:"exit_price,omitempty"`
	ExitTimestamp    *time.Time `yaml:"exit_timestamp,omitempty" json:"exit_timestamp,omitempty"`
	PnL              *float64   `yaml:"pnl,omitempty" json:"pnl,omitempty"`
	Error            string     `yaml:"error,omitempty" json:"error,omitempty"`
}

func ptr[T any](o optional.Option[T]) *T {
	if o.IsNone() {
		return nil
	}

	v := o.Unwrap()

	return &v
}

func newTradeView(t types.Trade) tradeView {
	return tradeView{
		ID:               t.ID,
		Symbol:           t.Symbol,
		Side:             t.Side,
		Quantity:         t.Quantity,
		Price:            t.Price,
		Status:           string(t.Status),
		Strategy:         t.Strategy,
		Timestamp:        t.Timestamp,
		OrderID:          t.OrderID,
		FilledPrice:      ptr(t.FilledPrice),
		FilledTimestamp:  ptr(t.FilledTimestamp),
		StopLoss:         ptr(t.StopLoss),
		Target:           ptr(t.Target),
		UnderlyingSymbol: t.UnderlyingSymbol,
		ExitPrice:        ptr(t.ExitPrice),
		ExitTimestamp:    ptr(t.ExitTimestamp),
		PnL:              ptr(t.PnL),
		Error:            t.ErrorMessage,
	}
}

func writeTrades(w io.Writer, format string, trades []types.Trade) error {
	views := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, newTradeView(t))
	}

	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(views)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)

		if err := encoder.Encode(views); err != nil {
			return err
		}

		return encoder.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func tradesAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := load(cmd)
	if err != nil {
		return err
	}

	statuses, err := parseStatuses(cmd.StringSlice("status"))
	if err != nil {
		return err
	}

	sys, err := buildSystem(cfg, log)
	if err != nil {
		return err
	}

	defer sys.close()

	trades, err := sys.controller.ListTrades(ctx, types.TradeFilter{
		Statuses: statuses,
		Strategy: cmd.String("strategy"),
		Symbol:   cmd.String("symbol"),
		Since:    sinceFilter(cmd.Duration("since")),
		Limit:    int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	return writeTrades(cmd.Root().Writer, cmd.String("format"), trades)
}

func tradeID(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one TRADE_ID argument")
	}

	return cmd.Args().First(), nil
}

func cancelAction(ctx context.Context, cmd *cli.Command) error {
	id, err := tradeID(cmd)
	if err != nil {
		return err
	}

	cfg, log, err := load(cmd)
	if err != nil {
		return err
	}

	sys, err := buildSystem(cfg, log)
	if err != nil {
		return err
	}

	defer sys.close()

	if err := sys.controller.CancelTrade(ctx, id); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.Root().Writer, "Trade %s cancelled\n", id)

	return err
}

func exitAction(ctx context.Context, cmd *cli.Command) error {
	id, err := tradeID(cmd)
	if err != nil {
		return err
	}

	cfg, log, err := load(cmd)
	if err != nil {
		return err
	}

	sys, err := buildSystem(cfg, log)
	if err != nil {
		return err
	}

	defer sys.close()

	if err := sys.controller.ExitTrade(ctx, id); err != nil {
		return err
	}

	trade, err := sys.controller.GetTrade(ctx, id)
	if err != nil {
		return err
	}

	return writeTrades(cmd.Root().Writer, "yaml", []types.Trade{trade})
}

func warmupAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := load(cmd)
	if err != nil {
		return err
	}

	lookback := cfg.History.Lookback
	if cmd.IsSet("lookback") {
		lookback = cmd.Duration("lookback")
	}

	sys, err := buildSystem(cfg, log)
	if err != nil {
		return err
	}

	defer sys.close()

	provider, err := marketdata.NewHistoryProvider(cfg.History.Provider, cfg.History.APIKey)
	if err != nil {
		return err
	}

	history := newMemoHistory(provider)
	if err := warmup(ctx, sys, history, lookback, os.Stderr); err != nil {
		return err
	}

	counts := make(map[string]int, len(history.bars))
	for key, bars := range history.bars {
		counts[key] = len(bars)
	}

	return yaml.NewEncoder(cmd.Root().Writer).Encode(counts)
}
