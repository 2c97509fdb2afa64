package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rxtech-lab/argo-algo/internal/config"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/internal/version"
	"github.com/urfave/cli/v3"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the YAML configuration `FILE`",
		Value:   "config.yaml",
		Sources: cli.EnvVars("ALGOTRADE_CONFIG"),
	}
}

// load reads the configuration named by --config and builds the logger.
func load(cmd *cli.Command) (config.Config, *logger.Logger, error) {
	path := cmd.String("config")
	if _, err := os.Stat(path); os.IsNotExist(err) && !cmd.IsSet("config") {
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}

	log, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, log, nil
}

func main() {
	cmd := &cli.Command{
		Name:    "algotrade",
		Usage:   "Automated trading: strategies, order execution, exit monitoring and risk control",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run every worker until interrupted",
				Flags:  []cli.Flag{configFlag(), &cli.BoolFlag{Name: "no-warmup", Usage: "Skip the history warm-up"}},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the configuration file",
				Action: schemaAction,
			},
			{
				Name:  "trades",
				Usage: "List trades from the ledger",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringSliceFlag{
						Name:    "status",
						Aliases: []string{"s"},
						Usage:   "Only trades in these statuses (PENDING, FILLED, ACTIVE, EXITED, REJECTED, CANCELLED)",
					},
					&cli.StringFlag{Name: "strategy", Usage: "Only trades of this strategy"},
					&cli.StringFlag{Name: "symbol", Usage: "Only trades of this symbol"},
					&cli.DurationFlag{Name: "since", Usage: "Only trades created within this duration"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of trades", Value: 50},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: yaml or json", Value: "yaml"},
				},
				Action: tradesAction,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a trade that has not been exited",
				ArgsUsage: "TRADE_ID",
				Flags:     []cli.Flag{configFlag()},
				Action:    cancelAction,
			},
			{
				Name:      "exit",
				Usage:     "Close an open trade at market",
				ArgsUsage: "TRADE_ID",
				Flags:     []cli.Flag{configFlag()},
				Action:    exitAction,
			},
			{
				Name:  "warmup",
				Usage: "Download warm-up history for the configured strategies and report bar counts",
				Flags: []cli.Flag{
					configFlag(),
					&cli.DurationFlag{Name: "lookback", Usage: "History window; defaults to history.lookback"},
				},
				Action: warmupAction,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		stop()
		log.Fatal(err)
	}
}

func parseStatuses(values []string) ([]types.TradeStatus, error) {
	statuses := make([]types.TradeStatus, 0, len(values))

	for _, v := range values {
		status := types.TradeStatus(v)
		switch status {
		case types.TradeStatusPending, types.TradeStatusFilled, types.TradeStatusActive,
			types.TradeStatusExited, types.TradeStatusRejected, types.TradeStatusCancelled:
			statuses = append(statuses, status)
		default:
			return nil, fmt.Errorf("unknown trade status %q", v)
		}
	}

	return statuses, nil
}

func sinceFilter(window time.Duration) time.Time {
	if window <= 0 {
		return time.Time{}
	}

	return time.Now().UTC().Add(-window)
}
