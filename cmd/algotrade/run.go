package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rxtech-lab/argo-algo/internal/engine"
	"github.com/rxtech-lab/argo-algo/internal/marketdata"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := load(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = log.Sync() }()

	sys, err := buildSystem(cfg, log)
	if err != nil {
		return err
	}

	defer sys.close()

	if !cmd.Bool("no-warmup") && cfg.History.Lookback > 0 {
		provider, err := marketdata.NewHistoryProvider(cfg.History.Provider, cfg.History.APIKey)
		if err != nil {
			return err
		}

		history := newMemoHistory(provider)

		// Download once up front; every engine instance reseeds from the memo.
		if err := warmup(ctx, sys, history, cfg.History.Lookback, os.Stderr); err != nil {
			log.Warn("Warm-up failed, starting cold", zap.Error(err))
		}

		sys.controller.OnEngineStart(func(e *engine.Engine) {
			if err := e.Warmup(ctx, history, cfg.History.Lookback, cfg.Intervals.BarInterval, nil); err != nil {
				log.Warn("Engine warm-up failed", zap.Error(err))
			}
		})
	}

	if err := sys.controller.Start(ctx); err != nil {
		return err
	}

	log.Info("Trading system running; press Ctrl+C to stop")

	<-ctx.Done()

	if err := sys.controller.Stop(); err != nil {
		log.Warn("Shutdown incomplete", zap.Error(err))
	}

	if err := sys.stats.WriteYAML(cfg.Stats.Path); err != nil {
		log.Error("Failed to write stats report", zap.Error(err))
	}

	status, err := yaml.Marshal(sys.controller.Status())
	if err == nil {
		log.Info("Final status", zap.ByteString("status", status))
	}

	return nil
}

// warmup downloads history for every registered strategy with a progress bar.
func warmup(
	ctx context.Context,
	sys *system,
	provider marketdata.HistoryProvider,
	lookback time.Duration,
	out *os.File,
) error {
	symbols := 0
	for _, s := range sys.registry.All() {
		symbols += len(s.RequiredSymbols())
	}

	bar := progressbar.NewOptions(symbols,
		progressbar.OptionSetDescription("Warm-up"),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	e := engine.New(sys.registry, nil, nil, nil, engine.Config{}, sys.logger)

	err := e.Warmup(ctx, provider, lookback, sys.config.Intervals.BarInterval, func(symbol string, bars int) {
		bar.Describe(fmt.Sprintf("Warm-up %s (%d bars)", symbol, bars))
		_ = bar.Add(1)
	})

	_ = bar.Finish()

	return err
}
