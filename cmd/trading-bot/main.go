package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quantfolio/trading-bot/internal/broker"
	"github.com/quantfolio/trading-bot/internal/broker/alpaca"
	"github.com/quantfolio/trading-bot/internal/broker/sandbox"
	"github.com/quantfolio/trading-bot/internal/config"
	"github.com/quantfolio/trading-bot/internal/logger"
	"github.com/quantfolio/trading-bot/internal/model"
	"github.com/quantfolio/trading-bot/internal/portfolio"
	"github.com/quantfolio/trading-bot/internal/postgres"
	"github.com/quantfolio/trading-bot/internal/quotes"
	"github.com/quantfolio/trading-bot/internal/rebalance"
	"github.com/quantfolio/trading-bot/internal/server"
	"github.com/quantfolio/trading-bot/internal/strategy"
)

const (
	_configFilePath = "./configs/config.yaml"
)

func main() {
	zapLogger, loggerSync, err := logger.NewZapLogger(logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer loggerSync()

	if err := godotenv.Load(); err != nil {
		zapLogger.Warnf("can't detect .env file")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadRunConfig(_configFilePath)
	if err != nil {
		zapLogger.Fatalf("%s: can't load run config", err)
	}

	quoteSource, closeQuotes, err := setupQuotes(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatalf("%s: can't setup quote source", err)
	}
	defer closeQuotes()

	backend, err := setupBackend(cfg, quoteSource, zapLogger)
	if err != nil {
		zapLogger.Fatalf("%s: can't setup trade backend", err)
	}

	pf, err := setupPortfolio(ctx, backend, postgres.NewConfigFromEnv(), zapLogger)
	if err != nil {
		zapLogger.Fatalf("%s: can't init portfolio", err)
	}
	go pf.Run(ctx)

	provider, err := strategy.New(cfg.Strategy, pf, zapLogger)
	if err != nil {
		zapLogger.Fatalf("%s: can't setup strategy", err)
	}

	engine := rebalance.NewEngine(zapLogger)

	if cfg.Server.Port != "" {
		statusServer := server.New(cfg.Server.Port, server.NewStatusHandler(pf, engine, zapLogger), zapLogger)
		go func() {
			if err := statusServer.Run(ctx); err != nil {
				zapLogger.Errorf("%s: status server stopped", err)
			}
		}()
	}

	interval := time.Duration(cfg.Rebalance.IntervalDays) * 24 * time.Hour
	zapLogger.Infof("running strategy %s on %s backend every %d days", provider.Name(), cfg.Broker.Backend, cfg.Rebalance.IntervalDays)

	for {
		if err := runCycle(ctx, pf, provider, engine, backend, cfg.Rebalance.AddValue, zapLogger); err != nil {
			zapLogger.Errorf("%s: rebalance cycle failed", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func setupQuotes(ctx context.Context, cfg config.RunConfig, zapLogger logger.Logger) (quotes.Source, func(), error) {
	if cfg.Quotes.StreamURL == "" {
		zapLogger.Warnf("no quote stream configured, notional translation limited to static quotes")
		return quotes.NewStatic(), func() {}, nil
	}

	stream := quotes.NewStream(
		cfg.Quotes.StreamURL,
		cfg.Broker.Alpaca.Key,
		cfg.Broker.Alpaca.Secret,
		cfg.Quotes.Symbols,
		zapLogger,
	)
	if err := stream.Connect(ctx); err != nil {
		return nil, nil, err
	}
	return stream, stream.Close, nil
}

func setupBackend(cfg config.RunConfig, quoteSource quotes.Source, zapLogger logger.Logger) (broker.TradeBackend, error) {
	switch cfg.Broker.Backend {
	case config.AlpacaBackend:
		return alpaca.New(cfg.Broker.Alpaca, quoteSource, zapLogger)
	default:
		return sandbox.New(cfg.Broker.Sandbox, quoteSource, zapLogger), nil
	}
}

func setupPortfolio(ctx context.Context, backend broker.TradeBackend, pgCfg *postgres.Config, zapLogger logger.Logger) (*portfolio.Portfolio, error) {
	var pf *portfolio.Portfolio
	if pgCfg.Enabled() {
		db, err := postgres.NewDB(pgCfg.Setup())
		if err != nil {
			return nil, err
		}
		pf = portfolio.NewPortfolio(backend, db, zapLogger)
	} else {
		zapLogger.Infoln("no postgres configured, running without snapshots")
		pf = portfolio.NewPortfolio(backend, nil, zapLogger)
	}

	if err := pf.Init(ctx); err != nil {
		return nil, err
	}
	return pf, nil
}

// runCycle is one full pass: refresh state, ask the strategy for targets,
// diff, submit, refresh again.
func runCycle(
	ctx context.Context,
	pf *portfolio.Portfolio,
	provider strategy.Provider,
	engine *rebalance.Engine,
	backend broker.TradeBackend,
	addValue float64,
	zapLogger logger.Logger,
) error {
	if err := pf.Update(ctx); err != nil {
		return err
	}

	current, err := pf.WeightMap()
	if err != nil {
		return err
	}

	targets, err := provider.TargetWeights(ctx)
	if err != nil {
		return err
	}

	if _, err := engine.CreateFrame(current, pf.TotalValue(), targets, addValue); err != nil {
		return err
	}
	instructions, err := engine.TradeInstructions()
	if err != nil {
		return err
	}
	if len(instructions) == 0 {
		zapLogger.Infoln("portfolio already on target, nothing to trade")
		return nil
	}

	orders := make([]model.Order, 0, len(instructions))
	for _, instruction := range instructions {
		order, err := instruction.Order()
		if err != nil {
			return err
		}
		orders = append(orders, order)
	}

	results, err := backend.PlaceBulkOrders(ctx, orders)
	if err != nil {
		return err
	}
	for _, result := range results {
		zapLogger.Infof("%s order for %s: %s %s", result.Order.Side, result.Order.Asset.Symbol, result.Outcome, result.Reason)
	}

	return pf.Update(ctx)
}
