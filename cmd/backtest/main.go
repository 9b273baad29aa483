package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quantfolio/trading-bot/internal/backtest"
	"github.com/quantfolio/trading-bot/internal/broker/sandbox"
	"github.com/quantfolio/trading-bot/internal/config"
	"github.com/quantfolio/trading-bot/internal/logger"
	"github.com/quantfolio/trading-bot/internal/portfolio"
	"github.com/quantfolio/trading-bot/internal/postgres"
	"github.com/quantfolio/trading-bot/internal/quotes"
	"github.com/quantfolio/trading-bot/internal/rebalance"
	"github.com/quantfolio/trading-bot/internal/strategy"
)

const (
	_configFilePath = "./configs/backtest.yaml"
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

	cfg, err := config.LoadBacktestConfig(_configFilePath)
	if err != nil {
		zapLogger.Fatalf("%s: can't load backtest config", err)
	}

	pgConfig := postgres.NewConfigFromEnv().Setup()
	db, err := postgres.NewDB(pgConfig)
	if err != nil {
		zapLogger.Fatalf("%s: can't connect to db", err)
	}
	history := quotes.NewHistory(db, zapLogger)

	src := quotes.NewStatic()
	backend := sandbox.New(cfg.Sandbox, src, zapLogger)

	pf := portfolio.NewPortfolio(backend, nil, zapLogger)
	if err := pf.Init(ctx); err != nil {
		zapLogger.Fatalf("%s: can't init portfolio", err)
	}

	provider, err := strategy.New(cfg.Strategy, pf, zapLogger)
	if err != nil {
		zapLogger.Fatalf("%s: can't setup strategy", err)
	}

	runner := backtest.NewRunner(
		zapLogger, history, src, backend, pf,
		rebalance.NewEngine(zapLogger), provider,
		cfg.Symbols, cfg.Sandbox.InitialCash,
	)

	results, err := runner.Run(ctx, cfg.From, cfg.To, cfg.IntervalDays)
	if err != nil {
		zapLogger.Errorf("%s: replay stopped early", err)
	}
	if len(results) == 0 {
		zapLogger.Fatalf("no results to report")
	}

	last := results[len(results)-1]
	zapLogger.Infof("replay finished: value %.2f profit %.2f%% over %d rebalances",
		last.TotalValue, last.Profit, len(results))
	printResults(results)
}

func printResults(results []backtest.Result) {
	for _, r := range results {
		fmt.Printf("%s,", r.Day.Format(time.DateOnly))
	}
	fmt.Println()
	for _, r := range results {
		fmt.Printf("%f,", r.TotalValue)
	}
	fmt.Println()
	for _, r := range results {
		fmt.Printf("%f,", r.Profit)
	}
	fmt.Println()
}
