package config

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantfolio/trading-bot/internal/broker"
	"github.com/quantfolio/trading-bot/internal/broker/alpaca"
	"github.com/quantfolio/trading-bot/internal/broker/sandbox"
	"github.com/quantfolio/trading-bot/internal/strategy"
)

type BackendKind string

const (
	AlpacaBackend  BackendKind = "alpaca"
	SandboxBackend BackendKind = "sandbox"
)

type BrokerConfig struct {
	Backend BackendKind    `yaml:"backend"`
	Alpaca  alpaca.Config  `yaml:"alpaca"`
	Sandbox sandbox.Config `yaml:"sandbox"`
}

type RebalanceConfig struct {
	AddValue     float64 `yaml:"add_value"`
	IntervalDays int     `yaml:"interval_days"`
}

type QuotesConfig struct {
	StreamURL string   `yaml:"stream_url"`
	Symbols   []string `yaml:"symbols"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type RunConfig struct {
	LogLevel string          `yaml:"log_level"`
	Strategy strategy.Config `yaml:"strategy"`
	Broker   BrokerConfig    `yaml:"broker"`

	MarketCloseHandle string `yaml:"market_close_handle"`
	MarketCloseOffset int    `yaml:"market_close_offset"` // minutes

	Rebalance RebalanceConfig `yaml:"rebalance"`
	Quotes    QuotesConfig    `yaml:"quotes"`
	Server    ServerConfig    `yaml:"server"`
}

const (
	_closeOffsetDefault  = 5
	_intervalDaysDefault = 30
)

// ValidateAndSetup fills defaults and fails fast on anything a cycle can't
// run with: unknown strategy or backend, bad close policy, missing live
// credentials.
func (c *RunConfig) ValidateAndSetup() error {
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy name is required")
	}

	policy, err := broker.ParseClosePolicy(c.MarketCloseHandle)
	if err != nil {
		return fmt.Errorf("%w: can't setup market close handling", err)
	}
	if c.MarketCloseOffset <= 0 {
		c.MarketCloseOffset = _closeOffsetDefault
	}
	offset := time.Duration(c.MarketCloseOffset) * time.Minute

	if c.Rebalance.IntervalDays <= 0 {
		c.Rebalance.IntervalDays = _intervalDaysDefault
	}

	switch c.Broker.Backend {
	case AlpacaBackend:
		c.Broker.Alpaca.Key = cmp.Or(os.Getenv("ALPACA_API_KEY"), c.Broker.Alpaca.Key)
		c.Broker.Alpaca.Secret = cmp.Or(os.Getenv("ALPACA_API_SECRET"), c.Broker.Alpaca.Secret)
		c.Broker.Alpaca.ClosePolicy = policy
		c.Broker.Alpaca.CloseOffset = offset
		if err := c.Broker.Alpaca.Setup(); err != nil {
			return fmt.Errorf("%w: can't setup alpaca backend", err)
		}
	case SandboxBackend, "":
		c.Broker.Backend = SandboxBackend
		c.Broker.Sandbox.ClosePolicy = policy
		c.Broker.Sandbox.CloseOffset = offset
		c.Broker.Sandbox.Setup()
	default:
		return fmt.Errorf("unknown broker backend %q", c.Broker.Backend)
	}

	return nil
}

func LoadRunConfig(filename string) (RunConfig, error) {
	var cfg RunConfig
	input, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("%w: can't read file", err)
	}

	if err := yaml.Unmarshal(input, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: can't unmarshal config", err)
	}

	if err := cfg.ValidateAndSetup(); err != nil {
		return cfg, fmt.Errorf("%w: can't setup cfg", err)
	}

	return cfg, nil
}
