package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantfolio/trading-bot/internal/broker/sandbox"
	"github.com/quantfolio/trading-bot/internal/strategy"
)

type BacktestConfig struct {
	LogLevel string          `yaml:"log_level"`
	Strategy strategy.Config `yaml:"strategy"`
	Sandbox  sandbox.Config  `yaml:"sandbox"`

	Symbols      []string  `yaml:"symbols"`
	From         time.Time `yaml:"from"`
	To           time.Time `yaml:"to"`
	IntervalDays int       `yaml:"interval_days"`
}

func (c *BacktestConfig) ValidateAndSetup() error {
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols are required")
	}
	if c.From.IsZero() || c.To.IsZero() || c.From.After(c.To) {
		return fmt.Errorf("bad replay window %s..%s", c.From, c.To)
	}
	if c.IntervalDays <= 0 {
		c.IntervalDays = _intervalDaysDefault
	}
	c.Sandbox.Setup()
	return nil
}

func LoadBacktestConfig(filename string) (BacktestConfig, error) {
	var cfg BacktestConfig
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
