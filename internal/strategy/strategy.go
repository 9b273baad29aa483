package strategy

import (
	"context"
	"fmt"

	"github.com/quantfolio/trading-bot/internal/logger"
)

// TargetWeights maps asset symbol to the fraction of total portfolio value a
// strategy wants allocated to it.
type TargetWeights map[string]float64

func (w TargetWeights) Sum() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// Provider supplies one target allocation per rebalance cycle.
type Provider interface {
	Name() string
	TargetWeights(ctx context.Context) (TargetWeights, error)
}

// WeightSource is what the hold strategy reads its current allocation from.
type WeightSource interface {
	WeightMap() (map[string]float64, error)
}

type Config struct {
	Name    string            `yaml:"name"`
	Address string            `yaml:"address"`
	Params  map[string]string `yaml:"params"`
}

// Known strategy names. Everything except hold is computed by the external
// strategy service and only proxied here.
var _remoteStrategies = map[string]struct{}{
	"pca":          {},
	"max_distance": {},
}

// New validates the configured strategy name and builds its provider.
// Unknown names fail here, at startup.
func New(cfg Config, source WeightSource, logger logger.Logger) (Provider, error) {
	if cfg.Name == "hold" {
		return &Hold{source: source}, nil
	}
	if _, ok := _remoteStrategies[cfg.Name]; ok {
		if cfg.Address == "" {
			return nil, fmt.Errorf("strategy %q needs a strategy service address", cfg.Name)
		}
		return NewClient(cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", cfg.Name)
}

// Hold keeps the current allocation: targets in = weights out. Useful for
// dry runs and wiring checks.
type Hold struct {
	source WeightSource
}

func (h *Hold) Name() string { return "hold" }

func (h *Hold) TargetWeights(context.Context) (TargetWeights, error) {
	weights, err := h.source.WeightMap()
	if err != nil {
		return nil, fmt.Errorf("%w: can't read current weights", err)
	}
	return weights, nil
}
