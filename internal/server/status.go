package server

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/quantfolio/trading-bot/internal/logger"
	"github.com/quantfolio/trading-bot/internal/model"
	"github.com/quantfolio/trading-bot/internal/portfolio"
	"github.com/quantfolio/trading-bot/internal/rebalance"
)

type statusResponse struct {
	At         time.Time                           `json:"at"`
	TotalValue float64                             `json:"total_value"`
	Positions  []model.Position                    `json:"positions"`
	Weights    map[string]portfolio.PositionWeight `json:"weights"`
	LastFrame  *rebalance.Frame                    `json:"last_frame,omitempty"`
}

// StatusHandler exposes a read-only view of the portfolio and the last
// rebalance frame. No mutation routes.
type StatusHandler struct {
	portfolio *portfolio.Portfolio
	engine    *rebalance.Engine
	logger    logger.Logger
}

func NewStatusHandler(p *portfolio.Portfolio, e *rebalance.Engine, logger logger.Logger) *StatusHandler {
	return &StatusHandler{portfolio: p, engine: e, logger: logger}
}

func (h *StatusHandler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", h.status)
	return mux
}

func (h *StatusHandler) status(w http.ResponseWriter, r *http.Request) {
	weights, err := h.portfolio.Weights()
	if err != nil {
		// Zero total value is a defined condition, not a server fault.
		weights = map[string]portfolio.PositionWeight{}
		h.logger.Debugf("%s: serving status without weights", err)
	}

	resp := statusResponse{
		At:         time.Now().UTC(),
		TotalValue: h.portfolio.TotalValue(),
		Positions:  h.portfolio.Positions(),
		Weights:    weights,
		LastFrame:  h.engine.LastFrame(),
	}

	payload, err := sonic.Marshal(resp)
	if err != nil {
		h.logger.Errorf("%s: can't marshal status response", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}
