package strategy

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/quantfolio/trading-bot/internal/logger"
)

const _weightsURL = "/get-weights"

type weightsResponse struct {
	Weights    map[string]float64 `json:"weights"`
	ComputedAt time.Time          `json:"computed_at"`
}

type errorResponse struct {
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"retry_after"`
}

// Client fetches target weights from the external strategy service.
type Client struct {
	c   *resty.Client
	cfg Config

	logger logger.Logger
}

func NewClient(cfg Config, logger logger.Logger) *Client {
	client := resty.New().
		SetLogger(logger).
		SetBaseURL(cfg.Address)

	return &Client{
		c:      client,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Client) Name() string { return s.cfg.Name }

func (s *Client) TargetWeights(ctx context.Context) (TargetWeights, error) {
	params := map[string]string{"strategy": s.cfg.Name}
	for k, v := range s.cfg.Params {
		params[k] = v
	}

	req := s.c.R().
		SetQueryParams(params).
		SetResult(&weightsResponse{}).
		SetError(&errorResponse{}).
		SetContext(ctx)

	resp, err := req.Get(_weightsURL)
	if err != nil {
		return nil, fmt.Errorf("%w: can't request target weights", err)
	}
	defer resp.Body.Close()

	s.logger.Debugf("got response %s status: %s, %s", resp.Request.URL, resp.Status(), resp.Duration())

	if resp.IsError() {
		response := resp.Error().(*errorResponse)
		if response.RetryAfter > 0 {
			return nil, fmt.Errorf("%s: strategy service busy, retry after %s", response.Message, response.RetryAfter)
		}
		return nil, fmt.Errorf("%s: target weights request error", response.Message)
	}
	if resp.IsSuccess() {
		result := resp.Result().(*weightsResponse)
		s.logger.Infof("strategy %s computed %d target weights at %s", s.cfg.Name, len(result.Weights), result.ComputedAt)
		return result.Weights, nil
	}

	return nil, fmt.Errorf("target weights unexpected request error: %s", resp.Status())
}
