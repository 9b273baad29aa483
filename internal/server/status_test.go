package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/trading-bot/internal/broker/sandbox"
	"github.com/quantfolio/trading-bot/internal/logger"
	"github.com/quantfolio/trading-bot/internal/model"
	"github.com/quantfolio/trading-bot/internal/portfolio"
	"github.com/quantfolio/trading-bot/internal/quotes"
	"github.com/quantfolio/trading-bot/internal/rebalance"
)

func newStatusHandler(t *testing.T) *StatusHandler {
	t.Helper()

	src := quotes.NewStatic()
	src.SetPrice("AAPL", 100)

	backend := sandbox.New(sandbox.Config{InitialCash: 10_000, Increment: 1}, src, logger.Noop{})
	backend.Seed(model.Position{
		Asset:        model.NewAsset("AAPL", model.Equity),
		Quantity:     10,
		AvgPrice:     90,
		CurrentPrice: 100,
	})

	pf := portfolio.NewPortfolio(backend, nil, logger.Noop{})
	require.NoError(t, pf.Update(context.Background()))

	return NewStatusHandler(pf, rebalance.NewEngine(logger.Noop{}), logger.Noop{})
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newStatusHandler(t).Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var status statusResponse
	require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&status))

	assert.InDelta(t, 1000, status.TotalValue, 1e-9)
	require.Len(t, status.Positions, 1)
	assert.Equal(t, "AAPL", status.Positions[0].Asset.Symbol)
	assert.InDelta(t, 1, status.Weights["AAPL"].Weight, 1e-9)
	assert.Nil(t, status.LastFrame)
}

func TestStatusEndpoint_NoMutationRoutes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newStatusHandler(t).Mux())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/status", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatusServer_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	s := New("0", newStatusHandler(t), logger.Noop{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
