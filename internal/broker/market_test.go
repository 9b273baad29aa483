package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/trading-bot/internal/logger"
)

func closedClock() MarketClock {
	now := time.Now().UTC()
	return MarketClock{
		Now:       now,
		IsOpen:    false,
		NextOpen:  now.Add(10 * time.Millisecond),
		NextClose: now.Add(8 * time.Hour),
	}
}

func openClock() MarketClock {
	now := time.Now().UTC()
	return MarketClock{
		Now:       now,
		IsOpen:    true,
		NextOpen:  now.Add(16 * time.Hour),
		NextClose: now.Add(4 * time.Hour),
	}
}

func TestTradingWindowOpen(t *testing.T) {
	t.Parallel()

	assert.True(t, openClock().TradingWindowOpen(5*time.Minute))
	assert.False(t, closedClock().TradingWindowOpen(5*time.Minute))

	// open but closing inside the offset window
	clock := openClock()
	clock.NextClose = clock.Now.Add(3 * time.Minute)
	assert.False(t, clock.TradingWindowOpen(5*time.Minute))
}

func TestGateMarket_Raise(t *testing.T) {
	t.Parallel()

	err := GateMarket(context.Background(), closedClock(), RaisePolicy, 5*time.Minute, logger.Noop{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMarketClosed)
}

func TestGateMarket_Ignore(t *testing.T) {
	t.Parallel()

	assert.NoError(t, GateMarket(context.Background(), closedClock(), IgnorePolicy, 5*time.Minute, logger.Noop{}))
}

func TestGateMarket_OpenPassesAllPolicies(t *testing.T) {
	t.Parallel()

	for _, policy := range []ClosePolicy{WaitPolicy, RaisePolicy, IgnorePolicy} {
		assert.NoError(t, GateMarket(context.Background(), openClock(), policy, 5*time.Minute, logger.Noop{}))
	}
}

func TestGateMarket_WaitBlocksUntilOpen(t *testing.T) {
	t.Parallel()

	start := time.Now()
	err := GateMarket(context.Background(), closedClock(), WaitPolicy, 5*time.Minute, logger.Noop{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestGateMarket_WaitHonorsCancellation(t *testing.T) {
	t.Parallel()

	clock := closedClock()
	clock.NextOpen = clock.Now.Add(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := GateMarket(ctx, clock, WaitPolicy, 5*time.Minute, logger.Noop{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseClosePolicy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]ClosePolicy{
		"wait":   WaitPolicy,
		"RAISE":  RaisePolicy,
		"ignore": IgnorePolicy,
		"":       IgnorePolicy,
	} {
		got, err := ParseClosePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseClosePolicy("panic")
	assert.Error(t, err)
}
