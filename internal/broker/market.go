package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quantfolio/trading-bot/internal/logger"
)

// ErrMarketClosed is returned when the market is closed (or closing within
// the configured offset) and the adapter's policy is to refuse.
var ErrMarketClosed = errors.New("market closed")

// ClosePolicy decides what an adapter does when asked to submit while the
// market is closed or about to close.
type ClosePolicy string

const (
	WaitPolicy   ClosePolicy = "wait"
	RaisePolicy  ClosePolicy = "raise"
	IgnorePolicy ClosePolicy = "ignore"
)

func ParseClosePolicy(s string) (ClosePolicy, error) {
	switch ClosePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case WaitPolicy:
		return WaitPolicy, nil
	case RaisePolicy:
		return RaisePolicy, nil
	case IgnorePolicy, "":
		return IgnorePolicy, nil
	default:
		return "", fmt.Errorf("unknown market close policy %q", s)
	}
}

// MarketClock is the normalized view of a broker's trading calendar.
type MarketClock struct {
	Now       time.Time `json:"now"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// TradingWindowOpen reports whether the market is open and stays open for at
// least the given offset.
func (c MarketClock) TradingWindowOpen(offset time.Duration) bool {
	return c.IsOpen && c.NextClose.Sub(c.Now) > offset
}

// GateMarket enforces the close policy before an order submission. With the
// wait policy it blocks until the next open, honoring ctx cancellation.
func GateMarket(ctx context.Context, clock MarketClock, policy ClosePolicy, offset time.Duration, log logger.Logger) error {
	if clock.TradingWindowOpen(offset) {
		return nil
	}

	untilOpen := clock.NextOpen.Sub(clock.Now)
	switch policy {
	case WaitPolicy:
		log.Infof("market closed or closing within %s, waiting %.2fh until next open", offset, untilOpen.Hours())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(untilOpen):
			return nil
		}
	case RaisePolicy:
		return fmt.Errorf("%w: next open in %.2fh", ErrMarketClosed, untilOpen.Hours())
	case IgnorePolicy:
		log.Debugf("market closed for %.2fh, submitting anyway", untilOpen.Hours())
		return nil
	default:
		return fmt.Errorf("unknown market close policy %q", policy)
	}
}
