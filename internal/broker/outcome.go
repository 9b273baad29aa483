package broker

import "github.com/quantfolio/trading-bot/internal/model"

// Outcome tags what happened to a single order on its way to the broker.
// Liquidity and market conditions are expected, recoverable states, so they
// surface here instead of as errors.
type Outcome string

const (
	// Submitted means the broker accepted the order as requested.
	Submitted Outcome = "submitted"
	// Clamped means the requested sell size exceeded available inventory and
	// was reduced to the maximum available amount before submission.
	Clamped Outcome = "clamped"
	// Dismissed means the order was dropped before submission, e.g. a sell
	// with no inventory left after clamping.
	Dismissed Outcome = "dismissed"
	// Rejected means the broker (or a pre-flight check) refused the order.
	Rejected Outcome = "rejected"
)

type OrderResult struct {
	Outcome Outcome     `json:"outcome"`
	Order   model.Order `json:"order"`
	// Reason carries the diagnostic for non-submitted outcomes.
	Reason string `json:"reason,omitempty"`
}

func (r OrderResult) Placed() bool {
	return r.Outcome == Submitted || r.Outcome == Clamped
}
