package model

import "errors"

// ErrZeroValue marks a weight computation over a zero total portfolio value.
// It is a defined failure; weights are never NaN or Inf.
var ErrZeroValue = errors.New("zero total portfolio value")
