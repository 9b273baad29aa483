package alpaca

import (
	"errors"
	"fmt"
)

func (e *apiError) Error() string {
	return fmt.Sprintf("alpaca api error %d: %s", e.Code, e.Message)
}

func wrapAPIError(e *apiError, status string) error {
	if e == nil || e.Message == "" {
		return fmt.Errorf("alpaca request failed: %s", status)
	}
	return e
}

func asAPIError(err error, target **apiError) bool {
	return errors.As(err, target)
}
