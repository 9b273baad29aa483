package backtest

import "time"

// RebalanceDates walks [from, to] in steps of every days, snapping each date
// that lands on a weekend onto the following Monday. Dates are truncated to
// midnight UTC.
func RebalanceDates(from, to time.Time, every int) []time.Time {
	if every <= 0 {
		every = 1
	}

	var dates []time.Time
	current := from.UTC().Truncate(24 * time.Hour)
	end := to.UTC().Truncate(24 * time.Hour)

	for !current.After(end) {
		day := nextTradingDay(current)
		if day.After(end) {
			break
		}
		if len(dates) == 0 || day.After(dates[len(dates)-1]) {
			dates = append(dates, day)
		}
		current = current.AddDate(0, 0, every)
	}

	return dates
}

func nextTradingDay(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, 2)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	default:
		return t
	}
}
