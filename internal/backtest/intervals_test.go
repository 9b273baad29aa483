package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRebalanceDates(t *testing.T) {
	t.Parallel()

	// 2024-01-01 is a Monday
	dates := RebalanceDates(day("2024-01-01"), day("2024-01-31"), 7)
	require.Len(t, dates, 5)
	assert.Equal(t, day("2024-01-01"), dates[0])
	assert.Equal(t, day("2024-01-29"), dates[4])
	for _, d := range dates {
		assert.Equal(t, time.Monday, d.Weekday())
	}
}

func TestRebalanceDates_WeekendSnapsToMonday(t *testing.T) {
	t.Parallel()

	// 2024-01-06 is a Saturday
	dates := RebalanceDates(day("2024-01-06"), day("2024-01-10"), 30)
	require.Len(t, dates, 1)
	assert.Equal(t, day("2024-01-08"), dates[0])
	assert.Equal(t, time.Monday, dates[0].Weekday())
}

func TestRebalanceDates_EmptyWindow(t *testing.T) {
	t.Parallel()

	assert.Empty(t, RebalanceDates(day("2024-01-10"), day("2024-01-05"), 7))

	// window ends before the weekend snap lands
	assert.Empty(t, RebalanceDates(day("2024-01-06"), day("2024-01-07"), 7))
}

func TestRebalanceDates_SingleDay(t *testing.T) {
	t.Parallel()

	dates := RebalanceDates(day("2024-01-03"), day("2024-01-03"), 7)
	require.Len(t, dates, 1)
	assert.Equal(t, day("2024-01-03"), dates[0])
}
