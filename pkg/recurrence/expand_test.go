package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func starts(occurrences []Occurrence) []time.Time {
	result := make([]time.Time, 0, len(occurrences))
	for _, o := range occurrences {
		result = append(result, o.Start)
	}
	return result
}

func TestExpand_Daily(t *testing.T) {
	// given
	start := date(2025, 6, 1, 9)
	rule := Rule{Freq: "DAILY", Count: 5}

	// when
	occurrences, err := Expand(start, start.Add(time.Hour), rule, date(2025, 6, 1, 0), date(2025, 6, 30, 0))

	// then
	require.NoError(t, err)
	require.Len(t, occurrences, 5)
	for i, o := range occurrences {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, start.AddDate(0, 0, i), o.Start)
		assert.Equal(t, time.Hour, o.End.Sub(o.Start))
	}
}

func TestExpand_WeeklyWithInterval(t *testing.T) {
	start := date(2025, 6, 2, 10)
	rule := Rule{Freq: "WEEKLY", Interval: 2, Count: 3}

	occurrences, err := Expand(start, start.Add(30*time.Minute), rule, date(2025, 6, 1, 0), date(2025, 7, 31, 0))

	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2025, 6, 2, 10), date(2025, 6, 16, 10), date(2025, 6, 30, 10)}, starts(occurrences))
}

func TestExpand_MonthlyClampsToMonthEnd(t *testing.T) {
	rule := Rule{Freq: "MONTHLY", Interval: 1, Count: 2}

	t.Run("should clamp to February 28 in a common year", func(t *testing.T) {
		start := date(2025, 1, 31, 9)

		occurrences, err := Expand(start, start.Add(time.Hour), rule, date(2025, 1, 1, 0), date(2025, 3, 31, 0))

		require.NoError(t, err)
		assert.Equal(t, []time.Time{date(2025, 1, 31, 9), date(2025, 2, 28, 9)}, starts(occurrences))
	})

	t.Run("should clamp to February 29 in a leap year", func(t *testing.T) {
		start := date(2024, 1, 31, 9)

		occurrences, err := Expand(start, start.Add(time.Hour), rule, date(2024, 1, 1, 0), date(2024, 3, 31, 0))

		require.NoError(t, err)
		assert.Equal(t, []time.Time{date(2024, 1, 31, 9), date(2024, 2, 29, 9)}, starts(occurrences))
	})

	t.Run("should carry into the next year", func(t *testing.T) {
		start := date(2025, 11, 15, 9)
		rule := Rule{Freq: "MONTHLY", Interval: 3, Count: 3}

		occurrences, err := Expand(start, start.Add(time.Hour), rule, date(2025, 11, 1, 0), date(2026, 6, 30, 0))

		require.NoError(t, err)
		assert.Equal(t, []time.Time{date(2025, 11, 15, 9), date(2026, 2, 15, 9), date(2026, 5, 15, 9)}, starts(occurrences))
	})
}

func TestExpand_YearlyLeapDay(t *testing.T) {
	start := date(2024, 2, 29, 9)
	rule := Rule{Freq: "YEARLY", Count: 2}

	occurrences, err := Expand(start, start.Add(time.Hour), rule, date(2024, 1, 1, 0), date(2025, 12, 31, 0))

	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2024, 2, 29, 9), date(2025, 2, 28, 9)}, starts(occurrences))
}

func TestExpand_UnboundedDailyStopsAtHundred(t *testing.T) {
	// given a series far longer than the padded window
	start := date(2025, 1, 1, 9)
	rule := Rule{Freq: "DAILY"}

	// when the window covers every possible occurrence
	all, err := Expand(start, start.Add(time.Hour), rule, date(2025, 1, 1, 0), date(2026, 12, 31, 0))
	require.NoError(t, err)

	// then generation stops at 100
	require.Len(t, all, 100)
	assert.Equal(t, 99, all[len(all)-1].Index)
	assert.Equal(t, date(2025, 4, 10, 9), all[len(all)-1].Start)

	// and a seven day window only sees its own days
	week, err := Expand(start, start.Add(time.Hour), rule, date(2025, 1, 10, 0), date(2025, 1, 16, 0))
	require.NoError(t, err)
	require.Len(t, week, 7)
	assert.Equal(t, 9, week[0].Index)
}

func TestExpand_CountAboveIterationCeiling(t *testing.T) {
	start := date(2000, 1, 1, 9)
	rule := Rule{Freq: "DAILY", Count: 5000}

	occurrences, err := Expand(start, start.Add(time.Hour), rule, date(2000, 1, 1, 0), date(2010, 1, 1, 0))

	require.NoError(t, err)
	assert.Len(t, occurrences, 1000)
}

func TestExpand_UntilIsInclusive(t *testing.T) {
	start := date(2025, 6, 1, 9)
	until := date(2025, 6, 4, 9)
	rule := Rule{Freq: "DAILY", Until: &until}

	occurrences, err := Expand(start, start.Add(time.Hour), rule, date(2025, 6, 1, 0), date(2025, 6, 30, 0))

	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2025, 6, 1, 9), date(2025, 6, 2, 9), date(2025, 6, 3, 9), date(2025, 6, 4, 9)}, starts(occurrences))
}

func TestExpand_CountAndUntilBothBound(t *testing.T) {
	start := date(2025, 6, 1, 9)
	until := date(2025, 6, 10, 9)

	t.Run("should stop at count first", func(t *testing.T) {
		occurrences, err := Expand(start, start.Add(time.Hour), Rule{Freq: "DAILY", Count: 3, Until: &until}, date(2025, 6, 1, 0), date(2025, 6, 30, 0))
		require.NoError(t, err)
		assert.Len(t, occurrences, 3)
	})

	t.Run("should stop at until first", func(t *testing.T) {
		occurrences, err := Expand(start, start.Add(time.Hour), Rule{Freq: "DAILY", Count: 30, Until: &until}, date(2025, 6, 1, 0), date(2025, 6, 30, 0))
		require.NoError(t, err)
		assert.Len(t, occurrences, 10)
	})
}

func TestExpand_WindowOverlapByDate(t *testing.T) {
	t.Run("should include a late event spilling into the next day", func(t *testing.T) {
		start := date(2025, 6, 10, 23)
		day := date(2025, 6, 10, 0)

		occurrences, err := Expand(start, start.Add(2*time.Hour), Rule{Freq: "DAILY", Count: 1}, day, day)

		require.NoError(t, err)
		require.Len(t, occurrences, 1)
		assert.Equal(t, date(2025, 6, 11, 1), occurrences[0].End)
	})

	t.Run("should include an occurrence that ended the night before the window", func(t *testing.T) {
		start := date(2025, 6, 9, 23)
		end := date(2025, 6, 10, 0)

		occurrences, err := Expand(start, end, Rule{Freq: "DAILY", Count: 1}, date(2025, 6, 10, 0), date(2025, 6, 10, 0))

		require.NoError(t, err)
		assert.Len(t, occurrences, 1)
	})

	t.Run("should keep indices of the unfiltered series", func(t *testing.T) {
		start := date(2025, 6, 1, 9)

		occurrences, err := Expand(start, start.Add(time.Hour), Rule{Freq: "DAILY", Count: 10}, date(2025, 6, 5, 0), date(2025, 6, 6, 0))

		require.NoError(t, err)
		require.Len(t, occurrences, 2)
		assert.Equal(t, 4, occurrences[0].Index)
		assert.Equal(t, 5, occurrences[1].Index)
	})

	t.Run("should stop past the padded window end", func(t *testing.T) {
		start := date(2025, 1, 1, 9)

		occurrences, err := Expand(start, start.Add(time.Hour), Rule{Freq: "YEARLY", Count: 50}, date(2025, 1, 1, 0), date(2025, 1, 31, 0))

		require.NoError(t, err)
		assert.Len(t, occurrences, 1)
	})
}

func TestExpand_UnsupportedFrequency(t *testing.T) {
	start := date(2025, 6, 1, 9)

	occurrences, err := Expand(start, start.Add(time.Hour), Rule{Freq: "HOURLY"}, date(2025, 6, 1, 0), date(2025, 6, 2, 0))

	assert.ErrorIs(t, err, ErrUnsupportedFrequency)
	assert.Nil(t, occurrences)
}
