package event

import (
	"time"
)

const (
	defaultSummary = "Untitled Event"
	defaultHour    = 9

	maxUIDLength         = 100
	maxSummaryLength     = 200
	maxDescriptionLength = 500
	maxLocationLength    = 200
)

// Event is one concrete calendar entry. Start and End are wall clock times of
// the calendar, kept in time.UTC without timezone conversion.
type Event struct {
	UID          string
	Summary      string
	Description  string
	Location     string
	Start        time.Time
	End          time.Time
	AllDay       bool
	URL          string
	CalendarName string
	Color        string
	// RRule is the recurrence rule text of a series. Only set on the series
	// itself, never on its occurrences.
	RRule          string
	ExceptionDates []time.Time
	// Recurrence is set on occurrences generated from a series.
	Recurrence *RecurrenceInfo

	// zone is the TZID of DTSTART.
	zone string
}

type RecurrenceInfo struct {
	OriginalUID string
	Index       int
}

func (e Event) IsRecurring() bool {
	return e.Recurrence != nil
}

// Frequency values accepted when creating a recurring event.
const (
	RepeatNone    = "none"
	RepeatDaily   = "daily"
	RepeatWeekly  = "weekly"
	RepeatMonthly = "monthly"
	RepeatYearly  = "yearly"
)

// Repeat describes the recurrence requested for a new or updated event.
type Repeat struct {
	Frequency string
	Interval  int
	Count     int
	Until     *time.Time
}

// Draft is the user supplied content of an event to create or update.
type Draft struct {
	Title        string
	Description  string
	Location     string
	Start        time.Time
	End          time.Time
	CalendarName string
	Repeat       Repeat
}
