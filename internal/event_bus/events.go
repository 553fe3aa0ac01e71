package event_bus

import "time"

const (
	SeriesOccurrenceExcludedType EventType = "series.occurrence_excluded"
	SeriesTruncatedType          EventType = "series.truncated"
	SeriesDeletedType            EventType = "series.deleted"
)

// SeriesOccurrenceExcluded is published after an exception date was stored.
type SeriesOccurrenceExcluded struct {
	UID  string
	URL  string
	Date time.Time
}

// SeriesTruncated is published after a series was cut off before a date.
type SeriesTruncated struct {
	UID   string
	URL   string
	Until time.Time
}

// SeriesDeleted is published after a stored event object was removed.
type SeriesDeleted struct {
	UID string
	URL string
}
