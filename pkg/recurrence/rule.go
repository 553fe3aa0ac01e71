package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/teambition/rrule-go"
)

var ErrMalformedRule = errors.New("malformed recurrence rule")
var ErrUnsupportedFrequency = errors.New("unsupported recurrence frequency")

const rulePrefix = "FREQ="

// UntilForm remembers how UNTIL was written so that encoding gives it back unchanged.
type UntilForm int

const (
	UntilUTC UntilForm = iota
	UntilFloating
	UntilDate
)

// Param is a rule part this package does not interpret, kept verbatim.
type Param struct {
	Key   string
	Value string
}

// Rule is the structured form of an RRULE value. Only FREQ, INTERVAL, COUNT and
// UNTIL are interpreted, everything else travels in Extra.
type Rule struct {
	Freq string
	// Interval is 0 when the rule does not specify one.
	Interval int
	// Count is 0 when the rule does not specify one.
	Count     int
	Until     *time.Time
	UntilForm UntilForm
	Extra     []Param
}

// DecodeRule parses rule text like FREQ=WEEKLY;INTERVAL=2;COUNT=10.
// Text that does not start with FREQ= is rejected with ErrMalformedRule.
// Unparseable INTERVAL, COUNT or UNTIL values are dropped.
func DecodeRule(text string) (*Rule, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, rulePrefix) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRule, text)
	}

	rule := &Rule{}
	for _, part := range strings.Split(text, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "FREQ":
			rule.Freq = strings.ToUpper(value)
		case "INTERVAL":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				rule.Interval = n
			}
		case "COUNT":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				rule.Count = n
			}
		case "UNTIL":
			until, err := ParseDateTime(value)
			if err != nil {
				continue
			}
			rule.Until = &until
			rule.UntilForm = untilFormOf(value)
		default:
			rule.setExtra(key, value)
		}
	}
	return rule, nil
}

// Encode writes the rule back to text, FREQ first.
func (r Rule) Encode() string {
	parts := []string{rulePrefix + r.Freq}
	if r.Interval > 0 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if r.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}
	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.untilText())
	}
	for _, p := range r.Extra {
		parts = append(parts, p.Key+"="+p.Value)
	}
	return strings.Join(parts, ";")
}

func (r Rule) String() string {
	return r.Encode()
}

// EffectiveInterval returns the step between occurrences, 1 when unset.
func (r Rule) EffectiveInterval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// Frequency maps Freq onto the frequencies the expander can step through.
func (r Rule) Frequency() (rrule.Frequency, error) {
	freq, err := rrule.StrToFreq(r.Freq)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, r.Freq)
	}
	switch freq {
	case rrule.DAILY, rrule.WEEKLY, rrule.MONTHLY, rrule.YEARLY:
		return freq, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, r.Freq)
}

// TruncateAt ends the series at until (inclusive) and drops COUNT.
func (r *Rule) TruncateAt(until time.Time, form UntilForm) {
	r.Until = &until
	r.UntilForm = form
	r.Count = 0
}

// LocalizeUntil turns a UTC UNTIL into the wall clock of loc, the zone the
// series start is written in, so it compares with naive occurrence times.
func (r *Rule) LocalizeUntil(loc *time.Location) {
	if r.Until == nil || r.UntilForm != UntilUTC || loc == nil {
		return
	}
	local := time.Date(r.Until.Year(), r.Until.Month(), r.Until.Day(), r.Until.Hour(), r.Until.Minute(), r.Until.Second(), 0, time.UTC).In(loc)
	wall := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
	r.Until = &wall
}

// UntilInZone converts a naive wall time of loc to the UTC instant an UNTIL
// value must carry.
func UntilInZone(wall time.Time, loc *time.Location) time.Time {
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc).UTC()
}

func (r *Rule) setExtra(key, value string) {
	for i := range r.Extra {
		if r.Extra[i].Key == key {
			r.Extra[i].Value = value
			return
		}
	}
	r.Extra = append(r.Extra, Param{Key: key, Value: value})
}

func (r Rule) untilText() string {
	switch r.UntilForm {
	case UntilDate:
		return r.Until.Format(LayoutDate)
	case UntilFloating:
		return r.Until.Format(LayoutDateTime)
	default:
		return r.Until.Format(LayoutUTC)
	}
}

func untilFormOf(value string) UntilForm {
	switch {
	case !HasTimeOfDay(value):
		return UntilDate
	case strings.HasSuffix(strings.ToUpper(value), "Z"):
		return UntilUTC
	default:
		return UntilFloating
	}
}
