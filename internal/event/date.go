package event

import (
	"strings"
	"time"
)

const (
	naiveLayout  = "2006-01-02T15:04:05"
	offsetLayout = "2006-01-02T15:04:05-07:00"

	// timeOfDayLayout parses the clock part of "Friday 21 August, 2099 at 7:30pm"
	// once it has been upper-cased and joined to the calendar date.
	timeOfDayLayout = "2006-01-02 3:04PM"
)

// attributeLayouts are the machine datetime forms seen on event pages, most
// specific first.
var attributeLayouts = []struct {
	layout    string
	hasOffset bool
}{
	{offsetLayout, true},
	{"2006-01-02T15:04:05Z", true},
	{"2006-01-02T15:04-07:00", true},
	{naiveLayout, false},
	{"2006-01-02T15:04", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", false},
}

// Timestamp is an event start time that remembers whether its source carried
// a UTC offset. Naive timestamps render without one.
type Timestamp struct {
	Time      time.Time
	HasOffset bool
}

// String renders the timestamp as ISO-8601.
func (ts Timestamp) String() string {
	if ts.Time.IsZero() {
		return ""
	}
	if ts.HasOffset {
		return ts.Time.Format(offsetLayout)
	}
	return ts.Time.Format(naiveLayout)
}

// IsZero reports whether the timestamp is unset
func (ts Timestamp) IsZero() bool {
	return ts.Time.IsZero()
}

// ResolveStart determines an event's start from the human readable date text
// and the machine datetime attribute of its detail page.
//
// The attribute's time of day always reads midnight, so when the text carries
// a clock time ("... at 7:30pm") the calendar date is taken from the first ten
// characters of the attribute and the time from the text. Otherwise the
// attribute is parsed as a full timestamp.
func ResolveStart(text, attr string) (Timestamp, error) {
	attr = strings.TrimSpace(attr)

	if i := strings.LastIndex(text, " at "); i >= 0 {
		clock := strings.ToUpper(strings.ReplaceAll(text[i+len(" at "):], " ", ""))
		if len(attr) < 10 {
			return Timestamp{}, &DateError{Text: text, Attr: attr}
		}
		t, err := time.Parse(timeOfDayLayout, attr[:10]+" "+clock)
		if err != nil {
			return Timestamp{}, &DateError{Text: text, Attr: attr, Err: err}
		}
		return Timestamp{Time: t}, nil
	}

	ts, err := ParseTimestamp(attr)
	if err != nil {
		return Timestamp{}, &DateError{Text: text, Attr: attr, Err: err}
	}
	return ts, nil
}

// ParseTimestamp parses an ISO-8601 datetime attribute
func ParseTimestamp(attr string) (Timestamp, error) {
	var lastErr error
	for _, l := range attributeLayouts {
		t, err := time.Parse(l.layout, attr)
		if err == nil {
			return Timestamp{Time: t, HasOffset: l.hasOffset}, nil
		}
		lastErr = err
	}
	return Timestamp{}, lastErr
}

// Start parses the event's StartDate back into a time.
// Returns the zero time if StartDate is empty or malformed.
func (e *Event) Start() time.Time {
	ts, err := ParseTimestamp(e.StartDate)
	if err != nil {
		return time.Time{}
	}
	return ts.Time
}

// IsUpcoming checks if an event starts after now.
// Events without a parseable start are not upcoming.
func (e *Event) IsUpcoming(now time.Time) bool {
	start := e.Start()
	if start.IsZero() {
		return false
	}
	return start.After(now)
}

// Next returns the earliest upcoming event, or nil when every event has
// already started. Naive start times are compared as if they were UTC.
func Next(events []*Event, now time.Time) *Event {
	var next *Event
	for _, evt := range events {
		if !evt.IsUpcoming(now) {
			continue
		}
		if next == nil || evt.Start().Before(next.Start()) {
			next = evt
		}
	}
	return next
}

// OnlyNext narrows events to the next upcoming one. The result is empty,
// never nil, when nothing is upcoming.
func OnlyNext(events []*Event, now time.Time) []*Event {
	if evt := Next(events, now); evt != nil {
		return []*Event{evt}
	}
	return []*Event{}
}
