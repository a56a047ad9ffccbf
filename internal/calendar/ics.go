// Package calendar renders events as an iCalendar (RFC 5545) feed.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/lastfm-events/internal/event"
)

// Duration is the assumed length of a gig; listings only carry start times
const Duration = 3 * time.Hour

// UIDDomain qualifies event ids into calendar UIDs
const UIDDomain = "last.fm"

// GenerateICS generates an iCalendar (.ics) feed with one VEVENT per event.
// Events without a readable start date are left out. now stamps DTSTAMP.
func GenerateICS(events []*event.Event, now time.Time) string {
	var ics strings.Builder

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//lastfm-events//lastfm-events//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	ics.WriteString("X-WR-CALNAME:Last.fm events\r\n")

	for _, evt := range events {
		writeEvent(&ics, evt, now)
	}

	ics.WriteString("END:VCALENDAR\r\n")

	return ics.String()
}

func writeEvent(ics *strings.Builder, evt *event.Event, now time.Time) {
	start, err := event.ParseTimestamp(evt.StartDate)
	if err != nil {
		return
	}

	ics.WriteString("BEGIN:VEVENT\r\n")

	// UID - unique identifier for the event
	ics.WriteString(fmt.Sprintf("UID:%s@%s\r\n", evt.ID, UIDDomain))

	// DTSTAMP - timestamp when this calendar entry was created
	ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICSTime(now)))

	ics.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatStart(start)))
	ics.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatStart(event.Timestamp{Time: start.Time.Add(Duration), HasOffset: start.HasOffset})))

	ics.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICS(evt.Title)))

	description := evt.Description
	if len(evt.Artists.Artist) > 0 {
		description = fmt.Sprintf("%s\nLineup: %s", description, strings.Join(evt.Artists.Artist, ", "))
	}
	ics.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICS(description)))

	location := evt.Venue.Location.City
	if country := evt.Venue.Location.Country; country != "" && country != event.UnknownCountry {
		location = fmt.Sprintf("%s, %s", location, country)
	}
	ics.WriteString(fmt.Sprintf("LOCATION:%s\r\n", escapeICS(location)))

	if evt.URL != "" {
		ics.WriteString(fmt.Sprintf("URL:%s\r\n", evt.URL))
	}

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")

	ics.WriteString("END:VEVENT\r\n")
}

// formatStart writes offset-aware times in UTC and naive times as floating
// local times, which calendar clients show unchanged in any zone.
func formatStart(ts event.Timestamp) string {
	if ts.HasOffset {
		return formatICSTime(ts.Time)
	}
	return ts.Time.Format("20060102T150405")
}

// formatICSTime formats a time.Time as an iCalendar UTC datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
