package cli

import (
	"sort"
	"strings"

	"github.com/pfrederiksen/lastfm-events/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByListing SortOrder = "listing"
	SortByDate    SortOrder = "date"
	SortByTitle   SortOrder = "title"
)

// sortEvents sorts a slice of events based on the specified sort order.
// SortByListing keeps the listing's own order.
func sortEvents(events []*event.Event, sortOrder SortOrder) {
	switch sortOrder {
	case SortByDate:
		sort.SliceStable(events, func(i, j int) bool {
			return compareByDate(events[i], events[j])
		})
	case SortByTitle:
		sort.SliceStable(events, func(i, j int) bool {
			if !strings.EqualFold(events[i].Title, events[j].Title) {
				return strings.ToLower(events[i].Title) < strings.ToLower(events[j].Title)
			}
			// If titles are equal, sort by date
			return compareByDate(events[i], events[j])
		})
	}
}

// compareByDate compares two events by their start
// Returns true if event i should come before event j
func compareByDate(i, j *event.Event) bool {
	dateI := i.Start()
	dateJ := j.Start()

	// If both dates are valid, compare them
	if !dateI.IsZero() && !dateJ.IsZero() {
		return dateI.Before(dateJ)
	}

	// If only one date is valid, put the valid one first
	if !dateI.IsZero() {
		return true
	}
	if !dateJ.IsZero() {
		return false
	}

	return strings.ToLower(i.Title) < strings.ToLower(j.Title)
}
