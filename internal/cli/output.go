package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pfrederiksen/lastfm-events/internal/calendar"
	"github.com/pfrederiksen/lastfm-events/internal/event"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatICS  OutputFormat = "ics"
)

// OutputResult contains data to be output
type OutputResult struct {
	Username   string         `json:"username"`
	Year       string         `json:"year,omitempty"`
	FetchedAt  time.Time      `json:"fetched_at"`
	Events     []*event.Event `json:"events"`
	EventCount int            `json:"event_count"`
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	case FormatICS:
		_, err := io.WriteString(w, calendar.GenerateICS(result.Events, result.FetchedAt))
		return err
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *OutputResult) error {
	if result.Events == nil {
		result.Events = []*event.Event{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	if result.EventCount == 0 {
		fmt.Fprintln(w, "No events found.")
		return nil
	}

	for _, evt := range result.Events {
		fmt.Fprintf(w, "%s  %s (%s)\n", evt.StartDate, evt.Title, location(evt.Venue.Location))
		if verbose {
			fmt.Fprintf(w, "     ID: %s\n", evt.ID)
			fmt.Fprintf(w, "     Artists: %s\n", strings.Join(evt.Artists.Artist, ", "))
			if evt.URL != "" {
				fmt.Fprintf(w, "     URL: %s\n", evt.URL)
			}
			if evt.ArtistImage != "" {
				fmt.Fprintf(w, "     Artist image: %s\n", evt.ArtistImage)
			}
		}
	}

	label := "events"
	if result.EventCount == 1 {
		label = "event"
	}
	fmt.Fprintf(w, "\nTotal: %d %s\n", result.EventCount, label)

	return nil
}

func location(loc event.Location) string {
	if loc.Country == "" || loc.Country == event.UnknownCountry {
		return loc.City
	}
	return loc.City + ", " + loc.Country
}
