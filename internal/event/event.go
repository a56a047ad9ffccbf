package event

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	UnknownArtist  = "Unknown Artist"
	UnknownCity    = "Unknown City"
	UnknownCountry = "Unknown Country"
)

// Preview is a single row of a user's events listing, before enrichment
type Preview struct {
	Title        string
	DetailURL    string // href of the title link, usually relative
	CoverURL     string // absolute link to the event page
	LineupText   string // comma-joined support acts, does not include the main act
	VenueText    string // "<city>, <country>" or a single token
	ListDatetime string // datetime attribute of the listing row, time of day is unreliable
}

// Location returns the parsed city and country of the preview's venue text
func (p Preview) Location() Location {
	return ParseLocation(p.VenueText)
}

// Detail holds what an event's own page adds to its preview
type Detail struct {
	Start    Timestamp
	ImageURL string
}

// Artists lists the acts of an event, headliner first
type Artists struct {
	Headliner string   `json:"headliner"`
	Artist    []string `json:"artist"`
}

// Location is where a venue is
type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Venue represents the place an event happens at
type Venue struct {
	Name     string   `json:"name"`
	Location Location `json:"location"`
}

// Event is the canonical record served to clients.
// Image is always a bare URL string (possibly empty).
type Event struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Artists     Artists `json:"artists"`
	Venue       Venue   `json:"venue"`
	StartDate   string  `json:"startDate"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	ArtistImage string  `json:"artistImage"`
	URL         string  `json:"url"`
}

// NewID returns a fresh random identifier. IDs are never derived from content,
// so two assemblies of the same preview never share one.
func NewID() string {
	return uuid.NewString()
}

// ParseLocation splits a raw "<city>, <country>" string.
// The first token is the city; the last token, when there is more than one,
// is the country.
func ParseLocation(raw string) Location {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{City: UnknownCity, Country: UnknownCountry}
	}

	parts := strings.Split(raw, ", ")
	loc := Location{City: parts[0], Country: UnknownCountry}
	if loc.City == "" {
		loc.City = UnknownCity
	}
	if len(parts) > 1 {
		loc.Country = parts[len(parts)-1]
	}
	return loc
}

// Headliner derives the main act from an event title like "Radiohead - Live".
// Titles without " - " are the headliner themselves.
func Headliner(title string) string {
	if before, _, found := strings.Cut(title, " - "); found {
		return strings.TrimSpace(before)
	}
	return title
}

// SplitLineup splits the comma-joined support acts of a listing row.
// Empty tokens are kept out of the result.
func SplitLineup(lineup string) []string {
	if strings.TrimSpace(lineup) == "" {
		return nil
	}
	var artists []string
	for _, name := range strings.Split(lineup, ",") {
		if name = strings.TrimSpace(name); name != "" {
			artists = append(artists, name)
		}
	}
	return artists
}

// Assemble builds the canonical Event for a preview from its resolved detail
// and the headliner's (or fallback artist's) image.
func Assemble(p Preview, d Detail, artistImage string) *Event {
	headliner := Headliner(p.Title)
	artists := SplitLineup(p.LineupText)
	if len(artists) == 0 {
		artists = []string{headliner}
	}

	loc := p.Location()
	venue := Venue{Name: loc.City, Location: loc}

	return &Event{
		ID:    NewID(),
		Title: p.Title,
		Artists: Artists{
			Headliner: headliner,
			Artist:    artists,
		},
		Venue:       venue,
		StartDate:   d.Start.String(),
		Description: fmt.Sprintf("%s at %s", headliner, venue.Name),
		Image:       d.ImageURL,
		ArtistImage: artistImage,
		URL:         p.CoverURL,
	}
}
