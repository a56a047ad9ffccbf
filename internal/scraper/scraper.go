package scraper

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/lastfm-events/internal/event"
	"github.com/pfrederiksen/lastfm-events/internal/fetch"
	"github.com/pfrederiksen/lastfm-events/internal/logger"
)

const Origin = "https://www.last.fm"

// Listing page selectors
const (
	rowSelector       = "tr.events-list-item"
	titleSelector     = ".events-list-item-event--title"
	detailSelector    = ".events-list-item-event--title a"
	coverSelector     = "a.events-list-cover-link"
	lineupSelector    = ".events-list-item-event--lineup"
	venueSelector     = ".events-list-item-venue"
	listTimeSelector  = "time"
	dateSelector      = "p.qa-event-date span"
	multiDateSelector = "p.qa-event-date strong"
	eventImgSelector  = ".event-expanded-image"
	artistImgSelector = ".header-new-background-image"
)

// Scraper knows where things live on the source site and how to read them
type Scraper struct {
	fetcher fetch.DocumentFetcher
	origin  *url.URL
}

// New creates a Scraper reading pages through f. An empty origin means Origin.
func New(f fetch.DocumentFetcher, origin string) (*Scraper, error) {
	if origin == "" {
		origin = Origin
	}
	u, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing origin '%s': %w", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("origin '%s' must be an absolute URL", origin)
	}
	return &Scraper{fetcher: f, origin: u}, nil
}

// ListingURL returns the events listing of a user. An empty year lists
// upcoming events.
func (s *Scraper) ListingURL(username, year string) string {
	return fmt.Sprintf("%s/user/%s/events/%s", s.origin, url.PathEscape(username), year)
}

// ArtistURL returns the profile page of an artist
func (s *Scraper) ArtistURL(name string) string {
	return fmt.Sprintf("%s/music/%s", s.origin, url.PathEscape(name))
}

// Absolute resolves a link found on the site against its origin
func (s *Scraper) Absolute(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return s.origin.ResolveReference(ref).String()
}

// FetchListing fetches a user's events listing
func (s *Scraper) FetchListing(ctx context.Context, username, year string) (*goquery.Document, error) {
	return s.fetcher.Fetch(ctx, s.ListingURL(username, year))
}

// FetchDetail fetches an event page and resolves its start time and image.
// detailURL must already be absolute.
func (s *Scraper) FetchDetail(ctx context.Context, detailURL string) (event.Detail, error) {
	doc, err := s.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		return event.Detail{}, err
	}
	return ParseDetail(doc, detailURL)
}

// FetchArtistImage fetches an artist's profile page and returns its header
// image. A page without one yields "".
func (s *Scraper) FetchArtistImage(ctx context.Context, name string) (string, error) {
	doc, err := s.fetcher.Fetch(ctx, s.ArtistURL(name))
	if err != nil {
		return "", err
	}
	return ParseArtistImage(doc), nil
}

// Previews yields the rows of a listing document in document order.
// Rows without a title or a detail link are skipped.
func (s *Scraper) Previews(doc *goquery.Document) iter.Seq[event.Preview] {
	return func(yield func(event.Preview) bool) {
		rows := doc.Find(rowSelector)
		for i := range rows.Nodes {
			row := listingRow{rows.Eq(i)}
			p, err := row.Preview(s)
			if err != nil {
				logger.Debug("Skipping listing row", logger.Fields{"row": i + 1, "reason": err.Error()})
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

// ExtractPreviews collects every well-formed row of a listing document
func (s *Scraper) ExtractPreviews(doc *goquery.Document) []event.Preview {
	previews := make([]event.Preview, 0)
	for p := range s.Previews(doc) {
		previews = append(previews, p)
	}
	return previews
}

// A listingRow is the table row for a single event on a user's listing.
type listingRow struct{ *goquery.Selection }

func (row listingRow) Preview(s *Scraper) (event.Preview, error) {
	title := text(row.Find(titleSelector).First())
	if title == "" {
		return event.Preview{}, &event.ParseError{Field: "title"}
	}

	href, _ := row.Find(detailSelector).First().Attr("href")
	if strings.TrimSpace(href) == "" {
		return event.Preview{}, &event.ParseError{Field: "detail link"}
	}

	detailURL := s.Absolute(href)
	coverURL := detailURL
	if cover, ok := row.Find(coverSelector).First().Attr("href"); ok && strings.TrimSpace(cover) != "" {
		coverURL = s.Absolute(cover)
	}

	listTime, _ := row.Find(listTimeSelector).First().Attr("datetime")

	return event.Preview{
		Title:        title,
		DetailURL:    detailURL,
		CoverURL:     coverURL,
		LineupText:   text(row.Find(lineupSelector).First()),
		VenueText:    text(row.Find(venueSelector).First()),
		ListDatetime: listTime,
	}, nil
}

// ParseDetail reads the start time and image of an event page.
// Multi-date events have no span, so the first strong element is used instead.
func ParseDetail(doc *goquery.Document, pageURL string) (event.Detail, error) {
	dateEl := doc.Find(dateSelector).First()
	if dateEl.Length() == 0 {
		dateEl = doc.Find(multiDateSelector).First()
	}
	if dateEl.Length() == 0 {
		return event.Detail{}, &event.ParseError{URL: pageURL, Field: "event date"}
	}

	attr, ok := dateEl.Attr("content")
	if !ok {
		attr, ok = dateEl.Attr("datetime")
	}
	if !ok {
		return event.Detail{}, &event.ParseError{URL: pageURL, Field: "event date attribute"}
	}

	start, err := event.ResolveStart(text(dateEl), attr)
	if err != nil {
		return event.Detail{}, fmt.Errorf("event page '%s': %w", pageURL, err)
	}

	image, _ := doc.Find(eventImgSelector).First().Attr("src")

	return event.Detail{Start: start, ImageURL: strings.TrimSpace(image)}, nil
}

// ParseArtistImage reads the header background image of an artist page
func ParseArtistImage(doc *goquery.Document) string {
	image, _ := doc.Find(artistImgSelector).First().Attr("content")
	return strings.TrimSpace(image)
}

// text returns the visible text of a selection with whitespace collapsed
func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
