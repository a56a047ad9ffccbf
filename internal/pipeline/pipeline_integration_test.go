package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pfrederiksen/lastfm-events/internal/cache"
	"github.com/pfrederiksen/lastfm-events/internal/event"
	"github.com/pfrederiksen/lastfm-events/internal/fetch"
	"github.com/pfrederiksen/lastfm-events/internal/resolver"
	"github.com/pfrederiksen/lastfm-events/internal/scraper"
)

// siteServer serves the listing fixture and counts hits per path
func siteServer(t *testing.T, hits map[string]*atomic.Int32) *httptest.Server {
	t.Helper()
	routes := map[string]string{
		"/user/rj/events/":                  "listing.html",
		"/event/4001+Radiohead+at+O2+Arena": "detail.html",
		"/event/4002+Arcade+Fire":           "detail_multiday.html",
		"/event/4004+Bicep":                 "detail.html",
		"/music/Radiohead":                  "artist.html",
	}
	for path := range routes {
		hits[path] = &atomic.Int32{}
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		hits[r.URL.Path].Add(1)
		data, err := os.ReadFile("../../testdata/fixtures/" + name)
		if err != nil {
			t.Errorf("reading fixture %s: %v", name, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(data)
	}))
}

func TestPipeline_EndToEnd(t *testing.T) {
	hits := map[string]*atomic.Int32{}
	server := siteServer(t, hits)
	defer server.Close()

	s, err := scraper.New(fetch.New(fetch.Options{Timeout: 2 * time.Second, MaxRetries: 0}), server.URL)
	if err != nil {
		t.Fatalf("scraper.New() failed: %v", err)
	}
	r := resolver.New(s, cache.NewMemoryStore[event.Detail](), cache.NewMemoryStore[string](), nil)
	p := New(s, r, Options{StopAfter: 0, Logger: quietLogger()})

	events := p.FetchEvents(context.Background(), "rj", "")
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	radiohead := events[0]
	if radiohead.StartDate != "2099-08-21T19:30:00" {
		t.Errorf("StartDate = %q", radiohead.StartDate)
	}
	if radiohead.ArtistImage != "https://lastfm.freetls.fastly.net/i/u/ar0/radiohead.jpg" {
		t.Errorf("ArtistImage = %q", radiohead.ArtistImage)
	}
	if radiohead.URL != server.URL+"/event/4001+Radiohead+at+O2+Arena" {
		t.Errorf("URL = %q", radiohead.URL)
	}
	if got := radiohead.Artists.Artist; len(got) != 2 || got[0] != "Caribou" {
		t.Errorf("Artists = %q", got)
	}

	arcade := events[1]
	if arcade.StartDate != "2099-08-21T20:00:00+00:00" {
		t.Errorf("multi-day StartDate = %q", arcade.StartDate)
	}
	if arcade.Venue.Location.Country != event.UnknownCountry {
		t.Errorf("Country = %q", arcade.Venue.Location.Country)
	}

	if bicep := events[2]; bicep.Venue.Name != event.UnknownCity {
		t.Errorf("Venue.Name = %q, want %q", bicep.Venue.Name, event.UnknownCity)
	}

	// A second run is served from the caches
	p.FetchEvents(context.Background(), "rj", "")
	for _, path := range []string{"/event/4001+Radiohead+at+O2+Arena", "/music/Radiohead"} {
		if n := hits[path].Load(); n != 1 {
			t.Errorf("%s fetched %d times, want 1", path, n)
		}
	}
	if n := hits["/user/rj/events/"].Load(); n != 2 {
		t.Errorf("listing fetched %d times, want 2 (listings are never cached)", n)
	}
}
