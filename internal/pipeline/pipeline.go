// Package pipeline turns a user's events listing into assembled events.
//
// Rows are resolved in document order. For each row the event page and the
// headliner's artist page are resolved in parallel, then combined into an
// event.Event. A row that cannot be resolved is logged and skipped; a listing
// that cannot be fetched yields no events. FetchEvents never fails.
package pipeline

import (
	"context"
	"iter"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/lastfm-events/internal/event"
	"github.com/pfrederiksen/lastfm-events/internal/logger"
	"github.com/pfrederiksen/lastfm-events/internal/metrics"
	"github.com/pfrederiksen/lastfm-events/internal/resolver"
	"golang.org/x/sync/errgroup"
)

// DefaultStopAfter stops after two events, enough to tell "something is on
// today" apart from "exactly one upcoming event".
const DefaultStopAfter = 2

// Lister fetches listing pages and walks their rows. *scraper.Scraper implements it.
type Lister interface {
	FetchListing(ctx context.Context, username, year string) (*goquery.Document, error)
	Previews(doc *goquery.Document) iter.Seq[event.Preview]
}

// Resolver resolves the secondary fields of a row. *resolver.Resolver implements it.
type Resolver interface {
	EventDetail(ctx context.Context, href string) resolver.Result[event.Detail]
	ArtistImage(ctx context.Context, name string) resolver.Result[string]
}

// Options configures a Pipeline
type Options struct {
	// StopAfter ends a run once this many events are assembled. 0 resolves
	// the whole listing.
	StopAfter int
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// Pipeline assembles events from listings. It is safe for concurrent use.
type Pipeline struct {
	lister    Lister
	resolver  Resolver
	stopAfter int
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// New creates a Pipeline
func New(l Lister, r Resolver, opts Options) *Pipeline {
	if opts.StopAfter < 0 {
		opts.StopAfter = 0
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &Pipeline{
		lister:    l,
		resolver:  r,
		stopAfter: opts.StopAfter,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
}

// StopAfter returns the configured early termination threshold
func (p *Pipeline) StopAfter() int {
	return p.stopAfter
}

// WithStopAfter returns a copy of p stopping after n events
func (p *Pipeline) WithStopAfter(n int) *Pipeline {
	c := *p
	if n < 0 {
		n = 0
	}
	c.stopAfter = n
	return &c
}

// FetchEvents returns the events of a user's listing in listing order. An
// empty year lists upcoming events. The result is never nil.
func (p *Pipeline) FetchEvents(ctx context.Context, username, year string) []*event.Event {
	defer p.metrics.PipelineRun(time.Now())

	log := p.log.With(logger.Fields{"username": username, "year": year})
	events := make([]*event.Event, 0)

	doc, err := p.lister.FetchListing(ctx, username, year)
	p.metrics.Fetch(metrics.KindListing, err)
	if err != nil {
		log.Warn("Listing unavailable", nil, err)
		return events
	}

	skipped := 0
	for preview := range p.lister.Previews(doc) {
		if ctx.Err() != nil {
			log.Warn("Run canceled", logger.Fields{"assembled": len(events)}, ctx.Err())
			break
		}

		evt, err := p.assemble(ctx, preview)
		if err != nil {
			skipped++
			p.metrics.EventSkipped()
			log.Warn("Skipping event", logger.Fields{"title": preview.Title, "url": preview.DetailURL}, err)
			continue
		}

		events = append(events, evt)
		p.metrics.EventAssembled()

		if p.stopAfter > 0 && len(events) >= p.stopAfter {
			break
		}
	}

	log.Info("Resolved events", logger.Fields{"assembled": len(events), "skipped": skipped})
	return events
}

// assemble resolves one row into an event. Only a failed event page fails
// the row; a missing artist image leaves it empty.
func (p *Pipeline) assemble(ctx context.Context, preview event.Preview) (*event.Event, error) {
	var (
		detail resolver.Result[event.Detail]
		image  string
	)

	// Plain group: a failed event page must not cancel an artist lookup
	// other requests may be sharing.
	var g errgroup.Group
	g.Go(func() error {
		detail = p.resolver.EventDetail(ctx, preview.DetailURL)
		return detail.Err
	})
	g.Go(func() error {
		image = p.artistImage(ctx, preview)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return event.Assemble(preview, detail.Value, image), nil
}

// artistImage resolves the headliner's image, falling back to the first
// lineup artist when the headliner has none.
func (p *Pipeline) artistImage(ctx context.Context, preview event.Preview) string {
	headliner := event.Headliner(preview.Title)

	res := p.resolver.ArtistImage(ctx, headliner)
	if res.Outcome == resolver.Failed {
		p.log.Debug("Artist image unavailable", logger.Fields{"artist": headliner, "reason": res.Err.Error()})
	}
	if res.Value != "" {
		return res.Value
	}

	lineup := event.SplitLineup(preview.LineupText)
	if len(lineup) == 0 || lineup[0] == headliner {
		return ""
	}

	res = p.resolver.ArtistImage(ctx, lineup[0])
	if res.Outcome == resolver.Failed {
		p.log.Debug("Artist image unavailable", logger.Fields{"artist": lineup[0], "reason": res.Err.Error()})
	}
	return res.Value
}
