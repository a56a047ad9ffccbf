// Package resolver resolves the secondary fields of listing rows (event
// start times, event images and artist images) by fetching the pages they
// live on, memoizing every answer in an injected cache.Store.
//
// Concurrent first lookups of one key share a single fetch.
package resolver

import (
	"context"

	"github.com/pfrederiksen/lastfm-events/internal/cache"
	"github.com/pfrederiksen/lastfm-events/internal/event"
	"github.com/pfrederiksen/lastfm-events/internal/logger"
	"github.com/pfrederiksen/lastfm-events/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Cache names used in metrics and logs
const (
	DetailCache = "details"
	ImageCache  = "artist_images"
)

// Outcome classifies a resolution
type Outcome int

const (
	Found  Outcome = iota // a value was resolved
	Empty                 // resolution succeeded but there is nothing to show
	Failed                // resolution failed, Err says why
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Empty:
		return "empty"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result carries a resolved value and how it was obtained. Callers decide
// how to recover from a Failed outcome.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

// Source fetches the pages a Resolver reads. *scraper.Scraper implements it.
type Source interface {
	Absolute(href string) string
	FetchDetail(ctx context.Context, detailURL string) (event.Detail, error)
	FetchArtistImage(ctx context.Context, name string) (string, error)
}

// Resolver memoizes event details by absolute URL and artist images by name.
// It is safe for concurrent use.
type Resolver struct {
	source  Source
	details cache.Store[event.Detail]
	images  cache.Store[string]
	metrics *metrics.Metrics
	flights singleflight.Group
}

// New creates a Resolver. The stores outlive it and may be shared. m may be nil.
func New(source Source, details cache.Store[event.Detail], images cache.Store[string], m *metrics.Metrics) *Resolver {
	return &Resolver{
		source:  source,
		details: details,
		images:  images,
		metrics: m,
	}
}

// EventDetail resolves the start time and image of an event page. A relative
// href is made absolute first; the absolute URL is both the fetch target and
// the cache key.
func (r *Resolver) EventDetail(ctx context.Context, href string) Result[event.Detail] {
	key := r.source.Absolute(href)

	v, err := resolve(ctx, r, DetailCache, r.details, key, func(ctx context.Context) (event.Detail, error) {
		d, err := r.source.FetchDetail(ctx, key)
		r.metrics.Fetch(metrics.KindDetail, err)
		return d, err
	})
	if err != nil {
		return Result[event.Detail]{Outcome: Failed, Err: err}
	}
	return Result[event.Detail]{Value: v, Outcome: Found}
}

// ArtistImage resolves the profile image of an artist. Unnamed and unknown
// artists resolve to Empty without any fetch. The value is "" unless the
// outcome is Found.
func (r *Resolver) ArtistImage(ctx context.Context, name string) Result[string] {
	if name == "" || name == event.UnknownArtist {
		return Result[string]{Outcome: Empty}
	}

	v, err := resolve(ctx, r, ImageCache, r.images, name, func(ctx context.Context) (string, error) {
		image, err := r.source.FetchArtistImage(ctx, name)
		r.metrics.Fetch(metrics.KindArtist, err)
		return image, err
	})
	if err != nil {
		return Result[string]{Outcome: Failed, Err: err}
	}
	if v == "" {
		return Result[string]{Outcome: Empty}
	}
	return Result[string]{Value: v, Outcome: Found}
}

// resolve serves key from store, or runs fetch once for all concurrent
// callers and stores its value. Failed fetches are not cached.
//
// The shared fetch is detached from the caller that started it, so one
// canceled request never fails the others waiting on the same key. Each
// caller still stops waiting when its own ctx is done.
func resolve[V any](ctx context.Context, r *Resolver, name string, store cache.Store[V], key string, fetch func(context.Context) (V, error)) (V, error) {
	var zero V

	if v, ok := lookup(store, name, key); ok {
		r.metrics.CacheLookup(name, true)
		return v, nil
	}
	r.metrics.CacheLookup(name, false)

	shared := context.WithoutCancel(ctx)
	ch := r.flights.DoChan(name+"|"+key, func() (interface{}, error) {
		// A flight for this key may have completed since the lookup above
		if v, ok := lookup(store, name, key); ok {
			return v, nil
		}

		v, err := fetch(shared)
		if err != nil {
			return nil, err
		}

		if err := store.Set(key, v); err != nil {
			logger.Warn("Cache write failed", logger.Fields{"cache": name, "key": key}, err)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// lookup reads key from store. Read errors count as a miss.
func lookup[V any](store cache.Store[V], name, key string) (V, bool) {
	v, ok, err := store.Get(key)
	if err != nil {
		logger.Warn("Cache read failed", logger.Fields{"cache": name, "key": key}, err)
		return v, false
	}
	return v, ok
}
