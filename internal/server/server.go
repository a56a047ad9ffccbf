// Package server exposes the events pipeline over HTTP.
//
//	GET /api/events/{username}[?year=YYYY][&format=json|ics][&next=true]
//	GET /healthz
//	GET /metrics
//
// An empty result is a 200 with an empty list. Only unexpected failures
// (recovered panics) become a 500, with the same {"error", "events"} envelope.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pfrederiksen/lastfm-events/internal/calendar"
	"github.com/pfrederiksen/lastfm-events/internal/event"
	"github.com/pfrederiksen/lastfm-events/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EventSource produces the events of a listing. *pipeline.Pipeline implements it.
type EventSource interface {
	FetchEvents(ctx context.Context, username, year string) []*event.Event
}

// Options configures a Server
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AllowOrigin  string

	// Gatherer backs /metrics; nil leaves the endpoint out
	Gatherer prometheus.Gatherer
	Logger   *logger.Logger
	Now      func() time.Time
}

// Server serves the events API
type Server struct {
	events EventSource
	opts   Options
	log    *logger.Logger
}

// eventsResponse is the envelope of every /api/events response
type eventsResponse struct {
	Error  string         `json:"error,omitempty"`
	Events []*event.Event `json:"events"`
}

// New creates a Server
func New(events EventSource, opts Options) *Server {
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{events: events, opts: opts, log: opts.Logger}
}

// Handler returns the routed and wrapped handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events/{username}", s.handleEvents)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return s.logRequests(s.cors(s.recoverPanics(mux)))
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	errs := make(chan error, 1)
	go func() { errs <- srv.ListenAndServe() }()
	s.log.Info("Serving events API", logger.Fields{"addr": s.opts.Addr})

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	query := r.URL.Query()

	year := query.Get("year")
	if year != "" && !validYear(year) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid year '%s': must be four digits", year))
		return
	}

	format := query.Get("format")
	switch format {
	case "", "json", "ics":
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format '%s': must be json or ics", format))
		return
	}

	next := false
	if v := query.Get("next"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid next '%s': must be true or false", v))
			return
		}
		next = b
	}

	events := s.events.FetchEvents(r.Context(), username, year)
	if next {
		events = event.OnlyNext(events, s.opts.Now())
	}

	if format == "ics" {
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.ics"`, username))
		_, _ = w.Write([]byte(calendar.GenerateICS(events, s.opts.Now())))
		return
	}

	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

func validYear(year string) bool {
	if len(year) != 4 {
		return false
	}
	for _, c := range year {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body eventsResponse) {
	if body.Events == nil {
		body.Events = []*event.Event{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, eventsResponse{Error: msg})
}
