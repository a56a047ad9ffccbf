package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pfrederiksen/lastfm-events/internal/event"
	"github.com/pfrederiksen/lastfm-events/internal/logger"
	"github.com/pfrederiksen/lastfm-events/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var now = time.Date(2099, 8, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu     sync.Mutex
	events []*event.Event
	panic  bool
	calls  []string
}

func (f *fakeSource) FetchEvents(ctx context.Context, username, year string) []*event.Event {
	f.mu.Lock()
	f.calls = append(f.calls, username+"/"+year)
	f.mu.Unlock()
	if f.panic {
		panic("listing markup changed")
	}
	return f.events
}

func sampleEvents() []*event.Event {
	return []*event.Event{
		{ID: "a", Title: "Bicep - Chroma Tour", StartDate: "2099-10-01T21:00:00+01:00"},
		{ID: "b", Title: "Radiohead - Live", StartDate: "2099-08-21T19:30:00", Description: "Radiohead at London"},
		{ID: "c", Title: "Old Show", StartDate: "2001-01-01T20:00:00"},
	}
}

func newTestServer(src EventSource, opts Options) *Server {
	opts.Logger = logger.New(logger.LevelError, &bytes.Buffer{})
	opts.Now = func() time.Time { return now }
	return New(src, opts)
}

type envelope struct {
	Error  string         `json:"error"`
	Events []*event.Event `json:"events"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%q)", err, rec.Body.String())
	}
	return body
}

func TestHandleEvents(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		events     []*event.Event
		wantStatus int
		wantIDs    []string
		wantCall   string
		wantError  bool
	}{
		{
			name:       "upcoming events",
			path:       "/api/events/rj",
			events:     sampleEvents(),
			wantStatus: http.StatusOK,
			wantIDs:    []string{"a", "b", "c"},
			wantCall:   "rj/",
		},
		{
			name:       "events of a year",
			path:       "/api/events/rj?year=2024",
			events:     sampleEvents(),
			wantStatus: http.StatusOK,
			wantIDs:    []string{"a", "b", "c"},
			wantCall:   "rj/2024",
		},
		{
			name:       "no events is not an error",
			path:       "/api/events/nobody",
			wantStatus: http.StatusOK,
			wantIDs:    []string{},
			wantCall:   "nobody/",
		},
		{
			name:       "next event only",
			path:       "/api/events/rj?next=true",
			events:     sampleEvents(),
			wantStatus: http.StatusOK,
			wantIDs:    []string{"b"},
			wantCall:   "rj/",
		},
		{
			name:       "next with nothing upcoming",
			path:       "/api/events/rj?next=1",
			events:     sampleEvents()[2:],
			wantStatus: http.StatusOK,
			wantIDs:    []string{},
			wantCall:   "rj/",
		},
		{
			name:       "malformed year",
			path:       "/api/events/rj?year=24",
			wantStatus: http.StatusBadRequest,
			wantIDs:    []string{},
			wantError:  true,
		},
		{
			name:       "unknown format",
			path:       "/api/events/rj?format=xml",
			wantStatus: http.StatusBadRequest,
			wantIDs:    []string{},
			wantError:  true,
		},
		{
			name:       "malformed next",
			path:       "/api/events/rj?next=soon",
			wantStatus: http.StatusBadRequest,
			wantIDs:    []string{},
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{events: tt.events}
			rec := httptest.NewRecorder()

			newTestServer(src, Options{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			body := decode(t, rec)
			if body.Events == nil {
				t.Fatal("events should always be a list")
			}
			var ids []string
			for _, e := range body.Events {
				ids = append(ids, e.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("ids = %q, want %q", ids, tt.wantIDs)
			}
			if (body.Error != "") != tt.wantError {
				t.Errorf("error = %q, wantError %v", body.Error, tt.wantError)
			}

			if tt.wantCall == "" {
				if len(src.calls) != 0 {
					t.Errorf("pipeline ran for a rejected request: %q", src.calls)
				}
			} else if len(src.calls) != 1 || src.calls[0] != tt.wantCall {
				t.Errorf("calls = %q, want [%s]", src.calls, tt.wantCall)
			}
		})
	}
}

func TestHandleEvents_ICS(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeSource{events: sampleEvents()}, Options{}).
		Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/rj?format=ics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := strings.Count(rec.Body.String(), "BEGIN:VEVENT"); got != 3 {
		t.Errorf("got %d VEVENTs, want 3", got)
	}
}

func TestHandleEvents_Panic(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeSource{panic: true}, Options{}).
		Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/rj", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decode(t, rec)
	if body.Error != "listing markup changed" {
		t.Errorf("error = %q", body.Error)
	}
	if body.Events == nil || len(body.Events) != 0 {
		t.Errorf("events = %v, want an empty list", body.Events)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowOrigin string
		method      string
		wantStatus  int
		wantOrigin  string
	}{
		{"default origin", "", http.MethodGet, http.StatusOK, "*"},
		{"configured origin", "https://gigs.example.com", http.MethodGet, http.StatusOK, "https://gigs.example.com"},
		{"preflight", "", http.MethodOptions, http.StatusNoContent, "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{}
			rec := httptest.NewRecorder()
			newTestServer(src, Options{AllowOrigin: tt.allowOrigin}).
				Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/events/rj", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.method == http.MethodOptions && len(src.calls) != 0 {
				t.Error("preflight should not run the pipeline")
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.EventAssembled()

	handler := newTestServer(&fakeSource{}, Options{Gatherer: reg}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("/healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `lastfm_events_events_total{result="assembled"} 1`) {
		t.Errorf("/metrics missing events counter:\n%s", rec.Body.String())
	}
}

func TestMetrics_Disabled(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeSource{}, Options{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("/metrics status = %d, want 404 without a gatherer", rec.Code)
	}
}

func TestRun_Shutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving a port: %v", err)
	}
	addr := l.Addr().String()
	l.Close() // nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newTestServer(&fakeSource{events: sampleEvents()}, Options{Addr: addr}).Run(ctx)
	}()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close() // nolint:errcheck

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil after shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
