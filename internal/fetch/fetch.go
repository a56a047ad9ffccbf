package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	UserAgent  = "lastfm-events/1.0 (github.com/pfrederiksen/lastfm-events)"
	Timeout    = 15 * time.Second
	MaxRetries = 2
	Backoff    = 250 * time.Millisecond
	MaxBackoff = 2 * time.Second
)

// DocumentFetcher fetches a URL and returns its parsed HTML document
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Options configures a Fetcher. Zero values fall back to the package defaults.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// Fetcher is a DocumentFetcher backed by one pooled http.Client.
// It is safe for concurrent use and meant to be shared by every collaborator.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
}

// New creates a Fetcher with its own connection pool
func New(opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = Timeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = Backoff
	}
	if opts.MaxBackoff < opts.Backoff {
		opts.MaxBackoff = opts.Backoff
	}

	return &Fetcher{
		client:     newHTTPClient(opts.Timeout),
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		maxBackoff: opts.MaxBackoff,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Fetch does an HTTP GET on the given URL and parses the response as HTML.
// Transport failures and 5xx/429 responses are retried with exponential
// backoff; every failure is returned as an *Error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := retry(ctx, f.maxRetries+1, f.backoff, f.maxBackoff, func() error {
		var err error
		doc, err = f.fetchOnce(ctx, url)
		return err
	})
	if err != nil {
		var fetchErr *Error
		if errors.As(err, &fetchErr) {
			return nil, fetchErr
		}
		return nil, &Error{URL: url, Err: err}
	}
	return doc, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, permanent(&Error{URL: url, Err: fmt.Errorf("creating request: %w", err)})
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &Error{URL: url, StatusCode: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, permanent(statusErr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, permanent(&Error{URL: url, Err: fmt.Errorf("parsing HTML: %w", err)})
	}
	return doc, nil
}

// Error is a failed fetch: a transport failure, a timeout, an unparseable
// body, or a non-2xx status.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching '%s': unexpected status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching '%s': %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports whether the upstream answered 404
func (e *Error) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
