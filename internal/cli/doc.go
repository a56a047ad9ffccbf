// Package cli implements the command-line interface for lastfm-events.
//
// The cli package provides the Cobra-based CLI with two commands: serve runs
// the HTTP events API, and events prints one user's events as text, JSON or
// iCalendar. Both build the same fetcher, caches, resolver and pipeline from
// the YAML configuration.
package cli
