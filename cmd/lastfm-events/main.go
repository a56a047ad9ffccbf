// Command lastfm-events serves and prints normalized Last.fm gig listings.
//
// Usage:
//
//	lastfm-events serve [--config config.yml] [--addr :5000]
//	lastfm-events events <username> [--year 2024] [--format text|json|ics] [--next]
package main

import "github.com/pfrederiksen/lastfm-events/internal/cli"

func main() {
	cli.Execute()
}
