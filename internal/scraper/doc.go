// Package scraper provides the site-specific reading of Last.fm pages.
//
// It builds listing, event and artist URLs against a configurable origin,
// extracts event previews from a user's events listing, and reads the start
// time and image of an event page and the header image of an artist page.
// Pages are obtained through a fetch.DocumentFetcher.
package scraper
