// Package fetch provides the HTTP side of scraping: a pooled, timeout-bounded
// client that GETs pages and parses them into goquery documents.
//
// One Fetcher is constructed at startup and passed to every collaborator that
// needs pages. Failures come back as *Error, which carries the URL and, for
// non-2xx answers, the status code.
package fetch
