// Package event provides the data model of the events feed and the pure logic
// that turns a scraped listing row into a canonical Event.
//
// It covers location splitting ("<city>, <country>"), headliner derivation
// from titles like "Artist - Tour", support-act splitting, start time
// disambiguation between a detail page's human readable date and its
// unreliable datetime attribute, and selection of the next upcoming event.
// Every assembled Event gets a fresh random ID.
package event
