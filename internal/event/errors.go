package event

import "fmt"

// ParseError reports an element or attribute that was missing or malformed
// in a fetched page.
type ParseError struct {
	URL   string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parsing %s", e.Field)
	if e.URL != "" {
		msg += fmt.Sprintf(" from '%s'", e.URL)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + ": not found"
}

func (e *ParseError) Unwrap() error { return e.Err }

// DateError reports that neither the textual time of day nor the datetime
// attribute of an event page yielded a start time.
type DateError struct {
	Text string
	Attr string
	Err  error
}

func (e *DateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolving start from text %q and attribute %q: %v", e.Text, e.Attr, e.Err)
	}
	return fmt.Sprintf("resolving start from text %q and attribute %q", e.Text, e.Attr)
}

func (e *DateError) Unwrap() error { return e.Err }
