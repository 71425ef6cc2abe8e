package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingURL is returned when no feed URL was entered. No request is made.
	ErrMissingURL = errors.New("feed url is empty")
	// ErrUpstreamRejected is returned when the conversion endpoint answered
	// with a non-ok status.
	ErrUpstreamRejected = errors.New("conversion endpoint rejected the feed")
	// ErrNetworkFailure is returned when no usable response was received.
	ErrNetworkFailure = errors.New("feed request failed")
)

// Error kinds as exposed over the JSON API.
const (
	KindMissingURL       = "missing_url"
	KindUpstreamRejected = "upstream_rejected"
	KindNetworkFailure   = "network_failure"
	KindUnknown          = "unknown"
)

// UpstreamError carries the envelope details of a rejected conversion.
type UpstreamError struct {
	Status     string
	Message    string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %q (http %d)", ErrUpstreamRejected, e.Status, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %q (http %d): %s", ErrUpstreamRejected, e.Status, e.StatusCode, e.Message)
}

// Is reports UpstreamError as ErrUpstreamRejected.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamRejected
}

// Kind classifies err into one of the Kind* constants.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrMissingURL):
		return KindMissingURL
	case errors.Is(err, ErrUpstreamRejected):
		return KindUpstreamRejected
	case errors.Is(err, ErrNetworkFailure):
		return KindNetworkFailure
	default:
		return KindUnknown
	}
}

// UserMessage returns the message shown to the user for err.
func UserMessage(err error) string {
	switch Kind(err) {
	case KindMissingURL:
		return "Please enter a RSS feed URL"
	case KindUpstreamRejected:
		return "Could not fetch RSS feed. Please check the URL and try again."
	default:
		return "An error occurred while fetching the feed."
	}
}
