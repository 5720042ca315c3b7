package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrExtractionFailed is returned when no tier produced a positive price
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrBlocked is returned when a fetched page is a block or CAPTCHA page
	ErrBlocked = errors.New("blocked by anti-bot page")

	// ErrNoListingID is returned when a partner URL carries no listing id
	ErrNoListingID = errors.New("no listing id in url")

	// ErrNoPrice is returned by a tier that ran but found no usable price
	ErrNoPrice = errors.New("no usable price found")
)

// HTTPStatusError reports a non-2xx response from an outbound call
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// IsBlockStatus reports whether the status means the request was refused
// rather than failed
func (e *HTTPStatusError) IsBlockStatus() bool {
	return IsBlockStatus(e.StatusCode)
}

// isBlockError reports whether err carries a 403/429 status
func isBlockError(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.IsBlockStatus()
}
