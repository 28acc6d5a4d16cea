// internal/enrich/types.go

// Package enrich implements the product-metadata enrichment engine: trust
// policy validation of caller-supplied URLs, bounded HTML retrieval,
// sanitization, and a priority-ordered extraction pipeline that resolves
// title, price, currency, image, rating, availability, description and
// category from arbitrary retailer markup.
package enrich

import (
	"errors"
	"fmt"
)

// ValidatedURL is a normalized fetch target whose host has passed the trust
// policy. Instances are created per request and discarded after use.
type ValidatedURL struct {
	// URL is the normalized absolute URL (scheme forced to http/https,
	// lowercased host).
	URL string

	// Canonical is the URL with tracking and affiliate query parameters
	// stripped. It is the stable cache key for enrichment results.
	Canonical string

	// Host is the lowercased hostname without port.
	Host string

	// Origin is scheme://host[:port], used to resolve root-relative links.
	Origin string
}

// Document is a fetched page bounded in size and time. It is never retained
// beyond the extraction that consumes it.
type Document struct {
	URL         *ValidatedURL
	ContentType string
	HTML        string
	Truncated   bool
}

// Field defaults applied when no extraction strategy yields a candidate.
const (
	DefaultTitle        = "Title not found"
	DefaultPrice        = "0.00"
	DefaultCurrency     = "EUR"
	DefaultAvailability = "unknown"

	// DegradedTitle is the placeholder used when the fetch itself failed.
	DegradedTitle = "Could not fetch title"
)

// Validation errors. These are terminal: no fetch is attempted.
var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrUntrustedDomain  = errors.New("untrusted domain")
	ErrSuspiciousTarget = errors.New("suspicious target")
)

// Fetch errors. These are caught at the pipeline boundary and converted into
// a degraded result carrying an error message.
var (
	ErrTimeout                = errors.New("fetch timed out")
	ErrUnsupportedContentType = errors.New("unsupported content type")
)

// HTTPError reports a non-2xx response from the target site.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// IsValidationError reports whether err belongs to the pre-fetch validation
// taxonomy, i.e. whether it should be surfaced as a hard rejection instead of
// a degraded result.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrUntrustedDomain) ||
		errors.Is(err, ErrSuspiciousTarget)
}
