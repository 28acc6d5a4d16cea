package api

import (
	"time"
)

// EnrichRequest is the payload accepted by the enrichment endpoint.
type EnrichRequest struct {
	URL string `json:"url"`
}

// Product is the normalized result of enriching a product page.
//
// Price is always a non-negative decimal string with exactly two fraction
// digits ("0.00" when nothing was found), and Title always carries a
// placeholder rather than being empty, so clients never need null checks
// on the core fields.
type Product struct {
	Title        string `json:"title"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	Image        string `json:"image"`
	Description  string `json:"description,omitempty"`
	Category     string `json:"category,omitempty"`
	Rating       string `json:"rating,omitempty"`
	Availability string `json:"availability,omitempty"`

	// Error is non-empty when the result is degraded: the fetch or a later
	// stage failed and the remaining fields carry their documented defaults.
	Error string `json:"error,omitempty"`
}

// Degraded reports whether the product carries placeholder data because the
// underlying fetch failed.
func (p *Product) Degraded() bool {
	return p.Error != ""
}

// HealthStatus represents the health of the backend service.
type HealthStatus struct {
	Status    string          `json:"status"` // healthy, degraded, unhealthy
	Version   string          `json:"version"`
	Uptime    time.Duration   `json:"uptime"`
	Checks    map[string]bool `json:"checks"`
	Timestamp time.Time       `json:"timestamp"`
}

// ErrorResponse is returned for hard rejections (invalid or untrusted URLs).
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes surfaced on hard rejections.
const (
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeUntrustedDomain  = "UNTRUSTED_DOMAIN"
	ErrCodeSuspiciousTarget = "SUSPICIOUS_TARGET"
	ErrCodeRateLimited      = "RATE_LIMITED"
)
