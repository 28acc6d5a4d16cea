// internal/enrich/fetcher.go
package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FetchConfig bounds a single page retrieval.
type FetchConfig struct {
	// Timeout is the wall-clock deadline for the whole request. The
	// in-flight request is cancelled when it expires.
	Timeout time.Duration

	// MaxBodyBytes caps how much of the response body is read. Bodies over
	// the cap are truncated silently; extraction runs on the prefix.
	MaxBodyBytes int64

	// UserAgents are rotated across requests to look like real browsers.
	UserAgents []string

	// RateLimit and RateBurst bound outbound request frequency across all
	// callers sharing this fetcher.
	RateLimit float64
	RateBurst int
}

// DefaultFetchConfig returns the production fetch limits.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:      10 * time.Second,
		MaxBodyBytes: 300 * 1024,
		RateLimit:    5.0,
		RateBurst:    10,
		UserAgents:   defaultUserAgents(),
	}
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	}
}

// Fetcher performs bounded, single-attempt GETs of validated URLs.
type Fetcher struct {
	config     FetchConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	uaIndex    int
	uaMutex    sync.Mutex
}

// NewFetcher creates a fetcher with the given limits. Zero config fields
// fall back to defaults.
func NewFetcher(config FetchConfig) *Fetcher {
	def := DefaultFetchConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = def.MaxBodyBytes
	}
	if config.RateLimit <= 0 {
		config.RateLimit = def.RateLimit
	}
	if config.RateBurst <= 0 {
		config.RateBurst = def.RateBurst
	}
	if len(config.UserAgents) == 0 {
		config.UserAgents = def.UserAgents
	}

	return &Fetcher{
		config: config,
		httpClient: &http.Client{
			// No Timeout here: the per-request context carries the deadline
			// so cancellation aborts the in-flight request.
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
	}
}

// Fetch issues exactly one GET for the validated URL. There are no retries:
// a failed page is reported to the caller rather than hammered again.
func (f *Fetcher) Fetch(ctx context.Context, target *ValidatedURL) (*Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	f.setRequestHeaders(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %s: %s", ErrTimeout, f.config.Timeout, target.Host)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContentType(contentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}

	// Read one byte past the cap to learn whether truncation happened.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w while reading body: %s", ErrTimeout, target.Host)
		}
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	truncated := int64(len(body)) > f.config.MaxBodyBytes
	if truncated {
		body = body[:f.config.MaxBodyBytes]
	}

	return &Document{
		URL:         target,
		ContentType: contentType,
		HTML:        string(body),
		Truncated:   truncated,
	}, nil
}

// setRequestHeaders makes the request look like a regular browser visit.
func (f *Fetcher) setRequestHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-PT,pt;q=0.9,en;q=0.8")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("DNT", "1")
}

// nextUserAgent returns the next user agent in rotation.
func (f *Fetcher) nextUserAgent() string {
	f.uaMutex.Lock()
	defer f.uaMutex.Unlock()

	ua := f.config.UserAgents[f.uaIndex]
	f.uaIndex = (f.uaIndex + 1) % len(f.config.UserAgents)
	return ua
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml+xml") ||
		strings.Contains(ct, "application/xhtml")
}
