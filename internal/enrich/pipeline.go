// internal/enrich/pipeline.go
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wishlink/wishlink/internal/monitoring"
	"github.com/wishlink/wishlink/internal/utils"
	"github.com/wishlink/wishlink/pkg/api"
)

// Enricher coordinates the full pipeline: validate, fetch, sanitize, extract,
// classify. It is safe for concurrent use.
type Enricher struct {
	validator  *Validator
	fetcher    *Fetcher
	classifier *Classifier
	logger     utils.Logger
	metrics    *monitoring.Metrics
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithLogger sets the logger used for per-request diagnostics.
func WithLogger(logger utils.Logger) Option {
	return func(e *Enricher) { e.logger = logger }
}

// WithMetrics enables pipeline instrumentation.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(e *Enricher) { e.metrics = metrics }
}

// NewEnricher wires the pipeline from a trust policy and fetch limits.
func NewEnricher(policy TrustPolicy, fetch FetchConfig, opts ...Option) *Enricher {
	e := &Enricher{
		validator:  NewValidator(policy),
		fetcher:    NewFetcher(fetch),
		classifier: NewClassifier(nil),
		logger:     utils.NewLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate exposes URL validation without fetching, for callers that want
// strict pre-checks or canonical URLs for cache lookups.
func (e *Enricher) Validate(rawURL string) (*ValidatedURL, error) {
	return e.validator.Validate(rawURL)
}

// Enrich resolves a raw URL into a product.
//
// Validation failures are returned as errors and nothing is fetched. Fetch
// and content failures come back as a degraded product with the Error field
// set, never as an error: once a URL has passed the trust policy the caller
// always receives a well-formed object. Missing fields inside a fetched page
// are not failures at all; they resolve to defaults.
func (e *Enricher) Enrich(ctx context.Context, rawURL string) (*api.Product, error) {
	start := time.Now()

	target, err := e.validator.Validate(rawURL)
	if err != nil {
		e.observe("rejected", start)
		return nil, err
	}

	log := e.logger.WithField("host", target.Host)

	doc, err := e.fetcher.Fetch(ctx, target)
	if err != nil {
		log.Warnf("fetch failed: %v", err)
		e.observe("degraded", start)
		return degradedProduct(err), nil
	}
	if doc.Truncated {
		log.Debugf("body truncated at %d bytes", len(doc.HTML))
	}

	product, err := e.extract(doc)
	if err != nil {
		log.Warnf("extraction failed: %v", err)
		e.observe("degraded", start)
		return degradedProduct(err), nil
	}

	log.Debugf("enriched %q in %s", product.Title, time.Since(start))
	e.observe("ok", start)
	return product, nil
}

// extract runs sanitization and the field cascades over a fetched document.
func (e *Enricher) extract(doc *Document) (*api.Product, error) {
	sanitized := Sanitize(doc.HTML)

	ex, err := newExtraction(sanitized, doc.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	title := extractTitle(ex)
	description := extractDescription(ex)
	price, cur := extractPrice(ex)

	return &api.Product{
		Title:        title,
		Price:        price,
		Currency:     cur,
		Image:        extractImage(ex),
		Description:  description,
		Category:     e.classifier.Classify(title, description),
		Rating:       extractRating(ex),
		Availability: extractAvailability(ex),
	}, nil
}

func (e *Enricher) observe(outcome string, start time.Time) {
	if e.metrics != nil {
		e.metrics.ObserveEnrichment(outcome, time.Since(start))
	}
}

// degradedProduct builds the placeholder object returned when a trusted URL
// could not be fetched or parsed. Every field carries its deterministic
// fallback; the Error string is the only signal of what went wrong.
func degradedProduct(cause error) *api.Product {
	return &api.Product{
		Title:        DegradedTitle,
		Price:        DefaultPrice,
		Currency:     DefaultCurrency,
		Availability: DefaultAvailability,
		Error:        errorLabel(cause),
	}
}

// errorLabel renders a fetch failure as the short class names exposed to
// clients.
func errorLabel(err error) string {
	var httpErr *HTTPError
	switch {
	case errors.Is(err, ErrTimeout):
		return "Timeout"
	case errors.As(err, &httpErr):
		return fmt.Sprintf("HttpError: %d", httpErr.StatusCode)
	case errors.Is(err, ErrUnsupportedContentType):
		return "UnsupportedContentType"
	default:
		return "FetchFailed: " + err.Error()
	}
}
