// internal/enrich/pipeline_test.go
package enrich

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func testEnricher() *Enricher {
	return NewEnricher(TrustPolicy{}, DefaultFetchConfig())
}

func testDocument(html string) *Document {
	return &Document{
		URL: &ValidatedURL{
			URL:       "https://www.amazon.pt/dp/B0TEST",
			Canonical: "https://www.amazon.pt/dp/B0TEST",
			Host:      "www.amazon.pt",
			Origin:    "https://www.amazon.pt",
		},
		ContentType: "text/html",
		HTML:        html,
	}
}

// Structured data must win over meta tags even though sanitization runs
// first: the JSON-LD script block survives the sanitizer.
func TestEnricher_StructuredDataBeatsMetaTags(t *testing.T) {
	page := `<html><head>
		<script>trackEverything()</script>
		<script type="application/ld+json">{
			"@type": "Product",
			"name": "Ld Widget",
			"description": "From structured data",
			"image": "https://cdn.x.com/ld.jpg",
			"offers": {"price": "42.00", "priceCurrency": "EUR"}
		}</script>
		<meta property="og:title" content="OG Widget">
		<meta property="og:image" content="https://cdn.x.com/og.jpg">
		<meta property="product:price:amount" content="99.99">
		</head><body onload="hijack()"></body></html>`

	product, err := testEnricher().extract(testDocument(page))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if product.Title != "Ld Widget" {
		t.Errorf("title = %q, want structured data title", product.Title)
	}
	if product.Price != "42.00" {
		t.Errorf("price = %q, want 42.00", product.Price)
	}
	if product.Image != "https://cdn.x.com/ld.jpg" {
		t.Errorf("image = %q, want structured data image", product.Image)
	}
	if product.Description != "From structured data" {
		t.Errorf("description = %q", product.Description)
	}
	if product.Error != "" {
		t.Errorf("unexpected error field: %q", product.Error)
	}
}

// A fetched page with nothing extractable still yields a complete object
// with every default in place.
func TestEnricher_EmptyPageDefaults(t *testing.T) {
	product, err := testEnricher().extract(testDocument("<html><body></body></html>"))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if product.Title != DefaultTitle {
		t.Errorf("title = %q, want %q", product.Title, DefaultTitle)
	}
	if product.Price != DefaultPrice {
		t.Errorf("price = %q, want %q", product.Price, DefaultPrice)
	}
	if product.Currency != DefaultCurrency {
		t.Errorf("currency = %q, want %q", product.Currency, DefaultCurrency)
	}
	if product.Image != "" {
		t.Errorf("image = %q, want empty", product.Image)
	}
	if product.Category != DefaultCategory {
		t.Errorf("category = %q, want %q", product.Category, DefaultCategory)
	}
	if product.Availability != DefaultAvailability {
		t.Errorf("availability = %q, want %q", product.Availability, DefaultAvailability)
	}
}

func TestEnricher_CategoryFromExtractedFields(t *testing.T) {
	page := `<html><head><title>Gaming laptop 16GB</title>
		<meta name="description" content="A powerful portable computer for work and play"></head>
		<body></body></html>`

	product, err := testEnricher().extract(testDocument(page))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if product.Category != "Electronics" {
		t.Errorf("category = %q, want Electronics", product.Category)
	}
}

// Validation failures are hard errors: no product object comes back.
func TestEnricher_ValidationIsTerminal(t *testing.T) {
	e := testEnricher()

	tests := []struct {
		input   string
		wantErr error
	}{
		{input: "http://localhost/x", wantErr: ErrSuspiciousTarget},
		{input: "https://unknown-blog.org/x", wantErr: ErrUntrustedDomain},
		{input: "   ", wantErr: ErrInvalidURL},
	}

	for _, tt := range tests {
		product, err := e.Enrich(context.Background(), tt.input)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Enrich(%q) error = %v, want %v", tt.input, err, tt.wantErr)
		}
		if product != nil {
			t.Errorf("Enrich(%q) returned a product alongside the rejection", tt.input)
		}
	}
}

func TestDegradedProduct(t *testing.T) {
	tests := []struct {
		name      string
		cause     error
		wantError string
	}{
		{
			name:      "timeout",
			cause:     fmt.Errorf("%w after 10s", ErrTimeout),
			wantError: "Timeout",
		},
		{
			name:      "http error",
			cause:     &HTTPError{StatusCode: 404, Status: "404 Not Found"},
			wantError: "HttpError: 404",
		},
		{
			name:      "content type",
			cause:     fmt.Errorf("%w: %q", ErrUnsupportedContentType, "application/pdf"),
			wantError: "UnsupportedContentType",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			product := degradedProduct(tt.cause)
			if product.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", product.Error, tt.wantError)
			}
			if product.Title != DegradedTitle {
				t.Errorf("Title = %q, want %q", product.Title, DegradedTitle)
			}
			if product.Price != DefaultPrice {
				t.Errorf("Price = %q, want %q", product.Price, DefaultPrice)
			}
			if !product.Degraded() {
				t.Error("Degraded() = false")
			}
		})
	}
}
