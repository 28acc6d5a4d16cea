// internal/enrich/jsonld_test.go
package enrich

import "testing"

func TestParseStructuredData(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		wantNil  bool
		expected structuredData
	}{
		{
			name: "top level product",
			html: `<script type="application/ld+json">{
				"@context": "https://schema.org",
				"@type": "Product",
				"name": "Widget",
				"image": "https://x.com/w.jpg",
				"description": "A widget",
				"aggregateRating": {"ratingValue": 4.2},
				"offers": {"price": 19.99, "priceCurrency": "EUR", "availability": "https://schema.org/InStock"}
			}</script>`,
			expected: structuredData{
				Title: "Widget", Image: "https://x.com/w.jpg", Description: "A widget",
				Rating: "4.2", Price: "19.99", Currency: "EUR",
				Availability: "https://schema.org/InStock",
			},
		},
		{
			name: "product inside graph",
			html: `<script type="application/ld+json">{"@graph":[
				{"@type":"BreadcrumbList"},
				{"@type":"Product","name":"Graph Widget","offers":{"price":"5.00"}}
			]}</script>`,
			expected: structuredData{Title: "Graph Widget", Price: "5.00"},
		},
		{
			name: "product in top level array with type array",
			html: `<script type="application/ld+json">[
				{"@type":"WebPage"},
				{"@type":["Thing","Product"],"name":"Array Widget"}
			]</script>`,
			expected: structuredData{Title: "Array Widget"},
		},
		{
			name: "offers array and image object",
			html: `<script type="application/ld+json">{"@type":"product","name":"X",
				"image":{"@type":"ImageObject","url":"https://x.com/i.png"},
				"offers":[{"price":"7.50","priceCurrency":"GBP"}]}</script>`,
			expected: structuredData{Title: "X", Image: "https://x.com/i.png", Price: "7.50", Currency: "GBP"},
		},
		{
			name: "price specification fallback",
			html: `<script type="application/ld+json">{"@type":"Product","name":"X",
				"offers":{"priceSpecification":{"price":"3.30","priceCurrency":"EUR"}}}</script>`,
			expected: structuredData{Title: "X", Price: "3.30", Currency: "EUR"},
		},
		{
			name: "malformed block skipped in favor of later valid block",
			html: `<script type="application/ld+json">{broken json</script>
				<script type="application/ld+json">{"@type":"Product","name":"Second"}</script>`,
			expected: structuredData{Title: "Second"},
		},
		{
			name:    "no product node",
			html:    `<script type="application/ld+json">{"@type":"Organization","name":"Corp"}</script>`,
			wantNil: true,
		},
		{
			name:    "no json-ld at all",
			html:    `<html><body><p>nothing</p></body></html>`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseStructuredData(tt.html)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected structured data, got nil")
			}
			if *got != tt.expected {
				t.Errorf("got %+v, want %+v", *got, tt.expected)
			}
		})
	}
}
