// internal/enrich/extractors_test.go
package enrich

import (
	"strings"
	"testing"
)

func testExtraction(t *testing.T, html string) *extraction {
	t.Helper()
	target := &ValidatedURL{
		URL:       "https://www.amazon.pt/dp/B0TEST",
		Canonical: "https://www.amazon.pt/dp/B0TEST",
		Host:      "www.amazon.pt",
		Origin:    "https://www.amazon.pt",
	}
	ex, err := newExtraction(Sanitize(html), target)
	if err != nil {
		t.Fatalf("newExtraction failed: %v", err)
	}
	return ex
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "structured data wins",
			html: `<html><head>
				<script type="application/ld+json">{"@type":"Product","name":"SD Title"}</script>
				<meta property="og:title" content="OG Title">
				<title>Doc Title</title></head><body></body></html>`,
			want: "SD Title",
		},
		{
			name: "opengraph over document title",
			html: `<html><head><meta property="og:title" content="OG Title"><title>Doc Title</title></head><body></body></html>`,
			want: "OG Title",
		},
		{
			name: "twitter card",
			html: `<html><head><meta name="twitter:title" content="TW Title"></head><body></body></html>`,
			want: "TW Title",
		},
		{
			name: "document title",
			html: `<html><head><title>  Doc   Title </title></head><body></body></html>`,
			want: "Doc Title",
		},
		{
			name: "first heading",
			html: `<html><body><h1>Heading Title</h1></body></html>`,
			want: "Heading Title",
		},
		{
			name: "entities decoded",
			html: `<html><head><title>Fellowship &amp; Ring</title></head><body></body></html>`,
			want: "Fellowship & Ring",
		},
		{
			name: "nothing found yields placeholder",
			html: `<html><body><p>just text</p></body></html>`,
			want: DefaultTitle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTitle(testExtraction(t, tt.html)); got != tt.want {
				t.Errorf("extractTitle = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractImage(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "opengraph absolute",
			html: `<html><head><meta property="og:image" content="https://cdn.example.com/p.jpg"></head><body></body></html>`,
			want: "https://cdn.example.com/p.jpg",
		},
		{
			name: "protocol relative resolved",
			html: `<html><head><meta property="og:image" content="//cdn.example.com/p.jpg"></head><body></body></html>`,
			want: "https://cdn.example.com/p.jpg",
		},
		{
			name: "root relative resolved against origin",
			html: `<html><head><meta property="og:image" content="/images/p.jpg"></head><body></body></html>`,
			want: "https://www.amazon.pt/images/p.jpg",
		},
		{
			name: "untrusted img needs image extension",
			html: `<html><body><img class="product-photo" src="/api/image?id=1"></body></html>`,
			want: "",
		},
		{
			name: "untrusted img with extension accepted",
			html: `<html><body><img class="product-photo" src="/images/main.webp"></body></html>`,
			want: "https://www.amazon.pt/images/main.webp",
		},
		{
			name: "extension with query string",
			html: `<html><body><img id="product-main" src="https://cdn.x.com/a.png?w=600"></body></html>`,
			want: "https://cdn.x.com/a.png?w=600",
		},
		{
			name: "no image",
			html: `<html><body><p>text only</p></body></html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractImage(testExtraction(t, tt.html)); got != tt.want {
				t.Errorf("extractImage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractRating(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "structured data",
			html: `<html><head><script type="application/ld+json">{"@type":"Product","name":"X","aggregateRating":{"ratingValue":"4.7"}}</script></head><body></body></html>`,
			want: "4.7",
		},
		{
			name: "slash five pattern",
			html: `<html><body><span>4.5/5 based on 120 reviews</span></body></html>`,
			want: "4.5",
		},
		{
			name: "comma decimal",
			html: `<html><body><span>4,3 / 5</span></body></html>`,
			want: "4.3",
		},
		{
			name: "out of five wording",
			html: `<html><body><span>3 out of 5 stars</span></body></html>`,
			want: "3.0",
		},
		{
			name: "out of range rejected",
			html: `<html><head><script type="application/ld+json">{"@type":"Product","name":"X","aggregateRating":{"ratingValue":"9.4"}}</script></head><body></body></html>`,
			want: "",
		},
		{
			name: "no rating",
			html: `<html><body><p>unrated</p></body></html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractRating(testExtraction(t, tt.html)); got != tt.want {
				t.Errorf("extractRating = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractAvailability(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "schema out of stock",
			html: `<html><head><script type="application/ld+json">{"@type":"Product","name":"X","offers":{"availability":"https://schema.org/OutOfStock"}}</script></head><body></body></html>`,
			want: "out of stock",
		},
		{
			name: "schema in stock",
			html: `<html><head><script type="application/ld+json">{"@type":"Product","name":"X","offers":{"availability":"https://schema.org/InStock"}}</script></head><body></body></html>`,
			want: "in stock",
		},
		{
			name: "unavailable does not read as available",
			html: `<html><body><p>This product is currently unavailable.</p></body></html>`,
			want: "out of stock",
		},
		{
			name: "earliest keyword wins",
			html: `<html><body><p>Sold out.</p><button>Add to cart</button></body></html>`,
			want: "out of stock",
		},
		{
			name: "portuguese in stock",
			html: `<html><body><span>Disponível para envio imediato</span></body></html>`,
			want: "in stock",
		},
		{
			name: "portuguese sold out",
			html: `<html><body><span>Artigo esgotado</span></body></html>`,
			want: "out of stock",
		},
		{
			name: "no signal",
			html: `<html><body><p>a product page</p></body></html>`,
			want: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractAvailability(testExtraction(t, tt.html)); got != tt.want {
				t.Errorf("extractAvailability = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractDescription(t *testing.T) {
	t.Run("meta description", func(t *testing.T) {
		ex := testExtraction(t, `<html><head><meta name="description" content="A fine product for tests."></head><body></body></html>`)
		if got := extractDescription(ex); got != "A fine product for tests." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("long description clipped with ellipsis", func(t *testing.T) {
		long := strings.Repeat("word ", 200)
		ex := testExtraction(t, `<html><head><meta name="description" content="`+long+`"></head><body></body></html>`)
		got := extractDescription(ex)
		if len([]rune(got)) > 500 {
			t.Errorf("description too long: %d runes", len([]rune(got)))
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("expected ellipsis suffix, got %q", got[len(got)-10:])
		}
	})

	t.Run("paragraph fallback requires product wording", func(t *testing.T) {
		ex := testExtraction(t, `<html><body>
			<p>`+strings.Repeat("filler ", 20)+`</p>
			<p>This product comes with a two year warranty and free delivery to your home.</p>
			</body></html>`)
		got := extractDescription(ex)
		if !strings.Contains(got, "two year warranty") {
			t.Errorf("got %q", got)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		ex := testExtraction(t, `<html><body><span>hi</span></body></html>`)
		if got := extractDescription(ex); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
}

func TestResolveImageURL(t *testing.T) {
	tests := []struct {
		raw    string
		origin string
		want   string
	}{
		{raw: "https://a.com/i.jpg", origin: "https://s.pt", want: "https://a.com/i.jpg"},
		{raw: "//a.com/i.jpg", origin: "https://s.pt", want: "https://a.com/i.jpg"},
		{raw: "/i.jpg", origin: "https://s.pt", want: "https://s.pt/i.jpg"},
		{raw: "i.jpg", origin: "https://s.pt", want: ""},
		{raw: "", origin: "https://s.pt", want: ""},
	}
	for _, tt := range tests {
		if got := resolveImageURL(tt.raw, tt.origin); got != tt.want {
			t.Errorf("resolveImageURL(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
