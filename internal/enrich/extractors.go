// internal/enrich/extractors.go
package enrich

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
)

// extraction carries everything the field strategies need: the parsed
// document, the OpenGraph graph, structured data when present, the sanitized
// markup for regex passes, and the page origin for resolving relative URLs.
type extraction struct {
	doc    *goquery.Document
	og     *opengraph.OpenGraph
	sd     *structuredData
	html   string
	origin string
	host   string
}

// newExtraction parses the sanitized markup once and shares the result
// across all field strategies.
func newExtraction(sanitized string, target *ValidatedURL) (*extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sanitized))
	if err != nil {
		return nil, err
	}

	og := opengraph.NewOpenGraph()
	// ProcessHTML tolerates broken markup; a parse failure just means no
	// OpenGraph data for this page.
	_ = og.ProcessHTML(strings.NewReader(sanitized))

	return &extraction{
		doc:    doc,
		og:     og,
		sd:     parseStructuredData(sanitized),
		html:   sanitized,
		origin: target.Origin,
		host:   target.Host,
	}, nil
}

// cleanText decodes HTML entities and collapses runs of whitespace.
func cleanText(s string) string {
	decoded := html.UnescapeString(s)
	return strings.Join(strings.Fields(decoded), " ")
}

// extractTitle runs the title cascade: structured data, OpenGraph, Twitter
// card, the document title, then page headings.
func extractTitle(ex *extraction) string {
	if ex.sd != nil {
		if title := cleanText(ex.sd.Title); title != "" {
			return title
		}
	}

	if title := cleanText(ex.og.Title); title != "" {
		return title
	}

	if content, ok := ex.doc.Find(`meta[name="twitter:title"]`).First().Attr("content"); ok {
		if title := cleanText(content); title != "" {
			return title
		}
	}

	if title := cleanText(ex.doc.Find("title").First().Text()); title != "" {
		return title
	}

	if title := cleanText(ex.doc.Find("h1").First().Text()); title != "" {
		return title
	}

	if title := cleanText(ex.doc.Find(`[class*="product-title"], [class*="product-name"], [id*="product-title"]`).First().Text()); title != "" {
		return title
	}

	return DefaultTitle
}

var imageExtRe = regexp.MustCompile(`(?i)\.(jpe?g|png|webp|gif|avif)(\?|$)`)

// extractImage runs the image cascade. Structured data, OpenGraph and
// Twitter card URLs are taken as declared; URLs scraped out of the markup
// itself must additionally carry an image file extension.
func extractImage(ex *extraction) string {
	if ex.sd != nil && ex.sd.Image != "" {
		if resolved := resolveImageURL(ex.sd.Image, ex.origin); resolved != "" {
			return resolved
		}
	}

	if len(ex.og.Images) > 0 && ex.og.Images[0].URL != "" {
		if resolved := resolveImageURL(ex.og.Images[0].URL, ex.origin); resolved != "" {
			return resolved
		}
	}

	for _, sel := range []string{`meta[name="twitter:image"]`, `meta[name="twitter:image:src"]`} {
		if content, ok := ex.doc.Find(sel).First().Attr("content"); ok {
			if resolved := resolveImageURL(content, ex.origin); resolved != "" {
				return resolved
			}
		}
	}

	if href, ok := ex.doc.Find(`link[rel="image_src"]`).First().Attr("href"); ok {
		if resolved := resolveImageURL(href, ex.origin); resolved != "" {
			return resolved
		}
	}

	// Untrusted strategies from here down: the URL must look like an image
	// file, not just any src attribute.
	selectors := []string{
		"#landingImage",          // amazon
		".ux-image-carousel img", // ebay
		`img[class*="product"]`,
		`img[id*="product"]`,
		`img[alt*="product"]`,
		".product-image img",
		".gallery img",
	}
	for _, sel := range selectors {
		node := ex.doc.Find(sel).First()
		src, ok := node.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			src, _ = node.Attr("data-src")
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		if !imageExtRe.MatchString(src) {
			continue
		}
		if resolved := resolveImageURL(src, ex.origin); resolved != "" {
			return resolved
		}
	}

	return ""
}

// resolveImageURL turns protocol-relative and root-relative image URLs into
// absolute ones against the page origin. Anything that is not http(s) after
// resolution is discarded.
func resolveImageURL(raw, origin string) string {
	u := strings.TrimSpace(raw)
	switch {
	case u == "":
		return ""
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return u
	case strings.HasPrefix(u, "/"):
		return origin + u
	}
	return ""
}

var descriptionKeywords = []string{"product", "produto", "item", "descri", "detail", "detalhe", "caracter", "feature"}

// extractDescription runs the description cascade: structured data, meta
// description tags, description-classed containers, then the first paragraph
// of reasonable length mentioning the product. Results longer than 500 runes
// are cut with an ellipsis.
func extractDescription(ex *extraction) string {
	if ex.sd != nil {
		if desc := cleanText(ex.sd.Description); desc != "" {
			return clipDescription(desc)
		}
	}

	if desc := cleanText(ex.og.Description); desc != "" {
		return clipDescription(desc)
	}

	for _, sel := range []string{`meta[name="description"]`, `meta[name="twitter:description"]`} {
		if content, ok := ex.doc.Find(sel).First().Attr("content"); ok {
			if desc := cleanText(content); desc != "" {
				return clipDescription(desc)
			}
		}
	}

	for _, sel := range []string{
		"#productDescription", // amazon
		`[class*="product-description"]`,
		`[class*="description"]`,
		`[id*="description"]`,
	} {
		if desc := cleanText(ex.doc.Find(sel).First().Text()); len(desc) >= 30 {
			return clipDescription(desc)
		}
	}

	var fallback string
	ex.doc.Find("p").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		text := cleanText(node.Text())
		if len(text) < 50 || len(text) > 300 {
			return true
		}
		lower := strings.ToLower(text)
		for _, keyword := range descriptionKeywords {
			if strings.Contains(lower, keyword) {
				fallback = text
				return false
			}
		}
		return true
	})
	if fallback != "" {
		return clipDescription(fallback)
	}

	return ""
}

func clipDescription(desc string) string {
	const maxRunes = 500
	runes := []rune(desc)
	if len(runes) <= maxRunes {
		return desc
	}
	return strings.TrimSpace(string(runes[:maxRunes-3])) + "..."
}

// Ratings written as "4.5/5", "4,5 / 5" or "4.5 out of 5".
var ratingRe = regexp.MustCompile(`(\d(?:[.,]\d{1,2})?)\s*(?:/|out of)\s*5\b`)

// extractRating returns a rating on the 0 to 5 scale with one decimal, or an
// empty string when the page declares none. Values outside [0,5] are
// rejected rather than clamped.
func extractRating(ex *extraction) string {
	if ex.sd != nil && ex.sd.Rating != "" {
		if rating := validRating(ex.sd.Rating); rating != "" {
			return rating
		}
	}

	for _, sel := range []string{`meta[itemprop="ratingValue"]`, `[itemprop="ratingValue"]`} {
		node := ex.doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		value, ok := node.Attr("content")
		if !ok {
			value = node.Text()
		}
		if rating := validRating(value); rating != "" {
			return rating
		}
	}

	if m := ratingRe.FindStringSubmatch(ex.html); m != nil {
		if rating := validRating(m[1]); rating != "" {
			return rating
		}
	}

	return ""
}

// validRating parses a candidate rating and renders it with one decimal when
// it falls inside the 0 to 5 scale.
func validRating(raw string) string {
	s := strings.Replace(strings.TrimSpace(raw), ",", ".", 1)
	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 || value > 5 {
		return ""
	}
	return strconv.FormatFloat(value, 'f', 1, 64)
}

// Availability keyword classes. Negative phrases are listed with word
// boundaries so "unavailable" never matches "available". Portuguese phrasing
// is covered alongside English since the default retailer list skews to
// Portuguese storefronts.
var (
	outOfStockRe = regexp.MustCompile(`(?i)\b(out of stock|sold out|unavailable|esgotado|indispon[ií]vel|sem stock|agotado)\b`)
	inStockRe    = regexp.MustCompile(`(?i)\b(in stock|available|add to cart|add to basket|buy now|em stock|dispon[ií]vel|comprar agora|adicionar ao carrinho)\b`)
)

// extractAvailability classifies stock state. Structured data wins; otherwise
// the document text is scanned and the earliest keyword match decides, so a
// page saying "out of stock" up top is not flipped by a generic "add to cart"
// further down.
func extractAvailability(ex *extraction) string {
	if ex.sd != nil && ex.sd.Availability != "" {
		lower := strings.ToLower(ex.sd.Availability)
		switch {
		case strings.Contains(lower, "outofstock"), strings.Contains(lower, "soldout"), strings.Contains(lower, "discontinued"):
			return "out of stock"
		case strings.Contains(lower, "instock"), strings.Contains(lower, "preorder"), strings.Contains(lower, "limitedavailability"):
			return "in stock"
		}
	}

	out := outOfStockRe.FindStringIndex(ex.html)
	in := inStockRe.FindStringIndex(ex.html)
	switch {
	case out != nil && (in == nil || out[0] < in[0]):
		return "out of stock"
	case in != nil:
		return "in stock"
	}

	return DefaultAvailability
}
