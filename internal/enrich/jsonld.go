// internal/enrich/jsonld.go
package enrich

import (
	"encoding/json"
	"regexp"
	"strings"
)

// structuredData holds the product fields recovered from JSON-LD markup.
// Fields are raw strings exactly as declared by the page; normalization
// happens in the coordinator.
type structuredData struct {
	Title        string
	Price        string
	Currency     string
	Image        string
	Description  string
	Rating       string
	Availability string
}

var ldJSONBlockRe = regexp.MustCompile(`(?is)<script\b[^>]*type\s*=\s*["']?application/ld\+json["']?[^>]*>(.*?)</script>`)

// parseStructuredData scans every JSON-LD block in the document and returns
// data from the first Product node found, either at the top level, inside a
// @graph array, or as an element of a top-level array. Malformed JSON blocks
// are skipped; a page with no usable Product node yields nil.
func parseStructuredData(html string) *structuredData {
	for _, match := range ldJSONBlockRe.FindAllStringSubmatch(html, -1) {
		var raw interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(match[1])), &raw); err != nil {
			continue
		}
		if sd := findProductNode(raw); sd != nil {
			return sd
		}
	}
	return nil
}

// findProductNode walks a decoded JSON-LD value looking for a Product node.
func findProductNode(value interface{}) *structuredData {
	switch node := value.(type) {
	case map[string]interface{}:
		if isProductType(node["@type"]) {
			return productFromNode(node)
		}
		if graph, ok := node["@graph"].([]interface{}); ok {
			for _, entry := range graph {
				if sd := findProductNode(entry); sd != nil {
					return sd
				}
			}
		}
	case []interface{}:
		for _, entry := range node {
			if sd := findProductNode(entry); sd != nil {
				return sd
			}
		}
	}
	return nil
}

// isProductType accepts "Product" both as a plain string and inside a type
// array, case-insensitively.
func isProductType(typeField interface{}) bool {
	switch t := typeField.(type) {
	case string:
		return strings.EqualFold(t, "Product")
	case []interface{}:
		for _, entry := range t {
			if s, ok := entry.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

func productFromNode(node map[string]interface{}) *structuredData {
	sd := &structuredData{
		Title:       stringField(node["name"]),
		Image:       imageField(node["image"]),
		Description: stringField(node["description"]),
	}

	if rating, ok := node["aggregateRating"].(map[string]interface{}); ok {
		sd.Rating = stringField(rating["ratingValue"])
	}

	offer := firstOffer(node["offers"])
	if offer != nil {
		sd.Price = stringField(offer["price"])
		sd.Currency = stringField(offer["priceCurrency"])
		sd.Availability = stringField(offer["availability"])

		// Some publishers nest the amount one level deeper.
		if sd.Price == "" {
			if spec, ok := offer["priceSpecification"].(map[string]interface{}); ok {
				sd.Price = stringField(spec["price"])
				if sd.Currency == "" {
					sd.Currency = stringField(spec["priceCurrency"])
				}
			}
		}
	}

	return sd
}

// firstOffer unwraps offers declared as a single object or as an array.
func firstOffer(value interface{}) map[string]interface{} {
	switch offers := value.(type) {
	case map[string]interface{}:
		return offers
	case []interface{}:
		for _, entry := range offers {
			if offer, ok := entry.(map[string]interface{}); ok {
				return offer
			}
		}
	}
	return nil
}

// stringField renders scalar JSON values as strings; prices in particular
// appear both as numbers and as strings in the wild.
func stringField(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return trimFloat(v)
	case json.Number:
		return v.String()
	}
	return ""
}

// imageField accepts a plain URL, the first element of an array, or an
// ImageObject with a url property.
func imageField(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		if len(v) > 0 {
			return imageField(v[0])
		}
	case map[string]interface{}:
		return stringField(v["url"])
	}
	return ""
}
