// internal/enrich/price.go
package enrich

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/currency"
)

var symbolToCurrency = map[string]string{
	"€": "EUR",
	"£": "GBP",
	"$": "USD",
}

// Currency symbol or code, before or after the amount. The amount group
// tolerates both comma and dot separators; disambiguation happens later.
var (
	currencyBeforeRe = regexp.MustCompile(`(?i)(€|\$|£|EUR|USD|GBP)\s*(\d{1,3}(?:[.,\s]\d{3})*(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)`)
	currencyAfterRe  = regexp.MustCompile(`(?i)(\d{1,3}(?:[.,\s]\d{3})*(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)\s*(€|\$|£|EUR|USD|GBP)`)
)

// NormalizePrice reduces a raw price string to a plain decimal form.
//
// The separator heuristic: when both comma and dot are present, whichever
// appears later in the string is the decimal point and all occurrences of
// the other are thousands separators. A single comma alone is a decimal
// point; multiple commas without a dot are thousands separators. The result
// must match ^\d+(\.\d+)?$ or the empty string is returned.
//
// Inputs like "12.345" are inherently ambiguous from text alone; this keeps
// the documented heuristic rather than guessing.
func NormalizePrice(raw string) string {
	// Drop currency symbols, spaces and any other noise around the number.
	s := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, raw)
	if s == "" {
		return ""
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// European style: 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// Anglo style: 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	if !validPriceRe.MatchString(s) {
		return ""
	}
	return s
}

var validPriceRe = regexp.MustCompile(`^\d+(\.\d+)?$`)

// formatPrice renders a normalized price with exactly two fraction digits,
// falling back to the documented default when the input is unusable.
func formatPrice(normalized string) string {
	if normalized == "" {
		return DefaultPrice
	}
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil || value < 0 {
		return DefaultPrice
	}
	return strconv.FormatFloat(value, 'f', 2, 64)
}

// trimFloat renders a JSON number without a trailing ".000000" tail.
func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// normalizeCurrency maps detected symbols/codes to an ISO 4217 code,
// defaulting to EUR. Unknown symbols resolve to USD per the documented
// mapping; unknown codes are verified against the ISO table before use.
func normalizeCurrency(detected string) string {
	code := strings.TrimSpace(detected)
	if code == "" {
		return DefaultCurrency
	}
	if mapped, ok := symbolToCurrency[code]; ok {
		return mapped
	}
	upper := strings.ToUpper(code)
	if unit, err := currency.ParseISO(upper); err == nil {
		return unit.String()
	}
	if utf8.RuneCountInString(code) == 1 {
		// Some symbol we do not recognize, but clearly a symbol.
		return "USD"
	}
	return DefaultCurrency
}

// extractPrice runs the price cascade: structured data, price meta tags,
// retailer selectors, then a document-wide currency pattern scan. The first
// strategy producing a normalizable amount wins.
func extractPrice(ex *extraction) (string, string) {
	if ex.sd != nil && ex.sd.Price != "" {
		if normalized := NormalizePrice(ex.sd.Price); normalized != "" {
			return formatPrice(normalized), normalizeCurrency(ex.sd.Currency)
		}
	}

	if raw, cur := priceFromMeta(ex); raw != "" {
		if normalized := NormalizePrice(raw); normalized != "" {
			return formatPrice(normalized), normalizeCurrency(cur)
		}
	}

	if raw, cur := priceFromSelectors(ex); raw != "" {
		if normalized := NormalizePrice(raw); normalized != "" {
			return formatPrice(normalized), normalizeCurrency(cur)
		}
	}

	if raw, cur := priceFromRegex(ex.html); raw != "" {
		if normalized := NormalizePrice(raw); normalized != "" {
			return formatPrice(normalized), normalizeCurrency(cur)
		}
	}

	return DefaultPrice, DefaultCurrency
}

// priceFromMeta reads the price/currency meta tag pairs used by OpenGraph
// commerce extensions and microdata.
func priceFromMeta(ex *extraction) (string, string) {
	amountSelectors := []string{
		`meta[property="product:price:amount"]`,
		`meta[property="og:price:amount"]`,
		`meta[itemprop="price"]`,
		`[itemprop="price"]`,
	}
	currencySelectors := []string{
		`meta[property="product:price:currency"]`,
		`meta[property="og:price:currency"]`,
		`meta[itemprop="priceCurrency"]`,
		`[itemprop="priceCurrency"]`,
	}

	var amount string
	for _, sel := range amountSelectors {
		node := ex.doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if content, ok := node.Attr("content"); ok && strings.TrimSpace(content) != "" {
			amount = content
		} else if text := strings.TrimSpace(node.Text()); text != "" {
			amount = text
		}
		if amount != "" {
			break
		}
	}
	if amount == "" {
		return "", ""
	}

	var cur string
	for _, sel := range currencySelectors {
		node := ex.doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if content, ok := node.Attr("content"); ok && strings.TrimSpace(content) != "" {
			cur = content
			break
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			cur = text
			break
		}
	}

	// The amount itself may carry the symbol when currency meta is absent.
	if cur == "" {
		cur = currencyHint(amount)
	}
	return amount, cur
}

// retailerPriceSelectors cover the price blocks of the stores on the
// default allow-list plus a few generic storefront conventions.
var retailerPriceSelectors = []string{
	".a-price .a-offscreen", // amazon
	"#priceblock_ourprice",  // amazon (legacy)
	".x-price-primary",      // ebay
	".f-price",              // fnac
	".price__current",
	".product-price",
	".pdp-price",
	"[data-testid='price']",
	".price-current",
	".current-price",
	".prices .price",
	".price", // generic, last
}

func priceFromSelectors(ex *extraction) (string, string) {
	for _, sel := range retailerPriceSelectors {
		text := strings.TrimSpace(ex.doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		return text, currencyHint(text)
	}
	return "", ""
}

// priceFromRegex is the last resort: scan the whole document for an amount
// adjacent to a currency symbol or code, in either order.
func priceFromRegex(html string) (string, string) {
	if m := currencyBeforeRe.FindStringSubmatch(html); m != nil {
		return m[2], m[1]
	}
	if m := currencyAfterRe.FindStringSubmatch(html); m != nil {
		return m[1], m[2]
	}
	return "", ""
}

// currencyHint pulls a currency signal out of free text, if any.
func currencyHint(text string) string {
	for symbol := range symbolToCurrency {
		if strings.Contains(text, symbol) {
			return symbol
		}
	}
	upper := strings.ToUpper(text)
	for _, code := range []string{"EUR", "USD", "GBP"} {
		if strings.Contains(upper, code) {
			return code
		}
	}
	return ""
}
