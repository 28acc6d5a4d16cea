// internal/enrich/sanitizer.go
package enrich

import (
	"regexp"
	"strings"
)

// Element removals are open-to-close: the whole element goes, not just the
// tags. Regexes do not track nesting, which is acceptable here because the
// removed elements do not legally nest inside themselves.
var (
	scriptRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	iframeRe = regexp.MustCompile(`(?is)<iframe\b[^>]*>.*?</iframe>`)
	objectRe = regexp.MustCompile(`(?is)<object\b[^>]*>.*?</object>`)
	embedRe  = regexp.MustCompile(`(?is)<embed\b[^>]*>.*?</embed>`)
	formRe   = regexp.MustCompile(`(?is)<form\b[^>]*>.*?</form>`)

	// Inline event handlers, quoted or bare.
	eventHandlerRe = regexp.MustCompile(`(?i)\son\w+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)

	jsSchemeRe = regexp.MustCompile(`(?i)javascript:`)

	ldJSONTypeRe = regexp.MustCompile(`(?i)type\s*=\s*["']?application/ld\+json`)
)

// Sanitize strips active and dangerous content from markup before any field
// extraction touches it: script, iframe, object, embed and form elements,
// inline event handlers, and javascript: URI occurrences.
//
// JSON-LD blocks (<script type="application/ld+json">) survive: they are
// inert data consumed by the structured-data extractor, never executed.
// Sanitize is idempotent and never fails; clean input passes through
// unchanged.
func Sanitize(html string) string {
	out := scriptRe.ReplaceAllStringFunc(html, func(match string) string {
		openEnd := strings.Index(match, ">")
		if openEnd > 0 && ldJSONTypeRe.MatchString(match[:openEnd+1]) {
			return match
		}
		return ""
	})
	out = iframeRe.ReplaceAllString(out, "")
	out = objectRe.ReplaceAllString(out, "")
	out = embedRe.ReplaceAllString(out, "")
	out = formRe.ReplaceAllString(out, "")
	out = eventHandlerRe.ReplaceAllString(out, "")
	out = jsSchemeRe.ReplaceAllString(out, "")
	return out
}
