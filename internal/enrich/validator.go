// internal/enrich/validator.go
package enrich

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// TrustPolicy is the combined allow-list, deny-list and heuristic test that
// decides whether a host may be fetched. The zero value is unusable; use
// DefaultTrustPolicy as a base and override fields from configuration.
type TrustPolicy struct {
	// AllowedDomains are registered domains accepted directly, matched
	// exactly or as a suffix of the request host (so www.amazon.pt matches
	// amazon.pt).
	AllowedDomains []string

	// DeniedHosts mark a host as suspicious regardless of allow-list
	// membership: loopback names, URL shorteners, Tor. Entries starting
	// with a dot match as a label suffix; everything else matches the host
	// exactly or as a parent domain.
	DeniedHosts []string

	// RetailKeywords feed the e-commerce heuristic for hosts that are not
	// allow-listed: a host containing one of these and ending in a trusted
	// TLD is accepted.
	RetailKeywords []string

	// TrustedTLDs are the TLD suffixes the heuristic accepts.
	TrustedTLDs []string
}

// DefaultTrustPolicy returns the built-in retailer trust policy.
func DefaultTrustPolicy() TrustPolicy {
	return TrustPolicy{
		AllowedDomains: []string{
			// Global marketplaces
			"amazon.com", "amazon.pt", "amazon.es", "amazon.fr", "amazon.co.uk", "amazon.de", "amazon.it",
			"ebay.com", "ebay.pt", "ebay.es", "ebay.fr", "ebay.co.uk", "ebay.de",
			"aliexpress.com", "shein.com", "wish.com", "temu.com", "banggood.com", "dhgate.com",
			// Portuguese and Spanish retailers
			"fnac.pt", "fnac.com", "fnac.es", "fnac.fr",
			"worten.pt", "worten.es", "pcdiga.pt", "continente.pt", "kuantokusta.pt",
			"mercadolivre.pt", "elcorteingles.pt", "elcorteingles.es",
			"mediamarkt.pt", "mediamarkt.es", "radiopopular.pt", "carrefour.es",
			// Fashion
			"zara.com", "hm.com", "uniqlo.com", "asos.com", "zalando.pt", "zalando.es",
			"nike.com", "adidas.com", "adidas.pt",
			// Electronics and general
			"apple.com", "samsung.com", "sony.com", "bestbuy.com",
			"ikea.com", "booking.com", "hotels.com", "sephora.com", "leroymerlin.es",
		},
		DeniedHosts: []string{
			"localhost", "127.0.0.1", "0.0.0.0", "::1",
			"bit.ly", "tinyurl.com", "t.co", "goo.gl", "ow.ly", "is.gd",
			".onion",
		},
		RetailKeywords: []string{"shop", "store", "loja", "buy", "market"},
		TrustedTLDs:    []string{".com", ".pt", ".es", ".fr", ".de", ".co.uk", ".it", ".net", ".store"},
	}
}

// trackingParams are query parameters stripped when building the canonical
// URL used as cache key.
var trackingParams = map[string]bool{
	"fbclid": true, "gclid": true, "msclkid": true, "igshid": true,
	"mc_cid": true, "mc_eid": true, "ref": true, "ref_": true, "tag": true,
	"affid": true, "aff_id": true,
}

// deniedSchemes are rejected before parsing; they indicate an attempt to
// reach something other than a web page.
var deniedSchemes = []string{"file://", "javascript:", "data:", "ftp://"}

// Validator normalizes and classifies raw URL strings against a TrustPolicy.
// It is a pure function over strings: no network access is performed.
type Validator struct {
	policy TrustPolicy
}

// NewValidator creates a validator with the given policy. Empty policy
// fields fall back to the defaults.
func NewValidator(policy TrustPolicy) *Validator {
	def := DefaultTrustPolicy()
	if len(policy.AllowedDomains) == 0 {
		policy.AllowedDomains = def.AllowedDomains
	}
	if len(policy.DeniedHosts) == 0 {
		policy.DeniedHosts = def.DeniedHosts
	}
	if len(policy.RetailKeywords) == 0 {
		policy.RetailKeywords = def.RetailKeywords
	}
	if len(policy.TrustedTLDs) == 0 {
		policy.TrustedTLDs = def.TrustedTLDs
	}
	return &Validator{policy: policy}
}

// Validate normalizes rawURL and checks it against the trust policy.
//
// Normalization inserts https:// when no scheme is present and lowercases
// the host. The suspicious-target check runs on the normalized host, before
// the allow-list check, so a denied host is always reported as suspicious
// even when it would otherwise match the allow-list.
func (v *Validator) Validate(rawURL string) (*ValidatedURL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidURL)
	}

	lower := strings.ToLower(trimmed)
	for _, scheme := range deniedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return nil, fmt.Errorf("%w: scheme not allowed: %s", ErrSuspiciousTarget, scheme)
		}
	}

	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidURL, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	parsed.Host = strings.ToLower(parsed.Host)

	if reason := v.suspiciousReason(host); reason != "" {
		return nil, fmt.Errorf("%w: %s", ErrSuspiciousTarget, reason)
	}

	if !v.isAllowed(host) && !v.looksLikeRetailer(host) {
		return nil, fmt.Errorf("%w: %s", ErrUntrustedDomain, host)
	}

	return &ValidatedURL{
		URL:       parsed.String(),
		Canonical: canonicalize(parsed),
		Host:      host,
		Origin:    parsed.Scheme + "://" + parsed.Host,
	}, nil
}

// suspiciousReason returns a non-empty description when the host matches the
// deny-list or resolves textually to a loopback/private address.
func (v *Validator) suspiciousReason(host string) string {
	for _, denied := range v.policy.DeniedHosts {
		if matchesDenied(host, denied) {
			return "denied host pattern: " + denied
		}
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return "private or loopback address: " + host
		}
	}
	return ""
}

// matchesDenied matches deny-list entries the same way the allow-list is
// matched: exact host or parent domain, with leading-dot entries taken as a
// label suffix. Plain substring matching would reject unrelated hosts, for
// example "t.co" against anything ending in "t.com".
func matchesDenied(host, denied string) bool {
	if strings.HasPrefix(denied, ".") {
		return strings.HasSuffix(host, denied)
	}
	return host == denied || strings.HasSuffix(host, "."+denied)
}

// isAllowed reports whether the host matches an allow-listed domain exactly
// or as a subdomain. The registered domain (eTLD+1) is also checked so deep
// subdomains of trusted retailers pass.
func (v *Validator) isAllowed(host string) bool {
	for _, domain := range v.policy.AllowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	if registered, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		for _, domain := range v.policy.AllowedDomains {
			if registered == domain {
				return true
			}
		}
	}
	return false
}

// looksLikeRetailer applies the e-commerce heuristic: a retail keyword in the
// host combined with a trusted TLD suffix.
func (v *Validator) looksLikeRetailer(host string) bool {
	hasKeyword := false
	for _, keyword := range v.policy.RetailKeywords {
		if strings.Contains(host, keyword) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return false
	}
	for _, tld := range v.policy.TrustedTLDs {
		if strings.HasSuffix(host, tld) {
			return true
		}
	}
	return false
}

// canonicalize strips tracking and affiliate query parameters and drops the
// fragment, producing a stable cache key for the page.
func canonicalize(u *url.URL) string {
	canon := *u
	canon.Fragment = ""

	query := canon.Query()
	for param := range query {
		lower := strings.ToLower(param)
		if trackingParams[lower] || strings.HasPrefix(lower, "utm_") {
			query.Del(param)
		}
	}
	canon.RawQuery = query.Encode()
	return canon.String()
}
