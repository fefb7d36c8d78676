// Package classify assigns incoming requests to routing tiers.
//
// Classification is pure and stateless: a fixed priority order of pattern
// checks, recomputed per request. The order is part of the contract — a URL
// that is both a declared static asset and under a CDN prefix resolves via
// the CDN rule, so common-library responses served from a CDN get CDN
// caching.
package classify

import (
	"net/http"
	"strings"
)

// Tier is one of the request-routing/caching policies.
type Tier int

const (
	// TierBypass passes the request straight to the network. Assigned to
	// every non-read method; nothing about it touches the cache.
	TierBypass Tier = iota

	// TierAPINetworkFirst serves remote JSON APIs: network first with a
	// hard deadline, cache fallback on failure.
	TierAPINetworkFirst

	// TierCDNCacheFirst serves CDN-hosted libraries: cache first with
	// background refresh.
	TierCDNCacheFirst

	// TierStaticCacheFirst serves declared static assets: cache first with
	// background refresh.
	TierStaticCacheFirst

	// TierDocumentNetworkFirst serves navigable documents: network first,
	// cache fallback, offline page as a last resort.
	TierDocumentNetworkFirst

	// TierDynamicCacheFirst is the safe default for anything unmatched,
	// treated like the CDN tier.
	TierDynamicCacheFirst
)

// String returns the tier name used in logs and metric labels.
func (t Tier) String() string {
	switch t {
	case TierBypass:
		return "bypass"
	case TierAPINetworkFirst:
		return "api"
	case TierCDNCacheFirst:
		return "cdn"
	case TierStaticCacheFirst:
		return "static"
	case TierDocumentNetworkFirst:
		return "document"
	case TierDynamicCacheFirst:
		return "dynamic"
	default:
		return "unknown"
	}
}

// Rules holds the static pattern lists classification is computed from.
type Rules struct {
	// APIPrefixes are full-URL prefixes of remote JSON APIs.
	APIPrefixes []string

	// CDNPrefixes are full-URL prefixes of CDN-hosted libraries.
	CDNPrefixes []string

	// StaticPaths are the request paths of declared static assets.
	// Matched by exact path equality, never by suffix.
	StaticPaths []string
}

// Classifier assigns requests to tiers.
type Classifier struct {
	apiPrefixes []string
	cdnPrefixes []string
	staticPaths map[string]struct{}
}

// New builds a classifier from the given rules.
func New(rules Rules) *Classifier {
	static := make(map[string]struct{}, len(rules.StaticPaths))
	for _, p := range rules.StaticPaths {
		static[p] = struct{}{}
	}
	return &Classifier{
		apiPrefixes: rules.APIPrefixes,
		cdnPrefixes: rules.CDNPrefixes,
		staticPaths: static,
	}
}

// Classify assigns a request to exactly one tier. Rules are evaluated in
// fixed priority order; the first match wins.
func (c *Classifier) Classify(r *http.Request) Tier {
	if !isSafeMethod(r.Method) {
		return TierBypass
	}

	fullURL := r.URL.String()

	for _, prefix := range c.apiPrefixes {
		if strings.HasPrefix(fullURL, prefix) {
			return TierAPINetworkFirst
		}
	}

	for _, prefix := range c.cdnPrefixes {
		if strings.HasPrefix(fullURL, prefix) {
			return TierCDNCacheFirst
		}
	}

	if _, ok := c.staticPaths[r.URL.Path]; ok {
		return TierStaticCacheFirst
	}

	if isDocumentNavigation(r) {
		return TierDocumentNetworkFirst
	}

	return TierDynamicCacheFirst
}

// isSafeMethod reports whether the method is a cacheable read.
func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// isDocumentNavigation reports whether the request is a navigation for a
// document. Fetch metadata headers are authoritative when present; the
// Accept header is the fallback for clients that do not send them.
func isDocumentNavigation(r *http.Request) bool {
	if dest := r.Header.Get("Sec-Fetch-Dest"); dest != "" {
		return dest == "document"
	}
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
