package cache

import (
	"fmt"
	"net/url"
	"strings"
)

// keyPrefix namespaces every stored key so multiple applications can share
// one backend.
const keyPrefix = "site"

// Purpose identifies what a generation stores.
type Purpose string

const (
	// PurposeStatic holds the precached asset manifest and navigable documents.
	PurposeStatic Purpose = "static"

	// PurposeDynamic holds runtime-discovered assets and CDN responses.
	PurposeDynamic Purpose = "dynamic"

	// PurposeAPI holds remote JSON API responses.
	PurposeAPI Purpose = "api"
)

// GenerationName builds the canonical generation name for a purpose and
// deploy version, e.g. GenerationName(PurposeStatic, "v3") == "static-v3".
func GenerationName(purpose Purpose, version string) string {
	return fmt.Sprintf("%s-%s", purpose, version)
}

// NormalizeKey canonicalizes a request URL into a cache key. The fragment is
// dropped (it never reaches the server); query parameters are preserved
// because they address distinct resources on the API tier.
func NormalizeKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}
	u.Fragment = ""
	return u.String(), nil
}

// storageKey builds the backend key for an entry.
// Format: site:<generation>:<normalized-url>
//
// Generation names never contain ':' so the key can be split back apart
// even though URLs do.
func storageKey(generation, key string) string {
	return strings.Join([]string{keyPrefix, generation, key}, ":")
}

// generationPrefix returns the backend key prefix covering one generation.
func generationPrefix(generation string) string {
	return keyPrefix + ":" + generation + ":"
}

// generationFromKey extracts the generation name from a backend key.
// Returns "" for keys outside the sitecache namespace.
func generationFromKey(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[0] != keyPrefix {
		return ""
	}
	return parts[1]
}
