package process

import (
	"net/url"
	"strings"
)

// trackingParamPrefixes are query parameter prefixes stripped during URL
// normalization. Parameters like utm_source and fbclid identify campaigns,
// not content, and would defeat exact-URL deduplication.
var trackingParamPrefixes = []string{"utm_", "spm", "fbclid", "gclid", "ref"}

// NormalizeURL produces the canonical form of a URL used for exact-match
// deduplication and click aggregation: scheme and host lowercased, tracking
// parameters removed, remaining query sorted, trailing slash and fragment
// dropped. Idempotent; returns the input unchanged when it does not parse
// as an absolute URL.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return trimmed
	}

	kept := url.Values{}
	for key, values := range parsed.Query() {
		if isTrackingParam(key) {
			continue
		}
		for _, v := range values {
			if v == "" {
				continue
			}
			kept.Add(key, v)
		}
	}

	path := strings.TrimRight(parsed.Path, "/")
	if path == "" {
		path = "/"
	}

	rebuilt := url.URL{
		Scheme: strings.ToLower(parsed.Scheme),
		Host:   strings.ToLower(parsed.Host),
		Path:   path,
		// Encode sorts keys, keeping the canonical form stable.
		RawQuery: kept.Encode(),
	}
	return rebuilt.String()
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	for _, prefix := range trackingParamPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
