package tracking

import (
	"net/url"
	"strings"
)

// Builder constructs signed redirect URLs for outbound article links.
// A Builder with an empty base URL or secret is disabled and returns the
// target URL unchanged, so rendering never depends on tracker configuration.
type Builder struct {
	baseURL string
	signer  *Signer
	channel string
}

// NewBuilder creates a Builder that emits links under baseURL + "/r".
func NewBuilder(baseURL, secret, channel string) *Builder {
	return &Builder{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  NewSigner(secret),
		channel: channel,
	}
}

// Enabled reports whether tracking links will actually be generated.
func (b *Builder) Enabled() bool {
	return b.baseURL != "" && len(b.signer.secret) > 0
}

// TrackingURL returns a signed /r redirect URL for the given click params.
// The builder's channel is applied when the params leave it empty.
func (b *Builder) TrackingURL(params ClickParams) string {
	if !b.Enabled() || params.TargetURL == "" {
		return params.TargetURL
	}
	if params.Channel == "" {
		params.Channel = b.channel
	}

	values := params.Values()
	values.Set("sig", b.signer.Sign(values))
	return b.baseURL + "/r?" + values.Encode()
}

// ParseRedirectTarget validates that a target URL uses http or https.
func ParseRedirectTarget(raw string) (string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	return parsed.String(), true
}
