// Package tracking provides HMAC-SHA256 signing and verification for
// click-tracking redirect URLs. The digest builder signs each outbound link
// and the redirect handler verifies the signature before following it.
package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// SignatureLength is the number of hex characters in a signature. The full
// HMAC-SHA256 digest is kept; shorter signatures are rejected outright.
const SignatureLength = 64

// ClickParams holds the query parameters that identify a tracked click.
type ClickParams struct {
	TargetURL   string // u
	SourceID    string // sid
	ArticleID   string // aid
	DigestDate  string // d, YYYY-MM-DD
	Channel     string // ch
	PrimaryType string // pt
}

// Values returns the params as url.Values, omitting empty fields.
func (p ClickParams) Values() url.Values {
	v := url.Values{}
	setIfPresent(v, "u", p.TargetURL)
	setIfPresent(v, "sid", p.SourceID)
	setIfPresent(v, "aid", p.ArticleID)
	setIfPresent(v, "d", p.DigestDate)
	setIfPresent(v, "ch", p.Channel)
	setIfPresent(v, "pt", p.PrimaryType)
	return v
}

func setIfPresent(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// CanonicalMessage builds the string that gets signed: parameters with
// non-blank values sorted by key and joined as percent-encoded key=value
// pairs. Encoding before signing keeps the message identical on both the
// signing and verifying side regardless of how the URL was assembled.
func CanonicalMessage(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sig" || strings.TrimSpace(params.Get(k)) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(params.Get(k)))
	}
	return strings.Join(pairs, "&")
}

// Signer signs and verifies click parameters with a shared secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer with the given secret string.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign computes the full hex HMAC-SHA256 of the canonical message.
func (s *Signer) Sign(params url.Values) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(CanonicalMessage(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature against the canonical message in constant time.
// Signatures that are not exactly SignatureLength hex characters are rejected.
func (s *Signer) Verify(params url.Values, signature string) bool {
	if len(signature) != SignatureLength {
		return false
	}
	expected := s.Sign(params)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// VerifyWithLegacyFallback first verifies the signature over all params; if
// that fails and a pt param is present, it retries without pt so that links
// signed before the primary-type param existed keep working.
func (s *Signer) VerifyWithLegacyFallback(params url.Values, signature string) bool {
	if s.Verify(params, signature) {
		return true
	}
	if params.Get("pt") == "" {
		return false
	}
	legacy := url.Values{}
	for k, vs := range params {
		if k == "pt" {
			continue
		}
		for _, v := range vs {
			legacy.Add(k, v)
		}
	}
	return s.Verify(legacy, signature)
}
