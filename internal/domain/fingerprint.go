package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode"
)

// Fingerprint identifies one logical article regardless of which source or
// crawl produced it. Equal fingerprints mean the same article.
type Fingerprint string

// Tracking parameters stripped during URL canonicalization, in addition to
// the utm_* family.
var trackingQueryKeys = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"igshid":  {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"ref_src": {},
	"s":       {},
}

// CandidateKey is the derived identity of a raw candidate: the canonical
// link, the hash of its normalized body, and the fingerprint over both.
type CandidateKey struct {
	Fingerprint  Fingerprint
	CanonicalURL string
	BodyHash     string
}

// KeyOf canonicalizes a candidate's link, normalizes its body and computes
// the resulting fingerprint. Candidates whose link cannot be parsed as an
// absolute http(s) URL are rejected.
func KeyOf(c RawCandidate) (CandidateKey, error) {
	canonical, err := CanonicalizeURL(c.Link)
	if err != nil {
		return CandidateKey{}, fmt.Errorf("canonicalize %q: %w", c.Link, err)
	}

	body := NormalizeBody(c.Body)
	bodySum := sha256.Sum256([]byte(body))
	printSum := sha256.Sum256([]byte(canonical + "\n" + body))

	return CandidateKey{
		Fingerprint:  Fingerprint(hex.EncodeToString(printSum[:])),
		CanonicalURL: canonical,
		BodyHash:     hex.EncodeToString(bodySum[:]),
	}, nil
}

// CanonicalizeURL lowercases scheme and host, drops fragments, default ports
// and tracking query parameters, collapses duplicate slashes, and sorts the
// surviving query parameters so equivalent links compare equal.
func CanonicalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty link")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("missing host")
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" {
		defaultPort := (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443")
		if !defaultPort {
			host = host + ":" + port
		}
	}
	parsed.Host = host

	parsed.Fragment = ""
	path := parsed.Path
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	// Escaping is re-derived from the decoded path, so equivalent escaped
	// and literal forms of the same link converge.
	parsed.Path = path
	parsed.RawPath = ""

	q := parsed.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := trackingQueryKeys[lower]; ok {
			q.Del(key)
		}
	}
	if len(q) > 0 {
		keys := make([]string, 0, len(q))
		for key := range q {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		reordered := url.Values{}
		for _, key := range keys {
			values := q[key]
			sort.Strings(values)
			for _, value := range values {
				reordered.Add(key, value)
			}
		}
		parsed.RawQuery = reordered.Encode()
	} else {
		parsed.RawQuery = ""
	}

	return parsed.String(), nil
}

// NormalizeBody lowercases the body, collapses runs of whitespace into single
// spaces and drops control runes, so cosmetic reflows do not change the hash.
func NormalizeBody(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	lastSpace := false
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}
