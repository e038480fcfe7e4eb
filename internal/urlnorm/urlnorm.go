// Package urlnorm implements the single normalization rule shared by the
// media-inliner's URL cache: every producer and every consumer of the cache
// must key on the exact same string, or a cache hit in one code path becomes
// a silent miss in the other.
package urlnorm

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize rewrites a protocol-relative URL to explicit http:// and then
// percent-encodes it the way JavaScript's encodeURI would: reserved and
// unreserved characters pass through untouched, everything else is escaped.
//
// A leading "//" always becomes "http://", never "https://" — external CDNs
// redirect upward to https on their own; normalizing downward would just
// cost an extra round trip through the Queue Manager.
func Normalize(raw string) string {
	rewritten := raw
	if strings.HasPrefix(rewritten, "//") {
		rewritten = "http://" + strings.TrimPrefix(rewritten, "//")
	}
	return encodeURI(rewritten)
}

// encodeURIUnreserved are the characters encodeURI never escapes, per the
// ECMA-262 definition, plus the URI reserved/punctuation characters that
// already appear unescaped in well-formed URLs (so re-encoding a URL is a
// no-op unless it holds a character outside this set, such as the % of an
// existing escape).
const encodeURIUnreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789" +
	"-_.!~*'()" + ";/?:@&=+$,#"

func encodeURI(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r < 0x80 && strings.ContainsRune(encodeURIUnreserved, r) {
			b.WriteRune(r)
			continue
		}
		for _, c := range []byte(string(r)) {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// Host extracts the hostname used to partition the Queue Manager's per-host
// state. An error here is the InvalidURL case from the component design: the
// caller should reject the request immediately rather than queue it.
func Host(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return strings.ToLower(host), nil
}
