// Package scanner implements the ReferenceScanner (§4.5): finding every
// occurrence of a legacy CDN domain inside a content string and rewriting
// resolved URLs to the CMS's __GHOST_URL__ token. The terminator rule needs
// a lookahead the standard library's regexp cannot express, so matching is
// done with github.com/dlclark/regexp2.
package scanner

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// terminatorAlternation is the alternation of characters/sequences that end a match:
// a double-quote, closing parenthesis, single-quote, a comma immediately
// followed by http(s)://, whitespace, <, backslash, or &quot;.
const terminatorAlternation = `["')<\\]|&quot;|,(?=https?://)|\s`

// Find returns every occurrence of domain in content, each extended to the
// longest non-greedy run up to (but not including) a terminator, with a
// trailing comma stripped. The caller is responsible for deduplication.
func Find(content, domain string) ([]string, error) {
	pattern := regexp2.Escape(domain) + `.*?(?=` + terminatorAlternation + `|$)`
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase|regexp2.Multiline)
	if err != nil {
		return nil, fmt.Errorf("compile scan pattern for domain %q: %w", domain, err)
	}

	var matches []string
	m, err := re.FindStringMatch(content)
	for m != nil && err == nil {
		matches = append(matches, strings.TrimSuffix(m.String(), ","))
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		return nil, fmt.Errorf("scan for domain %q: %w", domain, err)
	}
	return matches, nil
}

// Rewrite replaces every literal occurrence of src in content with
// __GHOST_URL__<storedPath>, escaping src's regex metacharacters first.
func Rewrite(content, src, storedPath string) (string, error) {
	pattern := regexp2.Escape(src)
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return "", fmt.Errorf("compile rewrite pattern: %w", err)
	}

	replacement := strings.ReplaceAll("__GHOST_URL__"+storedPath, "$", "$$")
	out, err := re.Replace(content, replacement, -1, -1)
	if err != nil {
		return "", fmt.Errorf("rewrite references to %q: %w", src, err)
	}
	return out, nil
}

// Dedup preserves first-seen order while removing duplicate entries.
func Dedup(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
