package httpcache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
)

// headerXVariedPrefix namespaces the original request's varied header
// values onto the stored response, so a later request can be matched
// against them without keeping a separate copy of the original request.
// Grounded on the teacher's vary.go.
const headerXVariedPrefix = "X-Varied-"

// SuitabilityChecker decides whether a stored CacheEntry may be used to
// satisfy an incoming request: Vary matching and conditional-request
// precondition evaluation (spec §4.1 Phase 3). Grounded on the teacher's
// vary.go.
type SuitabilityChecker struct{}

// StashVaryHeaders records, on entry's header, the normalized values the
// original request carried for each header named in the response's Vary
// header, for use by VaryMatches on subsequent requests.
func (c *SuitabilityChecker) StashVaryHeaders(entry *CacheEntry, originalReq *http.Request) {
	for _, name := range headerAllCommaSepValues(entry.Header, headerVary) {
		name = http.CanonicalHeaderKey(strings.TrimSpace(name))
		if name == "" || name == "*" {
			continue
		}
		entry.Header.Set(headerXVariedPrefix+name, normalizeHeaderValue(originalReq.Header.Get(name)))
	}
}

// VaryMatches reports whether req's varied header values match the ones
// stashed on entry, per RFC 9111 Section 4.1. A stored "Vary: *" never
// matches.
func (c *SuitabilityChecker) VaryMatches(entry *CacheEntry, req *http.Request) bool {
	varyHeaders := headerAllCommaSepValues(entry.Header, headerVary)
	for _, name := range varyHeaders {
		if strings.TrimSpace(name) == "*" {
			return false
		}
	}
	for _, name := range varyHeaders {
		name = http.CanonicalHeaderKey(strings.TrimSpace(name))
		if name == "" || name == "*" {
			continue
		}
		reqValue := normalizeHeaderValue(req.Header.Get(name))
		storedValue := entry.Header.Get(headerXVariedPrefix + name)
		if reqValue != storedValue {
			return false
		}
	}
	return true
}

// normalizeHeaderValue collapses internal whitespace runs to a single
// space and removes the space after list-item commas, so equivalent
// header values compare equal.
func normalizeHeaderValue(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	prevSpace := false
	for _, r := range value {
		switch r {
		case ' ', '\t', '\n', '\r':
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.ReplaceAll(b.String(), ", ", ",")
}

// headerAllCommaSepValues returns the comma-separated items across all
// occurrences of header name in h, trimmed of surrounding whitespace.
func headerAllCommaSepValues(h http.Header, name string) []string {
	var out []string
	for _, raw := range h.Values(name) {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// VariantKey derives a stable storage key for the variant of a response
// carrying the given Vary header names, as seen by req. Grounded on the
// teacher's vary.go cacheKeyWithVary.
func (c *SuitabilityChecker) VariantKey(varyHeaderNames []string, req *http.Request) string {
	if len(varyHeaderNames) == 0 {
		return "direct"
	}
	parts := make([]string, 0, len(varyHeaderNames))
	for _, name := range varyHeaderNames {
		name = http.CanonicalHeaderKey(strings.TrimSpace(name))
		if name == "" || name == "*" {
			continue
		}
		parts = append(parts, name+":"+normalizeHeaderValue(req.Header.Get(name)))
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// IsConditional reports whether req carries a validator precondition
// (If-None-Match or If-Modified-Since) that the executor must evaluate
// against a cache hit before deciding whether to forward to the origin.
func (c *SuitabilityChecker) IsConditional(req *http.Request) bool {
	return req.Header.Get(headerIfNoneMatch) != "" || req.Header.Get(headerIfModSince) != ""
}

// PreconditionsMatch reports whether req's conditional headers are
// satisfied by entry, meaning the client's cached copy (or this cache's
// copy) is still current and a 304 may be synthesized. If-None-Match, when
// present, takes precedence over If-Modified-Since per RFC 9110 §13.1.
func (c *SuitabilityChecker) PreconditionsMatch(req *http.Request, entry *CacheEntry) bool {
	if inm := req.Header.Get(headerIfNoneMatch); inm != "" {
		return etagListMatches(inm, entry.Header.Get(headerETag))
	}
	if ims := req.Header.Get(headerIfModSince); ims != "" {
		reqTime, err := http.ParseTime(ims)
		if err != nil {
			return false
		}
		lastMod := entry.Header.Get(headerLastMod)
		if lastMod == "" {
			return false
		}
		entryTime, err := http.ParseTime(lastMod)
		if err != nil {
			return false
		}
		return !entryTime.After(reqTime)
	}
	return false
}

// etagListMatches reports whether stored (a single entity-tag) satisfies
// any entry in the comma-separated If-None-Match list, using the weak
// comparison function (RFC 9110 §8.8.3.2): "*" matches anything, and two
// tags match if their opaque-tag components are equal regardless of the
// weak (W/) prefix.
func etagListMatches(list, stored string) bool {
	if stored == "" {
		return false
	}
	if strings.TrimSpace(list) == "*" {
		return true
	}
	storedOpaque := etagOpaque(stored)
	for _, tag := range strings.Split(list, ",") {
		if etagOpaque(strings.TrimSpace(tag)) == storedOpaque {
			return true
		}
	}
	return false
}

// etagOpaque strips a leading weak-validator prefix (W/) from an
// entity-tag, leaving the quoted opaque-tag for comparison.
func etagOpaque(tag string) string {
	return strings.TrimPrefix(tag, "W/")
}
