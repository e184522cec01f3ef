package httpcache

import (
	"net/http"
	"strconv"
	"strings"
)

// cacheDirectives is a parsed Cache-Control header: directive name to
// value (empty string for flag directives such as no-store).
type cacheDirectives map[string]string

// parseCacheControl parses the Cache-Control header, keeping the first
// occurrence of a duplicated directive and logging the rest, and resolving
// a handful of mutually exclusive directive pairs in favor of the more
// restrictive one. Grounded on the teacher's cachecontrol.go
// parseCacheControl/detectConflictingDirectives.
func parseCacheControl(h http.Header) cacheDirectives {
	cc := cacheDirectives{}
	seen := map[string]bool{}
	for _, raw := range h.Values("Cache-Control") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			var name, value string
			if eq := strings.IndexByte(part, '='); eq >= 0 {
				name = strings.TrimSpace(part[:eq])
				value = strings.Trim(strings.TrimSpace(part[eq+1:]), `"`)
			} else {
				name = part
			}
			name = strings.ToLower(name)
			if seen[name] {
				GetLogger().Warn("duplicate Cache-Control directive, keeping first value",
					"directive", name, "ignored_value", value)
				continue
			}
			seen[name] = true
			cc[name] = value
		}
	}
	resolveConflicts(cc)
	return cc
}

// resolveConflicts applies the more restrictive of two mutually exclusive
// directives when both are present, per RFC 9111 Section 4.2.1.
func resolveConflicts(cc cacheDirectives) {
	if cc.has(directiveNoStore) && cc.has(directiveMaxAge) {
		GetLogger().Warn("conflicting Cache-Control directives: no-store + max-age, no-store wins")
	}
	if cc.has(directivePrivate) && cc.has(directivePublic) {
		GetLogger().Warn("conflicting Cache-Control directives: private + public, private wins")
		delete(cc, directivePublic)
	}
}

func (cc cacheDirectives) has(name string) bool {
	_, ok := cc[name]
	return ok
}

// seconds returns the directive's value parsed as non-negative seconds.
// ok is false if the directive is absent or its value is not a valid
// non-negative integer; an empty value (a bare flag-style directive used
// where a duration is expected, e.g. stale-if-error) reports ok=true with
// n=0 and isBare=true so callers can distinguish "no limit" from "zero".
func (cc cacheDirectives) seconds(name string) (n int64, isBare bool, ok bool) {
	v, present := cc[name]
	if !present {
		return 0, false, false
	}
	if v == "" {
		return 0, true, true
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil || parsed < 0 {
		return 0, false, false
	}
	return parsed, false, true
}

const (
	directiveNoStore              = "no-store"
	directiveNoCache              = "no-cache"
	directiveOnlyIfCached         = "only-if-cached"
	directiveMaxAge               = "max-age"
	directiveSMaxAge              = "s-maxage"
	directiveMaxStale             = "max-stale"
	directiveMinFresh             = "min-fresh"
	directivePrivate              = "private"
	directivePublic               = "public"
	directiveMustRevalidate       = "must-revalidate"
	directiveProxyRevalidate      = "proxy-revalidate"
	directiveMustUnderstand       = "must-understand"
	directiveStaleWhileRevalidate = "stale-while-revalidate"
	directiveStaleIfError         = "stale-if-error"
	directiveImmutable            = "immutable"

	headerPragma      = "Pragma"
	pragmaNoCache     = "no-cache"
	headerWarning     = "Warning"
	headerETag        = "ETag"
	headerLastMod     = "Last-Modified"
	headerIfNoneMatch = "If-None-Match"
	headerIfModSince  = "If-Modified-Since"
	headerAge         = "Age"
	headerVia         = "Via"
	headerLocation    = "Location"
	headerContentLoc  = "Content-Location"
	headerVary        = "Vary"
	headerDate        = "Date"
	headerAuthz       = "Authorization"
	headerContentLen  = "Content-Length"
	headerMaxForward  = "Max-Forwards"
)

// understoodStatusCodes enumerates the status codes this cache understands
// for the purposes of RFC 9111 Section 4.2.2's must-understand directive.
var understoodStatusCodes = map[int]bool{
	200: true, 203: true, 204: true, 206: true,
	300: true, 301: true, 404: true, 405: true,
	410: true, 414: true, 501: true,
}
