package httpcache

import "net/http"

// storableStatusCodes are status codes this cache will store by default
// even without explicit freshness information, per RFC 9111 Section 3.
var storableStatusCodes = map[int]bool{
	http.StatusOK:                   true,
	http.StatusNonAuthoritativeInfo: true,
	http.StatusNoContent:            true,
	http.StatusMultipleChoices:      true,
	http.StatusMovedPermanently:     true,
	http.StatusNotFound:             true,
	http.StatusMethodNotAllowed:     true,
	http.StatusGone:                 true,
	http.StatusRequestURITooLong:    true,
}

// ResponseCacheability decides whether a backend response may be stored,
// per RFC 9111 Section 3 and the must-understand/must-revalidate/shared-
// cache-authorization rules of Section 4.2.2 and 3.5. Grounded on the
// teacher's cachecontrol.go canStore and httpcache.go's Authorization
// handling.
type ResponseCacheability struct {
	SharedCache bool

	// Cache303 permits storing 303 See Other responses, which are not
	// storable by default (RFC 9111 Section 3 does not list 303 among the
	// understood-by-default statuses). Set via With303CachingEnabled.
	Cache303 bool
}

// IsStorable reports whether resp, returned for req, may be stored at all.
func (c *ResponseCacheability) IsStorable(req *http.Request, resp *http.Response) bool {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return false
	}

	cc := parseCacheControl(resp.Header)
	if cc.has(directiveNoStore) {
		return false
	}
	if c.SharedCache && cc.has(directivePrivate) {
		return false
	}

	if cc.has(directiveMustUnderstand) && !understoodStatusCodes[resp.StatusCode] {
		return false
	}

	if c.SharedCache && req.Header.Get(headerAuthz) != "" {
		if !cc.has(directiveMustRevalidate) && !cc.has(directivePublic) && !cc.has(directiveSMaxAge) {
			return false
		}
	}

	storable := storableStatusCodes[resp.StatusCode] || (c.Cache303 && resp.StatusCode == http.StatusSeeOther)
	if !storable {
		return false
	}

	if _, _, ok := cc.seconds(directiveMaxAge); ok {
		return true
	}
	if c.SharedCache {
		if _, _, ok := cc.seconds(directiveSMaxAge); ok {
			return true
		}
	}
	if cc.has(directivePublic) {
		return true
	}
	if resp.Header.Get("Expires") != "" {
		return true
	}
	// A 200 with Last-Modified but no explicit freshness may still be
	// stored; freshness falls back to the heuristic in ValidityPolicy.
	if resp.StatusCode == http.StatusOK && resp.Header.Get(headerLastMod) != "" {
		return true
	}
	return storable
}

// RequiresRevalidationOnUse reports whether the stored response must not be
// served, even while nominally fresh, without contacting the origin first
// — reserved for future no-cache-with-field-name handling; currently
// equivalent to a bare Cache-Control: no-cache on the response.
func (c *ResponseCacheability) RequiresRevalidationOnUse(e *CacheEntry) bool {
	cc := parseCacheControl(e.Header)
	v, present := cc["no-cache"]
	return present && v == ""
}
