package httpcache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ValidityPolicy computes age, freshness lifetime, staleness, and
// stale-serving eligibility of a stored CacheEntry, per RFC 9111 Section 4.
// Grounded on the teacher's age.go (calculateAge) and freshness.go
// (calculateLifetime / stale-while-revalidate / stale-if-error handling).
type ValidityPolicy struct {
	Clock       Clock
	SharedCache bool
	// DisableHTTP10QueryHeuristic, when true, suppresses the Last-Modified
	// heuristic freshness lifetime for HTTP/1.0 responses whose request
	// URI carries a query string (RFC 9111 Section 4.2.2 guidance for
	// legacy origins that may serve dynamic content at such URIs).
	DisableHTTP10QueryHeuristic bool
}

// entryDate returns the entry's Date header, falling back to
// ResponseReceived if the header is missing or unparseable (a repaired
// entry should always have one by the time it is stored — see
// ResponseCompliance.Ensure — but policy code must not assume it).
func (p *ValidityPolicy) entryDate(e *CacheEntry) time.Time {
	if v := e.Header.Get(headerDate); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			return t
		}
	}
	return e.ResponseReceived
}

// AgeSecs implements the RFC 9111 Section 4.2.3 age calculation:
//
//	apparent_age      = max(0, response_time - date_value)
//	response_delay    = response_time - request_time
//	corrected_age     = age_value + response_delay
//	corrected_initial = max(apparent_age, corrected_age)
//	resident_time     = now - response_time
//	current_age       = corrected_initial + resident_time
func (p *ValidityPolicy) AgeSecs(e *CacheEntry, now time.Time) time.Duration {
	date := p.entryDate(e)
	responseTime := e.ResponseReceived

	apparentAge := time.Duration(0)
	if responseTime.After(date) {
		apparentAge = responseTime.Sub(date)
	}

	ageValue := time.Duration(0)
	if v := e.Header.Get(headerAge); v != "" {
		if secs, _, ok := (cacheDirectives{"age": v}).seconds("age"); ok {
			ageValue = time.Duration(secs) * time.Second
		}
	}

	responseDelay := time.Duration(0)
	if !e.RequestSent.IsZero() && responseTime.After(e.RequestSent) {
		responseDelay = responseTime.Sub(e.RequestSent)
	}

	correctedAge := ageValue + responseDelay
	correctedInitial := apparentAge
	if correctedAge > correctedInitial {
		correctedInitial = correctedAge
	}

	residentTime := now.Sub(responseTime)
	if residentTime < 0 {
		residentTime = 0
	}

	age := correctedInitial + residentTime
	if age < 0 {
		age = 0
	}
	return age
}

// FreshnessLifetimeSecs computes the entry's freshness lifetime from
// s-maxage (if this is a shared cache), max-age, Expires - Date, or, when
// none of those is present, a heuristic of 10% of Date - Last-Modified.
func (p *ValidityPolicy) FreshnessLifetimeSecs(e *CacheEntry) time.Duration {
	cc := parseCacheControl(e.Header)

	if p.SharedCache {
		if secs, _, ok := cc.seconds(directiveSMaxAge); ok {
			return time.Duration(secs) * time.Second
		}
	}
	if secs, _, ok := cc.seconds(directiveMaxAge); ok {
		return time.Duration(secs) * time.Second
	}

	if expiresHdr := e.Header.Get("Expires"); expiresHdr != "" {
		if expires, err := http.ParseTime(expiresHdr); err == nil {
			date := p.entryDate(e)
			if lifetime := expires.Sub(date); lifetime > 0 {
				return lifetime
			}
			return 0
		}
	}

	if p.DisableHTTP10QueryHeuristic && e.Proto == "HTTP/1.0" && strings.Contains(e.RequestURI, "?") {
		return 0
	}

	// RFC 9111 Section 4.2.2 heuristic: 10% of the time since Last-Modified,
	// when no explicit freshness information is present.
	if lastModHdr := e.Header.Get(headerLastMod); lastModHdr != "" {
		if lastMod, err := http.ParseTime(lastModHdr); err == nil {
			date := p.entryDate(e)
			if age := date.Sub(lastMod); age > 0 {
				return age / 10
			}
		}
	}
	return 0
}

// StalenessSecs returns max(0, age - freshness lifetime).
func (p *ValidityPolicy) StalenessSecs(e *CacheEntry, now time.Time) time.Duration {
	staleness := p.AgeSecs(e, now) - p.FreshnessLifetimeSecs(e)
	if staleness < 0 {
		return 0
	}
	return staleness
}

// IsFresh reports whether the entry has not yet exceeded its freshness
// lifetime as of now.
func (p *ValidityPolicy) IsFresh(e *CacheEntry, now time.Time) bool {
	return p.AgeSecs(e, now) < p.FreshnessLifetimeSecs(e)
}

// MustRevalidate reports whether the entry's response carries
// Cache-Control: must-revalidate.
func (p *ValidityPolicy) MustRevalidate(e *CacheEntry) bool {
	return parseCacheControl(e.Header).has(directiveMustRevalidate)
}

// ProxyRevalidate reports whether the entry's response carries
// Cache-Control: proxy-revalidate (meaningful only for shared caches).
func (p *ValidityPolicy) ProxyRevalidate(e *CacheEntry) bool {
	return parseCacheControl(e.Header).has(directiveProxyRevalidate)
}

// MayReturnStaleWhileRevalidating reports whether stale-while-revalidate=N
// is present and the entry's current staleness is within N.
func (p *ValidityPolicy) MayReturnStaleWhileRevalidating(e *CacheEntry, now time.Time) bool {
	if p.MustRevalidate(e) || p.ProxyRevalidate(e) {
		return false
	}
	cc := parseCacheControl(e.Header)
	n, _, ok := cc.seconds(directiveStaleWhileRevalidate)
	if !ok {
		return false
	}
	return p.StalenessSecs(e, now) <= time.Duration(n)*time.Second
}

// MayReturnStaleIfError reports whether stale-if-error=N (request or
// entry) permits serving e despite an origin failure, at staleness now.
func (p *ValidityPolicy) MayReturnStaleIfError(reqHeader http.Header, e *CacheEntry, now time.Time) bool {
	staleness := p.StalenessSecs(e, now)

	check := func(cc cacheDirectives) (allow bool, found bool) {
		n, isBare, ok := cc.seconds(directiveStaleIfError)
		if !ok {
			return false, false
		}
		if isBare {
			return true, true
		}
		return staleness <= time.Duration(n)*time.Second, true
	}

	if allow, found := check(parseCacheControl(reqHeader)); found {
		return allow
	}
	if allow, found := check(parseCacheControl(e.Header)); found {
		return allow
	}
	return false
}

// formatAgeSeconds formats age as an Age header value: whole seconds,
// rounded down, per RFC 9111 Section 4.2.3.
func formatAgeSeconds(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	return strconv.FormatInt(int64(age/time.Second), 10)
}

// maxStaleTolerance returns the request's max-stale tolerance and whether
// it was present. A present directive with no value tolerates any
// staleness (reported as unlimited=true with a zero tolerance).
func maxStaleTolerance(reqHeader http.Header) (tolerance time.Duration, unlimited bool, present bool) {
	cc := parseCacheControl(reqHeader)
	n, isBare, ok := cc.seconds(directiveMaxStale)
	if !ok {
		return 0, false, false
	}
	if isBare {
		return 0, true, true
	}
	return time.Duration(n) * time.Second, false, true
}
