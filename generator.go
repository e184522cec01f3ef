package httpcache

import (
	"io"
	"net/http"
	"strings"
	"time"
)

// hopByHopHeaders are connection-specific headers that must never be
// merged from one hop's response into a stored entry (RFC 9110 Section
// 7.6.1). Grounded on the teacher's getEndToEndHeaders hopHeaders list.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailers":            true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// endToEndHeaders returns the names of resp's headers that are safe to
// merge into a stored entry on revalidation: everything except hop-by-hop
// headers and any header additionally named by a Connection header.
// Grounded on the teacher's getEndToEndHeaders.
func endToEndHeaders(header http.Header) []string {
	connectionHeaders := map[string]bool{}
	for _, v := range header[http.CanonicalHeaderKey("Connection")] {
		for _, name := range strings.Split(v, ",") {
			connectionHeaders[http.CanonicalHeaderKey(strings.TrimSpace(name))] = true
		}
	}

	var names []string
	for name := range header {
		canon := http.CanonicalHeaderKey(name)
		if hopByHopHeaders[canon] || connectionHeaders[canon] {
			continue
		}
		names = append(names, canon)
	}
	return names
}

// ResponseGenerator builds the *http.Response the executor hands back to
// the caller, whether drawn from a stored entry, synthesized as an error,
// or produced by merging a 304 into a stored entry (spec §4.1 Phase 4/5).
// Grounded on the teacher's httpcache.go handleNotModifiedResponse.
type ResponseGenerator struct {
	Clock Clock
}

// Response materializes entry as an *http.Response for req, with a fresh
// Age header computed via policy.
func (g *ResponseGenerator) Response(req *http.Request, entry *CacheEntry, policy *ValidityPolicy) (*http.Response, error) {
	body, length, err := openBody(entry.Body)
	if err != nil {
		return nil, &StorageError{Op: "open-body", Err: err}
	}
	header := entry.Header.Clone()
	age := policy.AgeSecs(entry, policy.Clock.Now())
	header.Set(headerAge, formatAgeSeconds(age))

	return &http.Response{
		Status:        entry.Reason,
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          body,
		ContentLength: length,
		Request:       req,
	}, nil
}

// MergeNotModified folds a 304 response's end-to-end headers — including
// Date, so the refreshed entry's age is computed from the revalidation
// response rather than the stale original — into a copy of entry and
// returns that refreshed copy, ready to be re-stored and served; entry
// itself is left unchanged.
func (g *ResponseGenerator) MergeNotModified(entry *CacheEntry, notModified *http.Response, responseReceived time.Time) *CacheEntry {
	merged := entry.Clone()
	for _, name := range endToEndHeaders(notModified.Header) {
		merged.Header[name] = append([]string(nil), notModified.Header[name]...)
	}
	merged.ResponseReceived = responseReceived
	return merged
}

// NotModified synthesizes a 304 Not Modified response for req against
// entry, used when this cache itself answers a conditional request from
// its own store (spec §4.1.5).
func (g *ResponseGenerator) NotModified(req *http.Request, entry *CacheEntry) *http.Response {
	header := http.Header{}
	for _, name := range []string{headerETag, headerLastMod, "Cache-Control", "Expires", "Vary", headerDate} {
		if v := entry.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}
	return &http.Response{
		Status:     "304 Not Modified",
		StatusCode: http.StatusNotModified,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     header,
		Body:       http.NoBody,
		Request:    req,
	}
}

// ErrorForRequest synthesizes a response reporting that req could not be
// satisfied, for cases the executor must answer directly rather than by
// forwarding: a fatal noncompliance, an only-if-cached miss, or a
// self-addressed probe (spec §4.1 Phase 0/2).
func (g *ResponseGenerator) ErrorForRequest(req *http.Request, statusCode int, reason string) *http.Response {
	return &http.Response{
		Status:     http.StatusText(statusCode),
		StatusCode: statusCode,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{"Content-Length": []string{"0"}},
		Body:       http.NoBody,
		Request:    req,
	}
}

func openBody(res Resource) (io.ReadCloser, int64, error) {
	if res == nil {
		return http.NoBody, 0, nil
	}
	rc, err := res.Reader()
	if err != nil {
		return nil, 0, err
	}
	return rc, res.Len(), nil
}
