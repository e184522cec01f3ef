package httpcache

import "net/http"

// RFC 7234 Section 5.5 Warning codes. RFC 9111 has obsoleted the Warning
// header field, but it remains the cache's only out-of-band signal that a
// response is stale or was served despite a failed revalidation, so the
// cache still emits it.
const (
	warningResponseIsStale    = `110 localhost "Response is stale"`
	warningRevalidationFailed = `111 localhost "Revalidation failed"`
)

func addWarning(h http.Header, code string) {
	h.Add(headerWarning, code)
}

func addStaleWarning(h http.Header) {
	addWarning(h, warningResponseIsStale)
}

func addRevalidationFailedWarning(h http.Header) {
	addWarning(h, warningRevalidationFailed)
}
