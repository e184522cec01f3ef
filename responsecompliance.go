package httpcache

import (
	"net/http"
	"time"
)

// ResponseCompliance post-processes backend responses to repair protocol
// deficiencies, such as a missing Date header, before cacheability or
// storage decisions are made (spec §4.1.5).
type ResponseCompliance struct {
	Clock Clock
}

// Ensure repairs resp in place: adds a Date header (stamped at
// responseDate) if the origin omitted one, and strips entity headers that
// must not appear on a 304 response body-less reply.
func (c *ResponseCompliance) Ensure(originalReq *http.Request, resp *http.Response, responseDate time.Time) {
	if resp.Header.Get(headerDate) == "" {
		resp.Header.Set(headerDate, responseDate.UTC().Format(http.TimeFormat))
	}
	if resp.StatusCode == http.StatusNotModified {
		for _, h := range []string{"Content-Type", "Content-Length", "Content-Encoding", "Content-Range"} {
			resp.Header.Del(h)
		}
	}
}

// StashIfModifiedSince copies the request's If-Modified-Since value onto a
// 304 response as Last-Modified, needed for subsequent entry matching but
// never forwarded to clients (spec §4.1.5).
func (c *ResponseCompliance) StashIfModifiedSince(req *http.Request, resp *http.Response) {
	if resp.StatusCode != http.StatusNotModified {
		return
	}
	if ims := req.Header.Get(headerIfModSince); ims != "" && resp.Header.Get(headerLastMod) == "" {
		resp.Header.Set(headerLastMod, ims)
	}
}
