package httpcache

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// cacheKeyHeaders widens the Fingerprint with additional request header
// values (e.g. Authorization per user, Accept-Language per locale) beyond
// the Vary mechanism. Grounded on the teacher's CacheKeyHeaders.
var (
	cacheKeyHeadersMu sync.RWMutex
	cacheKeyHeaders   []string
)

// setCacheKeyHeaders installs the set of additional request headers to
// widen the cache key with; see WithCacheKeyHeaders.
func setCacheKeyHeaders(headers []string) {
	canon := make([]string, len(headers))
	for i, h := range headers {
		canon[i] = http.CanonicalHeaderKey(strings.TrimSpace(h))
	}
	sort.Strings(canon)
	cacheKeyHeadersMu.Lock()
	cacheKeyHeaders = canon
	cacheKeyHeadersMu.Unlock()
}

// Fingerprint is the lookup key for a cacheable request: target host, port
// and scheme, the canonical request URI, and the method. Variant lookup is
// keyed by Fingerprint plus a variant hash.
type Fingerprint struct {
	Scheme string
	Host   string
	Port   string
	URI    string
	Method string
	// Extra carries the canonicalized values of any configured
	// cache-key-widening headers (see WithCacheKeyHeaders), joined so
	// distinct values produce distinct fingerprints.
	Extra string
}

// fingerprintFor derives the Fingerprint of a request, applying any
// cache-key header widening installed via WithCacheKeyHeaders (package-level
// state shared by every Transport in the process).
func fingerprintFor(req *http.Request) Fingerprint {
	port := req.URL.Port()
	if port == "" {
		if req.URL.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return Fingerprint{
		Scheme: req.URL.Scheme,
		Host:   req.URL.Hostname(),
		Port:   port,
		URI:    req.URL.RequestURI(),
		Method: req.Method,
		Extra:  extraKeyFor(req),
	}
}

func extraKeyFor(req *http.Request) string {
	cacheKeyHeadersMu.RLock()
	headers := cacheKeyHeaders
	cacheKeyHeadersMu.RUnlock()
	if len(headers) == 0 {
		return ""
	}
	parts := make([]string, 0, len(headers))
	for _, h := range headers {
		parts = append(parts, h+"="+req.Header.Get(h))
	}
	return strings.Join(parts, "|")
}

// String renders the Fingerprint as a stable storage key.
func (f Fingerprint) String() string {
	key := f.Method + " " + f.Scheme + "://" + f.Host + ":" + f.Port + f.URI
	if f.Extra != "" {
		key += "|" + f.Extra
	}
	return key
}

// Resource is an opaque, externally materialized response body handle.
// Ownership of the underlying bytes belongs to the ResourceFactory that
// created it; CacheEntry only holds a reference.
type Resource interface {
	// Reader opens a fresh reader over the resource's bytes.
	Reader() (io.ReadCloser, error)
	// Len returns the resource's length in bytes.
	Len() int64
}

// ResourceFactory materializes response bodies into durable storage. It is
// an external collaborator: the cache core only calls Create; Retain and
// Release are not called by the core.
type ResourceFactory interface {
	// Create copies r fully into durable storage and returns a handle to it.
	Create(ctx context.Context, r io.Reader) (Resource, error)
	// Retain increments the reference count of an existing resource, used
	// when a variant set starts sharing a body handle.
	Retain(ctx context.Context, res Resource) error
	// Release decrements the reference count of res, freeing it once it
	// reaches zero.
	Release(ctx context.Context, res Resource) error
}

// CacheEntry is a stored response: the origin request method and effective
// URI, the status code and reason, response headers, the body resource
// handle, and the local-clock timestamps needed for age calculation.
//
// Invariant: RequestSent <= ResponseReceived. The Date header, if present
// and parseable, is the authoritative origin timestamp for age
// calculations; Header preserves the order of values within each header
// name (Go's http.Header does not preserve insertion order across
// different header names).
type CacheEntry struct {
	Method           string
	RequestURI       string
	StatusCode       int
	Reason           string
	Proto            string
	Header           http.Header
	Body             Resource
	RequestSent      time.Time
	ResponseReceived time.Time
}

// Clone returns a deep-enough copy of e suitable for handing to a caller
// without letting them mutate the stored entry's header map.
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Header = e.Header.Clone()
	return &clone
}

// VariantEntry associates a variant key (the canonical hash of the varying
// request header values) with a stored CacheEntry and its validator ETag.
// Each variant must carry a non-empty strong or weak ETag; duplicate ETags
// within one variant set are not permitted.
type VariantEntry struct {
	ETag  string
	Entry *CacheEntry
}

// parentEntry is the façade's unit of storage per Fingerprint: either a
// single Direct entry (no Vary), or a set of Variants keyed by variant hash.
type parentEntry struct {
	Fingerprint Fingerprint
	Direct      *CacheEntry
	Variants    map[string]*VariantEntry

	// LastVariant is the variant key this fingerprint most recently
	// resolved to, so a future GetSuitable can try it first rather than
	// ranging over Variants in map order. Set via HttpCache.ReuseVariantEntryFor.
	LastVariant string
}

func (p *parentEntry) hasVariants() bool {
	return p != nil && len(p.Variants) > 0
}
