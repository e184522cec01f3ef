// Package httpcache implements the executor stage of a transparent,
// client-side HTTP/1.1 cache: it intercepts requests, decides whether a
// locally stored response can satisfy them, validates or refreshes stored
// responses against the origin, and stores newly received responses subject
// to HTTP caching rules (conditional compliance with RFC 9111).
//
// The byte-level HTTP transport, the physical storage backend, and the
// resource factory that materializes response bodies are external
// collaborators; this package commands them through the Proceed, Store, and
// ResourceFactory interfaces respectively.
package httpcache
