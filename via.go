package httpcache

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// viaPseudonym identifies this cache in the Via header chain, per RFC 9110
// Section 7.6.3.
const viaPseudonym = "httpcache"

var (
	viaMu        sync.Mutex
	viaCache     = map[string]string{}
	viaProductID = "httpcache/1"
)

// setViaProductToken sets the "<product>/<release>" fragment included in
// this cache's Via entries and invalidates the per-version memo table so
// it is reformatted on next use.
func setViaProductToken(token string) {
	viaMu.Lock()
	viaProductID = token
	viaCache = map[string]string{}
	viaMu.Unlock()
}

// addVia appends this cache's Via entry to req, memoizing the formatted
// protocol/version prefix so repeated requests on the same HTTP version
// don't reformat it each time.
func addVia(req *http.Request) {
	key := req.Proto
	viaMu.Lock()
	entry, ok := viaCache[key]
	if !ok {
		entry = formatVia(req.ProtoMajor, req.ProtoMinor)
		viaCache[key] = entry
	}
	viaMu.Unlock()

	if existing := req.Header.Get(headerVia); existing != "" {
		req.Header.Set(headerVia, existing+", "+entry)
	} else {
		req.Header.Set(headerVia, entry)
	}
}

// addViaToResponse appends this cache's Via entry to resp, used when
// forwarding a backend response back to the caller (spec §6).
func addViaToResponse(resp *http.Response) {
	key := resp.Proto
	viaMu.Lock()
	entry, ok := viaCache[key]
	if !ok {
		entry = formatVia(resp.ProtoMajor, resp.ProtoMinor)
		viaCache[key] = entry
	}
	viaMu.Unlock()

	if existing := resp.Header.Get(headerVia); existing != "" {
		resp.Header.Set(headerVia, existing+", "+entry)
	} else {
		resp.Header.Set(headerVia, entry)
	}
}

func formatVia(major, minor int) string {
	version := strconv.Itoa(major)
	if minor > 0 || major == 1 {
		version += "." + strconv.Itoa(minor)
	}
	return version + " " + viaPseudonym + " (" + viaProductID + " (cache))"
}

// hasVia reports whether header already names this cache's pseudonym.
// The executor does not call it; requests carrying this cache's own Via
// entry are not treated as loops.
func hasVia(header http.Header) bool {
	for _, raw := range header.Values(headerVia) {
		if strings.Contains(raw, viaPseudonym) {
			return true
		}
	}
	return false
}
