package httpcache

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Proceed is the next pipeline stage: it performs req against the origin
// (or a further proxy hop) and returns its response. The executor never
// mutates req's method or target; it clones before adding validators.
type Proceed func(ctx context.Context, req *http.Request) (*http.Response, error)

// Scope carries per-call routing metadata the surrounding pipeline
// attaches to a request; the core only threads it through to Proceed.
type Scope struct {
	Route string
}

// ExecContext is the per-call attribute bag the executor writes its
// observable outcome into (spec §6).
type ExecContext struct {
	Status ResponseStatus
}

// CachingExecutor is the top-level state machine: the executor stage that
// intercepts requests, decides whether a stored response can satisfy
// them, revalidates or refreshes stored responses, and stores newly
// received responses, per RFC 9111 (spec §4.1). Grounded on the teacher's
// Transport.RoundTrip control flow, restructured as an explicit phased
// state machine per the decomposition this cache follows.
type CachingExecutor struct {
	Cache     *HttpCache
	Clock     Clock
	Metrics   MetricsCollector
	Async     *AsyncRevalidator
	Resources ResourceFactory

	RequestCompliance    RequestCompliance
	ResponseCompliance   ResponseCompliance
	RequestCacheability  RequestCacheability
	ResponseCacheability ResponseCacheability
	Suitability          SuitabilityChecker
	ConditionalBuilder    ConditionalRequestBuilder
	Generator             ResponseGenerator
	Validity              ValidityPolicy

	MaxObjectSize int64
	SharedCache   bool

	hits    int64
	misses  int64
	updates int64
}

// Counters returns the executor's monotonic hit/miss/update counts.
func (ex *CachingExecutor) Counters() (hits, misses, updates int64) {
	return atomic.LoadInt64(&ex.hits), atomic.LoadInt64(&ex.misses), atomic.LoadInt64(&ex.updates)
}

// Execute runs the full caching decision procedure for req and reports
// its outcome on ec.Status (spec §4.1).
func (ex *CachingExecutor) Execute(ctx context.Context, req *http.Request, scope Scope, proceed Proceed, ec *ExecContext) (*http.Response, error) {
	start := ex.Clock.Now()
	if ex.Metrics != nil {
		defer func() {
			ex.Metrics.RecordOutcome(ec.Status, ex.Clock.Now().Sub(start))
		}()
	}

	ec.Status = CacheMiss

	// Phase 0 — shortcuts.
	if ex.RequestCacheability.IsSelfProbe(req) {
		ec.Status = CacheModuleResponse
		return ex.Generator.ErrorForRequest(req, http.StatusNotImplemented, "Not Implemented"), nil
	}
	if fatal := ex.RequestCompliance.FatalErrors(req); len(fatal) > 0 {
		ec.Status = CacheModuleResponse
		return ex.Generator.ErrorForRequest(req, http.StatusBadRequest, fatal[0].Error()), nil
	}

	// Phase 1 — normalization.
	ex.RequestCompliance.Normalize(req)
	addVia(req)

	// Phase 2 — classification.
	if !ex.RequestCacheability.IsCacheable(req) {
		ec.Status = CacheMiss
		if ex.RequestCacheability.IsUnsafe(req) {
			ex.Cache.InvalidateForRequest(ctx, req)
		}
		return ex.deliverFromBackend(ctx, req, proceed, ec)
	}

	fp := fingerprintFor(req)

	// Phase 3 — lookup.
	parent, err := ex.Cache.Get(ctx, fp)
	if err != nil {
		return ex.failurePath(ctx, req, proceed, ec)
	}
	if parent == nil || (parent.Direct == nil && !parent.hasVariants()) {
		return ex.missPath(ctx, req, scope, proceed, fp, ec)
	}

	entry, ok, err := ex.Cache.GetSuitable(ctx, fp, req, &ex.Suitability)
	if err != nil {
		return ex.failurePath(ctx, req, proceed, ec)
	}
	if !ok {
		return ex.missPath(ctx, req, scope, proceed, fp, ec)
	}

	if parent.hasVariants() {
		variantKey := ex.Suitability.VariantKey(headerAllCommaSepValues(entry.Header, headerVary), req)
		_ = ex.Cache.ReuseVariantEntryFor(ctx, fp, variantKey)
	}

	return ex.hitPath(ctx, req, scope, proceed, fp, entry, ec)
}

func (ex *CachingExecutor) deliverFromBackend(ctx context.Context, req *http.Request, proceed Proceed, ec *ExecContext) (*http.Response, error) {
	resp, err := proceed(ctx, req)
	if err != nil {
		return nil, &TransportError{Op: "proceed", Err: err}
	}
	addViaToResponse(resp)
	return resp, nil
}

// missPath implements spec §4.1.1.
func (ex *CachingExecutor) missPath(ctx context.Context, req *http.Request, scope Scope, proceed Proceed, fp Fingerprint, ec *ExecContext) (*http.Response, error) {
	atomic.AddInt64(&ex.misses, 1)
	ec.Status = CacheMiss

	if ex.RequestCacheability.OnlyIfCached(req) {
		ec.Status = CacheModuleResponse
		return ex.Generator.ErrorForRequest(req, http.StatusGatewayTimeout, "Gateway Timeout"), nil
	}

	variants, err := ex.Cache.VariantsFor(ctx, fp)
	if err == nil && len(variants) > 0 {
		return ex.negotiateVariants(ctx, req, fp, variants, proceed, ec)
	}

	resp, err := ex.deliverFromBackend(ctx, req, proceed, ec)
	if err != nil {
		return nil, err
	}
	return ex.handleFreshBackendResponse(ctx, req, req, resp, fp, "", ec)
}

// hitPath implements spec §4.1.2.
func (ex *CachingExecutor) hitPath(ctx context.Context, req *http.Request, scope Scope, proceed Proceed, fp Fingerprint, entry *CacheEntry, ec *ExecContext) (*http.Response, error) {
	now := ex.Clock.Now()

	usable, staleOK := ex.canUse(req, entry, now)

	if usable {
		atomic.AddInt64(&ex.hits, 1)
		ec.Status = CacheHit
		resp, err := ex.buildHitResponse(req, entry, staleOK)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}

	if ex.RequestCacheability.OnlyIfCached(req) {
		ec.Status = CacheModuleResponse
		return ex.Generator.ErrorForRequest(req, http.StatusGatewayTimeout, "Gateway Timeout"), nil
	}

	// A stored 304 masquerading as an entry (should not normally happen,
	// but guards against a corrupt/odd store) is bypassed entirely.
	if entry.StatusCode == http.StatusNotModified && !ex.Suitability.IsConditional(req) {
		resp, err := ex.deliverFromBackend(ctx, req, proceed, ec)
		if err != nil {
			return nil, err
		}
		return ex.handleFreshBackendResponse(ctx, req, req, resp, fp, "", ec)
	}

	if ex.Async != nil && ex.Validity.MayReturnStaleWhileRevalidating(entry, now) && ex.staleAllowedForRequest(req, entry, now) {
		resp, err := ex.buildHitResponse(req, entry, true)
		if err != nil {
			return nil, err
		}
		ec.Status = CacheHit
		atomic.AddInt64(&ex.hits, 1)
		ex.Async.Submit(fp, func(bgCtx context.Context) {
			bgEc := &ExecContext{}
			_, _ = ex.synchronousRevalidate(bgCtx, req, proceed, fp, entry, "", bgEc)
		})
		return resp, nil
	}

	return ex.synchronousRevalidate(ctx, req, proceed, fp, entry, "", ec)
}

// canUse implements SuitabilityChecker.canUse (spec §4.3): fresh, or the
// request tolerates the observed staleness, and no no-cache mandates
// revalidation. staleOK reports whether the usability came via staleness
// tolerance (so a Warning should be attached).
func (ex *CachingExecutor) canUse(req *http.Request, entry *CacheEntry, now time.Time) (usable, staleOK bool) {
	if !ex.Suitability.VaryMatches(entry, req) {
		return false, false
	}
	if ex.ResponseCacheability.RequiresRevalidationOnUse(entry) {
		return false, false
	}
	if parseCacheControl(req.Header).has(directiveNoCache) {
		return false, false
	}
	if ex.Validity.IsFresh(entry, now) {
		return true, false
	}
	return ex.staleAllowedForRequest(req, entry, now), true
}

func (ex *CachingExecutor) staleAllowedForRequest(req *http.Request, entry *CacheEntry, now time.Time) bool {
	if ex.Validity.MustRevalidate(entry) {
		return false
	}
	if ex.SharedCache && ex.Validity.ProxyRevalidate(entry) {
		return false
	}
	tolerance, unlimited, present := maxStaleTolerance(req.Header)
	if !present {
		return false
	}
	if unlimited {
		return true
	}
	return ex.Validity.StalenessSecs(entry, now) <= tolerance
}

func (ex *CachingExecutor) buildHitResponse(req *http.Request, entry *CacheEntry, staleServed bool) (*http.Response, error) {
	var resp *http.Response
	var err error
	if ex.Suitability.IsConditional(req) && ex.Suitability.PreconditionsMatch(req, entry) {
		resp = ex.Generator.NotModified(req, entry)
	} else {
		resp, err = ex.Generator.Response(req, entry, &ex.Validity)
		if err != nil {
			return nil, err
		}
	}
	if staleServed {
		addStaleWarning(resp.Header)
		ex.Metrics.RecordStaleServed("stale-serve")
	}
	return resp, nil
}

// failurePath implements spec §4.1.3.
func (ex *CachingExecutor) failurePath(ctx context.Context, req *http.Request, proceed Proceed, ec *ExecContext) (*http.Response, error) {
	atomic.AddInt64(&ex.misses, 1)
	if ex.RequestCacheability.OnlyIfCached(req) {
		ec.Status = CacheModuleResponse
		return ex.Generator.ErrorForRequest(req, http.StatusGatewayTimeout, "Gateway Timeout"), nil
	}
	ec.Status = Failure
	return ex.deliverFromBackend(ctx, req, proceed, ec)
}

// synchronousRevalidate implements the revalidation half of spec §4.1.2.
func (ex *CachingExecutor) synchronousRevalidate(ctx context.Context, req *http.Request, proceed Proceed, fp Fingerprint, entry *CacheEntry, variantKey string, ec *ExecContext) (*http.Response, error) {
	conditional := ex.ConditionalBuilder.BuildConditional(req, entry)
	requestDate := ex.Clock.Now()
	resp, err := proceed(ctx, conditional)
	responseDate := ex.Clock.Now()

	if err != nil {
		return ex.revalidationFailed(req, entry, err)
	}

	if isTooOld(resp, entry) {
		resp.Body.Close()
		conditional = ex.ConditionalBuilder.BuildUnconditional(req)
		requestDate = ex.Clock.Now()
		resp, err = proceed(ctx, conditional)
		responseDate = ex.Clock.Now()
		if err != nil {
			return ex.revalidationFailed(req, entry, err)
		}
	}

	addViaToResponse(resp)

	switch {
	case resp.StatusCode == http.StatusNotModified:
		atomic.AddInt64(&ex.updates, 1)
		ec.Status = Validated
		return ex.applyNotModified(ctx, req, fp, entry, resp, requestDate, responseDate, variantKey)
	case resp.StatusCode == http.StatusOK:
		atomic.AddInt64(&ex.updates, 1)
		ec.Status = Validated
		return ex.handleFreshBackendResponse(ctx, req, conditional, resp, fp, variantKey, ec)
	case isServerError(resp.StatusCode) && ex.staleAllowedForRequest(req, entry, responseDate) && ex.Validity.MayReturnStaleIfError(req.Header, entry, responseDate):
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		stale, buildErr := ex.buildHitResponse(req, entry, true)
		if buildErr != nil {
			return nil, buildErr
		}
		ex.Metrics.RecordStaleServed("stale-if-error")
		return stale, nil
	default:
		return ex.handleFreshBackendResponse(ctx, req, conditional, resp, fp, variantKey, ec)
	}
}

func (ex *CachingExecutor) revalidationFailed(req *http.Request, entry *CacheEntry, origErr error) (*http.Response, error) {
	now := ex.Clock.Now()
	if !ex.staleAllowedForRequest(req, entry, now) {
		return nil, &TransportError{Op: "revalidate", Err: origErr}
	}
	stale, err := ex.buildHitResponse(req, entry, false)
	if err != nil {
		return nil, err
	}
	addRevalidationFailedWarning(stale.Header)
	ex.Metrics.RecordStaleServed("revalidation-failed")
	return stale, nil
}

func (ex *CachingExecutor) applyNotModified(ctx context.Context, req *http.Request, fp Fingerprint, entry *CacheEntry, notModified *http.Response, requestDate, responseDate time.Time, variantKey string) (*http.Response, error) {
	ex.ResponseCompliance.Ensure(req, notModified, responseDate)
	merged := ex.Generator.MergeNotModified(entry, notModified, responseDate)
	io.Copy(io.Discard, notModified.Body)
	notModified.Body.Close()

	var storeErr error
	if variantKey != "" {
		storeErr = ex.Cache.UpdateVariant(ctx, fp, variantKey, merged.Header.Get(headerETag), merged)
	} else {
		storeErr = ex.Cache.CreateDirect(ctx, fp, merged)
	}
	if storeErr != nil {
		GetLogger().Warn("storage update failed after revalidation", "error", storeErr)
	}

	if ex.Suitability.IsConditional(req) && ex.Suitability.PreconditionsMatch(req, merged) {
		return ex.Generator.NotModified(req, merged), nil
	}
	return ex.Generator.Response(req, merged, &ex.Validity)
}

// negotiateVariants implements spec §4.1.4.
func (ex *CachingExecutor) negotiateVariants(ctx context.Context, req *http.Request, fp Fingerprint, variants map[string]*VariantEntry, proceed Proceed, ec *ExecContext) (*http.Response, error) {
	conditional := ex.ConditionalBuilder.BuildConditionalFromVariants(req, variants)
	requestDate := ex.Clock.Now()
	resp, err := proceed(ctx, conditional)
	responseDate := ex.Clock.Now()
	if err != nil {
		return nil, &TransportError{Op: "proceed", Err: err}
	}

	if resp.StatusCode != http.StatusNotModified {
		ec.Status = Validated
		return ex.handleFreshBackendResponse(ctx, req, conditional, resp, fp, "", ec)
	}

	etag := resp.Header.Get(headerETag)
	var matchedKey string
	var matched *VariantEntry
	for key, v := range variants {
		if etag != "" && etagOpaque(v.ETag) == etagOpaque(etag) {
			matchedKey, matched = key, v
			break
		}
	}
	if matched == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		resp, err = proceed(ctx, ex.ConditionalBuilder.BuildUnconditional(req))
		if err != nil {
			return nil, &TransportError{Op: "proceed", Err: err}
		}
		ec.Status = Validated
		return ex.handleFreshBackendResponse(ctx, req, req, resp, fp, "", ec)
	}

	if isTooOld(resp, matched.Entry) {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		resp, err = proceed(ctx, ex.ConditionalBuilder.BuildUnconditional(req))
		if err != nil {
			return nil, &TransportError{Op: "proceed", Err: err}
		}
		ec.Status = Validated
		return ex.handleFreshBackendResponse(ctx, req, req, resp, fp, matchedKey, ec)
	}

	atomic.AddInt64(&ex.updates, 1)
	ec.Status = Validated
	return ex.applyNotModified(ctx, req, fp, matched.Entry, resp, requestDate, responseDate, matchedKey)
}

// handleFreshBackendResponse implements spec §4.1.5.
func (ex *CachingExecutor) handleFreshBackendResponse(ctx context.Context, originalReq, sentReq *http.Request, resp *http.Response, fp Fingerprint, variantKey string, ec *ExecContext) (*http.Response, error) {
	responseDate := ex.Clock.Now()
	ex.ResponseCompliance.Ensure(originalReq, resp, responseDate)
	ex.ResponseCompliance.StashIfModifiedSince(sentReq, resp)
	ex.Cache.InvalidateRelated(ctx, originalReq, resp)

	if !ex.ResponseCacheability.IsStorable(originalReq, resp) {
		ex.Cache.InvalidateForRequest(ctx, originalReq)
		return resp, nil
	}

	existing, _ := ex.Cache.Get(ctx, fp)
	if existing != nil && existing.Direct != nil && isNewer(existing.Direct, resp, responseDate) {
		return resp, nil
	}

	buf, rest, overflow, err := readBounded(resp.Body, ex.MaxObjectSize)
	if err != nil {
		resp.Body.Close()
		return nil, &TransportError{Op: "read-body", Err: err}
	}
	if overflow {
		resp.Body = newCombiningBody(buf, rest)
		return resp, nil
	}
	resp.Body.Close()

	if (resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent) &&
		resp.ContentLength > 0 && int64(len(buf)) < resp.ContentLength {
		return ex.Generator.ErrorForRequest(originalReq, http.StatusBadGateway, "Bad Gateway: truncated body"), nil
	}

	body, err := ex.Resources.Create(ctx, newByteReader(buf))
	if err != nil {
		resp.Body = newCombiningBody(buf, http.NoBody)
		return resp, nil
	}

	entry := &CacheEntry{
		Method:           originalReq.Method,
		RequestURI:       originalReq.URL.RequestURI(),
		StatusCode:       resp.StatusCode,
		Reason:           resp.Status,
		Proto:            resp.Proto,
		Header:           resp.Header.Clone(),
		Body:             body,
		RequestSent:      responseDate,
		ResponseReceived: responseDate,
	}
	ex.Suitability.StashVaryHeaders(entry, originalReq)

	if variantKey != "" || len(headerAllCommaSepValues(resp.Header, headerVary)) > 0 {
		if variantKey == "" {
			variantKey = ex.Suitability.VariantKey(headerAllCommaSepValues(resp.Header, headerVary), originalReq)
		}
		if err := ex.Cache.UpdateVariant(ctx, fp, variantKey, resp.Header.Get(headerETag), entry); err != nil {
			GetLogger().Warn("storage put failed", "error", err)
		}
	} else if err := ex.Cache.CreateDirect(ctx, fp, entry); err != nil {
		GetLogger().Warn("storage put failed", "error", err)
	}

	out, err := ex.Generator.Response(originalReq, entry, &ex.Validity)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isTooOld(resp *http.Response, entry *CacheEntry) bool {
	dateHdr := resp.Header.Get(headerDate)
	if dateHdr == "" {
		return false
	}
	respDate, err := http.ParseTime(dateHdr)
	if err != nil {
		return false
	}
	entryDateHdr := entry.Header.Get(headerDate)
	if entryDateHdr == "" {
		return false
	}
	entryDate, err := http.ParseTime(entryDateHdr)
	if err != nil {
		return false
	}
	return respDate.Before(entryDate)
}

func isNewer(existing *CacheEntry, resp *http.Response, responseDate time.Time) bool {
	existingDateHdr := existing.Header.Get(headerDate)
	if existingDateHdr == "" {
		return false
	}
	existingDate, err := http.ParseTime(existingDateHdr)
	if err != nil {
		return false
	}
	respDate, err := http.ParseTime(resp.Header.Get(headerDate))
	if err != nil {
		respDate = responseDate
	}
	return existingDate.After(respDate)
}

func isServerError(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
