package httpcache

import (
	"bytes"
	"context"
	"encoding/gob"
	"io"
	"net/http"
	"time"
)

// entryDTO is the on-the-wire representation of a CacheEntry: identical
// fields, except the Resource handle is flattened to its raw bytes so it
// can cross an opaque byte-oriented Store. A ResourceFactory that manages
// bodies out of process (disk, object storage) still goes through this
// same flattening for KV backends; only the in-memory HttpCache built
// directly over a ResourceFactory-aware backend could avoid the copy, and
// no such backend is in scope here (see DESIGN.md).
type entryDTO struct {
	Method           string
	RequestURI       string
	StatusCode       int
	Reason           string
	Proto            string
	Header           map[string][]string
	BodyBytes        []byte
	RequestSent      time.Time
	ResponseReceived time.Time
}

type variantDTO struct {
	Key   string
	ETag  string
	Entry entryDTO
}

type parentDTO struct {
	Direct      *entryDTO
	Variants    []variantDTO
	LastVariant string
}

// HttpCache is the structured façade over a raw Store: it owns
// serialization of parentEntry values, variant bookkeeping, and
// materialization of response bodies through a ResourceFactory. The Store
// itself never sees a CacheEntry, only the bytes HttpCache produces.
// Grounded on the teacher's Cache interface plus stalecache.go's
// wrap-an-existing-backend shape.
type HttpCache struct {
	Store     Store
	Resources ResourceFactory
}

func toDTO(e *CacheEntry, body []byte) entryDTO {
	return entryDTO{
		Method:           e.Method,
		RequestURI:       e.RequestURI,
		StatusCode:       e.StatusCode,
		Reason:           e.Reason,
		Proto:            e.Proto,
		Header:           map[string][]string(e.Header),
		BodyBytes:        body,
		RequestSent:      e.RequestSent,
		ResponseReceived: e.ResponseReceived,
	}
}

func (c *HttpCache) fromDTO(ctx context.Context, d entryDTO) (*CacheEntry, error) {
	res, err := c.Resources.Create(ctx, bytes.NewReader(d.BodyBytes))
	if err != nil {
		return nil, err
	}
	return &CacheEntry{
		Method:           d.Method,
		RequestURI:       d.RequestURI,
		StatusCode:       d.StatusCode,
		Reason:           d.Reason,
		Proto:            d.Proto,
		Header:           d.Header,
		Body:             res,
		RequestSent:      d.RequestSent,
		ResponseReceived: d.ResponseReceived,
	}, nil
}

func readAllBody(res Resource) ([]byte, error) {
	if res == nil {
		return nil, nil
	}
	rc, err := res.Reader()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func encodeParent(p *parentDTO) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeParent(blob []byte) (*parentDTO, error) {
	var p parentDTO
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HttpCache) loadParent(ctx context.Context, fp Fingerprint) (*parentEntry, error) {
	blob, ok, err := c.Store.Get(ctx, fp.String())
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	if !ok {
		return nil, nil
	}
	dto, err := decodeParent(blob)
	if err != nil {
		return nil, &StorageError{Op: "decode", Err: err}
	}
	out := &parentEntry{Fingerprint: fp, Variants: map[string]*VariantEntry{}, LastVariant: dto.LastVariant}
	if dto.Direct != nil {
		entry, err := c.fromDTO(ctx, *dto.Direct)
		if err != nil {
			return nil, &StorageError{Op: "materialize", Err: err}
		}
		out.Direct = entry
	}
	for _, v := range dto.Variants {
		entry, err := c.fromDTO(ctx, v.Entry)
		if err != nil {
			return nil, &StorageError{Op: "materialize", Err: err}
		}
		out.Variants[v.Key] = &VariantEntry{ETag: v.ETag, Entry: entry}
	}
	return out, nil
}

func (c *HttpCache) saveParent(ctx context.Context, p *parentEntry) error {
	dto := &parentDTO{LastVariant: p.LastVariant}
	if p.Direct != nil {
		body, err := readAllBody(p.Direct.Body)
		if err != nil {
			return &StorageError{Op: "read-body", Err: err}
		}
		d := toDTO(p.Direct, body)
		dto.Direct = &d
	}
	for key, v := range p.Variants {
		body, err := readAllBody(v.Entry.Body)
		if err != nil {
			return &StorageError{Op: "read-body", Err: err}
		}
		dto.Variants = append(dto.Variants, variantDTO{Key: key, ETag: v.ETag, Entry: toDTO(v.Entry, body)})
	}
	blob, err := encodeParent(dto)
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}
	if err := c.Store.Set(ctx, p.Fingerprint.String(), blob); err != nil {
		return &StorageError{Op: "set", Err: err}
	}
	return nil
}

// Get looks up the parent entry for fp. A nil, nil result means no entry
// is stored.
func (c *HttpCache) Get(ctx context.Context, fp Fingerprint) (*parentEntry, error) {
	return c.loadParent(ctx, fp)
}

// GetSuitable looks up fp and returns the single entry suitable for req,
// consulting Direct first and then each variant via checker.VaryMatches.
// ok is false if no stored entry satisfies req's Vary requirements.
func (c *HttpCache) GetSuitable(ctx context.Context, fp Fingerprint, req *http.Request, checker *SuitabilityChecker) (entry *CacheEntry, ok bool, err error) {
	parent, err := c.loadParent(ctx, fp)
	if err != nil || parent == nil {
		return nil, false, err
	}
	if parent.Direct != nil {
		return parent.Direct, true, nil
	}
	if v, ok := parent.Variants[parent.LastVariant]; ok && checker.VaryMatches(v.Entry, req) {
		return v.Entry, true, nil
	}
	for _, v := range parent.Variants {
		if checker.VaryMatches(v.Entry, req) {
			return v.Entry, true, nil
		}
	}
	return nil, false, nil
}

// ReuseVariantEntryFor records that fp now canonically maps to the variant
// identified by variantKey, without re-storing the variant's entry, so a
// later GetSuitable can try it first. Grounded on spec's
// reuseVariantEntryFor.
func (c *HttpCache) ReuseVariantEntryFor(ctx context.Context, fp Fingerprint, variantKey string) error {
	parent, err := c.loadParent(ctx, fp)
	if err != nil {
		return err
	}
	if parent == nil || parent.Variants[variantKey] == nil {
		return nil
	}
	parent.LastVariant = variantKey
	return c.saveParent(ctx, parent)
}

// VariantsFor returns the known variant set for fp, if any.
func (c *HttpCache) VariantsFor(ctx context.Context, fp Fingerprint) (map[string]*VariantEntry, error) {
	parent, err := c.loadParent(ctx, fp)
	if err != nil || parent == nil {
		return nil, err
	}
	return parent.Variants, nil
}

// CreateDirect stores entry as fp's sole (non-varying) representation,
// replacing any prior direct entry or variant set.
func (c *HttpCache) CreateDirect(ctx context.Context, fp Fingerprint, entry *CacheEntry) error {
	return c.saveParent(ctx, &parentEntry{Fingerprint: fp, Direct: entry})
}

// UpdateVariant stores entry as the variant identified by variantKey under
// fp, preserving any other variants already stored there.
func (c *HttpCache) UpdateVariant(ctx context.Context, fp Fingerprint, variantKey, etag string, entry *CacheEntry) error {
	parent, err := c.loadParent(ctx, fp)
	if err != nil {
		return err
	}
	if parent == nil {
		parent = &parentEntry{Fingerprint: fp, Variants: map[string]*VariantEntry{}}
	}
	if parent.Variants == nil {
		parent.Variants = map[string]*VariantEntry{}
	}
	parent.Direct = nil
	parent.Variants[variantKey] = &VariantEntry{ETag: etag, Entry: entry}
	return c.saveParent(ctx, parent)
}

// InvalidateForRequest flushes the fingerprints an unsafe-method or
// otherwise non-cacheable request targets: the request's own GET/HEAD
// fingerprints, per RFC 9111 Section 4.4.
func (c *HttpCache) InvalidateForRequest(ctx context.Context, req *http.Request) {
	for _, method := range [...]string{http.MethodGet, http.MethodHead} {
		fp := fingerprintFor(req)
		fp.Method = method
		_ = c.Flush(ctx, fp)
	}
}

// InvalidateRelated additionally flushes the targets named by a response's
// Location and Content-Location headers, when they resolve to the same
// host as req, per RFC 9111 Section 4.4.
func (c *HttpCache) InvalidateRelated(ctx context.Context, req *http.Request, resp *http.Response) {
	c.InvalidateForRequest(ctx, req)
	if resp == nil {
		return
	}
	for _, h := range []string{headerLocation, headerContentLoc} {
		raw := resp.Header.Get(h)
		if raw == "" {
			continue
		}
		target, err := req.URL.Parse(raw)
		if err != nil || target.Hostname() != req.URL.Hostname() {
			continue
		}
		related := &http.Request{Method: http.MethodGet, URL: target}
		c.InvalidateForRequest(ctx, related)
	}
}

// Flush removes every stored entry (direct and variants) for fp, used on
// unsafe-method invalidation (spec §4.1 Phase 1) or an explicit Purge.
func (c *HttpCache) Flush(ctx context.Context, fp Fingerprint) error {
	if err := c.Store.Delete(ctx, fp.String()); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	return nil
}
