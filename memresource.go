package httpcache

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// memResource is the default in-memory Resource: an immutable byte slice
// shared by reference-counted handles.
type memResource struct {
	block *refCountedBlock
}

type refCountedBlock struct {
	mu    sync.Mutex
	bytes []byte
	count int
}

func (r *memResource) Reader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(r.block.bytes)), nil
}

func (r *memResource) Len() int64 {
	return int64(len(r.block.bytes))
}

// memResourceFactory materializes response bodies as in-memory byte
// slices, reference-counted so a body shared across variants is freed only
// once every referencing entry has released it. This is the default
// ResourceFactory; it gives the core a working, testable collaborator
// without committing to any particular durable-body backend (spec marks
// ResourceFactory as an external, out-of-scope collaborator).
type memResourceFactory struct{}

// NewMemResourceFactory returns the default in-memory ResourceFactory.
func NewMemResourceFactory() ResourceFactory {
	return memResourceFactory{}
}

func (memResourceFactory) Create(_ context.Context, r io.Reader) (Resource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &memResource{block: &refCountedBlock{bytes: data, count: 1}}, nil
}

func (memResourceFactory) Retain(_ context.Context, res Resource) error {
	mr, ok := res.(*memResource)
	if !ok {
		return nil
	}
	mr.block.mu.Lock()
	mr.block.count++
	mr.block.mu.Unlock()
	return nil
}

func (memResourceFactory) Release(_ context.Context, res Resource) error {
	mr, ok := res.(*memResource)
	if !ok {
		return nil
	}
	mr.block.mu.Lock()
	mr.block.count--
	mr.block.mu.Unlock()
	return nil
}
