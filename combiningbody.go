package httpcache

import (
	"bytes"
	"io"
)

// combiningBody yields an already-buffered prefix followed by the
// remainder of an underlying stream, so a response whose body overflowed
// the configured max object size can still be delivered to the client in
// full even though it will not be cached (spec §5 resource policy).
type combiningBody struct {
	prefix *bytes.Reader
	rest   io.ReadCloser
}

func newCombiningBody(prefix []byte, rest io.ReadCloser) io.ReadCloser {
	return &combiningBody{prefix: bytes.NewReader(prefix), rest: rest}
}

func (b *combiningBody) Read(p []byte) (int, error) {
	if b.prefix.Len() > 0 {
		return b.prefix.Read(p)
	}
	return b.rest.Read(p)
}

func (b *combiningBody) Close() error {
	return b.rest.Close()
}
