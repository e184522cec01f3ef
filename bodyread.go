package httpcache

import (
	"bytes"
	"io"
)

// readBounded reads body up to maxObjectSize bytes. If maxObjectSize is
// zero or negative, the body is read in full with no bound. If the body
// has more than maxObjectSize bytes, overflow is true, buf holds the
// first maxObjectSize bytes already consumed, and rest is a ReadCloser
// yielding the remainder of the stream (including the byte that revealed
// the overflow) so no data already read off the wire is discarded (spec §5).
func readBounded(body io.ReadCloser, maxObjectSize int64) (buf []byte, rest io.ReadCloser, overflow bool, err error) {
	if maxObjectSize <= 0 {
		data, err := io.ReadAll(body)
		return data, nil, false, err
	}

	limited := io.LimitReader(body, maxObjectSize)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, nil, false, err
	}
	if int64(len(data)) < maxObjectSize {
		return data, nil, false, nil
	}

	probe := make([]byte, 1)
	n, _ := body.Read(probe)
	if n == 0 {
		return data, nil, false, nil
	}
	return data, &overflowBody{extra: probe[:n], underlying: body}, true, nil
}

type overflowBody struct {
	extra      []byte
	underlying io.ReadCloser
}

func (o *overflowBody) Read(p []byte) (int, error) {
	if len(o.extra) > 0 {
		n := copy(p, o.extra)
		o.extra = o.extra[n:]
		return n, nil
	}
	return o.underlying.Read(p)
}

func (o *overflowBody) Close() error {
	return o.underlying.Close()
}

func newByteReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
