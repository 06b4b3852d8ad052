package blob

import (
	"context"
	"io"
)

// Blob is a byte stream plus the metadata the store needs to persist it.
// Size must be the exact stream length; stores use it for progress math and
// enforce it as an upper bound.
type Blob struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Ref is the durable reference a store returns after a successful write. URL
// is what gets embedded in a message payload; Key identifies the object
// within the backend.
type Ref struct {
	Key    string
	URL    string
	Size   int64
	SHA256 string // hex digest; empty when the backend doesn't expose one
}

// ProgressFunc receives the running count of bytes written. Implementations
// call it with non-decreasing values and never after Put returns.
type ProgressFunc func(written int64)

// Store accepts a byte stream and returns a durable reference, reporting
// progress during the write.
type Store interface {
	Put(ctx context.Context, b Blob, progress ProgressFunc) (*Ref, error)
}

// countingReader wraps a reader and reports cumulative bytes read. Both
// backends stream through it so progress reporting lives in one place.
type countingReader struct {
	r        io.Reader
	written  int64
	progress ProgressFunc
}

// NewCountingReader wraps r so every read advances the progress callback.
func NewCountingReader(r io.Reader, progress ProgressFunc) io.Reader {
	return &countingReader{r: r, progress: progress}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.written += int64(n)
		if c.progress != nil {
			c.progress(c.written)
		}
	}
	return n, err
}
