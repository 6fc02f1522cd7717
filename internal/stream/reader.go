package stream

import (
	"context"
	"errors"
	"io"

	apierrors "github.com/diogo/streamchat/internal/errors"
)

const defaultChunkSize = 4096

// Reader pulls chunks from a response body one at a time
type Reader struct {
	body     io.ReadCloser
	acc      *Accumulator
	buf      []byte
	finished bool
	endpoint string
}

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithChunkSize sets the read buffer size
func WithChunkSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.buf = make([]byte, n)
		}
	}
}

// WithEndpoint tags read errors with the endpoint the body came from
func WithEndpoint(endpoint string) ReaderOption {
	return func(r *Reader) {
		r.endpoint = endpoint
	}
}

// NewReader wraps body; it is closed once the stream ends or fails
func NewReader(body io.ReadCloser, f Formatter, opts ...ReaderOption) *Reader {
	r := &Reader{
		body: body,
		acc:  NewAccumulator(f),
		buf:  make([]byte, defaultChunkSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next reads one chunk and returns the updated snapshot. The snapshot
// with Done set is returned exactly once; after it Next returns io.EOF.
func (r *Reader) Next(ctx context.Context) (Snapshot, error) {
	if r.finished {
		return r.acc.Snapshot(), io.EOF
	}
	if err := ctx.Err(); err != nil {
		r.close()
		return r.acc.Snapshot(), err
	}

	for {
		n, err := r.body.Read(r.buf)
		if n > 0 {
			snap := r.acc.Write(r.buf[:n])
			if err == nil {
				return snap, nil
			}
		}
		if errors.Is(err, io.EOF) {
			r.close()
			return r.acc.Flush(), nil
		}
		if err != nil {
			r.close()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.acc.Snapshot(), ctxErr
			}
			return r.acc.Snapshot(), apierrors.NewNetworkErrorWithEndpoint("read stream", r.endpoint, err)
		}
		// n == 0 && err == nil: read again
	}
}

// Process drives the stream to completion, calling fn after every chunk
func (r *Reader) Process(ctx context.Context, fn func(Snapshot) error) (Snapshot, error) {
	for {
		snap, err := r.Next(ctx)
		if err != nil {
			return snap, err
		}
		if fn != nil {
			if err := fn(snap); err != nil {
				r.close()
				return snap, err
			}
		}
		if snap.Done {
			return snap, nil
		}
	}
}

// Close releases the body early
func (r *Reader) Close() error {
	return r.close()
}

func (r *Reader) close() error {
	if r.finished {
		return nil
	}
	r.finished = true
	return r.body.Close()
}
