// Package stream adapts a blocking byte stream (serial port, TCP or
// websocket connection) to the non-blocking link.Transport.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/odrive.go/pkg/framework"
)

// DefaultMaxBuffered is the default limit of unread bytes.
const DefaultMaxBuffered = 4096

// ErrNoData indicates ReadByte is called with nothing buffered.
var ErrNoData = errors.New("no data available")

// Buffered reads the underlying stream in the background and keeps the
// received bytes until they are consumed by ReadByte.
type Buffered struct {
	// MaxBuffered limits unread bytes, the oldest are dropped beyond it.
	MaxBuffered int
	// OnData is called from the reader goroutine when bytes arrive.
	OnData func()

	rw      io.ReadWriteCloser
	lock    sync.Mutex
	buf     []byte
	err     error
	dropped uint64

	writeLock sync.Mutex
}

// New creates a Buffered over rw.
func New(rw io.ReadWriteCloser) *Buffered {
	return &Buffered{rw: rw, MaxBuffered: DefaultMaxBuffered}
}

// Name implements Named.
func (b *Buffered) Name() string {
	return "stream"
}

// Available implements link.Transport.
func (b *Buffered) Available() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.buf)
}

// ReadByte implements link.Transport.
func (b *Buffered) ReadByte() (byte, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if len(b.buf) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		return 0, ErrNoData
	}
	c := b.buf[0]
	b.buf = b.buf[1:]
	return c, nil
}

// Write implements link.Transport.
func (b *Buffered) Write(p []byte) (int, error) {
	b.writeLock.Lock()
	defer b.writeLock.Unlock()
	return b.rw.Write(p)
}

// Err returns the error which stopped the reader, if any.
func (b *Buffered) Err() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.err
}

// Dropped returns the number of bytes dropped on a full buffer.
func (b *Buffered) Dropped() uint64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.dropped
}

// Close closes the underlying stream, which also stops Run.
func (b *Buffered) Close() error {
	return b.rw.Close()
}

// Run implements Runnable. It reads until the stream fails or ctx is
// canceled, and the stream is closed when it returns.
func (b *Buffered) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, b.rw, b.readLoop)
}

func (b *Buffered) readLoop() error {
	chunk := make([]byte, 256)
	for {
		n, err := b.rw.Read(chunk)
		if n > 0 {
			b.append(chunk[:n])
			if fn := b.OnData; fn != nil {
				fn()
			}
		}
		if err != nil {
			b.lock.Lock()
			b.err = err
			b.lock.Unlock()
			return err
		}
	}
}

func (b *Buffered) append(p []byte) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.buf = append(b.buf, p...)
	if max := b.MaxBuffered; max > 0 && len(b.buf) > max {
		n := len(b.buf) - max
		b.dropped += uint64(n)
		glog.Warningf("stream: %d unread bytes dropped", n)
		b.buf = append(b.buf[:0], b.buf[n:]...)
	}
}
