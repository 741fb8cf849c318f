package link

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/odrive.go/pkg/framework"
)

// DefaultTimeout is how long a handler waits for its reply.
const DefaultTimeout = 200 * time.Millisecond

// Transport is the byte stream to the motor controller.
// Available and ReadByte must not block.
type Transport interface {
	// Available returns the number of bytes readable right now.
	Available() int
	// ReadByte reads one of the available bytes.
	ReadByte() (byte, error)
	// Write writes a complete frame.
	Write(p []byte) (int, error)
}

// Stats is a snapshot of the link counters.
type Stats struct {
	// Sent counts frames written.
	Sent uint64 `json:"sent"`
	// Dispatched counts lines delivered to a handler.
	Dispatched uint64 `json:"dispatched"`
	// ChecksumErrors counts lines dropped on checksum mismatch.
	ChecksumErrors uint64 `json:"checksum_errors"`
	// Overflows counts lines dropped for exceeding the line capacity.
	Overflows uint64 `json:"overflows"`
	// QueueFull counts handlers dropped because the queue was full.
	QueueFull uint64 `json:"queue_full"`
	// Expired counts handlers which timed out.
	Expired uint64 `json:"expired"`
	// Unmatched counts valid lines with no pending handler.
	Unmatched uint64 `json:"unmatched"`
}

type counters struct {
	sent, dispatched, checksumErrors, overflows, queueFull, expired, unmatched atomic.Uint64
}

// Link is the protocol engine: it frames commands, remembers their
// handlers and pairs incoming lines with them.
//
// Send and Poll must be called from the same goroutine. A handler runs
// inside Poll; it may call Send but not Poll.
type Link struct {
	transport Transport
	clock     fx.TimeSource
	queue     *CallbackQueue
	lines     *LineAssembler
	trimCR    bool
	strict    bool

	txBuf   []byte
	polling bool
	stats   counters
}

// Option configures a Link.
type Option func(*Link)

// WithTransport sets the transport.
func WithTransport(t Transport) Option {
	return func(l *Link) { l.transport = t }
}

// WithTimeout sets the reply timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Link) { l.queue.SetTimeout(timeout) }
}

// WithQueueCapacity sets the maximum number of pending handlers.
func WithQueueCapacity(n int) Option {
	return func(l *Link) { l.queue = NewCallbackQueue(n, l.queue.Timeout()) }
}

// WithLineCapacity sets the longest accepted line.
func WithLineCapacity(n int) Option {
	return func(l *Link) { l.lines = NewLineAssembler(n) }
}

// WithClock sets the time source stamping sent commands.
func WithClock(clock fx.TimeSource) Option {
	return func(l *Link) { l.clock = clock }
}

// WithTrimCR strips one trailing carriage return from incoming lines.
func WithTrimCR(trim bool) Option {
	return func(l *Link) { l.trimCR = trim }
}

// WithStrictChecksum rejects lines whose checksum has no digits or
// exceeds 255 instead of reading it as a wrapped byte.
func WithStrictChecksum(strict bool) Option {
	return func(l *Link) { l.strict = strict }
}

// New creates a Link.
func New(opts ...Option) *Link {
	l := &Link{
		clock: fx.SystemClock,
		queue: NewCallbackQueue(DefaultQueueCapacity, DefaultTimeout),
		lines: NewLineAssembler(DefaultLineCapacity),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetTransport sets the transport, it must be called before Send or Poll.
func (l *Link) SetTransport(t Transport) {
	l.transport = t
}

// SetTimeout sets the reply timeout.
func (l *Link) SetTimeout(timeout time.Duration) {
	l.queue.SetTimeout(timeout)
}

// Timeout returns the reply timeout.
func (l *Link) Timeout() time.Duration {
	return l.queue.Timeout()
}

// Pending returns the number of handlers waiting for a reply.
func (l *Link) Pending() int {
	return l.queue.Len()
}

// Stats returns the counters. It is safe to call from any goroutine.
func (l *Link) Stats() Stats {
	return Stats{
		Sent:           l.stats.sent.Load(),
		Dispatched:     l.stats.dispatched.Load(),
		ChecksumErrors: l.stats.checksumErrors.Load(),
		Overflows:      l.stats.overflows.Load(),
		QueueFull:      l.stats.queueFull.Load(),
		Expired:        l.stats.expired.Load(),
		Unmatched:      l.stats.unmatched.Load(),
	}
}

// Send writes the framed command and queues h for its reply.
// With a nil h nothing is queued. A full queue isn't an error for
// the caller: the command is written and the handler dropped.
func (l *Link) Send(cmd string, h Handler) error {
	if l.transport == nil {
		return ErrNoTransport
	}
	l.txBuf = AppendFrame(l.txBuf[:0], []byte(cmd))
	if _, err := l.transport.Write(l.txBuf); err != nil {
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	l.stats.sent.Add(1)
	glog.V(2).Infof("TX %q", l.txBuf)
	if h == nil {
		return nil
	}
	evicted, err := l.queue.Attach(h, l.clock.Time())
	if evicted {
		l.stats.expired.Add(1)
	}
	if err != nil {
		l.stats.queueFull.Add(1)
		glog.Warningf("%v: reply to %q will be dropped", err, cmd)
		if n, ok := h.(ExpiryNotifier); ok {
			n.Expired()
		}
	}
	return nil
}

// Poll consumes the bytes currently available on the transport and
// dispatches every complete valid line. It never waits for more bytes.
func (l *Link) Poll(now time.Time) error {
	if l.transport == nil {
		return ErrNoTransport
	}
	if l.polling {
		return ErrReentrantPoll
	}
	l.polling = true
	defer func() { l.polling = false }()

	for l.transport.Available() > 0 {
		b, err := l.transport.ReadByte()
		if err != nil {
			return err
		}
		line, ok, err := l.lines.Feed(b)
		if !ok {
			continue
		}
		if err != nil {
			l.stats.overflows.Add(1)
			glog.Warningf("RX dropped: %v", err)
			continue
		}
		l.handleLine(line, now)
	}
	return nil
}

// Purge evicts handlers which timed out, so their ExpiryNotifier fires
// without waiting for the next Send or reply.
func (l *Link) Purge(now time.Time) int {
	n := l.queue.Purge(now)
	l.stats.expired.Add(uint64(n))
	return n
}

func (l *Link) handleLine(line []byte, now time.Time) {
	if l.trimCR && len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	glog.V(2).Infof("RX %q", line)
	verify := Verify
	if l.strict {
		verify = VerifyStrict
	}
	payload, err := verify(line)
	if err != nil {
		l.stats.checksumErrors.Add(1)
		glog.Warningf("RX dropped %q: %v", line, err)
		return
	}
	delivered, expired := l.queue.Dispatch(payload, now)
	l.stats.expired.Add(uint64(expired))
	if delivered {
		l.stats.dispatched.Add(1)
	} else {
		l.stats.unmatched.Add(1)
	}
}
