package link

// DefaultLineCapacity is the longest line accepted, terminator excluded.
const DefaultLineCapacity = 100

// LineAssembler rebuilds newline terminated lines from a byte stream.
type LineAssembler struct {
	buf      []byte
	overflow bool
}

// NewLineAssembler creates a LineAssembler holding at most capacity bytes
// per line.
func NewLineAssembler(capacity int) *LineAssembler {
	if capacity <= 0 {
		capacity = DefaultLineCapacity
	}
	return &LineAssembler{buf: make([]byte, 0, capacity)}
}

// Feed consumes one byte. When b terminates a line, the line is returned
// with ok set; it stays valid until the next call to Feed.
// Bytes beyond the capacity are discarded and the truncated line is
// reported with ErrLineOverflow when its terminator arrives.
func (a *LineAssembler) Feed(b byte) (line []byte, ok bool, err error) {
	if b == LineTerminator {
		line, ok = a.buf, true
		if a.overflow {
			err = ErrLineOverflow
		}
		a.buf, a.overflow = a.buf[:0], false
		return
	}
	if len(a.buf) < cap(a.buf) {
		a.buf = append(a.buf, b)
	} else {
		a.overflow = true
	}
	return nil, false, nil
}

// Len returns the number of bytes of the incomplete line.
func (a *LineAssembler) Len() int {
	return len(a.buf)
}

// Reset discards the incomplete line.
func (a *LineAssembler) Reset() {
	a.buf, a.overflow = a.buf[:0], false
}
