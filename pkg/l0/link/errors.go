package link

import (
	"errors"
)

var (
	// ErrChecksumMismatch indicates the supplied checksum of a line doesn't
	// match the payload. The line is dropped.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrQueueFull indicates no slot is left for a pending handler.
	// The command is still written, but its reply can't be routed.
	ErrQueueFull = errors.New("callback queue full")
	// ErrLineOverflow indicates a line exceeded the assembler capacity.
	// It was truncated and must be dropped.
	ErrLineOverflow = errors.New("line overflow")
	// ErrNoTransport indicates Send or Poll is called before SetTransport.
	ErrNoTransport = errors.New("no transport")
	// ErrReentrantPoll indicates Poll is called from inside a handler.
	ErrReentrantPoll = errors.New("poll called from handler")
)
