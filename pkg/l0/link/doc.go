// Package link provides the L0 line protocol spoken with a motor controller.
package link

// The L0 line protocol runs over any byte stream (typically a UART) between
// the host and the motor controller firmware.
//
// Outgoing frames are ASCII commands followed by an XOR checksum:
//
//	<command>*<checksum>\n
//
// where checksum is the XOR of all command bytes written as 1-3 decimal
// digits. Incoming lines may carry the same "*<digits>" suffix; lines
// without it are accepted unchecked.
//
// Replies carry no request identifier. They are paired with requests purely
// by arrival order: each valid line goes to the oldest pending handler that
// has not timed out. Timeouts are evaluated lazily when a handler is queued
// or a line is dispatched, never by a background timer.
//
// All state is owned by the goroutine calling Send and Poll. Other goroutines
// hand commands over through the control loop (see SendMsg).
//
// Producer: motor controller firmware
// Consumer: L0 host
