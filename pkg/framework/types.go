package framework

import (
	"context"
	"time"
)

// Named is implemented by things with a name for logging.
type Named interface {
	Name() string
}

// Runnable is a background task of a Loop, e.g. a stream reader.
// Run returns when ctx is done or the task fails.
type Runnable interface {
	Run(ctx context.Context) error
}

// Controller is called once per Loop iteration.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// TimeSource provides the current time.
type TimeSource interface {
	Time() time.Time
}

// TimeSourceFunc is the func form of TimeSource.
type TimeSourceFunc func() time.Time

// Time implements TimeSource.
func (f TimeSourceFunc) Time() time.Time {
	return f()
}

// SystemClock reads the wall clock.
var SystemClock TimeSource = TimeSourceFunc(time.Now)

// Priority levels, controllers run from the lowest level to the highest.
const (
	// PrLvSense is where incoming bytes are polled.
	PrLvSense = iota
	// PrLvControl is where requests are turned into commands.
	PrLvControl
	// PrLvReport is where results are handed out.
	PrLvReport
	// PrLvIdle is for housekeeping.
	PrLvIdle

	// PriorityLevels is the number of levels.
	PriorityLevels
)

// ControlContext is passed to controllers. Time is the same for all
// controllers of one iteration.
type ControlContext interface {
	TimeSource
	LoopControl
	Context() context.Context
	PriorityLevel() int
	// Messages are those posted before the iteration started and not
	// yet taken by a controller of this iteration.
	Messages() MessageStore
}

// Message is anything handed to the loop from another goroutine,
// e.g. a command waiting to be written to the link.
type Message interface{}

// LoopControl is the goroutine-safe access to a Loop.
type LoopControl interface {
	// PostMessage queues msg for the next iteration.
	PostMessage(msg Message)
	// TriggerNext starts the next iteration without waiting for the tick.
	TriggerNext()
}

// MessageStore holds the messages of an iteration.
type MessageStore interface {
	// ProcessMessages calls fn with each message in posting order.
	ProcessMessages(fn func(MessageProcessingContext))
	// Len returns the number of messages not taken.
	Len() int
}

// MessageProcessingContext is the message being processed.
type MessageProcessingContext interface {
	CurrentMessage() Message
	// MessageTaken removes the message from the store.
	MessageTaken()
	// StopProcessing skips the remaining messages.
	StopProcessing()
}
