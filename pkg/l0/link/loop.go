package link

import (
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/odrive.go/pkg/framework"
)

// SendMsg asks the loop owning a Link to send a command.
// It is the way for other goroutines to use the Link.
type SendMsg struct {
	Command string
	// Handler receives the reply; nil sends without expecting one.
	Handler Handler
	// Err, if set, is called when the command can't be written.
	Err func(error)
}

// Post posts the message to the loop and wakes it up.
func (m *SendMsg) Post(loopCtl fx.LoopControl) {
	loopCtl.PostMessage(m)
	loopCtl.TriggerNext()
}

// TimeoutMsg changes the reply timeout from another goroutine.
type TimeoutMsg struct {
	Timeout time.Duration
}

// Control implements Controller: it sends posted commands, then polls.
func (l *Link) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(func(mctx fx.MessageProcessingContext) {
		switch msg := mctx.CurrentMessage().(type) {
		case *SendMsg:
			mctx.MessageTaken()
			if err := l.Send(msg.Command, msg.Handler); err != nil {
				if msg.Err != nil {
					msg.Err(err)
				} else {
					glog.Errorf("send %q: %v", msg.Command, err)
				}
			}
		case *TimeoutMsg:
			mctx.MessageTaken()
			l.SetTimeout(msg.Timeout)
		}
	})
	return l.Poll(cc.Time())
}

// AddToLoop implements LoopAdder.
func (l *Link) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvSense, l)
	loop.AddController(fx.PrLvIdle, fx.ControlFunc(func(cc fx.ControlContext) error {
		if n := l.Purge(cc.Time()); n > 0 {
			glog.V(2).Infof("%d pending replies expired", n)
		}
		return nil
	}))
}
