package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopStep(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLoop()
	l.Clock = TimeSourceFunc(func() time.Time { return now })

	var order []int
	var seen []time.Time
	l.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		order = append(order, cc.PriorityLevel())
		return nil
	}))
	l.AddController(PrLvSense, ControlFunc(func(cc ControlContext) error {
		order = append(order, cc.PriorityLevel())
		seen = append(seen, cc.Time())
		return errors.New("logged, not fatal")
	}))

	l.Step(context.Background())
	now = now.Add(time.Second)
	l.Step(context.Background())

	require.Equal(t, []int{PrLvSense, PrLvIdle, PrLvSense, PrLvIdle}, order)
	require.Equal(t, []time.Time{time.Unix(1000, 0), time.Unix(1001, 0)}, seen)
}

func TestLoopMessages(t *testing.T) {
	l := NewLoop()
	var taken, later []Message
	l.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(func(mc MessageProcessingContext) {
			if s, ok := mc.CurrentMessage().(string); ok {
				mc.MessageTaken()
				taken = append(taken, s)
				if s == "stop" {
					mc.StopProcessing()
				}
			}
		})
		return nil
	}))
	l.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(func(mc MessageProcessingContext) {
			mc.MessageTaken()
			later = append(later, mc.CurrentMessage())
		})
		require.Equal(t, 0, cc.Messages().Len())
		return nil
	}))

	l.PostMessage("a")
	l.PostMessage(1)
	l.PostMessage("stop")
	l.PostMessage("b")
	l.Step(context.Background())

	require.Equal(t, []Message{"a", "stop"}, taken)
	require.Equal(t, []Message{1, "b"}, later)

	taken, later = nil, nil
	l.Step(context.Background())
	require.Empty(t, taken)
	require.Empty(t, later)
}

func TestLoopRunTrigger(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Hour
	stepped := make(chan Message, 1)
	l.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(func(mc MessageProcessingContext) {
			mc.MessageTaken()
			stepped <- mc.CurrentMessage()
		})
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	l.PostMessage("wake")
	l.TriggerNext()
	select {
	case msg := <-stepped:
		require.Equal(t, "wake", msg)
	case <-time.After(time.Second):
		t.Fatal("loop not triggered")
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

type failingRunnable struct{ err error }

func (r failingRunnable) Run(ctx context.Context) error { return r.err }

type namedRunnable struct {
	failingRunnable
	name string
}

func (r namedRunnable) Name() string { return r.name }

func TestLoopRunnerFailure(t *testing.T) {
	l := NewLoop()
	l.AddRunnable(failingRunnable{err: errors.New("port closed")})
	err := l.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "port closed")
}

func TestRunnerWait(t *testing.T) {
	r := NewRunner()
	r.Go(failingRunnable{}, failingRunnable{err: context.Canceled}, namedRunnable{failingRunnable{errors.New("boom")}, "bad"})
	err := r.Wait()
	require.Error(t, err)
	agg, ok := err.(*AggregatedError)
	require.True(t, ok)
	require.Len(t, agg.Errors, 1)
	require.Equal(t, "bad: boom", err.Error())
	select {
	case <-r.Failed():
	default:
		t.Fatal("failure not signaled")
	}
	require.NoError(t, r.Wait())
}

func TestRunnerWaitKeepsReturnedErrors(t *testing.T) {
	r := NewRunner()
	first := r.Go(failingRunnable{err: errors.New("port closed")}).Wait()
	require.Error(t, first)
	second := r.Go(failingRunnable{err: errors.New("link lost")}).Wait()
	require.Error(t, second)
	require.Contains(t, first.Error(), "port closed")
	require.NotContains(t, first.Error(), "link lost")
	require.Contains(t, second.Error(), "link lost")
}
