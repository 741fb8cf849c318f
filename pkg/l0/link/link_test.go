package link

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	fx "github.com/robotalks/odrive.go/pkg/framework"
)

type fakeTransport struct {
	rx      bytes.Buffer
	written []string
}

func (t *fakeTransport) Available() int {
	return t.rx.Len()
}

func (t *fakeTransport) ReadByte() (byte, error) {
	return t.rx.ReadByte()
}

func (t *fakeTransport) Write(p []byte) (int, error) {
	t.written = append(t.written, string(p))
	return len(p), nil
}

func (t *fakeTransport) reply(payload string) {
	t.rx.Write(Frame([]byte(payload)))
}

type linkTestEnv struct {
	transport *fakeTransport
	link      *Link
	now       time.Time
	got       []string
	expired   []string
}

func newLinkTestEnv(opts ...Option) *linkTestEnv {
	env := &linkTestEnv{transport: &fakeTransport{}, now: time.Unix(1000, 0)}
	opts = append([]Option{
		WithTransport(env.transport),
		WithClock(fx.TimeSourceFunc(func() time.Time { return env.now })),
	}, opts...)
	env.link = New(opts...)
	return env
}

func (e *linkTestEnv) handler(name string) Handler {
	return &recorder{name: name, calls: &e.got, expired: &e.expired}
}

func (e *linkTestEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *linkTestEnv) poll(t *testing.T) {
	require.NoError(t, e.link.Poll(e.now))
}

func TestLinkSendFrames(t *testing.T) {
	env := newLinkTestEnv()
	require.NoError(t, env.link.Send("q1", env.handler("h1")))
	require.NoError(t, env.link.Send("w axis0.requested_state 8", nil))
	require.Equal(t, []string{
		"q1*64\n",
		string(Frame([]byte("w axis0.requested_state 8"))),
	}, env.transport.written)
	require.Equal(t, 1, env.link.Pending())
	require.Equal(t, uint64(2), env.link.Stats().Sent)
}

func TestLinkPairsOldestFirst(t *testing.T) {
	env := newLinkTestEnv()
	require.NoError(t, env.link.Send("q1", env.handler("h1")))
	require.NoError(t, env.link.Send("q2", env.handler("h2")))
	env.transport.reply("1.5")
	env.poll(t)
	require.Equal(t, []string{"h1:1.5"}, env.got)
	require.Equal(t, 1, env.link.Pending())

	env.transport.reply("2.5")
	env.poll(t)
	require.Equal(t, []string{"h1:1.5", "h2:2.5"}, env.got)
	require.Zero(t, env.link.Pending())
}

func TestLinkDropsCorruptLine(t *testing.T) {
	env := newLinkTestEnv()
	require.NoError(t, env.link.Send("q", env.handler("h")))
	env.transport.rx.WriteString("AB*65\nCD\n")
	env.poll(t)
	require.Equal(t, []string{"h:CD"}, env.got)
	stats := env.link.Stats()
	require.Equal(t, uint64(1), stats.ChecksumErrors)
	require.Equal(t, uint64(1), stats.Dispatched)
}

func TestLinkChecksumModes(t *testing.T) {
	lines := "AA*\nAB*259\n"

	env := newLinkTestEnv()
	require.NoError(t, env.link.Send("q", env.handler("h1")))
	require.NoError(t, env.link.Send("q", env.handler("h2")))
	env.transport.rx.WriteString(lines)
	env.poll(t)
	require.Equal(t, []string{"h1:AA", "h2:AB"}, env.got)
	require.Zero(t, env.link.Stats().ChecksumErrors)

	env = newLinkTestEnv(WithStrictChecksum(true))
	require.NoError(t, env.link.Send("q", env.handler("h1")))
	env.transport.rx.WriteString(lines)
	env.poll(t)
	require.Empty(t, env.got)
	require.Equal(t, uint64(2), env.link.Stats().ChecksumErrors)
	require.Equal(t, 1, env.link.Pending())
}

func TestLinkLineWithoutChecksum(t *testing.T) {
	env := newLinkTestEnv()
	require.NoError(t, env.link.Send("r vbus_voltage", env.handler("h")))
	env.transport.rx.WriteString("24.13\n")
	env.poll(t)
	require.Equal(t, []string{"h:24.13"}, env.got)
}

func TestLinkPartialLine(t *testing.T) {
	env := newLinkTestEnv()
	require.NoError(t, env.link.Send("q", env.handler("h")))
	env.transport.rx.WriteString("1.2")
	env.poll(t)
	require.Empty(t, env.got)
	env.transport.rx.WriteString("5\n")
	env.poll(t)
	require.Equal(t, []string{"h:1.25"}, env.got)
}

func TestLinkOverflow(t *testing.T) {
	env := newLinkTestEnv(WithLineCapacity(8))
	require.NoError(t, env.link.Send("q", env.handler("h")))
	env.transport.rx.WriteString(strings.Repeat("x", 20) + "\n")
	env.transport.reply("ok")
	env.poll(t)
	require.Equal(t, []string{"h:ok"}, env.got)
	require.Equal(t, uint64(1), env.link.Stats().Overflows)
}

func TestLinkTimeout(t *testing.T) {
	env := newLinkTestEnv()
	require.Equal(t, DefaultTimeout, env.link.Timeout())
	require.NoError(t, env.link.Send("q", env.handler("h")))
	env.advance(DefaultTimeout + time.Millisecond)
	env.transport.reply("late")
	env.poll(t)
	require.Empty(t, env.got)
	require.Equal(t, []string{"h"}, env.expired)
	stats := env.link.Stats()
	require.Equal(t, uint64(1), stats.Expired)
	require.Equal(t, uint64(1), stats.Unmatched)
}

func TestLinkSetTimeout(t *testing.T) {
	env := newLinkTestEnv(WithTimeout(time.Second))
	require.NoError(t, env.link.Send("q", env.handler("h")))
	env.advance(500 * time.Millisecond)
	env.transport.reply("in time")
	env.poll(t)
	require.Equal(t, []string{"h:in time"}, env.got)

	env.link.SetTimeout(100 * time.Millisecond)
	require.NoError(t, env.link.Send("q", env.handler("h")))
	env.advance(200 * time.Millisecond)
	require.Equal(t, 1, env.link.Purge(env.now))
	require.Equal(t, []string{"h"}, env.expired)
	require.Zero(t, env.link.Pending())
}

func TestLinkQueueFull(t *testing.T) {
	env := newLinkTestEnv(WithQueueCapacity(2))
	require.NoError(t, env.link.Send("a", env.handler("a")))
	require.NoError(t, env.link.Send("b", env.handler("b")))
	require.NoError(t, env.link.Send("c", env.handler("c")))
	require.Len(t, env.transport.written, 3)
	require.Equal(t, 2, env.link.Pending())
	require.Equal(t, uint64(1), env.link.Stats().QueueFull)
	require.Equal(t, []string{"c"}, env.expired)

	env.advance(DefaultTimeout + time.Millisecond)
	require.NoError(t, env.link.Send("d", env.handler("d")))
	require.Equal(t, []string{"c", "a"}, env.expired)
	require.Equal(t, 2, env.link.Pending())
}

func TestLinkTrimCR(t *testing.T) {
	env := newLinkTestEnv(WithTrimCR(true))
	require.NoError(t, env.link.Send("q", env.handler("h")))
	require.NoError(t, env.link.Send("q", env.handler("h")))
	env.transport.rx.WriteString("1.5\r\nq1*64\r\n")
	env.poll(t)
	require.Equal(t, []string{"h:1.5", "h:q1"}, env.got)
}

func TestLinkHandlerSends(t *testing.T) {
	env := newLinkTestEnv()
	var pollErr error
	require.NoError(t, env.link.Send("first", HandleLineFunc(func(payload []byte) {
		require.NoError(t, env.link.Send("second", env.handler("second")))
		pollErr = env.link.Poll(env.now)
	})))
	env.transport.reply("1")
	env.transport.reply("2")
	env.poll(t)
	require.Equal(t, ErrReentrantPoll, pollErr)
	require.Equal(t, []string{"second:2"}, env.got)
	require.Equal(t, []string{"first*" + itoa(Checksum([]byte("first"))) + "\n", "second*" + itoa(Checksum([]byte("second"))) + "\n"}, env.transport.written)
}

func TestLinkNoTransport(t *testing.T) {
	l := New()
	require.Equal(t, ErrNoTransport, l.Send("q", nil))
	require.Equal(t, ErrNoTransport, l.Poll(time.Now()))

	transport := &fakeTransport{}
	l.SetTransport(transport)
	require.NoError(t, l.Send("q", nil))
	require.Len(t, transport.written, 1)
}

func TestLinkWriteError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writeErr := errors.New("port closed")
	transport := NewMockTransport(ctrl)
	transport.EXPECT().Write([]byte("q1*64\n")).Return(0, writeErr)

	l := New(WithTransport(transport))
	err := l.Send("q1", HandleLineFunc(func([]byte) {}))
	require.Error(t, err)
	require.True(t, errors.Is(err, writeErr))
	require.Zero(t, l.Pending())
	require.Zero(t, l.Stats().Sent)
}

func TestLinkReadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	readErr := errors.New("device gone")
	transport := NewMockTransport(ctrl)
	gomock.InOrder(
		transport.EXPECT().Available().Return(2),
		transport.EXPECT().ReadByte().Return(byte('1'), nil),
		transport.EXPECT().Available().Return(1),
		transport.EXPECT().ReadByte().Return(byte(0), readErr),
	)

	l := New(WithTransport(transport))
	require.Equal(t, readErr, l.Poll(time.Now()))
}

func TestLinkPollDoesNotWait(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	transport := NewMockTransport(ctrl)
	transport.EXPECT().Available().Return(0)
	l := New(WithTransport(transport))
	require.NoError(t, l.Poll(time.Now()))
}

func TestLinkLoopControl(t *testing.T) {
	env := newLinkTestEnv()
	loop := fx.NewLoop()
	loop.Clock = fx.TimeSourceFunc(func() time.Time { return env.now })
	loop.Add(env.link)

	(&SendMsg{Command: "r vbus_voltage", Handler: env.handler("h")}).Post(loop)
	loop.Step(context.Background())
	require.Equal(t, []string{string(Frame([]byte("r vbus_voltage")))}, env.transport.written)
	require.Equal(t, 1, env.link.Pending())

	env.transport.rx.WriteString("24.13\n")
	loop.Step(context.Background())
	require.Equal(t, []string{"h:24.13"}, env.got)

	require.NoError(t, env.link.Send("q", env.handler("lost")))
	env.advance(DefaultTimeout + time.Millisecond)
	loop.Step(context.Background())
	require.Equal(t, []string{"lost"}, env.expired)
}

func TestSendMsgError(t *testing.T) {
	l := New()
	loop := fx.NewLoop()
	loop.Add(l)
	var sendErr error
	(&SendMsg{Command: "q", Err: func(err error) { sendErr = err }}).Post(loop)
	loop.Step(context.Background())
	require.Equal(t, ErrNoTransport, sendErr)
}

func TestTimeoutMsg(t *testing.T) {
	env := newLinkTestEnv()
	loop := fx.NewLoop()
	loop.Add(env.link)
	loop.PostMessage(&TimeoutMsg{Timeout: time.Second})
	loop.Step(context.Background())
	require.Equal(t, time.Second, env.link.Timeout())
}
