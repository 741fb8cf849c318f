package sh

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/odrive.go/pkg/env"
	"github.com/robotalks/odrive.go/pkg/l0/link"
	"github.com/robotalks/odrive.go/pkg/l0/stream"
)

// attachPipe attaches a shell to one end of a pipe, the other end plays
// the device.
func attachPipe(t *testing.T, timeout time.Duration) (*Shell, *bufio.ReadWriter) {
	local, remote := net.Pipe()
	conf := env.NewConfig()
	conf.Timeout = timeout
	conf.PollInterval = time.Millisecond
	s := &Shell{Config: conf}
	str := stream.New(local)
	s.Attach(&env.Env{
		Config: conf,
		Stream: str,
		Link:   link.New(append(conf.LinkOptions(), link.WithTransport(str))...),
	})
	t.Cleanup(func() {
		s.Conn.Cancel()
		remote.Close()
	})
	return s, bufio.NewReadWriter(bufio.NewReader(remote), bufio.NewWriter(remote))
}

func TestShellSend(t *testing.T) {
	s, device := attachPipe(t, time.Second)
	go func() {
		line, err := device.ReadString('\n')
		if err != nil || line != string(link.Frame([]byte("r vbus_voltage"))) {
			return
		}
		device.Write(link.Frame([]byte("24.13")))
		device.Flush()
	}()
	reply, err := s.Send("r vbus_voltage")
	require.NoError(t, err)
	require.Equal(t, "24.13", reply)
}

func TestShellSendNoReply(t *testing.T) {
	s, device := attachPipe(t, 20*time.Millisecond)
	go device.ReadString('\n')
	_, err := s.Send("r axis0.error")
	require.Equal(t, ErrNoReply, err)
}

func TestShellWrite(t *testing.T) {
	s, device := attachPipe(t, time.Second)
	lines := make(chan string, 1)
	go func() {
		line, _ := device.ReadString('\n')
		lines <- line
	}()
	require.NoError(t, s.Write("w axis0.requested_state 8"))
	select {
	case line := <-lines:
		require.Equal(t, string(link.Frame([]byte("w axis0.requested_state 8"))), line)
	case <-time.After(time.Second):
		t.Fatal("command not written")
	}
	require.Zero(t, s.Conn.Env.Link.Pending())
}

func TestShellNotOpened(t *testing.T) {
	s := &Shell{Config: env.NewConfig()}
	_, err := s.Send("q")
	require.Error(t, err)
	require.Error(t, s.Write("q"))

	s.SetTimeout(time.Second)
	require.Equal(t, time.Second, s.Config.Timeout)
}
