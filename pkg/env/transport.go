package env

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"

	"golang.org/x/net/websocket"

	"github.com/robotalks/odrive.go/pkg/l0/serialport"
	"github.com/robotalks/odrive.go/pkg/l0/stream"
)

const defaultWebsocketOrigin = "http://localhost/"

// Dial opens the byte stream specified by a transport URL.
// A URL without scheme is taken as the name of a serial port.
func Dial(ctx context.Context, transportURL string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(transportURL)
	if err != nil {
		return nil, fmt.Errorf("invalid transport URL: %w", err)
	}
	switch u.Scheme {
	case "", "serial":
		return dialSerial(ctx, u)
	case "tcp":
		var d net.Dialer
		return d.DialContext(ctx, "tcp", u.Host)
	case "ws", "wss":
		return dialWebsocket(ctx, u)
	default:
		return nil, fmt.Errorf("unknown transport URL scheme: %q", u.Scheme)
	}
}

func dialSerial(ctx context.Context, u *url.URL) (io.ReadWriteCloser, error) {
	d := &serialport.Dialer{PortName: u.Path}
	if u.Opaque != "" {
		d.PortName = u.Opaque
	}
	if val := u.Query().Get("baud"); val != "" {
		baud, err := strconv.Atoi(val)
		if err != nil || baud <= 0 {
			return nil, fmt.Errorf("invalid baud rate: %q", val)
		}
		d.Mode = serialport.DefaultMode()
		d.Mode.BaudRate = baud
	}
	return d.Dial(ctx)
}

func dialWebsocket(ctx context.Context, u *url.URL) (io.ReadWriteCloser, error) {
	origin := u.Query().Get("origin")
	if origin == "" {
		origin = defaultWebsocketOrigin
	}
	conf, err := websocket.NewConfig(u.String(), origin)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := websocket.DialConfig(conf)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}

// NewTransport dials the configured transport and wraps it for polling.
func (c *Config) NewTransport(ctx context.Context) (*stream.Buffered, error) {
	rw, err := Dial(ctx, c.Transport)
	if err != nil {
		return nil, err
	}
	s := stream.New(rw)
	if c.MaxBuffered > 0 {
		s.MaxBuffered = c.MaxBuffered
	}
	return s, nil
}
