package env

import (
	"context"
	"log"

	fx "github.com/robotalks/odrive.go/pkg/framework"
	"github.com/robotalks/odrive.go/pkg/l0/link"
	"github.com/robotalks/odrive.go/pkg/l0/stream"
)

// Env is a link attached to its transport.
type Env struct {
	Config *Config
	Stream *stream.Buffered
	Link   *link.Link
}

// NewEnv dials the transport and creates the link.
func (c *Config) NewEnv(ctx context.Context) (*Env, error) {
	s, err := c.NewTransport(ctx)
	if err != nil {
		return nil, err
	}
	opts := append(c.LinkOptions(), link.WithTransport(s))
	return &Env{Config: c, Stream: s, Link: link.New(opts...)}, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv(ctx context.Context) *Env {
	env, err := c.NewEnv(ctx)
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// AddToLoop implements LoopAdder. The loop wakes up as soon as bytes
// arrive, and stops when the stream fails.
func (e *Env) AddToLoop(loop *fx.Loop) {
	e.Stream.OnData = loop.TriggerNext
	loop.AddRunnable(e.Stream)
	loop.Add(e.Link)
}
