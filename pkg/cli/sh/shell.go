package sh

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/odrive.go/pkg/env"
	fx "github.com/robotalks/odrive.go/pkg/framework"
	"github.com/robotalks/odrive.go/pkg/l0/link"
	"github.com/robotalks/odrive.go/pkg/l0/serialport"
)

// ErrNoReply indicates a command timed out or its reply couldn't be queued.
var ErrNoReply = errors.New("no reply")

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *Conn
}

// Conn is a running loop owning an opened link.
type Conn struct {
	Cancel func()
	Env    *env.Env
	Loop   *fx.Loop
}

const (
	shellKey       = "$shell"
	closedPrompt   = "[closed] > "
	replyWaitSlack = time.Second
)

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&PortsCmd,
		&SendCmd,
		&WriteCmd,
		&StatsCmd,
		&TimeoutCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Open dials the configured transport and starts the loop.
func (s *Shell) Open() error {
	e, err := s.Config.NewEnv(context.Background())
	if err != nil {
		return err
	}
	s.Attach(e)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", s.Config.Transport))
	return nil
}

// Attach starts a loop owning e, replacing the current one.
func (s *Shell) Attach(e *env.Env) {
	s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	conn := &Conn{Cancel: cancel, Env: e, Loop: s.Config.NewLoop()}
	conn.Loop.Add(e)
	s.Conn = conn
	go func() {
		if err := conn.Loop.Run(ctx); err != nil && err != context.Canceled {
			glog.Errorf("link stopped: %v", err)
		}
	}()
}

// Close stops the loop and closes the transport.
func (s *Shell) Close() {
	if s.Conn != nil {
		s.Conn.Cancel()
		s.Conn = nil
		s.Shell.SetPrompt(closedPrompt)
	}
}

type result struct {
	payload string
	err     error
}

// replyWaiter is a link.Handler delivering exactly one result.
type replyWaiter chan result

func (w replyWaiter) HandleLine(payload []byte) {
	w <- result{payload: string(payload)}
}

func (w replyWaiter) Expired() {
	w <- result{err: ErrNoReply}
}

// Send sends cmd and waits for its reply.
func (s *Shell) Send(cmd string) (string, error) {
	if s.Conn == nil {
		return "", fmt.Errorf("not opened")
	}
	w := make(replyWaiter, 1)
	(&link.SendMsg{
		Command: cmd,
		Handler: w,
		Err:     func(err error) { w <- result{err: err} },
	}).Post(s.Conn.Loop)
	select {
	case res := <-w:
		return res.payload, res.err
	case <-time.After(s.Config.Timeout + replyWaitSlack):
		return "", ErrNoReply
	}
}

// Write sends cmd without expecting a reply.
func (s *Shell) Write(cmd string) error {
	if s.Conn == nil {
		return fmt.Errorf("not opened")
	}
	errCh := make(chan error, 1)
	(&link.SendMsg{Command: cmd, Err: func(err error) { errCh <- err }}).Post(s.Conn.Loop)
	select {
	case err := <-errCh:
		return err
	case <-time.After(s.Config.PollInterval * 2):
		return nil
	}
}

// SetTimeout changes the reply timeout of the link.
func (s *Shell) SetTimeout(timeout time.Duration) {
	s.Config.Timeout = timeout
	if s.Conn != nil {
		msg := &link.TimeoutMsg{Timeout: timeout}
		s.Conn.Loop.PostMessage(msg)
		s.Conn.Loop.TriggerNext()
	}
}

func (s *Shell) print(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.Config.Transport != "" {
		if err := s.Open(); err != nil {
			log.Fatalf("open %q failed: %v", s.Config.Transport, err)
		}
	}
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// MustBeOpened wraps command func requires an opened link.
func MustBeOpened(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not opened"))
			return
		}
		fn(c)
	}
}

var (
	// OpenCmd opens a transport.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Config.Transport = c.Args[0]
			}
			if err := s.Open(); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes current transport.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"list", "l"},
		Func: func(c *ishell.Context) {
			ports, err := serialport.ListPorts()
			if err != nil {
				c.Err(err)
				return
			}
			if ports == nil {
				ports = []string{}
			}
			ShellFrom(c).print(c, ports, strings.Join(ports, "\n"))
		},
	}

	// SendCmd sends a command and prints the reply.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "COMMAND...",
		Func: MustBeOpened(func(c *ishell.Context) {
			s := ShellFrom(c)
			cmd := strings.Join(c.Args, " ")
			reply, err := s.Send(cmd)
			if err != nil {
				c.Err(err)
				return
			}
			s.print(c, map[string]string{"command": cmd, "reply": reply}, reply)
		}),
	}

	// WriteCmd sends a command without waiting for a reply.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "COMMAND...",
		Func: MustBeOpened(func(c *ishell.Context) {
			if err := ShellFrom(c).Write(strings.Join(c.Args, " ")); err != nil {
				c.Err(err)
			}
		}),
	}

	// StatsCmd prints link counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Func: MustBeOpened(func(c *ishell.Context) {
			s := ShellFrom(c)
			stats := s.Conn.Env.Link.Stats()
			s.print(c, &stats, fmt.Sprintf("%+v", stats))
		}),
	}

	// TimeoutCmd prints or changes the reply timeout.
	TimeoutCmd = ishell.Cmd{
		Name: "timeout",
		Help: "[MS]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				ms, err := strconv.Atoi(c.Args[0])
				if err != nil || ms <= 0 {
					c.Err(fmt.Errorf("invalid timeout: %q", c.Args[0]))
					return
				}
				s.SetTimeout(time.Duration(ms) * time.Millisecond)
			}
			timeout := s.Config.Timeout
			s.print(c, map[string]int64{"timeout_ms": timeout.Milliseconds()}, timeout.String())
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.MustLoad()).Run(flag.Args()...)
}
