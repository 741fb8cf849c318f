package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/odrive.go/pkg/bridge/msgs"
	fx "github.com/robotalks/odrive.go/pkg/framework"
	"github.com/robotalks/odrive.go/pkg/l0/link"
)

// Topics relative to <prefix><device>/.
const (
	TopicCmd   = "cmd"
	TopicReply = "reply"
	TopicStats = "stats"
	TopicMeta  = "meta"
)

// Meta is published retained on the meta topic while the bridge is up.
type Meta struct {
	Device    string `json:"device"`
	Transport string `json:"transport,omitempty"`
	TimeoutMs int64  `json:"timeout_ms"`
}

type publisher interface {
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// Bridge forwards Requests received on <device>/cmd to the link and
// publishes Replies on <device>/reply.
type Bridge struct {
	Queue         *Queue
	Meta          Meta
	StatsInterval time.Duration

	link    *link.Link
	pub     publisher
	loopCtl fx.LoopControl
}

// NewBridge creates a Bridge connecting to the broker at brokerURL.
func NewBridge(brokerURL string, meta Meta, l *link.Link) (*Bridge, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+meta.Device+"/"+TopicMeta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("odrive:" + meta.Device)
	}
	b := &Bridge{Queue: NewQueue(opts, topicPrefix), Meta: meta, link: l}
	b.pub = b.Queue
	b.Queue.OnConnect = func(*Queue) { b.publishMeta() }
	return b, nil
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	b.loopCtl = loop
	loop.AddRunnable(b)
}

// Name implements Named.
func (b *Bridge) Name() string {
	return "mqtt-bridge"
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	b.Queue.Sub(b.Meta.Device+"/"+TopicCmd, b.handleCmd)
	if token := b.Queue.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	defer b.Queue.Close()

	var tick <-chan time.Time
	if b.StatsInterval > 0 {
		ticker := time.NewTicker(b.StatsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			b.pub.PubWith(b.topic(TopicMeta), nil, 1, true).WaitTimeout(time.Second)
			return ctx.Err()
		case <-tick:
			b.publishStats()
		}
	}
}

func (b *Bridge) topic(name string) string {
	return b.Meta.Device + "/" + name
}

func (b *Bridge) publish(name string, msg proto.Message, retain bool) {
	data, err := msgs.Encode(msg)
	if err != nil {
		glog.Errorf("encode %s: %v", name, err)
		return
	}
	b.pub.PubWith(b.topic(name), data, 0, retain)
}

func (b *Bridge) publishMeta() {
	data, err := json.Marshal(&b.Meta)
	if err != nil {
		panic(err)
	}
	b.pub.PubWith(b.topic(TopicMeta), data, 1, true)
}

func (b *Bridge) publishStats() {
	b.publish(TopicStats, msgs.StatsFrom(b.link.Stats()), false)
}

func (b *Bridge) handleCmd(topic string, payload []byte) {
	req, err := msgs.DecodeRequest(payload)
	if err != nil {
		glog.Warningf("invalid request on %s: %v", topic, err)
		b.publish(TopicReply, &msgs.Reply{Error: err.Error()}, false)
		return
	}
	msg := &link.SendMsg{
		Command: req.Command,
		Err: func(err error) {
			b.publish(TopicReply, &msgs.Reply{ID: req.ID, Error: err.Error()}, false)
		},
	}
	if req.Expect {
		msg.Handler = &replyHandler{bridge: b, id: req.ID}
	}
	msg.Post(b.loopCtl)
}

// replyHandler runs on the loop goroutine.
type replyHandler struct {
	bridge *Bridge
	id     uint64
}

func (h *replyHandler) HandleLine(payload []byte) {
	h.bridge.publish(TopicReply, &msgs.Reply{ID: h.id, Payload: string(payload)}, false)
}

func (h *replyHandler) Expired() {
	h.bridge.publish(TopicReply, &msgs.Reply{ID: h.id, Expired: true, Error: "no reply"}, false)
}
