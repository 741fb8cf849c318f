// Package msgs defines the messages exchanged with remote clients of a link.
package msgs

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/odrive.go/pkg/l0/link"
)

// Request asks to send a command over the link.
type Request struct {
	ID      uint64 `protobuf:"varint,1,opt,name=id,proto3" json:"id,omitempty"`
	Command string `protobuf:"bytes,2,opt,name=command,proto3" json:"command,omitempty"`
	// Expect requests a Reply, otherwise the command is fire-and-forget.
	Expect bool `protobuf:"varint,3,opt,name=expect,proto3" json:"expect,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Request) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Request) Reset() { *m = Request{} }

// String implements proto.Message.
func (m *Request) String() string { return proto.CompactTextString(m) }

// Reply carries the reply line of a Request, or the reason there is none.
type Reply struct {
	ID      uint64 `protobuf:"varint,1,opt,name=id,proto3" json:"id,omitempty"`
	Payload string `protobuf:"bytes,2,opt,name=payload,proto3" json:"payload,omitempty"`
	Error   string `protobuf:"bytes,3,opt,name=error,proto3" json:"error,omitempty"`
	Expired bool   `protobuf:"varint,4,opt,name=expired,proto3" json:"expired,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Reply) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Reply) Reset() { *m = Reply{} }

// String implements proto.Message.
func (m *Reply) String() string { return proto.CompactTextString(m) }

// Stats reports the link counters.
type Stats struct {
	Sent           uint64 `protobuf:"varint,1,opt,name=sent,proto3" json:"sent,omitempty"`
	Dispatched     uint64 `protobuf:"varint,2,opt,name=dispatched,proto3" json:"dispatched,omitempty"`
	ChecksumErrors uint64 `protobuf:"varint,3,opt,name=checksum_errors,proto3" json:"checksum_errors,omitempty"`
	Overflows      uint64 `protobuf:"varint,4,opt,name=overflows,proto3" json:"overflows,omitempty"`
	QueueFull      uint64 `protobuf:"varint,5,opt,name=queue_full,proto3" json:"queue_full,omitempty"`
	Expired        uint64 `protobuf:"varint,6,opt,name=expired,proto3" json:"expired,omitempty"`
	Unmatched      uint64 `protobuf:"varint,7,opt,name=unmatched,proto3" json:"unmatched,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Stats) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Stats) Reset() { *m = Stats{} }

// String implements proto.Message.
func (m *Stats) String() string { return proto.CompactTextString(m) }

// StatsFrom converts link counters.
func StatsFrom(s link.Stats) *Stats {
	return &Stats{
		Sent:           s.Sent,
		Dispatched:     s.Dispatched,
		ChecksumErrors: s.ChecksumErrors,
		Overflows:      s.Overflows,
		QueueFull:      s.QueueFull,
		Expired:        s.Expired,
		Unmatched:      s.Unmatched,
	}
}

// Encode serializes a message.
func Encode(m proto.Message) ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeRequest parses a Request.
func DecodeRequest(data []byte) (*Request, error) {
	var m Request
	return &m, proto.Unmarshal(data, &m)
}

// DecodeReply parses a Reply.
func DecodeReply(data []byte) (*Reply, error) {
	var m Reply
	return &m, proto.Unmarshal(data, &m)
}

// DecodeStats parses a Stats.
func DecodeStats(data []byte) (*Stats, error) {
	var m Stats
	return &m, proto.Unmarshal(data, &m)
}
