// Package packet defines Packet, the unit of work and control exchanged
// between Nodes, and the Payload contract a Handler can use to work with
// structured payloads instead of raw strings.
//
// The Go identifier is Packet (not Package) to avoid colliding with the
// package keyword; the wire JSON field is still named "package" to match
// the protocol.
package packet

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Kind is the discriminator of a Packet.
type Kind int

const (
	// None marks an empty Packet. IsEmpty reports true iff Kind == None.
	None Kind = iota
	// Control carries a command payload such as "ping" or "shutdown".
	Control
	// Data carries application payload flowing through the handler chain.
	Data
	// Configuration carries a read/set/info configuration message.
	Configuration
	// Ack acknowledges a previously sent Data packet.
	Ack
)

// String returns the wire representation of a Kind.
func (k Kind) String() string {
	switch k {
	case Control:
		return "control"
	case Data:
		return "data"
	case Configuration:
		return "configuration"
	case Ack:
		return "ack"
	default:
		return ""
	}
}

// ParseKind maps a wire string to a Kind. Unknown strings map to None, per
// the wire protocol's "unknown type strings map to None" rule.
func ParseKind(s string) Kind {
	switch s {
	case "control":
		return Control
	case "data":
		return Data
	case "configuration":
		return Configuration
	case "ack":
		return Ack
	default:
		return None
	}
}

// Payload is the contract a structured, domain-specific payload must
// implement so a Packet can clone, reparse, and merge it without the core
// knowing its concrete type.
type Payload interface {
	// Clone returns a deep copy of the payload.
	Clone() Payload
	// Parse populates the payload from a string representation; contentType
	// disambiguates formats the same way it does for configuration file lines
	// (e.g. "nodeconfiguration").
	Parse(from, contentType string) error
	// MergeFrom merges another payload's fields into this one.
	MergeFrom(other Payload) error
	// ToJSON renders the payload as the string that belongs on the wire.
	ToJSON() (string, error)
}

// Packet is the unit of work and control exchanged between Nodes.
//
// origin and destination are ephemeral routing fields: set by a DataReader
// on receipt, and consumed by a Writer on send. They are never serialized.
type Packet struct {
	id          string
	kind        Kind
	payloadStr  string
	payloadObj  Payload
	origin      string
	destination string
}

// Empty returns a Packet with Kind == None.
func Empty() Packet {
	return Packet{kind: None}
}

// New creates a Packet with a fresh id, the given kind, and a string payload.
func New(kind Kind, payload string) Packet {
	return Packet{
		id:         uuid.NewString(),
		kind:       kind,
		payloadStr: payload,
	}
}

// NewWithID creates a Packet with an explicit id, used when a Packet (such
// as an Ack) must carry a specific correlation id.
func NewWithID(id string, kind Kind, payload string) Packet {
	return Packet{
		id:         id,
		kind:       kind,
		payloadStr: payload,
	}
}

// NewWithPayload creates a Packet carrying a structured Payload object. The
// wire form still flattens it through Payload.ToJSON.
func NewWithPayload(kind Kind, payload Payload) Packet {
	return Packet{
		id:         uuid.NewString(),
		kind:       kind,
		payloadObj: payload,
	}
}

// ID returns the packet's identifier.
func (p *Packet) ID() string { return p.id }

// SetID overrides the packet's identifier. (The DataReader builds its Acks
// with NewWithID instead.)
func (p *Packet) SetID(id string) { p.id = id }

// Kind returns the packet's kind.
func (p *Packet) Kind() Kind { return p.kind }

// SetKind sets the packet's kind.
func (p *Packet) SetKind(k Kind) { p.kind = k }

// PayloadString returns the string payload. If the packet carries a
// structured object payload instead, it is rendered through ToJSON; a
// rendering error yields an empty string, mirroring the original source's
// getPayloadString() which never reports a parse failure from this call.
func (p *Packet) PayloadString() string {
	if p.payloadObj != nil {
		s, err := p.payloadObj.ToJSON()
		if err != nil {
			return ""
		}
		return s
	}
	return p.payloadStr
}

// SetPayload sets a raw string payload, clearing any structured payload.
func (p *Packet) SetPayload(payload string) {
	p.payloadStr = payload
	p.payloadObj = nil
}

// PayloadObject returns the structured payload, or nil if the packet carries
// a plain string.
func (p *Packet) PayloadObject() Payload { return p.payloadObj }

// SetPayloadObject sets a structured payload, clearing the string payload.
func (p *Packet) SetPayloadObject(payload Payload) {
	p.payloadObj = payload
	p.payloadStr = ""
}

// Origin returns the address the packet was last received from.
func (p *Packet) Origin() string { return p.origin }

// SetOrigin sets the origin address.
func (p *Packet) SetOrigin(origin string) { p.origin = origin }

// HasOrigin reports whether an origin address is set.
func (p *Packet) HasOrigin() bool { return p.origin != "" }

// Destination returns the address to send to, or empty to mean "use the
// node's default next hop".
func (p *Packet) Destination() string { return p.destination }

// SetDestination sets the destination address.
func (p *Packet) SetDestination(destination string) { p.destination = destination }

// HasDestination reports whether an explicit destination is set.
func (p *Packet) HasDestination() bool { return p.destination != "" }

// IsEmpty reports whether the packet is the zero/None packet.
func (p *Packet) IsEmpty() bool { return p.kind == None }

// Equal implements value equality by id only, per the wire protocol's
// identity rule: two packets with the same id are equal regardless of any
// other field.
func (p Packet) Equal(other Packet) bool {
	return p.id == other.id
}

// Clone returns a deep copy of the packet. A structured payload is cloned
// via the Payload contract; a string payload is copied directly.
// origin/destination are copied as plain strings.
func (p Packet) Clone() Packet {
	clone := p
	if p.payloadObj != nil {
		clone.payloadObj = p.payloadObj.Clone()
	}
	return clone
}

// wireFormat is the JSON wire representation. origin/destination are
// deliberately absent: they are ephemeral and never serialized.
type wireFormat struct {
	ID      string `json:"package"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// MarshalJSON implements json.Marshaler.
func (p Packet) MarshalJSON() ([]byte, error) {
	wire := wireFormat{
		ID:      p.id,
		Type:    p.kind.String(),
		Payload: p.PayloadString(),
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler. Missing fields leave the
// corresponding field at its zero value; unknown type strings map to None.
func (p *Packet) UnmarshalJSON(data []byte) error {
	var wire wireFormat
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.id = wire.ID
	p.kind = ParseKind(wire.Type)
	p.payloadStr = wire.Payload
	p.payloadObj = nil
	p.origin = ""
	p.destination = ""
	return nil
}
