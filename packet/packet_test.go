package packet_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oharbase/processornode/packet"
)

// packetSnapshot exposes a Packet's externally-observable fields so
// go-cmp can diff a round-tripped Packet against the original: Packet
// itself has no exported fields for cmp to walk.
type packetSnapshot struct {
	Kind    packet.Kind
	Payload string
}

func snapshot(p packet.Packet) packetSnapshot {
	return packetSnapshot{Kind: p.Kind(), Payload: p.PayloadString()}
}

func TestNewAssignsID(t *testing.T) {
	p := packet.New(packet.Data, "hello")
	assert.NotEmpty(t, p.ID())
	assert.Equal(t, packet.Data, p.Kind())
	assert.Equal(t, "hello", p.PayloadString())
	assert.False(t, p.IsEmpty())
}

func TestEmptyIsEmpty(t *testing.T) {
	p := packet.Empty()
	assert.True(t, p.IsEmpty())
	assert.Equal(t, packet.None, p.Kind())
}

func TestEqualByIDOnly(t *testing.T) {
	a := packet.NewWithID("same-id", packet.Data, "foo")
	b := packet.NewWithID("same-id", packet.Control, "bar")
	assert.True(t, a.Equal(b), "packets with the same id must be equal regardless of other fields")

	c := packet.New(packet.Data, "foo")
	assert.False(t, a.Equal(c))
}

func TestRoundTripJSON(t *testing.T) {
	original := packet.NewWithID("11111111-1111-1111-1111-111111111111", packet.Configuration, `{"operation":"read"}`)
	original.SetOrigin("10.0.0.1:9000")
	original.SetDestination("10.0.0.2:9000")

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded packet.Packet
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, original.Equal(decoded))
	if diff := cmp.Diff(snapshot(original), snapshot(decoded)); diff != "" {
		t.Errorf("round-tripped packet differs from the original (-want +got):\n%s", diff)
	}

	assert.False(t, decoded.HasOrigin(), "origin must never round-trip over the wire")
	assert.False(t, decoded.HasDestination(), "destination must never round-trip over the wire")
}

func TestUnmarshalUnknownTypeMapsToNone(t *testing.T) {
	raw := []byte(`{"package":"abc","type":"bogus","payload":"x"}`)
	var p packet.Packet
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, packet.None, p.Kind())
}

func TestUnmarshalMissingFieldsLeaveDefaults(t *testing.T) {
	raw := []byte(`{}`)
	var p packet.Packet
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "", p.ID())
	assert.Equal(t, packet.None, p.Kind())
	assert.Equal(t, "", p.PayloadString())
}

func TestMarshalWireShape(t *testing.T) {
	p := packet.NewWithID("xyz", packet.Ack, "ack")
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))

	assert.Equal(t, "xyz", generic["package"])
	assert.Equal(t, "ack", generic["type"])
	assert.Equal(t, "ack", generic["payload"])
	_, hasOrigin := generic["origin"]
	assert.False(t, hasOrigin)
	_, hasDestination := generic["destination"]
	assert.False(t, hasDestination)
}

func TestCloneIsIndependentCopy(t *testing.T) {
	original := packet.New(packet.Data, "v1")
	clone := original.Clone()
	clone.SetPayload("v2")

	assert.Equal(t, "v1", original.PayloadString())
	assert.Equal(t, "v2", clone.PayloadString())
	assert.True(t, original.Equal(clone), "clone keeps the same id")
}

type stubPayload struct {
	value string
}

func (s *stubPayload) Clone() packet.Payload { return &stubPayload{value: s.value} }

func (s *stubPayload) Parse(from, contentType string) error {
	s.value = from
	return nil
}

func (s *stubPayload) MergeFrom(other packet.Payload) error {
	if o, ok := other.(*stubPayload); ok {
		s.value = o.value
	}
	return nil
}

func (s *stubPayload) ToJSON() (string, error) {
	return s.value, nil
}

func TestStructuredPayloadRendersThroughToJSON(t *testing.T) {
	p := packet.NewWithPayload(packet.Data, &stubPayload{value: "rendered"})
	assert.Equal(t, "rendered", p.PayloadString())

	data, err := json.Marshal(p)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "rendered", generic["payload"])
}

func TestCloneDeepCopiesStructuredPayload(t *testing.T) {
	original := packet.NewWithPayload(packet.Data, &stubPayload{value: "a"})
	clone := original.Clone()
	clone.PayloadObject().(*stubPayload).value = "b"

	assert.Equal(t, "a", original.PayloadObject().(*stubPayload).value)
	assert.Equal(t, "b", clone.PayloadObject().(*stubPayload).value)
}
