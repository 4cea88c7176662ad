package handler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oharbase/processornode/handler"
	"github.com/oharbase/processornode/packet"
)

type recordingSender struct {
	sent []packet.Packet
}

func (s *recordingSender) SendData(pkt packet.Packet) {
	s.sent = append(s.sent, pkt)
}

func TestPingHandlerForwardsAndReturnsFalse(t *testing.T) {
	sender := &recordingSender{}
	h := handler.NewPingHandler(sender, nil)

	p := packet.New(packet.Control, "ping")
	handled := h.Consume(&p)

	assert.False(t, handled, "PingHandler must return false so later handlers still see the ping")
	require.Len(t, sender.sent, 1)
	assert.True(t, sender.sent[0].Equal(p))
}

func TestPingHandlerIgnoresNonPing(t *testing.T) {
	sender := &recordingSender{}
	h := handler.NewPingHandler(sender, nil)

	p := packet.New(packet.Data, "hello")
	handled := h.Consume(&p)

	assert.False(t, handled)
	assert.Empty(t, sender.sent)
}

func TestPingHandlerIgnoresControlNonPing(t *testing.T) {
	sender := &recordingSender{}
	h := handler.NewPingHandler(sender, nil)

	p := packet.New(packet.Control, "shutdown")
	handled := h.Consume(&p)

	assert.False(t, handled)
	assert.Empty(t, sender.sent)
}
