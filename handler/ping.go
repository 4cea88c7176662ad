package handler

import (
	"log/slog"

	"github.com/oharbase/processornode/packet"
)

// Sender is the Node-side capability a handler needs to emit a packet of
// its own, rather than just inspecting the one it was given.
type Sender interface {
	SendData(pkt packet.Packet)
}

const pingPayload = "ping"

// PingHandler forwards an inbound Control/"ping" packet to the next node
// and logs it. It returns false so that later handlers in the chain still
// see the ping, the one deliberate divergence from the original source
// (whose PingHandler::consume returns true).
type PingHandler struct {
	node Sender
	log  *slog.Logger
}

// NewPingHandler returns a PingHandler that forwards via node.
func NewPingHandler(node Sender, log *slog.Logger) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{node: node, log: log}
}

// Consume implements Handler.
func (h *PingHandler) Consume(pkt *packet.Packet) bool {
	if pkt.Kind() != packet.Control || pkt.PayloadString() != pingPayload {
		return false
	}
	h.log.Info("ping received, forwarding", "id", pkt.ID(), "origin", pkt.Origin())
	h.node.SendData(pkt.Clone())
	return false
}
