package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/oharbase/processornode/nodeconfig"
	"github.com/oharbase/processornode/packet"
)

const (
	opRead = "read"
	opSet  = "set"
	opInfo = "info"
)

// ConfigNode is the Node-side capability ConfigurationHandler needs: send a
// reply packet, read the node's current configuration, and merge in new
// items from a "set" message.
type ConfigNode interface {
	Sender
	Configuration() *nodeconfig.Configuration
	NodeName() string
}

// configMessage is the JSON payload of a Configuration packet.
type configMessage struct {
	Operation   string                 `json:"operation"`
	NodeName    string                 `json:"nodename"`
	ConfigItems *nodeconfig.Configuration `json:"configitems"`
}

// ConfigurationHandler handles Configuration packets: "read" replies with
// the node's current configuration, "set" merges items in. It is terminal
// — it always returns true, since a Configuration packet is never meant
// for any handler installed after it.
type ConfigurationHandler struct {
	node Sender
	cfg  ConfigNode
	log  *slog.Logger
}

// NewConfigurationHandler returns a ConfigurationHandler wired to node.
func NewConfigurationHandler(node ConfigNode, log *slog.Logger) *ConfigurationHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ConfigurationHandler{node: node, cfg: node, log: log}
}

// Consume implements Handler.
func (h *ConfigurationHandler) Consume(pkt *packet.Packet) bool {
	if pkt.Kind() != packet.Configuration {
		return false
	}

	var msg configMessage
	msg.ConfigItems = nodeconfig.New()
	if err := json.Unmarshal([]byte(pkt.PayloadString()), &msg); err != nil {
		h.log.Warn("malformed configuration message, dropping", "id", pkt.ID(), "error", err)
		return true
	}

	switch msg.Operation {
	case opRead:
		h.handleRead(pkt)
	case opSet:
		h.handleSet(msg)
	default:
		h.log.Warn("unknown configuration operation, ignoring", "operation", msg.Operation)
	}
	return true
}

func (h *ConfigurationHandler) handleRead(pkt *packet.Packet) {
	reply := configMessage{
		Operation:   opInfo,
		NodeName:    h.cfg.NodeName(),
		ConfigItems: h.cfg.Configuration(),
	}
	body, err := json.Marshal(reply)
	if err != nil {
		h.log.Error("failed to render configuration reply", "error", err)
		return
	}

	response := packet.New(packet.Configuration, string(body))
	response.SetDestination(pkt.Origin())
	h.node.SendData(response)
}

func (h *ConfigurationHandler) handleSet(msg configMessage) {
	h.cfg.Configuration().Merge(msg.ConfigItems.Items())
}
