package handler_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oharbase/processornode/handler"
	"github.com/oharbase/processornode/nodeconfig"
	"github.com/oharbase/processornode/packet"
)

type fakeConfigNode struct {
	recordingSender
	name string
	cfg  *nodeconfig.Configuration
}

func (f *fakeConfigNode) Configuration() *nodeconfig.Configuration { return f.cfg }
func (f *fakeConfigNode) NodeName() string                         { return f.name }

func TestConfigurationHandlerReadRepliesWithCurrentConfig(t *testing.T) {
	cfg := nodeconfig.New()
	cfg.HandleNewItem(nodeconfig.Item{Name: nodeconfig.InputAddress, Value: "239.0.0.1:30001"})
	node := &fakeConfigNode{name: "alpha", cfg: cfg}
	h := handler.NewConfigurationHandler(node, nil)

	req := packet.New(packet.Configuration, `{"operation":"read"}`)
	req.SetOrigin("10.0.0.5:9000")

	handled := h.Consume(&req)
	assert.True(t, handled, "configuration packets are always terminal")
	require.Len(t, node.sent, 1)

	reply := node.sent[0]
	assert.Equal(t, "10.0.0.5:9000", reply.Destination())

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(reply.PayloadString()), &body))
	assert.Equal(t, "info", body["operation"])
	assert.Equal(t, "alpha", body["nodename"])
}

func TestConfigurationHandlerSetMergesItems(t *testing.T) {
	cfg := nodeconfig.New()
	cfg.HandleNewItem(nodeconfig.Item{Name: nodeconfig.InputFile, Value: "old.txt"})
	node := &fakeConfigNode{name: "alpha", cfg: cfg}
	h := handler.NewConfigurationHandler(node, nil)

	req := packet.New(packet.Configuration, `{"operation":"set","configitems":[{"filein":"new.txt"}]}`)
	handled := h.Consume(&req)

	assert.True(t, handled)
	assert.Empty(t, node.sent, "set must not reply")

	v, ok := cfg.Value(nodeconfig.InputFile)
	require.True(t, ok)
	assert.Equal(t, "new.txt", v)
}

func TestConfigurationHandlerIgnoresNonConfigurationPackets(t *testing.T) {
	node := &fakeConfigNode{name: "alpha", cfg: nodeconfig.New()}
	h := handler.NewConfigurationHandler(node, nil)

	p := packet.New(packet.Data, "hello")
	assert.False(t, h.Consume(&p))
}

func TestConfigurationHandlerMalformedPayloadIsTerminal(t *testing.T) {
	node := &fakeConfigNode{name: "alpha", cfg: nodeconfig.New()}
	h := handler.NewConfigurationHandler(node, nil)

	p := packet.New(packet.Configuration, "not json")
	assert.True(t, h.Consume(&p), "a malformed configuration payload is still terminal, just dropped")
}
