package handler_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oharbase/processornode/handler"
	"github.com/oharbase/processornode/nodeconfig"
	"github.com/oharbase/processornode/packet"
)

type fakeFileSource struct {
	cfg *nodeconfig.Configuration
}

func (f *fakeFileSource) Configuration() *nodeconfig.Configuration { return f.cfg }

func TestFileReadHandlerStreamsLinesToDownstreamHandlers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("text/plain\nfirst\nsecond\n\nthird\n"), 0o600))

	cfg := nodeconfig.New()
	cfg.HandleNewItem(nodeconfig.Item{Name: nodeconfig.InputFile, Value: path})
	src := &fakeFileSource{cfg: cfg}

	chain := handler.NewChain()
	h := handler.NewFileReadHandler(src, chain, nil)

	var received []packet.Packet
	tail := handler.HandlerFunc(func(pkt *packet.Packet) bool {
		received = append(received, *pkt)
		return false
	})
	chain.Append(h, tail)

	p := packet.New(packet.Control, "readfile")
	assert.True(t, chain.Dispatch(&p), "the readfile command itself must be claimed")

	require.Len(t, received, 3, "each non-empty line after the content-type line must reach the downstream handler")
	assert.Equal(t, "first", received[0].PayloadString())
	assert.Equal(t, "second", received[1].PayloadString())
	assert.Equal(t, "third", received[2].PayloadString())
	for _, got := range received {
		assert.Equal(t, packet.Data, got.Kind())
	}
}

func TestFileReadHandlerIgnoresOtherCommands(t *testing.T) {
	cfg := nodeconfig.New()
	src := &fakeFileSource{cfg: cfg}
	chain := handler.NewChain()
	h := handler.NewFileReadHandler(src, chain, nil)
	chain.Append(h)

	p := packet.New(packet.Control, "ping")
	assert.False(t, h.Consume(&p))
}

func TestFileReadHandlerWarnsButClaimsWhenUnconfigured(t *testing.T) {
	cfg := nodeconfig.New()
	src := &fakeFileSource{cfg: cfg}
	chain := handler.NewChain()
	h := handler.NewFileReadHandler(src, chain, nil)
	chain.Append(h)

	p := packet.New(packet.Control, "readfile")
	assert.True(t, h.Consume(&p))
}
