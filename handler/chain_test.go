package handler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oharbase/processornode/handler"
	"github.com/oharbase/processornode/packet"
	"github.com/oharbase/processornode/testutil"
)

func alwaysFalse(*packet.Packet) bool { return false }

func TestDispatchStopsAtFirstTrue(t *testing.T) {
	var calls []string
	chain := handler.NewChain()
	chain.Append(
		handler.HandlerFunc(func(p *packet.Packet) bool {
			calls = append(calls, "first")
			return false
		}),
		handler.HandlerFunc(func(p *packet.Packet) bool {
			calls = append(calls, "second")
			return true
		}),
		handler.HandlerFunc(func(p *packet.Packet) bool {
			calls = append(calls, "third")
			return true
		}),
	)

	p := packet.New(packet.Data, "x")
	handled := chain.Dispatch(&p)

	assert.True(t, handled)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatchExhaustedReturnsFalse(t *testing.T) {
	chain := handler.NewChain()
	chain.Append(handler.HandlerFunc(alwaysFalse), handler.HandlerFunc(alwaysFalse))

	p := packet.New(packet.Data, "x")
	assert.False(t, chain.Dispatch(&p))
}

func TestDispatchRecordsEachHandlerInvocation(t *testing.T) {
	first := testutil.NewMockHandler(false)
	second := testutil.NewMockHandler(true)
	chain := handler.NewChain()
	chain.Append(first, second)

	p := packet.New(packet.Data, "mocked")
	assert.True(t, chain.Dispatch(&p))
	assert.Equal(t, 1, first.CallCount())
	assert.Equal(t, 1, second.CallCount())
	assert.Equal(t, "mocked", second.LastReceived().PayloadString())
}

func TestPassToNextHandlersSkipsPreceding(t *testing.T) {
	var calls []string
	chain := handler.NewChain()

	first := handler.HandlerFunc(func(p *packet.Packet) bool {
		calls = append(calls, "first")
		return false
	})
	second := handler.HandlerFunc(func(p *packet.Packet) bool {
		calls = append(calls, "second")
		return false
	})
	third := handler.HandlerFunc(func(p *packet.Packet) bool {
		calls = append(calls, "third")
		return true
	})
	chain.Append(first, second, third)

	p := packet.New(packet.Data, "x")
	handled := chain.PassToNextHandlers(second, &p)

	assert.True(t, handled)
	assert.Equal(t, []string{"third"}, calls, "PassToNextHandlers must not re-invoke handlers at or before 'from'")
}
