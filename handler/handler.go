// Package handler implements the chain-of-responsibility that a Node runs
// each incoming Packet through: a Handler inspects a Packet and decides
// whether it is fully handled (returning true, stopping the chain) or
// should pass on to the next Handler (returning false).
package handler

import (
	"reflect"

	"github.com/oharbase/processornode/packet"
)

// Handler consumes a Packet, reporting whether it fully handled it.
type Handler interface {
	Consume(pkt *packet.Packet) bool
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(pkt *packet.Packet) bool

// Consume calls f(pkt).
func (f HandlerFunc) Consume(pkt *packet.Packet) bool { return f(pkt) }

// Chain is an ordered list of Handlers.
type Chain struct {
	handlers []Handler
}

// NewChain returns an empty Chain.
func NewChain() *Chain {
	return &Chain{}
}

// Append adds handlers to the end of the chain.
func (c *Chain) Append(handlers ...Handler) {
	c.handlers = append(c.handlers, handlers...)
}

// Handlers returns a copy of the chain's handlers in order.
func (c *Chain) Handlers() []Handler {
	out := make([]Handler, len(c.handlers))
	copy(out, c.handlers)
	return out
}

// Dispatch offers pkt to each handler in order until one returns true or
// the chain is exhausted. It reports whether any handler consumed the
// packet.
func (c *Chain) Dispatch(pkt *packet.Packet) bool {
	for _, h := range c.handlers {
		if h.Consume(pkt) {
			return true
		}
	}
	return false
}

// PassToNextHandlers offers pkt to the tail of the chain following from,
// i.e. the handlers installed after from. It is used by a handler that
// generates packets of its own (such as one streaming a data file) and
// wants them to flow through downstream handlers without re-entering the
// handlers that precede it.
func (c *Chain) PassToNextHandlers(from Handler, pkt *packet.Packet) bool {
	idx := c.indexOf(from)
	if idx < 0 {
		return false
	}
	for _, h := range c.handlers[idx+1:] {
		if h.Consume(pkt) {
			return true
		}
	}
	return false
}

// indexOf locates target by identity. Handler values may be backed by a
// func type (HandlerFunc), which is not comparable with ==, so identity is
// compared via the underlying pointer/func address instead.
func (c *Chain) indexOf(target Handler) int {
	targetPtr, ok := pointerOf(target)
	if !ok {
		return -1
	}
	for i, h := range c.handlers {
		if hPtr, ok := pointerOf(h); ok && hPtr == targetPtr {
			return i
		}
	}
	return -1
}

func pointerOf(h Handler) (uintptr, bool) {
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Func, reflect.Ptr, reflect.Chan, reflect.Map, reflect.Slice, reflect.UnsafePointer:
		return v.Pointer(), true
	default:
		return 0, false
	}
}
