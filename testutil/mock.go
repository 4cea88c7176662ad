// Package testutil provides lightweight test doubles for the handler and
// netio contracts, following the func-field-plus-call-counter mock idiom
// used throughout this module's own package tests.
package testutil

import (
	"sync"

	"github.com/oharbase/processornode/packet"
)

// MockHandler is a handler.Handler whose Consume behavior and call history
// are inspectable from a test.
type MockHandler struct {
	mu sync.Mutex

	// ConsumeFunc, if set, is called for every Consume. Its result is
	// returned. If nil, Consume always returns Result.
	ConsumeFunc func(pkt *packet.Packet) bool
	Result      bool

	Calls    int
	Received []packet.Packet
}

// NewMockHandler returns a MockHandler that returns result from Consume
// unless ConsumeFunc is set afterward.
func NewMockHandler(result bool) *MockHandler {
	return &MockHandler{Result: result}
}

// Consume implements handler.Handler.
func (m *MockHandler) Consume(pkt *packet.Packet) bool {
	m.mu.Lock()
	m.Calls++
	m.Received = append(m.Received, pkt.Clone())
	fn := m.ConsumeFunc
	result := m.Result
	m.mu.Unlock()

	if fn != nil {
		return fn(pkt)
	}
	return result
}

// CallCount reports how many times Consume has been called.
func (m *MockHandler) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// LastReceived returns the most recent packet passed to Consume, or the
// zero Packet if Consume has never been called.
func (m *MockHandler) LastReceived() *packet.Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Received) == 0 {
		return &packet.Packet{}
	}
	return &m.Received[len(m.Received)-1]
}

// MockSender is a handler.Sender that records every packet handed to
// SendData instead of writing it to the network.
type MockSender struct {
	mu   sync.Mutex
	Sent []packet.Packet
}

// SendData implements handler.Sender.
func (s *MockSender) SendData(pkt packet.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, pkt)
}

// SentPackets returns a copy of every packet recorded so far.
func (s *MockSender) SentPackets() []packet.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]packet.Packet, len(s.Sent))
	copy(out, s.Sent)
	return out
}

// MockObserver is a netio.Observer that counts notifications instead of
// waking a dispatch loop.
type MockObserver struct {
	mu      sync.Mutex
	Notices int
	Errors  []string
}

// ReceivedData implements netio.Observer.
func (o *MockObserver) ReceivedData() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Notices++
}

// ErrorInData implements netio.Observer.
func (o *MockObserver) ErrorInData(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Errors = append(o.Errors, message)
}

// NoticeCount reports how many times ReceivedData has fired.
func (o *MockObserver) NoticeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Notices
}
